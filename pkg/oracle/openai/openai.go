// Package openai provides an oracle backed by the OpenAI Chat Completions API.
// The decision schema is passed as a structured-output response format.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/stepwise/pkg/oracle"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI oracle.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
}

// Oracle asks an OpenAI chat model for decisions.
type Oracle struct {
	client *openai.Client
	opts   Options
}

var _ oracle.Oracle = (*Oracle)(nil)

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 2048,
	}
}

// New creates an oracle using the official client. Without an explicit API
// key the client reads OPENAI_API_KEY from the environment.
func New(optFns ...func(o *Options)) *Oracle {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(clientOpts...)
	return &Oracle{client: &client, opts: opts}
}

// NewFromClient creates an oracle from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Oracle {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

// Decide implements oracle.Oracle.
func (o *Oracle) Decide(ctx context.Context, req *oracle.Request) (json.RawMessage, error) {
	params, err := o.buildParams(req)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices returned")
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}

func (o *Oracle) buildParams(req *oracle.Request) (openai.ChatCompletionNewParams, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(oracle.SystemPrompt(req)),
	}
	for _, turn := range oracle.Transcript(req.History) {
		if turn.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(turn.Content))
			continue
		}
		messages = append(messages, openai.UserMessage(turn.Content))
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               o.opts.Model,
		Temperature:         openai.Float(o.opts.Temperature),
		MaxCompletionTokens: openai.Int(o.opts.MaxCompletionTokens),
	}

	if req.Schema != nil {
		doc, err := req.Schema.Document()
		if err != nil {
			return params, err
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "decision",
					Schema: doc,
				},
			},
		}
	}
	return params, nil
}
