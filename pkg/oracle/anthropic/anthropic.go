// Package anthropic provides an oracle backed by the Anthropic Messages API.
// The decision schema is exposed as a single tool whose input is the decision.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/aretw0/stepwise/pkg/oracle"
)

// DecisionTool is the name of the tool the model uses to submit its decision.
const DecisionTool = "submit_decision"

// Options configures the Anthropic oracle.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Oracle asks a Claude model for decisions.
type Oracle struct {
	client *anthropic.Client
	opts   Options
}

var _ oracle.Oracle = (*Oracle)(nil)

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   2048,
	}
}

// New creates an oracle using the official client.
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
	client := anthropic.NewClient(clientOpts...)
	return &Oracle{client: &client, opts: opts}
}

// NewFromClient creates an oracle from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Oracle {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

// Decide implements oracle.Oracle. A tool_use block for DecisionTool wins over
// text; plain text replies are returned as-is for the engine to extract.
func (o *Oracle) Decide(ctx context.Context, req *oracle.Request) (json.RawMessage, error) {
	params := anthropic.MessageNewParams{
		Model:       o.opts.Model,
		Messages:    buildMessages(req),
		MaxTokens:   o.opts.MaxTokens,
		Temperature: anthropic.Float(o.opts.Temperature),
		System: []anthropic.TextBlockParam{{
			Text: oracle.SystemPrompt(req) + "\nSubmit your decision by calling the " + DecisionTool + " tool.",
		}},
	}
	if req.Schema != nil {
		tool, err := decisionTool(req)
		if err != nil {
			return nil, err
		}
		params.Tools = []anthropic.ToolUnionParam{tool}
	}

	resp, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		switch block.Type {
		case "tool_use":
			toolBlock := block.AsToolUse()
			if toolBlock.Name != DecisionTool {
				continue
			}
			b, err := json.Marshal(toolBlock.Input)
			if err != nil {
				return nil, fmt.Errorf("anthropic: decode tool input: %w", err)
			}
			return b, nil
		case "text":
			text += block.AsText().Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("anthropic: empty reply (stop reason %q)", resp.StopReason)
	}
	return json.RawMessage(text), nil
}

func buildMessages(req *oracle.Request) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, turn := range oracle.Transcript(req.History) {
		block := anthropic.NewTextBlock(turn.Content)
		if turn.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(block))
	}
	return messages
}

func decisionTool(req *oracle.Request) (anthropic.ToolUnionParam, error) {
	doc, err := req.Schema.Document()
	if err != nil {
		return anthropic.ToolUnionParam{}, err
	}
	inputSchema := anthropic.ToolInputSchemaParam{
		Type:       constant.Object("object"),
		Properties: doc["properties"],
	}
	if required, ok := doc["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				inputSchema.Required = append(inputSchema.Required, s)
			}
		}
	}
	return anthropic.ToolUnionParamOfTool(inputSchema, DecisionTool), nil
}
