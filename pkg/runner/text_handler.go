package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/stepwise/pkg/domain"
)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	// Prompt is written before every read.
	Prompt string

	// Verbose also prints tool calls and step changes.
	Verbose bool

	lines chan inputResult
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerPrompt sets the input prompt.
func WithTextHandlerPrompt(prompt string) TextHandlerOption {
	return func(h *TextHandler) {
		h.Prompt = prompt
	}
}

// WithTextHandlerVerbose prints tool calls and moves.
func WithTextHandlerVerbose(verbose bool) TextHandlerOption {
	return func(h *TextHandler) {
		h.Verbose = verbose
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
		Prompt: "> ",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) Output(ctx context.Context, res *domain.TurnResult) error {
	d := res.Decision
	if h.Verbose {
		switch d.Action {
		case domain.ActionToolCall:
			fmt.Fprintf(h.Writer, "[tool] %s -> %s\n", d.ToolCall.ToolName, res.ToolResult)
		case domain.ActionMove:
			fmt.Fprintf(h.Writer, "[move] %s -> %s\n", res.FromStep, res.StepID)
		}
	}
	if !d.HasResponse() {
		return nil
	}

	output := d.ResponseText()
	if h.Renderer != nil {
		if rendered, err := h.Renderer(output); err == nil {
			output = rendered
		}
	}
	fmt.Fprintln(h.Writer, strings.TrimSpace(output))

	for i, s := range d.Suggestions {
		fmt.Fprintf(h.Writer, "  %d. %s\n", i+1, s)
	}
	return nil
}

// Input reads one line. A number picking a quick suggestion is not expanded;
// the agent sees what the user typed.
func (h *TextHandler) Input(ctx context.Context) (string, error) {
	if h.Prompt != "" {
		fmt.Fprint(h.Writer, h.Prompt)
	}
	if h.lines == nil {
		h.lines = make(chan inputResult)
		go h.pump()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case in, ok := <-h.lines:
		if !ok {
			return "", io.EOF
		}
		return in.text, in.err
	}
}

// pump reads lines in the background so that Input can honor cancellation.
func (h *TextHandler) pump() {
	defer close(h.lines)
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.lines <- inputResult{text: strings.TrimRight(text, "\r\n")}
		}
		if err != nil {
			if err != io.EOF {
				h.lines <- inputResult{err: err}
			}
			return
		}
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "[system] %s\n", msg)
	return err
}
