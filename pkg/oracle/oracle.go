// Package oracle defines the decision-making boundary of the engine.
//
// An Oracle receives the current step, the tools it exposes, the conversation
// history and the decision schema, and returns a raw candidate decision. The
// engine validates the candidate; oracles never mutate session state.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/stepwise/pkg/decision"
	"github.com/aretw0/stepwise/pkg/domain"
)

// Request is everything an oracle may look at to produce a decision.
type Request struct {
	SessionID     string
	Step          *domain.Step
	Tools         []decision.ToolSpec
	History       domain.History
	Persona       string
	SystemMessage string
	Schema        *decision.Schema
}

// Oracle produces a candidate decision for a request.
type Oracle interface {
	Decide(ctx context.Context, req *Request) (json.RawMessage, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, req *Request) (json.RawMessage, error)

func (f Func) Decide(ctx context.Context, req *Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// ErrScriptExhausted is returned by Scripted when it has no replies left.
var ErrScriptExhausted = errors.New("oracle script exhausted")

// Scripted replays a fixed list of replies, one per call. It records every
// request it receives, which makes it the oracle of choice for tests and demos.
type Scripted struct {
	mu       sync.Mutex
	replies  []json.RawMessage
	next     int
	repeat   bool
	requests []*Request
}

// NewScripted creates a scripted oracle from raw JSON replies.
func NewScripted(replies ...string) *Scripted {
	s := &Scripted{}
	for _, r := range replies {
		s.replies = append(s.replies, json.RawMessage(r))
	}
	return s
}

// Repeat makes the oracle return its last reply forever once the script runs out.
func (s *Scripted) Repeat() *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeat = true
	return s
}

// Push appends replies to the script.
func (s *Scripted) Push(replies ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range replies {
		raw, err := toRaw(r)
		if err != nil {
			return err
		}
		s.replies = append(s.replies, raw)
	}
	return nil
}

func (s *Scripted) Decide(ctx context.Context, req *Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	if s.next >= len(s.replies) {
		if s.repeat && len(s.replies) > 0 {
			return s.replies[len(s.replies)-1], nil
		}
		return nil, ErrScriptExhausted
	}
	r := s.replies[s.next]
	s.next++
	return r, nil
}

// Requests returns the requests received so far.
func (s *Scripted) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Request(nil), s.requests...)
}

// Calls returns how many times Decide was called.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func toRaw(v any) (json.RawMessage, error) {
	switch r := v.(type) {
	case string:
		return json.RawMessage(r), nil
	case json.RawMessage:
		return r, nil
	case []byte:
		return json.RawMessage(r), nil
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("scripted reply: %w", err)
		}
		return b, nil
	}
}
