package domain

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a history Message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleTool   Role = "tool"
	RoleError  Role = "error"
	RoleSystem Role = "system"
)

// EntryKind is the discriminator of the History tagged union.
type EntryKind string

const (
	KindMessage EntryKind = "message"
	KindSummary EntryKind = "summary"
	KindStep    EntryKind = "step"
)

// Entry is one element of a conversation History.
// Implementations are Message, Summary and StepIdentifier.
type Entry interface {
	Kind() EntryKind
	isEntry()
}

// Message is a single utterance in the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Summary replaces a range of history with condensed lines.
type Summary struct {
	Lines []string `json:"summary"`
}

// StepIdentifier marks that a decision was taken while in StepID.
type StepIdentifier struct {
	StepID string `json:"step_id"`
}

func (Message) Kind() EntryKind        { return KindMessage }
func (Summary) Kind() EntryKind        { return KindSummary }
func (StepIdentifier) Kind() EntryKind { return KindStep }

func (Message) isEntry()        {}
func (Summary) isEntry()        {}
func (StepIdentifier) isEntry() {}

// History is the append-only record of a conversation.
type History []Entry

// Append returns the history with entries added at the end.
func (h History) Append(entries ...Entry) History {
	return append(h, entries...)
}

// Clone returns a deep copy of the history.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	for i, e := range h {
		if s, ok := e.(Summary); ok {
			out[i] = Summary{Lines: append([]string(nil), s.Lines...)}
			continue
		}
		out[i] = e
	}
	return out
}

// Summarize atomically replaces the entries in [from, to) with a single Summary.
func (h History) Summarize(from, to int, lines []string) (History, error) {
	if from < 0 || to > len(h) || from > to {
		return nil, fmt.Errorf("summarize: invalid range [%d, %d) for history of length %d", from, to, len(h))
	}
	out := make(History, 0, len(h)-(to-from)+1)
	out = append(out, h[:from]...)
	out = append(out, Summary{Lines: append([]string(nil), lines...)})
	out = append(out, h[to:]...)
	return out, nil
}

// Messages returns the Message entries in order.
func (h History) Messages() []Message {
	var out []Message
	for _, e := range h {
		if m, ok := e.(Message); ok {
			out = append(out, m)
		}
	}
	return out
}

// Steps returns the step IDs recorded by StepIdentifier entries, in order.
func (h History) Steps() []string {
	var out []string
	for _, e := range h {
		if s, ok := e.(StepIdentifier); ok {
			out = append(out, s.StepID)
		}
	}
	return out
}

// Equal reports whether both histories hold the same entries.
func (h History) Equal(other History) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if !entryEqual(h[i], other[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an initial segment of h.
func (h History) HasPrefix(prefix History) bool {
	if len(prefix) > len(h) {
		return false
	}
	return h[:len(prefix)].Equal(prefix)
}

func entryEqual(a, b Entry) bool {
	switch x := a.(type) {
	case Message:
		y, ok := b.(Message)
		return ok && x == y
	case StepIdentifier:
		y, ok := b.(StepIdentifier)
		return ok && x == y
	case Summary:
		y, ok := b.(Summary)
		if !ok || len(x.Lines) != len(y.Lines) {
			return false
		}
		for i := range x.Lines {
			if x.Lines[i] != y.Lines[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// wireEntry is the flattened JSON form of an Entry.
type wireEntry struct {
	Kind    EntryKind `json:"kind"`
	Role    Role      `json:"role,omitempty"`
	Content string    `json:"content,omitempty"`
	Summary []string  `json:"summary,omitempty"`
	StepID  string    `json:"step_id,omitempty"`
}

// MarshalJSON encodes the history as a list of tagged objects.
func (h History) MarshalJSON() ([]byte, error) {
	wire := make([]wireEntry, 0, len(h))
	for _, e := range h {
		switch v := e.(type) {
		case Message:
			wire = append(wire, wireEntry{Kind: KindMessage, Role: v.Role, Content: v.Content})
		case Summary:
			wire = append(wire, wireEntry{Kind: KindSummary, Summary: v.Lines})
		case StepIdentifier:
			wire = append(wire, wireEntry{Kind: KindStep, StepID: v.StepID})
		default:
			return nil, fmt.Errorf("history: unknown entry type %T", e)
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a list of tagged objects.
func (h *History) UnmarshalJSON(data []byte) error {
	var wire []wireEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := make(History, 0, len(wire))
	for i, w := range wire {
		switch w.Kind {
		case KindMessage:
			out = append(out, Message{Role: w.Role, Content: w.Content})
		case KindSummary:
			out = append(out, Summary{Lines: w.Summary})
		case KindStep:
			out = append(out, StepIdentifier{StepID: w.StepID})
		default:
			return fmt.Errorf("history: entry %d has unknown kind %q", i, w.Kind)
		}
	}
	*h = out
	return nil
}
