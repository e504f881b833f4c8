// Package convo keeps a bounded log of chat turns and folds evicted turns
// into a running textual summary. The window feeds the prompt the CLI sends
// to the model; nothing here is persisted.
package convo

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultMaxTurns = 20

	summaryLeadIn     = "Earlier actions: "
	summarySeparator  = " | "
	summaryTerminator = "\n"

	summaryLabel = "Session summary:"
	recentLabel  = "Recent conversation:"
)

// Default keywords are past-tense action words: the filter keys on what the
// assistant reports it did, not on what the user asked for.
var defaultKeywords = []string{
	"created", "scheduled", "updated", "deleted", "cancelled", "completed",
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the log. Turns are immutable once recorded and are
// dropped only by eviction or Clear.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Window holds at most maxTurns recent turns plus an append-only summary of
// evicted turns that mentioned a configured keyword. It has no internal
// locking; it is driven by a single sequential conversation loop.
type Window struct {
	maxTurns int
	keywords []string
	turns    []Turn
	summary  strings.Builder

	now func() time.Time
}

// Snapshot is a read-only view for display and diagnostics. TotalTurns counts
// retained turns, not lifetime recordings.
type Snapshot struct {
	Turns      []Turn `json:"turns"`
	Summary    string `json:"summary"`
	TotalTurns int    `json:"total_turns"`
}

// NewWindow builds a window keeping at most maxTurns turns. Non-positive
// maxTurns falls back to the default; empty keywords fall back to the stock
// action words. Keyword matching is case-insensitive.
func NewWindow(maxTurns int, keywords []string) *Window {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	if len(lowered) == 0 {
		lowered = append(lowered, defaultKeywords...)
	}

	return &Window{
		maxTurns: maxTurns,
		keywords: lowered,
		now:      time.Now,
	}
}

// Record appends a turn with the current time, then evicts the oldest turns
// if the window is over its limit. The evicted batch feeds the summarizer.
// Content may be empty; only an unknown role is an error.
func (w *Window) Record(role Role, content string) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("invalid role %q", role)
	}

	w.turns = append(w.turns, Turn{
		Role:      role,
		Content:   content,
		Timestamp: w.now().UTC(),
	})

	if over := len(w.turns) - w.maxTurns; over > 0 {
		evicted := make([]Turn, over)
		copy(evicted, w.turns[:over])
		w.turns = append(w.turns[:0], w.turns[over:]...)
		w.summarize(evicted)
	}
	return nil
}

// summarize folds the keyword-bearing contents of an evicted batch into the
// summary. Batches with no match leave the summary untouched. The summary
// never shrinks until Clear; over a long enough session it grows without
// bound, which is accepted here because capping it would change the rendered
// prompt text.
func (w *Window) summarize(evicted []Turn) {
	var matched []string
	for _, turn := range evicted {
		content := strings.ToLower(turn.Content)
		for _, kw := range w.keywords {
			if strings.Contains(content, kw) {
				matched = append(matched, turn.Content)
				break
			}
		}
	}
	if len(matched) == 0 {
		return
	}
	w.summary.WriteString(summaryLeadIn)
	w.summary.WriteString(strings.Join(matched, summarySeparator))
	w.summary.WriteString(summaryTerminator)
}

// Render produces the context block embedded in the next prompt: the summary
// section if any, a blank line, then the retained turns as "role: content"
// lines in chronological order. An empty window renders to an empty string.
func (w *Window) Render() string {
	summary := w.summary.String()
	if summary == "" && len(w.turns) == 0 {
		return ""
	}

	var b strings.Builder
	if summary != "" {
		b.WriteString(summaryLabel)
		b.WriteString("\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}
	if len(w.turns) > 0 {
		b.WriteString(recentLabel)
		b.WriteString("\n")
		for _, turn := range w.turns {
			b.WriteString(string(turn.Role))
			b.WriteString(": ")
			b.WriteString(turn.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (w *Window) Snapshot() Snapshot {
	turns := make([]Turn, len(w.turns))
	copy(turns, w.turns)
	return Snapshot{
		Turns:      turns,
		Summary:    w.summary.String(),
		TotalTurns: len(w.turns),
	}
}

// Clear drops both the retained turns and the summary.
func (w *Window) Clear() {
	w.turns = nil
	w.summary.Reset()
}
