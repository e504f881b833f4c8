package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mveroni/taskpilot/internal/brain"
	"github.com/mveroni/taskpilot/internal/convo"
)

func decisionWith(action, explanation string) brain.Decision {
	return brain.Decision{Action: action, Explanation: explanation}
}

type stubCompleter struct {
	reply string
	err   error
}

func (s stubCompleter) Complete(context.Context, string) (string, error) {
	return s.reply, s.err
}

type recordingCaller struct {
	sessionID string
	name      string
	args      map[string]any
	envelope  map[string]any
	err       error
}

func (r *recordingCaller) Call(_ context.Context, sessionID, name string, args map[string]any) (map[string]any, error) {
	r.sessionID = sessionID
	r.name = name
	r.args = args
	return r.envelope, r.err
}

func newTestLoop(completer Completer, tools ToolCaller) (*Loop, *strings.Builder) {
	out := &strings.Builder{}
	sess := NewSession("tester", "sess-1")
	loop := NewLoop(sess, convo.NewWindow(10, nil), completer, tools, out)
	return loop, out
}

func TestHandleLineExecutesDecision(t *testing.T) {
	caller := &recordingCaller{
		envelope: map[string]any{
			"success": true,
			"task":    map[string]any{"id": "t1", "title": "buy milk", "status": "open", "priority": "normal"},
		},
	}
	loop, out := newTestLoop(stubCompleter{
		reply: `{"action":"create_task","parameters":{"title":"buy milk"},"explanation":"Creating the task."}`,
	}, caller)

	loop.HandleLine(context.Background(), "add buy milk")

	if caller.name != "create_task" {
		t.Fatalf("tool called = %q, want create_task", caller.name)
	}
	if caller.sessionID != "sess-1" {
		t.Fatalf("session id = %q, want sess-1", caller.sessionID)
	}
	if !strings.Contains(out.String(), "buy milk") {
		t.Fatalf("output = %q, want task title", out.String())
	}

	snap := loop.window.Snapshot()
	if snap.TotalTurns != 2 {
		t.Fatalf("window turns = %d, want user + assistant", snap.TotalTurns)
	}
	if snap.Turns[1].Role != convo.RoleAssistant {
		t.Fatalf("second turn role = %q, want assistant", snap.Turns[1].Role)
	}
}

func TestHandleLineNormalizesDueParameter(t *testing.T) {
	caller := &recordingCaller{envelope: map[string]any{"success": true, "task": map[string]any{"title": "x"}}}
	loop, _ := newTestLoop(stubCompleter{
		reply: `{"action":"create_task","parameters":{"title":"x","due":"tomorrow at 5pm"},"explanation":"ok"}`,
	}, caller)
	loop.now = func() time.Time {
		return time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	}

	loop.HandleLine(context.Background(), "remind me tomorrow at 5pm")

	due, _ := caller.args["due"].(string)
	if due != "2026-08-27T17:00:00Z" {
		t.Fatalf("normalized due = %q, want 2026-08-27T17:00:00Z", due)
	}
}

func TestHandleLineMissingInfoAsksInsteadOfCalling(t *testing.T) {
	caller := &recordingCaller{}
	loop, out := newTestLoop(stubCompleter{
		reply: `{"action":"create_task","parameters":{},"explanation":"", "missing_info":["what is the task title?"]}`,
	}, caller)

	loop.HandleLine(context.Background(), "make a task")

	if caller.name != "" {
		t.Fatalf("tool was called (%q), want no call when info is missing", caller.name)
	}
	if !strings.Contains(out.String(), "what is the task title?") {
		t.Fatalf("output = %q, want the missing-info question", out.String())
	}
}

func TestHandleLineModelFailureRecordsErrorTurn(t *testing.T) {
	caller := &recordingCaller{}
	loop, out := newTestLoop(stubCompleter{err: errors.New("connection refused")}, caller)

	loop.HandleLine(context.Background(), "hello")

	if !strings.Contains(out.String(), "model call failed") {
		t.Fatalf("output = %q, want model failure report", out.String())
	}
	snap := loop.window.Snapshot()
	if snap.TotalTurns != 2 {
		t.Fatalf("window turns = %d, want user + error turn", snap.TotalTurns)
	}
	if !strings.Contains(snap.Turns[1].Content, "error:") {
		t.Fatalf("recorded turn = %q, want error-describing content", snap.Turns[1].Content)
	}
}

func TestHandleLineUnparseableReplyRecordsErrorTurn(t *testing.T) {
	caller := &recordingCaller{}
	loop, out := newTestLoop(stubCompleter{reply: "sure, happy to help!"}, caller)

	loop.HandleLine(context.Background(), "hello")

	if caller.name != "" {
		t.Fatalf("tool was called (%q), want none on parse failure", caller.name)
	}
	if !strings.Contains(out.String(), "could not understand") {
		t.Fatalf("output = %q, want parse failure report", out.String())
	}
}

func TestHandleLineEnvelopeErrorIsReported(t *testing.T) {
	caller := &recordingCaller{envelope: map[string]any{"success": false, "error": "title is required"}}
	loop, out := newTestLoop(stubCompleter{
		reply: `{"action":"create_task","parameters":{"title":""},"explanation":"ok"}`,
	}, caller)

	loop.HandleLine(context.Background(), "add a task")

	if !strings.Contains(out.String(), "title is required") {
		t.Fatalf("output = %q, want envelope error surfaced", out.String())
	}
}

func TestRunHandlesWindowCommands(t *testing.T) {
	caller := &recordingCaller{envelope: map[string]any{"success": true, "message": "Deleted task \"x\"."}}
	loop, out := newTestLoop(stubCompleter{
		reply: `{"action":"delete_task","parameters":{"task_id":"t1"},"explanation":"ok"}`,
	}, caller)

	input := strings.NewReader("delete t1\n//context\n//clear\n//context\n/quit\n")
	if err := loop.Run(context.Background(), input); err != nil {
		t.Fatalf("Run error = %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "Deleted task") {
		t.Fatalf("output = %q, want delete message", text)
	}
	if !strings.Contains(text, "Recent conversation:") {
		t.Fatalf("output = %q, want rendered context before clear", text)
	}
	if !strings.Contains(text, "(context empty)") {
		t.Fatalf("output = %q, want empty context after clear", text)
	}
}

func TestFormatEnvelopeListsTasks(t *testing.T) {
	out := formatEnvelope(
		decisionWith("list_tasks", "Here are your tasks."),
		map[string]any{
			"success": true,
			"tasks": []any{
				map[string]any{"id": "a", "title": "one", "status": "open", "priority": "high"},
				map[string]any{"id": "b", "title": "two", "status": "done", "priority": "low"},
			},
		},
	)
	if !strings.Contains(out, "2 task(s)") {
		t.Fatalf("formatted = %q, want count line", out)
	}
	if !strings.Contains(out, `"one" [open/high]`) {
		t.Fatalf("formatted = %q, want first task line", out)
	}
}
