// Package chat drives the terminal conversation: it feeds user input plus
// the rendered context window to the model, parses the model's tool
// decision, and executes it against the task server.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mveroni/taskpilot/internal/brain"
	"github.com/mveroni/taskpilot/internal/convo"
	"github.com/mveroni/taskpilot/internal/timeparse"
)

// Completer produces a model reply for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ToolCaller executes one named tool and returns the envelope.
type ToolCaller interface {
	Call(ctx context.Context, sessionID, name string, args map[string]any) (map[string]any, error)
}

// Session identifies one CLI run. It is built once at startup and passed in
// explicitly; there is no package-level session state.
type Session struct {
	ID        string
	ServerID  string // session id issued by the server, empty if the handshake failed
	User      string
	StartedAt time.Time
}

func NewSession(user, serverID string) Session {
	if strings.TrimSpace(user) == "" {
		user = "anonymous"
	}
	return Session{
		ID:        uuid.NewString(),
		ServerID:  serverID,
		User:      user,
		StartedAt: time.Now().UTC(),
	}
}

type Loop struct {
	session Session
	window  *convo.Window
	brain   Completer
	tools   ToolCaller
	out     io.Writer

	now func() time.Time
}

func NewLoop(session Session, window *convo.Window, completer Completer, tools ToolCaller, out io.Writer) *Loop {
	return &Loop{
		session: session,
		window:  window,
		brain:   completer,
		tools:   tools,
		out:     out,
		now:     time.Now,
	}
}

// Run reads lines until EOF or /quit. Window commands are handled locally;
// everything else goes through HandleLine. Failures inside a turn are
// reported and recorded, never fatal.
func (l *Loop) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(l.out, "taskpilot ready (user %s). /quit to exit, //clear to reset context, //context to inspect it.\n", l.session.User)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for {
		fmt.Fprint(l.out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "//clear":
			l.window.Clear()
			fmt.Fprintln(l.out, "Context cleared.")
			continue
		case line == "//context":
			if rendered := l.window.Render(); rendered == "" {
				fmt.Fprintln(l.out, "(context empty)")
			} else {
				fmt.Fprintln(l.out, rendered)
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		l.HandleLine(ctx, line)
	}
	return scanner.Err()
}

// HandleLine runs one conversation turn: record the user input, ask the
// model for a tool decision against the rendered window, execute it, and
// record what happened. Every failure path still records an assistant turn
// so later turns keep context of the failure.
func (l *Loop) HandleLine(ctx context.Context, line string) {
	if err := l.window.Record(convo.RoleUser, line); err != nil {
		l.report(fmt.Sprintf("could not record input: %v", err))
		return
	}

	reply, err := l.brain.Complete(ctx, l.buildPrompt(line))
	if err != nil {
		l.fail(fmt.Sprintf("model call failed: %v", err))
		return
	}

	decision, err := brain.ParseDecision(reply)
	if err != nil {
		l.fail(fmt.Sprintf("could not understand the model reply: %v", err))
		return
	}

	if len(decision.MissingInfo) > 0 {
		msg := "I need more information: " + strings.Join(decision.MissingInfo, ", ")
		l.respond(msg)
		return
	}

	l.normalizeDue(decision.Parameters)

	envelope, err := l.tools.Call(ctx, l.session.ServerID, decision.Action, decision.Parameters)
	if err != nil {
		l.fail(fmt.Sprintf("tool call failed: %v", err))
		return
	}

	l.respond(formatEnvelope(decision, envelope))
}

// normalizeDue rewrites a natural-language "due" argument into RFC 3339 so
// the server does not have to guess the client's reference time.
func (l *Loop) normalizeDue(params map[string]any) {
	raw, ok := params["due"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	if resolved, ok := timeparse.Resolve(raw, l.now()); ok {
		params["due"] = resolved.UTC().Format(time.RFC3339)
	}
}

const promptPreamble = `You are a task assistant. Decide which tool to call for the user's request and answer with a single JSON object:
{"action": "<tool name>", "parameters": {...}, "explanation": "<one sentence>"}
If required information is missing, add "missing_info": ["<question>", ...] instead of guessing.
Tools: create_task(title, notes?, due?, priority?), list_tasks(status?, limit?), search_tasks(query, limit?), update_task(task_id, title?, notes?, due?, clear_due?, priority?, status?), delete_task(task_id).`

func (l *Loop) buildPrompt(line string) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\n")
	if rendered := l.window.Render(); rendered != "" {
		b.WriteString(rendered)
		b.WriteString("\n")
	}
	b.WriteString("user request: ")
	b.WriteString(line)
	return b.String()
}

// respond prints a message and records it as the assistant turn.
func (l *Loop) respond(msg string) {
	fmt.Fprintln(l.out, msg)
	if err := l.window.Record(convo.RoleAssistant, msg); err != nil {
		l.report(fmt.Sprintf("could not record reply: %v", err))
	}
}

// fail reports an error to the user and records it so the window keeps
// context of the failure. The loop continues.
func (l *Loop) fail(msg string) {
	l.report(msg)
	_ = l.window.Record(convo.RoleAssistant, "error: "+msg)
}

func (l *Loop) report(msg string) {
	fmt.Fprintln(l.out, "! "+msg)
}

func formatEnvelope(decision brain.Decision, envelope map[string]any) string {
	if ok, _ := envelope["success"].(bool); !ok {
		msg, _ := envelope["error"].(string)
		if msg == "" {
			msg = "unknown tool error"
		}
		return fmt.Sprintf("The server rejected %s: %s", decision.Action, msg)
	}

	var b strings.Builder
	if decision.Explanation != "" {
		b.WriteString(decision.Explanation)
		b.WriteString("\n")
	}
	switch {
	case envelope["task"] != nil:
		if task, ok := envelope["task"].(map[string]any); ok {
			b.WriteString(formatTask(task))
		}
	case envelope["tasks"] != nil:
		tasks, _ := envelope["tasks"].([]any)
		if len(tasks) == 0 {
			b.WriteString("No tasks found.")
			break
		}
		fmt.Fprintf(&b, "%d task(s):\n", len(tasks))
		for _, entry := range tasks {
			if task, ok := entry.(map[string]any); ok {
				b.WriteString("  - ")
				b.WriteString(formatTask(task))
				b.WriteString("\n")
			}
		}
	case envelope["message"] != nil:
		msg, _ := envelope["message"].(string)
		b.WriteString(msg)
	default:
		b.WriteString("Done.")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTask(task map[string]any) string {
	title, _ := task["title"].(string)
	status, _ := task["status"].(string)
	priority, _ := task["priority"].(string)

	parts := []string{fmt.Sprintf("%q [%s/%s]", title, status, priority)}
	if due, ok := task["due_at"].(string); ok && due != "" {
		parts = append(parts, "due "+due)
	}
	if id, ok := task["id"].(string); ok && id != "" {
		parts = append(parts, "id "+id)
	}
	return strings.Join(parts, ", ")
}
