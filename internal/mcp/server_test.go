package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mveroni/taskpilot/internal/observability"
	"github.com/mveroni/taskpilot/internal/session"
	"github.com/mveroni/taskpilot/internal/tasks"
)

func newTestServer(t *testing.T) (*httptest.Server, *tasks.Manager) {
	t.Helper()
	manager := tasks.NewManager()
	sessions := session.NewManager(time.Minute)
	metrics := observability.NewMetrics(fmt.Sprintf("test_mcp_%d", time.Now().UnixNano()))
	srv := NewServer(sessions, NewGateway(manager), metrics)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, manager
}

func callTool(t *testing.T, ts *httptest.Server, body map[string]any) map[string]any {
	t.Helper()
	payload, _ := json.Marshal(body)
	res, err := http.Post(ts.URL+"/tools/call", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("tools/call request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("tools/call status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return out
}

func TestListToolsCatalog(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/tools")
	if err != nil {
		t.Fatalf("GET /tools error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET /tools status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(payload.Tools) != 5 {
		t.Fatalf("catalog size = %d, want 5", len(payload.Tools))
	}
	for _, tool := range payload.Tools {
		if tool.InputSchema == nil {
			t.Fatalf("tool %q missing input schema", tool.Name)
		}
	}
}

func TestCallToolCreateAndDeleteEnvelopes(t *testing.T) {
	ts, _ := newTestServer(t)

	created := callTool(t, ts, map[string]any{
		"name":      ToolCreateTask,
		"arguments": map[string]any{"title": "buy milk", "due": "2026-09-01T17:00:00Z"},
	})
	if created["success"] != true {
		t.Fatalf("create envelope = %v, want success", created)
	}
	task, ok := created["task"].(map[string]any)
	if !ok {
		t.Fatalf("create envelope missing task object: %v", created)
	}
	taskID, _ := task["id"].(string)
	if taskID == "" {
		t.Fatalf("create envelope task id empty: %v", task)
	}

	deleted := callTool(t, ts, map[string]any{
		"name":      ToolDeleteTask,
		"arguments": map[string]any{"task_id": taskID},
	})
	if deleted["success"] != true {
		t.Fatalf("delete envelope = %v, want success", deleted)
	}
	if _, ok := deleted["message"].(string); !ok {
		t.Fatalf("delete envelope missing message: %v", deleted)
	}
	if _, ok := deleted["task"]; ok {
		t.Fatalf("delete envelope should carry only a message: %v", deleted)
	}
}

func TestCallToolListAndSearchEnvelopes(t *testing.T) {
	ts, manager := newTestServer(t)
	for _, title := range []string{"buy milk", "call dentist"} {
		if _, err := manager.Create(context.Background(), tasks.CreateRequest{Title: title}); err != nil {
			t.Fatalf("seed task: %v", err)
		}
	}

	listed := callTool(t, ts, map[string]any{"name": ToolListTasks, "arguments": map[string]any{}})
	if listed["success"] != true {
		t.Fatalf("list envelope = %v, want success", listed)
	}
	if got, ok := listed["tasks"].([]any); !ok || len(got) != 2 {
		t.Fatalf("list envelope tasks = %v, want 2 entries", listed["tasks"])
	}

	found := callTool(t, ts, map[string]any{
		"name":      ToolSearchTask,
		"arguments": map[string]any{"query": "dentist"},
	})
	if got, ok := found["tasks"].([]any); !ok || len(got) != 1 {
		t.Fatalf("search envelope tasks = %v, want 1 entry", found["tasks"])
	}
}

func TestCallToolDomainFailuresStayInEnvelope(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := []map[string]any{
		{"name": "explode_task", "arguments": map[string]any{}},
		{"name": ToolCreateTask, "arguments": map[string]any{}},
		{"name": ToolUpdateTask, "arguments": map[string]any{"task_id": "missing"}},
		{"name": ToolCreateTask, "arguments": map[string]any{"title": "x", "due": "whenever"}},
	}
	for _, body := range cases {
		out := callTool(t, ts, body)
		if out["success"] != false {
			t.Fatalf("envelope for %v = %v, want success=false", body, out)
		}
		if msg, _ := out["error"].(string); msg == "" {
			t.Fatalf("envelope for %v missing error string", body)
		}
	}
}

func TestCallToolSessionTracking(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Post(ts.URL+"/session", "application/json", bytes.NewReader([]byte(`{"client_name":"cli"}`)))
	if err != nil {
		t.Fatalf("create session error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var sess struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.SessionID == "" {
		t.Fatalf("session id empty")
	}

	out := callTool(t, ts, map[string]any{
		"session_id": sess.SessionID,
		"name":       ToolListTasks,
		"arguments":  map[string]any{},
	})
	if out["success"] != true {
		t.Fatalf("call with session = %v, want success", out)
	}

	// Unknown sessions are a transport-level 404, not an envelope error.
	payload, _ := json.Marshal(map[string]any{
		"session_id": "nope",
		"name":       ToolListTasks,
	})
	badRes, err := http.Post(ts.URL+"/tools/call", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("stale session request error = %v", err)
	}
	defer badRes.Body.Close()
	if badRes.StatusCode != http.StatusNotFound {
		t.Fatalf("stale session status = %d, want %d", badRes.StatusCode, http.StatusNotFound)
	}
}
