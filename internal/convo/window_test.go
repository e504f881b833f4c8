package convo

import (
	"strings"
	"testing"
	"time"
)

func TestRecordRejectsUnknownRole(t *testing.T) {
	w := NewWindow(3, nil)
	if err := w.Record("system", "hello"); err == nil {
		t.Fatalf("Record with unknown role error = nil, want error")
	}
	if got := w.Snapshot().TotalTurns; got != 0 {
		t.Fatalf("TotalTurns after rejected record = %d, want 0", got)
	}
}

func TestRecordAllowsEmptyContent(t *testing.T) {
	w := NewWindow(3, nil)
	if err := w.Record(RoleUser, ""); err != nil {
		t.Fatalf("Record with empty content error = %v, want nil", err)
	}
	if got := w.Snapshot().TotalTurns; got != 1 {
		t.Fatalf("TotalTurns = %d, want 1", got)
	}
}

func TestBoundHoldsAfterEveryRecord(t *testing.T) {
	w := NewWindow(4, nil)
	for i := 0; i < 25; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if err := w.Record(role, "turn"); err != nil {
			t.Fatalf("Record error = %v", err)
		}
		if got := w.Snapshot().TotalTurns; got > 4 {
			t.Fatalf("TotalTurns after record %d = %d, want <= 4", i, got)
		}
	}
}

func TestEvictionKeepsMostRecentInOrder(t *testing.T) {
	w := NewWindow(3, nil)
	contents := []string{"one", "two", "three", "four", "five"}
	for _, c := range contents {
		if err := w.Record(RoleUser, c); err != nil {
			t.Fatalf("Record error = %v", err)
		}
	}

	snap := w.Snapshot()
	want := []string{"three", "four", "five"}
	if len(snap.Turns) != len(want) {
		t.Fatalf("retained turns = %d, want %d", len(snap.Turns), len(want))
	}
	for i, c := range want {
		if snap.Turns[i].Content != c {
			t.Fatalf("turn[%d] = %q, want %q", i, snap.Turns[i].Content, c)
		}
	}
}

func TestEvictionWithoutKeywordLeavesSummaryEmpty(t *testing.T) {
	w := NewWindow(3, nil)
	steps := []struct {
		role    Role
		content string
	}{
		{RoleUser, "Schedule a meeting"},
		{RoleAssistant, "created the meeting"},
		{RoleUser, "show tasks"},
		{RoleAssistant, "found 1 task"},
	}
	for _, s := range steps {
		if err := w.Record(s.role, s.content); err != nil {
			t.Fatalf("Record error = %v", err)
		}
	}

	snap := w.Snapshot()
	if snap.TotalTurns != 3 {
		t.Fatalf("TotalTurns = %d, want 3", snap.TotalTurns)
	}
	if snap.Summary != "" {
		t.Fatalf("Summary = %q, want empty", snap.Summary)
	}
	if snap.Turns[0].Content != "created the meeting" {
		t.Fatalf("oldest retained turn = %q, want %q", snap.Turns[0].Content, "created the meeting")
	}
}

func TestEvictionWithKeywordAppendsSummary(t *testing.T) {
	w := NewWindow(3, nil)
	steps := []struct {
		role    Role
		content string
	}{
		{RoleAssistant, "created the meeting"},
		{RoleUser, "show tasks"},
		{RoleAssistant, "found 1 task"},
		{RoleUser, "thanks"},
	}
	for _, s := range steps {
		if err := w.Record(s.role, s.content); err != nil {
			t.Fatalf("Record error = %v", err)
		}
	}

	snap := w.Snapshot()
	if snap.Summary == "" {
		t.Fatalf("Summary empty, want non-empty after keyword eviction")
	}
	if !strings.Contains(snap.Summary, "created the meeting") {
		t.Fatalf("Summary = %q, want it to contain %q", snap.Summary, "created the meeting")
	}
}

func TestSuccessiveEvictionsEachAppend(t *testing.T) {
	w := NewWindow(2, nil)
	if err := w.Record(RoleAssistant, "created task A"); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	if err := w.Record(RoleAssistant, "deleted task B"); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	if err := w.Record(RoleUser, "ok"); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	if err := w.Record(RoleUser, "ok again"); err != nil {
		t.Fatalf("Record error = %v", err)
	}

	summary := w.Snapshot().Summary
	if !strings.Contains(summary, "created task A") {
		t.Fatalf("Summary = %q, missing first evicted match", summary)
	}
	if !strings.Contains(summary, "deleted task B") {
		t.Fatalf("Summary = %q, missing second evicted match", summary)
	}
}

func TestSummaryOnlyGrows(t *testing.T) {
	w := NewWindow(1, nil)
	if err := w.Record(RoleAssistant, "created alpha"); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	if err := w.Record(RoleAssistant, "updated beta"); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	first := w.Snapshot().Summary
	if err := w.Record(RoleUser, "bye"); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	second := w.Snapshot().Summary

	if !strings.HasPrefix(second, first) {
		t.Fatalf("Summary shrank or rewrote: first %q, second %q", first, second)
	}
	if len(second) <= len(first) {
		t.Fatalf("Summary did not grow: first %q, second %q", first, second)
	}
}

func TestRenderEmptyWindow(t *testing.T) {
	w := NewWindow(3, nil)
	if got := w.Render(); got != "" {
		t.Fatalf("Render on empty window = %q, want empty", got)
	}
}

func TestRenderOrdersSummaryBeforeTurns(t *testing.T) {
	w := NewWindow(1, nil)
	if err := w.Record(RoleAssistant, "created alpha"); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	if err := w.Record(RoleUser, "what next"); err != nil {
		t.Fatalf("Record error = %v", err)
	}

	out := w.Render()
	sumIdx := strings.Index(out, summaryLabel)
	recIdx := strings.Index(out, recentLabel)
	if sumIdx == -1 || recIdx == -1 {
		t.Fatalf("Render = %q, want both section labels", out)
	}
	if sumIdx > recIdx {
		t.Fatalf("Render places summary after recent block: %q", out)
	}
	if !strings.Contains(out, "user: what next") {
		t.Fatalf("Render = %q, want %q line", out, "user: what next")
	}
}

func TestClearResetsEverything(t *testing.T) {
	w := NewWindow(1, nil)
	if err := w.Record(RoleAssistant, "created alpha"); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	if err := w.Record(RoleUser, "more"); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	w.Clear()

	if got := w.Render(); got != "" {
		t.Fatalf("Render after Clear = %q, want empty", got)
	}
	snap := w.Snapshot()
	if snap.TotalTurns != 0 || snap.Summary != "" {
		t.Fatalf("Snapshot after Clear = %+v, want empty", snap)
	}
}

func TestConfiguredKeywordsReplaceDefaults(t *testing.T) {
	w := NewWindow(1, []string{"archived"})
	if err := w.Record(RoleAssistant, "created alpha"); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	if err := w.Record(RoleAssistant, "ARCHIVED beta"); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	if got := w.Snapshot().Summary; got != "" {
		t.Fatalf("Summary after non-matching eviction = %q, want empty", got)
	}

	if err := w.Record(RoleUser, "done"); err != nil {
		t.Fatalf("Record error = %v", err)
	}
	if got := w.Snapshot().Summary; !strings.Contains(got, "ARCHIVED beta") {
		t.Fatalf("Summary = %q, want case-insensitive match on configured keyword", got)
	}
}

func TestTimestampsAreMonotonicNonDecreasing(t *testing.T) {
	w := NewWindow(5, nil)
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	step := 0
	w.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	for i := 0; i < 4; i++ {
		if err := w.Record(RoleUser, "tick"); err != nil {
			t.Fatalf("Record error = %v", err)
		}
	}
	snap := w.Snapshot()
	for i := 1; i < len(snap.Turns); i++ {
		if snap.Turns[i].Timestamp.Before(snap.Turns[i-1].Timestamp) {
			t.Fatalf("timestamps out of order: %v before %v", snap.Turns[i].Timestamp, snap.Turns[i-1].Timestamp)
		}
	}
}
