package context

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestManager(t *testing.T, maxTokens, buffer int) *Manager {
	t.Helper()
	m, err := NewManager("gpt-4", maxTokens, buffer, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNewManagerRejectsNegativeLimit(t *testing.T) {
	if _, err := NewManager("gpt-4", 100, 200, nil, zap.NewNop()); err == nil {
		t.Fatal("expected error when buffer exceeds max tokens")
	}
}

func TestNewManagerModelLookup(t *testing.T) {
	m, err := NewManager("claude-2", 0, 1000, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.EffectiveLimit() != 99000 {
		t.Errorf("got effective limit %d, want 99000", m.EffectiveLimit())
	}

	m, err = NewManager("unknown-model", 0, 1000, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.EffectiveLimit() != DefaultMaxTokens-1000 {
		t.Errorf("got effective limit %d, want %d", m.EffectiveLimit(), DefaultMaxTokens-1000)
	}
}

func TestFitToWindowIdentityUnderBudget(t *testing.T) {
	m := newTestManager(t, 1000, 0)
	msgs := []Message{
		{Role: "system", Content: "You are helpful"},
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello!"},
	}

	got := m.FitToWindow(msgs, true, nil)
	if len(got) != len(msgs) {
		t.Fatalf("got %d messages, want %d unchanged", len(got), len(msgs))
	}
	for i := range msgs {
		if got[i] != msgs[i] {
			t.Errorf("message %d reordered or altered: got %+v, want %+v", i, got[i], msgs[i])
		}
	}
}

func TestFitToWindowKeepsNewestTurns(t *testing.T) {
	// Each message: content "aaaa bbbb" estimates to 1 token; greedy cost
	// is 1+4=5, full cost 6 (user) / 7 (assistant).
	msgs := []Message{
		{Role: "user", Content: "one uno"},
		{Role: "assistant", Content: "two dos"},
		{Role: "user", Content: "three tres"},
		{Role: "assistant", Content: "four cuatro"},
	}
	m := newTestManager(t, 13, 0)

	got := m.FitToWindow(msgs, true, nil)
	want := []Message{msgs[2], msgs[3]}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %+v, want newest turns %+v in original order", got, want)
	}
}

func TestFitToWindowPreservesImportant(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "goal one"},
		{Role: "assistant", Content: "noted ok"},
		{Role: "user", Content: "query two"},
		{Role: "assistant", Content: "reply two"},
	}
	m := newTestManager(t, 19, 0)

	got := m.FitToWindow(msgs, true, []int{0})
	if len(got) == 0 || got[0] != msgs[0] {
		t.Fatalf("important message not kept at its position: %+v", got)
	}
	for _, msg := range got {
		if msg == msgs[1] {
			t.Errorf("oldest unimportant turn should have been dropped: %+v", got)
		}
	}
}

func TestFitToWindowSummaryFallback(t *testing.T) {
	msgs := []Message{
		{Role: "system", Content: "You are helpful"},
		{Role: "user", Content: "Hi"},
	}
	m := newTestManager(t, 5, 0)

	got := m.FitToWindow(msgs, true, nil)
	if len(got) == 0 {
		t.Fatal("expected non-empty fallback result")
	}

	foundOriginalSystem := false
	foundSummary := false
	for _, msg := range got {
		if msg == msgs[0] {
			foundOriginalSystem = true
		}
		if msg.Role == "system" && strings.HasPrefix(msg.Content, "Earlier conversation summary:") {
			foundSummary = true
		}
	}
	if !foundOriginalSystem {
		t.Error("original system message missing from fallback output")
	}
	if !foundSummary {
		t.Error("summary system message missing from fallback output")
	}
	// system messages + summary + at most the last 4 originals
	if len(got) > 1+1+4 {
		t.Errorf("fallback kept too many messages: %d", len(got))
	}
}

// The fallback tier keeps only system messages, a summary, and the last
// few turns; earlier important messages are lost there.
func TestSummaryFallbackDropsEarlyImportant(t *testing.T) {
	msgs := []Message{
		{Role: "system", Content: "You are a memory-aware assistant"},
		{Role: "user", Content: "first pinned message"},
		{Role: "user", Content: "second pinned message"},
		{Role: "user", Content: "third pinned message"},
		{Role: "user", Content: "fourth pinned message"},
		{Role: "user", Content: "fifth pinned message"},
	}
	m := newTestManager(t, 5, 0)

	got := m.FitToWindow(msgs, true, []int{1, 2, 3, 4, 5})
	for _, msg := range got {
		if msg == msgs[1] {
			t.Fatalf("earliest pinned message survived the fallback tier: %+v", got)
		}
	}
	for _, want := range msgs[2:] {
		if !containsMessage(got, want) {
			t.Errorf("recent pinned message lost: %+v", want)
		}
	}
}

func TestSummarizeHistory(t *testing.T) {
	long := strings.Repeat("x", 150)
	msgs := []Message{
		{Role: "system", Content: "skipped"},
		{Role: "user", Content: "short"},
		{Role: "assistant", Content: long},
		{Role: "user", Content: "three"},
		{Role: "user", Content: "four"},
		{Role: "user", Content: "five"},
	}

	got := summarizeHistory(msgs)
	if !strings.HasPrefix(got, "This conversation covered: user: short; assistant: ") {
		t.Errorf("unexpected summary prefix: %q", got)
	}
	if !strings.Contains(got, strings.Repeat("x", 100)+"...") {
		t.Error("long content should be truncated to 100 chars with ellipsis")
	}
	if strings.Contains(got, "skipped") {
		t.Error("system messages must not appear in the summary")
	}
	if !strings.HasSuffix(got, "(plus 2 more messages)") {
		t.Errorf("expected overflow count suffix, got %q", got)
	}
}

func TestPrioritizeContextByTimestamp(t *testing.T) {
	m := newTestManager(t, 8192, 1000)
	items := []map[string]any{
		{"note": "oldest", "timestamp": "2026-01-01T00:00:00Z"},
		{"note": "newest", "timestamp": "2026-03-01T00:00:00Z"},
		{"note": "middle", "timestamp": "2026-02-01T00:00:00Z"},
	}

	got := m.PrioritizeContext(items, 0, nil)
	if len(got) != 3 {
		t.Fatalf("got %d items, want 3", len(got))
	}
	order := []string{"newest", "middle", "oldest"}
	for i, want := range order {
		if got[i]["note"] != want {
			t.Errorf("position %d: got %v, want %s", i, got[i]["note"], want)
		}
	}
}

func TestPrioritizeContextBudgetStop(t *testing.T) {
	m := newTestManager(t, 8192, 1000)
	items := []map[string]any{
		{"note": "a", "timestamp": "2026-03-01T00:00:00Z"},
		{"note": "b", "timestamp": "2026-02-01T00:00:00Z"},
		{"note": "c", "timestamp": "2026-01-01T00:00:00Z"},
	}

	// Each serialized item costs well over 5 tokens; only the first fits a
	// budget of twice that cost minus one.
	cost := EstimateTokens(`{"note":"a","timestamp":"2026-03-01T00:00:00Z"}`)
	got := m.PrioritizeContext(items, 2*cost-1, nil)
	if len(got) != 1 {
		t.Fatalf("got %d items, want 1", len(got))
	}
	if got[0]["note"] != "a" {
		t.Errorf("got %v, want the newest item", got[0]["note"])
	}
}

func TestPrioritizeContextWithPriorityFn(t *testing.T) {
	m := newTestManager(t, 8192, 1000)
	items := []map[string]any{
		{"note": "low", "priority": 1.0, "timestamp": "2026-03-01T00:00:00Z"},
		{"note": "high", "priority": 9.0, "timestamp": "2026-01-01T00:00:00Z"},
	}

	got := m.PrioritizeContext(items, 0, func(item map[string]any) float64 {
		p, _ := item["priority"].(float64)
		return p
	})
	if len(got) != 2 || got[0]["note"] != "high" {
		t.Fatalf("priority function should outrank recency: %+v", got)
	}
}
