package context

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Manager packs message lists into a model's effective token limit
// (maximum minus a reserved response buffer). It is pure and synchronous;
// a single Manager can serve concurrent requests.
type Manager struct {
	model          string
	maxTokens      int
	bufferTokens   int
	effectiveLimit int
	logger         *zap.Logger
}

// NewManager creates a manager for the given model. A non-positive
// maxTokens falls back to the budget table. The effective limit must not be
// negative.
func NewManager(model string, maxTokens, bufferTokens int, budgets Budgets, logger *zap.Logger) (*Manager, error) {
	if budgets == nil {
		budgets = DefaultBudgets()
	}
	if maxTokens <= 0 {
		maxTokens = budgets.MaxTokensFor(model)
	}
	effective := maxTokens - bufferTokens
	if effective < 0 {
		return nil, fmt.Errorf("context window for %s: buffer %d exceeds max tokens %d", model, bufferTokens, maxTokens)
	}
	m := &Manager{
		model:          model,
		maxTokens:      maxTokens,
		bufferTokens:   bufferTokens,
		effectiveLimit: effective,
		logger:         logger,
	}
	logger.Debug("context window manager initialized",
		zap.String("model", model),
		zap.Int("max_tokens", maxTokens),
		zap.Int("buffer_tokens", bufferTokens),
		zap.Int("effective_limit", effective))
	return m, nil
}

// EffectiveLimit returns the usable token budget.
func (m *Manager) EffectiveLimit() int { return m.effectiveLimit }

// FitToWindow trims a conversation so it fits the effective limit. Input
// already under budget is returned unchanged. Otherwise system and
// important-indexed messages are kept, the newest user/assistant turns are
// greedily added, and original relative order is restored. If the kept set
// still overflows, everything except the system messages collapses into a
// one-message summary plus the last few turns.
func (m *Manager) FitToWindow(messages []Message, includeSystemPrompt bool, importantIndices []int) []Message {
	estimated := EstimateMessagesTokens(messages)
	if estimated <= m.effectiveLimit {
		return messages
	}

	m.logger.Debug("messages exceed context window, trimming",
		zap.Int("estimated_tokens", estimated),
		zap.Int("effective_limit", m.effectiveLimit),
		zap.Int("message_count", len(messages)))

	important := make(map[int]bool, len(importantIndices))
	for _, i := range importantIndices {
		important[i] = true
	}

	var systemMsgs, userMsgs, assistantMsgs, otherMsgs, importantMsgs []Message
	for i, msg := range messages {
		switch {
		case important[i]:
			importantMsgs = append(importantMsgs, msg)
		case msg.Role == "system":
			systemMsgs = append(systemMsgs, msg)
		case msg.Role == "user":
			userMsgs = append(userMsgs, msg)
		case msg.Role == "assistant":
			assistantMsgs = append(assistantMsgs, msg)
		default:
			otherMsgs = append(otherMsgs, msg)
		}
	}

	var seed []Message
	if includeSystemPrompt {
		seed = append(seed, systemMsgs...)
	}
	seed = append(seed, importantMsgs...)
	tokensUsed := EstimateMessagesTokens(seed)

	// Interleave user/assistant turns newest-first and keep adding while
	// they fit. The first message that does not fit ends the scan; nothing
	// after it is considered.
	var paired []Message
	userIdx, assistantIdx := len(userMsgs)-1, len(assistantMsgs)-1
	for userIdx >= 0 || assistantIdx >= 0 {
		if userIdx >= 0 {
			paired = append(paired, userMsgs[userIdx])
			userIdx--
		}
		if assistantIdx >= 0 {
			paired = append(paired, assistantMsgs[assistantIdx])
			assistantIdx--
		}
	}

	var selected []Message
	for _, msg := range paired {
		cost := EstimateTokens(msg.Content) + messageOverhead
		if tokensUsed+cost > m.effectiveLimit {
			break
		}
		selected = append(selected, msg)
		tokensUsed += cost
	}
	for _, msg := range otherMsgs {
		cost := EstimateTokens(msg.Content) + messageOverhead
		if tokensUsed+cost > m.effectiveLimit {
			break
		}
		selected = append(selected, msg)
		tokensUsed += cost
	}

	// Rebuild original relative order: system and important messages at
	// their original positions, then everything selected, in input order.
	// Selection membership is by value, so duplicate-content messages all
	// ride along once any copy was selected.
	var ordered []Message
	processed := make(map[int]bool, len(messages))
	for i, msg := range messages {
		if msg.Role == "system" && includeSystemPrompt {
			ordered = append(ordered, msg)
			processed[i] = true
		} else if important[i] {
			ordered = append(ordered, msg)
			processed[i] = true
		}
	}
	for i, msg := range messages {
		if !processed[i] && containsMessage(selected, msg) {
			ordered = append(ordered, msg)
		}
	}

	if EstimateMessagesTokens(ordered) > m.effectiveLimit {
		return m.summaryFallback(ordered)
	}
	return ordered
}

// summaryFallback replaces the overflowing set with its system messages, a
// synthesized summary, and the most recent turns. Important messages that
// are not system-role do not survive this tier.
func (m *Manager) summaryFallback(ordered []Message) []Message {
	var result []Message
	for _, msg := range ordered {
		if msg.Role == "system" {
			result = append(result, msg)
		}
	}
	result = append(result, Message{
		Role:    "system",
		Content: "Earlier conversation summary: " + summarizeHistory(ordered),
	})
	preserved := len(ordered)
	if preserved > 4 {
		preserved = 4
	}
	result = append(result, ordered[len(ordered)-preserved:]...)

	m.logger.Debug("applied summary fallback",
		zap.Int("kept_recent", preserved),
		zap.Int("result_count", len(result)))
	return result
}

// summarizeHistory renders the non-system messages as short labeled
// snippets: the first three joined with "; ", plus a count of the rest.
func summarizeHistory(messages []Message) string {
	var points []string
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}
		snippet := msg.Content
		if runes := []rune(snippet); len(runes) > 100 {
			snippet = string(runes[:100]) + "..."
		}
		points = append(points, fmt.Sprintf("%s: %s", msg.Role, snippet))
	}

	head := points
	if len(head) > 3 {
		head = head[:3]
	}
	summary := "This conversation covered: " + strings.Join(head, "; ")
	if len(points) > 3 {
		summary += fmt.Sprintf(" (plus %d more messages)", len(points)-3)
	}
	return summary
}

func containsMessage(msgs []Message, target Message) bool {
	for _, m := range msgs {
		if m == target {
			return true
		}
	}
	return false
}

// PriorityFunc scores an item for PrioritizeContext; higher runs first.
type PriorityFunc func(item map[string]any) float64

// PrioritizeContext fits arbitrary context items (memories, notes, tool
// results) into a token budget. Items are ordered by priority then
// timestamp, both descending, and accepted greedily until the first one
// that would overflow. A non-positive maxTokens defaults to 30% of the
// effective limit.
func (m *Manager) PrioritizeContext(items []map[string]any, maxTokens int, priorityFn PriorityFunc) []map[string]any {
	if len(items) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		maxTokens = int(float64(m.effectiveLimit) * 0.3)
	}

	type scored struct {
		item   map[string]any
		tokens int
	}
	entries := make([]scored, 0, len(items))
	for _, item := range items {
		serialized, err := json.Marshal(item)
		if err != nil {
			serialized = []byte(fmt.Sprint(item))
		}
		entries = append(entries, scored{item: item, tokens: EstimateTokens(string(serialized))})
	}

	timestampOf := func(item map[string]any) string {
		ts, _ := item["timestamp"].(string)
		return ts
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if priorityFn != nil {
			pi, pj := priorityFn(entries[i].item), priorityFn(entries[j].item)
			if pi != pj {
				return pi > pj
			}
		}
		return timestampOf(entries[i].item) > timestampOf(entries[j].item)
	})

	var result []map[string]any
	tokensUsed := 0
	for _, e := range entries {
		if tokensUsed+e.tokens > maxTokens {
			break
		}
		result = append(result, e.item)
		tokensUsed += e.tokens
	}
	return result
}
