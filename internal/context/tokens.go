// Package context keeps conversation history inside a model's token budget.
// Token counts are a deterministic heuristic, not a real tokenizer: the same
// input always estimates the same cost, which is what the packing logic
// needs for reproducible decisions.
package context

import "regexp"

var (
	wordRe       = regexp.MustCompile(`\b\w+\b`)
	punctRe      = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Message is one chat turn, shaped for an LLM request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// EstimateTokens estimates the token cost of a text: 0.75 per word, 1 per
// punctuation character, 0.25 per whitespace run, truncated to an int.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(wordRe.FindAllString(text, -1))
	punct := len(punctRe.FindAllString(text, -1))
	whitespace := len(whitespaceRe.FindAllString(text, -1))
	return int(float64(words)*0.75 + float64(punct) + float64(whitespace)*0.25)
}

// messageOverhead is the flat per-message formatting cost.
const messageOverhead = 4

// EstimateMessageTokens estimates one message including its formatting
// overhead. A message without role or content degrades to overhead-only
// cost rather than failing.
func EstimateMessageTokens(msg Message) int {
	total := messageOverhead + EstimateTokens(msg.Content) + len(msg.Role)/4
	if msg.Name != "" {
		total += len(msg.Name) / 4
	}
	return total
}

// EstimateMessagesTokens estimates the total cost of a message list.
func EstimateMessagesTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateMessageTokens(m)
	}
	return total
}
