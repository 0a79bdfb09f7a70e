package context

// Budgets maps a model name to its maximum context size in tokens.
type Budgets map[string]int

// DefaultMaxTokens applies when the model is not in the budget table.
const DefaultMaxTokens = 4096

// DefaultBufferTokens is the default reserve for the model's response.
const DefaultBufferTokens = 1000

// DefaultBudgets returns the built-in model limits.
func DefaultBudgets() Budgets {
	return Budgets{
		"gpt-3.5-turbo":      4096,
		"gpt-3.5-turbo-16k":  16384,
		"gpt-4":              8192,
		"gpt-4-32k":          32768,
		"gpt-4-0613":         8192,
		"gpt-4-0125-preview": 128000,
		"claude-2":           100000,
		"claude-instant":     100000,
	}
}

// MaxTokensFor looks up a model's limit, falling back to the default.
func (b Budgets) MaxTokensFor(model string) int {
	if limit, ok := b[model]; ok {
		return limit
	}
	return DefaultMaxTokens
}
