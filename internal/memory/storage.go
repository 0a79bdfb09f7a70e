// Package memory validates and dispatches agent memory operations,
// enforcing the access policy before anything reaches storage.
package memory

import (
	"context"
	"time"
)

// Snapshot is the latest stored memory blob for a (user, agent) pair.
type Snapshot struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Agent      string    `json:"agent"`
	MemoryType string    `json:"memory_type"`
	Content    string    `json:"content"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SummaryEntry is one tagged summary-log row, used for emotional memory.
type SummaryEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	EmotionalTone string    `json:"emotional_tone"`
	Confidence    float64   `json:"confidence"`
	Summary       string    `json:"summary"`
	Tags          []string  `json:"tags"`
}

// Storage is the collaborator that actually persists memory. The manager
// issues only these logical queries, never raw storage commands. A nil
// snapshot with a nil error means "nothing stored yet".
type Storage interface {
	LatestSnapshot(ctx context.Context, userID, agent string) (*Snapshot, error)
	TaggedSummaries(ctx context.Context, userID string, since *time.Time, limit int) ([]SummaryEntry, error)
	WriteMemory(ctx context.Context, userID, agent, memoryType, path string, data any) error
	UpdateMemory(ctx context.Context, userID, agent, memoryType, path string, data any) error
	DeleteMemory(ctx context.Context, userID, agent, memoryType, path string) error
}

// Unbacked is a Storage with no database behind it, used when persistence
// is unavailable. Reads see no data and writes are dropped.
type Unbacked struct{}

func (Unbacked) LatestSnapshot(ctx context.Context, userID, agent string) (*Snapshot, error) {
	return nil, nil
}

func (Unbacked) TaggedSummaries(ctx context.Context, userID string, since *time.Time, limit int) ([]SummaryEntry, error) {
	return nil, nil
}

func (Unbacked) WriteMemory(ctx context.Context, userID, agent, memoryType, path string, data any) error {
	return nil
}

func (Unbacked) UpdateMemory(ctx context.Context, userID, agent, memoryType, path string, data any) error {
	return nil
}

func (Unbacked) DeleteMemory(ctx context.Context, userID, agent, memoryType, path string) error {
	return nil
}
