package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/echomind/echomind/internal/policy"
	"github.com/echomind/echomind/internal/protocol"
)

// typeAliases maps memory type strings to their access-control category.
// A type not listed here is a hard error.
var typeAliases = map[string]policy.Category{
	"general":         policy.CategoryGeneral,
	"emotional":       policy.CategoryEmotional,
	"emotional_state": policy.CategoryEmotional,
	"personal":        policy.CategoryPersonal,
	"profile":         policy.CategoryPersonal,
	"medical":         policy.CategoryMedical,
	"health":          policy.CategoryMedical,
	"therapeutic":     policy.CategoryTherapeutic,
	"therapy":         policy.CategoryTherapeutic,
	"system":          policy.CategorySystem,
	"session":         policy.CategorySession,
	"conversation":    policy.CategorySession,
}

// defaultSummaryLimit caps emotional-memory reads when the caller gives
// no limit filter.
const defaultSummaryLimit = 10

// AccessManager handles memory access requests on behalf of agents. Every
// failure — validation, policy denial, storage error — comes back as a
// well-formed error response message; HandleRequest never returns an error
// to its caller.
type AccessManager struct {
	policy  *policy.Policy
	storage Storage
	logger  *zap.Logger
}

// NewAccessManager creates a manager enforcing the given policy over the
// given storage collaborator.
func NewAccessManager(pol *policy.Policy, storage Storage, logger *zap.Logger) *AccessManager {
	return &AccessManager{policy: pol, storage: storage, logger: logger}
}

// HandleRequest validates a memory access message, enforces policy, and
// dispatches to the operation handler. The reply is always a response
// message addressed to the sender, carrying either
// {"status": "success", "result": ...} or {"status": "error", "error": ...}.
func (m *AccessManager) HandleRequest(ctx context.Context, msg protocol.AgentMessage) protocol.AgentMessage {
	// Externally supplied messages may lack an id. The response always
	// carries a request id, so assign one before anything can fail.
	if msg.ID == "" {
		msg.ID = "msg_" + uuid.NewString()
	}

	if msg.Type != protocol.TypeMemoryAccess {
		return m.errorResponse(msg, fmt.Sprintf("Expected memory_access message, got %s", msg.Type))
	}

	operation := contentString(msg.Content, "operation")
	memoryType := contentString(msg.Content, "memory_type")
	path := contentString(msg.Content, "path")
	if operation == "" || memoryType == "" || path == "" {
		return m.errorResponse(msg, "Invalid memory request: missing required fields")
	}

	category, ok := typeAliases[strings.ToLower(memoryType)]
	if !ok {
		return m.errorResponse(msg, fmt.Sprintf("Unknown memory type: %s", memoryType))
	}

	op := protocol.Operation(strings.ToLower(operation))
	if !m.policy.CheckAccess(msg.Sender, category, op) {
		return m.errorResponse(msg, fmt.Sprintf("Access denied: %s cannot %s %s memory", msg.Sender, op, category))
	}

	var result any
	var err error
	switch op {
	case protocol.OpRead:
		result, err = m.handleRead(ctx, msg.Sender, memoryType, path, msg.UserID, msg.SessionID, contentFilters(msg.Content))
	case protocol.OpWrite:
		err = m.storage.WriteMemory(ctx, msg.UserID, msg.Sender, memoryType, path, msg.Content["data"])
		result = operationStatus(memoryType, path)
	case protocol.OpUpdate:
		err = m.storage.UpdateMemory(ctx, msg.UserID, msg.Sender, memoryType, path, msg.Content["data"])
		result = operationStatus(memoryType, path)
	case protocol.OpDelete:
		err = m.storage.DeleteMemory(ctx, msg.UserID, msg.Sender, memoryType, path)
		result = operationStatus(memoryType, path)
	default:
		return m.errorResponse(msg, fmt.Sprintf("Invalid operation: %s", operation))
	}
	if err != nil {
		m.logger.Error("memory request failed",
			zap.String("message_id", msg.ID),
			zap.String("operation", string(op)),
			zap.String("memory_type", memoryType),
			zap.String("path", path),
			zap.String("user_id", msg.UserID),
			zap.Error(err))
		return m.errorResponse(msg, fmt.Sprintf("Error handling memory request: %v", err))
	}

	resp, _ := protocol.NewMessage(
		protocol.TypeResponse,
		protocol.MemoryService,
		msg.Sender,
		map[string]any{"status": "success", "result": result},
		msg.SessionID,
		msg.UserID,
		protocol.WithRequestID(msg.ID),
	)
	return resp
}

// handleRead applies the agent's scope cutoff as a default "since" filter,
// then dispatches by memory type.
func (m *AccessManager) handleRead(ctx context.Context, agent, memoryType, path, userID, sessionID string, filters map[string]any) (any, error) {
	if _, ok := filters["since"]; !ok {
		if cutoff, bounded := m.policy.ScopeCutoff(agent, time.Now().UTC()); bounded {
			filters["since"] = cutoff.Format(time.RFC3339)
		}
	}

	switch strings.ToLower(memoryType) {
	case "emotional", "emotional_state":
		return m.readEmotional(ctx, userID, path, filters)
	case "general":
		return m.readGeneral(ctx, userID, agent, path)
	case "session", "conversation":
		return readSessionStub(sessionID), nil
	default:
		return readGenericStub(memoryType, userID, path), nil
	}
}

// readEmotional returns the most recent tagged summary entries, optionally
// drilled into "recent", "history", or a "recent.<field>" sub-path.
func (m *AccessManager) readEmotional(ctx context.Context, userID, path string, filters map[string]any) (any, error) {
	var since *time.Time
	if raw, ok := filters["since"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			since = &parsed
		}
	}
	limit := defaultSummaryLimit
	switch raw := filters["limit"].(type) {
	case float64:
		if raw > 0 {
			limit = int(raw)
		}
	case int:
		if raw > 0 {
			limit = raw
		}
	}

	entries, err := m.storage.TaggedSummaries(ctx, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("read emotional memory: %w", err)
	}

	data := make([]map[string]any, len(entries))
	for i, e := range entries {
		data[i] = map[string]any{
			"timestamp":      e.Timestamp.Format(time.RFC3339),
			"emotional_tone": e.EmotionalTone,
			"confidence":     e.Confidence,
			"summary":        e.Summary,
			"tags":           e.Tags,
		}
	}

	switch {
	case path == "recent":
		if len(data) == 0 {
			return nil, nil
		}
		return data[0], nil
	case path == "history":
		return data, nil
	case strings.HasPrefix(path, "recent."):
		if len(data) == 0 {
			return nil, nil
		}
		field := strings.TrimPrefix(path, "recent.")
		return data[0][field], nil
	default:
		return data, nil
	}
}

// readGeneral loads the latest snapshot for (user, agent) and walks the
// dot path over its parsed content. Any missing segment or parse failure
// yields nil rather than an error.
func (m *AccessManager) readGeneral(ctx context.Context, userID, agent, path string) (any, error) {
	snap, err := m.storage.LatestSnapshot(ctx, userID, agent)
	if err != nil {
		return nil, fmt.Errorf("read general memory: %w", err)
	}
	if snap == nil {
		return nil, nil
	}
	if path == "all" {
		return snap.Content, nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(snap.Content), &parsed); err != nil {
		return nil, nil
	}
	var current any = parsed
	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, nil
		}
		current, ok = node[part]
		if !ok {
			return nil, nil
		}
	}
	return current, nil
}

// readSessionStub is the placeholder session read pending a live session
// store.
func readSessionStub(sessionID string) map[string]any {
	return map[string]any{
		"messages": []map[string]any{
			{"role": "user", "content": "Hello"},
			{"role": "assistant", "content": "Hi there! How can I help you today?"},
		},
		"topic":         "general conversation",
		"session_id":    sessionID,
		"session_start": time.Now().UTC().Format(time.RFC3339),
	}
}

// readGenericStub is the placeholder read for memory types without a
// dedicated reader.
func readGenericStub(memoryType, userID, path string) map[string]any {
	return map[string]any{
		"type":    memoryType,
		"user_id": userID,
		"path":    path,
		"note":    "generic memory access is not yet implemented",
	}
}

func operationStatus(memoryType, path string) map[string]any {
	return map[string]any{"success": true, "memory_type": memoryType, "path": path}
}

func (m *AccessManager) errorResponse(request protocol.AgentMessage, errText string) protocol.AgentMessage {
	resp, _ := protocol.NewMessage(
		protocol.TypeResponse,
		protocol.MemoryService,
		request.Sender,
		map[string]any{"status": "error", "error": errText},
		request.SessionID,
		request.UserID,
		protocol.WithRequestID(request.ID),
	)
	return resp
}

func contentString(content map[string]any, key string) string {
	s, _ := content[key].(string)
	return s
}

// contentFilters returns a mutable copy of the request's filters so the
// scope default never leaks back into the caller's message.
func contentFilters(content map[string]any) map[string]any {
	filters := make(map[string]any)
	if raw, ok := content["filters"].(map[string]any); ok {
		for k, v := range raw {
			filters[k] = v
		}
	}
	return filters
}
