package protocol

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// MemoryService is the recipient of every memory access request.
const MemoryService = "MemoryService"

// ErrResponseNeedsRequestID is returned when a response message is
// constructed without the id of the request it answers.
var ErrResponseNeedsRequestID = errors.New("request_id is required for response messages")

// Option customizes a message during construction.
type Option func(*AgentMessage)

// WithID sets an explicit message id instead of generating one.
func WithID(id string) Option {
	return func(m *AgentMessage) { m.ID = id }
}

// WithRequestID links the message to the request it answers.
func WithRequestID(id string) Option {
	return func(m *AgentMessage) { m.RequestID = id }
}

// WithPriority overrides the default priority.
func WithPriority(p Priority) Option {
	return func(m *AgentMessage) { m.Priority = p }
}

// WithTTL sets a time-to-live in seconds.
func WithTTL(seconds int) Option {
	return func(m *AgentMessage) { m.TTL = seconds }
}

// WithRequiresResponse marks the message as expecting a reply.
func WithRequiresResponse() Option {
	return func(m *AgentMessage) { m.RequiresResponse = true }
}

// NewMessage constructs an agent message. An id of the form "msg_<uuid>" is
// generated unless one is supplied. Response messages must carry the id of
// the request they answer.
func NewMessage(msgType MessageType, sender, recipient string, content map[string]any, sessionID, userID string, opts ...Option) (AgentMessage, error) {
	m := AgentMessage{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		SessionID: sessionID,
		UserID:    userID,
		Priority:  PriorityNormal,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.ID == "" {
		m.ID = "msg_" + uuid.NewString()
	}
	if m.Type == TypeResponse && m.RequestID == "" {
		return AgentMessage{}, ErrResponseNeedsRequestID
	}
	return m, nil
}

// NewHandoffMessage wraps an AgentHandoff as the content of a handoff
// message addressed to the target agent. Priority defaults to high.
func NewHandoffMessage(sender string, handoff AgentHandoff, sessionID, userID string, opts ...Option) (AgentMessage, error) {
	if handoff.Urgency == "" {
		handoff.Urgency = PriorityNormal
	}
	withDefaults := append([]Option{WithPriority(PriorityHigh)}, opts...)
	return NewMessage(TypeHandoff, sender, handoff.TargetAgent, toMap(handoff), sessionID, userID, withDefaults...)
}

// NewMemoryRequest wraps a MemoryAccessRequest as a memory_access message.
// The recipient is always the memory service and a response is always
// expected.
func NewMemoryRequest(sender string, req MemoryAccessRequest, sessionID, userID string, opts ...Option) (AgentMessage, error) {
	withDefaults := append([]Option{WithRequiresResponse()}, opts...)
	return NewMessage(TypeMemoryAccess, sender, MemoryService, toMap(req), sessionID, userID, withDefaults...)
}

// toMap converts a struct to its wire representation via its JSON tags.
func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}
