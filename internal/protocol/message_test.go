package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestNewMessageGeneratesID(t *testing.T) {
	msg, err := NewMessage(TypeQuery, "EchoMind", "Therapist", map[string]any{"q": "status"}, "sess1", "user1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(msg.ID, "msg_") {
		t.Errorf("got id %q, want msg_ prefix", msg.ID)
	}
	if msg.Priority != PriorityNormal {
		t.Errorf("got priority %q, want %q", msg.Priority, PriorityNormal)
	}
	if msg.Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}
}

func TestNewMessageKeepsExplicitID(t *testing.T) {
	msg, err := NewMessage(TypeQuery, "a", "b", nil, "s", "u", WithID("msg_fixed"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID != "msg_fixed" {
		t.Errorf("got id %q, want msg_fixed", msg.ID)
	}
}

func TestResponseRequiresRequestID(t *testing.T) {
	_, err := NewMessage(TypeResponse, "MemoryService", "EchoMind", nil, "s", "u")
	if !errors.Is(err, ErrResponseNeedsRequestID) {
		t.Fatalf("got %v, want ErrResponseNeedsRequestID", err)
	}

	msg, err := NewMessage(TypeResponse, "MemoryService", "EchoMind", nil, "s", "u", WithRequestID("msg_1"))
	if err != nil {
		t.Fatalf("unexpected error with request id: %v", err)
	}
	if msg.RequestID != "msg_1" {
		t.Errorf("got request id %q, want msg_1", msg.RequestID)
	}
}

func TestNewHandoffMessageDefaults(t *testing.T) {
	h := AgentHandoff{
		TargetAgent:       "Therapist",
		Reason:            "distress requires therapeutic support",
		Context:           map[string]any{"recent_topic": "work stress"},
		ConversationState: map[string]any{"turns": 4},
	}
	msg, err := NewHandoffMessage("EchoMind", h, "sess1", "user1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != TypeHandoff {
		t.Errorf("got type %q, want handoff", msg.Type)
	}
	if msg.Recipient != "Therapist" {
		t.Errorf("got recipient %q, want Therapist", msg.Recipient)
	}
	if msg.Priority != PriorityHigh {
		t.Errorf("got priority %q, want high", msg.Priority)
	}
	if msg.Content["target_agent"] != "Therapist" {
		t.Errorf("content missing target_agent: %v", msg.Content)
	}
	if msg.Content["urgency"] != string(PriorityNormal) {
		t.Errorf("got urgency %v, want normal", msg.Content["urgency"])
	}
}

func TestNewMemoryRequestAddressing(t *testing.T) {
	req := MemoryAccessRequest{Operation: OpRead, MemoryType: "emotional", Path: "recent"}
	msg, err := NewMemoryRequest("Therapist", req, "sess1", "user1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Recipient != MemoryService {
		t.Errorf("got recipient %q, want %q", msg.Recipient, MemoryService)
	}
	if !msg.RequiresResponse {
		t.Error("memory requests must require a response")
	}
	if msg.Content["operation"] != "read" {
		t.Errorf("got operation %v, want read", msg.Content["operation"])
	}
}
