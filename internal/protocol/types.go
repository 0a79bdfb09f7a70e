package protocol

import "time"

// MessageType identifies the kind of message exchanged between agents.
type MessageType string

const (
	TypeQuery        MessageType = "query"
	TypeResponse     MessageType = "response"
	TypeHandoff      MessageType = "handoff"
	TypeMemoryAccess MessageType = "memory_access"
	TypeSystem       MessageType = "system"
	TypeUser         MessageType = "user"
	TypeAssistant    MessageType = "assistant"
)

// Priority orders message handling.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Operation is a memory operation. Using a typed constant keeps dispatch
// exhaustive: an unrecognized value cannot silently alias a valid one.
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Capability is a skill an agent can advertise or a conversation can require.
type Capability string

const (
	CapEmotionalSupport   Capability = "emotional_support"
	CapParentingAdvice    Capability = "parenting_advice"
	CapConflictResolution Capability = "conflict_resolution"
	CapGoalSetting        Capability = "goal_setting"
	CapCognitiveReframing Capability = "cognitive_reframing"
	CapTherapy            Capability = "therapy"
	CapCoaching           Capability = "coaching"
	CapFriendship         Capability = "friendship"
	CapBridging           Capability = "bridging"
)

// AgentMessage is the envelope for all inter-agent communication.
// Treat a constructed message as immutable; build a new one instead of
// mutating fields.
type AgentMessage struct {
	ID               string         `json:"id"`
	Type             MessageType    `json:"type"`
	Timestamp        time.Time      `json:"timestamp"`
	Sender           string         `json:"sender"`
	Recipient        string         `json:"recipient"`
	Content          map[string]any `json:"content"`
	SessionID        string         `json:"session_id"`
	UserID           string         `json:"user_id"`
	RequestID        string         `json:"request_id,omitempty"`
	Priority         Priority       `json:"priority"`
	RequiresResponse bool           `json:"requires_response"`
	TTL              int            `json:"ttl,omitempty"` // seconds
}

// SecondaryEmotion is one entry in an emotional state's secondary list.
// Order matters: secondary emotions are evaluated in the order given.
type SecondaryEmotion struct {
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
}

// EmotionalState is a structured emotion assessment. Pure data, no identity.
type EmotionalState struct {
	Primary    string             `json:"primary"`
	Intensity  float64            `json:"intensity"` // 0..1
	Secondary  []SecondaryEmotion `json:"secondary,omitempty"`
	Confidence float64            `json:"confidence"` // 0..1
}

// AgentHandoff transfers conversational control to another agent.
type AgentHandoff struct {
	TargetAgent       string          `json:"target_agent"`
	Reason            string          `json:"reason"`
	Context           map[string]any  `json:"context"`
	ConversationState map[string]any  `json:"conversation_state"`
	SuggestedResponse string          `json:"suggested_response,omitempty"`
	EmotionalState    *EmotionalState `json:"emotional_state,omitempty"`
	Urgency           Priority        `json:"urgency"`
}

// MemoryAccessRequest asks the memory service to perform an operation.
type MemoryAccessRequest struct {
	Operation  Operation      `json:"operation"`
	MemoryType string         `json:"memory_type"`
	Path       string         `json:"path"`
	Data       any            `json:"data,omitempty"`
	Filters    map[string]any `json:"filters,omitempty"`
}
