// Package switching decides when conversational control should move to a
// different agent, based on emotional signals, topics, and required
// capabilities.
package switching

import (
	"strings"

	"github.com/echomind/echomind/internal/protocol"
)

// EmotionRule ties an emotion to the intensity at which a switch fires and
// the agent that should take over.
type EmotionRule struct {
	Emotion   string  `json:"emotion"`
	Threshold float64 `json:"threshold"`
	Target    string  `json:"target"`
}

// TopicRule maps a topic area to the agents specialized in it, best first.
type TopicRule struct {
	Topic  string   `json:"topic"`
	Agents []string `json:"agents"`
}

// AgentCapabilities lists what one agent can do. The position of the entry
// in the table is its tie-break priority.
type AgentCapabilities struct {
	Agent        string                `json:"agent"`
	Capabilities []protocol.Capability `json:"capabilities"`
}

// Rules is the static switching configuration. The slices are ordered on
// purpose: evaluation and tie-breaking follow definition order, not map
// iteration. Rules are read-only after construction.
type Rules struct {
	Emotions     []EmotionRule       `json:"emotions"`
	Topics       []TopicRule         `json:"topics"`
	Capabilities []AgentCapabilities `json:"capabilities"`
}

// DefaultRules returns the built-in switching tables.
func DefaultRules() Rules {
	return Rules{
		Emotions: []EmotionRule{
			{Emotion: "distress", Threshold: 0.7, Target: "Therapist"},
			{Emotion: "anxiety", Threshold: 0.7, Target: "Therapist"},
			{Emotion: "anger", Threshold: 0.8, Target: "Mediator"},
			{Emotion: "confusion", Threshold: 0.6, Target: "Teacher"},
			{Emotion: "joy", Threshold: 0.9, Target: "Friend"},
			{Emotion: "grief", Threshold: 0.6, Target: "Therapist"},
		},
		Topics: []TopicRule{
			{Topic: "parenting", Agents: []string{"Parent", "Family"}},
			{Topic: "relationships", Agents: []string{"Elora", "Bridge"}},
			{Topic: "emotional_support", Agents: []string{"Mirror", "Therapist"}},
			{Topic: "coaching", Agents: []string{"Coach", "Mentor"}},
			{Topic: "goal_setting", Agents: []string{"Coach", "Achiever"}},
			{Topic: "trauma", Agents: []string{"Therapist", "Healer"}},
			{Topic: "conflict", Agents: []string{"Mediator", "Bridge"}},
			{Topic: "communication", Agents: []string{"Bridge", "Communicator"}},
			{Topic: "technical", Agents: []string{"Technical", "Expert"}},
		},
		Capabilities: []AgentCapabilities{
			{Agent: "EchoMind", Capabilities: []protocol.Capability{protocol.CapEmotionalSupport, protocol.CapCognitiveReframing}},
			{Agent: "Therapist", Capabilities: []protocol.Capability{protocol.CapTherapy, protocol.CapEmotionalSupport, protocol.CapCognitiveReframing}},
			{Agent: "Coach", Capabilities: []protocol.Capability{protocol.CapCoaching, protocol.CapGoalSetting}},
			{Agent: "Parent", Capabilities: []protocol.Capability{protocol.CapParentingAdvice}},
			{Agent: "Bridge", Capabilities: []protocol.Capability{protocol.CapBridging, protocol.CapConflictResolution}},
			{Agent: "Friend", Capabilities: []protocol.Capability{protocol.CapFriendship, protocol.CapEmotionalSupport}},
		},
	}
}

// agentForEmotion returns the target agent when the emotion clears its
// threshold, or "" when no rule fires.
func (r Rules) agentForEmotion(emotion string, intensity float64) string {
	for _, rule := range r.Emotions {
		if rule.Emotion == emotion {
			if intensity >= rule.Threshold {
				return rule.Target
			}
			return ""
		}
	}
	return ""
}

// agentForTopic returns the primary specialist for the first topic rule
// that matches. Matching is a case-insensitive substring test in either
// direction.
func (r Rules) agentForTopic(topic string) string {
	lowered := strings.ToLower(topic)
	for _, rule := range r.Topics {
		area := strings.ToLower(rule.Topic)
		if strings.Contains(area, lowered) || strings.Contains(lowered, area) {
			if len(rule.Agents) > 0 {
				return rule.Agents[0]
			}
			return ""
		}
	}
	return ""
}

// hasCapability reports whether the agent entry declares the capability.
func (ac AgentCapabilities) hasCapability(cap protocol.Capability) bool {
	for _, c := range ac.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}
