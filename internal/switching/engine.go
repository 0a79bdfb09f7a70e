package switching

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/echomind/echomind/internal/protocol"
)

// Decision is the outcome of a switch evaluation. When ShouldSwitch is
// false the other fields are empty.
type Decision struct {
	ShouldSwitch bool   `json:"should_switch"`
	TargetAgent  string `json:"target_agent,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// Engine evaluates conversation signals against a fixed rule set. It is
// stateless apart from the injected rules and safe for concurrent use.
type Engine struct {
	rules  Rules
	logger *zap.Logger
}

// NewEngine creates a switching engine with the given rules.
func NewEngine(rules Rules, logger *zap.Logger) *Engine {
	return &Engine{rules: rules, logger: logger}
}

// EvaluateSwitch decides whether control should move to another agent.
// Signals are checked in strict priority order: emotional state, then
// topics, then required capabilities. A stage that recommends the current
// agent yields to the next stage rather than recommending a no-op switch.
func (e *Engine) EvaluateSwitch(
	currentAgent string,
	emotionalState *protocol.EmotionalState,
	topics []string,
	capabilitiesNeeded []protocol.Capability,
	conversationState map[string]any,
) Decision {
	var target, reason string

	if emotionalState != nil {
		if agent := e.evaluateEmotionalState(*emotionalState); agent != "" && agent != currentAgent {
			target = agent
			reason = fmt.Sprintf("Emotional state (%s at %.1f intensity) requires %s",
				emotionalState.Primary, emotionalState.Intensity, agent)
		}
	}

	if target == "" && len(topics) > 0 {
		if agent := e.evaluateTopics(topics); agent != "" && agent != currentAgent {
			target = agent
			reason = fmt.Sprintf("Topic specialization in '%s' suggests %s", strings.Join(topics, ", "), agent)
		}
	}

	if target == "" && len(capabilitiesNeeded) > 0 {
		if agent := e.evaluateCapabilities(capabilitiesNeeded); agent != "" && agent != currentAgent {
			target = agent
			reason = fmt.Sprintf("Required capabilities [%s] are best handled by %s",
				joinCapabilities(capabilitiesNeeded), agent)
		}
	}

	if target == "" {
		return Decision{}
	}

	e.logger.Info("agent switch recommended",
		zap.String("current_agent", currentAgent),
		zap.String("target_agent", target),
		zap.String("reason", reason))

	return Decision{ShouldSwitch: true, TargetAgent: target, Reason: reason}
}

// evaluateEmotionalState checks the primary emotion first, then the
// secondary emotions in their given order.
func (e *Engine) evaluateEmotionalState(state protocol.EmotionalState) string {
	if agent := e.rules.agentForEmotion(state.Primary, state.Intensity); agent != "" {
		e.logger.Debug("emotional rule matched",
			zap.String("emotion", state.Primary),
			zap.Float64("intensity", state.Intensity),
			zap.Float64("confidence", state.Confidence),
			zap.String("target_agent", agent))
		return agent
	}
	for _, sec := range state.Secondary {
		if agent := e.rules.agentForEmotion(sec.Emotion, sec.Intensity); agent != "" {
			e.logger.Debug("secondary emotional rule matched",
				zap.String("emotion", sec.Emotion),
				zap.Float64("intensity", sec.Intensity),
				zap.String("target_agent", agent))
			return agent
		}
	}
	return ""
}

// evaluateTopics returns the specialist for the first topic with a match.
func (e *Engine) evaluateTopics(topics []string) string {
	for _, topic := range topics {
		if agent := e.rules.agentForTopic(topic); agent != "" {
			e.logger.Debug("topic rule matched",
				zap.String("topic", topic),
				zap.String("target_agent", agent))
			return agent
		}
	}
	return ""
}

// evaluateCapabilities tallies how many of the needed capabilities each
// agent declares and picks the highest tally, breaking ties by table
// definition order. The winner is only recommended when it covers at least
// half of what is needed.
func (e *Engine) evaluateCapabilities(needed []protocol.Capability) string {
	best := ""
	bestCount := 0
	for _, entry := range e.rules.Capabilities {
		count := 0
		for _, cap := range needed {
			if entry.hasCapability(cap) {
				count++
			}
		}
		if count > bestCount {
			best = entry.Agent
			bestCount = count
		}
	}
	if best == "" || float64(bestCount) < float64(len(needed))/2 {
		return ""
	}
	e.logger.Debug("capability rule matched",
		zap.String("target_agent", best),
		zap.Int("match_count", bestCount),
		zap.Int("needed", len(needed)))
	return best
}

func joinCapabilities(caps []protocol.Capability) string {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// CreateSwitchMessage builds the handoff message for a decided switch. A
// fixed subset of the conversation state travels as handoff context;
// missing keys default to empty values.
func (e *Engine) CreateSwitchMessage(
	sessionID, userID, currentAgent, targetAgent, reason string,
	conversationState map[string]any,
	emotionalState *protocol.EmotionalState,
	urgency protocol.Priority,
) (protocol.AgentMessage, error) {
	if conversationState == nil {
		conversationState = map[string]any{}
	}
	context := map[string]any{
		"recent_topic":     stateValue(conversationState, "recent_topic", ""),
		"session_duration": stateValue(conversationState, "session_duration", 0),
		"user_goals":       stateValue(conversationState, "user_goals", []any{}),
		"previous_agents":  stateValue(conversationState, "previous_agents", []any{}),
		"tone_preferences": stateValue(conversationState, "tone_preferences", map[string]any{}),
	}
	if urgency == "" {
		urgency = protocol.PriorityNormal
	}

	handoff := protocol.AgentHandoff{
		TargetAgent:       targetAgent,
		Reason:            reason,
		Context:           context,
		ConversationState: conversationState,
		EmotionalState:    emotionalState,
		Urgency:           urgency,
	}
	msg, err := protocol.NewHandoffMessage(currentAgent, handoff, sessionID, userID)
	if err != nil {
		return protocol.AgentMessage{}, fmt.Errorf("create switch message: %w", err)
	}

	e.logger.Info("created handoff message",
		zap.String("handoff_id", msg.ID),
		zap.String("from", currentAgent),
		zap.String("to", targetAgent),
		zap.String("session_id", sessionID))
	return msg, nil
}

func stateValue(state map[string]any, key string, fallback any) any {
	if v, ok := state[key]; ok {
		return v
	}
	return fallback
}
