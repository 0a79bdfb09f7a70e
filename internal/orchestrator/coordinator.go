package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	ctxwindow "github.com/echomind/echomind/internal/context"
	"github.com/echomind/echomind/internal/memory"
	"github.com/echomind/echomind/internal/protocol"
	"github.com/echomind/echomind/internal/store"
	"github.com/echomind/echomind/internal/switching"
)

// SwitchRecorder persists switch decisions. Satisfied by *store.Store.
type SwitchRecorder interface {
	RecordSwitch(ctx context.Context, rec store.SwitchRecord) error
}

// Turn carries everything known about one conversation turn.
type Turn struct {
	SessionID          string
	UserID             string
	CurrentAgent       string
	EmotionalState     *protocol.EmotionalState
	Topics             []string
	CapabilitiesNeeded []protocol.Capability
	ConversationState  map[string]any
	History            []ctxwindow.Message
	ImportantIndices   []int
}

// TurnResult is the outcome of evaluating one turn: the switch decision,
// the handoff message when one fired, and the packed history.
type TurnResult struct {
	Decision switching.Decision
	Handoff  *protocol.AgentMessage
	History  []ctxwindow.Message
}

// Coordinator runs the per-turn control flow. The bus and recorder may be
// nil; the decision core works without them and side effects are skipped.
type Coordinator struct {
	engine   *switching.Engine
	memory   *memory.AccessManager
	window   *ctxwindow.Manager
	bus      *MessageBus
	recorder SwitchRecorder
	logger   *zap.Logger
}

// NewCoordinator wires the turn pipeline together.
func NewCoordinator(engine *switching.Engine, accessMgr *memory.AccessManager,
	window *ctxwindow.Manager, bus *MessageBus, recorder SwitchRecorder,
	logger *zap.Logger) *Coordinator {
	return &Coordinator{
		engine:   engine,
		memory:   accessMgr,
		window:   window,
		bus:      bus,
		recorder: recorder,
		logger:   logger,
	}
}

// EvaluateTurn runs switch evaluation over the turn's signals and packs
// its history into the context window. When a switch fires, the handoff
// message is published and the decision logged; failures there degrade
// with a warning rather than failing the turn.
func (c *Coordinator) EvaluateTurn(ctx context.Context, turn Turn) (TurnResult, error) {
	result := TurnResult{
		Decision: c.engine.EvaluateSwitch(
			turn.CurrentAgent,
			turn.EmotionalState,
			turn.Topics,
			turn.CapabilitiesNeeded,
			turn.ConversationState,
		),
	}

	if result.Decision.ShouldSwitch {
		handoff, err := c.engine.CreateSwitchMessage(
			turn.SessionID, turn.UserID,
			turn.CurrentAgent, result.Decision.TargetAgent, result.Decision.Reason,
			turn.ConversationState, turn.EmotionalState, protocol.PriorityNormal,
		)
		if err != nil {
			return result, fmt.Errorf("create switch message: %w", err)
		}
		result.Handoff = &handoff

		if c.bus != nil {
			if err := c.bus.Publish(ctx, handoff); err != nil {
				c.logger.Warn("handoff publish failed", zap.String("target", result.Decision.TargetAgent), zap.Error(err))
			}
		}
		if c.recorder != nil {
			rec := store.SwitchRecord{
				UserID:    turn.UserID,
				SessionID: turn.SessionID,
				FromAgent: turn.CurrentAgent,
				ToAgent:   result.Decision.TargetAgent,
				Reason:    result.Decision.Reason,
			}
			if err := c.recorder.RecordSwitch(ctx, rec); err != nil {
				c.logger.Warn("switch log failed", zap.Error(err))
			}
		}
	}

	if c.window != nil {
		result.History = c.window.FitToWindow(turn.History, true, turn.ImportantIndices)
	} else {
		result.History = turn.History
	}
	return result, nil
}

// HandleMemory routes a memory access message through the access manager
// and publishes the response back to the requesting agent.
func (c *Coordinator) HandleMemory(ctx context.Context, msg protocol.AgentMessage) protocol.AgentMessage {
	resp := c.memory.HandleRequest(ctx, msg)
	if c.bus != nil {
		if err := c.bus.Publish(ctx, resp); err != nil {
			c.logger.Warn("memory response publish failed", zap.String("recipient", resp.Recipient), zap.Error(err))
		}
	}
	return resp
}

// ServeMemory consumes the memory service's stream until the context is
// cancelled, answering each request over the bus.
func (c *Coordinator) ServeMemory(ctx context.Context) error {
	if c.bus == nil {
		return fmt.Errorf("serve memory: no message bus configured")
	}
	for msg := range c.bus.Subscribe(ctx, protocol.MemoryService) {
		c.HandleMemory(ctx, msg)
	}
	return ctx.Err()
}
