package orchestrator

import (
	"context"
	"testing"
	"time"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/echomind/echomind/internal/protocol"
)

// startTestBus boots a Redis container and connects a bus to it. Skipped
// with -short.
func startTestBus(t *testing.T) *MessageBus {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}

	bus, err := NewMessageBus("redis://"+endpoint, zap.NewNop())
	if err != nil {
		t.Fatalf("create message bus: %v", err)
	}
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := startTestBus(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ch := bus.Subscribe(ctx, "Therapist")
	// The subscriber reads from the stream tail, so give it a moment to
	// block before publishing.
	time.Sleep(500 * time.Millisecond)

	sent, err := protocol.NewMessage(protocol.TypeHandoff, "EchoMind", "Therapist",
		map[string]any{"reason": "user needs support"}, "sess1", "user1")
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	if err := bus.Publish(ctx, sent); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.ID != sent.ID {
			t.Errorf("got message %q, want %q", got.ID, sent.ID)
		}
		if got.Sender != "EchoMind" || got.Type != protocol.TypeHandoff {
			t.Errorf("got sender %q type %q", got.Sender, got.Type)
		}
		if got.Content["reason"] != "user needs support" {
			t.Errorf("got content %v", got.Content)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestBusStreamsAreIsolated(t *testing.T) {
	bus := startTestBus(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch := bus.Subscribe(ctx, "Coach")
	time.Sleep(500 * time.Millisecond)

	other, err := protocol.NewMessage(protocol.TypeQuery, "EchoMind", "Therapist", nil, "sess1", "user1")
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	if err := bus.Publish(ctx, other); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		t.Fatalf("unexpected message on Coach stream: %+v", got)
	case <-time.After(3 * time.Second):
	}
}
