package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
)

func TestSubscribeAndPublishSync(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var received atomic.Int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		received.Add(1)
		return nil
	}

	require.NoError(t, svc.Subscribe(interfaces.EventRunUpdated, handler))
	require.NoError(t, svc.Subscribe(interfaces.EventRunUpdated, handler))

	err := svc.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventRunUpdated,
		Payload: "payload",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), received.Load())
}

func TestPublishNoSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	err := svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventLog})
	assert.NoError(t, err)
}

func TestSubscribeNilHandler(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	assert.Error(t, svc.Subscribe(interfaces.EventLog, nil))
}

func TestPublishSyncReportsHandlerErrors(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	require.NoError(t, svc.Subscribe(interfaces.EventStatusChanged, func(ctx context.Context, event interfaces.Event) error {
		return fmt.Errorf("handler broke")
	}))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventStatusChanged})
	assert.Error(t, err)
}

func TestPublishAsyncDelivers(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var mu sync.Mutex
	var payloads []interface{}
	done := make(chan struct{}, 1)

	require.NoError(t, svc.Subscribe(interfaces.EventStageProgress, func(ctx context.Context, event interfaces.Event) error {
		mu.Lock()
		payloads = append(payloads, event.Payload)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventStageProgress,
		Payload: 42,
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handler was never invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 1)
	assert.Equal(t, 42, payloads[0])
}
