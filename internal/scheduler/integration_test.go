package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resident-x/go-csms/internal/command"
)

// TestCatalogExecutorIntegration runs scheduled commands through the command catalog.
func TestCatalogExecutorIntegration(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))

	var mu sync.Mutex
	var sent []command.Envelope
	dispatcher := command.DispatcherFunc(func(_ context.Context, env command.Envelope) (command.Reply, error) {
		mu.Lock()
		sent = append(sent, env)
		mu.Unlock()
		return command.Reply{RequestID: env.RequestID, Payload: json.RawMessage(`{"status":"Accepted"}`), ReceivedAt: time.Now()}, nil
	})

	node := command.NewNode("csms-01", dispatcher)
	executor := NewCatalogExecutor(command.NewCatalog(), node)

	scheduler := NewCommandScheduler(executor, testConfig(), logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, scheduler.Start(ctx))
	defer scheduler.Stop()

	t.Run("known action", func(t *testing.T) {
		id, err := scheduler.Schedule("Reset", "CS1", json.RawMessage(`{"type":"OnIdle"}`), PriorityUrgent)
		require.NoError(t, err)

		st := waitForState(t, scheduler, id, StateCompleted)
		assert.JSONEq(t, `{"status":"Accepted"}`, string(st.Result))

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, sent, 1)
		assert.Equal(t, "Reset", sent[0].Action)
		assert.Equal(t, "CS1", string(sent[0].Destination))
	})

	t.Run("unknown action is rejected when scheduling", func(t *testing.T) {
		_, err := scheduler.Schedule("FlyToTheMoon", "CS1", nil, PriorityNormal)
		assert.ErrorIs(t, err, ErrUnknownCommand)
	})

	t.Run("invalid payload fails without retry", func(t *testing.T) {
		id, err := scheduler.Schedule("Reset", "CS1", json.RawMessage(`{"type":42}`), PriorityNormal)
		require.NoError(t, err)

		st := waitForState(t, scheduler, id, StateFailed)
		assert.Equal(t, 0, st.Retries)
		assert.Contains(t, st.Error, "invalid request")
	})
}
