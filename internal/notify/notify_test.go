package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	var a, b []string

	bus.Subscribe(func(_ context.Context, n Notification) {
		mu.Lock()
		defer mu.Unlock()
		a = append(a, n.Code)
	})
	bus.Subscribe(func(_ context.Context, n Notification) {
		mu.Lock()
		defer mu.Unlock()
		b = append(b, n.Code)
	})

	bus.Notify(context.Background(), Notification{Level: LevelError, Code: CodeOrderFailed})

	assert.Equal(t, []string{CodeOrderFailed}, a)
	assert.Equal(t, []string{CodeOrderFailed}, b)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := bus.Subscribe(func(context.Context, Notification) { calls++ })

	bus.Notify(context.Background(), Notification{Code: "a"})
	unsubscribe()
	bus.Notify(context.Background(), Notification{Code: "b"})

	assert.Equal(t, 1, calls)
}

func TestBus_StampsTime(t *testing.T) {
	bus := NewBus()
	var got Notification
	bus.Subscribe(func(_ context.Context, n Notification) { got = n })

	bus.Notify(context.Background(), Notification{Code: "a"})

	assert.False(t, got.At.IsZero())
}

func TestBus_NoSubscribers(t *testing.T) {
	assert.NotPanics(t, func() {
		NewBus().Notify(context.Background(), Notification{Code: "a"})
	})
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogSink(l)(context.Background(), Notification{
		Level:    LevelWarning,
		Code:     CodeVerificationDegraded,
		Message:  "could not confirm payment",
		WizardID: "wiz-1",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, CodeVerificationDegraded, entry["code"])
	assert.Equal(t, "wiz-1", entry["wizard_id"])
}
