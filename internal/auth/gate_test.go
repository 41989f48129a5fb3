package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// memoryStore is an in-process DeferredActionStore.
type memoryStore struct {
	mu    sync.Mutex
	slots map[string]domain.Command
	puts  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{slots: make(map[string]domain.Command)}
}

func (s *memoryStore) Put(_ context.Context, visitorID string, cmd domain.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[visitorID] = cmd
	s.puts++
	return nil
}

func (s *memoryStore) Take(_ context.Context, visitorID string) (*domain.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, ok := s.slots[visitorID]
	if !ok {
		return nil, nil
	}
	delete(s.slots, visitorID)
	return &cmd, nil
}

type recorder struct {
	mu   sync.Mutex
	runs []string
}

func (r *recorder) handler(ctx context.Context, p *Principal, cmd domain.Command) (any, error) {
	var payload struct {
		Tag string `json:"tag"`
	}
	if err := cmd.Decode(&payload); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, payload.Tag+"@"+p.UserID)
	return payload.Tag, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func command(t *testing.T, tag string) domain.Command {
	t.Helper()
	cmd, err := domain.NewCommand(domain.CommandBeginCheckout, map[string]string{"tag": tag}, time.Now())
	require.NoError(t, err)
	return cmd
}

func newTestGate() (*Gate, *memoryStore, *recorder) {
	store := newMemoryStore()
	rec := &recorder{}
	d := NewDispatcher()
	d.Register(domain.CommandBeginCheckout, rec.handler)
	return NewGate(store, d, quietLogger()), store, rec
}

var jane = &Principal{UserID: "user-1", Token: "tok"}

func TestGate_AuthenticatedRunsImmediatelyAndStoresNothing(t *testing.T) {
	gate, store, rec := newTestGate()

	res, err := gate.RunOrDefer(context.Background(), "visitor-1", jane, command(t, "A"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)
	assert.Equal(t, "A", res.Value)
	assert.Equal(t, []string{"A@user-1"}, rec.runs)
	assert.Zero(t, store.puts)
	assert.Empty(t, store.slots)
}

func TestGate_AnonymousDefersAndLastWriteWins(t *testing.T) {
	gate, _, rec := newTestGate()
	ctx := context.Background()

	res, err := gate.RunOrDefer(ctx, "visitor-1", nil, command(t, "A"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoginRequired, res.Outcome)

	res, err = gate.RunOrDefer(ctx, "visitor-1", nil, command(t, "B"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoginRequired, res.Outcome)
	assert.Empty(t, rec.runs)

	res, err = gate.Resume(ctx, "visitor-1", jane)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)
	assert.Equal(t, "B", res.Value)
	assert.Equal(t, []string{"B@user-1"}, rec.runs)
}

func TestGate_ResumeRunsAtMostOnce(t *testing.T) {
	gate, _, rec := newTestGate()
	ctx := context.Background()

	_, err := gate.RunOrDefer(ctx, "visitor-1", nil, command(t, "A"))
	require.NoError(t, err)

	_, err = gate.Resume(ctx, "visitor-1", jane)
	require.NoError(t, err)
	res, err := gate.Resume(ctx, "visitor-1", jane)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNothingPending, res.Outcome)
	assert.Len(t, rec.runs, 1)
}

func TestGate_VisitorsAreIsolated(t *testing.T) {
	gate, _, rec := newTestGate()
	ctx := context.Background()

	_, _ = gate.RunOrDefer(ctx, "visitor-1", nil, command(t, "A"))
	_, _ = gate.RunOrDefer(ctx, "visitor-2", nil, command(t, "B"))

	res, err := gate.Resume(ctx, "visitor-2", jane)
	require.NoError(t, err)
	assert.Equal(t, "B", res.Value)
	assert.Equal(t, []string{"B@user-1"}, rec.runs)
}

func TestGate_ResumeRequiresPrincipal(t *testing.T) {
	gate, store, _ := newTestGate()
	ctx := context.Background()
	_, _ = gate.RunOrDefer(ctx, "visitor-1", nil, command(t, "A"))

	_, err := gate.Resume(ctx, "visitor-1", nil)

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Len(t, store.slots, 1, "pending action survives a failed resume")
}

func TestGate_UnknownKindRejected(t *testing.T) {
	gate, store, _ := newTestGate()

	_, err := gate.RunOrDefer(context.Background(), "visitor-1", nil, domain.Command{Kind: "wishlist_add"})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, store.puts)
}

func TestGate_AnonymousNeedsVisitor(t *testing.T) {
	gate, store, rec := newTestGate()
	ctx := context.Background()

	_, err := gate.RunOrDefer(ctx, "", nil, command(t, "A"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = gate.RunOrDefer(ctx, "", nil, command(t, "B"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, store.puts)

	res, err := gate.Resume(ctx, "", jane)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingPending, res.Outcome)
	assert.Empty(t, rec.runs)
}

func TestGate_FailedResumeConsumesAction(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	d := NewDispatcher()
	d.Register(domain.CommandBeginCheckout, func(context.Context, *Principal, domain.Command) (any, error) {
		calls++
		return nil, errors.New("cart unavailable")
	})
	gate := NewGate(store, d, quietLogger())
	ctx := context.Background()

	_, err := gate.RunOrDefer(ctx, "visitor-1", nil, command(t, "A"))
	require.NoError(t, err)

	_, err = gate.Resume(ctx, "visitor-1", jane)
	assert.Error(t, err)
	res, err := gate.Resume(ctx, "visitor-1", jane)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingPending, res.Outcome)
	assert.Equal(t, 1, calls)
}

func TestDispatcher_UnknownKind(t *testing.T) {
	_, err := NewDispatcher().Dispatch(context.Background(), jane, domain.Command{Kind: "nope"})
	assert.ErrorIs(t, err, domain.ErrUnknownCommand)
}
