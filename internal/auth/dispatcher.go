package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
)

// CommandHandler runs one kind of command on behalf of an authenticated
// principal and returns its result.
type CommandHandler func(ctx context.Context, p *Principal, cmd domain.Command) (any, error)

// Dispatcher routes commands to the handler registered for their kind.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[domain.CommandKind]CommandHandler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[domain.CommandKind]CommandHandler)}
}

// Register binds h to kind, replacing any earlier handler.
func (d *Dispatcher) Register(kind domain.CommandKind, h CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Handles reports whether kind has a handler.
func (d *Dispatcher) Handles(kind domain.CommandKind) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[kind]
	return ok
}

// Dispatch runs cmd.
func (d *Dispatcher) Dispatch(ctx context.Context, p *Principal, cmd domain.Command) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[cmd.Kind]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, cmd.Kind)
	}
	return h(ctx, p, cmd)
}
