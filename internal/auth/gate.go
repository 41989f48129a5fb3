package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Outcome tells the caller what the gate did with a command.
type Outcome string

// Gate outcomes.
const (
	OutcomeExecuted       Outcome = "executed"
	OutcomeLoginRequired  Outcome = "login_required"
	OutcomeNothingPending Outcome = "nothing_pending"
)

// Result is the gate's answer: the outcome and, when the command ran, its
// return value.
type Result struct {
	Outcome Outcome
	Value   any
}

// Gate runs commands for authenticated principals and parks them for
// anonymous visitors until login succeeds.
type Gate struct {
	store      repository.DeferredActionStore
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewGate creates a gate.
func NewGate(store repository.DeferredActionStore, dispatcher *Dispatcher, logger *slog.Logger) *Gate {
	return &Gate{store: store, dispatcher: dispatcher, logger: logger}
}

// RunOrDefer dispatches cmd immediately when p is authenticated, storing
// nothing. Otherwise cmd replaces the visitor's pending command and the
// caller is told to open the login prompt.
func (g *Gate) RunOrDefer(ctx context.Context, visitorID string, p *Principal, cmd domain.Command) (Result, error) {
	if !g.dispatcher.Handles(cmd.Kind) {
		return Result{}, apperrors.InvalidInput(fmt.Sprintf("unknown action %q", cmd.Kind))
	}

	if p != nil {
		value, err := g.dispatcher.Dispatch(ctx, p, cmd)
		if err != nil {
			gateActionsTotal.WithLabelValues(string(cmd.Kind), "failed").Inc()
			return Result{}, err
		}
		gateActionsTotal.WithLabelValues(string(cmd.Kind), string(OutcomeExecuted)).Inc()
		return Result{Outcome: OutcomeExecuted, Value: value}, nil
	}

	if visitorID == "" {
		return Result{}, apperrors.InvalidInput("visitor id is required")
	}
	if err := g.store.Put(ctx, visitorID, cmd); err != nil {
		return Result{}, fmt.Errorf("defer %s: %w", cmd.Kind, err)
	}
	gateActionsTotal.WithLabelValues(string(cmd.Kind), "deferred").Inc()

	g.logger.InfoContext(ctx, "action deferred until login",
		slog.String("visitor_id", visitorID),
		slog.String("kind", string(cmd.Kind)),
	)

	return Result{Outcome: OutcomeLoginRequired}, nil
}

// Resume runs the visitor's pending command, if any, now that p has logged
// in. The command is removed before it runs, so it runs at most once even
// when it fails.
func (g *Gate) Resume(ctx context.Context, visitorID string, p *Principal) (Result, error) {
	if p == nil {
		return Result{}, apperrors.Unauthorized("login has not completed")
	}
	if visitorID == "" {
		return Result{Outcome: OutcomeNothingPending}, nil
	}

	cmd, err := g.store.Take(ctx, visitorID)
	if err != nil {
		return Result{}, fmt.Errorf("take deferred action: %w", err)
	}
	if cmd == nil {
		return Result{Outcome: OutcomeNothingPending}, nil
	}

	value, err := g.dispatcher.Dispatch(ctx, p, *cmd)
	if err != nil {
		gateActionsTotal.WithLabelValues(string(cmd.Kind), "failed").Inc()
		if errors.Is(err, domain.ErrUnknownCommand) {
			g.logger.WarnContext(ctx, "dropped deferred action of unknown kind",
				slog.String("visitor_id", visitorID),
				slog.String("kind", string(cmd.Kind)),
			)
			return Result{Outcome: OutcomeNothingPending}, nil
		}
		return Result{}, err
	}
	gateActionsTotal.WithLabelValues(string(cmd.Kind), "resumed").Inc()

	g.logger.InfoContext(ctx, "deferred action resumed",
		slog.String("visitor_id", visitorID),
		slog.String("user_id", p.UserID),
		slog.String("kind", string(cmd.Kind)),
	)

	return Result{Outcome: OutcomeExecuted, Value: value}, nil
}
