package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// DeliveryInvalidError carries the field errors that blocked Delivery →
// Payment. It matches domain.ErrDeliveryInvalid.
type DeliveryInvalidError struct {
	Fields domain.FieldErrors
}

func (e *DeliveryInvalidError) Error() string {
	return fmt.Sprintf("%s: %d field(s)", domain.ErrDeliveryInvalid, len(e.Fields))
}

func (e *DeliveryInvalidError) Unwrap() error {
	return domain.ErrDeliveryInvalid
}

// PaymentExecutor runs the order and payment protocol for a wizard.
type PaymentExecutor interface {
	Execute(ctx context.Context, w *domain.Wizard, token string) (*domain.PaymentIntent, error)
}

// CheckoutService implements the checkout wizard operations.
type CheckoutService struct {
	wizards      repository.WizardRepository
	locks        repository.SubmitLock
	carts        CartBackend
	orchestrator PaymentExecutor
	notifier     notify.Notifier
	validate     domain.DeliveryValidator
	logger       *slog.Logger
	now          func() time.Time
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	wizards repository.WizardRepository,
	locks repository.SubmitLock,
	carts CartBackend,
	orchestrator PaymentExecutor,
	notifier notify.Notifier,
	validate domain.DeliveryValidator,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		wizards:      wizards,
		locks:        locks,
		carts:        carts,
		orchestrator: orchestrator,
		notifier:     notifier,
		validate:     validate,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// HandleBeginCheckout is the auth.CommandHandler for domain.CommandBeginCheckout.
func (s *CheckoutService) HandleBeginCheckout(ctx context.Context, p *auth.Principal, cmd domain.Command) (any, error) {
	var payload domain.BeginCheckoutPayload
	if err := cmd.Decode(&payload); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	return s.Begin(ctx, p, payload)
}

// Begin opens a wizard on the Review step with a snapshot of the items
// being bought.
func (s *CheckoutService) Begin(ctx context.Context, p *auth.Principal, payload domain.BeginCheckoutPayload) (*domain.Wizard, error) {
	if p == nil || p.UserID == "" {
		return nil, apperrors.Unauthorized("login required to begin checkout")
	}

	var items []domain.LineItem
	switch payload.Source {
	case domain.SourceProduct:
		item, err := payload.LineItem()
		if err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}
		items = []domain.LineItem{item}
	case domain.SourceCart:
		cartItems, err := s.carts.GetCart(ctx, p.Token)
		if err != nil {
			return nil, fmt.Errorf("read cart for checkout: %w", err)
		}
		items = cartItems
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown checkout source %q", payload.Source))
	}

	if err := domain.ValidateLineItems(items); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if domain.Total(items) <= 0 {
		return nil, apperrors.InvalidInput("none of the selected sizes are available")
	}

	w, err := domain.NewWizard(uuid.New().String(), p.UserID, items, s.now())
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	w.Email = strings.TrimSpace(payload.Email)
	if w.Email == "" {
		w.Email = p.Email
	}

	if err := s.wizards.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save wizard: %w", err)
	}
	wizardsOpened.WithLabelValues(string(payload.Source)).Inc()

	s.logger.InfoContext(ctx, "checkout wizard opened",
		slog.String("wizard_id", w.ID),
		slog.String("user_id", w.UserID),
		slog.String("source", string(payload.Source)),
		slog.Int64("total_amount", w.Total()),
	)

	return w, nil
}

// Get returns the caller's wizard.
func (s *CheckoutService) Get(ctx context.Context, userID, id string) (*domain.Wizard, error) {
	return s.load(ctx, userID, id)
}

// Continue moves the wizard forward. Leaving Delivery with invalid fields
// returns a *DeliveryInvalidError and keeps the wizard on Delivery with the
// errors attached.
func (s *CheckoutService) Continue(ctx context.Context, userID, id string) (*domain.Wizard, error) {
	w, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	from := w.Step
	err = w.Continue(s.validate, s.now())
	if errors.Is(err, domain.ErrDeliveryInvalid) {
		wizardTransitions.WithLabelValues(string(domain.EventContinue), "blocked").Inc()
		if saveErr := s.wizards.Save(ctx, w); saveErr != nil {
			return nil, fmt.Errorf("save wizard errors: %w", saveErr)
		}
		s.notifier.Notify(ctx, notify.Notification{
			Level:    notify.LevelWarning,
			Code:     notify.CodeDeliveryInvalid,
			Message:  "Please fix the highlighted fields",
			UserID:   userID,
			WizardID: w.ID,
		})
		return nil, &DeliveryInvalidError{Fields: w.Errors}
	}
	if err != nil {
		wizardTransitions.WithLabelValues(string(domain.EventContinue), "rejected").Inc()
		return nil, wizardError(err)
	}

	if err := s.wizards.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save wizard: %w", err)
	}
	wizardTransitions.WithLabelValues(string(domain.EventContinue), "ok").Inc()

	s.logger.DebugContext(ctx, "wizard advanced",
		slog.String("wizard_id", w.ID),
		slog.String("from", string(from)),
		slog.String("to", string(w.Step)),
	)
	return w, nil
}

// Back moves the wizard to the previous step.
func (s *CheckoutService) Back(ctx context.Context, userID, id string) (*domain.Wizard, error) {
	return s.mutate(ctx, userID, id, func(w *domain.Wizard) error {
		err := w.Back(s.now())
		result := "ok"
		if err != nil {
			result = "rejected"
		}
		wizardTransitions.WithLabelValues(string(domain.EventBack), result).Inc()
		return err
	})
}

// UpdateDelivery applies a delivery form edit.
func (s *CheckoutService) UpdateDelivery(ctx context.Context, userID, id string, patch domain.AddressPatch) (*domain.Wizard, error) {
	return s.mutate(ctx, userID, id, func(w *domain.Wizard) error {
		return w.UpdateDelivery(patch, s.now())
	})
}

// SetTermsAccepted records the terms checkbox.
func (s *CheckoutService) SetTermsAccepted(ctx context.Context, userID, id string, accepted bool) (*domain.Wizard, error) {
	return s.mutate(ctx, userID, id, func(w *domain.Wizard) error {
		return w.SetTermsAccepted(accepted, s.now())
	})
}

// CompletePayment fires the terminal action: it marks the wizard
// submitting, runs the order and payment protocol and clears the flag
// again whatever the outcome. Concurrent submissions of one wizard are
// rejected.
func (s *CheckoutService) CompletePayment(ctx context.Context, p *auth.Principal, id string) (*domain.PaymentIntent, error) {
	if p == nil {
		return nil, apperrors.Unauthorized("login required to complete payment")
	}
	if _, err := s.load(ctx, p.UserID, id); err != nil {
		return nil, err
	}

	token, ok, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("acquire submit lock: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict(domain.ErrAlreadySubmitting.Error())
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), id, token); err != nil {
			s.logger.ErrorContext(ctx, "failed to release submit lock",
				slog.String("wizard_id", id),
				slog.String("error", err.Error()),
			)
		}
	}()

	// Read again under the lock; an attempt that finished in between has
	// moved Attempt and LastOrderID on.
	w, err := s.load(ctx, p.UserID, id)
	if err != nil {
		return nil, err
	}

	if err := w.BeginSubmit(s.now()); err != nil {
		wizardTransitions.WithLabelValues(string(domain.EventCompletePayment), "rejected").Inc()
		if errors.Is(err, domain.ErrTermsNotAccepted) {
			s.notifier.Notify(ctx, notify.Notification{
				Level:    notify.LevelWarning,
				Code:     notify.CodeTermsRequired,
				Message:  "Please accept the terms and conditions",
				UserID:   p.UserID,
				WizardID: w.ID,
			})
		}
		return nil, wizardError(err)
	}
	if err := s.wizards.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save submitting wizard: %w", err)
	}
	wizardTransitions.WithLabelValues(string(domain.EventCompletePayment), "ok").Inc()

	intent, execErr := s.orchestrator.Execute(ctx, w, p.Token)

	orderID := ""
	if intent != nil {
		orderID = intent.OrderID
	} else {
		var oe *OrchestrationError
		if errors.As(execErr, &oe) {
			orderID = oe.OrderID
		}
	}

	// The shopper may have gone away; the flag must still come down.
	saveCtx := context.WithoutCancel(ctx)
	if err := w.EndSubmit(orderID, s.now()); err != nil {
		return nil, wizardError(err)
	}
	if err := s.wizards.Save(saveCtx, w); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear submitting flag",
			slog.String("wizard_id", w.ID),
			slog.String("error", err.Error()),
		)
		if execErr == nil {
			return nil, fmt.Errorf("save submitted wizard: %w", err)
		}
	}

	if execErr != nil {
		return nil, execErr
	}
	return intent, nil
}

// Close discards the wizard and everything it buffered.
func (s *CheckoutService) Close(ctx context.Context, userID, id string) error {
	w, err := s.load(ctx, userID, id)
	if err != nil {
		return err
	}
	if w.Submitting {
		return apperrors.Conflict("cannot close checkout while payment is being submitted")
	}
	if err := s.wizards.Delete(ctx, w.ID); err != nil {
		return fmt.Errorf("delete wizard: %w", err)
	}

	s.logger.InfoContext(ctx, "checkout wizard closed",
		slog.String("wizard_id", w.ID),
		slog.String("step", string(w.Step)),
	)
	return nil
}

// load fetches a wizard owned by userID. Wizards of other users are
// reported as not found.
func (s *CheckoutService) load(ctx context.Context, userID, id string) (*domain.Wizard, error) {
	w, err := s.wizards.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get wizard: %w", err)
	}
	if w.UserID != userID {
		return nil, apperrors.NotFound("checkout", id)
	}
	return w, nil
}

func (s *CheckoutService) mutate(ctx context.Context, userID, id string, fn func(*domain.Wizard) error) (*domain.Wizard, error) {
	w, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(w); err != nil {
		return nil, wizardError(err)
	}
	if err := s.wizards.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save wizard: %w", err)
	}
	return w, nil
}

// wizardError maps domain errors to application errors. Anything else is
// unexpected and surfaces as a 500.
func wizardError(err error) error {
	switch {
	case errors.Is(err, domain.ErrTermsNotAccepted):
		return apperrors.InvalidInput(err.Error())
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrAlreadySubmitting),
		errors.Is(err, domain.ErrNotSubmitting),
		errors.Is(err, domain.ErrWrongStep):
		return apperrors.Conflict(err.Error())
	default:
		return apperrors.Internal(err)
	}
}
