package domain

import (
	"fmt"
	"time"
)

// Step is a checkout wizard state.
type Step string

// Wizard steps, in forward order.
const (
	StepReview   Step = "review"
	StepDelivery Step = "delivery"
	StepPayment  Step = "payment"
)

// Event drives a wizard transition.
type Event string

// Wizard events.
const (
	EventContinue        Event = "continue"
	EventBack            Event = "back"
	EventCompletePayment Event = "complete_payment"
)

// transitions is the complete set of legal moves. Anything absent is illegal.
var transitions = map[Step]map[Event]Step{
	StepReview: {
		EventContinue: StepDelivery,
	},
	StepDelivery: {
		EventContinue: StepPayment,
		EventBack:     StepReview,
	},
	StepPayment: {
		EventBack:            StepDelivery,
		EventCompletePayment: StepPayment,
	},
}

// DeliveryValidator checks the delivery form and returns its field errors.
type DeliveryValidator func(addr Address, email string) FieldErrors

// Wizard is one checkout session: the three-step state machine together with
// the line-item snapshot and the address buffer it owns.
type Wizard struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	Step          Step        `json:"step"`
	Items         []LineItem  `json:"items"`
	Address       Address     `json:"address"`
	Email         string      `json:"email"`
	Errors        FieldErrors `json:"errors,omitempty"`
	TermsAccepted bool        `json:"terms_accepted"`
	Submitting    bool        `json:"submitting"`
	Attempt       int         `json:"attempt"`
	LastOrderID   string      `json:"last_order_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// NewWizard opens a wizard on the Review step.
func NewWizard(id, userID string, items []LineItem, now time.Time) (*Wizard, error) {
	if err := ValidateLineItems(items); err != nil {
		return nil, err
	}
	snapshot := make([]LineItem, len(items))
	copy(snapshot, items)
	return &Wizard{
		ID:        id,
		UserID:    userID,
		Step:      StepReview,
		Items:     snapshot,
		Errors:    FieldErrors{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Can reports whether e is a legal event from the current step.
func (w *Wizard) Can(e Event) bool {
	_, ok := transitions[w.Step][e]
	return ok
}

func (w *Wizard) next(e Event) (Step, error) {
	to, ok := transitions[w.Step][e]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrIllegalTransition, e, w.Step)
	}
	return to, nil
}

// Continue moves forward one step. Leaving Delivery runs validate; on
// failure the errors are attached, the step is unchanged and
// ErrDeliveryInvalid is returned.
func (w *Wizard) Continue(validate DeliveryValidator, now time.Time) error {
	if w.Submitting {
		return ErrAlreadySubmitting
	}
	to, err := w.next(EventContinue)
	if err != nil {
		return err
	}
	if w.Step == StepDelivery {
		errs := validate(w.Address, w.Email)
		if errs == nil {
			errs = FieldErrors{}
		}
		w.Errors = errs
		w.UpdatedAt = now
		if !errs.Valid() {
			return ErrDeliveryInvalid
		}
	}
	w.Step = to
	w.UpdatedAt = now
	return nil
}

// Back moves to the previous step. It never validates and never resets the
// address buffer.
func (w *Wizard) Back(now time.Time) error {
	if w.Submitting {
		return ErrAlreadySubmitting
	}
	to, err := w.next(EventBack)
	if err != nil {
		return err
	}
	w.Step = to
	w.UpdatedAt = now
	return nil
}

// UpdateDelivery applies a form edit and clears the errors of every edited
// field.
func (w *Wizard) UpdateDelivery(p AddressPatch, now time.Time) error {
	if w.Submitting {
		return ErrAlreadySubmitting
	}
	touched := p.apply(&w.Address, &w.Email)
	if w.Errors == nil {
		w.Errors = FieldErrors{}
	}
	w.Errors.Clear(touched...)
	w.UpdatedAt = now
	return nil
}

// SetTermsAccepted records the terms checkbox on the Payment step.
func (w *Wizard) SetTermsAccepted(accepted bool, now time.Time) error {
	if w.Step != StepPayment {
		return fmt.Errorf("%w: terms are set on the %s step", ErrWrongStep, StepPayment)
	}
	if w.Submitting {
		return ErrAlreadySubmitting
	}
	w.TermsAccepted = accepted
	w.UpdatedAt = now
	return nil
}

// BeginSubmit fires CompletePayment. It requires accepted terms and no
// submission in flight, then marks the wizard submitting and starts a new
// attempt.
func (w *Wizard) BeginSubmit(now time.Time) error {
	if _, err := w.next(EventCompletePayment); err != nil {
		return err
	}
	if !w.TermsAccepted {
		return ErrTermsNotAccepted
	}
	if w.Submitting {
		return ErrAlreadySubmitting
	}
	w.Submitting = true
	w.Attempt++
	w.UpdatedAt = now
	return nil
}

// EndSubmit clears the submitting flag once the attempt resolved. orderID is
// the order created by the attempt, if any.
func (w *Wizard) EndSubmit(orderID string, now time.Time) error {
	if !w.Submitting {
		return ErrNotSubmitting
	}
	w.Submitting = false
	if orderID != "" {
		w.LastOrderID = orderID
	}
	w.UpdatedAt = now
	return nil
}

// IdempotencyKey identifies the current submission attempt.
func (w *Wizard) IdempotencyKey() string {
	return fmt.Sprintf("%s:%d", w.ID, w.Attempt)
}

// Subtotal of the line-item snapshot, in cents.
func (w *Wizard) Subtotal() int64 {
	return Subtotal(w.Items)
}

// Total of the line-item snapshot, in cents.
func (w *Wizard) Total() int64 {
	return Total(w.Items)
}
