package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func alwaysValid(Address, string) FieldErrors { return FieldErrors{} }

func zipcodeMissing(Address, string) FieldErrors {
	return FieldErrors{"zipcode": "Zipcode must be at least 4 characters"}
}

func newTestWizard(t *testing.T) *Wizard {
	t.Helper()
	w, err := NewWizard("wiz-1", "user-1", []LineItem{
		{ProductID: "p1", Sizes: wheySizes(), SizeSelected: "30", Quantity: 2},
	}, now)
	require.NoError(t, err)
	return w
}

func toPayment(t *testing.T, w *Wizard) {
	t.Helper()
	require.NoError(t, w.Continue(alwaysValid, now))
	require.NoError(t, w.Continue(alwaysValid, now))
	require.Equal(t, StepPayment, w.Step)
}

func TestNewWizard(t *testing.T) {
	w := newTestWizard(t)
	assert.Equal(t, StepReview, w.Step)
	assert.Equal(t, int64(17998), w.Total())
	assert.True(t, w.Errors.Valid())

	_, err := NewWizard("wiz-2", "user-1", nil, now)
	assert.ErrorIs(t, err, ErrEmptyCheckout)
}

func TestWizard_ReviewToDeliveryIsUnconditional(t *testing.T) {
	w := newTestWizard(t)
	called := false
	err := w.Continue(func(Address, string) FieldErrors {
		called = true
		return FieldErrors{"name": "bad"}
	}, now)

	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, StepDelivery, w.Step)
}

func TestWizard_DeliveryBlockedByErrors(t *testing.T) {
	w := newTestWizard(t)
	require.NoError(t, w.Continue(alwaysValid, now))

	err := w.Continue(zipcodeMissing, now)

	assert.ErrorIs(t, err, ErrDeliveryInvalid)
	assert.Equal(t, StepDelivery, w.Step)
	assert.Equal(t, FieldErrors{"zipcode": "Zipcode must be at least 4 characters"}, w.Errors)
}

func TestWizard_DeliveryAdvancesWhenValid(t *testing.T) {
	w := newTestWizard(t)
	require.NoError(t, w.Continue(alwaysValid, now))
	w.Errors = FieldErrors{"name": "stale"}

	require.NoError(t, w.Continue(alwaysValid, now))

	assert.Equal(t, StepPayment, w.Step)
	assert.True(t, w.Errors.Valid())
}

func TestWizard_BackKeepsAddress(t *testing.T) {
	w := newTestWizard(t)
	require.NoError(t, w.Continue(alwaysValid, now))
	name := "Jane Doe"
	require.NoError(t, w.UpdateDelivery(AddressPatch{Name: &name}, now))
	require.NoError(t, w.Continue(alwaysValid, now))

	require.NoError(t, w.Back(now))
	assert.Equal(t, StepDelivery, w.Step)
	require.NoError(t, w.Back(now))
	assert.Equal(t, StepReview, w.Step)
	assert.Equal(t, "Jane Doe", w.Address.Name)
}

func TestWizard_IllegalTransitions(t *testing.T) {
	w := newTestWizard(t)
	assert.ErrorIs(t, w.Back(now), ErrIllegalTransition)
	assert.ErrorIs(t, w.BeginSubmit(now), ErrIllegalTransition)

	toPayment(t, w)
	assert.ErrorIs(t, w.Continue(alwaysValid, now), ErrIllegalTransition)
	assert.False(t, w.Can(EventContinue))
	assert.True(t, w.Can(EventCompletePayment))
}

func TestWizard_UpdateDeliveryClearsEditedFieldsOnly(t *testing.T) {
	w := newTestWizard(t)
	w.Errors = FieldErrors{"zipcode": "bad", "email": "bad", "city": "bad"}

	zip, email := "10001", "jane@example.com"
	require.NoError(t, w.UpdateDelivery(AddressPatch{Zipcode: &zip, Email: &email}, now))

	assert.Equal(t, FieldErrors{"city": "bad"}, w.Errors)
	assert.Equal(t, "10001", w.Address.Zipcode)
	assert.Equal(t, "jane@example.com", w.Email)
}

func TestWizard_TermsGateCompletePayment(t *testing.T) {
	w := newTestWizard(t)
	assert.ErrorIs(t, w.SetTermsAccepted(true, now), ErrWrongStep)

	toPayment(t, w)
	assert.ErrorIs(t, w.BeginSubmit(now), ErrTermsNotAccepted)
	assert.False(t, w.Submitting)
	assert.Equal(t, 0, w.Attempt)

	require.NoError(t, w.SetTermsAccepted(true, now))
	require.NoError(t, w.BeginSubmit(now))
	assert.True(t, w.Submitting)
	assert.Equal(t, 1, w.Attempt)
	assert.Equal(t, "wiz-1:1", w.IdempotencyKey())
}

func TestWizard_SubmittingBlocksEverything(t *testing.T) {
	w := newTestWizard(t)
	toPayment(t, w)
	require.NoError(t, w.SetTermsAccepted(true, now))
	require.NoError(t, w.BeginSubmit(now))

	assert.ErrorIs(t, w.BeginSubmit(now), ErrAlreadySubmitting)
	assert.ErrorIs(t, w.Back(now), ErrAlreadySubmitting)
	assert.ErrorIs(t, w.SetTermsAccepted(false, now), ErrAlreadySubmitting)
	assert.ErrorIs(t, w.UpdateDelivery(AddressPatch{}, now), ErrAlreadySubmitting)
}

func TestWizard_RetryStartsNewAttempt(t *testing.T) {
	w := newTestWizard(t)
	toPayment(t, w)
	require.NoError(t, w.SetTermsAccepted(true, now))

	require.NoError(t, w.BeginSubmit(now))
	require.NoError(t, w.EndSubmit("", now))
	assert.False(t, w.Submitting)

	require.NoError(t, w.BeginSubmit(now))
	assert.Equal(t, "wiz-1:2", w.IdempotencyKey())
	require.NoError(t, w.EndSubmit("order-9", now))
	assert.Equal(t, "order-9", w.LastOrderID)

	assert.ErrorIs(t, w.EndSubmit("", now), ErrNotSubmitting)
}
