package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/notify"
)

// --- Mock Backends ---

type mockOrderBackend struct {
	mock.Mock
}

func (m *mockOrderBackend) CreateOrder(ctx context.Context, token, idempotencyKey string, req backend.CreateOrderRequest) (string, error) {
	args := m.Called(ctx, token, idempotencyKey, req)
	return args.String(0), args.Error(1)
}

func (m *mockOrderBackend) GetOrder(ctx context.Context, token, orderID string) (*backend.Order, error) {
	args := m.Called(ctx, token, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Order), args.Error(1)
}

type mockPaymentBackend struct {
	mock.Mock
}

func (m *mockPaymentBackend) CreatePayment(ctx context.Context, token, idempotencyKey string, req backend.CreatePaymentRequest) (string, error) {
	args := m.Called(ctx, token, idempotencyKey, req)
	return args.String(0), args.Error(1)
}

func (m *mockPaymentBackend) VerifyPayment(ctx context.Context, token, orderID string, test bool) (*backend.Order, error) {
	args := m.Called(ctx, token, orderID, test)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Order), args.Error(1)
}

type mockCartBackend struct {
	mock.Mock
}

func (m *mockCartBackend) GetCart(ctx context.Context, token string) ([]domain.LineItem, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LineItem), args.Error(1)
}

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishOrderCreated(ctx context.Context, w *domain.Wizard, orderID string) error {
	return m.Called(ctx, w, orderID).Error(0)
}

func (m *mockEventPublisher) PublishPaymentInitiated(ctx context.Context, w *domain.Wizard, intent *domain.PaymentIntent) error {
	return m.Called(ctx, w, intent).Error(0)
}

func (m *mockEventPublisher) PublishPaymentFailed(ctx context.Context, w *domain.Wizard, orderID, stage, reason string) error {
	return m.Called(ctx, w, orderID, stage, reason).Error(0)
}

func (m *mockEventPublisher) PublishVerified(ctx context.Context, userID string, view *domain.OrderView) error {
	return m.Called(ctx, userID, view).Error(0)
}

// allowEvents accepts any publish call.
func allowEvents() *mockEventPublisher {
	m := new(mockEventPublisher)
	m.On("PublishOrderCreated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("PublishPaymentInitiated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("PublishPaymentFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("PublishVerified", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}

// --- Test Helpers ---

type notificationRecorder struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *notificationRecorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *notificationRecorder) codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, 0, len(r.got))
	for _, n := range r.got {
		codes = append(codes, n.Code)
	}
	return codes
}

func (r *notificationRecorder) last() notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.got) == 0 {
		return notify.Notification{}
	}
	return r.got[len(r.got)-1]
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func wheyItem(qty int) domain.LineItem {
	return domain.LineItem{
		ProductID:   "prod-whey",
		ProductName: "Whey Protein",
		Sizes: []domain.SizeOption{
			{Weight: "30", Price: 8999, OldPrice: 9999, Servings: 30},
			{Weight: "60", Price: 15999, Servings: 60},
		},
		SizeSelected: "30",
		Quantity:     qty,
	}
}

func validAddress() domain.Address {
	return domain.Address{
		Name:    "Jane Doe",
		Phone:   "+1 (555) 123-4567",
		Street:  "42 Harbor Street",
		City:    "Portland",
		State:   "OR",
		Country: "US",
		Zipcode: "97201",
	}
}

// paymentStepWizard returns a wizard on the Payment step with a valid
// address and the terms accepted.
func paymentStepWizard(t *testing.T) *domain.Wizard {
	t.Helper()
	w, err := domain.NewWizard("wiz-1", "user-1", []domain.LineItem{wheyItem(2)}, testNow)
	require.NoError(t, err)
	w.Address = validAddress()
	w.Email = "jane@example.com"
	valid := func(domain.Address, string) domain.FieldErrors { return nil }
	require.NoError(t, w.Continue(valid, testNow))
	require.NoError(t, w.Continue(valid, testNow))
	require.NoError(t, w.SetTermsAccepted(true, testNow))
	return w
}
