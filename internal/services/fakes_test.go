package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"PizzaurumBackend/internal/feed"
	"PizzaurumBackend/internal/models"
	"PizzaurumBackend/internal/notify"
	"PizzaurumBackend/internal/store"
	"PizzaurumBackend/internal/stripe"

	"go.uber.org/zap"
)

// In-memory fakes for the collaborator interfaces in deps.go.

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order

	createErr       error
	updateErr       error
	markRefundedErr error
	// forces the zero-row MarkRefunded branch, as when a concurrent refund
	// wins the is_refunded guard
	markRefundedZero bool
}

func newFakeOrderStore(orders ...*models.Order) *fakeOrderStore {
	s := &fakeOrderStore{orders: make(map[string]*models.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *fakeOrderStore) CreateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cp := *order
	s.orders[order.ID] = &cp
	return nil
}

func (s *fakeOrderStore) GetOrder(_ context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeOrderStore) GetOrderBySessionID(_ context.Context, sessionID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.StripeSessionID != nil && *o.StripeSessionID == sessionID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeOrderStore) GetOrderByPaymentIntentID(_ context.Context, paymentIntentID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.StripePaymentIntentID != nil && *o.StripePaymentIntentID == paymentIntentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeOrderStore) UpdateStatus(_ context.Context, orderID string, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	o, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	return nil
}

func (s *fakeOrderStore) SetPaymentState(_ context.Context, orderID string, status models.OrderStatus, isPaid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	o.IsPaid = isPaid
	return nil
}

func (s *fakeOrderStore) AssignDriver(_ context.Context, orderID, driverID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return 0, nil
	}
	if o.DriverID != nil && *o.DriverID != driverID {
		return 0, nil
	}
	o.DriverID = &driverID
	return 1, nil
}

func (s *fakeOrderStore) CompleteDelivery(_ context.Context, orderID, driverID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.DriverID == nil || *o.DriverID != driverID || o.Status != models.OrderDelivering {
		return 0, nil
	}
	o.Status = models.OrderDelivered
	return 1, nil
}

func (s *fakeOrderStore) MarkRefunded(_ context.Context, orderID, refundID, refundedBy string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markRefundedErr != nil {
		return 0, s.markRefundedErr
	}
	if s.markRefundedZero {
		return 0, nil
	}
	o, ok := s.orders[orderID]
	if !ok {
		return 0, nil
	}
	if o.IsRefunded != nil && *o.IsRefunded {
		return 0, nil
	}
	refunded := true
	o.Status = models.OrderCancelled
	o.IsRefunded = &refunded
	o.StripeRefundID = &refundID
	o.RefundedBy = &refundedBy
	o.RefundedAt = &at
	return 1, nil
}

func (s *fakeOrderStore) SetNetProfit(_ context.Context, orderID string, netProfit int64, paymentIssuer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.NetProfit = netProfit
	o.PaymentIssuer = paymentIssuer
	return nil
}

func (s *fakeOrderStore) SetEmailSent(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.IsEmailSent = true
	return nil
}

func (s *fakeOrderStore) get(orderID string) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[orderID]
}

func (s *fakeOrderStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type fakeUserStore struct {
	mu         sync.Mutex
	users      map[string]*models.User
	reputation map[string]int

	getErr error
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{
		users:      make(map[string]*models.User),
		reputation: make(map[string]int),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) AdjustReputation(_ context.Context, userID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reputation[userID] += delta
	return nil
}

func (s *fakeUserStore) reputationDelta(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reputation[userID]
}

type fakeProcessor struct {
	charges    []stripe.Charge
	chargesErr error

	balanceTxn    *stripe.BalanceTransaction
	balanceTxnErr error

	intent    *stripe.PaymentIntent
	intentErr error

	refund       *stripe.Refund
	refundErr    error
	refundParams []stripe.RefundParams
}

func (p *fakeProcessor) ListCharges(_ context.Context, _ string) ([]stripe.Charge, error) {
	return p.charges, p.chargesErr
}

func (p *fakeProcessor) GetBalanceTransaction(_ context.Context, _ string) (*stripe.BalanceTransaction, error) {
	return p.balanceTxn, p.balanceTxnErr
}

func (p *fakeProcessor) GetPaymentIntent(_ context.Context, _ string, _ bool) (*stripe.PaymentIntent, error) {
	return p.intent, p.intentErr
}

func (p *fakeProcessor) CreateRefund(_ context.Context, params stripe.RefundParams) (*stripe.Refund, error) {
	p.refundParams = append(p.refundParams, params)
	if p.refundErr != nil {
		return nil, p.refundErr
	}
	return p.refund, nil
}

type sentSMS struct {
	Phone   string
	Message string
}

type fakeSMS struct {
	sent []sentSMS
	err  error
}

func (f *fakeSMS) SendSMS(_ context.Context, phone, message string) error {
	f.sent = append(f.sent, sentSMS{Phone: phone, Message: message})
	return f.err
}

type sentPush struct {
	Token string
	Msg   notify.PushMessage
}

type fakePush struct {
	sent []sentPush
	err  error
}

func (f *fakePush) SendPush(_ context.Context, token string, msg notify.PushMessage) error {
	f.sent = append(f.sent, sentPush{Token: token, Msg: msg})
	return f.err
}

type sentEmail struct {
	OrderID string
	Email   string
	Name    string
}

type fakeEmail struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmail) SendPurchaseEmail(_ context.Context, orderID, email, name string) error {
	f.sent = append(f.sent, sentEmail{OrderID: orderID, Email: email, Name: name})
	return f.err
}

type fakeFeed struct {
	events []feed.StatusEvent
}

func (f *fakeFeed) Broadcast(ev feed.StatusEvent) {
	f.events = append(f.events, ev)
}

func testLogger() *zap.Logger { return zap.NewNop() }

var errBoom = errors.New("boom")

func strptr(s string) *string { return &s }
