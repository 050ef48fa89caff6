package services

import (
	"context"
	"errors"
	"time"

	"PizzaurumBackend/internal/feed"
	"PizzaurumBackend/internal/models"
	"PizzaurumBackend/internal/notify"
	"PizzaurumBackend/internal/stripe"
)

// Collaborator interfaces. Services depend on these rather than on the
// concrete store/client types so the core runs against fakes in tests.

var ErrOrderNotFound = errors.New("order not found")

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	GetOrderByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) error
	SetPaymentState(ctx context.Context, orderID string, status models.OrderStatus, isPaid bool) error
	AssignDriver(ctx context.Context, orderID, driverID string) (int64, error)
	CompleteDelivery(ctx context.Context, orderID, driverID string) (int64, error)
	MarkRefunded(ctx context.Context, orderID, refundID, refundedBy string, at time.Time) (int64, error)
	SetNetProfit(ctx context.Context, orderID string, netProfit int64, paymentIssuer string) error
	SetEmailSent(ctx context.Context, orderID string) error
}

type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	AdjustReputation(ctx context.Context, userID string, delta int) error
}

type ProcessorClient interface {
	ListCharges(ctx context.Context, paymentIntentID string) ([]stripe.Charge, error)
	GetBalanceTransaction(ctx context.Context, id string) (*stripe.BalanceTransaction, error)
	GetPaymentIntent(ctx context.Context, id string, expandPaymentMethod bool) (*stripe.PaymentIntent, error)
	CreateRefund(ctx context.Context, params stripe.RefundParams) (*stripe.Refund, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

type PushSender interface {
	SendPush(ctx context.Context, token string, msg notify.PushMessage) error
}

type EmailSender interface {
	SendPurchaseEmail(ctx context.Context, orderID, email, name string) error
}

type FeedBroadcaster interface {
	Broadcast(ev feed.StatusEvent)
}
