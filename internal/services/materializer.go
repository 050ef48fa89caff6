package services

import (
	"context"
	"errors"
	"fmt"

	"PizzaurumBackend/internal/models"
	"PizzaurumBackend/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrMissingUserID marks a payment event whose metadata lacks the owning user.
// This is a permanent failure: redelivering the event cannot fix a checkout
// that was constructed without the user reference.
var ErrMissingUserID = errors.New("no user id in event metadata")

// PaymentEvent is the normalized form of the two order-creating webhook
// variants (checkout.session.completed and payment_intent.succeeded). Amount
// is in minor currency units.
type PaymentEvent struct {
	SessionID       string
	PaymentIntentID string
	InvoiceID       string
	Amount          int64
	CustomerEmail   string
	Metadata        map[string]string
}

// Materializer turns succeeded-payment events into persisted orders, exactly
// once per processor reference.
type Materializer struct {
	Orders OrderStore
	Users  UserStore
	Email  EmailSender
	Log    *zap.Logger
}

// Materialize creates the order for a succeeded payment. Duplicate webhook
// deliveries are absorbed silently: an existing order for either processor
// reference makes this a no-op.
func (m *Materializer) Materialize(ctx context.Context, ev PaymentEvent) error {
	existing, err := m.findExisting(ctx, ev)
	if err != nil {
		return fmt.Errorf("check existing order: %w", err)
	}
	if existing != nil {
		m.Log.Info("order already exists for payment reference",
			zap.String("order_id", existing.ID),
			zap.String("session_id", ev.SessionID),
			zap.String("payment_intent", ev.PaymentIntentID))
		return nil
	}

	userID := ev.Metadata["user_id"]
	if userID == "" {
		return ErrMissingUserID
	}

	price := decimal.New(ev.Amount, -2)
	order := &models.Order{
		ID:                    uuid.NewString(),
		UserID:                userID,
		Status:                models.OrderPending,
		Price:                 price,
		NetProfit:             EstimateFees(price).NetProfitCents(),
		PaymentIssuer:         unknownIssuer,
		Payment:               models.PaymentOnline,
		IsPaid:                true,
		OnlinePayment:         true,
		IsDelivery:            ev.Metadata["is_delivery"] == "true",
		IsCustomTime:          ev.Metadata["is_custom_time"] == "true",
		CustomerTime:          metadataOr(ev.Metadata, "customer_time", "asap"),
		Products:              m.lineItems(ev, price),
		StripeSessionID:       optionalString(ev.SessionID),
		StripePaymentIntentID: optionalString(ev.PaymentIntentID),
		StripeInvoiceID:       optionalString(ev.InvoiceID),
	}

	if err := m.Orders.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	m.Log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("payment_intent", ev.PaymentIntentID))

	// The order row is durable from here on; everything below is best-effort.
	m.afterCreate(ctx, order)
	return nil
}

// MaterializeFailed records a failed online payment as a failed, unpaid order
// so the attempt stays visible to the customer and to support.
func (m *Materializer) MaterializeFailed(ctx context.Context, ev PaymentEvent) error {
	existing, err := m.findExisting(ctx, ev)
	if err != nil {
		return fmt.Errorf("check existing order: %w", err)
	}
	if existing != nil {
		m.Log.Info("order already exists for failed payment reference",
			zap.String("order_id", existing.ID),
			zap.String("payment_intent", ev.PaymentIntentID))
		return nil
	}

	userID := ev.Metadata["user_id"]
	if userID == "" {
		return ErrMissingUserID
	}

	price := decimal.New(ev.Amount, -2)
	products := DecodeProducts(ev.Metadata["products_compact"], ev.Metadata["products_extras"])
	if len(products) == 0 {
		itemsCount := metadataOr(ev.Metadata, "items_count", "1")
		products = []models.OrderProduct{{
			Name:     "Ordine Pizzaurum (" + itemsCount + " prodotti) - Pagamento Fallito",
			Price:    price,
			Quantity: 1,
		}}
	}

	order := &models.Order{
		ID:                    uuid.NewString(),
		UserID:                userID,
		Status:                models.OrderFailed,
		Price:                 price,
		PaymentIssuer:         unknownIssuer,
		Payment:               models.PaymentOnline,
		OnlinePayment:         true,
		IsDelivery:            ev.Metadata["is_delivery"] == "true",
		IsCustomTime:          ev.Metadata["is_custom_time"] == "true",
		CustomerTime:          metadataOr(ev.Metadata, "customer_time", "asap"),
		Products:              products,
		StripePaymentIntentID: optionalString(ev.PaymentIntentID),
	}

	if err := m.Orders.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("insert failed order: %w", err)
	}
	m.Log.Info("order recorded as failed",
		zap.String("order_id", order.ID),
		zap.String("payment_intent", ev.PaymentIntentID))
	return nil
}

// findExisting checks both processor references: the session-completed and
// intent-succeeded events for one purchase may arrive in either order.
func (m *Materializer) findExisting(ctx context.Context, ev PaymentEvent) (*models.Order, error) {
	if ev.SessionID != "" {
		order, err := m.Orders.GetOrderBySessionID(ctx, ev.SessionID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}
	if ev.PaymentIntentID != "" {
		order, err := m.Orders.GetOrderByPaymentIntentID(ctx, ev.PaymentIntentID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}
	return nil, nil
}

func (m *Materializer) lineItems(ev PaymentEvent, price decimal.Decimal) []models.OrderProduct {
	products := DecodeProducts(ev.Metadata["products_compact"], ev.Metadata["products_extras"])
	if len(products) > 0 {
		return products
	}
	// Legacy/minimal checkouts carry no product metadata; keep a single
	// opaque line covering the full charged amount.
	return []models.OrderProduct{{
		Name:     "Ordine Pizzaurum",
		Price:    price,
		Quantity: 1,
	}}
}

func (m *Materializer) afterCreate(ctx context.Context, order *models.Order) {
	if err := m.Users.AdjustReputation(ctx, order.UserID, 1); err != nil {
		m.Log.Warn("reputation increment failed",
			zap.String("order_id", order.ID),
			zap.String("user_id", order.UserID), zap.Error(err))
	}

	user, err := m.Users.GetUser(ctx, order.UserID)
	if err != nil {
		m.Log.Warn("user lookup for purchase email failed",
			zap.String("order_id", order.ID),
			zap.String("user_id", order.UserID), zap.Error(err))
		return
	}
	if err := m.Email.SendPurchaseEmail(ctx, order.ID, user.Email, user.Name); err != nil {
		m.Log.Warn("purchase email failed",
			zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	if err := m.Orders.SetEmailSent(ctx, order.ID); err != nil {
		m.Log.Warn("email flag update failed",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

func metadataOr(metadata map[string]string, key, fallback string) string {
	if v := metadata[key]; v != "" {
		return v
	}
	return fallback
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
