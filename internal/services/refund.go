package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PizzaurumBackend/internal/models"
	"PizzaurumBackend/internal/store"
	"PizzaurumBackend/internal/stripe"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrRefundForbidden   = errors.New("not authorized to refund this order")
	ErrRefundStage       = errors.New("order cannot be refunded at this stage")
	ErrAlreadyRefunded   = errors.New("order has already been refunded")
	ErrNoPaymentIntent   = errors.New("no payment intent associated with this order")
	ErrRefundBookkeeping = errors.New("refund issued but order update failed")
)

type RefundResult struct {
	RefundID string
	Amount   decimal.Decimal
	Currency string
	Status   string
}

// RefundService issues full refunds through the payment processor and
// reverses the order's accounting side effects.
type RefundService struct {
	Orders    OrderStore
	Users     UserStore
	Processor ProcessorClient
	Log       *zap.Logger
}

// Refund refunds the order's full price. Customers may only self-serve while
// the order is still pending or accepted and only on their own orders; admins
// may refund at any stage. A refund is issued at most once per order.
func (s *RefundService) Refund(ctx context.Context, orderID, userID string, isAdmin bool) (*RefundResult, error) {
	order, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("fetch order: %w", err)
	}

	if !isAdmin {
		if userID == "" || order.UserID != userID {
			return nil, ErrRefundForbidden
		}
		if order.Status != models.OrderPending && order.Status != models.OrderAccepted {
			return nil, ErrRefundStage
		}
	}
	if order.IsRefunded != nil && *order.IsRefunded {
		return nil, ErrAlreadyRefunded
	}
	if order.StripePaymentIntentID == nil {
		return nil, ErrNoPaymentIntent
	}

	refundedBy := "customer"
	reason := "requested_by_customer"
	if isAdmin {
		refundedBy = "admin"
		reason = "requested_by_admin"
	}

	refund, err := s.Processor.CreateRefund(ctx, stripe.RefundParams{
		PaymentIntent: *order.StripePaymentIntentID,
		Amount:        order.Price.Shift(2).Round(0).IntPart(),
		Metadata: map[string]string{
			"order_id":      orderID,
			"refund_reason": reason,
		},
	})
	if err != nil {
		// Nothing was mutated; the caller may retry.
		return nil, fmt.Errorf("issue refund: %w", err)
	}

	n, err := s.Orders.MarkRefunded(ctx, orderID, refund.ID, refundedBy, time.Now().UTC())
	if err != nil {
		s.Log.Error("refund issued at processor but order update failed; manual reconciliation required",
			zap.String("order_id", orderID),
			zap.String("refund_id", refund.ID), zap.Error(err))
		return nil, ErrRefundBookkeeping
	}
	if n == 0 {
		s.Log.Error("refund issued for an order concurrently marked refunded; manual reconciliation required",
			zap.String("order_id", orderID),
			zap.String("refund_id", refund.ID))
		return nil, ErrRefundBookkeeping
	}

	if err := s.Users.AdjustReputation(ctx, order.UserID, -1); err != nil {
		s.Log.Warn("reputation decrement failed",
			zap.String("order_id", orderID),
			zap.String("user_id", order.UserID), zap.Error(err))
	}

	s.Log.Info("order refunded",
		zap.String("order_id", orderID),
		zap.String("refund_id", refund.ID),
		zap.String("refunded_by", refundedBy))

	return &RefundResult{
		RefundID: refund.ID,
		Amount:   decimal.New(refund.Amount, -2),
		Currency: refund.Currency,
		Status:   refund.Status,
	}, nil
}
