package services

import (
	"context"
	"errors"
	"fmt"

	"PizzaurumBackend/internal/models"
	"PizzaurumBackend/internal/store"
	"PizzaurumBackend/internal/stripe"

	"go.uber.org/zap"
)

// Reconciler applies the lighter-weight charge and invoice events that adjust
// an existing order's paid/failed state rather than creating rows.
type Reconciler struct {
	Orders OrderStore
	Log    *zap.Logger
}

// ChargeUpdated re-derives the order's payment state from the charge status.
// Unknown references and unchanged states are no-ops.
func (r *Reconciler) ChargeUpdated(ctx context.Context, charge stripe.Charge) error {
	order, ok, err := r.orderForCharge(ctx, charge)
	if err != nil || !ok {
		return err
	}

	newStatus := order.Status
	isPaid := order.Status == models.OrderPending
	switch charge.Status {
	case "succeeded":
		newStatus = models.OrderPending
		isPaid = true
	case "failed":
		newStatus = models.OrderFailed
		isPaid = false
	}
	if newStatus == order.Status {
		r.Log.Debug("charge update leaves order status unchanged",
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)))
		return nil
	}

	if err := r.Orders.SetPaymentState(ctx, order.ID, newStatus, isPaid); err != nil {
		return fmt.Errorf("apply charge update: %w", err)
	}
	r.Log.Info("order status updated from charge",
		zap.String("order_id", order.ID),
		zap.String("charge_id", charge.ID),
		zap.String("status", string(newStatus)))
	return nil
}

// ChargeFailed marks the matching order failed and unpaid.
func (r *Reconciler) ChargeFailed(ctx context.Context, charge stripe.Charge) error {
	order, ok, err := r.orderForCharge(ctx, charge)
	if err != nil || !ok {
		return err
	}
	if order.Status == models.OrderFailed {
		r.Log.Debug("order already marked failed", zap.String("order_id", order.ID))
		return nil
	}
	if err := r.Orders.SetPaymentState(ctx, order.ID, models.OrderFailed, false); err != nil {
		return fmt.Errorf("apply charge failure: %w", err)
	}
	r.Log.Info("order marked failed from charge",
		zap.String("order_id", order.ID),
		zap.String("charge_id", charge.ID))
	return nil
}

// InvoicePaid marks the order named by invoice metadata as paid and pending.
func (r *Reconciler) InvoicePaid(ctx context.Context, invoice stripe.Invoice) error {
	orderID := invoice.Metadata["order_id"]
	if orderID == "" {
		return nil
	}
	if err := r.Orders.SetPaymentState(ctx, orderID, models.OrderPending, true); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.Log.Info("no order for paid invoice", zap.String("invoice_id", invoice.ID))
			return nil
		}
		return fmt.Errorf("apply invoice payment: %w", err)
	}
	r.Log.Info("order marked paid from invoice",
		zap.String("order_id", orderID),
		zap.String("invoice_id", invoice.ID))
	return nil
}

// InvoiceFailed marks the order named by invoice metadata as failed.
func (r *Reconciler) InvoiceFailed(ctx context.Context, invoice stripe.Invoice) error {
	orderID := invoice.Metadata["order_id"]
	if orderID == "" {
		return nil
	}
	if err := r.Orders.SetPaymentState(ctx, orderID, models.OrderFailed, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.Log.Info("no order for failed invoice", zap.String("invoice_id", invoice.ID))
			return nil
		}
		return fmt.Errorf("apply invoice failure: %w", err)
	}
	r.Log.Info("order marked failed from invoice",
		zap.String("order_id", orderID),
		zap.String("invoice_id", invoice.ID))
	return nil
}

func (r *Reconciler) orderForCharge(ctx context.Context, charge stripe.Charge) (*models.Order, bool, error) {
	if charge.PaymentIntent == "" {
		return nil, false, nil
	}
	order, err := r.Orders.GetOrderByPaymentIntentID(ctx, charge.PaymentIntent.String())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.Log.Info("no order for charge payment intent",
				zap.String("charge_id", charge.ID),
				zap.String("payment_intent", charge.PaymentIntent.String()))
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fetch order for charge: %w", err)
	}
	return order, true, nil
}
