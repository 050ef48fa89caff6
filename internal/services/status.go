package services

import (
	"context"
	"errors"
	"fmt"

	"PizzaurumBackend/internal/feed"
	"PizzaurumBackend/internal/models"
	"PizzaurumBackend/internal/notify"
	"PizzaurumBackend/internal/store"

	"go.uber.org/zap"
)

var (
	ErrRiderConflict = errors.New("order already assigned to another rider")
	ErrNotOrderRider = errors.New("order is not assigned to this rider")
	ErrNotDelivering = errors.New("order must be in delivering status to be completed")
)

// StatusService applies order-status changes and fans out the notifications
// tied to them. The status write is the primary effect; SMS, push, the live
// feed and the net-profit backfill are independent and failure-isolated.
type StatusService struct {
	Orders OrderStore
	Users  UserStore
	SMS    SMSSender
	Push   PushSender
	Fees   *FeeResolver
	Feed   FeedBroadcaster
	Log    *zap.Logger
}

// AssignRider claims an order for a rider. Re-assigning the same rider is an
// idempotent success; a different rider is rejected.
func (s *StatusService) AssignRider(ctx context.Context, orderID, riderID string) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.DriverID != nil && *order.DriverID != riderID {
		return nil, ErrRiderConflict
	}

	n, err := s.Orders.AssignDriver(ctx, orderID, riderID)
	if err != nil {
		return nil, fmt.Errorf("assign driver: %w", err)
	}
	if n == 0 {
		// Another rider won the row between our read and the guarded update.
		return nil, ErrRiderConflict
	}
	order.DriverID = &riderID
	return order, nil
}

// CompleteOrder moves a delivering order to delivered on behalf of its
// assigned rider, then lazily backfills net profit if still unresolved.
func (s *StatusService) CompleteOrder(ctx context.Context, orderID, riderID string) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.DriverID == nil || *order.DriverID != riderID {
		return nil, ErrNotOrderRider
	}
	if order.Status != models.OrderDelivering {
		return nil, ErrNotDelivering
	}

	n, err := s.Orders.CompleteDelivery(ctx, orderID, riderID)
	if err != nil {
		return nil, fmt.Errorf("complete delivery: %w", err)
	}
	if n == 0 {
		return nil, ErrNotDelivering
	}
	order.Status = models.OrderDelivered

	s.broadcast(order)
	s.maybeBackfillProfit(ctx, order)
	return order, nil
}

// UpdateStatus persists the new status unconditionally, then dispatches the
// transition-specific side effects. Only the status write can fail the call.
func (s *StatusService) UpdateStatus(ctx context.Context, orderID string, newStatus models.OrderStatus) error {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return err
	}

	var user *models.User
	user, err = s.Users.GetUser(ctx, order.UserID)
	if err != nil {
		s.Log.Warn("user lookup for notifications failed",
			zap.String("order_id", orderID),
			zap.String("user_id", order.UserID), zap.Error(err))
		user = nil
	}

	if err := s.Orders.UpdateStatus(ctx, orderID, newStatus); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("update status: %w", err)
	}
	order.Status = newStatus

	s.dispatchSMS(ctx, order, user)
	s.dispatchPush(ctx, order, user)
	s.broadcast(order)

	if newStatus == models.OrderDelivered {
		s.maybeBackfillProfit(ctx, order)
	}
	return nil
}

// BackfillNetProfit forces resolution of the settled fee data for an order,
// used by the manual reconciliation endpoint. Unlike the lazy backfill it
// overwrites whatever value is already stored.
func (s *StatusService) BackfillNetProfit(ctx context.Context, orderID, paymentIntentID string) (FeeBreakdown, error) {
	fees := s.Fees.Resolve(ctx, paymentIntentID)
	if err := s.Orders.SetNetProfit(ctx, orderID, fees.NetProfitCents(), fees.PaymentIssuer); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fees, ErrOrderNotFound
		}
		return fees, fmt.Errorf("set net profit: %w", err)
	}
	s.Log.Info("net profit updated",
		zap.String("order_id", orderID),
		zap.Int64("net_profit", fees.NetProfitCents()),
		zap.String("payment_issuer", fees.PaymentIssuer))
	return fees, nil
}

func (s *StatusService) getOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("fetch order: %w", err)
	}
	return order, nil
}

// SMS goes out on exactly two transitions: pickup orders turning ready, and
// delivery orders going out the door.
func (s *StatusService) dispatchSMS(ctx context.Context, order *models.Order, user *models.User) {
	if user == nil || user.Phone == "" {
		return
	}

	var message string
	switch {
	case !order.IsDelivery && order.Status == models.OrderReadyToPickup:
		message = notify.PickupReadySMS(shortID(order.ID))
	case order.IsDelivery && order.Status == models.OrderDelivering:
		message = notify.DeliveringSMS(shortID(order.ID))
	default:
		return
	}

	if err := s.SMS.SendSMS(ctx, user.Phone, message); err != nil {
		s.Log.Warn("sms dispatch failed",
			zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	s.Log.Info("sms dispatched", zap.String("order_id", order.ID))
}

func (s *StatusService) dispatchPush(ctx context.Context, order *models.Order, user *models.User) {
	if user == nil || user.ExpoPushToken == nil || *user.ExpoPushToken == "" {
		s.Log.Debug("no push token for user", zap.String("user_id", order.UserID))
		return
	}

	number := order.Number()
	msg := notify.PushMessage{
		OrderID:     order.ID,
		Status:      string(order.Status),
		OrderNumber: number,
		Title:       notify.NotificationTitle(string(order.Status)),
		Body:        notify.NotificationBody(string(order.Status), number),
	}
	if err := s.Push.SendPush(ctx, *user.ExpoPushToken, msg); err != nil {
		s.Log.Warn("push dispatch failed",
			zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	s.Log.Info("push dispatched", zap.String("order_id", order.ID))
}

func (s *StatusService) broadcast(order *models.Order) {
	if s.Feed == nil {
		return
	}
	s.Feed.Broadcast(feed.StatusEvent{
		OrderID:     order.ID,
		OrderNumber: order.Number(),
		Status:      string(order.Status),
	})
}

// maybeBackfillProfit resolves the authoritative fee data once the order
// reaches a terminal state, if the materialization-time estimate is still in
// place. Resolved values are never reverted.
func (s *StatusService) maybeBackfillProfit(ctx context.Context, order *models.Order) {
	if s.Fees == nil || order.StripePaymentIntentID == nil {
		return
	}
	if order.PaymentIssuer != unknownIssuer && order.NetProfit != 0 {
		return
	}

	fees := s.Fees.Resolve(ctx, *order.StripePaymentIntentID)
	if err := s.Orders.SetNetProfit(ctx, order.ID, fees.NetProfitCents(), fees.PaymentIssuer); err != nil {
		s.Log.Warn("net profit backfill failed",
			zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	s.Log.Info("net profit backfilled",
		zap.String("order_id", order.ID),
		zap.Int64("net_profit", fees.NetProfitCents()),
		zap.String("payment_issuer", fees.PaymentIssuer))
}

// shortID is the first 8 characters of the order id, as used in SMS bodies.
func shortID(orderID string) string {
	if len(orderID) > 8 {
		return orderID[:8]
	}
	return orderID
}
