package services

import (
	"context"
	"testing"

	"PizzaurumBackend/internal/models"
	"PizzaurumBackend/internal/stripe"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refundableOrder() *models.Order {
	return &models.Order{
		ID:                    testOrderID,
		UserID:                "user-1",
		Status:                models.OrderPending,
		Price:                 decimal.NewFromFloat(20.00),
		StripePaymentIntentID: strptr("pi_1"),
	}
}

func newRefundService(orders *fakeOrderStore, users *fakeUserStore, proc *fakeProcessor) *RefundService {
	return &RefundService{Orders: orders, Users: users, Processor: proc, Log: testLogger()}
}

func TestRefundByOwner(t *testing.T) {
	orders := newFakeOrderStore(refundableOrder())
	users := newFakeUserStore()
	proc := &fakeProcessor{refund: &stripe.Refund{ID: "re_1", Amount: 2000, Currency: "eur", Status: "succeeded"}}
	s := newRefundService(orders, users, proc)

	result, err := s.Refund(context.Background(), testOrderID, "user-1", false)
	require.NoError(t, err)

	assert.Equal(t, "re_1", result.RefundID)
	assert.True(t, result.Amount.Equal(decimal.NewFromFloat(20.00)), "amount = %s", result.Amount)
	assert.Equal(t, "eur", result.Currency)

	require.Len(t, proc.refundParams, 1)
	assert.Equal(t, "pi_1", proc.refundParams[0].PaymentIntent)
	assert.Equal(t, int64(2000), proc.refundParams[0].Amount)
	assert.Equal(t, "requested_by_customer", proc.refundParams[0].Metadata["refund_reason"])

	order := orders.get(testOrderID)
	assert.Equal(t, models.OrderCancelled, order.Status)
	require.NotNil(t, order.IsRefunded)
	assert.True(t, *order.IsRefunded)
	require.NotNil(t, order.RefundedBy)
	assert.Equal(t, "customer", *order.RefundedBy)

	assert.Equal(t, -1, users.reputationDelta("user-1"))
}

func TestRefundForbiddenForOtherUser(t *testing.T) {
	proc := &fakeProcessor{}
	s := newRefundService(newFakeOrderStore(refundableOrder()), newFakeUserStore(), proc)

	_, err := s.Refund(context.Background(), testOrderID, "user-2", false)
	assert.ErrorIs(t, err, ErrRefundForbidden)
	assert.Empty(t, proc.refundParams)
}

func TestRefundForbiddenWithoutUserID(t *testing.T) {
	s := newRefundService(newFakeOrderStore(refundableOrder()), newFakeUserStore(), &fakeProcessor{})

	_, err := s.Refund(context.Background(), testOrderID, "", false)
	assert.ErrorIs(t, err, ErrRefundForbidden)
}

func TestRefundStageForCustomer(t *testing.T) {
	for _, status := range []models.OrderStatus{
		models.OrderInPreparation,
		models.OrderDelivering,
		models.OrderDelivered,
	} {
		o := refundableOrder()
		o.Status = status
		s := newRefundService(newFakeOrderStore(o), newFakeUserStore(), &fakeProcessor{})

		_, err := s.Refund(context.Background(), testOrderID, "user-1", false)
		assert.ErrorIs(t, err, ErrRefundStage, "status %q", status)
	}
}

func TestRefundAdminBypassesStageAndOwnership(t *testing.T) {
	o := refundableOrder()
	o.Status = models.OrderDelivering
	orders := newFakeOrderStore(o)
	proc := &fakeProcessor{refund: &stripe.Refund{ID: "re_1", Amount: 2000, Currency: "eur", Status: "succeeded"}}
	s := newRefundService(orders, newFakeUserStore(), proc)

	result, err := s.Refund(context.Background(), testOrderID, "admin-1", true)
	require.NoError(t, err)
	assert.Equal(t, "re_1", result.RefundID)
	assert.Equal(t, "requested_by_admin", proc.refundParams[0].Metadata["refund_reason"])

	order := orders.get(testOrderID)
	require.NotNil(t, order.RefundedBy)
	assert.Equal(t, "admin", *order.RefundedBy)
}

func TestRefundAlreadyRefunded(t *testing.T) {
	o := refundableOrder()
	refunded := true
	o.IsRefunded = &refunded
	proc := &fakeProcessor{}
	s := newRefundService(newFakeOrderStore(o), newFakeUserStore(), proc)

	_, err := s.Refund(context.Background(), testOrderID, "user-1", false)
	assert.ErrorIs(t, err, ErrAlreadyRefunded)
	assert.Empty(t, proc.refundParams)
}

func TestRefundWithoutPaymentIntent(t *testing.T) {
	o := refundableOrder()
	o.StripePaymentIntentID = nil
	s := newRefundService(newFakeOrderStore(o), newFakeUserStore(), &fakeProcessor{})

	_, err := s.Refund(context.Background(), testOrderID, "user-1", false)
	assert.ErrorIs(t, err, ErrNoPaymentIntent)
}

func TestRefundUnknownOrder(t *testing.T) {
	s := newRefundService(newFakeOrderStore(), newFakeUserStore(), &fakeProcessor{})

	_, err := s.Refund(context.Background(), "missing", "user-1", false)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRefundProcessorFailureLeavesOrderUntouched(t *testing.T) {
	orders := newFakeOrderStore(refundableOrder())
	users := newFakeUserStore()
	s := newRefundService(orders, users, &fakeProcessor{refundErr: errBoom})

	_, err := s.Refund(context.Background(), testOrderID, "user-1", false)
	require.Error(t, err)

	order := orders.get(testOrderID)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Nil(t, order.IsRefunded)
	assert.Equal(t, 0, users.reputationDelta("user-1"))
}

func TestRefundBookkeepingConflict(t *testing.T) {
	// A concurrent refund wins the is_refunded guard between our read and the
	// update: the processor refund went out but no row was changed.
	orders := newFakeOrderStore(refundableOrder())
	orders.markRefundedZero = true
	users := newFakeUserStore()
	proc := &fakeProcessor{refund: &stripe.Refund{ID: "re_1", Amount: 2000, Currency: "eur", Status: "succeeded"}}
	s := newRefundService(orders, users, proc)

	_, err := s.Refund(context.Background(), testOrderID, "user-1", false)
	assert.ErrorIs(t, err, ErrRefundBookkeeping)
	assert.Equal(t, 0, users.reputationDelta("user-1"))
}

func TestRefundBookkeepingWriteFailure(t *testing.T) {
	orders := newFakeOrderStore(refundableOrder())
	orders.markRefundedErr = errBoom
	proc := &fakeProcessor{refund: &stripe.Refund{ID: "re_1", Amount: 2000, Currency: "eur", Status: "succeeded"}}
	s := newRefundService(orders, newFakeUserStore(), proc)

	_, err := s.Refund(context.Background(), testOrderID, "user-1", false)
	assert.ErrorIs(t, err, ErrRefundBookkeeping)
}
