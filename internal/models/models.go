package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending       OrderStatus = "pending"
	OrderAccepted      OrderStatus = "accepted"
	OrderInPreparation OrderStatus = "in_preparation"
	OrderReadyToPickup OrderStatus = "ready_to_pickup"
	OrderNotPickedUp   OrderStatus = "not_picked_up"
	OrderDelivering    OrderStatus = "delivering"
	OrderDelivered     OrderStatus = "delivered"
	OrderCompleted     OrderStatus = "completed"
	OrderCancelled     OrderStatus = "cancelled"
	OrderReopened      OrderStatus = "reopened"
	OrderReported      OrderStatus = "reported"
	OrderFailed        OrderStatus = "failed"
)

type PaymentKind string

const (
	PaymentCash   PaymentKind = "cash"
	PaymentCard   PaymentKind = "card"
	PaymentOnline PaymentKind = "online"
)

// ProductExtra is a single paid customization on an order line.
type ProductExtra struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// OrderProduct is a line item as stored on the order. Line items are derived
// from checkout metadata, not authoritative catalog data.
type OrderProduct struct {
	ProductID *string         `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Extras    []ProductExtra  `json:"extras"`
}

type Order struct {
	ID                    string
	UserID                string
	DriverID              *string
	Status                OrderStatus
	Price                 decimal.Decimal
	NetProfit             int64 // minor currency units (cents)
	PaymentIssuer         string
	Payment               PaymentKind
	IsPaid                bool
	OnlinePayment         bool
	IsDelivery            bool
	IsCustomTime          bool
	CustomerTime          string
	Products              []OrderProduct
	StripeSessionID       *string
	StripePaymentIntentID *string
	StripeInvoiceID       *string
	StripeRefundID        *string
	IsRefunded            *bool
	RefundedAt            *time.Time
	RefundedBy            *string
	IsEmailSent           bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Number is the customer-facing order number: the first 8 characters of the
// order id, upper-cased.
func (o *Order) Number() string {
	return OrderNumber(o.ID)
}

func OrderNumber(orderID string) string {
	n := orderID
	if len(n) > 8 {
		n = n[:8]
	}
	out := []byte(n)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

type User struct {
	ID               string
	Name             string
	Email            string
	Phone            string
	Role             string
	ReputationScore  int
	ExpoPushToken    *string
	StripeCustomerID *string
	CreatedAt        time.Time
}
