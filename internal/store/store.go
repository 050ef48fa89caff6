package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PizzaurumBackend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned for single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

const orderColumns = `
	id, user_id, driver_id, status, price::text, net_profit, payment_issuer,
	payment, is_paid, online_payment, is_delivery, is_custom_time, customer_time,
	products, stripe_session_id, stripe_payment_intent_id, stripe_invoice_id,
	stripe_refund_id, is_refunded, refunded_at, refunded_by, is_email_sent,
	created_at, updated_at`

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	products, err := json.Marshal(order.Products)
	if err != nil {
		return fmt.Errorf("encode products: %w", err)
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO orders (
			id, user_id, driver_id, status, price, net_profit, payment_issuer,
			payment, is_paid, online_payment, is_delivery, is_custom_time, customer_time,
			products, stripe_session_id, stripe_payment_intent_id, stripe_invoice_id,
			stripe_refund_id, is_refunded, refunded_at, refunded_by, is_email_sent
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`,
		order.ID,
		order.UserID,
		order.DriverID,
		order.Status,
		order.Price.String(),
		order.NetProfit,
		order.PaymentIssuer,
		order.Payment,
		order.IsPaid,
		order.OnlinePayment,
		order.IsDelivery,
		order.IsCustomTime,
		order.CustomerTime,
		products,
		order.StripeSessionID,
		order.StripePaymentIntentID,
		order.StripeInvoiceID,
		order.StripeRefundID,
		order.IsRefunded,
		order.RefundedAt,
		order.RefundedBy,
		order.IsEmailSent,
	)
	return err
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID)
	return scanOrder(row)
}

func (s *Store) GetOrderBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE stripe_session_id=$1`, sessionID)
	return scanOrder(row)
}

func (s *Store) GetOrderByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE stripe_payment_intent_id=$1`, paymentIntentID)
	return scanOrder(row)
}

func (s *Store) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now() WHERE id=$1
	`, orderID, status)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPaymentState applies the paid/failed reconciliation coming from charge
// and invoice events.
func (s *Store) SetPaymentState(ctx context.Context, orderID string, status models.OrderStatus, isPaid bool) error {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders SET status=$2, is_paid=$3, updated_at=now() WHERE id=$1
	`, orderID, status, isPaid)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignDriver sets the driver only when the order is unassigned or already
// assigned to the same rider. The WHERE clause is the race-safety guard.
func (s *Store) AssignDriver(ctx context.Context, orderID, driverID string) (int64, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders SET driver_id=$2, updated_at=now()
		WHERE id=$1 AND (driver_id IS NULL OR driver_id=$2)
	`, orderID, driverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

// CompleteDelivery moves a delivering order to delivered, but only for the
// rider it is assigned to.
func (s *Store) CompleteDelivery(ctx context.Context, orderID, driverID string) (int64, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders SET status='delivered', updated_at=now()
		WHERE id=$1 AND driver_id=$2 AND status='delivering'
	`, orderID, driverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

// MarkRefunded records a processor-side refund. The is_refunded guard makes a
// second refund of the same order a zero-row update regardless of interleaving.
func (s *Store) MarkRefunded(ctx context.Context, orderID, refundID, refundedBy string, at time.Time) (int64, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders
		SET status='cancelled', is_refunded=TRUE, refunded_at=$3, refunded_by=$4,
			stripe_refund_id=$2, updated_at=now()
		WHERE id=$1 AND is_refunded IS NOT TRUE
	`, orderID, refundID, at, refundedBy)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (s *Store) SetNetProfit(ctx context.Context, orderID string, netProfit int64, paymentIssuer string) error {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders SET net_profit=$2, payment_issuer=$3, updated_at=now() WHERE id=$1
	`, orderID, netProfit, paymentIssuer)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetEmailSent(ctx context.Context, orderID string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE orders SET is_email_sent=TRUE, updated_at=now() WHERE id=$1
	`, orderID)
	return err
}

func (s *Store) GetUser(ctx context.Context, userID string) (*models.User, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, name, email, phone, role, reputation_score,
			expo_push_token, stripe_customer_id, created_at
		FROM users WHERE id=$1
	`, userID)

	var user models.User
	var pushToken, customerID sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Phone,
		&user.Role,
		&user.ReputationScore,
		&pushToken,
		&customerID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if pushToken.Valid {
		user.ExpoPushToken = &pushToken.String
	}
	if customerID.Valid {
		user.StripeCustomerID = &customerID.String
	}
	return &user, nil
}

// AdjustReputation shifts a user's reputation score by delta, clamped at zero.
func (s *Store) AdjustReputation(ctx context.Context, userID string, delta int) error {
	res, err := s.Pool.Exec(ctx, `
		UPDATE users SET reputation_score=GREATEST(reputation_score + $2, 0) WHERE id=$1
	`, userID, delta)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var order models.Order
	var priceText string
	var driverID, customerTime, paymentIssuer sql.NullString
	var sessionID, paymentIntentID, invoiceID, refundID, refundedBy sql.NullString
	var isRefunded sql.NullBool
	var refundedAt sql.NullTime
	var products []byte

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&driverID,
		&order.Status,
		&priceText,
		&order.NetProfit,
		&paymentIssuer,
		&order.Payment,
		&order.IsPaid,
		&order.OnlinePayment,
		&order.IsDelivery,
		&order.IsCustomTime,
		&customerTime,
		&products,
		&sessionID,
		&paymentIntentID,
		&invoiceID,
		&refundID,
		&isRefunded,
		&refundedAt,
		&refundedBy,
		&order.IsEmailSent,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	order.Price, err = decimal.NewFromString(priceText)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	if len(products) > 0 {
		if err := json.Unmarshal(products, &order.Products); err != nil {
			return nil, fmt.Errorf("decode products: %w", err)
		}
	}
	if driverID.Valid {
		order.DriverID = &driverID.String
	}
	if customerTime.Valid {
		order.CustomerTime = customerTime.String
	}
	if paymentIssuer.Valid {
		order.PaymentIssuer = paymentIssuer.String
	}
	if sessionID.Valid {
		order.StripeSessionID = &sessionID.String
	}
	if paymentIntentID.Valid {
		order.StripePaymentIntentID = &paymentIntentID.String
	}
	if invoiceID.Valid {
		order.StripeInvoiceID = &invoiceID.String
	}
	if refundID.Valid {
		order.StripeRefundID = &refundID.String
	}
	if isRefunded.Valid {
		order.IsRefunded = &isRefunded.Bool
	}
	if refundedAt.Valid {
		order.RefundedAt = &refundedAt.Time
	}
	if refundedBy.Valid {
		order.RefundedBy = &refundedBy.String
	}
	return &order, nil
}
