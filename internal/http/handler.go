package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"PizzaurumBackend/internal/models"
	"PizzaurumBackend/internal/services"
	"PizzaurumBackend/internal/store"
	"PizzaurumBackend/internal/stripe"

	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// Handler holds the HTTP-facing entry points. Routing lives in server.go.
type Handler struct {
	Orders        services.OrderStore
	Materializer  *services.Materializer
	Status        *services.StatusService
	Refunds       *services.RefundService
	Reconciler    *services.Reconciler
	WebhookSecret string
	Log           *zap.Logger
}

// Webhook receives processor events. The raw body is verified against the
// Stripe-Signature header before anything is parsed or acted on.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	event, err := stripe.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		h.Log.Warn("webhook signature rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid webhook signature")
		return
	}

	if err := h.dispatchEvent(r.Context(), event); err != nil {
		if errors.Is(err, services.ErrMissingUserID) {
			// Permanent failure; acknowledge so the processor stops redelivering.
			h.Log.Error("payment event dropped: no user id in metadata",
				zap.String("event_id", event.ID),
				zap.String("event_type", event.Type))
			writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		h.Log.Error("webhook event handling failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "event handling failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) dispatchEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case stripe.EventCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return h.Materializer.Materialize(ctx, services.PaymentEvent{
			SessionID:       session.ID,
			PaymentIntentID: session.PaymentIntent.String(),
			InvoiceID:       session.Invoice.String(),
			Amount:          session.AmountTotal,
			CustomerEmail:   session.CustomerEmail,
			Metadata:        session.Metadata,
		})

	case stripe.EventPaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			return fmt.Errorf("decode payment intent: %w", err)
		}
		return h.Materializer.Materialize(ctx, services.PaymentEvent{
			PaymentIntentID: intent.ID,
			Amount:          intent.Amount,
			Metadata:        intent.Metadata,
		})

	case stripe.EventPaymentIntentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			return fmt.Errorf("decode payment intent: %w", err)
		}
		return h.Materializer.MaterializeFailed(ctx, services.PaymentEvent{
			PaymentIntentID: intent.ID,
			Amount:          intent.Amount,
			Metadata:        intent.Metadata,
		})

	case stripe.EventChargeUpdated:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
			return fmt.Errorf("decode charge: %w", err)
		}
		return h.Reconciler.ChargeUpdated(ctx, charge)

	case stripe.EventChargeFailed:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
			return fmt.Errorf("decode charge: %w", err)
		}
		return h.Reconciler.ChargeFailed(ctx, charge)

	case stripe.EventInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return h.Reconciler.InvoicePaid(ctx, invoice)

	case stripe.EventInvoicePaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		return h.Reconciler.InvoiceFailed(ctx, invoice)
	}

	h.Log.Debug("unhandled webhook event", zap.String("event_type", event.Type))
	return nil
}

type assignRiderRequest struct {
	OrderID string `json:"orderId"`
	RiderID string `json:"riderId"`
}

func (h *Handler) AssignRider(w http.ResponseWriter, r *http.Request) {
	var req assignRiderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.RiderID == "" {
		writeError(w, http.StatusBadRequest, "orderId and riderId are required")
		return
	}

	order, err := h.Status.AssignRider(r.Context(), req.OrderID, req.RiderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrRiderConflict):
			writeError(w, http.StatusConflict, "order already assigned to another rider")
		default:
			h.Log.Error("assign rider failed", zap.String("order_id", req.OrderID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "assign rider failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orderId": order.ID,
		"riderId": req.RiderID,
		"status":  order.Status,
		"message": "Order assigned successfully",
	})
}

type completeOrderRequest struct {
	OrderID string `json:"orderId"`
	RiderID string `json:"riderId"`
}

func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	var req completeOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.RiderID == "" {
		writeError(w, http.StatusBadRequest, "orderId and riderId are required")
		return
	}

	order, err := h.Status.CompleteOrder(r.Context(), req.OrderID, req.RiderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrNotOrderRider):
			writeError(w, http.StatusForbidden, "order is not assigned to this rider")
		case errors.Is(err, services.ErrNotDelivering):
			writeError(w, http.StatusBadRequest, "order must be in delivering status")
		default:
			h.Log.Error("complete order failed", zap.String("order_id", req.OrderID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "complete order failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orderId": order.ID,
		"status":  order.Status,
	})
}

type updateStatusRequest struct {
	OrderID   string `json:"orderId"`
	NewStatus string `json:"newStatus"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.NewStatus == "" {
		writeError(w, http.StatusBadRequest, "orderId and newStatus are required")
		return
	}

	if err := h.Status.UpdateStatus(r.Context(), req.OrderID, models.OrderStatus(req.NewStatus)); err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		default:
			h.Log.Error("status update failed", zap.String("order_id", req.OrderID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "status update failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orderId": req.OrderID,
		"status":  req.NewStatus,
	})
}

type refundRequest struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "orderId is required")
		return
	}

	result, err := h.Refunds.Refund(r.Context(), req.OrderID, req.UserID, req.IsAdmin)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrRefundForbidden):
			writeError(w, http.StatusForbidden, "not authorized to refund this order")
		case errors.Is(err, services.ErrRefundStage):
			writeError(w, http.StatusBadRequest, "order cannot be refunded at this stage")
		case errors.Is(err, services.ErrAlreadyRefunded):
			writeError(w, http.StatusBadRequest, "order has already been refunded")
		case errors.Is(err, services.ErrNoPaymentIntent):
			writeError(w, http.StatusBadRequest, "no payment intent associated with this order")
		default:
			h.Log.Error("refund failed", zap.String("order_id", req.OrderID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "refund failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"refundId": result.RefundID,
		"amount":   result.Amount.InexactFloat64(),
		"currency": result.Currency,
		"status":   result.Status,
	})
}

type updateNetProfitRequest struct {
	OrderID         string `json:"orderId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// UpdateNetProfit re-resolves the settled fee data for an order on demand.
func (h *Handler) UpdateNetProfit(w http.ResponseWriter, r *http.Request) {
	var req updateNetProfitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.PaymentIntentID == "" {
		writeError(w, http.StatusBadRequest, "orderId and paymentIntentId are required")
		return
	}

	fees, err := h.Status.BackfillNetProfit(r.Context(), req.OrderID, req.PaymentIntentID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		default:
			h.Log.Error("net profit update failed", zap.String("order_id", req.OrderID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "net profit update failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"orderId":        req.OrderID,
		"fee":            fees.Fee.InexactFloat64(),
		"netProfit":      fees.NetAmount.InexactFloat64(),
		"netProfitCents": fees.NetProfitCents(),
		"paymentIssuer":  fees.PaymentIssuer,
	})
}

// OrderBySession resolves a checkout session id to the materialized order, for
// the post-payment success page polling until the webhook lands.
func (h *Handler) OrderBySession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	order, err := h.Orders.GetOrderBySessionID(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no order for this session")
			return
		}
		h.Log.Error("order lookup by session failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "order lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"orderId":   order.ID,
		"status":    order.Status,
		"price":     order.Price.InexactFloat64(),
		"createdAt": order.CreatedAt.Format(time.RFC3339),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}
