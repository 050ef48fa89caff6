package services

import (
	"context"
	"strings"

	"PizzaurumBackend/internal/stripe"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const unknownIssuer = "Unknown"

// Estimated processor fee model used whenever authoritative balance data is
// not available yet: 2.9% of the gross amount plus a €0.30 flat fee.
var (
	estimatedFeeRate = decimal.NewFromFloat(0.029)
	estimatedFeeFlat = decimal.NewFromFloat(0.30)
)

// FeeBreakdown is the processor's cut for one payment. Fee and NetAmount are
// in major currency units.
type FeeBreakdown struct {
	Fee           decimal.Decimal
	NetAmount     decimal.Decimal
	PaymentIssuer string
}

// NetProfitCents is the net amount in minor units, as persisted on the order.
func (b FeeBreakdown) NetProfitCents() int64 {
	return b.NetAmount.Shift(2).Round(0).IntPart()
}

// EstimateFees applies the estimated fee model to a gross amount in major
// currency units.
func EstimateFees(amount decimal.Decimal) FeeBreakdown {
	fee := amount.Mul(estimatedFeeRate).Add(estimatedFeeFlat)
	net := amount.Sub(fee)
	if net.IsNegative() {
		net = decimal.Zero
	}
	return FeeBreakdown{Fee: fee, NetAmount: net, PaymentIssuer: unknownIssuer}
}

// FeeResolver derives the settled fee, net amount and payment issuer for a
// payment intent. Net-profit data is advisory: Resolve never fails, it
// degrades to the estimated fee model instead.
type FeeResolver struct {
	Processor ProcessorClient
	Log       *zap.Logger
}

func (r *FeeResolver) Resolve(ctx context.Context, paymentIntentID string) FeeBreakdown {
	charges, err := r.Processor.ListCharges(ctx, paymentIntentID)
	if err != nil {
		r.Log.Warn("charge lookup failed, falling back to estimated fees",
			zap.String("payment_intent", paymentIntentID), zap.Error(err))
		return r.estimateFromIntent(ctx, paymentIntentID)
	}

	var charge *stripe.Charge
	if len(charges) > 0 {
		charge = &charges[0]
	}

	if charge == nil || charge.BalanceTransaction == "" {
		r.Log.Info("no balance transaction yet, using estimated fees",
			zap.String("payment_intent", paymentIntentID))
		amount := decimal.Zero
		if charge != nil {
			amount = decimal.New(charge.Amount, -2)
		}
		return EstimateFees(amount)
	}

	bt, err := r.Processor.GetBalanceTransaction(ctx, charge.BalanceTransaction.String())
	if err != nil {
		r.Log.Warn("balance transaction lookup failed, falling back to estimated fees",
			zap.String("payment_intent", paymentIntentID), zap.Error(err))
		return r.estimateFromIntent(ctx, paymentIntentID)
	}

	breakdown := FeeBreakdown{
		Fee:           decimal.New(bt.Fee, -2),
		NetAmount:     decimal.New(bt.Net, -2),
		PaymentIssuer: issuerFromChargeDetails(charge.PaymentMethodDetails),
	}

	// The charge may predate the payment method attach; re-fetch the intent
	// with the payment method expanded before giving up on the issuer.
	if breakdown.PaymentIssuer == unknownIssuer {
		pi, err := r.Processor.GetPaymentIntent(ctx, paymentIntentID, true)
		if err != nil {
			r.Log.Warn("payment intent lookup for issuer failed",
				zap.String("payment_intent", paymentIntentID), zap.Error(err))
		} else if pi.PaymentMethod.Method != nil {
			breakdown.PaymentIssuer = issuerFromPaymentMethod(pi.PaymentMethod.Method)
		}
	}
	return breakdown
}

func (r *FeeResolver) estimateFromIntent(ctx context.Context, paymentIntentID string) FeeBreakdown {
	amount := decimal.Zero
	pi, err := r.Processor.GetPaymentIntent(ctx, paymentIntentID, false)
	if err != nil {
		r.Log.Warn("payment intent lookup failed, estimating from zero amount",
			zap.String("payment_intent", paymentIntentID), zap.Error(err))
	} else {
		amount = decimal.New(pi.Amount, -2)
	}
	return EstimateFees(amount)
}

func issuerFromChargeDetails(details *stripe.PaymentMethodDetails) string {
	if details == nil {
		return unknownIssuer
	}
	return issuerFor(details.Type, details.Card)
}

func issuerFromPaymentMethod(method *stripe.PaymentMethod) string {
	if method == nil {
		return unknownIssuer
	}
	return issuerFor(method.Type, method.Card)
}

func issuerFor(methodType string, card *stripe.CardDetails) string {
	switch {
	case methodType == "card" && card != nil:
		if card.Wallet != nil && card.Wallet.Type != "" {
			return card.Wallet.Type
		}
		if card.Brand != "" {
			return card.Brand
		}
		return unknownIssuer
	case methodType == "satispay":
		return "Satispay"
	case methodType != "":
		return strings.ToUpper(methodType[:1]) + methodType[1:]
	}
	return unknownIssuer
}
