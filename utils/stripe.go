package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Gateway callback statuses
const (
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

// GatewayOrder holds the parameters the client needs to complete checkout
type GatewayOrder struct {
	OrderID      string `json:"order_id"`
	GatewayRef   string `json:"gateway_ref"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// CallbackResult is the verified outcome of a gateway callback. Status is
// empty for events that carry no payment outcome.
type CallbackResult struct {
	Valid         bool
	Status        string
	OrderID       string
	TransactionID string
	FailureReason string
}

// StripeGateway creates PaymentIntents and verifies webhook callbacks
type StripeGateway struct {
	intents       *paymentintent.Client
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{
		intents: &paymentintent.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: secretKey,
		},
		webhookSecret: webhookSecret,
	}
}

// CreateOrder creates a PaymentIntent tagged with orderID
func (g *StripeGateway) CreateOrder(ctx context.Context, orderID string, amount int64, customerEmail string) (*GatewayOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Params:       stripe.Params{Context: ctx},
		Amount:       stripe.Int64(amount),
		Currency:     stripe.String(string(stripe.CurrencyUSD)),
		ReceiptEmail: stripe.String(customerEmail),
		Metadata: map[string]string{
			"order_id": orderID,
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}

	pi, err := g.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	return &GatewayOrder{
		OrderID:      orderID,
		GatewayRef:   pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

// VerifyCallback checks the Stripe-Signature header and extracts the
// payment outcome
func (g *StripeGateway) VerifyCallback(payload []byte, signature string) (*CallbackResult, error) {
	if signature == "" {
		return &CallbackResult{Valid: false}, nil
	}

	event, err := webhook.ConstructEventWithTolerance(payload, signature, g.webhookSecret, 5*time.Minute)
	if err != nil {
		LogEvent("stripe_signature_rejected", map[string]interface{}{"error": err.Error()})
		return &CallbackResult{Valid: false}, nil
	}

	result := &CallbackResult{Valid: true}
	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("parse payment intent: %w", err)
		}
		result.OrderID = pi.Metadata["order_id"]
		result.TransactionID = pi.ID
		if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
			result.TransactionID = pi.LatestCharge.ID
		}
		if event.Type == "payment_intent.succeeded" {
			result.Status = PaymentSucceeded
		} else {
			result.Status = PaymentFailed
			result.FailureReason = "Payment failed"
			if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
				result.FailureReason = "Payment failed: " + pi.LastPaymentError.Msg
			}
		}
	}

	LogEvent("stripe_webhook_verified", map[string]interface{}{
		"event_id":   event.ID,
		"event_type": string(event.Type),
		"order_id":   result.OrderID,
	})
	return result, nil
}
