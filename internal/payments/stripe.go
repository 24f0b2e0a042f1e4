package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
)

type StripeProvider struct {
	api            *client.API
	publishableKey string
}

func NewStripeProvider(secretKey, publishableKey string) (*StripeProvider, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	return &StripeProvider{api: client.New(secretKey, nil), publishableKey: strings.TrimSpace(publishableKey)}, nil
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) PublicKey() string { return p.publishableKey }

func (p *StripeProvider) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("receipt", receipt)

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", err
	}
	return intent.ID, nil
}

// Verify ignores the signature field. The intent must have succeeded, carry a receipt
// and its latest charge must be the reported payment.
func (p *StripeProvider) Verify(ctx context.Context, fields SignatureFields) (bool, error) {
	if fields.ProviderOrderID == "" || fields.ProviderPaymentID == "" {
		return false, nil
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := p.api.PaymentIntents.Get(fields.ProviderOrderID, params)
	if err != nil {
		return false, err
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return false, nil
	}
	if intent.Metadata["receipt"] == "" {
		return false, nil
	}
	if intent.LatestCharge == nil || intent.LatestCharge.ID != fields.ProviderPaymentID {
		return false, nil
	}
	return true, nil
}
