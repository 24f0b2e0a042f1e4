package payments

import "context"

// SignatureFields are the values a provider hands the browser after checkout.
type SignatureFields struct {
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
}

// Provider is a payment gateway. CreateOrder registers an intent for an amount in minor
// units and returns the gateway's order id.
type Provider interface {
	Name() string
	PublicKey() string
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error)
	Verify(ctx context.Context, fields SignatureFields) (bool, error)
}
