package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"

	"restaurant-tab-service/internal/utils"
)

type razorpayOrders interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type RazorpayProvider struct {
	keyID     string
	keySecret string
	orders    razorpayOrders
}

func NewRazorpayProvider(keyID, keySecret string) (*RazorpayProvider, error) {
	keyID = strings.TrimSpace(keyID)
	keySecret = strings.TrimSpace(keySecret)
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayProvider{keyID: keyID, keySecret: keySecret, orders: client.Order}, nil
}

func (p *RazorpayProvider) Name() string { return "razorpay" }

func (p *RazorpayProvider) PublicKey() string { return p.keyID }

// CreateOrder runs the SDK call in a goroutine since the client takes no context.
func (p *RazorpayProvider) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		body, err := p.orders.Create(map[string]interface{}{
			"amount":   amountMinor,
			"currency": strings.ToUpper(currency),
			"receipt":  receipt,
		}, nil)
		if err != nil {
			done <- result{err: err}
			return
		}
		id, _ := body["id"].(string)
		if id == "" {
			done <- result{err: fmt.Errorf("razorpay order response has no id")}
			return
		}
		done <- result{id: id}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.id, res.err
	}
}

// Verify checks the checkout signature: hex HMAC-SHA256 of "order_id|payment_id" keyed by the key secret.
func (p *RazorpayProvider) Verify(_ context.Context, fields SignatureFields) (bool, error) {
	if fields.ProviderOrderID == "" || fields.ProviderPaymentID == "" || fields.Signature == "" {
		return false, nil
	}
	payload := fields.ProviderOrderID + "|" + fields.ProviderPaymentID
	return utils.VerifyHMACSHA256Hex(p.keySecret, payload, fields.Signature), nil
}
