// Package payments runs the two-step checkout handshake with a payment provider:
// register an intent for the stored bill amount, then verify the provider's callback
// and complete the tab exactly once.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"restaurant-tab-service/internal/orders"
	"restaurant-tab-service/internal/utils"
)

const (
	MessageVerified         = "Payment verified successfully."
	MessageAlreadyProcessed = "Payment already processed for this order."
	MessageSignatureInvalid = "Payment verification failed. Signature mismatch."
	MessageMissingFields    = "Payment verification failed. Missing payment details."
	MessageProviderFailure  = "Payment verification failed. Unable to confirm payment with provider."
	MessageOrderNotFound    = "Payment verification failed. Order not found."
	MessageOrderMismatch    = "Payment verification failed. Payment does not belong to this order."
	MessageNotPayable       = "Payment verification failed. Order is not awaiting payment."
	MessageInternalError    = "Payment verification failed. Please contact the restaurant."
)

type Config struct {
	Currency        string
	ProviderTimeout time.Duration
}

type CreateIntentRequest struct {
	OrderID int64
	// ClientAmount is only compared against the stored total and logged.
	ClientAmount *decimal.Decimal
}

type PaymentIntent struct {
	OrderID          int64           `json:"orderId"`
	Provider         string          `json:"provider"`
	ProviderOrderID  string          `json:"providerOrderId"`
	ProviderKey      string          `json:"providerKey,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	AmountMinorUnits int64           `json:"amountMinorUnits"`
	Currency         string          `json:"currency"`
}

type VerifyRequest struct {
	OrderID           int64
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
}

type VerificationResult struct {
	Success          bool          `json:"success"`
	Message          string        `json:"message"`
	OrderID          int64         `json:"orderId"`
	PublicTrackingID string        `json:"publicTrackingId,omitempty"`
	Status           orders.Status `json:"status,omitempty"`
}

type Reconciler struct {
	store     orders.Store
	provider  Provider
	publisher orders.Publisher
	logger    *zap.Logger
	currency  string
	timeout   time.Duration
	now       func() time.Time
}

func NewReconciler(store orders.Store, provider Provider, publisher orders.Publisher, cfg Config, logger *zap.Logger) *Reconciler {
	if publisher == nil {
		publisher = orders.Publishers(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "INR"
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reconciler{
		store:     store,
		provider:  provider,
		publisher: publisher,
		logger:    logger,
		currency:  currency,
		timeout:   timeout,
		now:       time.Now,
	}
}

// CreatePaymentIntent registers the stored bill total with the provider. Calling it again
// replaces the provider order id on the tab.
func (r *Reconciler) CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*PaymentIntent, error) {
	order, err := r.store.FindOrderByID(ctx, req.OrderID)
	if errors.Is(err, orders.ErrRecordNotFound) {
		return nil, orders.NotFoundError("order %d not found", req.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order.Status != orders.StatusAwaitingPayment {
		return nil, orders.InvalidStateError("order %d is %s and cannot be paid", order.ID, order.Status)
	}

	amount := order.TotalPrice
	if req.ClientAmount != nil && !req.ClientAmount.Equal(amount) {
		r.logger.Warn("client amount differs from stored total",
			zap.Int64("orderId", order.ID),
			zap.String("clientAmount", req.ClientAmount.String()),
			zap.String("storedTotal", amount.String()),
		)
	}
	minor, err := utils.ToMinorUnits(amount, r.currency)
	if err != nil {
		return nil, orders.ValidationError("order %d total cannot be charged: %v", order.ID, err)
	}
	if minor <= 0 {
		return nil, orders.ValidationError("order %d has nothing to pay", order.ID)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	providerOrderID, err := r.provider.CreateOrder(callCtx, minor, r.currency, receiptFor(order))
	cancel()
	if err != nil {
		r.logger.Error("payment provider create order failed",
			zap.Int64("orderId", order.ID),
			zap.String("provider", r.provider.Name()),
			zap.Error(err),
		)
		return nil, orders.ExternalServiceError(err, "payment provider %s is unavailable", r.provider.Name())
	}

	err = r.store.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		locked, err := tx.LockOrder(ctx, order.ID)
		if errors.Is(err, orders.ErrRecordNotFound) {
			return orders.NotFoundError("order %d not found", order.ID)
		}
		if err != nil {
			return err
		}
		if locked.Status != orders.StatusAwaitingPayment {
			return orders.InvalidStateError("order %d changed to %s while creating payment", locked.ID, locked.Status)
		}
		if !locked.TotalPrice.Equal(amount) {
			return orders.InvalidStateError("order %d total changed while creating payment", locked.ID)
		}
		locked.ProviderOrderID = &providerOrderID
		locked.UpdatedAt = r.now().UTC()
		return tx.SaveOrder(ctx, locked)
	})
	if err != nil {
		var typed *orders.Error
		if errors.As(err, &typed) {
			return nil, err
		}
		return nil, fmt.Errorf("store provider order id: %w", err)
	}

	r.logger.Info("payment intent created",
		zap.Int64("orderId", order.ID),
		zap.String("provider", r.provider.Name()),
		zap.String("providerOrderId", providerOrderID),
		zap.Int64("amountMinor", minor),
		zap.String("currency", r.currency),
	)
	return &PaymentIntent{
		OrderID:          order.ID,
		Provider:         r.provider.Name(),
		ProviderOrderID:  providerOrderID,
		ProviderKey:      r.provider.PublicKey(),
		Amount:           amount,
		AmountMinorUnits: minor,
		Currency:         r.currency,
	}, nil
}

// VerifyPayment never fails: every problem is reported through the result so webhook and
// browser callbacks always get a structured answer. Repeated calls for a completed tab
// succeed without touching it.
func (r *Reconciler) VerifyPayment(ctx context.Context, req VerifyRequest) (result VerificationResult) {
	result = VerificationResult{OrderID: req.OrderID}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("payment verification panicked", zap.Int64("orderId", req.OrderID), zap.Any("panic", rec))
			result = VerificationResult{OrderID: req.OrderID, Message: MessageInternalError}
		}
	}()

	if req.OrderID <= 0 || strings.TrimSpace(req.ProviderOrderID) == "" || strings.TrimSpace(req.ProviderPaymentID) == "" {
		result.Message = MessageMissingFields
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	valid, err := r.provider.Verify(callCtx, SignatureFields{
		ProviderOrderID:   req.ProviderOrderID,
		ProviderPaymentID: req.ProviderPaymentID,
		Signature:         req.Signature,
	})
	cancel()
	if err != nil {
		r.logger.Error("payment provider verification failed", zap.Int64("orderId", req.OrderID), zap.Error(err))
		result.Message = MessageProviderFailure
		return result
	}
	if !valid {
		r.logger.Warn("payment signature mismatch",
			zap.Int64("orderId", req.OrderID),
			zap.String("providerOrderId", req.ProviderOrderID),
		)
		result.Message = MessageSignatureInvalid
		return result
	}

	var (
		completed *orders.Order
		previous  orders.Status
	)
	err = r.store.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		order, err := tx.LockOrder(ctx, req.OrderID)
		if err != nil {
			return err
		}
		result.PublicTrackingID = order.PublicTrackingID
		result.Status = order.Status
		if order.ProviderOrderID == nil || *order.ProviderOrderID != req.ProviderOrderID {
			result.Message = MessageOrderMismatch
			return nil
		}

		switch order.Status {
		case orders.StatusCompleted:
			result.Success = true
			result.Message = MessageAlreadyProcessed
			return nil
		case orders.StatusAwaitingPayment:
			previous = order.Status
			if err := order.MarkPaid(req.ProviderPaymentID, r.now().UTC()); err != nil {
				return err
			}
			if err := tx.SaveOrder(ctx, order); err != nil {
				return err
			}
			completed = order
			result.Success = true
			result.Status = order.Status
			result.Message = MessageVerified
			return nil
		default:
			result.Message = MessageNotPayable
			return nil
		}
	})
	if err != nil {
		if errors.Is(err, orders.ErrRecordNotFound) {
			return VerificationResult{OrderID: req.OrderID, Message: MessageOrderNotFound}
		}
		r.logger.Error("payment verification could not be stored", zap.Int64("orderId", req.OrderID), zap.Error(err))
		return VerificationResult{OrderID: req.OrderID, Message: MessageInternalError}
	}

	if completed != nil {
		r.logger.Info("payment verified",
			zap.Int64("orderId", completed.ID),
			zap.String("provider", r.provider.Name()),
			zap.String("providerPaymentId", req.ProviderPaymentID),
		)
		r.publish(ctx, orders.NewEvent(orders.EventPaymentCompleted, completed, previous, orders.Actor{Role: orders.RoleSystem}, completed.UpdatedAt))
	}
	return result
}

func (r *Reconciler) publish(ctx context.Context, event orders.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("publisher panicked", zap.String("trackingId", event.TrackingID), zap.Any("panic", rec))
		}
	}()
	r.publisher.Publish(ctx, event.TrackingID, event)
}

func receiptFor(order *orders.Order) string {
	return fmt.Sprintf("tab_%d", order.ID)
}
