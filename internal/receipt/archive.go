package receipt

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"restaurant-tab-service/internal/orders"
)

type ReceiptStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	PutObject(ctx context.Context, key string, body []byte, contentType string, cacheControl string) (string, error)
}

// OrderSource reads committed orders. It must bypass the tracking cache, whose
// snapshots can trail a just-committed payment.
type OrderSource interface {
	FindOrderByTrackingID(ctx context.Context, trackingID string) (*orders.Order, error)
}

// ErrReceiptNotReady is returned while the tab has not reached COMPLETED so the job is retried.
var ErrReceiptNotReady = errors.New("receipt not ready: tab is not completed")

// Archiver stores the final receipt of a completed tab under receipts/<date>/<tracking id>.pdf.
type Archiver struct {
	orders OrderSource
	store  ReceiptStore
	opts   Options
	logger *zap.Logger
}

func NewArchiver(source OrderSource, store ReceiptStore, opts Options, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{orders: source, store: store, opts: opts, logger: logger}
}

func (a *Archiver) Archive(ctx context.Context, trackingID string) error {
	order, err := a.orders.FindOrderByTrackingID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, orders.ErrRecordNotFound) || orders.IsKind(err, orders.KindNotFound) {
			a.logger.Warn("receipt skipped; order missing", zap.String("trackingId", trackingID))
			return nil
		}
		return err
	}
	switch order.Status {
	case orders.StatusCompleted:
	case orders.StatusCancelled:
		a.logger.Info("receipt skipped; tab cancelled", zap.String("trackingId", trackingID))
		return nil
	default:
		return fmt.Errorf("%w (status %s)", ErrReceiptNotReady, order.Status)
	}

	key := ReceiptKey(order)
	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check receipt: %w", err)
	}
	if exists {
		a.logger.Debug("receipt already archived", zap.String("key", key))
		return nil
	}

	body, err := RenderBill(order, a.opts)
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	url, err := a.store.PutObject(ctx, key, body, "application/pdf", "private, max-age=0")
	if err != nil {
		return fmt.Errorf("upload receipt: %w", err)
	}
	a.logger.Info("receipt archived", zap.Int64("orderId", order.ID), zap.String("url", url))
	return nil
}

func ReceiptKey(order *orders.Order) string {
	return fmt.Sprintf("receipts/%s/%s.pdf", order.OrderTime.UTC().Format("2006-01-02"), order.PublicTrackingID)
}
