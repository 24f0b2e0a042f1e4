package handlers

import (
	"net/http"
	"strings"

	"restaurant-tab-service/internal/payments"
	"restaurant-tab-service/pkg/response"

	"github.com/shopspring/decimal"
)

func (h *Handler) paymentsEnabled(w http.ResponseWriter) bool {
	if h.Reconciler == nil {
		response.Error(w, http.StatusServiceUnavailable, "PAYMENTS_DISABLED", "Online payment is not configured")
		return false
	}
	return true
}

func (h *Handler) PublicPaymentIntent(w http.ResponseWriter, r *http.Request) {
	if !h.paymentsEnabled(w) {
		return
	}

	var payload struct {
		TrackingID string           `json:"trackingId"`
		Amount     *decimal.Decimal `json:"amount"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	orderID, ok := h.trackedOrderID(w, r, payload.TrackingID)
	if !ok {
		return
	}

	intent, err := h.Reconciler.CreatePaymentIntent(r.Context(), payments.CreateIntentRequest{
		OrderID:      orderID,
		ClientAmount: payload.Amount,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	response.Success(w, intent)
}

// PublicPaymentVerify always answers 200; the outcome is carried in the result body.
func (h *Handler) PublicPaymentVerify(w http.ResponseWriter, r *http.Request) {
	if !h.paymentsEnabled(w) {
		return
	}

	var payload struct {
		OrderID           int64  `json:"orderId"`
		ProviderOrderID   string `json:"providerOrderId"`
		ProviderPaymentID string `json:"providerPaymentId"`
		Signature         string `json:"signature"`
		RazorpayOrderID   string `json:"razorpay_order_id"`
		RazorpayPaymentID string `json:"razorpay_payment_id"`
		RazorpaySignature string `json:"razorpay_signature"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		response.JSON(w, http.StatusOK, payments.VerificationResult{Success: false, Message: payments.MessageMissingFields})
		return
	}

	result := h.Reconciler.VerifyPayment(r.Context(), payments.VerifyRequest{
		OrderID:           payload.OrderID,
		ProviderOrderID:   firstNonEmpty(payload.ProviderOrderID, payload.RazorpayOrderID),
		ProviderPaymentID: firstNonEmpty(payload.ProviderPaymentID, payload.RazorpayPaymentID),
		Signature:         firstNonEmpty(payload.Signature, payload.RazorpaySignature),
	})
	response.JSON(w, http.StatusOK, result)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

