package handlers

import (
	"errors"
	"net/http"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/enums"
	authsvc "github.com/4kciclone/gato-comics-sub000/internal/services/auth"
	paymentsvc "github.com/4kciclone/gato-comics-sub000/internal/services/payments"
	"github.com/4kciclone/gato-comics-sub000/internal/transport/http/dto"
	httperrors "github.com/4kciclone/gato-comics-sub000/internal/transport/http/errors"
)

type PurchaseHandler struct {
	payments *paymentsvc.Service
}

func NewPurchaseHandler(payments *paymentsvc.Service) *PurchaseHandler {
	return &PurchaseHandler{payments: payments}
}

func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENT_SERVICE_UNAVAILABLE", "payment service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	var req dto.CreatePurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	result, err := h.payments.Create(r.Context(), identity.UserID, enums.PackSKU(req.SKU), req.Provider)
	if err != nil {
		handlePaymentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.CreatePurchaseResponse{
		PurchaseID:     result.PurchaseID,
		SKU:            string(result.SKU),
		Provider:       result.Provider,
		AmountPatinhas: result.AmountPatinhas,
		Status:         result.Status,
	})
}

// Webhook is unauthenticated; the payment provider calls it. Replays are
// answered with the same success payload as the first delivery.
func (h *PurchaseHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENT_SERVICE_UNAVAILABLE", "payment service is unavailable")
		return
	}

	var req dto.PurchaseWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	result, err := h.payments.ConfirmWebhook(r.Context(), paymentsvc.WebhookInput{
		PurchaseID:   req.PurchaseID,
		Provider:     req.Provider,
		ProviderTxID: req.ProviderTxID,
	})
	if err != nil {
		handlePaymentError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PurchaseWebhookResponse{
		PurchaseID:       result.PurchaseID,
		AmountPatinhas:   result.AmountPatinhas,
		AlreadyProcessed: result.AlreadyProcessed,
	})
}

func handlePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, paymentsvc.ErrUnsupportedSKU):
		writeBadRequest(w, "UNSUPPORTED_SKU", "unknown pack sku")
	case errors.Is(err, paymentsvc.ErrUnsupportedProvider):
		writeBadRequest(w, "UNSUPPORTED_PROVIDER", "unknown payment provider")
	case errors.Is(err, paymentsvc.ErrPurchaseNotFound):
		writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
	case errors.Is(err, paymentsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
