package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/enums"
	authsvc "github.com/4kciclone/gato-comics-sub000/internal/services/auth"
	entsvc "github.com/4kciclone/gato-comics-sub000/internal/services/entitlements"
	"github.com/4kciclone/gato-comics-sub000/internal/transport/http/dto"
	httperrors "github.com/4kciclone/gato-comics-sub000/internal/transport/http/errors"
)

type UnlockHandler struct {
	entitlements *entsvc.Service
}

func NewUnlockHandler(entitlements *entsvc.Service) *UnlockHandler {
	return &UnlockHandler{entitlements: entitlements}
}

func (h *UnlockHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENT_SERVICE_UNAVAILABLE", "entitlement service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	chapterID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid chapter id")
		return
	}

	var req dto.UnlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	method := enums.UnlockMethod(strings.ToUpper(strings.TrimSpace(req.Method)))
	if !method.Valid() {
		writeBadRequest(w, "VALIDATION_ERROR", "method must be PERMANENT or RENTAL")
		return
	}

	result, err := h.entitlements.Unlock(r.Context(), identity.UserID, chapterID, method, time.Now())
	if err != nil {
		if ife, ok := entsvc.IsInsufficientFunds(err); ok {
			httperrors.Write(w, http.StatusPaymentRequired, httperrors.PaywallError{
				Code:    "INSUFFICIENT_FUNDS",
				Message: ife.Error(),
				Price:   ife.Required,
			})
			return
		}
		handleEntitlementError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.UnlockResponse{
		Kind:         string(result.Kind),
		ExpiresAt:    result.ExpiresAt,
		AlreadyOwned: result.AlreadyOwned,
		Patinhas:     result.Patinhas,
		LitePatinhas: result.LitePatinhas,
	})
}
