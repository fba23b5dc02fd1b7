package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	adssvc "github.com/4kciclone/gato-comics-sub000/internal/services/adrewards"
	authsvc "github.com/4kciclone/gato-comics-sub000/internal/services/auth"
	walletsvc "github.com/4kciclone/gato-comics-sub000/internal/services/wallet"
	"github.com/4kciclone/gato-comics-sub000/internal/transport/http/dto"
	httperrors "github.com/4kciclone/gato-comics-sub000/internal/transport/http/errors"
)

type WalletHandler struct {
	wallet *walletsvc.Service
	ads    *adssvc.Service
}

func NewWalletHandler(wallet *walletsvc.Service, ads *adssvc.Service) *WalletHandler {
	return &WalletHandler{wallet: wallet, ads: ads}
}

func (h *WalletHandler) Balances(w http.ResponseWriter, r *http.Request) {
	if h.wallet == nil {
		writeInternal(w, "WALLET_SERVICE_UNAVAILABLE", "wallet service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	snapshot, err := h.wallet.Balances(r.Context(), identity.UserID)
	if err != nil {
		handleWalletError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.WalletResponse{
		Patinhas:     snapshot.Patinhas,
		LitePatinhas: snapshot.LitePatinhas,
		DailyAdCount: snapshot.DailyAdCount,
		LastAdAt:     snapshot.LastAdAt,
	})
}

func (h *WalletHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	if h.wallet == nil {
		writeInternal(w, "WALLET_SERVICE_UNAVAILABLE", "wallet service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	entries, err := h.wallet.Ledger(r.Context(), identity.UserID, limit, offset)
	if err != nil {
		handleWalletError(w, err)
		return
	}

	out := make([]dto.LedgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, dto.LedgerEntryResponse{
			ID:          entry.ID,
			Kind:        string(entry.Kind),
			Currency:    string(entry.Currency),
			Amount:      entry.Amount,
			Description: entry.Description,
			ReferenceID: entry.ReferenceID,
			CreatedAt:   entry.CreatedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.LedgerResponse{
		Entries: out,
		Limit:   limit,
		Offset:  offset,
	})
}

func (h *WalletHandler) ClaimAdReward(w http.ResponseWriter, r *http.Request) {
	if h.ads == nil {
		writeInternal(w, "ADS_SERVICE_UNAVAILABLE", "ad reward service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	result, err := h.ads.Claim(r.Context(), identity.UserID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, adssvc.ErrDailyLimitReached):
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.APIError{
				Code:    "DAILY_LIMIT_REACHED",
				Message: "daily ad reward limit reached",
			})
		case errors.Is(err, adssvc.ErrTooManyRequests):
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.APIError{
				Code:    "TOO_MANY_REQUESTS",
				Message: "slow down",
			})
		case errors.Is(err, adssvc.ErrAccountNotFound):
			writeNotFound(w, "ACCOUNT_NOT_FOUND", "account not found")
		case errors.Is(err, adssvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
		default:
			writeInternal(w, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AdRewardResponse{
		LitePatinhas: result.LitePatinhas,
		ClaimedToday: result.DailyAdCount,
		DailyCap:     h.ads.DailyCap(),
		NextResetAt:  result.NextResetAt,
	})
}

// AdRewardStatus reports today's claim count without consuming a claim, so
// clients can gray out the ad button before the user sits through an ad.
func (h *WalletHandler) AdRewardStatus(w http.ResponseWriter, r *http.Request) {
	if h.wallet == nil || h.ads == nil {
		writeInternal(w, "ADS_SERVICE_UNAVAILABLE", "ad reward service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	wallet, err := h.wallet.Raw(r.Context(), identity.UserID)
	if err != nil {
		handleWalletError(w, err)
		return
	}

	status := h.ads.Status(wallet, time.Now())
	httperrors.Write(w, http.StatusOK, dto.AdRewardResponse{
		LitePatinhas: status.LitePatinhas,
		ClaimedToday: status.DailyAdCount,
		DailyCap:     h.ads.DailyCap(),
		NextResetAt:  status.NextResetAt,
	})
}

func handleWalletError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, walletsvc.ErrAccountNotFound):
		writeNotFound(w, "ACCOUNT_NOT_FOUND", "account not found")
	case errors.Is(err, walletsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
