package handlers

import (
	"errors"
	"net/http"
	"strconv"

	authsvc "github.com/4kciclone/gato-comics-sub000/internal/services/auth"
	catalogsvc "github.com/4kciclone/gato-comics-sub000/internal/services/catalog"
	mediasvc "github.com/4kciclone/gato-comics-sub000/internal/services/media"
	walletsvc "github.com/4kciclone/gato-comics-sub000/internal/services/wallet"
	"github.com/4kciclone/gato-comics-sub000/internal/transport/http/dto"
	httperrors "github.com/4kciclone/gato-comics-sub000/internal/transport/http/errors"
)

const maxPageUploadSize = 10 << 20 // 10 MiB

type AdminHandler struct {
	wallet  *walletsvc.Service
	catalog *catalogsvc.Service
	media   *mediasvc.Service
}

func NewAdminHandler(wallet *walletsvc.Service, catalog *catalogsvc.Service, media *mediasvc.Service) *AdminHandler {
	return &AdminHandler{
		wallet:  wallet,
		catalog: catalog,
		media:   media,
	}
}

// AdjustBalance sets a user's permanent balance to an absolute value. The
// adjustment always lands in the user's ledger with the admin recorded.
func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	if h.wallet == nil {
		writeInternal(w, "WALLET_SERVICE_UNAVAILABLE", "wallet service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	userID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	var req dto.AdjustBalanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	snapshot, err := h.wallet.Adjust(r.Context(), walletsvc.AdjustRequest{
		UserID:      userID,
		NewPatinhas: req.Patinhas,
		Actor:       "admin:" + strconv.FormatInt(identity.UserID, 10),
		Reason:      req.Reason,
	})
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

func (h *AdminHandler) UserLedger(w http.ResponseWriter, r *http.Request) {
	if h.wallet == nil {
		writeInternal(w, "WALLET_SERVICE_UNAVAILABLE", "wallet service is unavailable")
		return
	}

	userID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	entries, err := h.wallet.Ledger(r.Context(), userID, limit, offset)
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

func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h.wallet == nil {
		writeInternal(w, "WALLET_SERVICE_UNAVAILABLE", "wallet service is unavailable")
		return
	}

	userID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	report, err := h.wallet.Reconcile(r.Context(), userID)
	if err != nil {
		handleWalletError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ReconcileResponse{
		UserID:         report.UserID,
		Patinhas:       report.Patinhas,
		LedgerPatinhas: report.LedgerPatinhas,
		LitePatinhas:   report.LitePatinhas,
		LedgerLite:     report.LedgerLite,
		Balanced:       report.Balanced,
	})
}

func (h *AdminHandler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	workID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid work id")
		return
	}

	var req dto.CreateChapterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	chapter, err := h.catalog.CreateChapter(r.Context(), catalogsvc.CreateChapterInput{
		WorkID: workID,
		Seq:    req.Seq,
		Title:  req.Title,
		Price:  req.Price,
		IsFree: req.IsFree,
	})
	if err != nil {
		handleCatalogError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, chapterDTO(chapter))
}

func (h *AdminHandler) UpdatePricing(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	chapterID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid chapter id")
		return
	}

	var req dto.UpdatePricingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	chapter, err := h.catalog.UpdatePricing(r.Context(), chapterID, req.Price, req.IsFree)
	if err != nil {
		handleCatalogError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, chapterDTO(chapter))
}

func (h *AdminHandler) UploadPage(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}

	chapterID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid chapter id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPageUploadSize)
	if err := r.ParseMultipartForm(maxPageUploadSize); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid multipart form")
		return
	}

	position := queryInt(r, "position", 0)
	if position <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "position query param is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "file is required")
		return
	}
	defer file.Close()

	if header == nil || header.Size <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "file is empty")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	page, err := h.media.UploadPage(r.Context(), chapterID, position, header.Filename, contentType, file, header.Size)
	if err != nil {
		if errors.Is(err, mediasvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid page upload")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PageResponse{
		Position: page.Position,
		URL:      page.URL,
	})
}
