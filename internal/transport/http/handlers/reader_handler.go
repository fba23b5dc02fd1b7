package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/model"
	authsvc "github.com/4kciclone/gato-comics-sub000/internal/services/auth"
	catalogsvc "github.com/4kciclone/gato-comics-sub000/internal/services/catalog"
	entsvc "github.com/4kciclone/gato-comics-sub000/internal/services/entitlements"
	mediasvc "github.com/4kciclone/gato-comics-sub000/internal/services/media"
	"github.com/4kciclone/gato-comics-sub000/internal/transport/http/dto"
	httperrors "github.com/4kciclone/gato-comics-sub000/internal/transport/http/errors"
)

type ReaderHandler struct {
	entitlements *entsvc.Service
	catalog      *catalogsvc.Service
	media        *mediasvc.Service
}

func NewReaderHandler(entitlements *entsvc.Service, catalog *catalogsvc.Service, media *mediasvc.Service) *ReaderHandler {
	return &ReaderHandler{
		entitlements: entitlements,
		catalog:      catalog,
		media:        media,
	}
}

// Access answers whether the caller may read the chapter. Works for
// anonymous visitors too: free chapters are open, paid ones report the
// price behind the paywall.
func (h *ReaderHandler) Access(w http.ResponseWriter, r *http.Request) {
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENT_SERVICE_UNAVAILABLE", "entitlement service is unavailable")
		return
	}

	chapterID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid chapter id")
		return
	}

	access, err := h.entitlements.CheckAccess(r.Context(), optionalUserID(r), chapterID, time.Now())
	if err != nil {
		handleEntitlementError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AccessResponse{
		Allowed:   access.Allowed,
		Price:     access.Price,
		Kind:      string(access.Kind),
		ExpiresAt: access.ExpiresAt,
	})
}

// Chapter returns chapter metadata plus prev/next navigation.
func (h *ReaderHandler) Chapter(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	chapterID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid chapter id")
		return
	}

	chapter, err := h.catalog.GetChapter(r.Context(), chapterID)
	if err != nil {
		handleCatalogError(w, err)
		return
	}

	neighbors, err := h.catalog.Neighbors(r.Context(), chapterID)
	if err != nil {
		handleCatalogError(w, err)
		return
	}

	resp := dto.ChapterDetailResponse{Chapter: chapterDTO(chapter)}
	if neighbors.Prev != nil {
		prev := chapterDTO(*neighbors.Prev)
		resp.Prev = &prev
	}
	if neighbors.Next != nil {
		next := chapterDTO(*neighbors.Next)
		resp.Next = &next
	}

	httperrors.Write(w, http.StatusOK, resp)
}

// Pages serves the presigned page URLs, gated by the entitlement check.
func (h *ReaderHandler) Pages(w http.ResponseWriter, r *http.Request) {
	if h.entitlements == nil || h.media == nil {
		writeInternal(w, "READER_SERVICE_UNAVAILABLE", "reader dependencies are unavailable")
		return
	}

	chapterID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid chapter id")
		return
	}

	access, err := h.entitlements.CheckAccess(r.Context(), optionalUserID(r), chapterID, time.Now())
	if err != nil {
		handleEntitlementError(w, err)
		return
	}
	if !access.Allowed {
		httperrors.Write(w, http.StatusPaymentRequired, httperrors.PaywallError{
			Code:    "CHAPTER_LOCKED",
			Message: "chapter requires an unlock",
			Price:   access.Price,
		})
		return
	}

	pages, err := h.media.ListPages(r.Context(), chapterID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	out := make([]dto.PageResponse, 0, len(pages))
	for _, page := range pages {
		out = append(out, dto.PageResponse{Position: page.Position, URL: page.URL})
	}

	httperrors.Write(w, http.StatusOK, dto.PagesResponse{
		ChapterID: chapterID,
		Pages:     out,
	})
}

func handleEntitlementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entsvc.ErrChapterNotFound):
		writeNotFound(w, "CHAPTER_NOT_FOUND", "chapter not found")
	case errors.Is(err, entsvc.ErrAccountNotFound):
		writeNotFound(w, "ACCOUNT_NOT_FOUND", "account not found")
	case errors.Is(err, entsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func handleCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalogsvc.ErrChapterNotFound):
		writeNotFound(w, "CHAPTER_NOT_FOUND", "chapter not found")
	case errors.Is(err, catalogsvc.ErrWorkNotFound):
		writeNotFound(w, "WORK_NOT_FOUND", "work not found")
	case errors.Is(err, catalogsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func chapterDTO(c model.Chapter) dto.ChapterResponse {
	return dto.ChapterResponse{
		ID:          c.ID,
		WorkID:      c.WorkID,
		Seq:         c.Seq,
		Title:       c.Title,
		Price:       c.EffectivePrice(),
		IsFree:      c.IsFree,
		PublishedAt: c.PublishedAt,
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// optionalUserID returns nil for anonymous visitors, which the entitlement
// engine treats as "free chapters only".
func optionalUserID(r *http.Request) *int64 {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok || identity.UserID <= 0 {
		return nil
	}
	id := identity.UserID
	return &id
}
