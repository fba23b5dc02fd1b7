package handlers

import (
	"net/http"

	catalogsvc "github.com/4kciclone/gato-comics-sub000/internal/services/catalog"
	"github.com/4kciclone/gato-comics-sub000/internal/transport/http/dto"
	httperrors "github.com/4kciclone/gato-comics-sub000/internal/transport/http/errors"
)

type CatalogHandler struct {
	catalog *catalogsvc.Service
}

func NewCatalogHandler(catalog *catalogsvc.Service) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) Work(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	workID, ok := pathID(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid work id")
		return
	}

	view, err := h.catalog.GetWork(r.Context(), workID)
	if err != nil {
		handleCatalogError(w, err)
		return
	}

	chapters := make([]dto.ChapterResponse, 0, len(view.Chapters))
	for _, chapter := range view.Chapters {
		chapters = append(chapters, chapterDTO(chapter))
	}

	httperrors.Write(w, http.StatusOK, dto.WorkResponse{
		ID:       view.Work.ID,
		Title:    view.Work.Title,
		Slug:     view.Work.Slug,
		Author:   view.Work.Author,
		Chapters: chapters,
	})
}
