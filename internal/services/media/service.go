package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	pgrepo "github.com/4kciclone/gato-comics-sub000/internal/repo/postgres"
)

var ErrValidation = errors.New("validation error")

const (
	signedURLTTL = 5 * time.Minute
	maxPageSize  = 10 << 20 // 10 MiB per page image
)

type Store interface {
	InsertPage(ctx context.Context, chapterID int64, position int, objectKey string) (pgrepo.PageRecord, error)
	ListPages(ctx context.Context, chapterID int64) ([]pgrepo.PageRecord, error)
}

type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	store   Store
	storage ObjectStorage
}

type Page struct {
	ID        int64
	Position  int
	URL       string
	CreatedAt time.Time
}

func NewService(store Store, storage ObjectStorage) *Service {
	return &Service{
		store:   store,
		storage: storage,
	}
}

// UploadPage stores a page image and records it under (chapter, position).
// Re-uploading the same position replaces the image; the old object is left
// for the bucket lifecycle policy to collect.
func (s *Service) UploadPage(ctx context.Context, chapterID int64, position int, fileName, contentType string, body io.Reader, size int64) (Page, error) {
	if chapterID <= 0 || position <= 0 || body == nil || size <= 0 || size > maxPageSize {
		return Page{}, ErrValidation
	}
	if s.store == nil || s.storage == nil {
		return Page{}, fmt.Errorf("media dependencies are not configured")
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return Page{}, fmt.Errorf("ensure bucket: %w", err)
	}

	objectKey := buildPageObjectKey(chapterID, position, fileName)

	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}

	if err := s.storage.PutObject(ctx, objectKey, body, size, contentType); err != nil {
		return Page{}, fmt.Errorf("put object: %w", err)
	}

	record, err := s.store.InsertPage(ctx, chapterID, position, objectKey)
	if err != nil {
		_ = s.storage.Delete(ctx, objectKey)
		return Page{}, fmt.Errorf("insert page record: %w", err)
	}

	url, err := s.storage.PresignGet(ctx, record.ObjectKey, signedURLTTL)
	if err != nil {
		return Page{}, fmt.Errorf("presign page url: %w", err)
	}

	return Page{
		ID:        record.ID,
		Position:  record.Position,
		URL:       url,
		CreatedAt: record.CreatedAt,
	}, nil
}

// ListPages returns presigned URLs ordered by position. The URLs are
// short-lived, so the caller must not cache them beyond the TTL.
func (s *Service) ListPages(ctx context.Context, chapterID int64) ([]Page, error) {
	if chapterID <= 0 {
		return nil, ErrValidation
	}
	if s.store == nil || s.storage == nil {
		return nil, fmt.Errorf("media dependencies are not configured")
	}

	records, err := s.store.ListPages(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list page records: %w", err)
	}

	pages := make([]Page, 0, len(records))
	for _, record := range records {
		url, err := s.storage.PresignGet(ctx, record.ObjectKey, signedURLTTL)
		if err != nil {
			return nil, fmt.Errorf("presign page url: %w", err)
		}
		pages = append(pages, Page{
			ID:        record.ID,
			Position:  record.Position,
			URL:       url,
			CreatedAt: record.CreatedAt,
		})
	}

	return pages, nil
}

func buildPageObjectKey(chapterID int64, position int, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("chapters/%d/pages/%03d_%s%s", chapterID, position, uuid.NewString(), ext)
}
