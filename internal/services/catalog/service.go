package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/model"
	pgrepo "github.com/4kciclone/gato-comics-sub000/internal/repo/postgres"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrChapterNotFound = errors.New("chapter not found")
	ErrWorkNotFound    = errors.New("work not found")
)

type Store interface {
	FindByID(ctx context.Context, chapterID int64) (pgrepo.ChapterRecord, error)
	FindWork(ctx context.Context, workID int64) (pgrepo.WorkRecord, error)
	ListByWork(ctx context.Context, workID int64) ([]pgrepo.ChapterRecord, error)
	PrevNext(ctx context.Context, workID int64, seq int) (*pgrepo.ChapterRecord, *pgrepo.ChapterRecord, error)
	Create(ctx context.Context, workID int64, seq int, title string, price int64, isFree bool) (pgrepo.ChapterRecord, error)
	UpdatePricing(ctx context.Context, chapterID, price int64, isFree bool) (pgrepo.ChapterRecord, error)
}

type Service struct {
	store Store
}

type WorkView struct {
	Work     model.Work
	Chapters []model.Chapter
}

type Neighbors struct {
	Prev *model.Chapter
	Next *model.Chapter
}

type CreateChapterInput struct {
	WorkID int64
	Seq    int
	Title  string
	Price  int64
	IsFree bool
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) GetChapter(ctx context.Context, chapterID int64) (model.Chapter, error) {
	if chapterID <= 0 {
		return model.Chapter{}, ErrValidation
	}
	if s.store == nil {
		return model.Chapter{}, fmt.Errorf("catalog store is nil")
	}

	rec, err := s.store.FindByID(ctx, chapterID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrChapterNotFound) {
			return model.Chapter{}, ErrChapterNotFound
		}
		return model.Chapter{}, err
	}

	return chapterOf(rec), nil
}

func (s *Service) GetWork(ctx context.Context, workID int64) (WorkView, error) {
	if workID <= 0 {
		return WorkView{}, ErrValidation
	}
	if s.store == nil {
		return WorkView{}, fmt.Errorf("catalog store is nil")
	}

	work, err := s.store.FindWork(ctx, workID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrWorkNotFound) {
			return WorkView{}, ErrWorkNotFound
		}
		return WorkView{}, err
	}

	records, err := s.store.ListByWork(ctx, workID)
	if err != nil {
		return WorkView{}, err
	}

	chapters := make([]model.Chapter, 0, len(records))
	for _, rec := range records {
		chapters = append(chapters, chapterOf(rec))
	}

	return WorkView{
		Work: model.Work{
			ID:        work.ID,
			Title:     work.Title,
			Slug:      work.Slug,
			Author:    work.Author,
			CreatedAt: work.CreatedAt,
		},
		Chapters: chapters,
	}, nil
}

// Neighbors finds the chapters before and after the given one within its
// work, for reader navigation. A missing neighbor stays nil at either edge.
func (s *Service) Neighbors(ctx context.Context, chapterID int64) (Neighbors, error) {
	if chapterID <= 0 {
		return Neighbors{}, ErrValidation
	}
	if s.store == nil {
		return Neighbors{}, fmt.Errorf("catalog store is nil")
	}

	chapter, err := s.store.FindByID(ctx, chapterID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrChapterNotFound) {
			return Neighbors{}, ErrChapterNotFound
		}
		return Neighbors{}, err
	}

	prevRec, nextRec, err := s.store.PrevNext(ctx, chapter.WorkID, chapter.Seq)
	if err != nil {
		return Neighbors{}, err
	}

	var out Neighbors
	if prevRec != nil {
		prev := chapterOf(*prevRec)
		out.Prev = &prev
	}
	if nextRec != nil {
		next := chapterOf(*nextRec)
		out.Next = &next
	}
	return out, nil
}

func (s *Service) CreateChapter(ctx context.Context, in CreateChapterInput) (model.Chapter, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.WorkID <= 0 || in.Seq <= 0 || in.Title == "" || in.Price < 0 {
		return model.Chapter{}, ErrValidation
	}
	if s.store == nil {
		return model.Chapter{}, fmt.Errorf("catalog store is nil")
	}

	if _, err := s.store.FindWork(ctx, in.WorkID); err != nil {
		if errors.Is(err, pgrepo.ErrWorkNotFound) {
			return model.Chapter{}, ErrWorkNotFound
		}
		return model.Chapter{}, err
	}

	rec, err := s.store.Create(ctx, in.WorkID, in.Seq, in.Title, in.Price, in.IsFree)
	if err != nil {
		return model.Chapter{}, err
	}

	return chapterOf(rec), nil
}

func (s *Service) UpdatePricing(ctx context.Context, chapterID, price int64, isFree bool) (model.Chapter, error) {
	if chapterID <= 0 || price < 0 {
		return model.Chapter{}, ErrValidation
	}
	if s.store == nil {
		return model.Chapter{}, fmt.Errorf("catalog store is nil")
	}

	rec, err := s.store.UpdatePricing(ctx, chapterID, price, isFree)
	if err != nil {
		if errors.Is(err, pgrepo.ErrChapterNotFound) {
			return model.Chapter{}, ErrChapterNotFound
		}
		return model.Chapter{}, err
	}

	return chapterOf(rec), nil
}

func chapterOf(rec pgrepo.ChapterRecord) model.Chapter {
	return model.Chapter{
		ID:          rec.ID,
		WorkID:      rec.WorkID,
		Seq:         rec.Seq,
		Title:       rec.Title,
		Price:       rec.Price,
		IsFree:      rec.IsFree,
		PublishedAt: rec.PublishedAt,
	}
}
