package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrChapterNotFound = errors.New("chapter not found")
	ErrWorkNotFound    = errors.New("work not found")
)

type ChapterRepo struct {
	pool *pgxpool.Pool
}

type ChapterRecord struct {
	ID          int64
	WorkID      int64
	Seq         int
	Title       string
	Price       int64
	IsFree      bool
	PublishedAt *time.Time
}

type WorkRecord struct {
	ID        int64
	Title     string
	Slug      string
	Author    string
	CreatedAt time.Time
}

type PageRecord struct {
	ID        int64
	ChapterID int64
	Position  int
	ObjectKey string
	CreatedAt time.Time
}

func NewChapterRepo(pool *pgxpool.Pool) *ChapterRepo {
	return &ChapterRepo{pool: pool}
}

func (r *ChapterRepo) FindByID(ctx context.Context, chapterID int64) (ChapterRecord, error) {
	if chapterID <= 0 {
		return ChapterRecord{}, fmt.Errorf("invalid chapter id")
	}
	if r.pool == nil {
		return ChapterRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec ChapterRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, work_id, seq, title, price, is_free, published_at
FROM chapters
WHERE id = $1
`, chapterID).Scan(&rec.ID, &rec.WorkID, &rec.Seq, &rec.Title, &rec.Price, &rec.IsFree, &rec.PublishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChapterRecord{}, ErrChapterNotFound
		}
		return ChapterRecord{}, fmt.Errorf("find chapter: %w", err)
	}

	return rec, nil
}

func (r *ChapterRepo) FindWork(ctx context.Context, workID int64) (WorkRecord, error) {
	if workID <= 0 {
		return WorkRecord{}, fmt.Errorf("invalid work id")
	}
	if r.pool == nil {
		return WorkRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec WorkRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, title, slug, author, created_at
FROM works
WHERE id = $1
`, workID).Scan(&rec.ID, &rec.Title, &rec.Slug, &rec.Author, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WorkRecord{}, ErrWorkNotFound
		}
		return WorkRecord{}, fmt.Errorf("find work: %w", err)
	}

	return rec, nil
}

func (r *ChapterRepo) ListByWork(ctx context.Context, workID int64) ([]ChapterRecord, error) {
	if workID <= 0 {
		return nil, fmt.Errorf("invalid work id")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, work_id, seq, title, price, is_free, published_at
FROM chapters
WHERE work_id = $1
ORDER BY seq ASC
`, workID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var out []ChapterRecord
	for rows.Next() {
		var rec ChapterRecord
		if err := rows.Scan(&rec.ID, &rec.WorkID, &rec.Seq, &rec.Title, &rec.Price, &rec.IsFree, &rec.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", err)
	}

	return out, nil
}

// PrevNext returns the neighboring chapters by sequence number within the
// same work. The reader uses it to render locked/unlocked navigation arrows.
func (r *ChapterRepo) PrevNext(ctx context.Context, workID int64, seq int) (*ChapterRecord, *ChapterRecord, error) {
	if workID <= 0 {
		return nil, nil, fmt.Errorf("invalid work id")
	}
	if r.pool == nil {
		return nil, nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
(
	SELECT id, work_id, seq, title, price, is_free, published_at
	FROM chapters
	WHERE work_id = $1 AND seq < $2
	ORDER BY seq DESC
	LIMIT 1
)
UNION ALL
(
	SELECT id, work_id, seq, title, price, is_free, published_at
	FROM chapters
	WHERE work_id = $1 AND seq > $2
	ORDER BY seq ASC
	LIMIT 1
)
`, workID, seq)
	if err != nil {
		return nil, nil, fmt.Errorf("find chapter neighbors: %w", err)
	}
	defer rows.Close()

	var prev, next *ChapterRecord
	for rows.Next() {
		var rec ChapterRecord
		if err := rows.Scan(&rec.ID, &rec.WorkID, &rec.Seq, &rec.Title, &rec.Price, &rec.IsFree, &rec.PublishedAt); err != nil {
			return nil, nil, fmt.Errorf("scan chapter neighbor: %w", err)
		}
		if rec.Seq < seq {
			prev = &rec
		} else {
			next = &rec
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate chapter neighbors: %w", err)
	}

	return prev, next, nil
}

func (r *ChapterRepo) Create(ctx context.Context, workID int64, seq int, title string, price int64, isFree bool) (ChapterRecord, error) {
	if workID <= 0 || seq <= 0 || strings.TrimSpace(title) == "" || price < 0 {
		return ChapterRecord{}, fmt.Errorf("invalid chapter create payload")
	}
	if r.pool == nil {
		return ChapterRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec ChapterRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO chapters (work_id, seq, title, price, is_free, published_at)
VALUES ($1, $2, $3, $4, $5, NOW())
RETURNING id, work_id, seq, title, price, is_free, published_at
`, workID, seq, strings.TrimSpace(title), price, isFree).
		Scan(&rec.ID, &rec.WorkID, &rec.Seq, &rec.Title, &rec.Price, &rec.IsFree, &rec.PublishedAt)
	if err != nil {
		return ChapterRecord{}, fmt.Errorf("create chapter: %w", err)
	}

	return rec, nil
}

func (r *ChapterRepo) UpdatePricing(ctx context.Context, chapterID, price int64, isFree bool) (ChapterRecord, error) {
	if chapterID <= 0 || price < 0 {
		return ChapterRecord{}, fmt.Errorf("invalid chapter pricing payload")
	}
	if r.pool == nil {
		return ChapterRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec ChapterRecord
	err := r.pool.QueryRow(ctx, `
UPDATE chapters
SET price = $2, is_free = $3
WHERE id = $1
RETURNING id, work_id, seq, title, price, is_free, published_at
`, chapterID, price, isFree).
		Scan(&rec.ID, &rec.WorkID, &rec.Seq, &rec.Title, &rec.Price, &rec.IsFree, &rec.PublishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChapterRecord{}, ErrChapterNotFound
		}
		return ChapterRecord{}, fmt.Errorf("update chapter pricing: %w", err)
	}

	return rec, nil
}

func (r *ChapterRepo) InsertPage(ctx context.Context, chapterID int64, position int, objectKey string) (PageRecord, error) {
	if chapterID <= 0 || position <= 0 || strings.TrimSpace(objectKey) == "" {
		return PageRecord{}, fmt.Errorf("invalid page insert payload")
	}
	if r.pool == nil {
		return PageRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec PageRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO chapter_pages (chapter_id, position, object_key, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (chapter_id, position) DO UPDATE SET
	object_key = EXCLUDED.object_key
RETURNING id, chapter_id, position, object_key, created_at
`, chapterID, position, objectKey).
		Scan(&rec.ID, &rec.ChapterID, &rec.Position, &rec.ObjectKey, &rec.CreatedAt)
	if err != nil {
		return PageRecord{}, fmt.Errorf("insert chapter page: %w", err)
	}

	return rec, nil
}

func (r *ChapterRepo) ListPages(ctx context.Context, chapterID int64) ([]PageRecord, error) {
	if chapterID <= 0 {
		return nil, fmt.Errorf("invalid chapter id")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, chapter_id, position, object_key, created_at
FROM chapter_pages
WHERE chapter_id = $1
ORDER BY position ASC
`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list chapter pages: %w", err)
	}
	defer rows.Close()

	var out []PageRecord
	for rows.Next() {
		var rec PageRecord
		if err := rows.Scan(&rec.ID, &rec.ChapterID, &rec.Position, &rec.ObjectKey, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter page: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapter pages: %w", err)
	}

	return out, nil
}
