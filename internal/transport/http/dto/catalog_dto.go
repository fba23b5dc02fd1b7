package dto

import "time"

type WorkResponse struct {
	ID       int64             `json:"id"`
	Title    string            `json:"title"`
	Slug     string            `json:"slug"`
	Author   string            `json:"author"`
	Chapters []ChapterResponse `json:"chapters"`
}

type ChapterResponse struct {
	ID          int64      `json:"id"`
	WorkID      int64      `json:"work_id"`
	Seq         int        `json:"seq"`
	Title       string     `json:"title"`
	Price       int64      `json:"price"`
	IsFree      bool       `json:"is_free"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type ChapterDetailResponse struct {
	Chapter ChapterResponse  `json:"chapter"`
	Prev    *ChapterResponse `json:"prev,omitempty"`
	Next    *ChapterResponse `json:"next,omitempty"`
}

type CreateChapterRequest struct {
	Seq    int    `json:"seq"`
	Title  string `json:"title"`
	Price  int64  `json:"price"`
	IsFree bool   `json:"is_free"`
}

type UpdatePricingRequest struct {
	Price  int64 `json:"price"`
	IsFree bool  `json:"is_free"`
}

type PageResponse struct {
	Position int    `json:"position"`
	URL      string `json:"url"`
}

type PagesResponse struct {
	ChapterID int64          `json:"chapter_id"`
	Pages     []PageResponse `json:"pages"`
}
