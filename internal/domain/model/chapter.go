package model

import "time"

type Work struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type Chapter struct {
	ID          int64      `json:"id"`
	WorkID      int64      `json:"work_id"`
	Seq         int        `json:"seq"`
	Title       string     `json:"title"`
	Price       int64      `json:"price"`
	IsFree      bool       `json:"is_free"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// EffectivePrice is 0 for free chapters regardless of the stored price.
func (c Chapter) EffectivePrice() int64 {
	if c.IsFree {
		return 0
	}
	return c.Price
}
