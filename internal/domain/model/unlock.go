package model

import (
	"time"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/enums"
)

// ChapterUnlock grants a user access to one chapter. At most one row exists
// per (user, chapter). ExpiresAt is nil for permanent unlocks.
type ChapterUnlock struct {
	UserID    int64            `json:"user_id"`
	ChapterID int64            `json:"chapter_id"`
	Kind      enums.UnlockKind `json:"kind"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Active reports whether the unlock still grants access at the given instant.
// An expired rental is logically equivalent to no unlock at all.
func (u ChapterUnlock) Active(at time.Time) bool {
	if u.Kind == enums.UnlockKindPermanent {
		return true
	}
	return u.ExpiresAt != nil && u.ExpiresAt.After(at)
}
