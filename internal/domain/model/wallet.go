package model

import "time"

// Wallet holds the two per-user balances. Both are always >= 0 and change
// only through ledger-producing operations.
type Wallet struct {
	UserID       int64      `json:"user_id"`
	Patinhas     int64      `json:"patinhas"`
	LitePatinhas int64      `json:"lite_patinhas"`
	DailyAdCount int        `json:"daily_ad_count"`
	LastAdAt     *time.Time `json:"last_ad_at,omitempty"`
}
