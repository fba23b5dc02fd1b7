package dto

import "time"

type WalletResponse struct {
	Patinhas     int64      `json:"patinhas"`
	LitePatinhas int64      `json:"lite_patinhas"`
	DailyAdCount int        `json:"daily_ad_count"`
	LastAdAt     *time.Time `json:"last_ad_at,omitempty"`
}

type LedgerEntryResponse struct {
	ID          int64     `json:"id"`
	Kind        string    `json:"kind"`
	Currency    string    `json:"currency"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description,omitempty"`
	ReferenceID *string   `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type LedgerResponse struct {
	Entries []LedgerEntryResponse `json:"entries"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

type AdRewardResponse struct {
	LitePatinhas int64     `json:"lite_patinhas"`
	ClaimedToday int       `json:"claimed_today"`
	DailyCap     int       `json:"daily_cap"`
	NextResetAt  time.Time `json:"next_reset_at"`
}

type AdjustBalanceRequest struct {
	Patinhas int64  `json:"patinhas"`
	Reason   string `json:"reason"`
}

type ReconcileResponse struct {
	UserID         int64 `json:"user_id"`
	Patinhas       int64 `json:"patinhas"`
	LedgerPatinhas int64 `json:"ledger_patinhas"`
	LitePatinhas   int64 `json:"lite_patinhas"`
	LedgerLite     int64 `json:"ledger_lite"`
	Balanced       bool  `json:"balanced"`
}
