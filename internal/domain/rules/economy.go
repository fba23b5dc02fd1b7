package rules

import "time"

const (
	// SignupBonusPatinhas is credited to every new wallet, with a matching
	// ledger entry so the reconciliation invariant holds from day one.
	SignupBonusPatinhas int64 = 10

	// RentalCostLite is a flat price in lite patinhas, independent of the
	// chapter's listed price.
	RentalCostLite int64 = 2

	RentalDuration = 72 * time.Hour

	AdRewardLite   int64 = 1
	AdDailyCap           = 4
)
