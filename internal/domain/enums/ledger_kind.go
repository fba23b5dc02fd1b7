package enums

// LedgerKind tags a balance-changing event. The set is closed: every
// mutation of a wallet must carry exactly one of these.
type LedgerKind string

const (
	LedgerKindSignupBonus     LedgerKind = "SIGNUP_BONUS"
	LedgerKindPurchasePack    LedgerKind = "PURCHASE_PACK"
	LedgerKindSpentChapter    LedgerKind = "SPENT_CHAPTER"
	LedgerKindRentalSpend     LedgerKind = "RENTAL_SPEND"
	LedgerKindAdReward        LedgerKind = "AD_REWARD"
	LedgerKindAdminAdjustment LedgerKind = "ADMIN_ADJUSTMENT"
)

func (k LedgerKind) Valid() bool {
	switch k {
	case LedgerKindSignupBonus,
		LedgerKindPurchasePack,
		LedgerKindSpentChapter,
		LedgerKindRentalSpend,
		LedgerKindAdReward,
		LedgerKindAdminAdjustment:
		return true
	default:
		return false
	}
}
