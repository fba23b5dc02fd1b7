package enums

// Currency separates the two wallet balances. Ledger entries are summed per
// currency, so an entry must never mix them.
type Currency string

const (
	CurrencyPatinhas     Currency = "PATINHAS"
	CurrencyLitePatinhas Currency = "LITE"
)

func (c Currency) Valid() bool {
	return c == CurrencyPatinhas || c == CurrencyLitePatinhas
}
