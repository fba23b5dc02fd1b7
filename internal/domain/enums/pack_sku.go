package enums

type PackSKU string

const (
	PackSKU30  PackSKU = "pack_30"
	PackSKU80  PackSKU = "pack_80"
	PackSKU170 PackSKU = "pack_170"
	PackSKU360 PackSKU = "pack_360"
)

func (s PackSKU) Valid() bool {
	return s.Patinhas() > 0
}

// Patinhas returns the amount of permanent currency a pack credits, or 0 for
// an unknown SKU.
func (s PackSKU) Patinhas() int64 {
	switch s {
	case PackSKU30:
		return 30
	case PackSKU80:
		return 80
	case PackSKU170:
		return 170
	case PackSKU360:
		return 360
	default:
		return 0
	}
}
