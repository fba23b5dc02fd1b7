package enums

// UnlockKind is how a user holds access to a chapter. A rental carries an
// expiry instant; a permanent unlock never expires and is never downgraded.
type UnlockKind string

const (
	UnlockKindPermanent UnlockKind = "PERMANENT"
	UnlockKindRental    UnlockKind = "RENTAL"
)

// UnlockMethod is the payment path requested by the user.
type UnlockMethod string

const (
	UnlockMethodPermanent UnlockMethod = "PERMANENT"
	UnlockMethodRental    UnlockMethod = "RENTAL"
)

func (m UnlockMethod) Valid() bool {
	return m == UnlockMethodPermanent || m == UnlockMethodRental
}
