package dto

import "time"

type AccessResponse struct {
	Allowed   bool       `json:"allowed"`
	Price     int64      `json:"price,omitempty"`
	Kind      string     `json:"kind,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type UnlockRequest struct {
	Method string `json:"method"`
}

type UnlockResponse struct {
	Kind         string     `json:"kind,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	AlreadyOwned bool       `json:"already_owned"`
	Patinhas     int64      `json:"patinhas"`
	LitePatinhas int64      `json:"lite_patinhas"`
}
