package errors

import (
	"encoding/json"
	"net/http"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PaywallError carries the price alongside the denial so the client can
// render the purchase prompt without a second request.
type PaywallError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Price   int64  `json:"price"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
