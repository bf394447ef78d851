// Package httpx holds the JSON response helpers shared by the HTTP surfaces.
package httpx

import (
	"encoding/json"
	"net/http"
)

// StatusError carries an HTTP status alongside the detail text the API
// contract exposes to clients.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string { return e.Detail }

func NewError(status int, detail string) *StatusError {
	return &StatusError{Status: status, Detail: detail}
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Detail writes the error body shape all endpoints share: {"detail": "..."}.
func Detail(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, map[string]string{"detail": detail})
}
