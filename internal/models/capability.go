package models

import (
	"net/http"
	"time"
)

// Operation is the single action a capability authorizes
type Operation string

const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
)

// Valid reports whether o is a known operation
func (o Operation) Valid() bool {
	return o == OpRead || o == OpWrite
}

// Method is the HTTP method used to redeem a capability for o
func (o Operation) Method() string {
	if o == OpWrite {
		return http.MethodPut
	}
	return http.MethodGet
}

// OperationForMethod maps a redemption request method back to an operation
func OperationForMethod(method string) (Operation, bool) {
	switch method {
	case http.MethodGet, http.MethodHead:
		return OpRead, true
	case http.MethodPut:
		return OpWrite, true
	}
	return "", false
}

// Capability is a signed, expiring URL granting one operation on one key.
// It is minted per request and never persisted. The store bounds it in time
// but does not enforce single use.
type Capability struct {
	Key       string    `json:"key"`
	Operation Operation `json:"operation"`
	ExpiresAt time.Time `json:"expiresAt"`
	URL       string    `json:"url"`
}

// Expired reports whether the capability is no longer valid at now.
// A capability is valid strictly before ExpiresAt.
func (c Capability) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
