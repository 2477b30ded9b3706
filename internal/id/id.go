// Package id generates identifiers for requests flowing through a node.
package id

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID carries the request id between nodes.
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLength bounds ids accepted from callers.
const maxRequestIDLength = 128

// UUID generates a random (version 4) UUID.
func UUID() string {
	return uuid.NewString()
}

// Short generates a 16-character hex id. Suitable for log correlation where
// brevity matters.
func Short() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")[:16]
}

// Request returns the caller-supplied id when it is usable, otherwise a new
// UUID. A usable id is non-empty, at most 128 characters and printable ASCII.
func Request(supplied string) string {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" || len(supplied) > maxRequestIDLength {
		return UUID()
	}
	for i := 0; i < len(supplied); i++ {
		if c := supplied[i]; c < 0x21 || c > 0x7e {
			return UUID()
		}
	}
	return supplied
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	return uuid.Validate(s) == nil
}

type ctxKey struct{}

// NewContext returns ctx carrying the request id.
func NewContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// FromContext returns the request id stored in ctx, or "".
func FromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}
