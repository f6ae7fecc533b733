package shared

import (
	"net/http"
	"strconv"
)

// Keyset describes a descending keyset window over monotonically increasing
// event ids. Before=0 means "from the newest event".
type Keyset struct {
	Before int64
	Limit  int
}

// DefaultPageSize bounds history listings when callers omit a limit.
const DefaultPageSize = 50

// MaxPageSize is the hard ceiling for a single listing request.
const MaxPageSize = 500

// KeysetFromRequest parses ?before= and ?limit= query parameters.
func KeysetFromRequest(r *http.Request) Keyset {
	ks := Keyset{Limit: DefaultPageSize}
	q := r.URL.Query()
	if raw := q.Get("before"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			ks.Before = v
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			ks.Limit = v
		}
	}
	if ks.Limit > MaxPageSize {
		ks.Limit = MaxPageSize
	}
	return ks
}
