package request

import (
	"net/http"
	"strconv"
	"strings"
)

// Page sizes for instance and provision listings and for log tails.
const (
	DefaultLimit    = 25
	MaxLimit        = 100
	DefaultLogLimit = 100
	MaxLogLimit     = 1000
)

// Pagination is the page of a listing: at most Limit rows after the opaque
// Cursor returned with the previous page.
type Pagination struct {
	Limit  int
	Cursor string
}

// ParsePagination reads limit and cursor for an instance listing.
func ParsePagination(r *http.Request) Pagination {
	return Pagination{
		Limit:  ParseLimit(r, DefaultLimit, MaxLimit),
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
}

// ParseLimit reads the limit query parameter. A missing, malformed or
// non-positive limit yields def; anything above maxLimit is clamped.
func ParseLimit(r *http.Request, def, maxLimit int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxLimit)
}
