package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 50

	// Issue listings can be large; cap per_page so a single request
	// cannot pull the whole table.
	maxPerPage = 200
)

// PaginationParams holds parsed pagination query parameters.
type PaginationParams struct {
	Page    int
	PerPage int
}

// positiveQueryInt reads a query parameter as a positive integer,
// falling back when absent, malformed, or non-positive.
func positiveQueryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// ParsePagination extracts page and per_page from the request.
// Defaults: page=1, per_page=50. per_page is capped at 200.
func ParsePagination(r *http.Request) PaginationParams {
	perPage := positiveQueryInt(r, "per_page", defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return PaginationParams{
		Page:    positiveQueryInt(r, "page", 1),
		PerPage: perPage,
	}
}

// Offset returns the database offset for the current page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}
