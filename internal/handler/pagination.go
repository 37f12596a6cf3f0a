package handler

import (
	"net/http"
	"strconv"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset from the query string. Missing
// values take defaults and a limit above MaxLimit is clamped; values that are
// not non-negative integers are rejected.
func ParsePagination(r *http.Request) (PaginationParams, error) {
	p := PaginationParams{Limit: DefaultLimit}
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return p, apperrors.InvalidInput("limit", "must be a positive integer")
		}
		p.Limit = min(limit, MaxLimit)
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return p, apperrors.InvalidInput("offset", "must be a non-negative integer")
		}
		p.Offset = offset
	}

	return p, nil
}
