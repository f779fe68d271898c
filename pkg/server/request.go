package server

import (
	"net/http"
	"strconv"

	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
)

// paginationFromQuery reads page_size and continuation_token.
func paginationFromQuery(r *http.Request) (storage.PaginationOptions, error) {
	q := r.URL.Query()

	pageSize := 0
	if raw := q.Get("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > DefaultMaxPageSize {
			return storage.PaginationOptions{}, serverErrors.ValidationFailed("page_size must be between 1 and %d", DefaultMaxPageSize)
		}
		pageSize = v
	}

	token := q.Get("continuation_token")
	if err := storage.ValidateContinuationToken(token); err != nil {
		return storage.PaginationOptions{}, serverErrors.InvalidContinuationToken
	}

	return storage.NewPaginationOptions(pageSize, token), nil
}

func boolFromQuery(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, serverErrors.ValidationFailed("%s must be true or false", name)
	}
	return &v, nil
}

func intFromQuery(r *http.Request, name string, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, serverErrors.ValidationFailed("%s must be between %d and %d", name, lo, hi)
	}
	return v, nil
}
