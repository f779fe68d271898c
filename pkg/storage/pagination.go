package storage

import (
	"sort"

	"github.com/oklog/ulid/v2"
)

// ValidateContinuationToken checks that a non-empty token is an ULID.
func ValidateContinuationToken(token string) error {
	if token == "" {
		return nil
	}
	if _, err := ulid.ParseStrict(token); err != nil {
		return ErrInvalidContinuationToken
	}
	return nil
}

// Paginate orders items by id and returns the page after opts.From, plus the
// continuation token for the next page ("" when there is none).
func Paginate[T any](items []T, idOf func(T) string, opts PaginationOptions) ([]T, string, error) {
	if err := ValidateContinuationToken(opts.From); err != nil {
		return nil, "", err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return idOf(items[i]) < idOf(items[j])
	})

	start := sort.Search(len(items), func(i int) bool {
		return idOf(items[i]) > opts.From
	})
	items = items[start:]

	if opts.PageSize <= 0 || len(items) <= opts.PageSize {
		return items, "", nil
	}

	page := items[:opts.PageSize]
	return page, idOf(page[len(page)-1]), nil
}
