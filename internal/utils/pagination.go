// Package utils provides small, generic helpers used by the HTTP layer.
package utils

import "strconv"

// Page size bounds for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty or
// not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage parses page and page_size query values and bounds them to
// [1, ∞) and [1, MaxPageSize].
func ClampPage(pageStr, sizeStr string) (page, pageSize int) {
	page = AtoiDefault(pageStr, 1)
	if page < 1 {
		page = 1
	}
	pageSize = AtoiDefault(sizeStr, DefaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// TotalPages returns ceil(total/pageSize), or 0 for a non-positive size.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
