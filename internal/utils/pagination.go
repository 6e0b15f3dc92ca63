// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// Page size bounds shared by list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault converts s with strconv.Atoi and returns def when s is empty or
// not an integer.
//
//	n := utils.AtoiDefault("42", 0) // 42
//	n = utils.AtoiDefault("x", 5)   // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageParams parses raw page and page_size values. Pages start at 1; sizes
// default to DefaultPageSize and are clamped to [1, MaxPageSize].
func PageParams(rawPage, rawSize string) (page, size int) {
	page = AtoiDefault(rawPage, 1)
	if page < 1 {
		page = 1
	}
	size = AtoiDefault(rawSize, DefaultPageSize)
	switch {
	case size < 1:
		size = 1
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return page, size
}

// TotalPages returns how many pages of size hold total items.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
