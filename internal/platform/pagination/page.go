// Package pagination provides page normalization helpers for list queries.
package pagination

import "fmt"

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// SortByConfig configures sort_by validation.
type SortByConfig struct {
	Default string
	Allowed []string
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// ClampPage normalizes a 1-indexed page number.
func ClampPage(value int) int {
	if value < 1 {
		return 1
	}
	return value
}

// NormalizeSortBy validates sort_by and applies defaults.
func NormalizeSortBy(sortBy string, cfg SortByConfig) (string, error) {
	if sortBy == "" {
		return cfg.Default, nil
	}
	for _, allowed := range cfg.Allowed {
		if sortBy == allowed {
			return sortBy, nil
		}
	}
	return "", fmt.Errorf("invalid sort_by: %s", sortBy)
}

// TotalPages computes the page count for a total entry count.
// The count is at least 1 even when the set is empty.
func TotalPages(total, pageSize int) int {
	if pageSize < 1 {
		pageSize = 1
	}
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// Offset computes the row offset for a 1-indexed page.
func Offset(page, pageSize int) int {
	return (ClampPage(page) - 1) * pageSize
}
