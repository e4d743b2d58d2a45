// Package pagination normalizes page and page-size request values.
package pagination

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPage applies defaults for page numbers. Zero, negative, and otherwise
// unusable values fall back to the first page rather than failing.
func ClampPage(value int) int {
	if value <= 0 {
		return 1
	}
	return value
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

// Offset computes the row offset for a normalized page and page size.
func Offset(page, pageSize int) int {
	if page <= 1 {
		return 0
	}
	return (page - 1) * pageSize
}
