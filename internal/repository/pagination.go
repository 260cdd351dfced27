package repository

import "strings"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// paginate clamps page inputs and returns page, size and offset.
func paginate(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size, (page - 1) * size
}

// sortOrder normalises the requested direction, falling back to def.
func sortOrder(raw, def string) string {
	order := strings.ToUpper(raw)
	if order != "ASC" && order != "DESC" {
		return def
	}
	return order
}

// sortColumn resolves a requested sort key against the allowed set.
func sortColumn(raw string, allowed map[string]string, def string) string {
	if column, ok := allowed[raw]; ok {
		return column
	}
	return allowed[def]
}
