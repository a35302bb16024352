package repository

import "strings"

// sortClause resolves a caller-supplied sort column against a whitelist.
func sortClause(sortBy, sortOrder string, allowed map[string]string, fallback string) (string, string) {
	orderBy := allowed[sortBy]
	if orderBy == "" {
		orderBy = allowed[fallback]
		if orderBy == "" {
			orderBy = fallback
		}
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return orderBy, order
}

// pageClause clamps pagination inputs to sane limits.
func pageClause(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return pageSize, (page - 1) * pageSize
}
