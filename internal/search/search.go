// Package search builds PostgreSQL full-text search fragments over stored
// field values.
package search

import (
	"fmt"
	"strings"
)

// BuildClause returns a WHERE fragment matching content records whose
// field values match the query, with the bind arguments for it. The
// fragment references the content table by name and must be ANDed into a
// query selecting from it. An empty or blank query yields no clause.
func BuildClause(query string, paramIdx int) (string, []any) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}

	clause := fmt.Sprintf(`EXISTS (
		SELECT 1 FROM fields f
		WHERE f.content_id = content.id
		AND to_tsvector('english', coalesce(f.value #>> '{}', '')) @@ plainto_tsquery('english', $%d))`,
		paramIdx)
	return clause, []any{query}
}
