package query

import (
	"fmt"
	"strings"
)

// ParseFieldSelection parses _include values into validated field names.
// Each value may itself be a comma-separated list, so both
// "_include=id,name" and "_include=id&_include=name" work. Whitespace is
// trimmed and duplicates are dropped. Returns nil when nothing is selected.
func ParseFieldSelection(values ...string) ([]string, error) {
	var result []string
	seen := make(map[string]bool)

	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			col := strings.TrimSpace(part)
			if col == "" || seen[col] {
				continue
			}
			if err := ValidateIdentifier(col); err != nil {
				return nil, fmt.Errorf("invalid field name: %w", err)
			}
			seen[col] = true
			result = append(result, col)
		}
	}

	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// QuoteIdentifiers validates, quotes, and joins column names into a
// comma-separated SQL fragment. For example, with PostgreSQL quoting:
// ["id", "name", "email"] -> `"id", "name", "email"`
func QuoteIdentifiers(names []string, quoteFn func(string) string) (string, error) {
	if len(names) == 0 {
		return "*", nil
	}

	quoted := make([]string, len(names))
	for i, name := range names {
		if err := ValidateIdentifier(name); err != nil {
			return "", err
		}
		quoted[i] = quoteFn(name)
	}
	return strings.Join(quoted, ", "), nil
}

// PostgresQuote returns a PostgreSQL-style double-quoted identifier. SQLite
// accepts the same form.
func PostgresQuote(name string) string {
	// Escape any embedded double quotes by doubling them.
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

// MySQLQuote returns a MySQL-style backtick-quoted identifier.
func MySQLQuote(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// MSSQLQuote returns a SQL Server bracket-quoted identifier.
func MSSQLQuote(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
