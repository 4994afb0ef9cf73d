// Package query implements list queries over resource collections: equality
// filters, field projection and offset/size pagination, with semantics that
// depend on the negotiated API version.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Limits applied to field names and filter values taken from requests.
const (
	// MaxIdentifierLength is MySQL's column name limit, the tightest of the
	// supported store backends.
	MaxIdentifierLength = 64
	// MaxFilterValueLength bounds a single filter value.
	MaxFilterValueLength = 65535
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// reservedWords are keywords reserved by every supported store backend.
// Field names taken from _include end up quoted in SQL column lists, and
// none of the resource kinds declares a field with one of these names.
var reservedWords = map[string]struct{}{
	"select": {}, "insert": {}, "update": {}, "delete": {}, "drop": {},
	"create": {}, "alter": {}, "truncate": {}, "exec": {}, "execute": {},
	"union": {}, "into": {}, "from": {}, "where": {}, "table": {},
	"database": {}, "grant": {}, "revoke": {}, "index": {}, "view": {},
	"procedure": {}, "function": {}, "trigger": {}, "schema": {},
}

// ValidateIdentifier reports whether name can be used as a field name in a
// projection or as a SQL column.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return errors.New("field name cannot be empty")
	case len(name) > MaxIdentifierLength:
		return fmt.Errorf("field name too long (max %d chars): %q", MaxIdentifierLength, name)
	case !identifierPattern.MatchString(name):
		return fmt.Errorf("invalid field name %q: must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	if _, ok := reservedWords[strings.ToLower(name)]; ok {
		return fmt.Errorf("field name %q is a reserved word", name)
	}
	return nil
}

// SanitizeFilterValue strips NUL bytes from a filter value and rejects
// values that are not valid UTF-8 or exceed MaxFilterValueLength bytes.
func SanitizeFilterValue(val string) (string, error) {
	val = strings.ReplaceAll(val, "\x00", "")
	if !utf8.ValidString(val) {
		return "", errors.New("value is not valid UTF-8")
	}
	if len(val) > MaxFilterValueLength {
		return "", fmt.Errorf("value too long (max %d bytes)", MaxFilterValueLength)
	}
	return val, nil
}
