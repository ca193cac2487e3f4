package db

import (
	"fmt"
	"strings"
)

// TagMatch is an exact-match condition on a TAG field.
type TagMatch struct {
	Field string
	Value string
}

// NumericMax is an upper-bound condition on a NUMERIC field.
type NumericMax struct {
	Field string
	Max   float64
}

// FilterExpr is a conjunction of pushdown conditions.
type FilterExpr struct {
	Tags   []TagMatch
	Ranges []NumericMax
}

// IsEmpty reports whether no conditions are present.
func (f FilterExpr) IsEmpty() bool {
	return len(f.Tags) == 0 && len(f.Ranges) == 0
}

// String renders the expression as a RediSearch filter clause.
func (f FilterExpr) String() string {
	var parts []string
	for _, t := range f.Tags {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", t.Field, escapeTag(t.Value)))
	}
	for _, r := range f.Ranges {
		parts = append(parts, fmt.Sprintf("@%s:[-inf %g]", r.Field, r.Max))
	}
	return strings.Join(parts, " ")
}

// escapeTag escapes RediSearch TAG special characters.
func escapeTag(v string) string {
	var sb strings.Builder
	for _, r := range v {
		switch r {
		case ',', '.', '<', '>', '{', '}', '[', ']', '"', '\'', ':', ';',
			'!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '-', '+',
			'=', '~', '|', ' ', '/', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
