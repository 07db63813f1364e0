// Package planner turns query-builder selections into a single read-only
// SQL statement. Table and column identifiers come only from the model
// registry; user-supplied values are always bound as parameters.
package planner

import (
	"fmt"
	"strings"

	qerrors "github.com/qbench/qbench/internal/errors"
)

// ResetColumn in a column list means "show every column".
const ResetColumn = "reset"

// Filter is one substring match on a whitelisted field.
type Filter struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Pattern returns the bound LIKE pattern.
func (f Filter) Pattern() string {
	return "%" + f.Value + "%"
}

// ParseFilters pairs up alternating field and value entries. Pairs with an
// empty value are skipped and a trailing field without a value is ignored.
func ParseFilters(raw []string) []Filter {
	var out []Filter
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i+1] == "" {
			continue
		}
		out = append(out, Filter{Field: raw[i], Value: raw[i+1]})
	}
	return out
}

// wantsAll reports whether a column selection asks for every column.
func wantsAll(columns []string) bool {
	if len(columns) == 0 {
		return true
	}
	for _, c := range columns {
		if c == ResetColumn {
			return true
		}
	}
	return false
}

func invalidColumn(kind, name string) error {
	return qerrors.NewValidationError(qerrors.CodeUnknownColumn, fmt.Sprintf("invalid %s %q", kind, name))
}

// whereClause renders filters whose fields have already been validated.
func whereClause(filters []Filter, render func(field string) string) (string, []interface{}) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, len(filters))
	args := make([]interface{}, len(filters))
	for i, f := range filters {
		parts[i] = render(f.Field) + " LIKE ?"
		args[i] = f.Pattern()
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

type param struct {
	name   string
	values []string
}

// describe renders a request for error logs when no SQL was produced.
func describe(kind string, params ...param) string {
	var b strings.Builder
	b.WriteString(kind)
	for _, p := range params {
		fmt.Fprintf(&b, " %s=[%s]", p.name, strings.Join(p.values, ", "))
	}
	return b.String()
}
