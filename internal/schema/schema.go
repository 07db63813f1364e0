// Package schema declares the column layout expected from uploaded CSV files
// and validates files against it before anything touches the database.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Type is the primitive type a column's values must parse as.
type Type int

const (
	Int Type = iota
	Float
	Str
)

// String returns the lowercase type name used in messages and schema hints.
func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Str:
		return "str"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Parse converts a raw cell into the Go value for this type: int64, float64
// or string. Numeric cells are trimmed before parsing.
func (t Type) Parse(raw string) (interface{}, error) {
	switch t {
	case Int:
		return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	case Float:
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case Str:
		return raw, nil
	default:
		return nil, fmt.Errorf("schema: unknown column type %d", int(t))
	}
}

// Column describes one expected column.
type Column struct {
	Name     string
	Type     Type
	Nullable bool
}

// Schema is an ordered list of expected columns.
type Schema []Column

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the column with the given name.
func (s Schema) Lookup(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// String renders the schema as an indented JSON object mapping each column
// to its type name, suffixed with " (nullable)" where empty cells are allowed.
func (s Schema) String() string {
	if len(s) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{\n")
	for i, c := range s {
		desc := c.Type.String()
		if c.Nullable {
			desc += " (nullable)"
		}
		b.WriteString("    ")
		b.WriteString(quote(c.Name))
		b.WriteString(": ")
		b.WriteString(quote(desc))
		if i < len(s)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
