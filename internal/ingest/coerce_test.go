package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbench/qbench/internal/schema"
)

func TestCoerce(t *testing.T) {
	intCol := schema.Column{Name: "n", Type: schema.Int, Nullable: true}
	floatCol := schema.Column{Name: "f", Type: schema.Float, Nullable: true}
	strCol := schema.Column{Name: "s", Type: schema.Str, Nullable: true}

	tests := []struct {
		name string
		col  schema.Column
		raw  string
		want interface{}
	}{
		{"empty", intCol, "", nil},
		{"int", intCol, " 7 ", int64(7)},
		{"float", floatCol, "2.5", 2.5},
		{"nan token", floatCol, "NaN", nil},
		{"lowercase nan parses as NaN", floatCol, "nAn", nil},
		{"na token in text", strCol, "N/A", nil},
		{"text kept verbatim", strCol, " Tabu ", " Tabu "},
		// "e" followed by a combining acute accent composes to U+00E9.
		{"text is NFC normalized", strCol, "Cafe\u0301", "Caf\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.col, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := coerce(intCol, "1.5")
	assert.Error(t, err)
}

func TestCoerceRecord_AbsentColumnsAreNull(t *testing.T) {
	s := schema.Schema{
		{Name: "a", Type: schema.Int},
		{Name: "b", Type: schema.Str, Nullable: true},
		{Name: "c", Type: schema.Float, Nullable: true},
	}
	values, err := coerceRecord(s, map[string]int{"c": 0, "a": 1}, []string{"1.25", "3"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(3), nil, 1.25}, values)
}
