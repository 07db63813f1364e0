package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"system", System, true},
		{"benchmarks_system", System, true},
		{"  Solver ", Solver, true},
		{"errorlog", ErrorLog, true},
		{"widgets", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Lookup(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestPublicExcludesInternal(t *testing.T) {
	for _, tbl := range Public() {
		assert.False(t, tbl.Internal, tbl.Name)
		assert.NotEqual(t, ErrorLog, tbl.Name)
		assert.NotEqual(t, UploadLog, tbl.Name)
	}
	assert.Less(t, len(Public()), len(Tables))
}

func TestForeignKeysResolve(t *testing.T) {
	for _, tbl := range Tables {
		for _, fk := range tbl.ForeignKeys() {
			_, ok := Lookup(fk.References)
			assert.True(t, ok, "%s.%s references unknown table %s", tbl.Name, fk.Name, fk.References)
			assert.Equal(t, Integer, fk.Type)
		}
	}
}

func TestTableColumns(t *testing.T) {
	tbl, ok := Lookup("manufacturer")
	require.True(t, ok)

	assert.Equal(t, "manufacturer", tbl.Short())
	assert.Equal(t, []string{"id", "name"}, tbl.ColumnNames())
	assert.True(t, tbl.HasColumn("id"))
	assert.True(t, tbl.HasColumn("name"))
	assert.False(t, tbl.HasColumn("password"))

	col, ok := tbl.Column("name")
	require.True(t, ok)
	assert.True(t, col.NotNull)
	assert.Equal(t, Text, col.Type)
}

func TestColumnNamesUnique(t *testing.T) {
	for _, tbl := range Tables {
		seen := map[string]bool{}
		for _, n := range tbl.ColumnNames() {
			assert.False(t, seen[n], "%s has duplicate column %s", tbl.Name, n)
			seen[n] = true
		}
	}
}
