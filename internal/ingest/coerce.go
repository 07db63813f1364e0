package ingest

import (
	"math"

	"golang.org/x/text/unicode/norm"

	"github.com/qbench/qbench/internal/schema"
)

// naTokens are the cell values read as missing, in addition to the empty
// string. They follow the defaults of common dataframe CSV readers.
var naTokens = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true,
	"-1.#IND": true, "-1.#QNAN": true, "-NaN": true, "-nan": true,
	"1.#IND": true, "1.#QNAN": true, "<NA>": true, "N/A": true,
	"NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

// coerce converts a raw cell to its staged value. Missing cells become nil
// and text is NFC-normalized so that equal names compare equal.
func coerce(col schema.Column, raw string) (interface{}, error) {
	if naTokens[raw] {
		return nil, nil
	}
	if col.Type == schema.Str {
		return norm.NFC.String(raw), nil
	}
	v, err := col.Type.Parse(raw)
	if err != nil {
		return nil, err
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return nil, nil
	}
	return v, nil
}

// coerceRecord maps a CSV record onto s. Columns absent from the header,
// or beyond the end of a short record, are nil.
func coerceRecord(s schema.Schema, index map[string]int, rec []string) ([]interface{}, error) {
	values := make([]interface{}, len(s))
	for i, col := range s {
		pos, ok := index[col.Name]
		if !ok || pos >= len(rec) {
			continue
		}
		v, err := coerce(col, rec[pos])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
