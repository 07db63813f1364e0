package schema

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// MessageError is the message type attached to every validation problem.
const MessageError = "error"

// Problem is a single validation finding.
type Problem struct {
	Text        string `json:"text"`
	MessageType string `json:"message_type"`
}

func problemf(format string, args ...interface{}) Problem {
	return Problem{Text: fmt.Sprintf(format, args...), MessageType: MessageError}
}

// NewReader returns a csv.Reader configured the way uploads are read:
// ragged rows are allowed and stray quotes are tolerated.
func NewReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// ReadHeader reads the first record and strips a leading UTF-8 BOM.
// An empty file yields an empty header.
func ReadHeader(cr *csv.Reader) ([]string, error) {
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header, nil
}

// ValidateFile opens path and validates it against s.
func ValidateFile(path string, s Schema) ([]Problem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Validate(f, s)
}

// Validate checks a CSV stream against s. The returned error is reserved for
// read failures; schema violations are reported as problems, all of them,
// with 1-based data row numbers. An empty slice means the file is acceptable.
func Validate(r io.Reader, s Schema) ([]Problem, error) {
	cr := NewReader(r)
	header, err := ReadHeader(cr)
	if err != nil {
		return nil, fmt.Errorf("schema: failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	// Required columns must be present; absent optional columns are dropped.
	var missing []string
	trimmed := make(Schema, 0, len(s))
	for _, col := range s {
		if _, ok := index[col.Name]; ok {
			trimmed = append(trimmed, col)
			continue
		}
		if !col.Nullable {
			missing = append(missing, col.Name)
		}
	}
	if len(missing) > 0 {
		return []Problem{problemf("Header Error: missing required headers (%s)", strings.Join(missing, ", "))}, nil
	}

	problems := []Problem{}
	if !sameColumns(header, trimmed) {
		problems = append(problems, problemf("Header Error: bad header"))
	}

	checks := make([]valueCheck, len(trimmed))
	for i, col := range trimmed {
		checks[i] = newValueCheck(col, index[col.Name])
	}

	row := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("schema: failed to read row %d: %w", row+1, err)
		}
		row++

		if len(rec) != len(header) {
			problems = append(problems, problemf("Record Length Error (row %d): length %d", row, len(rec)))
		}
		for _, check := range checks {
			if check.index >= len(rec) {
				continue
			}
			if !check.accepts(rec[check.index]) {
				problems = append(problems, problemf("Value Error (row %d): %s", row, check.message))
			}
		}
	}

	return problems, nil
}

type valueCheck struct {
	column  Column
	index   int
	message string
}

func newValueCheck(col Column, index int) valueCheck {
	nullability := "nonnull"
	if col.Nullable {
		nullability = "nullable"
	}
	return valueCheck{
		column:  col,
		index:   index,
		message: fmt.Sprintf("%s column expects %s %ss", col.Name, nullability, col.Type),
	}
}

func (c valueCheck) accepts(v string) bool {
	if v == "" {
		return c.column.Nullable
	}
	_, err := c.column.Type.Parse(v)
	return err == nil
}

// sameColumns reports whether header and s name the same set of columns.
func sameColumns(header []string, s Schema) bool {
	if len(header) != len(s) {
		return false
	}
	want := make(map[string]bool, len(s))
	for _, c := range s {
		want[c.Name] = true
	}
	for _, h := range header {
		if !want[h] {
			return false
		}
		delete(want, h)
	}
	return len(want) == 0
}
