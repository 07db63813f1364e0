package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// WriteCSV writes the result set with a header row. NULL cells are empty.
func (rs *ResultSet) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(rs.Columns); err != nil {
		return err
	}
	record := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatValue(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case float64:
		return fmt.Sprintf("%g", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
