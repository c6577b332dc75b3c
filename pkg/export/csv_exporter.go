package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is ordered tabular content for a file export. Records are positional
// and must match the column count.
type Table struct {
	Columns []string
	Records [][]string
}

// CSV renders the table as CSV bytes, column row first.
func CSV(t Table) ([]byte, error) {
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one column")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("write csv columns: %w", err)
	}
	for i, record := range t.Records {
		if len(record) != len(t.Columns) {
			return nil, fmt.Errorf("csv record %d has %d fields, want %d", i, len(record), len(t.Columns))
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
