package feeder

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"
)

// CSVFeeder reads records from a CSV file whose first row names the columns.
// A file without an "id" header is read as a single column of bare ids.
type CSVFeeder struct {
	mu  sync.Mutex
	cur cursor
}

func NewCSVFeeder(path string) (*CSVFeeder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	header := rows[0]
	data := rows[1:]
	if !hasColumn(header, IDField) {
		if len(header) != 1 {
			return nil, fmt.Errorf("CSV header has no %q column", IDField)
		}
		header = []string{IDField}
		data = rows
	}

	records := make([]Record, 0, len(data))
	for i, row := range data {
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(header))
		}
		rec := make(Record, len(header))
		for j, field := range header {
			rec[strings.ToLower(strings.TrimSpace(field))] = row[j]
		}
		records = append(records, rec)
	}

	return &CSVFeeder{cur: cursor{records: records}}, nil
}

func (f *CSVFeeder) Next(ctx context.Context) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur.next(ctx)
}

func (f *CSVFeeder) Close() error { return nil }

func (f *CSVFeeder) Len() int { return len(f.cur.records) }

func hasColumn(header []string, name string) bool {
	for _, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return true
		}
	}
	return false
}
