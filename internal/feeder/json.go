package feeder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// JSONFeeder reads a JSON array whose elements are either bare ids
// (`[1, 2, 3]`) or objects carrying an "id" key.
type JSONFeeder struct {
	mu  sync.Mutex
	cur cursor
}

func NewJSONFeeder(path string) (*JSONFeeder, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("decode JSON: invalid document")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsArray() {
		return nil, fmt.Errorf("decode JSON: expected an array")
	}

	var (
		records []Record
		bad     error
	)
	doc.ForEach(func(_, value gjson.Result) bool {
		rec := make(Record)
		switch {
		case value.IsObject():
			value.ForEach(func(k, v gjson.Result) bool {
				rec[strings.ToLower(k.String())] = v.String()
				return true
			})
		case value.Type == gjson.Number || value.Type == gjson.String:
			rec[IDField] = value.String()
		default:
			bad = fmt.Errorf("element %d: unsupported value %s", len(records), value.Raw)
			return false
		}
		records = append(records, rec)
		return true
	})
	if bad != nil {
		return nil, bad
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("JSON file contains empty array")
	}

	return &JSONFeeder{cur: cursor{records: records}}, nil
}

func (f *JSONFeeder) Next(ctx context.Context) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur.next(ctx)
}

func (f *JSONFeeder) Close() error { return nil }

func (f *JSONFeeder) Len() int { return len(f.cur.records) }
