// Package feeder reads identifier lists from files so a run can replay a
// fixed set of entity keys instead of sampling them at random.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// IDField is the column (CSV) or object key (JSON) holding an identifier.
const IDField = "id"

// Record is one row of an identifier file.
type Record map[string]string

// Feeder hands out records in file order. Implementations are safe for
// concurrent use.
type Feeder interface {
	Next(ctx context.Context) (Record, error)
	Close() error
	Len() int
}

// ErrExhausted is returned by Next once every record has been handed out.
var ErrExhausted = errors.New("feeder exhausted: no more records available")

// Open picks a feeder from the file extension: .json is read as JSON,
// everything else as CSV.
func Open(path string) (Feeder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return NewJSONFeeder(path)
	default:
		return NewCSVFeeder(path)
	}
}

// IDs drains f and parses the IDField of every record as a positive integer.
func IDs(ctx context.Context, f Feeder) ([]int, error) {
	ids := make([]int, 0, f.Len())
	for {
		rec, err := f.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			return nil, err
		}
		raw, ok := rec[IDField]
		if !ok {
			return nil, fmt.Errorf("record %d: missing %q field", len(ids)+1, IDField)
		}
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || id < 1 {
			return nil, fmt.Errorf("record %d: invalid id %q", len(ids)+1, raw)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("identifier file holds no ids")
	}
	return ids, nil
}

// LoadIDs opens path and returns its identifiers in file order.
func LoadIDs(ctx context.Context, path string) ([]int, error) {
	f, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("ids file %s: %w", path, err)
	}
	defer f.Close()

	ids, err := IDs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ids file %s: %w", path, err)
	}
	return ids, nil
}

// cursor is the shared sequential read position used by both feeders.
type cursor struct {
	records []Record
	index   int
}

func (c *cursor) next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.index >= len(c.records) {
		return nil, ErrExhausted
	}
	rec := c.records[c.index]
	c.index++
	return rec, nil
}
