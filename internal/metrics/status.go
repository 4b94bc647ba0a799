package metrics

import "sort"

// ErrorBucket is the number of failures recorded under one error kind.
type ErrorBucket struct {
	Kind  string `json:"kind" yaml:"kind"`
	Count int    `json:"count" yaml:"count"`
}

// FlattenErrors converts an error histogram into rows sorted by kind.
func FlattenErrors(errors map[string]int) []ErrorBucket {
	if len(errors) == 0 {
		return nil
	}
	rows := make([]ErrorBucket, 0, len(errors))
	for kind, count := range errors {
		rows = append(rows, ErrorBucket{Kind: kind, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Kind < rows[j].Kind
	})
	return rows
}

// TopErrors returns at most limit rows ordered by descending count, then kind.
func TopErrors(errors map[string]int, limit int) []ErrorBucket {
	rows := FlattenErrors(errors)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Count > rows[j].Count
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
