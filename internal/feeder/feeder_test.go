package feeder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestCSVFeederReadsInOrder(t *testing.T) {
	path := writeFile(t, "users.csv", "id,name\n3,Charlie\n1,Alice\n2,Bob\n")

	feeder, err := NewCSVFeeder(path)
	if err != nil {
		t.Fatalf("NewCSVFeeder() error = %v", err)
	}
	defer feeder.Close()

	if feeder.Len() != 3 {
		t.Errorf("Len() = %d, want 3", feeder.Len())
	}

	ctx := context.Background()
	for _, want := range []string{"3", "1", "2"} {
		rec, err := feeder.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if rec["id"] != want {
			t.Errorf("id = %q, want %q", rec["id"], want)
		}
	}
	if _, err := feeder.Next(ctx); !errors.Is(err, ErrExhausted) {
		t.Errorf("Next() after last record = %v, want ErrExhausted", err)
	}
}

func TestCSVFeederHeaderless(t *testing.T) {
	path := writeFile(t, "ids.csv", "7\n8\n\n9\n")
	ids, err := LoadIDs(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadIDs() error = %v", err)
	}
	if fmt.Sprint(ids) != "[7 8 9]" {
		t.Errorf("ids = %v, want [7 8 9]", ids)
	}
}

func TestJSONFeederShapes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "bare numbers", content: `[4, 5, 6]`, want: "[4 5 6]"},
		{name: "objects", content: `[{"id": 10, "name": "a"}, {"ID": "11"}]`, want: "[10 11]"},
		{name: "numeric strings", content: `["12", "13"]`, want: "[12 13]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "ids.json", tt.content)
			ids, err := LoadIDs(context.Background(), path)
			if err != nil {
				t.Fatalf("LoadIDs() error = %v", err)
			}
			if got := fmt.Sprint(ids); got != tt.want {
				t.Errorf("ids = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLoadIDsErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{name: "empty csv", file: "a.csv", content: "", wantErr: "empty"},
		{name: "csv without id column", file: "a.csv", content: "user,name\n1,a\n", wantErr: `no "id" column`},
		{name: "csv header only", file: "a.csv", content: "id\n", wantErr: "no ids"},
		{name: "zero id", file: "a.csv", content: "id\n0\n", wantErr: "invalid id"},
		{name: "non numeric id", file: "a.csv", content: "id\nabc\n", wantErr: "invalid id"},
		{name: "json object", file: "a.json", content: `{"id": 1}`, wantErr: "expected an array"},
		{name: "json empty array", file: "a.json", content: `[]`, wantErr: "empty array"},
		{name: "json invalid", file: "a.json", content: `[1,`, wantErr: "invalid document"},
		{name: "json nested array", file: "a.json", content: `[[1]]`, wantErr: "unsupported value"},
		{name: "json object without id", file: "a.json", content: `[{"name": "x"}]`, wantErr: "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := LoadIDs(context.Background(), path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadIDsMissingFile(t *testing.T) {
	_, err := LoadIDs(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v, want os.ErrNotExist", err)
	}
}

func TestFeederCancelledContext(t *testing.T) {
	path := writeFile(t, "ids.csv", "id\n1\n")
	feeder, err := NewCSVFeeder(path)
	if err != nil {
		t.Fatalf("NewCSVFeeder() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := feeder.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() = %v, want context.Canceled", err)
	}
}

func TestFeederConcurrentAccess(t *testing.T) {
	var rows []string
	rows = append(rows, "id,value")
	for i := 1; i <= 100; i++ {
		rows = append(rows, fmt.Sprintf("%d,value-%d", i, i))
	}
	path := writeFile(t, "concurrent.csv", strings.Join(rows, "\n"))

	feeder, err := NewCSVFeeder(path)
	if err != nil {
		t.Fatalf("NewCSVFeeder() error = %v", err)
	}

	ctx := context.Background()
	const numGoroutines = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			rec, err := feeder.Next(ctx)
			if err != nil {
				t.Errorf("Next() error = %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[rec["id"]] {
				t.Errorf("record %s handed out twice", rec["id"])
			}
			seen[rec["id"]] = true
		}()
	}
	wg.Wait()

	if len(seen) != numGoroutines {
		t.Errorf("got %d distinct records, want %d", len(seen), numGoroutines)
	}
}
