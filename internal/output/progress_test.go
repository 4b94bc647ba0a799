package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/protoduel/internal/metrics"
)

// syncBuffer guards a bytes.Buffer shared with the reporter goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressLine(t *testing.T) {
	snap := metrics.Snapshot{
		Protocol:       "REST",
		Expected:       200,
		Completed:      50,
		Successes:      45,
		Failures:       5,
		RequestsPerSec: 12.5,
		P50LatencyMs:   3.2,
		P99LatencyMs:   9.8,
		Errors:         map[string]int{"TIMEOUT": 4, "HTTP_500": 1},
	}
	line := ProgressLine(snap)
	for _, want := range []string{"REST: 50/200 (25%)", "Failures: 5", "RPS: 12.5", "P99 9.8ms", "Top Error: TIMEOUT (4)"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestProgressReporterStopWithoutStart(t *testing.T) {
	reporter := NewProgressReporter(metrics.NewCollector(), 10*time.Millisecond, nil)
	reporter.Stop()
}

func TestProgressReporterRedraws(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Reset("gRPC", 5)
	for i := 1; i <= 5; i++ {
		collector.Observe(metrics.Succeeded(i, 30*time.Millisecond, 100))
	}

	var buf syncBuffer
	reporter := NewProgressReporter(collector, 10*time.Millisecond, &buf)
	reporter.Start()
	reporter.Start()
	time.Sleep(50 * time.Millisecond)
	reporter.Stop()
	reporter.Stop()

	out := buf.String()
	if !strings.Contains(out, "gRPC: 5/5 (100%)") {
		t.Errorf("progress output %q missing completion line", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("final redraw should end the line")
	}
}
