package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/protoduel/internal/metrics"
)

// ProgressReporter redraws a one-line status of the batch in flight.
type ProgressReporter struct {
	collector *metrics.Collector
	interval  time.Duration
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
}

// NewProgressReporter creates a reporter that redraws at the given interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		collector: collector,
		interval:  interval,
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins redrawing in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts redrawing and prints the final line. Stop on a reporter that
// was never started is a no-op.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 2) {
		close(p.done)
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fmt.Fprint(p.writer, "\r"+ProgressLine(p.collector.Snapshot()))
		case <-p.done:
			fmt.Fprintln(p.writer, "\r"+ProgressLine(p.collector.Snapshot()))
			return
		}
	}
}

// ProgressLine formats a snapshot for a single terminal line.
func ProgressLine(s metrics.Snapshot) string {
	line := fmt.Sprintf("%s: %d/%d (%.0f%%) | Failures: %d | RPS: %.1f | P50 %.1fms | P99 %.1fms",
		s.Protocol, s.Completed, s.Expected, s.Percent(), s.Failures, s.RequestsPerSec, s.P50LatencyMs, s.P99LatencyMs)
	if top := metrics.TopErrors(s.Errors, 1); len(top) == 1 {
		line += fmt.Sprintf(" | Top Error: %s (%d)", top[0].Kind, top[0].Count)
	}
	return line
}
