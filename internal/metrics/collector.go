package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector keeps a live, approximate view of the batch in flight for progress
// displays. It is fed only from the executor's collecting goroutine and read
// by display goroutines; the exact figures come from Summarize.
type Collector struct {
	mu        sync.Mutex
	hist      *hdrhistogram.Histogram
	protocol  string
	expected  int
	successes int64
	failures  int64
	sumMs     float64
	errors    map[string]int
	start     time.Time
}

// Snapshot is a point-in-time copy of a Collector.
type Snapshot struct {
	Protocol       string
	Expected       int
	Completed      int64
	Successes      int64
	Failures       int64
	Elapsed        time.Duration
	RequestsPerSec float64
	MeanLatencyMs  float64
	P50LatencyMs   float64
	P90LatencyMs   float64
	P99LatencyMs   float64
	Errors         map[string]int
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &Collector{
		hist:   hdrhistogram.New(1, 60_000_000, 3),
		errors: make(map[string]int),
		start:  time.Now(),
	}
}

// Reset clears the collector for a new batch of expected requests.
func (c *Collector) Reset(protocol string, expected int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hist.Reset()
	c.protocol = protocol
	c.expected = expected
	c.successes = 0
	c.failures = 0
	c.sumMs = 0
	c.errors = make(map[string]int)
	c.start = time.Now()
}

// Observe records one completed outcome.
func (c *Collector) Observe(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !o.Success {
		c.failures++
		c.errors[o.ErrorKind]++
		return
	}
	c.successes++
	c.sumMs += o.LatencyMs

	us := int64(o.LatencyMs * 1000)
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	// RecordValue only fails outside the trackable range, which us was clamped to.
	_ = c.hist.RecordValue(us)
}

// Snapshot returns the current live statistics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.start)
	snap := Snapshot{
		Protocol:  c.protocol,
		Expected:  c.expected,
		Completed: c.successes + c.failures,
		Successes: c.successes,
		Failures:  c.failures,
		Elapsed:   elapsed,
		Errors:    make(map[string]int, len(c.errors)),
	}
	for k, v := range c.errors {
		snap.Errors[k] = v
	}
	if elapsed > 0 {
		snap.RequestsPerSec = float64(snap.Completed) / elapsed.Seconds()
	}
	if c.successes > 0 {
		snap.MeanLatencyMs = c.sumMs / float64(c.successes)
	}
	if c.hist.TotalCount() > 0 {
		snap.P50LatencyMs = float64(c.hist.ValueAtQuantile(50)) / 1000
		snap.P90LatencyMs = float64(c.hist.ValueAtQuantile(90)) / 1000
		snap.P99LatencyMs = float64(c.hist.ValueAtQuantile(99)) / 1000
	}
	return snap
}

// Percent returns the completed share of the expected requests.
func (s Snapshot) Percent() float64 {
	if s.Expected <= 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Expected) * 100
}
