package runner_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"code.cloudfoundry.org/lager/v3/lagertest"

	"github.com/torosent/protoduel/internal/metrics"
	"github.com/torosent/protoduel/internal/runner"
)

// fakeDriver answers every id with a fixed outcome after an optional delay.
type fakeDriver struct {
	delay    time.Duration
	panicOn  map[int]bool
	clock    *fakeclock.FakeClock
	step     time.Duration
	inFlight int32
	peak     int32
	calls    int32
	closed   int32
}

func (f *fakeDriver) Protocol() string { return "FAKE" }

func (f *fakeDriver) Fetch(ctx context.Context, id int) metrics.Outcome {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.clock != nil {
		f.clock.Increment(f.step)
	}
	if f.panicOn[id] {
		panic("driver exploded")
	}
	return metrics.Succeeded(id, 10*time.Millisecond, 64)
}

func (f *fakeDriver) Close() error {
	atomic.AddInt32(&f.closed, 1)
	return nil
}

func ids(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestRunFetchesEveryIDOnce(t *testing.T) {
	d := &fakeDriver{}
	input := []int{5, 3, 5, 9, 1, 3}
	res := runner.New(runner.Options{Workers: 3}).Run(context.Background(), input, d)

	if len(res.Outcomes) != len(input) {
		t.Fatalf("got %d outcomes, want %d", len(res.Outcomes), len(input))
	}
	got := make([]int, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		got = append(got, o.ID)
	}
	sort.Ints(got)
	want := append([]int(nil), input...)
	sort.Ints(want)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestRunRespectsWorkerBound(t *testing.T) {
	d := &fakeDriver{delay: 50 * time.Millisecond}
	res := runner.New(runner.Options{Workers: 2}).Run(context.Background(), ids(5), d)

	if len(res.Outcomes) != 5 {
		t.Fatalf("got %d outcomes, want 5", len(res.Outcomes))
	}
	// Never above the bound, and the bound is actually used.
	if peak := atomic.LoadInt32(&d.peak); peak != 2 {
		t.Fatalf("peak in-flight = %d, want 2", peak)
	}
}

func TestRunRecoversPanics(t *testing.T) {
	clk := fakeclock.NewFakeClock(time.Unix(1700000000, 0))
	d := &fakeDriver{panicOn: map[int]bool{4: true}, clock: clk, step: 25 * time.Millisecond}
	res := runner.New(runner.Options{Workers: 3, Clock: clk}).Run(context.Background(), ids(10), d)

	if len(res.Outcomes) != 10 {
		t.Fatalf("got %d outcomes, want 10", len(res.Outcomes))
	}
	var panics, successes int
	for _, o := range res.Outcomes {
		switch {
		case o.Success:
			successes++
		case o.ErrorKind == metrics.KindPanic:
			panics++
			if o.ID != 4 || !strings.Contains(o.ErrorDetail, "driver exploded") {
				t.Errorf("unexpected panic outcome %+v", o)
			}
			// The call advanced the clock by one step before faulting.
			if o.LatencyMs < 25 {
				t.Errorf("panic outcome latency = %vms, want >= 25ms", o.LatencyMs)
			}
		}
	}
	if panics != 1 || successes != 9 {
		t.Fatalf("panics=%d successes=%d, want 1 and 9", panics, successes)
	}
}

func TestRunDurationUsesClock(t *testing.T) {
	clk := fakeclock.NewFakeClock(time.Unix(1700000000, 0))
	d := &fakeDriver{clock: clk, step: 10 * time.Millisecond}
	res := runner.New(runner.Options{Workers: 4, Clock: clk}).Run(context.Background(), ids(5), d)

	if res.Duration != 50*time.Millisecond {
		t.Fatalf("Duration = %s, want 50ms", res.Duration)
	}
}

func TestRunClosesDriverOnce(t *testing.T) {
	tests := []struct {
		name string
		ids  []int
	}{
		{name: "batch", ids: ids(7)},
		{name: "empty batch", ids: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDriver{}
			runner.New(runner.Options{Workers: 2}).Run(context.Background(), tt.ids, d)
			if got := atomic.LoadInt32(&d.closed); got != 1 {
				t.Fatalf("Close called %d times, want 1", got)
			}
		})
	}
}

func TestRunObserverSeesEveryOutcome(t *testing.T) {
	var (
		mu   sync.Mutex
		seen int
	)
	collector := metrics.NewCollector()
	collector.Reset("FAKE", 12)

	obs := runner.ObserverFunc(func(o metrics.Outcome) {
		mu.Lock()
		seen++
		mu.Unlock()
		collector.Observe(o)
	})
	runner.New(runner.Options{Workers: 4, Observer: obs}).Run(context.Background(), ids(12), &fakeDriver{})

	if seen != 12 {
		t.Fatalf("observer saw %d outcomes, want 12", seen)
	}
	snap := collector.Snapshot()
	if snap.Completed != 12 || snap.Successes != 12 {
		t.Fatalf("collector snapshot = %+v", snap)
	}
}

func TestRunLogsProgress(t *testing.T) {
	logger := lagertest.NewTestLogger("runner-test")
	runner.New(runner.Options{Workers: 8, Logger: logger}).Run(context.Background(), ids(250), &fakeDriver{})

	var starting, finished, progress int
	for _, msg := range logger.LogMessages() {
		switch {
		case strings.HasSuffix(msg, "execute.starting"):
			starting++
		case strings.HasSuffix(msg, "execute.finished"):
			finished++
		case strings.HasSuffix(msg, "execute.progress"):
			progress++
		}
	}
	if starting != 1 || finished != 1 {
		t.Fatalf("starting=%d finished=%d, want 1 each", starting, finished)
	}
	// First completion, then every 100th.
	if progress != 3 {
		t.Fatalf("progress lines = %d, want 3", progress)
	}
}
