package runner

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
	"golang.org/x/time/rate"

	"github.com/torosent/protoduel/internal/driver"
	"github.com/torosent/protoduel/internal/metrics"
)

// DefaultWorkers bounds concurrent fetches when Options.Workers is unset.
const DefaultWorkers = 100

const progressEvery = 100

// Observer receives every outcome as it is collected.
type Observer interface {
	Observe(metrics.Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(metrics.Outcome)

func (f ObserverFunc) Observe(o metrics.Outcome) { f(o) }

// Options configure an Executor.
type Options struct {
	Workers  int
	Clock    clock.Clock
	Observer Observer
	Logger   lager.Logger
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Clock == nil {
		o.Clock = clock.NewClock()
	}
	if o.Logger == nil {
		o.Logger = lager.NewLogger("runner")
	}
}

// Result is the raw output of one batch.
type Result struct {
	Outcomes []metrics.Outcome
	Duration time.Duration
}

// Executor runs batches with a fixed worker bound.
type Executor struct {
	opt Options
}

func New(opt Options) *Executor {
	opt.normalize()
	return &Executor{opt: opt}
}

// Run fetches every id once and waits for all calls to finish. Outcomes are
// returned in completion order. If d implements io.Closer it is closed after
// the last call returns.
func (e *Executor) Run(ctx context.Context, ids []int, d driver.Driver) Result {
	logger := e.opt.Logger.Session("execute", lager.Data{
		"protocol": d.Protocol(),
		"requests": len(ids),
	})
	if closer, ok := d.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("close-driver-failed", err)
			}
		}()
	}

	workers := e.opt.Workers
	if workers > len(ids) {
		workers = len(ids)
	}
	logger.Info("starting", lager.Data{"workers": workers})

	jobs := make(chan int, len(ids))
	for _, id := range ids {
		jobs <- id
	}
	close(jobs)

	results := make(chan metrics.Outcome, workers)
	start := e.opt.Clock.Now()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for id := range jobs {
				results <- e.fetch(ctx, d, id)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]metrics.Outcome, 0, len(ids))
	progress := rate.Sometimes{Every: progressEvery}
	failures := 0
	for o := range results {
		outcomes = append(outcomes, o)
		if !o.Success {
			failures++
		}
		if e.opt.Observer != nil {
			e.opt.Observer.Observe(o)
		}
		progress.Do(func() {
			logger.Debug("progress", lager.Data{
				"completed": len(outcomes),
				"total":     len(ids),
				"failures":  failures,
			})
		})
	}
	duration := e.opt.Clock.Since(start)

	logger.Info("finished", lager.Data{
		"completed": len(outcomes),
		"failures":  failures,
		"duration":  duration.String(),
	})
	return Result{Outcomes: outcomes, Duration: duration}
}

// fetch turns a panicking call into a PANIC outcome timed up to the fault.
func (e *Executor) fetch(ctx context.Context, d driver.Driver, id int) (o metrics.Outcome) {
	start := e.opt.Clock.Now()
	defer func() {
		if r := recover(); r != nil {
			o = metrics.Failed(id, e.opt.Clock.Since(start), metrics.KindPanic, fmt.Sprint(r))
		}
	}()
	return d.Fetch(ctx, id)
}
