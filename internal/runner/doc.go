// Package runner executes one batch of fetches against a single driver.
//
// An [Executor] dispatches exactly one [driver.Driver.Fetch] call per
// identifier across a bounded pool of worker goroutines:
//
//	exec := runner.New(runner.Options{Workers: 100, Logger: logger})
//	res := exec.Run(ctx, ids, restDriver)
//	summary := metrics.Summarize(restDriver.Protocol(), res.Outcomes, res.Duration)
//
// Workers only send outcomes on a channel. The calling goroutine collects
// them in completion order and is the only caller of [Observer], so live
// progress collectors never see concurrent updates from this package.
//
// A panicking fetch is recovered and recorded as a PANIC failure. Drivers
// implementing io.Closer are closed once every worker has finished.
package runner
