// Package metrics holds the per-request outcome record and the statistics
// computed over a batch of them.
//
// # Outcomes
//
// Every fetch issued by a driver produces exactly one [Outcome], built with
// [Succeeded] or [Failed]:
//
//	o := metrics.Succeeded(id, latency, len(body))
//	o := metrics.Failed(id, latency, metrics.KindTimeout, err.Error())
//
// # Summaries
//
// [Summarize] reduces an unordered batch of outcomes plus the batch wall-clock
// duration into a [Summary]:
//
//	summary := metrics.Summarize("REST", result.Outcomes, result.Duration)
//
// Latency statistics cover successful outcomes only. Percentiles use the
// nearest-rank index sorted[floor(p*n)] with no interpolation, so p95 of the
// latencies 1..100 is 96. Every ratio whose denominator is zero is reported
// as 0.
//
// # Live progress
//
// [Collector] keeps an HdrHistogram-backed approximation of the batch in
// flight for progress lines and the dashboard. It is fed by the executor's
// collecting goroutine, never by workers.
package metrics
