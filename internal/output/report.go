package output

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/protoduel/internal/metrics"
)

// Metadata describes the run that produced a report.
type Metadata struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Requests  int       `json:"requests_per_protocol" yaml:"requests_per_protocol"`
	IDRange   string    `json:"user_id_range" yaml:"user_id_range"`
	IDsFile   string    `json:"ids_file,omitempty" yaml:"ids_file,omitempty"`
	RESTURL   string    `json:"rest_url" yaml:"rest_url"`
	GRPCURL   string    `json:"grpc_url" yaml:"grpc_url"`
	Workers   int       `json:"workers" yaml:"workers"`
	Timeout   string    `json:"timeout" yaml:"timeout"`
}

// Report is built once per run and shared by every renderer.
type Report struct {
	Metadata    Metadata
	REST        metrics.Summary
	GRPC        metrics.Summary
	Comparison  Comparison
	Conclusions []string
}

// NewReport compares rest against grpc. A zero RunID or Timestamp is filled
// in from the current time.
func NewReport(meta Metadata, rest, grpc metrics.Summary) Report {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	if meta.RunID == "" {
		meta.RunID = ulid.MustNew(ulid.Timestamp(meta.Timestamp), ulid.DefaultEntropy()).String()
	}
	cmp := Compare(rest, grpc)
	return Report{
		Metadata:    meta,
		REST:        rest,
		GRPC:        grpc,
		Comparison:  cmp,
		Conclusions: conclusions(cmp),
	}
}

func conclusions(c Comparison) []string {
	var out []string
	if row, ok := c.Row("Avg Response Time"); ok {
		if row.Winner == Tie {
			out = append(out, "Both protocols show the same average response time")
		} else {
			out = append(out, fmt.Sprintf("%s shows superior response time (+%.1f%% faster)", row.Winner, row.DiffPct))
		}
	}
	if row, ok := c.Row("Avg Payload Size"); ok {
		if row.Winner == Tie {
			out = append(out, "Both protocols return the same average payload size")
		} else {
			out = append(out, fmt.Sprintf("%s has smaller payload size (-%.1f%%)", row.Winner, row.DiffPct))
		}
	}
	if c.LatencyPValue != nil {
		verdict := "not statistically significant"
		if *c.LatencyPValue < 0.05 {
			verdict = "statistically significant"
		}
		out = append(out, fmt.Sprintf("Latency difference is %s (Mann-Whitney p=%.3g)", verdict, *c.LatencyPValue))
	}
	return out
}
