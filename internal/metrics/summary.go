package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/aclements/go-moremath/stats"
)

// Summary is the aggregate view of one protocol's batch.
type Summary struct {
	Protocol    string  `json:"protocol" yaml:"protocol"`
	Total       int     `json:"total_requests" yaml:"total_requests"`
	Successful  int     `json:"successful_requests" yaml:"successful_requests"`
	Failed      int     `json:"failed_requests" yaml:"failed_requests"`
	SuccessRate float64 `json:"success_rate" yaml:"success_rate"`

	// Latency fields cover successful requests only.
	MeanLatencyMs   float64 `json:"avg_response_time" yaml:"avg_response_time"`
	MinLatencyMs    float64 `json:"min_response_time" yaml:"min_response_time"`
	MaxLatencyMs    float64 `json:"max_response_time" yaml:"max_response_time"`
	MedianLatencyMs float64 `json:"median_response_time" yaml:"median_response_time"`
	P95LatencyMs    float64 `json:"p95_response_time" yaml:"p95_response_time"`
	P99LatencyMs    float64 `json:"p99_response_time" yaml:"p99_response_time"`
	StdDevLatencyMs float64 `json:"stddev_response_time" yaml:"stddev_response_time"`

	MeanPayloadBytes float64 `json:"avg_payload_size" yaml:"avg_payload_size"`
	TotalBytes       int64   `json:"total_bytes_transferred" yaml:"total_bytes_transferred"`

	Throughput        float64 `json:"throughput" yaml:"throughput"`
	DataTransferRate  float64 `json:"data_transfer_rate" yaml:"data_transfer_rate"`
	NetworkEfficiency float64 `json:"network_efficiency" yaml:"network_efficiency"`

	TotalDurationSeconds float64        `json:"total_duration" yaml:"total_duration"`
	Errors               map[string]int `json:"errors" yaml:"errors"`

	latencies []float64
}

// Summarize reduces a batch of outcomes into a Summary. The outcomes may be
// in any order; duration is the batch wall-clock span measured by the executor.
func Summarize(protocol string, outcomes []Outcome, duration time.Duration) Summary {
	s := Summary{
		Protocol:             protocol,
		Total:                len(outcomes),
		TotalDurationSeconds: duration.Seconds(),
		Errors:               map[string]int{},
	}
	if s.TotalDurationSeconds < 0 {
		s.TotalDurationSeconds = 0
	}

	latencies := make([]float64, 0, len(outcomes))
	payloads := make([]float64, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.Success {
			kind := o.ErrorKind
			if kind == "" {
				kind = KindUnknown
			}
			s.Errors[kind]++
			continue
		}
		latencies = append(latencies, o.LatencyMs)
		payloads = append(payloads, float64(o.PayloadBytes))
		s.TotalBytes += int64(o.PayloadBytes)
	}
	s.Successful = len(latencies)
	s.Failed = s.Total - s.Successful
	s.SuccessRate = ratio(float64(s.Successful), float64(s.Total)) * 100

	if s.Successful == 0 {
		return s
	}

	sort.Float64s(latencies)
	s.latencies = latencies

	s.MeanLatencyMs = stats.Mean(latencies)
	s.MinLatencyMs, s.MaxLatencyMs = stats.Bounds(latencies)
	s.MedianLatencyMs = Median(latencies)
	s.P95LatencyMs = Percentile(latencies, 0.95)
	s.P99LatencyMs = Percentile(latencies, 0.99)
	if s.Successful > 1 {
		s.StdDevLatencyMs = stats.StdDev(latencies)
	}

	s.MeanPayloadBytes = stats.Mean(payloads)
	s.Throughput = ratio(float64(s.Successful), s.TotalDurationSeconds)
	s.DataTransferRate = ratio(float64(s.TotalBytes), s.TotalDurationSeconds)
	s.NetworkEfficiency = ratio(s.MeanPayloadBytes, s.MeanLatencyMs)
	return s
}

// Latencies returns a copy of the sorted successful latencies in milliseconds.
func (s Summary) Latencies() []float64 {
	return append([]float64(nil), s.latencies...)
}

// Percentile returns the nearest-rank value sorted[floor(p*n)] of an ascending
// slice. The index is clamped to the last element; an empty slice yields 0.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor(p * float64(n)))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// Median returns the middle value of an ascending slice, averaging the two
// middle values when the length is even.
func Median(sorted []float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n%2 == 1:
		return sorted[n/2]
	default:
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
}

func ratio(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsNaN(num) {
		return 0
	}
	return num / den
}
