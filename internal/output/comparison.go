package output

import (
	"math"

	"github.com/aclements/go-moremath/stats"

	"github.com/torosent/protoduel/internal/metrics"
)

// Tie is the winner label when neither protocol is better.
const Tie = "TIE"

// Row compares one metric across both protocols.
type Row struct {
	Metric        string  `json:"metric" yaml:"metric"`
	Unit          string  `json:"unit" yaml:"unit"`
	A             float64 `json:"a" yaml:"a"`
	B             float64 `json:"b" yaml:"b"`
	LowerIsBetter bool    `json:"lower_is_better" yaml:"lower_is_better"`
	Winner        string  `json:"winner" yaml:"winner"`
	DiffPct       float64 `json:"difference_pct" yaml:"difference_pct"`

	key      string
	csvLabel string
}

// Comparison is the head-to-head model every renderer reads from.
type Comparison struct {
	ProtocolA string `json:"protocol_a" yaml:"protocol_a"`
	ProtocolB string `json:"protocol_b" yaml:"protocol_b"`
	Rows      []Row  `json:"metrics" yaml:"metrics"`

	// LatencyPValue is the two-sided Mann-Whitney U p-value over successful
	// latencies, nil when either sample is too small.
	LatencyPValue *float64 `json:"latency_p_value,omitempty" yaml:"latency_p_value,omitempty"`
}

type metricDef struct {
	key      string
	name     string
	unit     string
	csvLabel string
	lower    bool
	value    func(metrics.Summary) float64
}

var comparedMetrics = []metricDef{
	{"avg_response_time", "Avg Response Time", "ms", "Avg Response Time (ms)", true, func(s metrics.Summary) float64 { return s.MeanLatencyMs }},
	{"median_response_time", "Median Response Time", "ms", "Median Response Time (ms)", true, func(s metrics.Summary) float64 { return s.MedianLatencyMs }},
	{"p95_response_time", "P95 Response Time", "ms", "P95 Response Time (ms)", true, func(s metrics.Summary) float64 { return s.P95LatencyMs }},
	{"p99_response_time", "P99 Response Time", "ms", "P99 Response Time (ms)", true, func(s metrics.Summary) float64 { return s.P99LatencyMs }},
	{"avg_payload_size", "Avg Payload Size", "bytes", "Avg Payload Size (bytes)", true, func(s metrics.Summary) float64 { return s.MeanPayloadBytes }},
	{"success_rate", "Success Rate", "%", "Success Rate %", false, func(s metrics.Summary) float64 { return s.SuccessRate }},
	{"throughput", "Throughput", "req/s", "Throughput (req/s)", false, func(s metrics.Summary) float64 { return s.Throughput }},
	{"network_efficiency", "Network Efficiency", "b/ms", "Network Efficiency (bytes/ms)", false, func(s metrics.Summary) float64 { return s.NetworkEfficiency }},
}

// Compare builds the comparison of a against b.
func Compare(a, b metrics.Summary) Comparison {
	c := Comparison{
		ProtocolA: a.Protocol,
		ProtocolB: b.Protocol,
		Rows:      make([]Row, 0, len(comparedMetrics)),
	}
	for _, m := range comparedMetrics {
		row := Row{
			Metric:        m.name,
			Unit:          m.unit,
			A:             m.value(a),
			B:             m.value(b),
			LowerIsBetter: m.lower,
			key:           m.key,
			csvLabel:      m.csvLabel,
		}
		row.Winner, row.DiffPct = decide(a.Protocol, b.Protocol, row.A, row.B, m.lower)
		c.Rows = append(c.Rows, row)
	}
	if p, ok := latencyPValue(a.Latencies(), b.Latencies()); ok {
		c.LatencyPValue = &p
	}
	return c
}

// Row returns the row for a metric name.
func (c Comparison) Row(metric string) (Row, bool) {
	for _, r := range c.Rows {
		if r.Metric == metric {
			return r, true
		}
	}
	return Row{}, false
}

// Winners maps each metric key to its winning protocol.
func (c Comparison) Winners() map[string]string {
	out := make(map[string]string, len(c.Rows))
	for _, r := range c.Rows {
		out[r.key] = r.Winner
	}
	return out
}

// decide applies the winner policy: equal values tie at 0%, otherwise the
// better value wins by |better-worse|/worse*100, or 0% when worse is zero.
func decide(nameA, nameB string, a, b float64, lowerIsBetter bool) (string, float64) {
	if a == b {
		return Tie, 0
	}
	aWins := a < b
	if !lowerIsBetter {
		aWins = a > b
	}
	winner, better, worse := nameB, b, a
	if aWins {
		winner, better, worse = nameA, a, b
	}
	if worse == 0 {
		return winner, 0
	}
	return winner, math.Abs(better-worse) / worse * 100
}

func latencyPValue(a, b []float64) (float64, bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}
	res, err := stats.MannWhitneyUTest(a, b, stats.LocationDiffers)
	if err != nil {
		return 0, false
	}
	return res.P, true
}
