package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/torosent/protoduel/internal/metrics"
)

// Supported report formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatYAML    = "yaml"
)

// Formats lists every accepted value of --output.
var Formats = []string{FormatConsole, FormatJSON, FormatCSV, FormatYAML}

// ErrUnknownFormat is returned by Render for an unsupported format.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat normalizes a user supplied format name.
func ParseFormat(s string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(s))
	if f == "yml" {
		f = FormatYAML
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, s, strings.Join(Formats, ", "))
}

// Render writes r in the given format.
func Render(w io.Writer, format string, r Report) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case FormatJSON:
		return RenderJSON(w, r)
	case FormatCSV:
		return RenderCSV(w, r)
	case FormatYAML:
		return RenderYAML(w, r)
	default:
		return RenderConsole(w, r)
	}
}

type document struct {
	TestMetadata Metadata        `json:"test_metadata" yaml:"test_metadata"`
	REST         metrics.Summary `json:"rest" yaml:"rest"`
	GRPC         metrics.Summary `json:"grpc" yaml:"grpc"`
	Comparison   comparisonDoc   `json:"comparison" yaml:"comparison"`
	Conclusions  []string        `json:"conclusions" yaml:"conclusions"`
}

type comparisonDoc struct {
	AvgResponseTimeDiffPct float64           `json:"avg_response_time_diff_pct" yaml:"avg_response_time_diff_pct"`
	AvgPayloadSizeDiffPct  float64           `json:"avg_payload_size_diff_pct" yaml:"avg_payload_size_diff_pct"`
	ThroughputDiffPct      float64           `json:"throughput_diff_pct" yaml:"throughput_diff_pct"`
	Winner                 map[string]string `json:"winner" yaml:"winner"`
	Metrics                []Row             `json:"metrics" yaml:"metrics"`
	LatencyPValue          *float64          `json:"latency_p_value,omitempty" yaml:"latency_p_value,omitempty"`
}

func newDocument(r Report) document {
	c := r.Comparison
	diff := func(metric string) float64 {
		row, _ := c.Row(metric)
		return row.DiffPct
	}
	return document{
		TestMetadata: r.Metadata,
		REST:         r.REST,
		GRPC:         r.GRPC,
		Comparison: comparisonDoc{
			AvgResponseTimeDiffPct: diff("Avg Response Time"),
			AvgPayloadSizeDiffPct:  diff("Avg Payload Size"),
			ThroughputDiffPct:      diff("Throughput"),
			Winner:                 c.Winners(),
			Metrics:                c.Rows,
			LatencyPValue:          c.LatencyPValue,
		},
		Conclusions: r.Conclusions,
	}
}

// RenderJSON writes the full metrics dump for both protocols plus the
// comparison block.
func RenderJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newDocument(r))
}

// RenderYAML writes the same document as RenderJSON in YAML.
func RenderYAML(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(r)); err != nil {
		return err
	}
	return enc.Close()
}

// RenderCSV writes one row per metric. Count rows carry "-" for winner and
// difference.
func RenderCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	c := r.Comparison

	countRow := func(label string, a, b int64) []string {
		return []string{label, strconv.FormatInt(a, 10), strconv.FormatInt(b, 10), "-", "-"}
	}
	metricRow := func(metric string) []string {
		row, _ := c.Row(metric)
		return []string{
			row.csvLabel,
			strconv.FormatFloat(row.A, 'f', 2, 64),
			strconv.FormatFloat(row.B, 'f', 2, 64),
			row.Winner,
			strconv.FormatFloat(row.DiffPct, 'f', 2, 64),
		}
	}

	records := [][]string{
		{"Metric", c.ProtocolA, c.ProtocolB, "Winner", "Difference_Pct"},
		countRow("Total Requests", int64(r.REST.Total), int64(r.GRPC.Total)),
		countRow("Successful Requests", int64(r.REST.Successful), int64(r.GRPC.Successful)),
		metricRow("Success Rate"),
		metricRow("Avg Response Time"),
		metricRow("Median Response Time"),
		metricRow("P95 Response Time"),
		metricRow("P99 Response Time"),
		metricRow("Avg Payload Size"),
		countRow("Total Bytes Transferred", r.REST.TotalBytes, r.GRPC.TotalBytes),
		metricRow("Throughput"),
		metricRow("Network Efficiency"),
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
