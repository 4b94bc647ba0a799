package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/torosent/protoduel/internal/metrics"
)

const ruleWidth = 80

var notes = []string{
	"Test conducted on localhost; production results may vary",
	"gRPC via Envoy proxy may add overhead in browser environments",
	"Consider testing under network latency for realistic comparison",
}

// RenderConsole writes the human-readable report.
func RenderConsole(w io.Writer, r Report) error {
	cw := &consoleWriter{w: w}
	heavy := strings.Repeat("=", ruleWidth)

	cw.line(heavy)
	cw.line("PARALLEL PERFORMANCE TEST RESULTS")
	cw.line(heavy)
	cw.line("Test Configuration:")
	cw.printf("  - Run ID: %s\n", r.Metadata.RunID)
	cw.printf("  - Requests per Protocol: %d\n", r.Metadata.Requests)
	if r.Metadata.IDsFile != "" {
		cw.printf("  - User IDs File: %s\n", r.Metadata.IDsFile)
	} else {
		cw.printf("  - User ID Range: %s\n", r.Metadata.IDRange)
	}
	cw.printf("  - REST Server: %s\n", r.Metadata.RESTURL)
	cw.printf("  - gRPC Server: %s\n", r.Metadata.GRPCURL)
	cw.printf("  - Workers: %d\n", r.Metadata.Workers)
	cw.printf("  - Timeout: %s\n", r.Metadata.Timeout)
	cw.printf("  - Test Time: %s UTC\n", r.Metadata.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	cw.line("")

	for _, s := range []metrics.Summary{r.REST, r.GRPC} {
		cw.line(heavy)
		cw.printf("%s RESULTS\n", s.Protocol)
		cw.line(heavy)
		writeSummary(cw, s)
		cw.line("")
	}

	cw.line(heavy)
	cw.line("COMPARISON & ANALYSIS")
	cw.line(heavy)
	c := r.Comparison
	cw.printf("%-25s %-16s %-16s %-10s %s\n", "Metric", c.ProtocolA, c.ProtocolB, "Winner", "Difference")
	cw.line(strings.Repeat("-", ruleWidth))
	for _, row := range c.Rows {
		cw.printf("%-25s %-16s %-16s %-10s %s\n",
			row.Metric,
			fmt.Sprintf("%.2f %s", row.A, row.Unit),
			fmt.Sprintf("%.2f %s", row.B, row.Unit),
			row.Winner,
			describeDiff(row),
		)
	}
	if c.LatencyPValue != nil {
		cw.printf("%-25s p=%.4f\n", "Latency Mann-Whitney U", *c.LatencyPValue)
	}
	cw.line("")

	cw.line("CONCLUSION:")
	for _, s := range r.Conclusions {
		cw.printf("  - %s\n", s)
	}
	cw.line("")
	cw.line("NOTES:")
	for _, n := range notes {
		cw.printf("  - %s\n", n)
	}
	return cw.err
}

func writeSummary(cw *consoleWriter, s metrics.Summary) {
	cw.printf("Success Rate:         %.1f%% (%d/%d requests)\n", s.SuccessRate, s.Successful, s.Total)
	cw.printf("Average Response:     %.2f ms\n", s.MeanLatencyMs)
	cw.printf("Median Response:      %.2f ms\n", s.MedianLatencyMs)
	cw.printf("P95 Response:         %.2f ms\n", s.P95LatencyMs)
	cw.printf("P99 Response:         %.2f ms\n", s.P99LatencyMs)
	cw.printf("Min Response:         %.2f ms\n", s.MinLatencyMs)
	cw.printf("Max Response:         %.2f ms\n", s.MaxLatencyMs)
	cw.printf("Std Deviation:        %.2f ms\n", s.StdDevLatencyMs)
	cw.line("")
	cw.printf("Avg Payload Size:     %.0f bytes\n", s.MeanPayloadBytes)
	cw.printf("Total Transferred:    %s bytes\n", groupThousands(s.TotalBytes))
	cw.printf("Throughput:           %.1f req/s\n", s.Throughput)
	cw.printf("Transfer Rate:        %.1f KB/s\n", s.DataTransferRate/1024)
	cw.printf("Network Efficiency:   %.2f bytes/ms\n", s.NetworkEfficiency)
	cw.printf("Total Duration:       %.2f s\n", s.TotalDurationSeconds)
	if len(s.Errors) == 0 {
		return
	}
	cw.line("")
	cw.printf("Failed Requests:      %d\n", s.Failed)
	cw.line("Errors:")
	for _, b := range metrics.FlattenErrors(s.Errors) {
		cw.printf("  - %s: %d\n", b.Kind, b.Count)
	}
}

func describeDiff(row Row) string {
	if row.Winner == Tie {
		return "0%"
	}
	if row.LowerIsBetter {
		if row.Unit == "ms" {
			return fmt.Sprintf("+%.1f%% faster", row.DiffPct)
		}
		return fmt.Sprintf("-%.1f%% smaller", row.DiffPct)
	}
	return fmt.Sprintf("+%.1f%% higher", row.DiffPct)
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// consoleWriter remembers the first write error so the render body stays flat.
type consoleWriter struct {
	w   io.Writer
	err error
}

func (c *consoleWriter) printf(format string, args ...any) {
	if c.err != nil {
		return
	}
	_, c.err = fmt.Fprintf(c.w, format, args...)
}

func (c *consoleWriter) line(s string) {
	c.printf("%s\n", s)
}
