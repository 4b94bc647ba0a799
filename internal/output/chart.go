package output

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoLatencies is returned by WriteLatencyChart when neither protocol has
// a successful request to plot.
var ErrNoLatencies = errors.New("no successful requests to chart")

// WriteLatencyChart saves a box plot of both protocols' successful latencies.
// The image format follows the file extension (png, svg, pdf, ...).
func WriteLatencyChart(path string, r Report) error {
	pl := plot.New()
	pl.Title.Text = "Response time distribution"
	pl.Y.Label.Text = "latency (ms)"

	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	pl.Add(grid)

	w := vg.Points(40)
	var names []string
	for _, s := range []struct {
		name   string
		values []float64
	}{
		{r.REST.Protocol, r.REST.Latencies()},
		{r.GRPC.Protocol, r.GRPC.Latencies()},
	} {
		if len(s.values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(w, float64(len(names)), plotter.Values(s.values))
		if err != nil {
			return fmt.Errorf("chart %s: %w", s.name, err)
		}
		pl.Add(box)
		names = append(names, fmt.Sprintf("%s (n=%d)", s.name, len(s.values)))
	}
	if len(names) == 0 {
		return ErrNoLatencies
	}
	pl.NominalX(names...)

	if err := pl.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	return nil
}
