// Package dashboard renders a live terminal view of a benchmark run.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/protoduel/internal/metrics"
)

const historyLen = 100

// RunConfig holds the run parameters shown in the header.
type RunConfig struct {
	RESTURL  string
	GRPCURL  string
	Requests int
	Workers  int
	Timeout  time.Duration
	IDSource string
}

// Dashboard polls a metrics.Collector and draws the batch in flight next to
// the summaries of batches that already finished.
type Dashboard struct {
	collector    *metrics.Collector
	cfg          RunConfig
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex
	stopOnce     sync.Once

	grid           *ui.Grid
	headerPara     *widgets.Paragraph
	progressGauge  *widgets.Gauge
	metricsPara    *widgets.Paragraph
	latencySparkle *widgets.SparklineGroup
	errorList      *widgets.List
	finishedPara   *widgets.Paragraph

	latencyHistory []float64
	finished       []metrics.Summary
	startTime      time.Time
}

// New initialises the terminal. shutdownFunc is called when the operator
// presses q or Ctrl-C.
func New(collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:      collector,
		cfg:            cfg,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, historyLen),
		startTime:      time.Now(),
	}
	d.initWidgets()
	d.setupGrid()
	return d, nil
}

func (d *Dashboard) initWidgets() {
	d.headerPara = widgets.NewParagraph()
	d.headerPara.Title = "protoduel"
	d.headerPara.Text = headerText(d.cfg, 0)
	d.headerPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Batch Progress"
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Live Metrics"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan

	sparkline := widgets.NewSparkline()
	sparkline.Title = "P50 latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}
	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = formatErrorRows(nil)
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.finishedPara = widgets.NewParagraph()
	d.finishedPara.Title = "Finished Batches"
	d.finishedPara.Text = finishedText(nil)
	d.finishedPara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.headerPara),
		),
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.progressGauge),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.4, d.metricsPara),
			ui.NewCol(0.6, d.latencySparkle),
		),
		ui.NewRow(0.42,
			ui.NewCol(0.4, d.errorList),
			ui.NewCol(0.6, d.finishedPara),
		),
	)
}

// Start begins the update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop ends the update loop and restores the terminal. Later calls are no-ops.
func (d *Dashboard) Stop() {
	d.stopOnce.Do(func() {
		d.cancel()
		d.wg.Wait()
		ui.Close()
		// Give terminal time to restore
		time.Sleep(100 * time.Millisecond)
	})
}

// Finish records a completed batch and clears the sparkline for the next one.
func (d *Dashboard) Finish(s metrics.Summary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finished = append(d.finished, s)
	d.finishedPara.Text = finishedText(d.finished)
	d.latencyHistory = d.latencyHistory[:0]
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}
			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

func (d *Dashboard) update() {
	snap := d.collector.Snapshot()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.headerPara.Text = headerText(d.cfg, time.Since(d.startTime))

	d.progressGauge.Title = fmt.Sprintf("%s Batch Progress", snap.Protocol)
	d.progressGauge.Percent = clampPercent(snap.Percent())
	d.progressGauge.Label = fmt.Sprintf("%d/%d", snap.Completed, snap.Expected)

	d.metricsPara.Text = metricsText(snap)

	if snap.Successes > 0 {
		d.latencyHistory = append(d.latencyHistory, snap.P50LatencyMs)
		if len(d.latencyHistory) > historyLen {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf("%s Latency | P50 %.2fms | P99 %.2fms",
			snap.Protocol, snap.P50LatencyMs, snap.P99LatencyMs)
	}

	d.errorList.Rows = formatErrorRows(snap.Errors)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

func clampPercent(p float64) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return int(p)
}

func headerText(cfg RunConfig, elapsed time.Duration) string {
	var parts []string
	if cfg.Requests > 0 {
		parts = append(parts, fmt.Sprintf("Requests: %d per protocol", cfg.Requests))
	}
	if cfg.Workers > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", cfg.Workers))
	}
	if cfg.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", cfg.Timeout))
	}
	if cfg.IDSource != "" {
		parts = append(parts, fmt.Sprintf("IDs: %s", cfg.IDSource))
	}
	return fmt.Sprintf("REST: %s | gRPC: %s\n%s\nElapsed: %s | press q to abort",
		cfg.RESTURL, cfg.GRPCURL, strings.Join(parts, " | "), elapsed.Round(time.Second))
}

func metricsText(s metrics.Snapshot) string {
	return fmt.Sprintf(
		"Completed:   %d\nSuccessful:  %d\nFailed:      %d\nRPS:         %.1f\nMean:        %.2fms\nP50/P90/P99: %.2f / %.2f / %.2f ms",
		s.Completed,
		s.Successes,
		s.Failures,
		s.RequestsPerSec,
		s.MeanLatencyMs,
		s.P50LatencyMs,
		s.P90LatencyMs,
		s.P99LatencyMs,
	)
}

func formatErrorRows(errs map[string]int) []string {
	rows := metrics.TopErrors(errs, 10)
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", row.Kind, row.Count))
	}
	return formatted
}

func finishedText(done []metrics.Summary) string {
	if len(done) == 0 {
		return "[No batch finished yet](fg:green)"
	}
	lines := make([]string, 0, len(done)*2)
	for _, s := range done {
		lines = append(lines,
			fmt.Sprintf("[%s](fg:cyan,mod:bold) %.1f%% ok (%d/%d) in %.2fs",
				s.Protocol, s.SuccessRate, s.Successful, s.Total, s.TotalDurationSeconds),
			fmt.Sprintf("  avg %.2fms | p95 %.2fms | p99 %.2fms | %.0f B/resp | %.1f req/s",
				s.MeanLatencyMs, s.P95LatencyMs, s.P99LatencyMs, s.MeanPayloadBytes, s.Throughput),
		)
	}
	return strings.Join(lines, "\n")
}
