package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code.cloudfoundry.org/lager/v3"

	"github.com/torosent/protoduel/internal/config"
	"github.com/torosent/protoduel/internal/dashboard"
	"github.com/torosent/protoduel/internal/driver"
	"github.com/torosent/protoduel/internal/feeder"
	"github.com/torosent/protoduel/internal/idrange"
	"github.com/torosent/protoduel/internal/metrics"
	"github.com/torosent/protoduel/internal/output"
	"github.com/torosent/protoduel/internal/runner"
	"github.com/torosent/protoduel/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	loaded, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	cfg := *loaded
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg, stderr)

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracing-shutdown-failed", err)
		}
	}()

	rest, rpc, err := newDrivers(cfg, provider)
	if err != nil {
		return err
	}
	// The executor closes each driver after its batch. Close is idempotent, so
	// this only matters when we bail out before load.
	defer rest.Close()
	defer rpc.Close()

	if err := probeAll(ctx, rest, rpc); err != nil {
		return err
	}

	ids, err := buildIDs(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("workload", lager.Data{"requests": len(ids), "source": idSource(cfg)})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collector := metrics.NewCollector()
	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboard.RunConfig{
			RESTURL:  rest.Endpoint(),
			GRPCURL:  rpc.Endpoint(),
			Requests: len(ids),
			Workers:  cfg.Workers,
			Timeout:  cfg.Timeout,
			IDSource: idSource(cfg),
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
		defer dash.Stop()
	}

	b := &bench{
		executor: runner.New(runner.Options{
			Workers:  cfg.Workers,
			Observer: collector,
			Logger:   logger,
		}),
		collector: collector,
		dash:      dash,
		progress:  stderr,
	}
	restSummary := b.run(ctx, ids, rest)
	grpcSummary := b.run(ctx, ids, rpc)

	report := output.NewReport(output.Metadata{
		Requests: len(ids),
		IDRange:  cfg.IDRange,
		IDsFile:  cfg.IDsFile,
		RESTURL:  rest.Endpoint(),
		GRPCURL:  rpc.Endpoint(),
		Workers:  cfg.Workers,
		Timeout:  cfg.Timeout.String(),
	}, restSummary, grpcSummary)

	if dash != nil {
		dash.Stop()
	}
	return emit(cfg, report, stdout, logger)
}

func newLogger(cfg config.Config, stderr io.Writer) lager.Logger {
	level := lager.INFO
	switch {
	case cfg.Dashboard:
		// The dashboard owns the terminal.
		level = lager.ERROR
	case cfg.Verbose:
		level = lager.DEBUG
	}
	logger := lager.NewLogger("protoduel")
	logger.RegisterSink(lager.NewWriterSink(stderr, level))
	return logger
}

func newDrivers(cfg config.Config, provider *tracing.Provider) (*driver.HTTPDriver, *driver.GRPCDriver, error) {
	opts := driver.Options{Timeout: cfg.Timeout, Tracing: provider}

	rest, err := driver.NewHTTPDriver(driver.HTTPConfig{
		BaseURL:      cfg.REST.URL,
		PathTemplate: cfg.REST.Path,
		Headers:      cfg.REST.Headers,
		Workers:      cfg.Workers,
		Options:      opts,
	})
	if err != nil {
		return nil, nil, err
	}
	rpc, err := driver.NewGRPCDriver(driver.GRPCConfig{
		Target:          cfg.GRPC.Target,
		ProtoFile:       cfg.GRPC.ProtoFile,
		Service:         cfg.GRPC.Service,
		Method:          cfg.GRPC.Method,
		MessageTemplate: cfg.GRPC.Message,
		Metadata:        cfg.GRPC.Metadata,
		TLS:             cfg.GRPC.TLS,
		Insecure:        cfg.GRPC.Insecure,
		Options:         opts,
	})
	if err != nil {
		rest.Close()
		return nil, nil, err
	}
	return rest, rpc, nil
}

// probeAll checks every endpoint and reports all unreachable ones together.
func probeAll(ctx context.Context, probers ...driver.Prober) error {
	var errs []error
	for _, p := range probers {
		if err := p.Probe(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("pre-flight check failed:\n%w", errors.Join(errs...))
}

// buildIDs returns the identifier list shared by both batches.
func buildIDs(ctx context.Context, cfg config.Config) ([]int, error) {
	if cfg.IDsFile != "" {
		ids, err := feeder.LoadIDs(ctx, cfg.IDsFile)
		if err != nil {
			return nil, err
		}
		return ids, nil
	}
	r, err := cfg.Range()
	if err != nil {
		return nil, err
	}
	return idrange.Sample(cfg.Requests, r, cfg.Seed), nil
}

func idSource(cfg config.Config) string {
	if cfg.IDsFile != "" {
		return "file " + cfg.IDsFile
	}
	return "range " + cfg.IDRange
}

// bench runs one batch per protocol and feeds the live views.
type bench struct {
	executor  *runner.Executor
	collector *metrics.Collector
	dash      *dashboard.Dashboard
	progress  io.Writer
}

func (b *bench) run(ctx context.Context, ids []int, d driver.Driver) metrics.Summary {
	b.collector.Reset(d.Protocol(), len(ids))

	var progress *output.ProgressReporter
	if b.dash == nil {
		progress = output.NewProgressReporter(b.collector, progressInterval, b.progress)
		progress.Start()
	}
	result := b.executor.Run(ctx, ids, d)
	if progress != nil {
		progress.Stop()
	}

	summary := metrics.Summarize(d.Protocol(), result.Outcomes, result.Duration)
	if b.dash != nil {
		b.dash.Finish(summary)
	}
	return summary
}

func emit(cfg config.Config, report output.Report, stdout io.Writer, logger lager.Logger) error {
	if cfg.OutputFile != "" {
		if err := output.WriteFile(cfg.OutputFile, cfg.Output, report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info("report-written", lager.Data{"path": cfg.OutputFile, "format": cfg.Output})
	} else if err := output.Render(stdout, cfg.Output, report); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if cfg.Chart != "" {
		err := output.WriteLatencyChart(cfg.Chart, report)
		switch {
		case errors.Is(err, output.ErrNoLatencies):
			logger.Info("chart-skipped", lager.Data{"reason": err.Error()})
		case err != nil:
			return fmt.Errorf("write chart: %w", err)
		default:
			logger.Info("chart-written", lager.Data{"path": cfg.Chart})
		}
	}
	return nil
}
