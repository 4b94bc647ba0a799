package driver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/torosent/protoduel/internal/httpclient"
	"github.com/torosent/protoduel/internal/metrics"
	"github.com/torosent/protoduel/internal/tracing"
)

// HTTPConfig describes the REST endpoint.
type HTTPConfig struct {
	BaseURL      string
	PathTemplate string
	Headers      map[string]string
	Workers      int
	Options
}

// HTTPDriver fetches entities with GET {base}{path}. Connections are pooled
// by the underlying transport.
type HTTPDriver struct {
	opt       Options
	builder   *httpclient.RequestBuilder
	client    *http.Client
	closeOnce sync.Once
}

func NewHTTPDriver(cfg HTTPConfig) (*HTTPDriver, error) {
	cfg.Options.normalize()
	builder, err := httpclient.NewRequestBuilder(cfg.BaseURL, cfg.PathTemplate, cfg.Headers)
	if err != nil {
		return nil, fmt.Errorf("rest driver: %w", err)
	}
	return &HTTPDriver{
		opt:     cfg.Options,
		builder: builder,
		// Deadlines come from the per-request context.
		client: httpclient.NewClient(0, cfg.Workers),
	}, nil
}

func (d *HTTPDriver) Protocol() string { return ProtocolREST }

// Endpoint returns the base URL being measured.
func (d *HTTPDriver) Endpoint() string { return d.builder.Base() }

func (d *HTTPDriver) Fetch(ctx context.Context, id int) (o metrics.Outcome) {
	ctx, span := tracing.StartFetchSpan(ctx, d.opt.tracer(), "http", d.builder.Path(), id)
	defer func() { tracing.EndFetchSpan(span, o) }()

	ctx, cancel := context.WithTimeout(ctx, d.opt.Timeout)
	defer cancel()

	req, err := d.builder.Build(ctx, id)
	if err != nil {
		return metrics.Failed(id, 0, KindBadRequestTemplate, err.Error())
	}
	if d.opt.Tracing.ShouldPropagate() {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	start := d.opt.Clock.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return metrics.Failed(id, d.opt.Clock.Since(start), classifyHTTPError(err), err.Error())
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	latency := d.opt.Clock.Since(start)

	switch {
	case readErr != nil:
		kind := contextKind(readErr)
		if kind == "" && isTimeout(readErr) {
			kind = metrics.KindTimeout
		}
		if kind == "" {
			kind = metrics.KindRead
		}
		return metrics.Failed(id, latency, kind, readErr.Error())
	case resp.StatusCode != http.StatusOK:
		return metrics.Failed(id, latency, metrics.HTTPStatusKind(resp.StatusCode), fmt.Sprintf("HTTP %d", resp.StatusCode))
	case !gjson.ValidBytes(body):
		return metrics.Failed(id, latency, metrics.KindMalformedResponse, "response body is not valid JSON")
	}
	return metrics.Succeeded(id, latency, len(body))
}

// Probe reports the endpoint reachable when id 1 answers 200 or 404.
func (d *HTTPDriver) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	o := d.Fetch(ctx, probeID)
	if o.Success || o.ErrorKind == metrics.HTTPStatusKind(http.StatusNotFound) {
		return nil
	}
	return fmt.Errorf("%w: REST %s: %s (%s)", ErrUnreachable, d.builder.Base(), o.ErrorKind, o.ErrorDetail)
}

// Close drops idle pooled connections. It is safe to call more than once.
func (d *HTTPDriver) Close() error {
	d.closeOnce.Do(d.client.CloseIdleConnections)
	return nil
}

func classifyHTTPError(err error) string {
	if kind := contextKind(err); kind != "" {
		return kind
	}
	if isTimeout(err) {
		return metrics.KindTimeout
	}
	if isConnectionError(err) {
		return metrics.KindConnection
	}
	return metrics.KindFromError(err)
}
