// Package driver issues a single "fetch entity by id" call over one protocol
// and turns whatever happens into a metrics.Outcome.
//
// Drivers never return errors from Fetch and never let a panic escape it:
// every failure path becomes a failure Outcome with a normalized error kind.
// Latency brackets only the network exchange; request building and span
// bookkeeping happen outside the timed region.
package driver

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/protoduel/internal/metrics"
	"github.com/torosent/protoduel/internal/tracing"
)

// Protocol labels used in reports.
const (
	ProtocolREST = "REST"
	ProtocolGRPC = "gRPC"
)

const (
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 30 * time.Second
	// ProbeTimeout bounds the pre-flight reachability check.
	ProbeTimeout = 5 * time.Second

	probeID = 1
)

// KindBadRequestTemplate is reported when the request template does not
// produce a valid request for an id.
const KindBadRequestTemplate = "BAD_REQUEST_TEMPLATE"

// ErrUnreachable wraps every failed pre-flight probe.
var ErrUnreachable = errors.New("endpoint unreachable")

// Driver performs one logical read per call.
type Driver interface {
	Protocol() string
	Fetch(ctx context.Context, id int) metrics.Outcome
}

// Prober is implemented by drivers that can check their endpoint before load.
type Prober interface {
	Probe(ctx context.Context) error
}

// Options are shared by every driver.
type Options struct {
	Timeout time.Duration
	Clock   clock.Clock
	Tracing *tracing.Provider
}

func (o *Options) normalize() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.NewClock()
	}
}

func (o Options) tracer() trace.Tracer {
	return o.Tracing.Tracer()
}

// contextKind maps a context error to a kind, or "" if err is neither.
func contextKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.KindTimeout
	case errors.Is(err, context.Canceled):
		return metrics.KindCancelled
	}
	return ""
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
