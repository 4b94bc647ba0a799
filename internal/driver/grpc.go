package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/torosent/protoduel/internal/grpcclient"
	"github.com/torosent/protoduel/internal/metrics"
	"github.com/torosent/protoduel/internal/placeholders"
	"github.com/torosent/protoduel/internal/tracing"
)

// GRPCConfig describes the RPC endpoint and the unary method to call.
type GRPCConfig struct {
	Target          string
	ProtoFile       string
	Service         string
	Method          string
	MessageTemplate string
	Metadata        map[string]string
	TLS             bool
	Insecure        bool
	Options
}

// GRPCDriver calls one unary method over a single shared connection. The
// connection is safe for concurrent calls and is closed once by Close.
type GRPCDriver struct {
	opt       Options
	target    string
	method    *grpcclient.Method
	template  string
	md        metadata.MD
	conn      *grpc.ClientConn
	closeOnce sync.Once
	closeErr  error
}

func NewGRPCDriver(cfg GRPCConfig) (*GRPCDriver, error) {
	cfg.Options.normalize()

	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = grpcclient.DefaultService
	}
	methodName := strings.TrimSpace(cfg.Method)
	if methodName == "" {
		methodName = grpcclient.DefaultMethod
	}
	template := cfg.MessageTemplate
	if strings.TrimSpace(template) == "" {
		template = grpcclient.DefaultMessage
	}

	method, err := grpcclient.LoadMethod(cfg.ProtoFile, service, methodName)
	if err != nil {
		return nil, fmt.Errorf("grpc driver: %w", err)
	}
	conn, err := grpcclient.Dial(grpcclient.Config{
		Target:   cfg.Target,
		UseTLS:   cfg.TLS,
		Insecure: cfg.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("grpc driver: %w", err)
	}

	return &GRPCDriver{
		opt:      cfg.Options,
		target:   strings.TrimSpace(cfg.Target),
		method:   method,
		template: template,
		md:       metadata.New(cfg.Metadata),
		conn:     conn,
	}, nil
}

func (d *GRPCDriver) Protocol() string { return ProtocolGRPC }

// Endpoint returns the dialed target.
func (d *GRPCDriver) Endpoint() string { return d.target }

func (d *GRPCDriver) Fetch(ctx context.Context, id int) (o metrics.Outcome) {
	ctx, span := tracing.StartFetchSpan(ctx, d.opt.tracer(), "grpc", d.method.FullName(), id)
	defer func() { tracing.EndFetchSpan(span, o) }()

	req, err := d.method.NewRequest(placeholders.ApplyID(d.template, id))
	if err != nil {
		return metrics.Failed(id, 0, KindBadRequestTemplate, err.Error())
	}
	resp := d.method.NewResponse()

	md := d.md.Copy()
	if d.opt.Tracing.ShouldPropagate() {
		tracing.InjectGRPCMetadata(ctx, md)
	}
	if len(md) > 0 {
		ctx = metadata.NewOutgoingContext(ctx, md)
	}

	ctx, cancel := context.WithTimeout(ctx, d.opt.Timeout)
	defer cancel()

	start := d.opt.Clock.Now()
	err = d.conn.Invoke(ctx, d.method.FullName(), req, resp)
	latency := d.opt.Clock.Since(start)
	if err != nil {
		return metrics.Failed(id, latency, grpcErrorKind(err), grpcErrorDetail(err))
	}
	return metrics.Succeeded(id, latency, proto.Size(resp))
}

// Probe reports the endpoint reachable when fetching id 1 succeeds.
func (d *GRPCDriver) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	o := d.Fetch(ctx, probeID)
	if o.Success {
		return nil
	}
	return fmt.Errorf("%w: gRPC %s: %s (%s)", ErrUnreachable, d.target, o.ErrorKind, o.ErrorDetail)
}

// Close closes the shared connection exactly once.
func (d *GRPCDriver) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.conn.Close()
	})
	return d.closeErr
}

func grpcErrorKind(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		if kind := contextKind(err); kind != "" {
			return kind
		}
		return metrics.KindFromError(err)
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return metrics.KindTimeout
	case codes.Canceled:
		return metrics.KindCancelled
	default:
		return metrics.NormalizeKind(st.Code().String())
	}
}

func grpcErrorDetail(err error) string {
	if st, ok := status.FromError(err); ok {
		if msg := st.Message(); msg != "" {
			return fmt.Sprintf("%s: %s", st.Code(), msg)
		}
		return st.Code().String()
	}
	return err.Error()
}
