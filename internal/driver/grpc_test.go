package driver_test

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/torosent/protoduel/internal/driver"
	"github.com/torosent/protoduel/internal/metrics"
	"github.com/torosent/protoduel/internal/userservice"
)

func startUserGRPC(t *testing.T, responder userservice.Responder) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := grpc.NewServer()
	if err := userservice.RegisterGRPC(server, responder); err != nil {
		t.Fatalf("register: %v", err)
	}
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)
	return lis.Addr().String()
}

func newGRPCDriver(t *testing.T, cfg driver.GRPCConfig) *driver.GRPCDriver {
	t.Helper()
	d, err := driver.NewGRPCDriver(cfg)
	if err != nil {
		t.Fatalf("NewGRPCDriver: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestGRPCDriverSuccess(t *testing.T) {
	addr := startUserGRPC(t, userservice.NewStore(20).Responder())
	d := newGRPCDriver(t, driver.GRPCConfig{Target: addr})

	if d.Protocol() != driver.ProtocolGRPC {
		t.Errorf("Protocol() = %q", d.Protocol())
	}
	o := d.Fetch(context.Background(), 4)
	if !o.Success {
		t.Fatalf("expected success, got %+v", o)
	}
	if o.PayloadBytes == 0 || o.ID != 4 {
		t.Errorf("unexpected outcome %+v", o)
	}
	if !o.Valid() {
		t.Errorf("outcome violates record invariant: %+v", o)
	}

	// Larger ids carry longer strings, so the encoded size grows.
	big := d.Fetch(context.Background(), 11)
	if big.PayloadBytes <= o.PayloadBytes {
		t.Errorf("payload for id 11 (%d) should exceed id 4 (%d)", big.PayloadBytes, o.PayloadBytes)
	}
}

func TestGRPCDriverStatusKinds(t *testing.T) {
	tests := []struct {
		name     string
		code     codes.Code
		wantKind string
	}{
		{name: "not found", code: codes.NotFound, wantKind: "NOT_FOUND"},
		{name: "internal", code: codes.Internal, wantKind: "INTERNAL"},
		{name: "unknown", code: codes.Unknown, wantKind: "UNKNOWN"},
		{name: "permission denied", code: codes.PermissionDenied, wantKind: "PERMISSION_DENIED"},
		{name: "resource exhausted", code: codes.ResourceExhausted, wantKind: "RESOURCE_EXHAUSTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := startUserGRPC(t, func(ctx context.Context, m *desc.MethodDescriptor, req *dynamic.Message) (*dynamic.Message, error) {
				return nil, status.Error(tt.code, "nope")
			})
			o := newGRPCDriver(t, driver.GRPCConfig{Target: addr}).Fetch(context.Background(), 1)
			if o.Success {
				t.Fatalf("expected failure, got %+v", o)
			}
			if o.ErrorKind != tt.wantKind {
				t.Errorf("ErrorKind = %q, want %q", o.ErrorKind, tt.wantKind)
			}
			if !strings.Contains(o.ErrorDetail, "nope") {
				t.Errorf("ErrorDetail = %q", o.ErrorDetail)
			}
		})
	}
}

func TestGRPCDriverTimeout(t *testing.T) {
	addr := startUserGRPC(t, func(ctx context.Context, m *desc.MethodDescriptor, req *dynamic.Message) (*dynamic.Message, error) {
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})

	timeout := 50 * time.Millisecond
	o := newGRPCDriver(t, driver.GRPCConfig{
		Target:  addr,
		Options: driver.Options{Timeout: timeout},
	}).Fetch(context.Background(), 1)
	if o.ErrorKind != metrics.KindTimeout {
		t.Fatalf("ErrorKind = %q, want TIMEOUT (%s)", o.ErrorKind, o.ErrorDetail)
	}
	if o.LatencyMs < float64(timeout/time.Millisecond) || o.LatencyMs > 1000 {
		t.Errorf("latency %vms not bounded by the deadline", o.LatencyMs)
	}
}

func TestGRPCDriverUnavailable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	lis.Close()

	d := newGRPCDriver(t, driver.GRPCConfig{Target: addr, Options: driver.Options{Timeout: 2 * time.Second}})
	o := d.Fetch(context.Background(), 1)
	if o.ErrorKind != "UNAVAILABLE" {
		t.Fatalf("ErrorKind = %q, want UNAVAILABLE (%s)", o.ErrorKind, o.ErrorDetail)
	}

	err = d.Probe(context.Background())
	if !errors.Is(err, driver.ErrUnreachable) {
		t.Fatalf("Probe() = %v, want ErrUnreachable", err)
	}
	if !strings.Contains(err.Error(), addr) {
		t.Errorf("probe error %q does not name the address", err)
	}
}

func TestGRPCDriverProbe(t *testing.T) {
	addr := startUserGRPC(t, userservice.NewStore(3).Responder())
	if err := newGRPCDriver(t, driver.GRPCConfig{Target: addr}).Probe(context.Background()); err != nil {
		t.Fatalf("Probe() = %v", err)
	}

	// Unlike REST, a missing user 1 fails the RPC probe.
	empty := startUserGRPC(t, userservice.NewStore(0).Responder())
	if err := newGRPCDriver(t, driver.GRPCConfig{Target: empty}).Probe(context.Background()); !errors.Is(err, driver.ErrUnreachable) {
		t.Fatalf("Probe() = %v, want ErrUnreachable", err)
	}
}

func TestGRPCDriverBadTemplate(t *testing.T) {
	var calls int32
	addr := startUserGRPC(t, func(ctx context.Context, m *desc.MethodDescriptor, req *dynamic.Message) (*dynamic.Message, error) {
		atomic.AddInt32(&calls, 1)
		return dynamic.NewMessage(m.GetOutputType()), nil
	})

	d := newGRPCDriver(t, driver.GRPCConfig{Target: addr, MessageTemplate: `{"user_id": {{id}}`})
	o := d.Fetch(context.Background(), 1)
	if o.ErrorKind != driver.KindBadRequestTemplate {
		t.Fatalf("ErrorKind = %q, want %s", o.ErrorKind, driver.KindBadRequestTemplate)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("malformed request should never reach the server")
	}
}

func TestGRPCDriverSendsMetadata(t *testing.T) {
	addr := startUserGRPC(t, func(ctx context.Context, m *desc.MethodDescriptor, req *dynamic.Message) (*dynamic.Message, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		if got := md.Get("x-client"); len(got) == 0 || got[0] != "protoduel" {
			return nil, status.Error(codes.Unauthenticated, "missing x-client")
		}
		return dynamic.NewMessage(m.GetOutputType()), nil
	})

	d := newGRPCDriver(t, driver.GRPCConfig{
		Target:   addr,
		Metadata: map[string]string{"X-Client": "protoduel"},
	})
	o := d.Fetch(context.Background(), 1)
	if !o.Success {
		t.Fatalf("expected success, got %+v", o)
	}
	// An empty response message encodes to zero bytes.
	if o.PayloadBytes != 0 {
		t.Errorf("PayloadBytes = %d, want 0", o.PayloadBytes)
	}
}

func TestGRPCDriverCloseOnce(t *testing.T) {
	d, err := driver.NewGRPCDriver(driver.GRPCConfig{Target: "127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewGRPCDriver: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNewGRPCDriverErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  driver.GRPCConfig
	}{
		{name: "missing target", cfg: driver.GRPCConfig{}},
		{name: "unknown method", cfg: driver.GRPCConfig{Target: "localhost:9090", Method: "DeleteUser"}},
		{name: "missing proto file", cfg: driver.GRPCConfig{Target: "localhost:9090", ProtoFile: "/does/not/exist.proto"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := driver.NewGRPCDriver(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
