// Command userservice serves the sample user backend over REST and gRPC so
// protoduel can be tried locally:
//
//	go run ./scripts/testservers/userservice --users 10000
//	go run ./cmd/protoduel -r 1000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"google.golang.org/grpc"

	"github.com/torosent/protoduel/internal/userservice"
)

func main() {
	httpPort := flag.Int("http-port", 8080, "REST listening port")
	grpcPort := flag.Int("grpc-port", 9090, "gRPC listening port")
	users := flag.Int("users", 10000, "number of users to serve (ids 1..users)")
	flag.Parse()

	logger := lager.NewLogger("userservice")
	logger.RegisterSink(lager.NewWriterSink(os.Stdout, lager.INFO))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := serve(ctx, logger, userservice.NewStore(*users), *httpPort, *grpcPort); err != nil {
		logger.Error("serve-failed", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, logger lager.Logger, store *userservice.Store, httpPort, grpcPort int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		return err
	}
	grpcServer := grpc.NewServer()
	if err := userservice.RegisterGRPC(grpcServer, store.Responder()); err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           store.HTTPHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc-listening", lager.Data{"addr": lis.Addr().String()})
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		logger.Info("http-listening", lager.Data{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		grpcServer.Stop()
		_ = httpServer.Close()
		return err
	}

	logger.Info("shutting-down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	grpcServer.GracefulStop()
	return httpServer.Shutdown(shutdownCtx)
}
