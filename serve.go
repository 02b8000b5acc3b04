// d8cart/serve.go

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/norun9/d8cart/services"
	"github.com/norun9/d8cart/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the cart over HTTP with a gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	log := a.log

	shutdownTelemetry, err := telemetry.Setup(ctx, a.cfg.OTelEnabled, a.cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.WithError(err).Warn("telemetry shutdown failed")
		}
	}()

	store, backend, err := a.openCart(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()
	log.WithFields(logrus.Fields{
		"backend": a.cfg.Backend,
		"entries": len(store.Products()),
	}).Info("cart loaded")

	cartSvc, err := services.NewCartService(log)
	if err != nil {
		return err
	}
	router := mux.NewRouter()
	router.Use(services.LogRequests(log), services.ProvideCart(store))
	cartSvc.Register(router)

	httpAddr := fmt.Sprintf(":%d", a.cfg.HTTPPort)
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", httpAddr)
	}
	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	healthAddr := fmt.Sprintf(":%d", a.cfg.HealthPort)
	lis, err := net.Listen("tcp", healthAddr)
	if err != nil {
		httpLis.Close()
		return errors.Wrapf(err, "failed to listen on %s", healthAddr)
	}
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthpb.RegisterHealthServer(grpcServer, services.NewHealthCheckService(backend, log))
	reflection.Register(grpcServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", httpLis.Addr().String()).Info("cart HTTP server listening")
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		log.WithField("addr", lis.Addr().String()).Info("health gRPC server listening")
		// Serve reports ErrServerStopped when shutdown won the race to start.
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return errors.Wrap(err, "grpc server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("bye")
	return nil
}
