// Standalone query sandbox served over gRPC.
package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/salesbot/internal/config"
	"github.com/ashureev/salesbot/internal/sandbox"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.LoadSandboxServer()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		slog.Error("Failed to listen", "addr", cfg.ListenAddr, "error", err)
		os.Exit(1)
	}

	g := grpc.NewServer()
	sandbox.NewServer(cfg.MaxResultRows, cfg.Timeout, logger).Register(g)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(g, hs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Sandbox listening", "addr", lis.Addr().String(), "max_rows", cfg.MaxResultRows)
		if err := g.Serve(lis); err != nil {
			slog.Error("Sandbox server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down sandbox...")
	hs.Shutdown()
	g.GracefulStop()
	slog.Info("Sandbox stopped")
}
