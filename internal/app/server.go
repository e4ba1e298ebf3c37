package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/erg0nix/recall/internal/bridge"
	"github.com/erg0nix/recall/internal/config"
	"github.com/erg0nix/recall/internal/metrics"
	"github.com/erg0nix/recall/internal/rpc"
)

const drainTimeout = 5 * time.Second

// RunServer listens on the configured bind address and serves until a signal
// or a shutdown request arrives.
func RunServer(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	listener, err := net.Listen("tcp", cfg.Daemon.Bind)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", cfg.Daemon.Bind, err)
	}

	return Serve(ctx, cfg, listener)
}

// Serve restores the engine, then runs the gRPC services, the snapshot
// scheduler and the metrics endpoint until ctx is done or a client asks the
// daemon to stop. A final snapshot is written on the way out.
func Serve(ctx context.Context, cfg config.Config, listener net.Listener) error {
	startTime := time.Now()
	m := metrics.New()

	engine, err := OpenEngine(ctx, cfg, m)
	if err != nil {
		listener.Close()
		return fmt.Errorf("server: %w", err)
	}
	defer engine.Close()

	var scheduler *bridge.Scheduler
	if cfg.Snapshot.Schedule != "" {
		if scheduler, err = bridge.NewScheduler(engine, cfg.Snapshot.Schedule); err != nil {
			listener.Close()
			return fmt.Errorf("server: %w", err)
		}
	}

	if cfg.Memory.AutoPerformOnStart {
		if err := AutoPerform(ctx, engine); err != nil {
			slog.Warn("auto perform failed", "error", err)
		}
	}

	pidFile := PIDPath(cfg.DataDir)
	if err := writePIDFile(pidFile); err != nil {
		slog.Warn("failed to write PID file", "error", err)
	}
	defer os.Remove(pidFile)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	grpcServer := grpc.NewServer()
	rpc.RegisterMemoryService(grpcServer, engine)
	rpc.RegisterDaemonService(grpcServer, &rpc.DaemonHandler{
		Status: rpc.DaemonStatus{
			Bind:             listener.Addr().String(),
			MetricsBind:      cfg.Daemon.MetricsBind,
			DataDir:          cfg.DataDir,
			SnapshotBackend:  cfg.Snapshot.Backend,
			SnapshotSchedule: cfg.Snapshot.Schedule,
			PID:              os.Getpid(),
		},
		StartTime: startTime,
		StopFunc:  cancel,
	})

	var metricsServer *http.Server
	if cfg.Daemon.MetricsBind != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())

		metricsServer = &http.Server{
			Addr:         cfg.Daemon.MetricsBind,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := grpcServer.Serve(listener); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	if scheduler != nil {
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		stopGracefully(grpcServer)

		if metricsServer != nil {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), drainTimeout)
			defer cancelShutdown()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Warn("metrics server shutdown failed", "error", err)
			}
		}
		return nil
	})

	slog.Info("server listening", "address", listener.Addr().String(), "data_dir", cfg.DataDir)

	err = g.Wait()

	if _, snapErr := engine.Snapshot(context.Background()); snapErr != nil {
		slog.Warn("final snapshot failed", "error", snapErr)
	}

	return err
}

func stopGracefully(s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		slog.Warn("drain timeout, forcing shutdown")
		s.Stop()
	}
}
