// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpc_api "echo-dispatcher/internal/api/grpc"
	http_api "echo-dispatcher/internal/api/http"
	"echo-dispatcher/internal/config"
	"echo-dispatcher/internal/dispatcher"
	"echo-dispatcher/internal/domain"
	"echo-dispatcher/internal/infra/etcd"
	"echo-dispatcher/internal/infra/memory"
	"echo-dispatcher/internal/listener"
	"echo-dispatcher/internal/scheduler"
	"echo-dispatcher/internal/slots"
	"echo-dispatcher/internal/tracing"
	"echo-dispatcher/internal/worker"

	"github.com/google/uuid"
)

const serviceName = "echo-dispatcher"

func main() {
	// 1. Load configuration, then build the logger at the configured level.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	instanceID := uuid.New().String()
	logger.Info("starting echo dispatcher", "instance_id", instanceID, "pool_size", cfg.PoolSize, "port", cfg.Port)

	if cfg.TracingEnabled {
		tracerShutdown, err := tracing.InitTracer(serviceName, instanceID, log.Writer())
		if err != nil {
			log.Fatalf("failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := tracerShutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// 2. Root context; a signal stops the accept loop. In-flight workers are not drained.
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	// 3. Bind the listener. Failure here is fatal.
	ln, err := listener.Listen(rootCtx, listener.Config{
		Host:    cfg.Host,
		Port:    cfg.Port,
		Backlog: cfg.Backlog,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to set up listener: %v", err)
	}
	go func() {
		<-rootCtx.Done()
		_ = ln.Close()
	}()

	// 4. Exchange history and optional instance registration.
	var history domain.ExchangeRepository = memory.NewExchangeRepository(cfg.HistorySize)
	if cfg.EtcdEnabled() {
		etcdClient, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
		if err != nil {
			log.Fatalf("Failed to create etcd client: %v", err)
		}
		defer etcdClient.Close()

		history = etcd.NewExchangeRepository(etcdClient, instanceID, cfg.HistorySize, logger)
		registry := etcd.NewInstanceRegistry(etcdClient, logger)

		regCtx, regCancel := context.WithTimeout(rootCtx, cfg.EtcdTimeout)
		err = registry.Register(regCtx, domain.InstanceInfo{
			ID:             instanceID,
			ListenAddr:     ln.Addr().String(),
			PoolCapacity:   cfg.PoolSize,
			MaxMessageSize: cfg.MaxMessageSize,
			StartedAt:      time.Now().UTC(),
		}, cfg.RegistryTTL)
		regCancel()
		if err != nil {
			log.Fatalf("Failed to register instance: %v", err)
		}
		defer func() {
			deregCtx, deregCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer deregCancel()
			if err := registry.Deregister(deregCtx); err != nil {
				logger.Error("failed to deregister instance", "error", err)
			}
		}()
	}

	// 5. Core: slot table, worker, dispatcher.
	table := slots.New(cfg.PoolSize)
	w := worker.New(table, history, cfg.MaxMessageSize, logger)
	d := dispatcher.New(ln, table, w, cfg.RejectDelay, logger)

	// 6. Admin surfaces.
	if cfg.GrpcListenAddr != "" {
		healthServer := grpc_api.NewHealthServer(logger)
		grpcLis, err := net.Listen("tcp", cfg.GrpcListenAddr)
		if err != nil {
			log.Fatalf("Failed to listen for gRPC: %v", err)
		}
		go func() {
			if err := healthServer.Serve(grpcLis); err != nil {
				logger.Error("gRPC health server stopped", "error", err)
			}
		}()
		defer healthServer.Stop()
		table.SetSaturationSink(healthServer)
	}

	if cfg.HttpListenAddr != "" {
		mux := http.NewServeMux()
		http_api.NewAdminHandler(table, history, logger).RegisterRoutes(mux)
		server := &http.Server{Addr: cfg.HttpListenAddr, Handler: mux}
		go func() {
			logger.Info("admin HTTP server listening", "addr", cfg.HttpListenAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin HTTP server failed", "error", err)
			}
		}()
		defer server.Close()
	}

	if cfg.StatsSchedule != "" {
		reporter := scheduler.NewOccupancyReporter(table, logger)
		if err := reporter.Schedule(cfg.StatsSchedule); err != nil {
			log.Fatalf("Failed to schedule occupancy report: %v", err)
		}
		go func() { _ = reporter.Start(rootCtx) }()
	}

	// 7. Accept loop; runs until a signal arrives.
	if err := d.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("dispatcher stopped", "error", err)
	}
	logger.Info("echo dispatcher stopped")
}

func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received signal, stopping accept loop", "signal", sig.String())
		cancel()
	}()
}
