package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/angeloszaimis/gateway/config"
	"github.com/angeloszaimis/gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/gateway/internal/handler"
	"github.com/angeloszaimis/gateway/internal/httpserver"
	"github.com/angeloszaimis/gateway/internal/metrics"
	"github.com/angeloszaimis/gateway/internal/registry"
	"github.com/angeloszaimis/gateway/internal/route"
	"github.com/angeloszaimis/gateway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	services, err := buildRegistry(cfg, log)
	if err != nil {
		log.Error("Failed to build service registry", slog.Any("err", err))
		os.Exit(1)
	}

	table, err := buildRoutes(cfg)
	if err != nil {
		log.Error("Failed to build route table", slog.Any("err", err))
		os.Exit(1)
	}

	breakers := circuitbreaker.NewRegistry(cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeoutDuration(), log)
	for _, svc := range cfg.Services {
		breakers.GetBreaker(svc.Name)
	}

	collector := metrics.NewCollector(1024, log)
	collector.Start(ctx)

	gateway := handler.New(log, table, services, breakers, collector, cfg.Server.MaxBodyBytes)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(gateway, collector), httpserver.Options{
		ReadTimeout:   cfg.Server.ReadTimeoutDuration(),
		WriteTimeout:  cfg.Server.WriteTimeoutDuration(),
		IdleTimeout:   cfg.Server.IdleTimeoutDuration(),
		ShutdownGrace: cfg.Server.ShutdownGraceDuration(),
	})
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	services.StartHealthLoop(cfg.HealthCheck.IntervalDuration())

	log.Info("Gateway listening",
		slog.String("addr", cfg.Server.Address),
		slog.Int("services", len(cfg.Services)),
		slog.Int("routes", len(cfg.Routes)))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}

	services.Shutdown()
}

func buildRegistry(cfg *config.Config, log *slog.Logger) (*registry.Registry, error) {
	services := registry.NewRegistry(cfg.HealthCheck.ProbeTimeoutDuration(), log)

	for _, sc := range cfg.Services {
		svc, err := registry.NewService(sc.Name, sc.BaseURL, sc.HealthPath, sc.TimeoutDuration())
		if err != nil {
			return nil, err
		}
		if err := services.Register(svc); err != nil {
			return nil, err
		}
	}

	return services, nil
}

func buildRoutes(cfg *config.Config) (*route.Table, error) {
	rules := make([]route.Rule, 0, len(cfg.Routes))

	for _, rc := range cfg.Routes {
		rules = append(rules, route.Rule{
			PathPrefix:  rc.PathPrefix,
			ServiceName: rc.ServiceName,
			RewriteFrom: rc.RewriteFrom,
			RewriteTo:   rc.RewriteTo,
			Description: rc.Description,
		})
	}

	return route.NewTable(rules)
}
