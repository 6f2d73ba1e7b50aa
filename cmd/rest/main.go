package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"ai-study-portal-be/internal/bootstrap"
	"ai-study-portal-be/internal/config"
	"ai-study-portal-be/internal/server"
	"ai-study-portal-be/internal/tracer"
	"ai-study-portal-be/pkg/database"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.LogLevel)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg)
	if err != nil {
		log.Panicf("Unable to bootstrap: %v", err)
	}
	defer container.Close()

	shutdownTracer := tracer.InitTracer(ctx, tracer.Config{
		Enabled:     cfg.App.OtelEnabled,
		Endpoint:    cfg.App.OtelEndpoint,
		ServiceName: "ai-study-portal-be",
		Environment: cfg.App.Environment,
	}, container.Logger)

	srv := server.New(cfg, container)

	// 4. Run background services and the HTTP server until a signal arrives
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		container.WebSocketHub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return container.ConsumerService.Consume(gctx)
	})

	g.Go(func() error {
		if err := container.ActivityService.Start(gctx); err != nil {
			// the chat works without the activity list
			container.Logger.Warn("Main", "Activity projection not started", map[string]interface{}{"error": err.Error()})
		}
		return nil
	})

	g.Go(func() error {
		return srv.Run()
	})

	g.Go(func() error {
		<-gctx.Done()
		container.Logger.Info("Main", "Shutting down", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			container.Logger.Warn("Main", "Tracer shutdown failed", map[string]interface{}{"error": err.Error()})
		}
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		container.Logger.Error("Main", "Server stopped with error", map[string]interface{}{"error": err.Error()})
	}
}
