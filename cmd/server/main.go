// Campaign consultation server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/campaign-consult/internal/api"
	"github.com/ashureev/campaign-consult/internal/app"
	"github.com/ashureev/campaign-consult/internal/config"
	"github.com/ashureev/campaign-consult/internal/jobs"
	"github.com/ashureev/campaign-consult/internal/logging"
	"github.com/ashureev/campaign-consult/internal/middleware"
	"github.com/ashureev/campaign-consult/internal/probe"
	"github.com/ashureev/campaign-consult/internal/stream"
	"github.com/ashureev/campaign-consult/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Init(cfg.Env, cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting server",
		"port", cfg.Port,
		"env", cfg.Env,
		"mode", cfg.Mode,
		"max_questions", cfg.MaxQuestions)

	core, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := core.Close(); closeErr != nil {
			logger.Error("Failed to close resources", "error", closeErr)
		}
	}()
	logger.Info("Database connected", "path", cfg.DBPath)
	if core.Redis != nil {
		logger.Info("Redis handoff queue connected", "queue", cfg.HandoffQueue)
	}

	hub := stream.NewHub()
	core.Sessions.OnEvict(hub.Evicted)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, core.Metrics)

	checks := map[string]api.Pinger{"database": core.Repo}
	if core.Redis != nil {
		checks["redis"] = core.Redis
	}

	router := api.NewRouter(api.RouterConfig{
		Service:        core.Service,
		Repo:           core.Repo,
		Health:         api.NewHealthHandler(checks, 0),
		Limiter:        limiter,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		IsDevelopment:  cfg.IsDevelopment(),
		Metrics:        core.Metrics.Handler(),
		Stream:         stream.NewHandler(core.Service, hub, cfg.CORSAllowedOrigins, cfg.IsDevelopment(), core.Metrics),
		SPA:            web.ChatPage(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // WebSocket connections stay open
		IdleTimeout:       120 * time.Second,
	}

	scheduler, err := jobs.New(jobs.Config{
		Sessions:       core.Sessions,
		Repo:           core.Repo,
		SweepInterval:  cfg.SweepInterval,
		BriefRetention: cfg.BriefRetention,
		AfterSweep:     []func(){core.Service.PruneReplays, limiter.Prune},
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		hp := probe.New(map[string]probe.Pinger{"database": core.Repo, "redis": redisPinger(core)}, 0, logger)
		g.Go(func() error {
			return hp.Serve(gctx, lis)
		})
	}

	return g.Wait()
}

// redisPinger returns nil when Redis is not configured so the probe skips it.
func redisPinger(core *app.Core) probe.Pinger {
	if core.Redis == nil {
		return nil
	}
	return core.Redis
}
