// Package app assembles the consultation engine from configuration. The
// server and the operator CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/campaign-consult/internal/config"
	"github.com/ashureev/campaign-consult/internal/consult"
	"github.com/ashureev/campaign-consult/internal/handoff"
	"github.com/ashureev/campaign-consult/internal/judge"
	"github.com/ashureev/campaign-consult/internal/metrics"
	"github.com/ashureev/campaign-consult/internal/session"
	"github.com/ashureev/campaign-consult/internal/store"
)

// Core is the wired engine and the resources it owns.
type Core struct {
	Config   *config.Config
	Service  *consult.Service
	Sessions *session.Manager
	Repo     *store.SQLiteStore
	Redis    *handoff.RedisQueue // nil without REDIS_URL
	Judge    consult.Judge       // nil when judging is disabled
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Build opens the archive, connects the handoff queue and wires the
// consultation service. Callers must Close the result.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Core, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Core{Config: cfg, Metrics: metrics.New(), Logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	c.Repo, err = store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := c.Repo.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	publishers := handoff.Multi{handoff.NewArchive(c.Repo, cfg.SaveTranscripts)}
	if cfg.RedisURL != "" {
		c.Redis, err = handoff.NewRedisQueue(ctx, cfg.RedisURL, cfg.HandoffQueue)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, c.Redis)
	}

	bank, err := consult.LoadBank(cfg.TemplatesPath)
	if err != nil {
		return nil, err
	}

	c.Judge, err = judge.New(ctx, judge.Config{
		Provider:    cfg.Judge.Provider,
		Model:       cfg.Judge.Model,
		BaseURL:     cfg.Judge.BaseURL,
		APIKey:      cfg.Judge.APIKey,
		Temperature: cfg.Judge.Temperature,
		MaxRetries:  cfg.Judge.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize judge: %w", err)
	}
	opts := []consult.EvaluatorOption{
		consult.WithJudgeTimeout(cfg.Judge.Timeout),
		consult.WithEvaluatorMetrics(c.Metrics),
		consult.WithEvaluatorLogger(logger),
	}
	if c.Judge != nil {
		opts = append(opts, consult.WithJudge(c.Judge))
		logger.Info("completeness judge enabled", "provider", c.Judge.Name(), "model", cfg.Judge.Model)
	} else {
		logger.Info("completeness judge disabled, using heuristic evaluation")
	}

	machine := consult.NewMachine(consult.MachineConfig{
		Processor:     consult.NewProcessor(nil, 0),
		Prioritizer:   consult.NewPrioritizer(bank),
		Evaluator:     consult.NewEvaluator(opts...),
		MaxRecoveries: cfg.MaxRecoveries,
		Metrics:       c.Metrics,
		Logger:        logger,
	})

	c.Sessions = session.NewManager(session.Config{
		TTL:                cfg.SessionTTL,
		CompletedRetention: cfg.CompletedRetention,
		MaxSessions:        cfg.MaxSessions,
		MaxQuestions:       cfg.MaxQuestions,
		Progress:           consult.Completion,
		Metrics:            c.Metrics,
	})

	c.Service = consult.NewService(consult.ServiceConfig{
		Sessions:       c.Sessions,
		Machine:        machine,
		Publisher:      publishers,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Metrics:        c.Metrics,
		Logger:         logger,
	})
	return c, nil
}

// Close releases the archive and the Redis connection.
func (c *Core) Close() error {
	var errs []error
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if c.Repo != nil {
		if err := c.Repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close repository: %w", err))
		}
	}
	return errors.Join(errs...)
}
