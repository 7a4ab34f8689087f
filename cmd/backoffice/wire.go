package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/backoffice/internal/accounting"
	"github.com/odyssey-erp/backoffice/internal/accounting/reports"
	"github.com/odyssey-erp/backoffice/internal/app"
	"github.com/odyssey-erp/backoffice/internal/chart"
	"github.com/odyssey-erp/backoffice/internal/commerce"
	"github.com/odyssey-erp/backoffice/internal/inventory"
	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
	"github.com/odyssey-erp/backoffice/internal/observability"
	"github.com/odyssey-erp/backoffice/internal/platform/cache"
	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/posting"
	"github.com/odyssey-erp/backoffice/internal/shared"
	"github.com/odyssey-erp/backoffice/jobs"
)

// container holds the wired services of one process.
type container struct {
	cfg    *app.Config
	logger *slog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	jobs  *jobs.Client

	metrics    *observability.Metrics
	jobMetrics *jobmetrics.Metrics

	chartRepo *chart.Repository
	chart     *chart.Service
	ledger    *accounting.Service
	reports   *reports.Service
	inventory *inventory.Service
	queue     *posting.Queue
	engine    *posting.Engine
	submitter *posting.Submitter
	consumer  *posting.Consumer
	backfill  *posting.Backfill
	commerce  *commerce.Service
	integrity *jobs.GLIntegrityJob
	drainJob  *jobs.PostingDrainJob
	sweepJob  *jobs.LedgerBackfillJob
}

func redisOpts(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

func wire(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*container, error) {
	rules := posting.DefaultRules()
	if cfg.PostingRulesFile != "" {
		loaded, err := posting.LoadRules(cfg.PostingRulesFile)
		if err != nil {
			return nil, fmt.Errorf("posting rules: %w", err)
		}
		rules = loaded
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		pool.Close()
		return nil, err
	}

	c := &container{cfg: cfg, logger: logger, pool: pool, redis: redisClient}
	c.metrics = observability.NewMetrics()
	c.jobMetrics = jobmetrics.NewMetrics(c.metrics.Registerer())
	c.jobs = jobs.NewClient(redisOpts(cfg), cfg.PostingDrainBatch)

	audit := shared.NewAuditLogger(pool)

	c.chartRepo = chart.NewRepository(pool)
	c.chart = chart.NewService(c.chartRepo, cache.NewVersioned(redisClient, "chart", cfg.ChartCacheTTL))
	c.reports = reports.NewService(reports.NewRepository(pool), cache.NewVersioned(redisClient, "reports", cfg.ReportCacheTTL))
	c.ledger = accounting.NewService(accounting.NewRepository(pool), c.chart, audit, c.reports)

	c.queue = posting.NewQueue(pool)
	c.engine = posting.NewEngine(rules, c.chart, c.ledger)
	c.submitter = posting.NewSubmitter(c.queue, c.jobs, logger)
	c.consumer = posting.NewConsumer(c.queue, c.engine, c.jobMetrics, logger, posting.ConsumerConfig{
		MaxAttempts: cfg.PostingMaxAttempts,
		Backoff:     cfg.PostingBackoff,
	})
	c.backfill = posting.NewBackfill(posting.NewDocuments(pool), c.engine, logger)

	c.inventory = inventory.NewService(inventory.NewRepository(pool), audit, posting.NewHooks(c.submitter), logger)
	c.commerce = commerce.NewService(c.inventory, c.submitter, logger)

	c.drainJob = jobs.NewPostingDrainJob(c.consumer, cfg.PostingDrainBatch, logger, c.jobMetrics)
	c.sweepJob = jobs.NewLedgerBackfillJob(c.backfill, c.chartRepo, cfg.BackfillBatch, logger, c.jobMetrics)
	c.integrity = jobs.NewGLIntegrityJob(c.ledger, c.chartRepo, logger, c.jobMetrics)

	if err := c.metrics.Registerer().Register(observability.NewQueueCollector(c.queue, logger)); err != nil {
		logger.Warn("register posting queue collector", slog.Any("error", err))
	}
	return c, nil
}

func (c *container) Close() {
	if err := c.jobs.Close(); err != nil {
		c.logger.Warn("asynq client close", slog.Any("error", err))
	}
	if err := c.redis.Close(); err != nil {
		c.logger.Warn("redis close", slog.Any("error", err))
	}
	c.pool.Close()
}
