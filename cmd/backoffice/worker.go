package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/backoffice/internal/app"
	"github.com/odyssey-erp/backoffice/jobs"
)

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the asynq worker and the maintenance scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.InTestMode() {
				slog.Default().Info("test mode detected, skipping worker startup")
				return nil
			}
			cfg, err := loadRuntime()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)
			ctx, stop := app.SignalContext(cmd.Context())
			defer stop()

			c, err := wire(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			cron, err := cronRegistrations(cfg)
			if err != nil {
				return err
			}
			worker, err := jobs.NewWorker(jobs.WorkerConfig{
				RedisOpts:   redisOpts(cfg),
				Logger:      logger,
				Concurrency: cfg.WorkerConcurrency,
				Handlers: []jobs.TaskHandler{
					{Type: jobs.TaskPostingDrain, Handler: c.drainJob.Handle},
					{Type: jobs.TaskLedgerBackfill, Handler: c.sweepJob.Handle},
					{Type: jobs.TaskGLIntegrity, Handler: c.integrity.Handle},
				},
				Cron: cron,
			})
			if err != nil {
				return err
			}
			logger.Info("worker started", slog.Int("concurrency", cfg.WorkerConcurrency))
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("worker stopped")
			return nil
		},
	}
}

// cronRegistrations schedules the periodic drain, the nightly backfill sweep and the
// integrity check. An empty spec disables its entry.
func cronRegistrations(cfg *app.Config) ([]jobs.CronRegistration, error) {
	drain, err := jobs.NewDrainTask(cfg.PostingDrainBatch)
	if err != nil {
		return nil, err
	}
	backfill, err := jobs.NewBackfillTask(0, nil)
	if err != nil {
		return nil, err
	}
	integrity, err := jobs.NewIntegrityTask(0)
	if err != nil {
		return nil, err
	}
	return []jobs.CronRegistration{
		{Spec: cfg.PostingDrainCron, Task: drain, Options: []asynq.Option{asynq.Queue(jobs.QueuePosting), asynq.MaxRetry(0)}},
		{Spec: cfg.BackfillCron, Task: backfill, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)}},
		{Spec: cfg.IntegrityCron, Task: integrity, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(1)}},
	}, nil
}
