package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/backoffice/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	batch     int
}

// NewJobsCLI initialises the CLI helpers against the given Redis.
func NewJobsCLI(opts asynq.RedisClientOpt, batch int) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts), batch: batch}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// TriggerOptions scopes a manually triggered job.
type TriggerOptions struct {
	EntityID int64
	Kinds    []string
}

// Task builds the task for a supported job name.
func (c *JobsCLI) Task(name string, opts TriggerOptions) (*asynq.Task, string, error) {
	switch name {
	case jobs.TaskPostingDrain:
		task, err := jobs.NewDrainTask(c.batch)
		return task, jobs.QueuePosting, err
	case jobs.TaskLedgerBackfill:
		task, err := jobs.NewBackfillTask(opts.EntityID, opts.Kinds)
		return task, jobs.QueueDefault, err
	case jobs.TaskGLIntegrity:
		task, err := jobs.NewIntegrityTask(opts.EntityID)
		return task, jobs.QueueDefault, err
	default:
		return nil, "", fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, queue, err := c.Task(name, opts)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(queue), asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueues reports the metrics of the posting and default queues.
func (c *JobsCLI) InspectQueues() ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	var out []QueueStats
	for _, queue := range []string{jobs.QueuePosting, jobs.QueueDefault} {
		stats := QueueStats{Queue: queue}
		info, err := c.inspector.GetQueueInfo(queue)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, err
		}
		if info != nil {
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Archived = info.Archived
		}
		out = append(out, stats)
	}
	return out, nil
}

// ListScheduled returns scheduled task infos for observability.
func (c *JobsCLI) ListScheduled(size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}

	withCLI := func(cmd *cobra.Command, fn func(*JobsCLI) (any, error)) error {
		cfg, err := loadRuntime()
		if err != nil {
			return err
		}
		cli := NewJobsCLI(redisOpts(cfg), cfg.PostingDrainBatch)
		defer cli.Close()
		out, err := fn(cli)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	}

	var opts TriggerOptions
	trigger := &cobra.Command{
		Use:   "trigger JOB",
		Short: "Enqueue " + strings.Join([]string{jobs.TaskPostingDrain, jobs.TaskLedgerBackfill, jobs.TaskGLIntegrity}, ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCLI(cmd, func(cli *JobsCLI) (any, error) {
				info, err := cli.Trigger(cmd.Context(), args[0], opts)
				if err != nil {
					return nil, err
				}
				return map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue}, nil
			})
		},
	}
	trigger.Flags().Int64Var(&opts.EntityID, "entity", 0, "entity scope for backfill and integrity jobs")
	trigger.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "event kinds for the backfill job")

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Show queue depths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCLI(cmd, func(cli *JobsCLI) (any, error) { return cli.InspectQueues() })
		},
	}

	var size int
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks of the default queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCLI(cmd, func(cli *JobsCLI) (any, error) {
				infos, err := cli.ListScheduled(size)
				if err != nil {
					return nil, err
				}
				out := make([]map[string]any, 0, len(infos))
				for _, info := range infos {
					out = append(out, map[string]any{"id": info.ID, "type": info.Type, "next": info.NextProcessAt})
				}
				return out, nil
			})
		},
	}
	scheduled.Flags().IntVar(&size, "size", 10, "page size")

	cmd.AddCommand(trigger, inspect, scheduled)
	return cmd
}
