package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/backoffice/internal/app"
	"github.com/odyssey-erp/backoffice/internal/posting"
	"github.com/odyssey-erp/backoffice/jobs"
)

// runInline wires the process, runs fn, then prints its result as JSON.
func runInline(cmd *cobra.Command, fn func(context.Context, *container) (any, error)) error {
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

	out, err := fn(ctx, c)
	if out != nil {
		if printErr := printJSON(cmd.OutOrStdout(), out); printErr != nil {
			logger.Warn("print result", slog.Any("error", printErr))
		}
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newDrainCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Post due posting queue rows now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInline(cmd, func(ctx context.Context, c *container) (any, error) {
				report, err := c.drainJob.Run(ctx, limit)
				return drainSummary(report), err
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "rows claimed per pass (defaults to POSTING_DRAIN_BATCH)")
	return cmd
}

func newBackfillCommand() *cobra.Command {
	var (
		entityID int64
		kinds    []string
	)
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Post committed documents that have no ledger lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInline(cmd, func(ctx context.Context, c *container) (any, error) {
				reports, err := c.sweepJob.Run(ctx, jobs.BackfillPayload{EntityID: entityID, Kinds: kinds})
				return sweepSummaries(reports), err
			})
		},
	}
	cmd.Flags().Int64Var(&entityID, "entity", 0, "entity to sweep (0 sweeps every entity)")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "restrict the sweep to these event kinds")
	return cmd
}

func newIntegrityCommand() *cobra.Command {
	var entityID int64
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "List posted documents whose lines do not balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInline(cmd, func(ctx context.Context, c *container) (any, error) {
				found, err := c.integrity.Run(ctx, entityID)
				if err != nil {
					return nil, err
				}
				if len(found) > 0 {
					return found, fmt.Errorf("%d entities have unbalanced documents", len(found))
				}
				return found, nil
			})
		},
	}
	cmd.Flags().Int64Var(&entityID, "entity", 0, "entity to check (0 checks every entity)")
	return cmd
}

func warningStrings(warnings []error) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Error())
	}
	return out
}

type drainView struct {
	Claimed    int      `json:"claimed"`
	Posted     int      `json:"posted"`
	Duplicates int      `json:"duplicates"`
	Retried    int      `json:"retried"`
	Failed     int      `json:"failed"`
	Warnings   []string `json:"warnings"`
}

func drainSummary(r posting.DrainReport) drainView {
	return drainView{
		Claimed:    r.Claimed,
		Posted:     r.Posted,
		Duplicates: r.Duplicates,
		Retried:    r.Retried,
		Failed:     r.Failed,
		Warnings:   warningStrings(r.Warnings),
	}
}

type sweepView struct {
	posting.SweepReport
	Totals   posting.KindReport `json:"totals"`
	Warnings []string           `json:"warnings"`
}

func sweepSummaries(reports []posting.SweepReport) []sweepView {
	out := make([]sweepView, 0, len(reports))
	for _, r := range reports {
		out = append(out, sweepView{SweepReport: r, Totals: r.Totals(), Warnings: warningStrings(r.Warnings)})
	}
	return out
}
