package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/backoffice/internal/accounting"
	"github.com/odyssey-erp/backoffice/internal/api"
	"github.com/odyssey-erp/backoffice/internal/app"
	"github.com/odyssey-erp/backoffice/internal/commerce"
	"github.com/odyssey-erp/backoffice/internal/inventory"
	"github.com/odyssey-erp/backoffice/jobs"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.InTestMode() {
				slog.Default().Info("test mode detected, skipping runtime startup")
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
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *container) error {
	inspector := asynq.NewInspector(redisOpts(c.cfg))
	defer func() {
		if err := inspector.Close(); err != nil {
			c.logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger: c.logger,
		Config: c.cfg,
		API: api.NewHandler(api.Params{
			Logger:    c.logger,
			Ledger:    c.ledger,
			Reports:   c.reports,
			Stock:     c.inventory,
			Queue:     c.queue,
			RateLimit: c.cfg.APIRateLimit,
		}),
		LedgerHandler:    accounting.NewHandler(c.logger, c.ledger),
		InventoryHandler: inventory.NewHandler(c.logger, c.inventory),
		CommerceHandler:  commerce.NewHandler(c.logger, c.commerce),
		JobHandler:       jobs.NewHandler(inspector, c.logger),
		Metrics:          c.metrics,
	})

	server := &http.Server{
		Addr:              c.cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       c.cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      c.cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		c.logger.Error("http shutdown", slog.Any("error", err))
		return err
	}
	c.logger.Info("http server stopped")
	return nil
}
