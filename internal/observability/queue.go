package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StatusCounter reports posting queue depth per status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// QueueCollector samples the posting queue on every scrape.
type QueueCollector struct {
	counter StatusCounter
	logger  *slog.Logger
	timeout time.Duration
	depth   *prometheus.Desc
	up      *prometheus.Desc
}

// NewQueueCollector builds a collector over counter.
func NewQueueCollector(counter StatusCounter, logger *slog.Logger) *QueueCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueCollector{
		counter: counter,
		logger:  logger,
		timeout: 2 * time.Second,
		depth: prometheus.NewDesc("backoffice_posting_queue_rows",
			"Posting queue rows by status.", []string{"status"}, nil),
		up: prometheus.NewDesc("backoffice_posting_queue_up",
			"Whether the last posting queue sample succeeded.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depth
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	counts, err := c.counter.CountByStatus(ctx)
	if err != nil {
		c.logger.Warn("posting queue sample failed", slog.Any("error", err))
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(n), status)
	}
}
