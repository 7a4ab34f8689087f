package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/api"
	"github.com/odyssey-erp/backoffice/internal/observability"
	"github.com/odyssey-erp/backoffice/internal/posting"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

func TestLoadConfigDefaultsAndValidation(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://u:p@db:5432/bo")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 5, cfg.PostingMaxAttempts)
	require.Equal(t, 30*time.Second, cfg.PostingBackoff)
	require.Equal(t, "@every 1m", cfg.PostingDrainCron)
	require.Equal(t, int32(10), cfg.PGMaxConns)
	require.False(t, cfg.IsProduction())

	t.Setenv("POSTING_MAX_ATTEMPTS", "0")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "POSTING_MAX_ATTEMPTS")

	t.Setenv("POSTING_MAX_ATTEMPTS", "3")
	t.Setenv("BACKFILL_BATCH", "-1")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "BACKFILL_BATCH")
}

func TestLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("dropped")
	logger.Warn("kept", slog.Int("entity_id", 4))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "kept", rec["msg"])
	require.Equal(t, float64(4), rec["entity_id"])
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

type queueOnly struct {
	got posting.QueueQuery
}

func (q *queueOnly) List(_ context.Context, query posting.QueueQuery) ([]posting.QueueItem, error) {
	q.got = query
	return []posting.QueueItem{}, nil
}

func TestRouterPublicAndActorRoutes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	queue := &queueOnly{}
	router := NewRouter(RouterParams{
		Logger:  logger,
		Config:  &Config{AppEnv: "development", AppRequestTimeout: time.Second},
		API:     api.NewHandler(api.Params{Logger: logger, Queue: queue}),
		Metrics: observability.NewMetrics(),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posting/queue", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/posting/queue?status=failed", nil)
	req.Header.Set(HeaderEntityID, "7")
	req.Header.Set(HeaderUserID, "3")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(7), queue.got.EntityID)
	require.Equal(t, posting.StatusFailed, queue.got.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `backoffice_http_requests_total{code="403",route="/posting/queue"} 1`)
}

func TestActorFromHeaders(t *testing.T) {
	var seen shared.Actor
	h := ActorFromHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderEntityID, "2")
	req.Header.Set(HeaderRole, "accountant")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, shared.Actor{EntityID: 2, Role: "accountant"}, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderEntityID, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
