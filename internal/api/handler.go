// Package api exposes the read models of the back office over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/backoffice/internal/accounting"
	"github.com/odyssey-erp/backoffice/internal/accounting/reports"
	"github.com/odyssey-erp/backoffice/internal/inventory"
	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/posting"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// LedgerReader lists posted lines.
type LedgerReader interface {
	ListLines(ctx context.Context, actor shared.Actor, q accounting.LineQuery) ([]accounting.Line, error)
}

// ReportReader builds the Balance and Grand Livre.
type ReportReader interface {
	Balance(ctx context.Context, actor shared.Actor, f reports.Filter) (reports.Balance, error)
	GrandLivre(ctx context.Context, actor shared.Actor, f reports.Filter) (reports.GrandLivre, error)
}

// StockReader lists stock rows and movements.
type StockReader interface {
	ListStock(ctx context.Context, actor shared.Actor, q inventory.StockQuery) ([]inventory.StockRow, error)
	ListMovements(ctx context.Context, actor shared.Actor, q inventory.MovementQuery) ([]inventory.Movement, error)
}

// QueueReader lists the posting queue audit trail.
type QueueReader interface {
	List(ctx context.Context, q posting.QueueQuery) ([]posting.QueueItem, error)
}

// Handler serves the read routes.
type Handler struct {
	logger  *slog.Logger
	ledger  LedgerReader
	reports ReportReader
	stock   StockReader
	queue   QueueReader
	limit   int
}

// Params groups the readers. Nil readers leave their routes unmounted.
type Params struct {
	Logger  *slog.Logger
	Ledger  LedgerReader
	Reports ReportReader
	Stock   StockReader
	Queue   QueueReader
	// RateLimit is the per-client request budget per minute; 0 means 120.
	RateLimit int
}

// NewHandler constructs the read API.
func NewHandler(p Params) *Handler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := p.RateLimit
	if limit <= 0 {
		limit = 120
	}
	return &Handler{logger: logger, ledger: p.Ledger, reports: p.Reports, stock: p.Stock, queue: p.Queue, limit: limit}
}

// MountRoutes registers the read routes, rate limited per entity and client IP.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(h.limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP, keyByEntity)))
		if h.ledger != nil {
			r.Get("/ledger/lines", h.lines)
		}
		if h.reports != nil {
			r.Get("/ledger/balance", h.balance)
			r.Get("/ledger/grand-livre", h.grandLivre)
		}
		if h.stock != nil {
			r.Get("/inventory/stock", h.stockRows)
			r.Get("/inventory/movements", h.movements)
		}
		if h.queue != nil {
			r.Get("/posting/queue", h.postingQueue)
		}
	})
}

func keyByEntity(r *http.Request) (string, error) {
	actor, _ := shared.ActorFromContext(r.Context())
	return strconv.FormatInt(actor.EntityID, 10), nil
}

func (h *Handler) lines(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	p := params{values: r.URL.Query()}
	q := accounting.LineQuery{
		From:          p.date("from"),
		To:            p.date("to"),
		JournalCode:   p.str("journal"),
		AccountNumber: p.str("account"),
		ReferenceType: strings.ToUpper(p.str("reference_type")),
		ReferenceID:   p.int64("reference_id"),
		Limit:         int(p.int64("limit")),
	}
	if !h.check(w, p) {
		return
	}
	lines, err := h.ledger.ListLines(r.Context(), actor, q)
	h.respond(w, r, lines, err)
}

func (h *Handler) reportFilter(w http.ResponseWriter, r *http.Request) (reports.Filter, bool) {
	p := params{values: r.URL.Query()}
	f := reports.Filter{
		From:        p.date("from"),
		To:          p.date("to"),
		JournalCode: p.str("journal"),
		Class:       p.str("class"),
	}
	return f, h.check(w, p)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	f, ok := h.reportFilter(w, r)
	if !ok {
		return
	}
	balance, err := h.reports.Balance(r.Context(), actor, f)
	h.respond(w, r, balance, err)
}

func (h *Handler) grandLivre(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	f, ok := h.reportFilter(w, r)
	if !ok {
		return
	}
	gl, err := h.reports.GrandLivre(r.Context(), actor, f)
	h.respond(w, r, gl, err)
}

func (h *Handler) stockRows(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	p := params{values: r.URL.Query()}
	q := inventory.StockQuery{
		ProductID:   p.int64("product_id"),
		WarehouseID: p.int64("warehouse_id"),
		Limit:       int(p.int64("limit")),
	}
	if !h.check(w, p) {
		return
	}
	rows, err := h.stock.ListStock(r.Context(), actor, q)
	h.respond(w, r, rows, err)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	p := params{values: r.URL.Query()}
	q := inventory.MovementQuery{
		ProductID:   p.int64("product_id"),
		WarehouseID: p.int64("warehouse_id"),
		TransferID:  p.int64("transfer_id"),
		Type:        inventory.MovementType(strings.ToUpper(p.str("type"))),
		From:        p.date("from"),
		To:          p.date("to"),
		Limit:       int(p.int64("limit")),
	}
	if !h.check(w, p) {
		return
	}
	movements, err := h.stock.ListMovements(r.Context(), actor, q)
	h.respond(w, r, movements, err)
}

func (h *Handler) postingQueue(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	p := params{values: r.URL.Query()}
	q := posting.QueueQuery{
		EntityID: actor.EntityID,
		Status:   posting.Status(strings.ToUpper(p.str("status"))),
		Kind:     posting.Kind(strings.ToUpper(p.str("kind"))),
		Limit:    int(p.int64("limit")),
	}
	if !h.check(w, p) {
		return
	}
	if q.Kind != "" && !q.Kind.Valid() {
		httpx.RespondError(w, shared.Validation("kind", "unknown kind %q", q.Kind))
		return
	}
	items, err := h.queue.List(r.Context(), q)
	h.respond(w, r, items, err)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, &shared.AuthorizationError{Reason: "missing actor"})
		return shared.Actor{}, false
	}
	return actor, true
}

func (h *Handler) check(w http.ResponseWriter, p params) bool {
	if p.err != nil {
		httpx.RespondError(w, p.err)
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		h.logger.Warn("read request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

// params parses query values and keeps the first error.
type params struct {
	values url.Values
	err    error
}

func (p *params) str(key string) string {
	return strings.TrimSpace(p.values.Get(key))
}

func (p *params) int64(key string) int64 {
	raw := p.str(key)
	if raw == "" || p.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		p.err = shared.Validation(key, "must be a non-negative integer")
		return 0
	}
	return v
}

func (p *params) date(key string) time.Time {
	raw := p.str(key)
	if raw == "" || p.err != nil {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		p.err = shared.Validation(key, "expected YYYY-MM-DD")
		return time.Time{}
	}
	return t
}
