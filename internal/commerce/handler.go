package commerce

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Handler exposes document completion over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the commerce handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/commerce/sales", serve(h, func(d *Sale, t time.Time) { d.Date = t }, h.service.CompleteSale))
	r.Post("/commerce/purchases", serve(h, func(d *Purchase, t time.Time) { d.Date = t }, h.service.CompletePurchase))
	r.Post("/commerce/expenses", serve(h, func(d *Outlay, t time.Time) { d.Date = t }, h.service.RecordExpense))
	r.Post("/commerce/charges", serve(h, func(d *Outlay, t time.Time) { d.Date = t }, h.service.RecordCharge))
	r.Post("/commerce/bank-operations", serve(h, func(d *BankOperation, t time.Time) { d.Date = t }, h.service.RecordBankOperation))
	r.Post("/commerce/client-payments", serve(h, func(d *Payment, t time.Time) { d.Date = t }, h.service.RecordClientPayment))
	r.Post("/commerce/supplier-payments", serve(h, func(d *Payment, t time.Time) { d.Date = t }, h.service.RecordSupplierPayment))
}

type response struct {
	Result
	Warnings []string `json:"warnings"`
}

func serve[T any](h *Handler, setDate func(*T, time.Time), run func(context.Context, shared.Actor, T) (Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.ActorFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, &shared.AuthorizationError{Reason: "missing actor"})
			return
		}
		doc, err := decodeDocument(r.Body, setDate)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		result, err := run(r.Context(), actor, doc)
		if err != nil {
			h.logger.Warn("commerce request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		out := response{Result: result, Warnings: make([]string, 0, len(result.Warnings))}
		for _, warning := range result.Warnings {
			out.Warnings = append(out.Warnings, warning.Error())
		}
		httpx.JSON(w, http.StatusCreated, out)
	}
}

// decodeDocument reads the document and its optional YYYY-MM-DD date.
func decodeDocument[T any](body io.Reader, setDate func(*T, time.Time)) (T, error) {
	var doc T
	raw, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return doc, shared.Validation("body", "unreadable body")
	}
	var dated struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, shared.Validation("body", "malformed JSON")
	}
	if err := json.Unmarshal(raw, &dated); err != nil {
		return doc, shared.Validation("body", "malformed JSON")
	}
	if dated.Date != "" {
		t, err := time.Parse("2006-01-02", dated.Date)
		if err != nil {
			return doc, shared.Validation("date", "expected YYYY-MM-DD")
		}
		setDate(&doc, t)
	}
	return doc, nil
}
