package accounting

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Handler wires the manual-entry ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/ledger/lines", h.handleCreate)
	r.Put("/ledger/lines/{id}", h.handleUpdate)
	r.Delete("/ledger/lines/{id}", h.handleDelete)
}

type manualLineRequest struct {
	Date          string          `json:"date"`
	JournalCode   string          `json:"journal_code"`
	AccountNumber string          `json:"account_number"`
	PieceNumber   string          `json:"piece_number"`
	Label         string          `json:"label"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Reference     string          `json:"reference"`
	ReferenceID   int64           `json:"reference_id"`
}

func (req manualLineRequest) input() (ManualLineInput, error) {
	in := ManualLineInput{
		JournalCode:   req.JournalCode,
		AccountNumber: req.AccountNumber,
		PieceNumber:   req.PieceNumber,
		Label:         req.Label,
		Debit:         req.Debit,
		Credit:        req.Credit,
		Reference:     req.Reference,
		ReferenceID:   req.ReferenceID,
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return ManualLineInput{}, shared.Validation("date", "expected YYYY-MM-DD")
		}
		in.Date = date
	}
	return in, nil
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, in, ok := h.decode(w, r)
	if !ok {
		return
	}
	line, err := h.service.CreateManualLine(r.Context(), actor, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validation("id", "must be numeric"))
		return
	}
	actor, in, ok := h.decode(w, r)
	if !ok {
		return
	}
	line, err := h.service.UpdateManualLine(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validation("id", "must be numeric"))
		return
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, &shared.AuthorizationError{Reason: "missing actor"})
		return
	}
	if err := h.service.DeleteManualLine(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (shared.Actor, ManualLineInput, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, &shared.AuthorizationError{Reason: "missing actor"})
		return shared.Actor{}, ManualLineInput{}, false
	}
	var req manualLineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return shared.Actor{}, ManualLineInput{}, false
	}
	in, err := req.input()
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Actor{}, ManualLineInput{}, false
	}
	return actor, in, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("ledger manual entry rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
