package inventory

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/inventory/entries", h.handleMovement(MovementIn))
	r.Post("/inventory/exits", h.handleMovement(MovementOut))
	r.Post("/inventory/transfers", h.handleTransfer)
	r.Post("/inventory/reconciliations", h.handleReconcile)
}

type movementRequest struct {
	ProductID   int64           `json:"product_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Date        string          `json:"date"`
	Note        string          `json:"note"`
}

type transferRequest struct {
	OriginWarehouseID      int64  `json:"origin_warehouse_id"`
	DestinationWarehouseID int64  `json:"destination_warehouse_id"`
	Date                   string `json:"date"`
	Note                   string `json:"note"`
	Lines                  []struct {
		ProductID int64           `json:"product_id"`
		Quantity  decimal.Decimal `json:"quantity"`
		UnitCost  decimal.Decimal `json:"unit_cost"`
	} `json:"lines"`
}

type reconcileRequest struct {
	Date   string `json:"date"`
	Counts []struct {
		StockRowID int64           `json:"stock_row_id"`
		Counted    decimal.Decimal `json:"counted"`
	} `json:"counts"`
}

func (h *Handler) handleMovement(typ MovementType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}
		var req movementRequest
		if !h.decode(w, r, &req) {
			return
		}
		date, err := parseDate("date", req.Date)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in := MovementInput{
			EntityID:    actor.EntityID,
			ProductID:   req.ProductID,
			WarehouseID: req.WarehouseID,
			Quantity:    req.Quantity,
			Date:        date,
			Note:        req.Note,
			ActorID:     actor.UserID,
		}
		var mv Movement
		if typ == MovementIn {
			mv, err = h.service.RecordEntry(r.Context(), in)
		} else {
			mv, err = h.service.RecordExit(r.Context(), in)
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, mv)
	}
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := TransferInput{
		EntityID:               actor.EntityID,
		OriginWarehouseID:      req.OriginWarehouseID,
		DestinationWarehouseID: req.DestinationWarehouseID,
		Date:                   date,
		Note:                   req.Note,
		ActorID:                actor.UserID,
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, TransferLineInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: l.UnitCost})
	}
	result, err := h.service.Transfer(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"transfer":  result.Header,
		"movements": result.Movements,
		"value":     result.Value,
		"warnings":  warningMessages(result.Warnings),
	})
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req reconcileRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := ReconcileInput{EntityID: actor.EntityID, Date: date, ActorID: actor.UserID}
	for _, c := range req.Counts {
		in.Counts = append(in.Counts, Count{StockRowID: c.StockRowID, Counted: c.Counted})
	}
	outcomes, err := h.service.Reconcile(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, outcomes)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, &shared.AuthorizationError{Reason: "missing actor"})
		return shared.Actor{}, false
	}
	return actor, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("inventory request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}

func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, shared.Validation(field, "expected YYYY-MM-DD")
	}
	return t, nil
}

func warningMessages(warnings []error) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Error())
	}
	return out
}
