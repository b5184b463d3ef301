package ledger

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/parkyard/parkyard/internal/auth"
	"github.com/parkyard/parkyard/internal/platform/httpx"
	"github.com/parkyard/parkyard/internal/shared"
)

// Handler exposes ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountSessionRoutes registers the per-session reads under /session.
func (h *Handler) MountSessionRoutes(r chi.Router) {
	r.Get("/{id}/ledger", h.handleLedger)
	r.Get("/{id}/transactions", h.handleTransactions)
}

// MountRoutes registers expense and transaction routes at the root.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/expenses", h.handleExpense)
	r.With(auth.RequireRole(shared.RoleManager)).Delete("/transactions/{id}", h.handleDelete)
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	totals, err := h.service.SessionLedger(r.Context(), id)
	if err != nil {
		h.fail(w, "session ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	txs, err := h.service.ListTransactions(r.Context(), id, httpx.BoolQuery(r, "includeDeleted"))
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	if txs == nil {
		txs = []Transaction{}
	}
	httpx.JSON(w, http.StatusOK, txs)
}

func (h *Handler) handleExpense(w http.ResponseWriter, r *http.Request) {
	var in ExpenseInput
	if err := httpx.Bind(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.RecordExpense(r.Context(), in)
	if err != nil {
		h.fail(w, "record expense", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	deleted, err := h.service.DeleteTransaction(r.Context(), id, httpx.BoolQuery(r, "permanent"))
	if err != nil {
		h.fail(w, "delete transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, deleted)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
