package vehicles

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/parkyard/parkyard/internal/auth"
	"github.com/parkyard/parkyard/internal/platform/httpx"
	"github.com/parkyard/parkyard/internal/shared"
)

// Handler exposes vehicle endpoints.
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

// MountRoutes registers vehicle routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.handleEnter)
	r.Get("/inside", h.handleInside)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/calculate", h.handleCalculate)
	r.Post("/{id}/exit", h.handleExit)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(shared.RoleManager))
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/restore", h.handleRestore)
	})
}

func (h *Handler) handleEnter(w http.ResponseWriter, r *http.Request) {
	var in EntryInput
	if err := httpx.Bind(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	stay, err := h.service.Enter(r.Context(), in)
	if err != nil {
		h.fail(w, "vehicle entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, stay)
}

func (h *Handler) handleInside(w http.ResponseWriter, r *http.Request) {
	stays, err := h.service.ListInside(r.Context())
	if err != nil {
		h.fail(w, "list inside", err)
		return
	}
	if stays == nil {
		stays = []Stay{}
	}
	httpx.JSON(w, http.StatusOK, stays)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stay, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get stay", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stay)
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var at time.Time
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.RespondError(w, httpx.ErrBadRequest.Wrapf("at must be RFC3339"))
			return
		}
	}
	calc, err := h.service.Calculate(r.Context(), id, at)
	if err != nil {
		h.fail(w, "calculate stay", err)
		return
	}
	httpx.JSON(w, http.StatusOK, calc)
}

func (h *Handler) handleExit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ExitInput
	if err := httpx.Bind(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.IdempotencyKey = r.Header.Get("Idempotency-Key")
	res, err := h.service.CommitExit(r.Context(), id, in)
	if err != nil {
		h.fail(w, "commit exit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stay, err := h.service.Delete(r.Context(), id, httpx.BoolQuery(r, "permanent"), r.URL.Query().Get("reason"))
	if err != nil {
		h.fail(w, "delete stay", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stay)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stay, err := h.service.Restore(r.Context(), id)
	if err != nil {
		h.fail(w, "restore stay", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stay)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
