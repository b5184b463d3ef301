package cashsession

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/parkyard/parkyard/internal/auth"
	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/platform/httpx"
	"github.com/parkyard/parkyard/internal/shared"
)

// Handler exposes the cash session transitions over HTTP.
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

// MountRoutes registers the session routes. Reopening and editing the
// initial value need a manager.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/status", h.handleStatus)
	r.Post("/open", h.handleOpen)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/close", h.handleClose)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(shared.RoleManager))
		r.Post("/{id}/reopen", h.handleReopen)
		r.Put("/{id}", h.handleUpdate)
	})
}

type initialValueRequest struct {
	InitialValue money.Amount `json:"initialValue"`
}

type closeRequest struct {
	ConfirmDestroy bool `json:"confirmDestroy"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	if err != nil {
		h.fail(w, "session status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get session", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req initialValueRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, err := h.service.Open(r.Context(), req.InitialValue)
	if err != nil {
		h.fail(w, "open session", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req closeRequest
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, h.validator, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	res, err := h.service.Close(r.Context(), id, req.ConfirmDestroy)
	if err != nil {
		h.fail(w, "close session", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleReopen(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, err := h.service.Reopen(r.Context(), id)
	if err != nil {
		h.fail(w, "reopen session", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req initialValueRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, err := h.service.UpdateInitialValue(r.Context(), id, req.InitialValue)
	if err != nil {
		h.fail(w, "update initial value", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
