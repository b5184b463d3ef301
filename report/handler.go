package report

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parkyard/parkyard/internal/platform/httpx"
	"github.com/parkyard/parkyard/internal/shared"
)

// Renderer turns HTML into PDF.
type Renderer interface {
	Ping(ctx context.Context) error
	RenderHTML(ctx context.Context, html string, paper Paper) ([]byte, error)
}

// Handler manages report endpoints.
type Handler struct {
	builder  *Builder
	renderer Renderer
	logger   *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(builder *Builder, renderer Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{builder: builder, renderer: renderer, logger: logger}
}

// MountRoutes registers service routes under /report.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
}

// MountSessionRoutes registers the per-session report under /session.
func (h *Handler) MountSessionRoutes(r chi.Router) {
	r.Get("/{id}/report.pdf", h.closingPDF)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.renderer.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) closingPDF(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	paper, err := PaperByName(r.URL.Query().Get("paper"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rep, err := h.builder.Build(r.Context(), id)
	if err != nil {
		h.fail(w, "build closing report", err)
		return
	}
	html, err := rep.HTML()
	if err != nil {
		h.fail(w, "render closing report", err)
		return
	}
	pdf, err := h.renderer.RenderHTML(r.Context(), html, paper)
	if err != nil {
		h.fail(w, "convert closing report", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=fechamento-"+strconv.FormatInt(id, 10)+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch shared.KindOf(err) {
	case shared.KindInternal, shared.KindRemote:
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
