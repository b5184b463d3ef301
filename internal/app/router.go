package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/parkyard/parkyard/internal/auth"
	"github.com/parkyard/parkyard/internal/billing"
	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/observability"
	"github.com/parkyard/parkyard/internal/products"
	"github.com/parkyard/parkyard/internal/vehicles"
	"github.com/parkyard/parkyard/jobs"
	"github.com/parkyard/parkyard/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	Resolver           auth.Resolver
	AuthHandler        *auth.Handler
	BillingHandler     *billing.Handler
	VehiclesHandler    *vehicles.Handler
	CashSessionHandler *cashsession.Handler
	LedgerHandler      *ledger.Handler
	ProductsHandler    *products.Handler
	ReportHandler      *report.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with parkyard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(params.Resolver, params.Logger))

		r.Route("/session", func(r chi.Router) {
			params.CashSessionHandler.MountRoutes(r)
			params.LedgerHandler.MountSessionRoutes(r)
			if params.ReportHandler != nil {
				params.ReportHandler.MountSessionRoutes(r)
			}
		})
		params.LedgerHandler.MountRoutes(r)
		r.Route("/billing-methods", params.BillingHandler.MountRoutes)
		r.Route("/vehicles", params.VehiclesHandler.MountRoutes)
		r.Route("/products", params.ProductsHandler.MountRoutes)
		if params.ReportHandler != nil {
			r.Route("/report", params.ReportHandler.MountRoutes)
		}
	})

	return r
}
