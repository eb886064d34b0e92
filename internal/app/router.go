package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/analysis"
	analysisexport "github.com/waltergkaturuza/RetailCloud-sub000/internal/analysis/export"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/cyclecount"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/forecast"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/observability"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/picking"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/putaway"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/transfer"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/warehouse"
	"github.com/waltergkaturuza/RetailCloud-sub000/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	LedgerHandler     *ledger.Handler
	PickingHandler    *picking.Handler
	PutAwayHandler    *putaway.Handler
	CycleCountHandler *cyclecount.Handler
	TransferHandler   *transfer.Handler
	ForecastHandler   *forecast.Handler
	AnalysisHandler   *analysis.Handler
	ExportHandler     *analysisexport.Handler
	WarehouseHandler  *warehouse.Handler
	JobHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults. Every API
// surface mounts under /api/v1.
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

	r.Route("/api/v1", func(r chi.Router) {
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.PickingHandler != nil {
			params.PickingHandler.MountRoutes(r)
		}
		if params.PutAwayHandler != nil {
			params.PutAwayHandler.MountRoutes(r)
		}
		if params.CycleCountHandler != nil {
			params.CycleCountHandler.MountRoutes(r)
		}
		if params.TransferHandler != nil {
			params.TransferHandler.MountRoutes(r)
		}
		if params.ForecastHandler != nil {
			params.ForecastHandler.MountRoutes(r)
		}
		if params.WarehouseHandler != nil {
			params.WarehouseHandler.MountRoutes(r)
		}
		if params.AnalysisHandler != nil {
			params.AnalysisHandler.MountRoutes(r)
			analysisLimit := 6
			if params.Config != nil && params.Config.AnalysisRateLimit > 0 {
				analysisLimit = params.Config.AnalysisRateLimit
			}
			r.Group(func(r chi.Router) {
				r.Use(httprate.Limit(analysisLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
				params.AnalysisHandler.MountRunRoutes(r)
			})
		}
		if params.ExportHandler != nil {
			params.ExportHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
