package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/relief-dispatch/api/controllers"
	"github.com/angelmondragon/relief-dispatch/api/middleware"
	"github.com/angelmondragon/relief-dispatch/pkg/config"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
	"github.com/angelmondragon/relief-dispatch/pkg/metrics"
	pkgredis "github.com/angelmondragon/relief-dispatch/pkg/redis"
)

// Deps carries everything the operator routes call into.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         controllers.Pinger
	Redis      *pkgredis.Client
	Gatherer   prometheus.Gatherer
	HTTP       *metrics.HTTPMetrics
	Requests   controllers.RequestService
	Dispatcher controllers.Dispatcher
	Backfiller controllers.Backfiller
	Lister     controllers.AssignmentLister
	Duplicates controllers.DuplicateReviewer
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTP),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// a nil *Client in an interface would not read as disabled
	var redisPinger controllers.Pinger
	var idemStore pkgredis.IdempotencyStore
	if d.Redis != nil {
		redisPinger = d.Redis
		idemStore = d.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, redisPinger))
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	idem := middleware.Idempotency(idemStore, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/requests", func(r chi.Router) {
			r.With(idem).Post("/", controllers.RequestSubmit(d.Requests, logg))
			r.Route("/{requestId}", func(r chi.Router) {
				r.Get("/", controllers.RequestGet(d.Requests, logg))
				r.With(idem).Post("/messages", controllers.RequestAddMessage(d.Requests, logg))
				r.Post("/enqueue", controllers.RequestEnqueue(d.Requests, d.Dispatcher, logg))
				r.Post("/auto-match", controllers.RequestAutoMatch(d.Dispatcher, logg))
				r.Get("/assignments", controllers.RequestAssignments(d.Lister, logg))
			})
		})

		r.With(idem).Post("/assignments/{assignmentId}/cancel", controllers.AssignmentCancel(d.Dispatcher, logg))

		r.Route("/dispatch", func(r chi.Router) {
			r.Get("/queue", controllers.DispatchQueue(d.Backfiller))
			r.Post("/backfill", controllers.DispatchBackfill(d.Backfiller, logg))
		})

		r.Route("/duplicates", func(r chi.Router) {
			r.Get("/", controllers.DuplicatesList(d.Duplicates, logg))
			r.With(idem).Post("/merge", controllers.DuplicatesMerge(d.Duplicates, logg))
			r.Post("/not-duplicate", controllers.DuplicatesNotDuplicate(d.Duplicates, logg))
		})
	})

	return r
}
