package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/application"
	"github.com/viralforge/mesh/services/ad-marketplace/M62-experiment-earnings-service/internal/ports"
)

type Handler struct {
	service   *application.Service
	validate  *validator.Validate
	metrics   ports.Metrics
	gatherer  prometheus.Gatherer
	readiness func(context.Context) error
}

type Options struct {
	Metrics   ports.Metrics
	Gatherer  prometheus.Gatherer
	Readiness func(context.Context) error
}

func NewHandler(service *application.Service, opts Options) *Handler {
	return &Handler{
		service:   service,
		validate:  newValidator(),
		metrics:   opts.Metrics,
		gatherer:  opts.Gatherer,
		readiness: opts.Readiness,
	}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(handler.metricsMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	if handler.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(handler.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(handler.authMiddleware)

		r.Post("/campaigns/{campaign_id}/experiments", handler.createExperiment)
		r.Get("/campaigns/{campaign_id}/experiments", handler.listExperiments)
		r.Get("/experiments/{experiment_id}", handler.getExperiment)
		r.Put("/experiments/{experiment_id}/status", handler.changeExperimentStatus)
		r.Patch("/experiments/{experiment_id}/status", handler.changeExperimentStatus)
		r.Put("/experiments/{experiment_id}/variants", handler.replaceVariants)
		r.Get("/experiments/{experiment_id}/results", handler.experimentResults)

		r.Get("/partners/me/earnings", handler.earningsSummary)
		r.Get("/partners/me/earnings/periods", handler.listEarningsPeriods)
		r.Post("/partners/me/payouts", handler.requestPayout)
		r.Get("/partners/me/payouts", handler.listPayouts)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/partners/{partner_id}/earnings-periods", handler.recordEarningsPeriod)
			r.Post("/earnings-periods/{period_id}/{action}", handler.transitionEarningsPeriod)
			r.Post("/payouts/{payout_id}/{action}", handler.reviewPayout)
		})
	})

	return r
}
