/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/acronis/go-authcache/log"
)

// URLPrefix is a prefix of all API routes.
const URLPrefix = "/api/auth/v1"

// systemEndpoints are not logged unless they fail.
var systemEndpoints = []string{"/metrics", "/healthz"}

// HealthCheck reports whether the service is able to serve requests.
type HealthCheck func(ctx context.Context) error

// RouterOpts represents options for NewRouter.
type RouterOpts struct {
	// Metrics is used to collect HTTP metrics. Disabled if nil.
	Metrics *Metrics

	// MetricsHandler serves the /metrics endpoint (e.g., promhttp.Handler()). The endpoint is not registered if nil.
	MetricsHandler http.Handler

	// HealthCheck is called by the /healthz endpoint. The service is considered healthy if nil.
	HealthCheck HealthCheck
}

type healthCheckResponse struct {
	Healthy bool `json:"healthy"`
}

// NewRouter creates a chi.Router serving the credential API.
func NewRouter(cfg *Config, registry CredentialRegistry, logger log.FieldLogger, opts RouterOpts) (chi.Router, error) {
	limiter, err := newVerifyLimiter(cfg)
	if err != nil {
		return nil, err
	}
	h := &handler{
		registry:    registry,
		limiter:     limiter,
		metrics:     opts.Metrics,
		maxBodySize: uint64(cfg.MaxRequestBodySize),
	}

	router := chi.NewRouter()
	router.Use(
		requestIDMiddleware,
		loggingMiddleware(logger, opts.Metrics, systemEndpoints),
		recoveryMiddleware(opts.Metrics),
	)

	router.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		RespondError(rw, http.StatusNotFound, NewError(ErrCodeNotFound, "Not found."),
			GetLoggerFromContext(r.Context()), opts.Metrics)
	})
	router.MethodNotAllowed(func(rw http.ResponseWriter, r *http.Request) {
		RespondError(rw, http.StatusMethodNotAllowed, NewError(ErrCodeMethodNotAllowed, "Method not allowed."),
			GetLoggerFromContext(r.Context()), opts.Metrics)
	})

	router.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		reqLogger := GetLoggerFromContext(r.Context())
		if opts.HealthCheck != nil {
			if hcErr := opts.HealthCheck(r.Context()); hcErr != nil {
				reqLogger.Error("health check failed", log.Error(hcErr))
				RespondCodeAndJSON(rw, http.StatusServiceUnavailable, healthCheckResponse{Healthy: false}, reqLogger)
				return
			}
		}
		RespondJSON(rw, healthCheckResponse{Healthy: true}, reqLogger)
	})
	if opts.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	router.Route(URLPrefix, func(r chi.Router) {
		r.Get("/cache", h.cacheStats)
		r.Route("/subjects/{"+urlParamSubject+"}", func(r chi.Router) {
			r.Delete("/", h.forget)
			r.Post("/verify", h.verify)
			r.Put("/credential", h.setCredential)
			r.Get("/token", h.token)
		})
	})
	return router, nil
}
