// Jobqueue - Durable Background Job Queue and Runner
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jobqueue

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/jobqueue/internal/auth"
	"github.com/tomtom215/jobqueue/internal/authz"
	"github.com/tomtom215/jobqueue/internal/middleware"
)

// Router wires handlers to routes and middleware.
type Router struct {
	handler       *Handler
	authn         *auth.Middleware
	authz         *authz.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil mw uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, authn *auth.Middleware, authzMW *authz.Middleware, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		authn:         authn,
		authz:         authzMW,
		chiMiddleware: mw,
	}
}

// Setup builds the chi route tree.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeBadRequest, "method not allowed")
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Cron trigger: authenticated inside the handler.
	r.Route("/jobs", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Get("/run", h.RunJobs)
		r.Post("/run", h.RunJobs)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(router.chiMiddleware.RateLimitLogin()).Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	r.Route("/api/v1/admin/job-queue", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(router.authn.Authenticate)

		read := router.authz.Authorize(authz.ObjectJobQueue, authz.ActionRead)
		run := router.authz.Authorize(authz.ObjectJobQueue, authz.ActionRun)
		write := router.authz.Authorize(authz.ObjectJobQueue, authz.ActionWrite)

		r.With(read).Get("/", h.QueueOverview)
		r.With(read).Get("/jobs", h.ListJobs)
		r.With(read).Get("/jobs/{id}", h.GetJob)
		r.With(read).Get("/runs", h.ListWorkerRuns)
		r.With(read).Get("/audit", h.ListAuditEvents)
		r.With(read).Get("/events", h.StreamEvents)

		r.With(run).Post("/run", h.AdminRunJobs)

		r.With(write).Post("/toggle", h.ToggleProcessing)
		r.With(write).Post("/actions", h.JobAction)
		r.With(write).Post("/jobs", h.EnqueueJob)
	})

	return r
}
