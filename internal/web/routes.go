package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsvoboda/classwatch/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	monitorHandler := handlers.NewMonitorHandler(deps.Monitor, deps.Log)
	alertsHandler := handlers.NewAlertsHandler(deps.Alerts, deps.Log)
	scheduleHandler := handlers.NewScheduleHandler(deps.Schedule)

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/monitor/start", monitorHandler.Start)
		r.Post("/monitor/stop", monitorHandler.Stop)
		r.Get("/monitor/status", monitorHandler.Status)
		r.Post("/monitor/capture", monitorHandler.Capture)

		r.Get("/alerts", alertsHandler.List)

		r.Get("/schedule/current", scheduleHandler.Current)
	})
}
