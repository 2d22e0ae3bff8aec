package handlers

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jsvoboda/classwatch/internal/monitor"
)

// MonitorHandler controls the monitoring session over HTTP.
type MonitorHandler struct {
	monitor *monitor.Monitor
	log     *logrus.Logger
}

// NewMonitorHandler creates a monitor handler.
func NewMonitorHandler(m *monitor.Monitor, log *logrus.Logger) *MonitorHandler {
	return &MonitorHandler{monitor: m, log: log}
}

// Start handles POST /monitor/start. Starting an already running
// session is a no-op and still reports success.
func (h *MonitorHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Start(r.Context()); err != nil {
		h.log.WithError(err).Error("failed to start monitoring")
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"state": string(h.monitor.State()),
	})
}

// Stop handles POST /monitor/stop.
func (h *MonitorHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.monitor.Stop()
	respondJSON(w, http.StatusOK, map[string]string{
		"state": string(h.monitor.State()),
	})
}

// Status handles GET /monitor/status.
func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.monitor.Status())
}

// Capture handles POST /monitor/capture: one manual pipeline pass.
// Returns 409 when an automatic pass is already in flight.
func (h *MonitorHandler) Capture(w http.ResponseWriter, r *http.Request) {
	stats, err := h.monitor.Capture(r.Context())
	if err != nil {
		if errors.Is(err, monitor.ErrBusy) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.log.WithError(err).Error("manual capture failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
