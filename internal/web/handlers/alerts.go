package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jsvoboda/classwatch/internal/store"
)

// AlertsHandler serves the alert history.
type AlertsHandler struct {
	alerts store.NotificationStore
	log    *logrus.Logger
}

// NewAlertsHandler creates an alerts handler.
func NewAlertsHandler(alerts store.NotificationStore, log *logrus.Logger) *AlertsHandler {
	return &AlertsHandler{alerts: alerts, log: log}
}

// List handles GET /alerts?date=2006-01-02. Without a date it returns
// today's alerts.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = store.Date(time.Now())
	} else if _, err := time.Parse(store.DateFormat, date); err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	alerts, err := h.alerts.ListNotifications(r.Context(), date)
	if err != nil {
		h.log.WithError(err).Error("failed to list alerts")
		respondError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []store.Notification{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":   date,
		"alerts": alerts,
		"count":  len(alerts),
	})
}
