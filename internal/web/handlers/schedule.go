package handlers

import (
	"net/http"
	"time"

	"github.com/jsvoboda/classwatch/internal/schedule"
)

// ScheduleHandler exposes schedule resolution for inspection.
type ScheduleHandler struct {
	resolver *schedule.Resolver
}

// NewScheduleHandler creates a schedule handler.
func NewScheduleHandler(resolver *schedule.Resolver) *ScheduleHandler {
	return &ScheduleHandler{resolver: resolver}
}

// Current handles GET /schedule/current. An optional at=15:04 query
// parameter resolves an arbitrary clock time instead of now.
func (h *ScheduleHandler) Current(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if at := r.URL.Query().Get("at"); at != "" {
		clock, err := time.Parse("15:04", at)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid time, expected HH:MM")
			return
		}
		now = time.Date(now.Year(), now.Month(), now.Day(),
			clock.Hour(), clock.Minute(), 0, 0, now.Location())
	}

	res := h.resolver.Resolve(now)
	respondJSON(w, http.StatusOK, map[string]any{
		"class_hour": res.ClassHour,
		"is_break":   res.IsBreak,
		"active":     res.Active(),
	})
}
