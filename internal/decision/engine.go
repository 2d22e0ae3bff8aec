// Package decision decides which matched identities warrant a new
// absence alert.
package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jsvoboda/classwatch/internal/match"
	"github.com/jsvoboda/classwatch/internal/store"
	"github.com/sirupsen/logrus"
)

// Engine applies the alert rules to a batch of matches. It only reads
// external state and returns the alerts to emit; persisting them is
// the caller's side effect.
type Engine struct {
	attendance    store.AttendanceStore
	notifications store.NotificationStore
	log           *logrus.Logger
}

// New creates a decision engine over the given lookups.
func New(attendance store.AttendanceStore, notifications store.NotificationStore, log *logrus.Logger) *Engine {
	return &Engine{
		attendance:    attendance,
		notifications: notifications,
		log:           log,
	}
}

// Decide returns the alerts warranted by the given matches. Outside an
// active class hour, or during a break, nothing is alerted. A student
// with a valid excuse, or an already stored alert for the same
// (date, class hour), is skipped. A lookup failure skips only that
// student; the next pass retries.
func (e *Engine) Decide(ctx context.Context, matches []match.Match, classHour, date string, isBreak bool) []store.Notification {
	if isBreak || classHour == "" {
		return nil
	}

	var alerts []store.Notification
	for _, m := range matches {
		student := m.Identity

		excused, err := e.attendance.HasValidExcuse(ctx, student.ID, date, classHour)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"student":    student.ExternalID,
				"class_hour": classHour,
				"error":      err,
			}).Warn("attendance lookup failed, skipping student for this pass")
			continue
		}
		if excused {
			continue
		}

		exists, err := e.notifications.HasNotification(ctx, student.ID, date, classHour)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"student":    student.ExternalID,
				"class_hour": classHour,
				"error":      err,
			}).Warn("notification lookup failed, skipping student for this pass")
			continue
		}
		if exists {
			continue
		}

		alerts = append(alerts, store.Notification{
			ID:          uuid.NewString(),
			StudentID:   student.ID,
			StudentName: student.Name,
			Date:        date,
			ClassHour:   classHour,
			Message: fmt.Sprintf("%s seen in class during hour %s with no attendance record or approved leave",
				student.Name, classHour),
			Confidence: m.Confidence,
			CreatedAt:  time.Now().UTC(),
		})
	}

	return alerts
}
