// Package store defines the record-store contracts the monitoring
// pipeline depends on: the enrolled roster, attendance and duty-leave
// state, and the persisted alert notifications.
package store

import (
	"context"
	"time"

	"github.com/jsvoboda/classwatch/internal/roster"
)

// Attendance statuses recorded per (student, date, class hour).
const (
	StatusPresent   = "present"
	StatusAbsent    = "absent"
	StatusDutyLeave = "duty-leave"
)

// DateFormat is the calendar-date key format used across all records.
const DateFormat = "2006-01-02"

// Date formats a timestamp as a record-store date key.
func Date(t time.Time) string {
	return t.Format(DateFormat)
}

// AttendanceRecord is one attendance entry. The absence of any record
// for a (student, date, class hour) means absent without leave.
type AttendanceRecord struct {
	StudentID int64
	Date      string
	ClassHour string
	Status    string
}

// DutyLeave is an approved excused absence for a specific class hour.
type DutyLeave struct {
	StudentID int64
	Date      string
	ClassHour string
	Reason    string
	Approved  bool
}

// Notification is a persisted alert for a student matched in class
// without a valid attendance excuse. At most one exists per
// (student, date, class hour).
type Notification struct {
	ID          string    `json:"id"`
	StudentID   int64     `json:"student_id"`
	StudentName string    `json:"student_name"`
	Date        string    `json:"date"`
	ClassHour   string    `json:"class_hour"`
	Message     string    `json:"message"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}

// RosterStore manages enrolled identities.
type RosterStore interface {
	roster.Provider

	// UpsertStudent inserts or updates a student by external ID and
	// fills in the assigned internal ID.
	UpsertStudent(ctx context.Context, s *roster.Identity) error

	// SetEmbedding stores the reference embedding for a student.
	SetEmbedding(ctx context.Context, externalID string, embedding []float32) error
}

// AttendanceStore answers the excuse predicate the decision engine
// consults per matched identity.
type AttendanceStore interface {
	// HasValidExcuse reports whether a present or duty-leave record
	// exists for the student at (date, classHour).
	HasValidExcuse(ctx context.Context, studentID int64, date, classHour string) (bool, error)

	// RecordAttendance inserts or replaces an attendance record.
	RecordAttendance(ctx context.Context, rec *AttendanceRecord) error
}

// NotificationStore persists alerts and answers the duplicate
// suppression predicate.
type NotificationStore interface {
	// HasNotification reports whether an alert was already stored for
	// the student at (date, classHour).
	HasNotification(ctx context.Context, studentID int64, date, classHour string) (bool, error)

	// SaveNotification persists a new alert.
	SaveNotification(ctx context.Context, n *Notification) error

	// ListNotifications returns all alerts stored for a date, newest first.
	ListNotifications(ctx context.Context, date string) ([]Notification, error)
}
