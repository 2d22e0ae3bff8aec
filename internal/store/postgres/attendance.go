package postgres

import (
	"context"
	"fmt"

	"github.com/jsvoboda/classwatch/internal/store"
)

// AttendanceRepository provides PostgreSQL-backed attendance and
// duty-leave storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// HasValidExcuse reports whether the student has a present or
// duty-leave attendance record, or an approved duty leave, for the
// given date and class hour.
func (r *AttendanceRepository) HasValidExcuse(ctx context.Context, studentID int64, date, classHour string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM attendance
			WHERE student_id = $1 AND date = $2 AND class_hour = $3
			  AND status IN ($4, $5)
		) OR EXISTS (
			SELECT 1 FROM duty_leaves
			WHERE student_id = $1 AND date = $2 AND class_hour = $3
			  AND approved
		)
	`

	var ok bool
	err := r.pool.QueryRow(ctx, query, studentID, date, classHour,
		store.StatusPresent, store.StatusDutyLeave).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("query excuse for student %d: %w", studentID, err)
	}
	return ok, nil
}

// RecordAttendance inserts or replaces an attendance record.
func (r *AttendanceRepository) RecordAttendance(ctx context.Context, rec *store.AttendanceRecord) error {
	query := `
		INSERT INTO attendance (student_id, date, class_hour, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, date, class_hour) DO UPDATE
		SET status = EXCLUDED.status
	`

	if _, err := r.pool.Exec(ctx, query, rec.StudentID, rec.Date, rec.ClassHour, rec.Status); err != nil {
		return fmt.Errorf("record attendance for student %d: %w", rec.StudentID, err)
	}
	return nil
}

// RecordDutyLeave inserts a duty-leave record.
func (r *AttendanceRepository) RecordDutyLeave(ctx context.Context, dl *store.DutyLeave) error {
	query := `
		INSERT INTO duty_leaves (student_id, date, class_hour, reason, approved)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.pool.Exec(ctx, query, dl.StudentID, dl.Date, dl.ClassHour, dl.Reason, dl.Approved); err != nil {
		return fmt.Errorf("record duty leave for student %d: %w", dl.StudentID, err)
	}
	return nil
}
