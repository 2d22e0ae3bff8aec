package postgres

import (
	"context"
	"fmt"

	"github.com/jsvoboda/classwatch/internal/store"
)

// NotificationRepository provides PostgreSQL-backed alert storage.
type NotificationRepository struct {
	pool *Pool
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(pool *Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// HasNotification reports whether an alert already exists for the
// student at (date, classHour).
func (r *NotificationRepository) HasNotification(ctx context.Context, studentID int64, date, classHour string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE student_id = $1 AND date = $2 AND class_hour = $3
		)
	`

	var ok bool
	if err := r.pool.QueryRow(ctx, query, studentID, date, classHour).Scan(&ok); err != nil {
		return false, fmt.Errorf("query notification for student %d: %w", studentID, err)
	}
	return ok, nil
}

// SaveNotification persists a new alert. The unique constraint on
// (student_id, date, class_hour) backs up the engine's duplicate
// suppression; a conflicting insert is dropped silently.
func (r *NotificationRepository) SaveNotification(ctx context.Context, n *store.Notification) error {
	query := `
		INSERT INTO notifications (id, student_id, date, class_hour, message, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, date, class_hour) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		n.ID, n.StudentID, n.Date, n.ClassHour, n.Message, n.Confidence, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("save notification for student %d: %w", n.StudentID, err)
	}
	return nil
}

// ListNotifications returns all alerts stored for a date, newest first.
func (r *NotificationRepository) ListNotifications(ctx context.Context, date string) ([]store.Notification, error) {
	query := `
		SELECT n.id, n.student_id, s.name, n.date::text, n.class_hour,
		       n.message, n.confidence, n.created_at
		FROM notifications n
		JOIN students s ON s.id = n.student_id
		WHERE n.date = $1
		ORDER BY n.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []store.Notification
	for rows.Next() {
		var n store.Notification
		if err := rows.Scan(&n.ID, &n.StudentID, &n.StudentName, &n.Date, &n.ClassHour,
			&n.Message, &n.Confidence, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}
