// Package mock provides in-memory implementations of the store
// interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jsvoboda/classwatch/internal/roster"
	"github.com/jsvoboda/classwatch/internal/store"
)

func key(studentID int64, date, classHour string) string {
	return fmt.Sprintf("%s/%s/%d", date, classHour, studentID)
}

// RosterStore is an in-memory implementation of store.RosterStore.
type RosterStore struct {
	mu       sync.RWMutex
	students []roster.Identity
	nextID   int64

	// Error injection
	ListError error
}

// NewRosterStore creates an empty in-memory roster.
func NewRosterStore() *RosterStore {
	return &RosterStore{nextID: 1}
}

// List returns the enrolled identities ordered by ID.
func (m *RosterStore) List(ctx context.Context) ([]roster.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]roster.Identity, len(m.students))
	copy(out, m.students)
	return out, nil
}

// UpsertStudent inserts or updates a student by external ID.
func (m *RosterStore) UpsertStudent(ctx context.Context, s *roster.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.students {
		if m.students[i].ExternalID == s.ExternalID {
			m.students[i].Name = s.Name
			s.ID = m.students[i].ID
			return nil
		}
	}
	s.ID = m.nextID
	m.nextID++
	m.students = append(m.students, *s)
	return nil
}

// SetEmbedding stores the reference embedding for a student.
func (m *RosterStore) SetEmbedding(ctx context.Context, externalID string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.students {
		if m.students[i].ExternalID == externalID {
			m.students[i].Embedding = embedding
			return nil
		}
	}
	return fmt.Errorf("student %s not found", externalID)
}

// AttendanceStore is an in-memory implementation of store.AttendanceStore.
type AttendanceStore struct {
	mu      sync.RWMutex
	excused map[string]bool

	// Error injection
	ExcuseError error

	// ExcuseErrorFor injects a lookup failure for a single student.
	ExcuseErrorFor map[int64]error
}

// NewAttendanceStore creates an empty in-memory attendance store.
func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{
		excused:        make(map[string]bool),
		ExcuseErrorFor: make(map[int64]error),
	}
}

// SetExcused marks a student as excused for (date, classHour).
func (m *AttendanceStore) SetExcused(studentID int64, date, classHour string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.excused[key(studentID, date, classHour)] = true
}

// HasValidExcuse reports whether the student was marked excused.
func (m *AttendanceStore) HasValidExcuse(ctx context.Context, studentID int64, date, classHour string) (bool, error) {
	if m.ExcuseError != nil {
		return false, m.ExcuseError
	}
	if err := m.ExcuseErrorFor[studentID]; err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.excused[key(studentID, date, classHour)], nil
}

// RecordAttendance marks the student excused when the status is a
// valid excuse.
func (m *AttendanceStore) RecordAttendance(ctx context.Context, rec *store.AttendanceRecord) error {
	if rec.Status == store.StatusPresent || rec.Status == store.StatusDutyLeave {
		m.SetExcused(rec.StudentID, rec.Date, rec.ClassHour)
	}
	return nil
}

// NotificationStore is an in-memory implementation of store.NotificationStore.
type NotificationStore struct {
	mu            sync.RWMutex
	notifications []store.Notification

	// Error injection
	HasError  error
	SaveError error
}

// NewNotificationStore creates an empty in-memory notification store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

// HasNotification reports whether an alert exists for the key.
func (m *NotificationStore) HasNotification(ctx context.Context, studentID int64, date, classHour string) (bool, error) {
	if m.HasError != nil {
		return false, m.HasError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.notifications {
		if n.StudentID == studentID && n.Date == date && n.ClassHour == classHour {
			return true, nil
		}
	}
	return false, nil
}

// SaveNotification stores an alert.
func (m *NotificationStore) SaveNotification(ctx context.Context, n *store.Notification) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, *n)
	return nil
}

// ListNotifications returns stored alerts for a date, newest first.
func (m *NotificationStore) ListNotifications(ctx context.Context, date string) ([]store.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []store.Notification
	for _, n := range m.notifications {
		if n.Date == date {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// All returns every stored alert regardless of date.
func (m *NotificationStore) All() []store.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}
