package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jsvoboda/classwatch/internal/decision"
	"github.com/jsvoboda/classwatch/internal/match"
	"github.com/jsvoboda/classwatch/internal/monitor"
	"github.com/jsvoboda/classwatch/internal/schedule"
	"github.com/jsvoboda/classwatch/internal/store/mock"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	resolver, err := schedule.New([]schedule.Window{{Start: "08:00", End: "08:44", Label: "1"}})
	if err != nil {
		t.Fatalf("building schedule: %v", err)
	}

	alerts := mock.NewNotificationStore()
	m := monitor.New(monitor.Deps{
		Interval: 10 * time.Second,
		Schedule: resolver,
		Matcher:  match.NewMatcher(0.7),
		Engine:   decision.New(mock.NewAttendanceStore(), alerts, log),
		Roster:   mock.NewRosterStore(),
		Alerts:   alerts,
		Log:      log,
	})

	return NewServer("127.0.0.1", 0, Deps{
		Monitor:  m,
		Schedule: resolver,
		Alerts:   alerts,
		Log:      log,
	})
}

func TestRoutes(t *testing.T) {
	srv := testServer(t)

	cases := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/api/v1/health", http.StatusOK},
		{"GET", "/api/v1/monitor/status", http.StatusOK},
		{"GET", "/api/v1/alerts?date=2026-03-02", http.StatusOK},
		{"GET", "/api/v1/schedule/current?at=08:30", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/api/v1/nope", http.StatusNotFound},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.status {
			t.Errorf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, rec.Code)
		}
	}
}
