package monitor

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jsvoboda/classwatch/internal/decision"
	"github.com/jsvoboda/classwatch/internal/faceapi"
	"github.com/jsvoboda/classwatch/internal/match"
	"github.com/jsvoboda/classwatch/internal/roster"
	"github.com/jsvoboda/classwatch/internal/schedule"
	"github.com/jsvoboda/classwatch/internal/store/mock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
)

// stubFrames returns a fixed frame and counts calls.
type stubFrames struct {
	calls atomic.Int32
	frame []byte
	err   error
}

func (s *stubFrames) Frame(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

// stubFaces is a scriptable FaceAnalyzer.
type stubFaces struct {
	warmups atomic.Int32

	regions    []faceapi.Region
	detectErr  error
	embeddings [][]float32
	embedErr   error

	// blockDetect and blockWarmup, when set, make the call wait until
	// the channel is closed. Used to hold a pass or an initialization
	// in flight.
	blockDetect chan struct{}
	blockWarmup chan struct{}

	mu         sync.Mutex
	warmupErr  error
	embedCalls int
}

func (s *stubFaces) setWarmupErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warmupErr = err
}

func (s *stubFaces) Warmup(ctx context.Context) error {
	s.warmups.Add(1)
	if s.blockWarmup != nil {
		<-s.blockWarmup
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warmupErr
}

func (s *stubFaces) Detect(ctx context.Context, frame []byte) ([]faceapi.Region, error) {
	if s.blockDetect != nil {
		<-s.blockDetect
	}
	if s.detectErr != nil {
		return nil, s.detectErr
	}
	return s.regions, nil
}

func (s *stubFaces) EmbedRegion(ctx context.Context, frame []byte, region faceapi.Region) ([]float32, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.embedCalls >= len(s.embeddings) {
		return nil, errors.New("no scripted embedding left")
	}
	emb := s.embeddings[s.embedCalls]
	s.embedCalls++
	return emb, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// classAt builds a resolver whose only window contains the given time
// as class hour "1". With isBreak it is a break window instead.
func classAt(t *testing.T, at time.Time, isBreak bool) *schedule.Resolver {
	t.Helper()
	clock := at.Format("15:04")
	r, err := schedule.New([]schedule.Window{{Start: clock, End: clock, Label: "1", Break: isBreak}})
	if err != nil {
		t.Fatalf("building schedule: %v", err)
	}
	return r
}

// emptySchedule resolves every time to "no active class".
func emptySchedule(t *testing.T) *schedule.Resolver {
	t.Helper()
	r, err := schedule.New([]schedule.Window{{Start: "00:00", End: "00:00", Label: "never"}})
	if err != nil {
		t.Fatalf("building schedule: %v", err)
	}
	return r
}

type fixture struct {
	monitor       *Monitor
	frames        *stubFrames
	faces         *stubFaces
	notifications *mock.NotificationStore
	attendance    *mock.AttendanceStore
	ticks         chan time.Time
	metrics       *Metrics
	now           time.Time
}

func newFixture(t *testing.T, resolver *schedule.Resolver) *fixture {
	t.Helper()

	rosterStore := mock.NewRosterStore()
	student := roster.Identity{Name: "A", ExternalID: "s-001"}
	if err := rosterStore.UpsertStudent(context.Background(), &student); err != nil {
		t.Fatalf("enrolling test student: %v", err)
	}
	if err := rosterStore.SetEmbedding(context.Background(), "s-001", []float32{1, 0}); err != nil {
		t.Fatalf("setting test embedding: %v", err)
	}

	f := &fixture{
		frames: &stubFrames{frame: []byte("jpeg-bytes")},
		faces: &stubFaces{
			regions:    []faceapi.Region{{BBox: []float64{10, 10, 60, 60}, Score: 0.9}},
			embeddings: [][]float32{{0.99, 0.01}},
		},
		notifications: mock.NewNotificationStore(),
		attendance:    mock.NewAttendanceStore(),
		ticks:         make(chan time.Time),
		metrics:       NewMetrics(nil),
		now:           time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	log := quietLogger()
	f.monitor = New(Deps{
		Interval: 10 * time.Second,
		Schedule: resolver,
		Frames:   f.frames,
		Faces:    f.faces,
		Matcher:  match.NewMatcher(0.7),
		Engine:   decision.New(f.attendance, f.notifications, log),
		Roster:   rosterStore,
		Alerts:   f.notifications,
		Log:      log,
		Metrics:  f.metrics,
		Ticks:    f.ticks,
	})
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.monitor.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(f.monitor.Stop)
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStart_Idempotent(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, classAt(t, now, false))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.monitor.Start(context.Background()); err != nil {
				t.Errorf("concurrent Start() failed: %v", err)
			}
		}()
	}
	wg.Wait()
	t.Cleanup(f.monitor.Stop)

	waitFor(t, "active state", func() bool { return f.monitor.State() == StateActive })
	if n := f.faces.warmups.Load(); n != 1 {
		t.Errorf("expected exactly 1 warmup across concurrent starts, got %d", n)
	}
}

func TestStart_InitializationFailureIsRetryable(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, classAt(t, now, false))
	f.faces.setWarmupErr(errors.New("model download failed"))

	err := f.monitor.Start(context.Background())
	if !errors.Is(err, ErrCannotStart) {
		t.Fatalf("expected ErrCannotStart, got %v", err)
	}
	if f.monitor.State() != StateIdle {
		t.Errorf("expected idle state after failed start, got %s", f.monitor.State())
	}

	// Clearing the fault lets the next start succeed.
	f.faces.setWarmupErr(nil)
	f.start(t)
	waitFor(t, "active state", func() bool { return f.monitor.State() == StateActive })
}

func TestStop_DuringInitializationWins(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, classAt(t, now, false))
	f.faces.blockWarmup = make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.monitor.Start(context.Background())
	}()
	waitFor(t, "warmup in flight", func() bool { return f.faces.warmups.Load() == 1 })

	f.monitor.Stop()
	if f.monitor.State() != StateStopped {
		t.Fatalf("expected stopped state during initialization, got %s", f.monitor.State())
	}

	close(f.faces.blockWarmup)
	if err := <-errCh; err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if f.monitor.State() != StateStopped {
		t.Errorf("expected Stop to win over a completing Start, got %s", f.monitor.State())
	}

	// The loop must not be running: nothing may consume a tick.
	select {
	case f.ticks <- f.now:
		t.Fatal("monitoring loop consumed a tick after an explicit Stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStop_DuringFailedInitialization(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, classAt(t, now, false))
	f.faces.blockWarmup = make(chan struct{})
	f.faces.setWarmupErr(errors.New("model download failed"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.monitor.Start(context.Background())
	}()
	waitFor(t, "warmup in flight", func() bool { return f.faces.warmups.Load() == 1 })

	f.monitor.Stop()
	close(f.faces.blockWarmup)

	if err := <-errCh; !errors.Is(err, ErrCannotStart) {
		t.Fatalf("expected ErrCannotStart, got %v", err)
	}
	if f.monitor.State() != StateStopped {
		t.Errorf("expected failed Start to leave an explicit Stop in place, got %s", f.monitor.State())
	}
}

func TestTick_EmitsAlertEndToEnd(t *testing.T) {
	f := newFixture(t, classAt(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), false))
	f.start(t)

	f.ticks <- f.now
	waitFor(t, "completed pass", func() bool {
		s := f.monitor.Status()
		return s.LastPass != nil && s.LastPass.Alerts == 1
	})

	alert := f.notifications.All()[0]
	if alert.StudentName != "A" {
		t.Errorf("expected alert for student A, got %s", alert.StudentName)
	}
	if alert.ClassHour != "1" {
		t.Errorf("expected class hour 1, got %s", alert.ClassHour)
	}
	if alert.Date != "2026-03-02" {
		t.Errorf("expected date 2026-03-02, got %s", alert.Date)
	}

	last := f.monitor.Status().LastPass
	if last.Faces != 1 || last.Matches != 1 || last.Alerts != 1 {
		t.Errorf("unexpected pass stats: %+v", last)
	}
}

func TestTick_SecondPassSuppressedByStoredAlert(t *testing.T) {
	f := newFixture(t, classAt(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), false))
	f.faces.embeddings = [][]float32{{0.99, 0.01}, {0.99, 0.01}}
	f.start(t)

	f.ticks <- f.now
	waitFor(t, "first pass completion", func() bool {
		return len(f.notifications.All()) == 1 && !f.monitor.busy.Load()
	})

	f.ticks <- f.now
	waitFor(t, "second pass", func() bool {
		return testutil.ToFloat64(f.metrics.PassesTotal) == 2
	})

	if n := len(f.notifications.All()); n != 1 {
		t.Errorf("expected duplicate alert to be suppressed, got %d alerts", n)
	}
}

func TestTick_SuppressedDuringBreak(t *testing.T) {
	f := newFixture(t, classAt(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), true))
	f.start(t)

	f.ticks <- f.now
	waitFor(t, "suppressed pass", func() bool {
		s := f.monitor.Status()
		return s.LastPass != nil && s.LastPass.Suppressed
	})

	if n := f.frames.calls.Load(); n != 0 {
		t.Errorf("expected no frame capture during a break, got %d", n)
	}
	if n := len(f.notifications.All()); n != 0 {
		t.Errorf("expected no alerts during a break, got %d", n)
	}
}

func TestTick_SuppressedOutsideClassHours(t *testing.T) {
	f := newFixture(t, emptySchedule(t))
	f.start(t)

	f.ticks <- f.now
	waitFor(t, "suppressed pass", func() bool {
		s := f.monitor.Status()
		return s.LastPass != nil && s.LastPass.Suppressed
	})

	if n := f.frames.calls.Load(); n != 0 {
		t.Errorf("expected no frame capture outside class hours, got %d", n)
	}
}

func TestTick_DroppedWhilePassInFlight(t *testing.T) {
	f := newFixture(t, classAt(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), false))
	f.faces.blockDetect = make(chan struct{})
	f.start(t)

	f.ticks <- f.now
	waitFor(t, "pass in flight", func() bool { return f.frames.calls.Load() == 1 })

	// Second tick fires while the first pass is blocked in detection.
	f.ticks <- f.now
	waitFor(t, "skipped tick", func() bool {
		return testutil.ToFloat64(f.metrics.TicksSkipped) == 1
	})

	close(f.faces.blockDetect)
	waitFor(t, "pass completion", func() bool { return len(f.notifications.All()) == 1 })

	if n := f.frames.calls.Load(); n != 1 {
		t.Errorf("expected the dropped tick to never capture, got %d captures", n)
	}
}

func TestStop_ResponsiveWhilePassInFlight(t *testing.T) {
	f := newFixture(t, classAt(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), false))
	f.faces.blockDetect = make(chan struct{})
	f.start(t)

	f.ticks <- f.now
	waitFor(t, "pass in flight", func() bool { return f.frames.calls.Load() == 1 })

	stopped := make(chan struct{})
	go func() {
		f.monitor.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop() blocked behind an in-flight pass")
	}
	if f.monitor.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", f.monitor.State())
	}

	// The in-flight pass still completes and persists its alert.
	close(f.faces.blockDetect)
	waitFor(t, "in-flight pass completion", func() bool { return len(f.notifications.All()) == 1 })
}

func TestCapture_Manual(t *testing.T) {
	f := newFixture(t, classAt(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), false))
	f.monitor.now = func() time.Time { return f.now }

	stats, err := f.monitor.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() failed: %v", err)
	}
	if stats.Alerts != 1 {
		t.Errorf("expected one alert from manual capture, got %d", stats.Alerts)
	}
	if len(f.notifications.All()) != 1 {
		t.Errorf("expected alert persisted, got %d", len(f.notifications.All()))
	}
}

func TestCapture_RejectedWhileBusy(t *testing.T) {
	f := newFixture(t, classAt(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), false))
	f.faces.blockDetect = make(chan struct{})
	f.start(t)

	f.ticks <- f.now
	waitFor(t, "pass in flight", func() bool { return f.frames.calls.Load() == 1 })

	if _, err := f.monitor.Capture(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy for manual capture during a pass, got %v", err)
	}

	close(f.faces.blockDetect)
}

func TestRunPass_FrameFailureIsRecoverable(t *testing.T) {
	f := newFixture(t, classAt(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), false))
	f.frames.err = errors.New("camera offline")
	f.start(t)

	f.ticks <- f.now
	waitFor(t, "failed pass", func() bool {
		return testutil.ToFloat64(f.metrics.PassErrors) == 1 && !f.monitor.busy.Load()
	})

	// Session survives; a later healthy tick alerts.
	f.frames.err = nil
	f.ticks <- f.now
	waitFor(t, "recovery", func() bool { return len(f.notifications.All()) == 1 })

	if f.monitor.State() != StateActive {
		t.Errorf("expected session to stay active after a recoverable fault, got %s", f.monitor.State())
	}
}

func TestRunPass_EmbedFailureSkipsRegion(t *testing.T) {
	f := newFixture(t, classAt(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), false))
	f.faces.embedErr = errors.New("bad crop")
	f.monitor.now = func() time.Time { return f.now }

	stats, err := f.monitor.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() failed: %v", err)
	}
	if stats.Faces != 1 {
		t.Errorf("expected the region to be detected, got %d", stats.Faces)
	}
	if stats.Probes != 0 || stats.Alerts != 0 {
		t.Errorf("expected failed embedding to skip the region: %+v", stats)
	}
}
