// Package monitor drives the periodic detection pipeline: schedule
// resolution, frame capture, detection, embedding, matching, and the
// absence decision.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jsvoboda/classwatch/internal/decision"
	"github.com/jsvoboda/classwatch/internal/faceapi"
	"github.com/jsvoboda/classwatch/internal/match"
	"github.com/jsvoboda/classwatch/internal/roster"
	"github.com/jsvoboda/classwatch/internal/schedule"
	"github.com/jsvoboda/classwatch/internal/store"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle state of a monitoring session. Suspension
// during breaks is per-cycle, not a separate state: the loop keeps
// ticking and simply performs no capture while suppressed.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateActive       State = "active"
	StateStopped      State = "stopped"
)

var (
	// ErrBusy is returned when a manual capture is requested while a
	// pass is already running, and vice versa. Requests are rejected,
	// never queued.
	ErrBusy = errors.New("a pipeline pass is already in progress")

	// ErrCannotStart wraps model initialization failures. The caller
	// may retry by calling Start again.
	ErrCannotStart = errors.New("cannot start monitoring")
)

// FrameSource acquires one decoded frame from the classroom camera.
type FrameSource interface {
	Frame(ctx context.Context) ([]byte, error)
}

// FaceAnalyzer is the detection and embedding surface of the face
// analysis service.
type FaceAnalyzer interface {
	Warmup(ctx context.Context) error
	Detect(ctx context.Context, frame []byte) ([]faceapi.Region, error)
	EmbedRegion(ctx context.Context, frame []byte, region faceapi.Region) ([]float32, error)
}

// Matcher compares probe embeddings against the roster.
type Matcher interface {
	Match(probes [][]float32, identities []roster.Identity) []match.Match
}

// PassStats summarizes one pipeline pass.
type PassStats struct {
	At         time.Time `json:"at"`
	ClassHour  string    `json:"class_hour,omitempty"`
	Suppressed bool      `json:"suppressed"`
	Faces      int       `json:"faces"`
	Probes     int       `json:"probes"`
	Matches    int       `json:"matches"`
	Alerts     int       `json:"alerts"`
}

// Status reports the session state for the control API.
type Status struct {
	State    State      `json:"state"`
	LastPass *PassStats `json:"last_pass,omitempty"`
}

// Deps are the collaborators of a monitoring session. The models
// behind Faces are shared read-only across passes after warmup.
type Deps struct {
	Interval time.Duration
	Schedule *schedule.Resolver
	Frames   FrameSource
	Faces    FaceAnalyzer
	Matcher  Matcher
	Engine   *decision.Engine
	Roster   roster.Provider
	Alerts   store.NotificationStore
	Log      *logrus.Logger
	Metrics  *Metrics

	// Ticks replaces the internal ticker when set. Used by tests to
	// drive the loop without real time.
	Ticks <-chan time.Time
}

// Monitor owns one monitoring session. All methods are safe for
// concurrent use.
type Monitor struct {
	deps Deps

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	lastPass *PassStats

	// busy is the single-slot re-entrancy guard shared by the periodic
	// loop and manual captures. Ticks that find it taken are dropped.
	busy atomic.Bool

	now func() time.Time
}

// New creates a monitoring session in the idle state.
func New(deps Deps) *Monitor {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	return &Monitor{
		deps:  deps,
		state: StateIdle,
		now:   time.Now,
	}
}

// Start initializes the models and begins the periodic loop. Calling
// Start on a session that is already initializing or active is a
// no-op; two concurrent starts perform one initialization. A failed
// initialization returns an error wrapping ErrCannotStart and leaves
// the session idle so the next Start retries. A Stop issued while
// initialization is in flight wins: the session ends up stopped and
// the loop never starts.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateActive || m.state == StateInitializing {
		m.mu.Unlock()
		return nil
	}
	m.state = StateInitializing
	m.mu.Unlock()

	if err := m.deps.Faces.Warmup(ctx); err != nil {
		m.mu.Lock()
		if m.state == StateInitializing {
			m.state = StateIdle
		}
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrCannotStart, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.state != StateInitializing {
		// Stopped while warming up. Honor the stop and never start
		// the loop.
		m.mu.Unlock()
		cancel()
		return nil
	}
	m.state = StateActive
	m.cancel = cancel
	m.mu.Unlock()

	go m.runLoop(loopCtx)

	m.deps.Log.WithField("interval", m.deps.Interval).Info("monitoring started")
	return nil
}

// Stop cancels the periodic loop. An in-flight pass finishes
// naturally; no new tick is scheduled. Stop returns immediately and is
// safe to call in any state.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.state != StateIdle {
		m.state = StateStopped
	}
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns the current state and the stats of the last pass.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{State: m.state}
	if m.lastPass != nil {
		stats := *m.lastPass
		s.LastPass = &stats
	}
	return s
}

// Capture runs one manual pipeline pass outside the periodic loop.
// Returns ErrBusy when automatic processing is in flight; manual
// requests are rejected, not queued.
func (m *Monitor) Capture(ctx context.Context) (*PassStats, error) {
	if !m.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer m.busy.Store(false)

	stats := m.runPass(ctx, m.now())
	return &stats, nil
}

func (m *Monitor) runLoop(ctx context.Context) {
	ticks := m.deps.Ticks
	if ticks == nil {
		ticker := time.NewTicker(m.deps.Interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			m.deps.Log.Info("monitoring stopped")
			return
		case now := <-ticks:
			m.tick(ctx, now)
		}
	}
}

// tick runs one automatic pass unless the previous one is still in
// flight, in which case the tick is dropped (single-slot, drop-oldest
// backpressure).
func (m *Monitor) tick(ctx context.Context, now time.Time) {
	if !m.busy.CompareAndSwap(false, true) {
		m.deps.Metrics.TicksSkipped.Inc()
		m.deps.Log.Debug("previous pass still running, skipping tick")
		return
	}

	// The pass runs off the loop goroutine so further ticks keep being
	// drained (and dropped) while it is in flight. Stopping must not
	// abort an in-flight pass, so the pass context is detached from the
	// loop's cancellation. The timeout is a hang guard only: a healthy
	// pass always finishes well within two intervals, and without the
	// bound a wedged camera or sidecar call would hold the busy slot
	// and starve every following tick.
	passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*m.deps.Interval)
	go func() {
		defer m.busy.Store(false)
		defer cancel()
		m.runPass(passCtx, now)
	}()
}

// runPass executes one detection pass. All faults below are
// recoverable: they end the pass early but never the session.
func (m *Monitor) runPass(ctx context.Context, now time.Time) PassStats {
	stats := PassStats{At: now}
	defer func() {
		m.mu.Lock()
		m.lastPass = &stats
		m.mu.Unlock()
	}()

	m.deps.Metrics.PassesTotal.Inc()

	res := m.deps.Schedule.Resolve(now)
	stats.ClassHour = res.ClassHour
	if !res.Active() || res.IsBreak {
		stats.Suppressed = true
		m.deps.Metrics.PassesSuppressed.Inc()
		return stats
	}

	frame, err := m.deps.Frames.Frame(ctx)
	if err != nil {
		m.deps.Metrics.PassErrors.Inc()
		m.deps.Log.WithError(err).Warn("frame acquisition failed")
		return stats
	}

	regions, err := m.deps.Faces.Detect(ctx, frame)
	if err != nil {
		m.deps.Metrics.PassErrors.Inc()
		m.deps.Log.WithError(err).Warn("face detection failed")
		return stats
	}
	stats.Faces = len(regions)
	m.deps.Metrics.FacesDetected.Add(float64(len(regions)))

	probes := make([][]float32, 0, len(regions))
	for _, region := range regions {
		probe, err := m.deps.Faces.EmbedRegion(ctx, frame, region)
		if err != nil {
			m.deps.Log.WithError(err).Debug("embedding failed, skipping region")
			continue
		}
		probes = append(probes, probe)
	}
	stats.Probes = len(probes)
	if len(probes) == 0 {
		return stats
	}

	identities, err := m.deps.Roster.List(ctx)
	if err != nil {
		m.deps.Metrics.PassErrors.Inc()
		m.deps.Log.WithError(err).Warn("roster fetch failed")
		return stats
	}

	matches := m.deps.Matcher.Match(probes, identities)
	stats.Matches = len(matches)
	m.deps.Metrics.MatchesTotal.Add(float64(len(matches)))

	alerts := m.deps.Engine.Decide(ctx, matches, res.ClassHour, store.Date(now), res.IsBreak)
	for i := range alerts {
		if err := m.deps.Alerts.SaveNotification(ctx, &alerts[i]); err != nil {
			m.deps.Metrics.PassErrors.Inc()
			m.deps.Log.WithError(err).WithField("student", alerts[i].StudentName).
				Warn("failed to persist alert")
			continue
		}
		stats.Alerts++
		m.deps.Metrics.AlertsEmitted.Inc()
		m.deps.Log.WithFields(logrus.Fields{
			"student":    alerts[i].StudentName,
			"class_hour": alerts[i].ClassHour,
			"confidence": fmt.Sprintf("%.3f", alerts[i].Confidence),
		}).Info("absence alert emitted")
	}

	return stats
}
