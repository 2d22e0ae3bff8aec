package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/jsvoboda/classwatch/internal/config"
	"github.com/jsvoboda/classwatch/internal/decision"
	"github.com/jsvoboda/classwatch/internal/faceapi"
	"github.com/jsvoboda/classwatch/internal/logging"
	"github.com/jsvoboda/classwatch/internal/match"
	"github.com/jsvoboda/classwatch/internal/monitor"
	"github.com/jsvoboda/classwatch/internal/schedule"
	storepg "github.com/jsvoboda/classwatch/internal/store/postgres"
)

// pipeline bundles the wired components shared by serve and watch.
type pipeline struct {
	cfg      *config.Config
	log      *logrus.Logger
	pool     *storepg.Pool
	alerts   *storepg.NotificationRepository
	resolver *schedule.Resolver
	monitor  *monitor.Monitor
}

// buildPipeline loads configuration, connects the stores, and wires
// the monitoring session.
func buildPipeline(ctx context.Context) (*pipeline, error) {
	log := logging.New()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	resolver, err := schedule.Load(cfg.Schedule.Path)
	if err != nil {
		return nil, fmt.Errorf("loading schedule: %w", err)
	}

	pool, err := storepg.NewPool(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	students := storepg.NewStudentRepository(pool)
	attendance := storepg.NewAttendanceRepository(pool)
	notifications := storepg.NewNotificationRepository(pool)

	frames, err := frameSource(cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	matcher, err := buildMatcher(ctx, cfg, students, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	m := monitor.New(monitor.Deps{
		Interval: time.Duration(cfg.Monitor.IntervalSeconds) * time.Second,
		Schedule: resolver,
		Frames:   frames,
		Faces:    faceapi.NewClient(cfg.FaceService),
		Matcher:  matcher,
		Engine:   decision.New(attendance, notifications, log),
		Roster:   students,
		Alerts:   notifications,
		Log:      log,
		Metrics:  monitor.NewMetrics(prometheus.DefaultRegisterer),
	})

	return &pipeline{
		cfg:      cfg,
		log:      log,
		pool:     pool,
		alerts:   notifications,
		resolver: resolver,
		monitor:  m,
	}, nil
}

func (p *pipeline) Close() {
	p.monitor.Stop()
	if err := p.pool.Close(); err != nil {
		p.log.WithError(err).Warn("closing database pool")
	}
}

func frameSource(cfg *config.Config) (monitor.FrameSource, error) {
	if cfg.Monitor.SnapshotURL != "" {
		return monitor.NewSnapshotSource(cfg.Monitor.SnapshotURL), nil
	}
	if cfg.Monitor.FramesDir != "" {
		return monitor.NewDirSource(cfg.Monitor.FramesDir), nil
	}
	return nil, errors.New("either CAMERA_SNAPSHOT_URL or FRAMES_DIR must be set")
}

// buildMatcher picks linear scan or an HNSW index depending on the
// roster size. The index holds a startup snapshot of the embeddings;
// newly enrolled students need a restart to enter it.
func buildMatcher(ctx context.Context, cfg *config.Config, students *storepg.StudentRepository, log *logrus.Logger) (monitor.Matcher, error) {
	if cfg.Match.IndexMinRoster <= 0 {
		return match.NewMatcher(cfg.Match.Threshold), nil
	}

	identities, err := students.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading roster for index: %w", err)
	}
	if len(identities) < cfg.Match.IndexMinRoster {
		log.WithField("roster", len(identities)).Debug("roster below index threshold, using linear matching")
		return match.NewMatcher(cfg.Match.Threshold), nil
	}

	idx := match.NewIndex(cfg.Match.Threshold, identities)
	log.WithField("embeddings", idx.Len()).Info("face index built")
	return idx, nil
}
