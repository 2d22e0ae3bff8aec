package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	FaceService FaceServiceConfig
	Match       MatchConfig
	Monitor     MonitorConfig
	Schedule    ScheduleConfig
	Database    DatabaseConfig
	SIS         SISConfig
}

type FaceServiceConfig struct {
	URL             string  // face analysis service base URL
	Dim             int     // embedding dimensionality, must match the served model
	DetectThreshold float64 // minimum detection score, exclusive
	CropSize        int     // face crops are scaled to CropSize x CropSize before embedding
}

type MatchConfig struct {
	Threshold      float64 // minimum cosine similarity, exclusive
	IndexMinRoster int     // build an HNSW index when the roster reaches this size (0 = never)
}

type MonitorConfig struct {
	IntervalSeconds int    // seconds between automatic passes
	SnapshotURL     string // IP camera still-image endpoint
	FramesDir       string // directory frame source, used when SnapshotURL is empty
}

type ScheduleConfig struct {
	Path string // YAML file with class-hour windows
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type SISConfig struct {
	DatabaseURL string // MariaDB DSN of the school information system (read-only roster import)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		FaceService: FaceServiceConfig{
			URL:             os.Getenv("FACE_SERVICE_URL"),
			Dim:             envInt("EMBEDDING_DIM", 512),
			DetectThreshold: envFloat("DETECT_THRESHOLD", 0.5),
			CropSize:        envInt("FACE_CROP_SIZE", 160),
		},
		Match: MatchConfig{
			Threshold:      envFloat("MATCH_THRESHOLD", 0.7),
			IndexMinRoster: envInt("MATCH_INDEX_MIN_ROSTER", 0),
		},
		Monitor: MonitorConfig{
			IntervalSeconds: envInt("MONITOR_INTERVAL", 10),
			SnapshotURL:     os.Getenv("CAMERA_SNAPSHOT_URL"),
			FramesDir:       os.Getenv("FRAMES_DIR"),
		},
		Schedule: ScheduleConfig{
			Path: envDefault("SCHEDULE_PATH", "schedule.yaml"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		SIS: SISConfig{
			DatabaseURL: os.Getenv("SIS_DATABASE_URL"),
		},
	}
}

// Validate checks the invariants the pipeline cannot recover from at
// runtime. Called once at startup; a failure here aborts the process.
func (c *Config) Validate() error {
	if c.FaceService.Dim <= 0 {
		return errors.New("embedding dimensionality must be positive")
	}
	if c.FaceService.DetectThreshold <= 0 || c.FaceService.DetectThreshold >= 1 {
		return fmt.Errorf("detection threshold %.2f outside (0, 1)", c.FaceService.DetectThreshold)
	}
	if c.Match.Threshold <= 0 || c.Match.Threshold >= 1 {
		return fmt.Errorf("match threshold %.2f outside (0, 1)", c.Match.Threshold)
	}
	if c.Monitor.IntervalSeconds <= 0 {
		return errors.New("monitor interval must be positive")
	}
	return nil
}
