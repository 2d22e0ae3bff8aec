// Package schedule maps wall-clock time to the configured class-hour
// windows. Resolution is a pure function; all configuration errors are
// fatal at construction time.
package schedule

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Window is one configured schedule entry. Times are "HH:MM" strings at
// minute granularity; the window contains every minute from Start to
// End inclusive.
type Window struct {
	Start string `yaml:"start" validate:"required"`
	End   string `yaml:"end" validate:"required"`
	Label string `yaml:"label" validate:"required"`
	Break bool   `yaml:"break"`
}

type fileConfig struct {
	Windows []Window `yaml:"windows" validate:"required,min=1,dive"`
}

// Resolution is the outcome of resolving a point in time. An empty
// ClassHour means no window is active; IsBreak is false in that case.
type Resolution struct {
	ClassHour string
	IsBreak   bool
}

// Active reports whether any window contains the resolved time.
func (r Resolution) Active() bool {
	return r.ClassHour != ""
}

type window struct {
	start   int // minutes since midnight
	end     int
	label   string
	isBreak bool
}

// Resolver resolves wall-clock times against an ordered window list.
// The first window containing the time wins.
type Resolver struct {
	windows []window
}

// New builds a Resolver from the given windows. Returns an error for an
// empty list, unparseable times, or a window ending before it starts.
func New(windows []Window) (*Resolver, error) {
	if err := validator.New().Struct(fileConfig{Windows: windows}); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}

	parsed := make([]window, 0, len(windows))
	for i, w := range windows {
		start, err := parseMinutes(w.Start)
		if err != nil {
			return nil, fmt.Errorf("window %d (%s): %w", i, w.Label, err)
		}
		end, err := parseMinutes(w.End)
		if err != nil {
			return nil, fmt.Errorf("window %d (%s): %w", i, w.Label, err)
		}
		if end < start {
			return nil, fmt.Errorf("window %d (%s): end %s before start %s", i, w.Label, w.End, w.Start)
		}
		parsed = append(parsed, window{start: start, end: end, label: w.Label, isBreak: w.Break})
	}

	return &Resolver{windows: parsed}, nil
}

// Load reads a YAML schedule file and builds a Resolver from it.
func Load(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schedule file: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing schedule file: %w", err)
	}

	return New(cfg.Windows)
}

// Resolve maps a wall-clock time to the active class-hour. Input is
// truncated to minute precision, matching the window granularity.
func (r *Resolver) Resolve(now time.Time) Resolution {
	m := now.Hour()*60 + now.Minute()
	for _, w := range r.windows {
		if m >= w.start && m <= w.end {
			return Resolution{ClassHour: w.label, IsBreak: w.isBreak}
		}
	}
	return Resolution{}
}

func parseMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
