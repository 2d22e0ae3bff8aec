// Package logging builds the shared logrus logger used across the
// monitoring pipeline.
package logging

import (
	"os"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// Fields is an alias so callers don't have to import logrus directly.
type Fields = logrus.Fields

// New returns the process-wide logger. The first call configures it;
// subsequent calls return the same instance.
func New() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetLevel(levelFromEnv())
		logger.SetFormatter(&formatter.Formatter{
			TimestampFormat: "2006-01-02 15:04:05",
			HideKeys:        false,
			NoColors:        os.Getenv("LOG_NO_COLOR") != "",
		})
	})
	return logger
}

func levelFromEnv() logrus.Level {
	lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
