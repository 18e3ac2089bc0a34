// Package ctfdebug holds the process-wide debug-print toggle for the CTF
// machinery. It is initialized lazily on first use from the CTFLD_DEBUG
// environment variable; initialization is idempotent.
package ctfdebug

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once    sync.Once
	enabled bool
	logger  *logrus.Logger
)

// Init reads CTFLD_DEBUG and configures the debug logger. Safe to call any
// number of times; only the first call does work.
func Init() {
	once.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		switch strings.ToLower(os.Getenv("CTFLD_DEBUG")) {
		case "", "0", "off", "false":
			enabled = false
			logger.SetLevel(logrus.WarnLevel)
		default:
			enabled = true
			logger.SetLevel(logrus.DebugLevel)
		}
	})
}

// Enabled reports whether debug printing is on.
func Enabled() bool {
	Init()
	return enabled
}

// Printf emits a debug line when the toggle is on.
func Printf(format string, args ...any) {
	Init()
	if enabled {
		logger.Debugf(format, args...)
	}
}

// WithField returns an entry carrying a structured field, for callers that
// want more than a formatted line.
func WithField(key string, value any) *logrus.Entry {
	Init()
	return logger.WithField(key, value)
}
