// Package log provides the logger used by graph packages.
package log

import (
	"os"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// DebugEnv enables debug level when set to a true value.
const DebugEnv = "GRAPH_DEBUG"

var (
	once   sync.Once
	logger *logrus.Logger
)

func debugEnabled() bool {
	debug, err := strconv.ParseBool(os.Getenv(DebugEnv))
	if err != nil {
		return false
	}
	return debug
}

// GetLogger returns the process logger. Level is read from environment on
// the first call.
func GetLogger() *logrus.Logger {
	once.Do(func() {
		logger = New()
	})
	return logger
}

// New returns a new logger instance configured from the environment.
func New() *logrus.Logger {
	l := logrus.New()
	if debugEnabled() {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}
