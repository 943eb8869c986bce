// Package logging builds the process-wide logrus logger.
package logging

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout.  Production uses the JSON
// formatter; other environments get full-timestamp text.  debug forces the
// debug level regardless of level.
func New(env, level string, debug bool) *log.Logger {
	logger := log.New()
	logger.SetOutput(os.Stdout)
	if env == "production" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	if debug {
		lvl = log.DebugLevel
	}
	logger.SetLevel(lvl)
	return logger
}
