// Package logging constructs the structured logger threaded through
// soundsrided's components, following the teacher's practice of
// building one logger in main and passing it down to constructors.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// New builds the root logger. Session and request ids are attached
// downstream via With, not here.
func New() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
	})
	logger.SetLevel(log.InfoLevel)
	return logger
}

// ForSession returns a logger with the session id attached as a field.
func ForSession(base *log.Logger, sessionID uint32) *log.Logger {
	return base.With("session_id", sessionID)
}
