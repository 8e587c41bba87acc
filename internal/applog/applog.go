// Package applog wraps github.com/charmbracelet/log with the solver's
// milestone/error vocabulary: tree build done, iteration N complete,
// exploitability, stop acknowledged, and error-kind-tagged failures.
package applog

import (
	"errors"
	"os"

	"github.com/charmbracelet/log"

	"github.com/ehrlich-postflop/solver-core/pkg/apperr"
)

// Logger wraps a *log.Logger with solver-specific milestone helpers.
type Logger struct {
	*log.Logger
}

// New builds a Logger writing to stderr at the given level.
func New(level log.Level) *Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	return &Logger{Logger: l}
}

// TreeBuilt logs the tree-build milestone with node-count metadata.
func (l *Logger) TreeBuilt(subtreeSize int, memoryBytes int64) {
	l.Info("tree build done", "nodes", subtreeSize, "memory_bytes", memoryBytes)
}

// Iteration logs completion of training iteration n.
func (l *Logger) Iteration(n int) {
	l.Info("iteration complete", "iter", n)
}

// Exploitability logs a computed exploitability value, in the tree's
// payoff (chip) units.
func (l *Logger) Exploitability(value float64) {
	l.Info("exploitability", "exploitability", value)
}

// StopAcknowledged logs that a Stop() request was observed and honored.
func (l *Logger) StopAcknowledged(atIteration int) {
	l.Info("stop acknowledged", "iter", atIteration)
}

// Err logs a single terminal line for an apperr.Error (or any error),
// including the error-kind tag when available.
func (l *Logger) Err(err error) {
	kind := apperr.Logic
	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		kind = ae.Kind
		msg = ae.Msg
	}
	l.Error(msg, "error_kind", kind.String(), "err", err)
}
