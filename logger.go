package webdrill

import (
	"go.uber.org/zap"
)

// Logger is the per-session step reporter scenarios use to annotate
// progress. It is a thin layer over zap, tagged with the session identity,
// and interleaves safely with log-buffer activity.
type Logger struct {
	s *zap.SugaredLogger
}

// NewLogger returns a Logger tagged with the given identity. A nil base
// falls back to a no-op logger.
func NewLogger(base *zap.Logger, identity string) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{s: base.Sugar().With("identity", identity)}
}

// Step records the start of a scenario step.
func (l *Logger) Step(format string, args ...any) {
	l.s.Infof("* "+format, args...)
}

// Done records the completion of the current step.
func (l *Logger) Done(format string, args ...any) {
	l.s.Infof("✓ "+format, args...)
}

// Warn records a non-fatal problem, such as a diagnostics write that
// failed for one session.
func (l *Logger) Warn(format string, args ...any) {
	l.s.Warnf(format, args...)
}

// Error records a failure.
func (l *Logger) Error(format string, args ...any) {
	l.s.Errorf(format, args...)
}
