package convert

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Logger writes diagnostics as SQL comments so that output stays replayable.
// Debug lines appear only in verbose mode; warnings always appear.
type Logger struct {
	w       io.Writer
	verbose bool
}

// NewLogger returns a Logger writing to w.
func NewLogger(w io.Writer, verbose bool) *Logger {
	return &Logger{w: w, verbose: verbose}
}

// Debug prints args on one "--" line. Continuation lines of a multi-line arg
// are commented out as well.
func (l *Logger) Debug(args ...string) {
	if l == nil || !l.verbose {
		return
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, "--")
	for _, a := range args {
		parts = append(parts, commentOut(a))
	}
	fmt.Fprintln(l.w, strings.Join(parts, " "))
}

// Debugf is Debug with formatting.
func (l *Logger) Debugf(format string, args ...any) {
	l.Debug(fmt.Sprintf(format, args...))
}

// Timing logs an elapsed duration in milliseconds.
func (l *Logger) Timing(d time.Duration) {
	l.Debugf("%.3f ms", float64(d.Microseconds())/1000)
}

// Warnf prints a "-- warning:" line regardless of verbosity.
func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		return
	}
	fmt.Fprintln(l.w, "-- warning: "+commentOut(fmt.Sprintf(format, args...)))
}

func commentOut(s string) string {
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = "-- " + lines[i]
	}
	return strings.Join(lines, "\n")
}
