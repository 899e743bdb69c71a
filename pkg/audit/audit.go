// Package audit provides the waterfall analyzer's audit trail: an
// instance-scoped logger that accumulates bracketed, tagged entries
// for one analysis run, plus the helper that renders the one-line
// derivation recorded on each breakpoint. The logger is deliberately
// not a package-level singleton; concurrent runs each own their own.
package audit

import "fmt"

// Entry is one recorded audit-trail line.
type Entry struct {
	Tag     string
	Message string
}

// Logger accumulates ordered, tagged entries for a single analysis run.
type Logger struct {
	entries []Entry
}

// NewLogger returns a fresh, empty logger.
func NewLogger() *Logger {
	return &Logger{}
}

// Recordf appends a formatted entry under tag.
func (l *Logger) Recordf(tag, format string, args ...interface{}) {
	l.entries = append(l.entries, Entry{Tag: tag, Message: fmt.Sprintf(format, args...)})
}

// Entries returns every recorded entry in emission order.
func (l *Logger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Lines renders every entry as "[TAG] message".
func (l *Logger) Lines() []string {
	lines := make([]string, len(l.entries))
	for i, e := range l.entries {
		lines[i] = fmt.Sprintf("[%s] %s", e.Tag, e.Message)
	}
	return lines
}

// Derivation renders the one-line derivation string recorded on a
// breakpoint.
func Derivation(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
