// Package diag accumulates the engine's non-fatal, user-visible state: the
// per-session warning vector (§7 "warnings are accumulated in a per-session
// vector and printed lazily") and a line-oriented trace/JIT event log used
// to report recording and compilation activity.
package diag

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/ncruces/go-strftime"
)

// Warning is one accumulated non-fatal condition, e.g. a coercion that
// dropped precision (§4.3 [EXPANDED] Warnings).
type Warning struct {
	When    time.Time
	Message string
}

// Session collects warnings for one top-level call and logs trace/JIT
// events as they happen. A nil *Session is valid and silently discards
// everything, so callers that don't care about diagnostics need not guard
// every call site with a nil check.
type Session struct {
	Warnings []Warning

	out   io.Writer
	color bool
}

// NewSession opens a diagnostics session writing its event log to w.
// Color is enabled only when w looks like a terminal (via go-isatty), so
// piped or redirected output stays plain text.
func NewSession(w io.Writer) *Session {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Session{out: w, color: color}
}

// Stderr is the common case: a session logging to os.Stderr.
func Stderr() *Session { return NewSession(os.Stderr) }

// Warn accumulates a warning; it is not printed until Flush (§7 "printed
// lazily").
func (s *Session) Warn(format string, args ...any) {
	if s == nil {
		return
	}
	s.Warnings = append(s.Warnings, Warning{When: timeNow(), Message: fmt.Sprintf(format, args...)})
}

// Flush prints every accumulated warning and clears the vector.
func (s *Session) Flush() {
	if s == nil || s.out == nil {
		return
	}
	for _, w := range s.Warnings {
		s.logLine("warning", w.When, w.Message)
	}
	s.Warnings = s.Warnings[:0]
}

// TraceEvent logs one recorder/optimizer/codegen event: nodes is the IR
// node count and codeBytes the size of any native code produced, both
// rendered in human units via go-humanize so a dump of trace statistics
// reads as "512 nodes, 4.1 kB" rather than raw integers.
func (s *Session) TraceEvent(stage string, traceID string, nodes int, codeBytes int) {
	if s == nil || s.out == nil {
		return
	}
	msg := fmt.Sprintf("trace %s: %s (%s, %s)", stage, traceID,
		humanize.Comma(int64(nodes))+" nodes", humanize.Bytes(uint64(codeBytes)))
	s.logLine("jit", timeNow(), msg)
}

func (s *Session) logLine(kind string, when time.Time, msg string) {
	ts := strftime.Format("%Y-%m-%d %H:%M:%S", when)
	if s.color {
		fmt.Fprintf(s.out, "\x1b[2m%s\x1b[0m [%s] %s\n", ts, kind, msg)
		return
	}
	fmt.Fprintf(s.out, "%s [%s] %s\n", ts, kind, msg)
}

// timeNow is a var, not time.Now directly, only so tests can deterministically
// stub it; production code never overrides it.
var timeNow = time.Now
