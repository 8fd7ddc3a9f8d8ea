// Package proof implements the proof trace (§3): the append-only ordered
// log shared by the type-preservation validator (component D) and the
// preimage/validity checker (component E) for their textual output.
// Ordering is a load-bearing contract (Design Notes §9), not a
// convenience, so Trace is a plain ordered slice with an append-only API
// rather than anything that could reorder or drop a step.
package proof

import "fmt"

// Level is one of the four severities a proof step may carry (§3).
type Level string

const (
	Info  Level = "info"
	OK    Level = "ok"
	Warn  Level = "warn"
	Error Level = "error"
)

// Step is one `{level, message}` record (§3).
type Step struct {
	Level   Level
	Message string
}

// Trace is the ordered log itself.
type Trace []Step

// Log appends a formatted step, preserving call order.
func (t *Trace) Log(level Level, format string, args ...interface{}) {
	*t = append(*t, Step{Level: level, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any step in the trace is at Error level.
func (t Trace) HasErrors() bool {
	for _, s := range t {
		if s.Level == Error {
			return true
		}
	}
	return false
}
