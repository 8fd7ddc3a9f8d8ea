package rtg

import (
	"errors"
	"fmt"
)

// Sentinel causes for schema defects (§7 Kind 3), named in the same style
// as the teacher's semErr* catalog (vartan/grammar/semantic_error.go):
// one error value per distinct diagnostic, wrapped with position and
// detail at the call site.
var (
	ErrInvalidSchema       = errors.New("schema is not well-formed")
	ErrNoRootElement       = errors.New("schema declares no top-level element")
	ErrUndefinedType       = errors.New("type reference does not resolve to a known type")
	ErrCircularDefinition  = errors.New("element definition is circular")
	ErrInconsistentCard    = errors.New("cardinality hi is less than lo")
	ErrUnsupportedContent  = errors.New("complex type content model is not sequence, choice, all, or simpleContent")
	ErrMissingElementName  = errors.New("element declaration has neither name nor ref")
	ErrDanglingRef         = errors.New("ref does not resolve to a known element")
)

// Severity classifies a Diagnostic the way the proof trace levels do (§3).
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one finding produced while building a grammar from a
// schema. Errors (Kind 3, §7) abort the build; warnings (e.g. the
// unknown-type-downgrades-to-string policy, §4.B) do not.
type Diagnostic struct {
	Severity Severity
	Cause    error
	Detail   string
	Row      int
	Col      int
}

func (d *Diagnostic) Error() string {
	if d.Detail == "" {
		return fmt.Sprintf("%s: %v", d.Severity, d.Cause)
	}
	return fmt.Sprintf("%s: %v: %s", d.Severity, d.Cause, d.Detail)
}

// Diagnostics is an ordered list of Diagnostic, matching the ordering
// guarantee the proof trace relies on elsewhere in the pipeline.
type Diagnostics []*Diagnostic

// HasErrors reports whether any diagnostic in the list is an error rather
// than a warning.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
