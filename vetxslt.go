// Package vetxslt implements the external interface of the pipeline
// (§6): parse the three inputs, run the subset linter (component A),
// translate both schemas into regular tree grammars (component B) and
// the stylesheet into a macro tree transducer (component C), then run
// the type-preservation validator (component D) and the preimage and
// validity check (component E) and bundle everything into one Result.
//
// Modeled on goyang's top-level Modules type (yang.go and modules.go): a
// thin orchestration layer over independently-buildable components,
// reporting every defect it finds on one accumulated value rather than
// stopping at the first one wherever the defect's kind allows it.
package vetxslt

import (
	"fmt"

	"github.com/vetxslt/vetxslt/internal/lint"
	"github.com/vetxslt/vetxslt/internal/mtt"
	"github.com/vetxslt/vetxslt/internal/preimage"
	"github.com/vetxslt/vetxslt/internal/proof"
	"github.com/vetxslt/vetxslt/internal/rtg"
	"github.com/vetxslt/vetxslt/internal/typecheck"
	"github.com/vetxslt/vetxslt/internal/xtree"
)

// Kind is one of the five error categories §7 defines. Kind1-Kind3 halt
// the pipeline; Kind4 and Kind5 never do and so never appear as a Kind
// value (they surface as plain data on Result instead).
type Kind string

const (
	// KindMalformedInput is an input that does not parse as XML at all.
	KindMalformedInput Kind = "malformed-input"
	// KindSubsetViolation is a stylesheet construct outside the
	// analyzable subset, or a required attribute missing from one.
	KindSubsetViolation Kind = "subset-violation"
	// KindSchemaDefect is an undefined type reference, a circular
	// definition, or an inconsistent cardinality bound that a schema
	// build could not safely default its way past.
	KindSchemaDefect Kind = "schema-defect"
)

// Diagnostic is the common shape every halting error implements: a kind,
// a path locating the defect, and the usual error string.
type Diagnostic interface {
	error
	Kind() Kind
	Path() string
}

// diagnostic is the concrete Diagnostic every wrap* constructor below
// returns.
type diagnostic struct {
	kind  Kind
	path  string
	cause error
}

func (d *diagnostic) Kind() Kind   { return d.kind }
func (d *diagnostic) Path() string { return d.path }
func (d *diagnostic) Error() string {
	if d.path == "" {
		return fmt.Sprintf("%s: %v", d.kind, d.cause)
	}
	return fmt.Sprintf("%s: %v (%s)", d.kind, d.cause, d.path)
}
func (d *diagnostic) Unwrap() error { return d.cause }

func wrapParseError(role string, err error) error {
	if pe, ok := err.(*xtree.ParseError); ok {
		return &diagnostic{kind: KindMalformedInput, path: fmt.Sprintf("%s:offset %d", role, pe.Offset), cause: pe}
	}
	return &diagnostic{kind: KindMalformedInput, path: role, cause: err}
}

func wrapSchemaDefect(role string, err error) error {
	return &diagnostic{kind: KindSchemaDefect, path: role, cause: err}
}

func wrapSubsetViolation(d *lint.Diagnostic) error {
	return &diagnostic{kind: KindSubsetViolation, path: d.Path, cause: d}
}

// Result bundles every artifact and finding the pipeline produces (§3
// "Overall result"): `{valid, subset_check, source_grammar,
// target_grammar, mtt, type_validation, preimage, validity}`.
type Result struct {
	Valid bool

	SubsetCheck *lint.Result

	SourceGrammar *rtg.Grammar
	TargetGrammar *rtg.Grammar
	MTT           *mtt.M

	TypeValidation *typecheck.Result
	Preimage       *preimage.Result
	Validity       *preimage.ValidityResult

	Proof proof.Trace
}
