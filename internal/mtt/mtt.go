// Package mtt implements the macro tree transducer data model (§3) and the
// stylesheet-to-MTT translator (§4.C component C). The output-skeleton
// variants use a closed interface with unexported marker methods so
// callers pattern-match output skeletons exhaustively rather than
// string-tagging them.
package mtt

// LHSPattern is an MTT rule's input-pattern descriptor (§3): an element
// name plus a children descriptor. The stylesheet translator only ever
// produces the "any" form (§4.C step 2: every derived input pattern is
// `name(children)`, never an enumerated child list), so Any is always
// true for rules Build produces; the enumerated form exists so the type
// is a faithful rendering of §3's data model for any future producer.
type LHSPattern struct {
	Element  string
	Any      bool
	Children []string
}

// OutputNode is the closed set of output-tree skeleton constructors (§3).
// Every variant below implements it via an unexported marker method, so
// no type outside this package can satisfy it. Go does not check type
// switches for exhaustiveness: a switch over OutputNode that misses a
// variant still compiles, and that variant reaches its default case.
type OutputNode interface {
	isOutputNode()
}

// LiteralElement constructs a concrete element in the output tree.
type LiteralElement struct {
	Name     string
	Attrs    []Attr
	Children []OutputNode
}

func (*LiteralElement) isOutputNode() {}

// Attr is one attribute of a LiteralElement or a dynamic `attribute`
// constructor: either a literal value or a single attribute-value
// template segment (§4.C step 3, Glossary).
type Attr struct {
	Name string

	IsTemplate bool
	Literal    string
	ValueExpr  string
}

// Text is a literal text node, from an `xsl:text` instruction.
type Text struct{ Literal string }

func (*Text) isOutputNode() {}

// ValueAccess reads a path expression against the matched node, from
// `xsl:value-of`.
type ValueAccess struct{ Path string }

func (*ValueAccess) isOutputNode() {}

// ApplyTemplates dispatches to another rule's state, from
// `xsl:apply-templates`. Unresolved is set when no rule's derived state
// matches Callee (Open Question ii: treated as a discarded subtree with a
// structural-coverage warning, not a hard error); Callee is left empty in
// that case so the MTT invariant "every called state exists in Q" holds
// for every non-empty Callee.
type ApplyTemplates struct {
	Select     string
	Callee     string
	Unresolved bool
}

func (*ApplyTemplates) isOutputNode() {}

// ForEach iterates a selected node set, from `xsl:for-each`. ListState is
// a fresh auxiliary identifier (§4.C step 3) for the iteration context; it
// names no rule and is not required to be a member of Q.
type ForEach struct {
	Select    string
	Body      []OutputNode
	ListState string
}

func (*ForEach) isOutputNode() {}

// If is a conditional output, from `xsl:if`.
type If struct {
	Test string
	Then []OutputNode
}

func (*If) isOutputNode() {}

// Choose is an ordered set of guarded branches with an optional trailing
// default, from `xsl:choose`/`xsl:when`/`xsl:otherwise`.
type Choose struct {
	Branches []Branch
}

func (*Choose) isOutputNode() {}

// Branch is one `xsl:when` (Otherwise=false) or the single trailing
// `xsl:otherwise` (Otherwise=true, Test="") of a Choose.
type Branch struct {
	Test      string
	Body      []OutputNode
	Otherwise bool
}

// Rule is one r ∈ R (§3): the state it fires in, the pattern and guard
// that select it, and the output skeleton it produces.
type Rule struct {
	State      string
	LHSPattern LHSPattern
	Guard      Predicate
	Output     []OutputNode

	// Mode is carried alongside State purely for diagnostics; state
	// identity already encodes it.
	Mode  string
	Match string
}

// M is the macro tree transducer M = (Q, Σ_in, Σ_out, q₀, R) (§3).
type M struct {
	Q       map[string]bool
	Q0      string
	Rules   []*Rule
	SigmaIn map[string]bool

	// SigmaOut is the set of element names appearing in any
	// LiteralElement across every rule's output (§4.C step 4).
	SigmaOut map[string]bool
}

// HasState reports whether q is a member of Q.
func (m *M) HasState(q string) bool { return m.Q[q] }

// RulesForState returns every rule whose State is q, in discovery order.
func (m *M) RulesForState(q string) []*Rule {
	var out []*Rule
	for _, r := range m.Rules {
		if r.State == q {
			out = append(out, r)
		}
	}
	return out
}
