// Package rtg implements the regular tree grammar data model (§3) and the
// schema-to-grammar translator (§4.B component B). It is adapted from the
// teacher's yang.Entry/YangType pass: a two-pass builder that resolves
// type references and accumulates diagnostics on the value it is building
// instead of aborting on the first problem.
package rtg

// ProductionKind is the XML-Schema compositor a production was derived
// from (§3).
type ProductionKind string

const (
	Sequence ProductionKind = "sequence"
	Choice   ProductionKind = "choice"
	All      ProductionKind = "all"
)

// Symbol is one element of a production's RHS: either a nonterminal (an
// element name with its own productions) or an atomic Σ member.
type Symbol struct {
	Name   string
	Atomic bool
}

// Production is one rule of the grammar: lhs -> rhs, with its compositor
// kind and occurrence bound (§3).
type Production struct {
	LHS         string
	RHS         []Symbol
	Kind        ProductionKind
	Cardinality Cardinality
}

// Grammar is G = (N, Σ, P, S) together with the type-constraint and
// attribute tables §3 attaches to it. Productions is the ordered list P;
// byLHS is a read-only index built alongside it so downstream components
// never need to linear-scan productions by name.
type Grammar struct {
	Name string
	Root string

	Productions []*Production
	byLHS       map[string][]*Production

	// Sigma is the set of atomic type labels the grammar's productions
	// reference (string, integer, decimal, ...).
	Sigma map[string]bool

	TypeConstraints map[string]*TypeConstraint
	Attributes      map[string][]AttributeDecl
}

// New returns an empty grammar ready for incremental construction.
func New(name string) *Grammar {
	return &Grammar{
		Name:            name,
		byLHS:           map[string][]*Production{},
		Sigma:           map[string]bool{},
		TypeConstraints: map[string]*TypeConstraint{},
		Attributes:      map[string][]AttributeDecl{},
	}
}

// AddProduction appends p to P and indexes it by LHS, preserving the order
// productions were discovered in (Design Notes §9: ordering is a
// load-bearing contract, not a convenience).
func (g *Grammar) AddProduction(p *Production) {
	g.Productions = append(g.Productions, p)
	g.byLHS[p.LHS] = append(g.byLHS[p.LHS], p)
	for _, sym := range p.RHS {
		if sym.Atomic {
			g.Sigma[sym.Name] = true
		}
	}
}

// ProductionsFor returns every production whose LHS is name, in discovery
// order.
func (g *Grammar) ProductionsFor(name string) []*Production {
	return g.byLHS[name]
}

// HasProduction reports whether name is the LHS of at least one production,
// i.e. whether name is a nonterminal N rather than a bare Σ member.
func (g *Grammar) HasProduction(name string) bool {
	return len(g.byLHS[name]) > 0
}

// IsAtomic reports whether name is only ever used as a Σ member.
func (g *Grammar) IsAtomic(name string) bool {
	return g.Sigma[name] && !g.HasProduction(name)
}

// Nonterminals returns N, the set of names appearing as some production's
// LHS, in first-discovery order.
func (g *Grammar) Nonterminals() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range g.Productions {
		if !seen[p.LHS] {
			seen[p.LHS] = true
			out = append(out, p.LHS)
		}
	}
	return out
}
