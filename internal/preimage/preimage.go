// Package preimage implements the preimage & validity component (§4.E
// component E): for each MTT rule, a per-rule preimage (an input pattern
// plus the constraints that govern it); then a pattern-cover test of
// L(G_S) ⊆ pre_M(L(G_T)), reporting counterexamples for anything
// uncovered. Like internal/typecheck, it never materializes a concrete
// tree — every step is a symbolic scan over the grammar/MTT values §4.B
// and §4.C already built, sharing internal/proof.Trace for its ordered,
// machine-checkable output.
package preimage

import (
	"fmt"
	"strings"

	"github.com/vetxslt/vetxslt/internal/mtt"
	"github.com/vetxslt/vetxslt/internal/proof"
	"github.com/vetxslt/vetxslt/internal/rtg"
)

// InputPattern is the §3 "preimage unit": {element, children, constraints}.
type InputPattern struct {
	Element     string
	Children    []string
	Constraints []string
}

// AcceptedPattern pairs a rule with the input pattern its output validated
// to (§4.E step 1-3).
type AcceptedPattern struct {
	Rule    *mtt.Rule
	Pattern InputPattern
}

// RejectedPattern is a rule whose output-skeleton validity check failed
// (§4.E step 1).
type RejectedPattern struct {
	Rule   *mtt.Rule
	Reason string
}

// SourcePattern is a top-level pattern extracted from G_S for the
// validity check (§4.E Validity decision step 1).
type SourcePattern struct {
	Element  string
	Children []string
}

// Counterexample is an uncovered source pattern (§4.E Validity decision
// step 3).
type Counterexample struct {
	Element string
	Reason  string
}

// Statistics is §4.E's `{total_rules, accepted_patterns, rejected_patterns,
// coverage}`.
type Statistics struct {
	TotalRules       int
	AcceptedPatterns int
	RejectedPatterns int
	Coverage         float64
}

// ValidityResult is the §3 "Validity result":
// `{valid, total, covered, counterexamples[], coverage_percent, explanation}`.
type ValidityResult struct {
	Valid           bool
	Total           int
	Covered         int
	Counterexamples []Counterexample
	CoveragePercent float64
	Explanation     string
}

// Result bundles everything component E produces.
type Result struct {
	Accepted   []AcceptedPattern
	Rejected   []RejectedPattern
	Statistics Statistics
	Validity   ValidityResult
	Proof      proof.Trace
}

// Analyze runs §4.E against (gt, m, gs): per-rule preimage computation
// followed by the pattern-cover validity decision.
func Analyze(gt *rtg.Grammar, m *mtt.M, gs *rtg.Grammar) *Result {
	res := &Result{}
	res.Proof.Log(proof.Info, "computing per-rule preimage over %d rules", len(m.Rules))

	for _, r := range m.Rules {
		if ok, reason := validateOutputList(r.Output, gt); !ok {
			res.Rejected = append(res.Rejected, RejectedPattern{Rule: r, Reason: reason})
			res.Proof.Log(proof.Warn, "rule for %q rejected: %s", r.LHSPattern.Element, reason)
			continue
		}
		pattern := InputPattern{
			Element:     r.LHSPattern.Element,
			Children:    patternChildren(r.LHSPattern),
			Constraints: extractConstraints(r, gt),
		}
		res.Accepted = append(res.Accepted, AcceptedPattern{Rule: r, Pattern: pattern})
		res.Proof.Log(proof.OK, "rule for %q accepted as preimage pattern %s", r.LHSPattern.Element, describePattern(pattern))
	}

	res.Statistics = Statistics{
		TotalRules:       len(m.Rules),
		AcceptedPatterns: len(res.Accepted),
		RejectedPatterns: len(res.Rejected),
	}
	if res.Statistics.TotalRules > 0 {
		res.Statistics.Coverage = float64(res.Statistics.AcceptedPatterns) / float64(res.Statistics.TotalRules)
	}

	res.Validity = decideValidity(gs, res.Accepted, &res.Proof)
	return res
}

func patternChildren(p mtt.LHSPattern) []string {
	if p.Any || len(p.Children) == 0 {
		return []string{"*"}
	}
	return p.Children
}

func describePattern(p InputPattern) string {
	if len(p.Constraints) == 0 {
		return fmt.Sprintf("%s(%s)", p.Element, strings.Join(p.Children, ","))
	}
	return fmt.Sprintf("%s(%s) where %s", p.Element, strings.Join(p.Children, ","), strings.Join(p.Constraints, " and "))
}

// validateOutputList implements §4.E step 1's output-validity recursion
// over a top-level list of output nodes: every element must be valid for
// the whole rule to be valid.
func validateOutputList(nodes []mtt.OutputNode, gt *rtg.Grammar) (bool, string) {
	for _, n := range nodes {
		if ok, reason := validateOutputNode(n, gt); !ok {
			return false, reason
		}
	}
	return true, ""
}

func validateOutputNode(n mtt.OutputNode, gt *rtg.Grammar) (bool, string) {
	switch o := n.(type) {
	case *mtt.Text, *mtt.ValueAccess:
		return true, ""
	case *mtt.LiteralElement:
		if !gt.HasProduction(o.Name) {
			return false, fmt.Sprintf("target schema has no element %q", o.Name)
		}
		for _, a := range o.Attrs {
			if !attributeDeclared(gt, o.Name, a.Name) {
				return false, fmt.Sprintf("target element %q has no attribute %q", o.Name, a.Name)
			}
		}
		return validateOutputList(o.Children, gt)
	case *mtt.ApplyTemplates, *mtt.ForEach:
		// Validity reduces to the callee rule's own per-rule preimage
		// step, evaluated independently (§4.E step 1).
		return true, ""
	case *mtt.If:
		return validateOutputList(o.Then, gt)
	case *mtt.Choose:
		for _, br := range o.Branches {
			if ok, reason := validateOutputList(br.Body, gt); !ok {
				return false, reason
			}
		}
		return true, ""
	}
	return true, ""
}

func attributeDeclared(gt *rtg.Grammar, elem, attr string) bool {
	for _, d := range gt.Attributes[elem] {
		if d.Name == attr {
			return true
		}
	}
	return false
}

// extractConstraints implements §4.E step 3: the rule's guard, every
// if/when test inside its output (decomposed along and/or), and target
// restrictions propagated through attribute-value templates, deduplicated
// by normalized textual equality.
func extractConstraints(r *mtt.Rule, gt *rtg.Grammar) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, s := range decomposePredicate(r.Guard) {
		add(s)
	}
	collectTestConstraints(r.Output, add)
	collectAVTConstraints(r.Output, gt, add)
	return out
}

// decomposePredicate implements the §4.E step 3 decomposition rule: a
// conjunction is flattened term by term (recursively, so nested
// conjunctions fully split); a disjunction, wherever it occurs, is kept
// as a single literal so that the fact the terms are alternatives, not
// guarantees, is not lost.
func decomposePredicate(pred mtt.Predicate) []string {
	switch p := pred.(type) {
	case nil:
		return nil
	case *mtt.And:
		var out []string
		for _, t := range p.Terms {
			out = append(out, decomposePredicate(t)...)
		}
		return out
	case *mtt.Or:
		return []string{"(" + p.String() + ")"}
	case *mtt.Compare:
		return []string{p.String()}
	}
	return nil
}

// collectTestConstraints walks nodes for every xsl:if/xsl:when test
// reachable from the rule's output, parsing and decomposing each one.
func collectTestConstraints(nodes []mtt.OutputNode, add func(string)) {
	for _, n := range nodes {
		switch o := n.(type) {
		case *mtt.If:
			if pred, err := mtt.ParseGuard(o.Test); err == nil {
				for _, s := range decomposePredicate(pred) {
					add(s)
				}
			}
			collectTestConstraints(o.Then, add)
		case *mtt.Choose:
			for _, br := range o.Branches {
				if br.Test != "" {
					if pred, err := mtt.ParseGuard(br.Test); err == nil {
						for _, s := range decomposePredicate(pred) {
							add(s)
						}
					}
				}
				collectTestConstraints(br.Body, add)
			}
		case *mtt.LiteralElement:
			collectTestConstraints(o.Children, add)
		case *mtt.ForEach:
			collectTestConstraints(o.Body, add)
		}
	}
}

// collectAVTConstraints implements §4.E step 3's third source: for every
// attribute-value template whose target attribute carries a restriction,
// synthesize a predicate over the template's source path.
func collectAVTConstraints(nodes []mtt.OutputNode, gt *rtg.Grammar, add func(string)) {
	for _, n := range nodes {
		switch o := n.(type) {
		case *mtt.LiteralElement:
			for _, a := range o.Attrs {
				if !a.IsTemplate {
					continue
				}
				decl := attributeDecl(gt, o.Name, a.Name)
				if decl == nil || decl.Constraint == nil {
					continue
				}
				for key, value := range decl.Constraint.Restrictions {
					if s := synthesizeRestriction(a.ValueExpr, key, value, decl.Constraint.EnumerationValues); s != "" {
						add(s)
					}
				}
			}
			collectAVTConstraints(o.Children, gt, add)
		case *mtt.If:
			collectAVTConstraints(o.Then, gt, add)
		case *mtt.Choose:
			for _, br := range o.Branches {
				collectAVTConstraints(br.Body, gt, add)
			}
		case *mtt.ForEach:
			collectAVTConstraints(o.Body, gt, add)
		}
	}
}

func attributeDecl(gt *rtg.Grammar, elem, attr string) *rtg.AttributeDecl {
	for _, d := range gt.Attributes[elem] {
		if d.Name == attr {
			return &d
		}
	}
	return nil
}

func synthesizeRestriction(path string, key rtg.RestrictionKey, value string, enumValues []string) string {
	switch key {
	case rtg.MinInclusive:
		return path + " >= " + value
	case rtg.MaxInclusive:
		return path + " <= " + value
	case rtg.MinExclusive:
		return path + " > " + value
	case rtg.MaxExclusive:
		return path + " < " + value
	case rtg.Enumeration:
		if len(enumValues) == 0 {
			return ""
		}
		parts := make([]string, len(enumValues))
		for i, e := range enumValues {
			parts[i] = path + " == '" + e + "'"
		}
		return "(" + strings.Join(parts, " or ") + ")"
	}
	return ""
}

// decideValidity implements §4.E's Validity decision: extract the
// top-level source patterns, attempt to cover each with an accepted
// pattern, and report whatever is left uncovered.
func decideValidity(gs *rtg.Grammar, accepted []AcceptedPattern, tr *proof.Trace) ValidityResult {
	patterns := extractSourcePatterns(gs)
	tr.Log(proof.Info, "validity check over %d top-level source patterns", len(patterns))

	var counterexamples []Counterexample
	covered := 0
	for _, sp := range patterns {
		if ip, ok := coveredBy(sp, accepted); ok {
			covered++
			tr.Log(proof.OK, "source pattern %q covered by preimage pattern %s", sp.Element, describePattern(ip))
			continue
		}
		reason := fmt.Sprintf("no accepted preimage pattern matches element %q", sp.Element)
		counterexamples = append(counterexamples, Counterexample{Element: sp.Element, Reason: reason})
		tr.Log(proof.Warn, "source pattern %q is not covered: %s", sp.Element, reason)
	}

	total := len(patterns)
	pct := 100.0
	if total > 0 {
		pct = float64(covered) / float64(total) * 100
	}
	valid := len(counterexamples) == 0
	explanation := fmt.Sprintf("%d/%d source patterns covered (%.1f%%)", covered, total, pct)
	if !valid {
		explanation = fmt.Sprintf("%s; uncovered: %s", explanation, counterexampleSummary(counterexamples))
	}

	return ValidityResult{
		Valid:           valid,
		Total:           total,
		Covered:         covered,
		Counterexamples: counterexamples,
		CoveragePercent: pct,
		Explanation:     explanation,
	}
}

func counterexampleSummary(ces []Counterexample) string {
	names := make([]string, len(ces))
	for i, c := range ces {
		names[i] = c.Element
	}
	return strings.Join(names, ", ")
}

// extractSourcePatterns implements §4.E Validity decision step 1: every
// production whose RHS is not a single atomic symbol, plus the root
// unconditionally.
func extractSourcePatterns(gs *rtg.Grammar) []SourcePattern {
	var out []SourcePattern
	seen := map[string]bool{}
	rootSeen := false

	for _, p := range gs.Productions {
		if isLeafProduction(p) {
			continue
		}
		if seen[p.LHS] {
			continue
		}
		seen[p.LHS] = true
		if p.LHS == gs.Root {
			rootSeen = true
		}
		out = append(out, SourcePattern{Element: p.LHS, Children: symbolNames(p.RHS)})
	}

	if !rootSeen && gs.Root != "" {
		rootProds := gs.ProductionsFor(gs.Root)
		children := []string{"*"}
		if len(rootProds) > 0 {
			children = symbolNames(rootProds[0].RHS)
		}
		out = append([]SourcePattern{{Element: gs.Root, Children: children}}, out...)
	}
	return out
}

func isLeafProduction(p *rtg.Production) bool {
	return len(p.RHS) == 1 && p.RHS[0].Atomic
}

func symbolNames(syms []rtg.Symbol) []string {
	names := make([]string, len(syms))
	for i, s := range syms {
		names[i] = s.Name
	}
	return names
}

// coveredBy implements §4.E Validity decision step 2: the first accepted
// pattern whose element matches and whose children are compatible (the
// accepted pattern names "*", or the two child sequences are equal).
func coveredBy(sp SourcePattern, accepted []AcceptedPattern) (InputPattern, bool) {
	for _, a := range accepted {
		if a.Pattern.Element != sp.Element {
			continue
		}
		if childrenCompatible(a.Pattern.Children, sp.Children) {
			return a.Pattern, true
		}
	}
	return InputPattern{}, false
}

func childrenCompatible(ip, sp []string) bool {
	if len(ip) == 1 && ip[0] == "*" {
		return true
	}
	if len(ip) != len(sp) {
		return false
	}
	for i := range ip {
		if ip[i] != sp[i] {
			return false
		}
	}
	return true
}
