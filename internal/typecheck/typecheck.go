// Package typecheck implements the type-preservation validator (§4.D
// component D): the three orthogonal checks (structural coverage, type-
// constraint compatibility, cardinality compatibility) run between a
// source grammar, a target grammar, and the MTT translated from the
// stylesheet that is supposed to carry one into the other. It never
// materializes a tree; every check is a symbolic scan over the grammar
// and MTT values §4.B/§4.C already built.
//
// Grounded the same way internal/rtg and internal/mtt are: an
// accumulate-diagnostics Builder-shaped walk (goyang's Entry validation
// idiom), reusing internal/proof.Trace for the shared, order-sensitive
// proof log §3 and §9 both call a load-bearing contract.
package typecheck

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vetxslt/vetxslt/internal/mtt"
	"github.com/vetxslt/vetxslt/internal/proof"
	"github.com/vetxslt/vetxslt/internal/rtg"
)

// CoverageStatus is one source production's entry in the coverage matrix
// (§3 Validation result, §4.D step 4).
type CoverageStatus string

const (
	Covered  CoverageStatus = "covered"
	Unmapped CoverageStatus = "UNMAPPED"
)

// CoverageEntry is one row of the coverage matrix: a source production's
// LHS and the target element it resolves to, or UNMAPPED.
type CoverageEntry struct {
	Source string
	Target string
	Status CoverageStatus
}

// Result is the §3 "Validation result": `{valid, errors, warnings,
// proof_steps, coverage}`.
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
	Proof    proof.Trace
	Coverage []CoverageEntry
}

// Validate runs the four §4.D steps (the three checks and the coverage
// matrix) against (gs, gt, m) and returns the
// accumulated result. It never returns an error itself: every defect it
// finds is a diagnostic inside Result, per §7 Kind 4 ("Reported in the
// validation result; pipeline does not abort").
func Validate(gs, gt *rtg.Grammar, m *mtt.M) *Result {
	v := &validator{gs: gs, gt: gt, m: m, res: &Result{Valid: true}}
	v.step1StructuralCoverage()
	v.step2TypeConstraints()
	v.step3Cardinality()
	v.step4CoverageMatrix()
	v.res.Valid = len(v.res.Errors) == 0
	return v.res
}

type validator struct {
	gs, gt *rtg.Grammar
	m      *mtt.M
	res    *Result
}

func (v *validator) errorf(format string, args ...interface{}) {
	v.res.Proof.Log(proof.Error, format, args...)
	v.res.Errors = append(v.res.Errors, sprintf(format, args...))
}

func (v *validator) warnf(format string, args ...interface{}) {
	v.res.Proof.Log(proof.Warn, format, args...)
	v.res.Warnings = append(v.res.Warnings, sprintf(format, args...))
}

func (v *validator) okf(format string, args ...interface{}) {
	v.res.Proof.Log(proof.OK, format, args...)
}

func (v *validator) infof(format string, args ...interface{}) {
	v.res.Proof.Log(proof.Info, format, args...)
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// step1StructuralCoverage implements §4.D Step 1: the source root must be
// reached by some rule's lhs_pattern, and every source production must be
// "covered" (its LHS reachable from some rule, directly as an lhs_pattern
// or anywhere in an output skeleton) or it is flagged — as a warning, not
// an error — as silently dropped.
func (v *validator) step1StructuralCoverage() {
	v.infof("step 1: structural coverage")
	if !v.m.SigmaIn[v.gs.Root] {
		v.errorf("no transformation rule for root %q", v.gs.Root)
	} else {
		v.okf("root %q is matched by a transformation rule", v.gs.Root)
	}

	for _, p := range v.gs.Productions {
		if v.coveredByRule(p.LHS) {
			v.okf("source element %q is covered by the transformation", p.LHS)
			continue
		}
		v.warnf("source element %q is not reachable from any transformation rule; it is silently dropped", p.LHS)
	}
}

// coveredByRule implements the §4.D step 1 cover relation: elem is covered
// if it is the element of some rule's lhs_pattern, or it appears anywhere
// in some rule's output skeleton (recursive descendant reach).
func (v *validator) coveredByRule(elem string) bool {
	if v.m.SigmaIn[elem] {
		return true
	}
	for _, r := range v.m.Rules {
		if outputReferences(r.Output, elem) {
			return true
		}
	}
	return false
}

// outputReferences reports whether elem is named anywhere in nodes: as a
// literal_element name, a value-of/select path segment, an attribute-value
// template's source path, or a guard/test identifier.
func outputReferences(nodes []mtt.OutputNode, elem string) bool {
	found := false
	for _, n := range nodes {
		switch o := n.(type) {
		case *mtt.LiteralElement:
			if o.Name == elem {
				found = true
			}
			for _, a := range o.Attrs {
				if a.IsTemplate && pathNames(a.ValueExpr, elem) {
					found = true
				}
			}
			if outputReferences(o.Children, elem) {
				found = true
			}
		case *mtt.ValueAccess:
			if pathNames(o.Path, elem) {
				found = true
			}
		case *mtt.ApplyTemplates:
			if pathNames(o.Select, elem) {
				found = true
			}
		case *mtt.ForEach:
			if pathNames(o.Select, elem) {
				found = true
			}
			if outputReferences(o.Body, elem) {
				found = true
			}
		case *mtt.If:
			if identifierAppears(o.Test, elem) {
				found = true
			}
			if outputReferences(o.Then, elem) {
				found = true
			}
		case *mtt.Choose:
			for _, br := range o.Branches {
				if identifierAppears(br.Test, elem) {
					found = true
				}
				if outputReferences(br.Body, elem) {
					found = true
				}
			}
		}
	}
	return found
}

// identifierAppears reports whether elem appears as a whole path segment
// anywhere inside a raw guard/test expression's text, without parsing it:
// used only for the broad structural-coverage reach check, where a test
// that fails to parse should still not hide a reference to elem.
func identifierAppears(text, elem string) bool {
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '_' || r == '.' || r == '/' || r == '@' || r == ':' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-')
	}) {
		if pathNames(tok, elem) {
			return true
		}
	}
	return false
}

// pathNames reports whether path names elem, either wholly or as its
// final dotted/slashed segment.
func pathNames(path, elem string) bool {
	path = strings.TrimPrefix(path, "@")
	path = strings.TrimPrefix(path, "./")
	if path == elem {
		return true
	}
	path = strings.NewReplacer("/", ".").Replace(path)
	segs := strings.Split(path, ".")
	return len(segs) > 0 && segs[len(segs)-1] == elem
}

// step2TypeConstraints implements §4.D step 2: for each source element
// with a type constraint, resolve the target it maps to and compare base
// types and restrictions, reconciling restriction warnings against the
// governing rule's guard (§4.D "Guard-to-restriction reconciliation").
func (v *validator) step2TypeConstraints() {
	v.infof("step 2: type-constraint compatibility")
	for _, name := range v.gs.Nonterminals() {
		src := v.gs.TypeConstraints[name]
		if src == nil {
			continue
		}
		target, attrName, ok := v.resolveTarget(name)
		if !ok {
			continue
		}
		tgt := v.targetConstraint(target, attrName)
		if tgt == nil {
			continue
		}

		label := target
		if attrName != "" {
			label = target + "@" + attrName
		}

		if !rtg.TypesCompatible(src.BaseType, tgt.BaseType) {
			v.errorf("source %q (%s) is not compatible with target %s (%s)", name, src.BaseType, label, tgt.BaseType)
			continue
		}
		v.okf("source %q (%s) is compatible with target %s (%s)", name, src.BaseType, label, tgt.BaseType)

		v.checkRestrictions(name, label, src, tgt)
	}
}

func (v *validator) checkRestrictions(sourceElem, label string, src, tgt *rtg.TypeConstraint) {
	rule := v.findEnclosingRule(sourceElem)

	keys := make([]string, 0, len(tgt.Restrictions))
	for k := range tgt.Restrictions {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	for _, ks := range keys {
		key := rtg.RestrictionKey(ks)
		value := tgt.Restrictions[key]
		if _, hasSame := src.Restrictions[key]; hasSame {
			continue
		}

		var guard mtt.Predicate
		if rule != nil {
			guard = rule.Guard
		}
		if key == rtg.Enumeration {
			if guardImpliesEnumeration(guard, sourceElem, tgt.EnumerationValues) {
				v.okf("guard on %q reconciles target %s enumeration restriction", sourceElem, label)
				continue
			}
		} else if guardImplies(guard, sourceElem, key, value) {
			v.okf("guard on %q reconciles target %s restriction %s=%s", sourceElem, label, key, value)
			continue
		}
		v.warnf("target %s has restriction %s=%s that source %q does not guarantee", label, key, value, sourceElem)
	}
}

// step3Cardinality implements §4.D step 3: compare each source
// production's occurrence bound against the corresponding target
// production's bound.
func (v *validator) step3Cardinality() {
	v.infof("step 3: cardinality compatibility")
	for _, p := range v.gs.Productions {
		target, attrName, ok := v.resolveTarget(p.LHS)
		if !ok || attrName != "" {
			continue
		}
		tgtProds := v.gt.ProductionsFor(target)
		if len(tgtProds) == 0 {
			continue
		}
		tp := tgtProds[0]

		warned := false
		if p.Cardinality.Lo == 0 && tp.Cardinality.Lo > 0 {
			v.warnf("source %q may be empty (%s) but target %q requires presence (%s)", p.LHS, p.Cardinality, target, tp.Cardinality)
			warned = true
		}
		if (p.Cardinality.Hi == rtg.Unbounded || p.Cardinality.Hi > 1) && tp.Cardinality.Hi == 1 {
			v.warnf("source %q allows multiple occurrences %s but target %q accepts only one %s", p.LHS, p.Cardinality, target, tp.Cardinality)
			warned = true
		}
		if !warned {
			v.okf("source %q cardinality %s is compatible with target %q cardinality %s", p.LHS, p.Cardinality, target, tp.Cardinality)
		}
	}
}

// step4CoverageMatrix implements §4.D step 4: one row per source
// production naming the target it resolves to, or UNMAPPED.
func (v *validator) step4CoverageMatrix() {
	for _, p := range v.gs.Productions {
		target, attrName, ok := v.resolveTarget(p.LHS)
		if !ok {
			v.res.Coverage = append(v.res.Coverage, CoverageEntry{Source: p.LHS, Status: Unmapped})
			continue
		}
		label := target
		if attrName != "" {
			label = target + "@" + attrName
		}
		v.res.Coverage = append(v.res.Coverage, CoverageEntry{Source: p.LHS, Target: label, Status: Covered})
	}
}

// findGoverningRule returns the first rule whose lhs_pattern matches elem,
// used by resolveTarget to decide whether elem has a rule of its own.
func (v *validator) findGoverningRule(elem string) *mtt.Rule {
	for _, r := range v.m.Rules {
		if r.LHSPattern.Element == elem {
			return r
		}
	}
	return nil
}

// findEnclosingRule returns the rule whose guard governs elem's mapping when
// elem has no rule of its own: the first rule whose output references elem
// anywhere (e.g. an attribute-value template on a sibling field, or a guard
// test naming it directly), so a guard written on the enclosing template
// (§4.D "Guard-to-restriction reconciliation") is found even though elem is
// only ever read from inside that rule's body.
func (v *validator) findEnclosingRule(elem string) *mtt.Rule {
	if rule := v.findGoverningRule(elem); rule != nil {
		return rule
	}
	for _, r := range v.m.Rules {
		if outputReferences(r.Output, elem) {
			return r
		}
	}
	return nil
}

// resolveTarget implements §4.D step 2's target-resolution algorithm,
// shared with steps 3 and 4: if sourceElem matches a rule's lhs_pattern,
// use the outermost literal_element name that rule constructs; otherwise
// look for an attribute-value template anywhere that reads sourceElem and
// report its owning element and attribute name; otherwise fall back to a
// same-name lookup in the target grammar.
func (v *validator) resolveTarget(sourceElem string) (target, attrName string, ok bool) {
	if rule := v.findGoverningRule(sourceElem); rule != nil {
		if name, found := outermostLiteralElementName(rule.Output); found {
			return name, "", true
		}
	}
	if owner, attr, found := findAttrValueExprTarget(v.m, sourceElem); found {
		return owner, attr, true
	}
	if v.gt.HasProduction(sourceElem) {
		return sourceElem, "", true
	}
	return "", "", false
}

func (v *validator) targetConstraint(target, attrName string) *rtg.TypeConstraint {
	if attrName == "" {
		return v.gt.TypeConstraints[target]
	}
	for _, a := range v.gt.Attributes[target] {
		if a.Name == attrName {
			return a.Constraint
		}
	}
	return nil
}

// outermostLiteralElementName finds the first literal_element name
// reachable from nodes without descending into an already-found literal
// element's own children (§4.D step 2: "the outermost literal_element").
func outermostLiteralElementName(nodes []mtt.OutputNode) (string, bool) {
	for _, n := range nodes {
		switch o := n.(type) {
		case *mtt.LiteralElement:
			return o.Name, true
		case *mtt.If:
			if name, ok := outermostLiteralElementName(o.Then); ok {
				return name, true
			}
		case *mtt.Choose:
			for _, br := range o.Branches {
				if name, ok := outermostLiteralElementName(br.Body); ok {
					return name, true
				}
			}
		case *mtt.ForEach:
			if name, ok := outermostLiteralElementName(o.Body); ok {
				return name, true
			}
		}
	}
	return "", false
}

// findAttrValueExprTarget scans every rule's output for an attribute whose
// value_expr reads sourceElem, returning the owning literal_element's name
// and the attribute's own name.
func findAttrValueExprTarget(m *mtt.M, sourceElem string) (owner, attr string, ok bool) {
	for _, r := range m.Rules {
		if owner, attr, ok := searchAttrValueExpr(r.Output, sourceElem); ok {
			return owner, attr, true
		}
	}
	return "", "", false
}

func searchAttrValueExpr(nodes []mtt.OutputNode, sourceElem string) (owner, attr string, ok bool) {
	for _, n := range nodes {
		switch o := n.(type) {
		case *mtt.LiteralElement:
			for _, a := range o.Attrs {
				if a.IsTemplate && pathNames(a.ValueExpr, sourceElem) {
					return o.Name, a.Name, true
				}
			}
			if owner, attr, ok := searchAttrValueExpr(o.Children, sourceElem); ok {
				return owner, attr, true
			}
		case *mtt.If:
			if owner, attr, ok := searchAttrValueExpr(o.Then, sourceElem); ok {
				return owner, attr, true
			}
		case *mtt.Choose:
			for _, br := range o.Branches {
				if owner, attr, ok := searchAttrValueExpr(br.Body, sourceElem); ok {
					return owner, attr, true
				}
			}
		case *mtt.ForEach:
			if owner, attr, ok := searchAttrValueExpr(o.Body, sourceElem); ok {
				return owner, attr, true
			}
		}
	}
	return "", "", false
}

// guardImplies decides the Glossary's "guard implies restriction" relation
// for the four bounded numeric restriction keys, over conjunction terms
// naming field (disjunction cannot guarantee a bound on every branch, so
// it is not descended into here).
func guardImplies(pred mtt.Predicate, field string, key rtg.RestrictionKey, literal string) bool {
	for _, c := range andTerms(pred) {
		cmp, ok := c.(*mtt.Compare)
		if !ok || !pathNames(cmp.Path, field) {
			continue
		}
		if numericImplies(cmp, key, literal) {
			return true
		}
	}
	return false
}

func andTerms(pred mtt.Predicate) []mtt.Predicate {
	if pred == nil {
		return nil
	}
	if and, ok := pred.(*mtt.And); ok {
		return and.Terms
	}
	return []mtt.Predicate{pred}
}

func numericImplies(cmp *mtt.Compare, key rtg.RestrictionKey, literal string) bool {
	v, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return false
	}
	w, err := strconv.ParseFloat(strings.Trim(cmp.Literal, "'"), 64)
	if err != nil {
		return false
	}
	switch key {
	case rtg.MinInclusive:
		switch cmp.Op {
		case ">=":
			return w >= v
		case ">":
			return w >= v-1
		}
	case rtg.MaxInclusive:
		switch cmp.Op {
		case "<=":
			return w <= v
		case "<":
			return w <= v+1
		}
	case rtg.MinExclusive:
		switch cmp.Op {
		case ">":
			return w >= v
		case ">=":
			return w > v
		}
	case rtg.MaxExclusive:
		switch cmp.Op {
		case "<":
			return w <= v
		case "<=":
			return w < v
		}
	}
	return false
}

// guardImpliesEnumeration implements the Glossary's enumeration case: a
// disjunction of equality comparisons on field covering every value in
// values. Every "==" comparison against field found anywhere in the
// predicate tree is gathered (not only within an explicit Or), which is a
// deliberate over-approximation of "disjunction" documented in DESIGN.md.
func guardImpliesEnumeration(pred mtt.Predicate, field string, values []string) bool {
	if len(values) == 0 {
		return false
	}
	seen := map[string]bool{}
	collectEqualities(pred, field, seen)
	for _, want := range values {
		if !seen[want] {
			return false
		}
	}
	return true
}

func collectEqualities(pred mtt.Predicate, field string, into map[string]bool) {
	switch p := pred.(type) {
	case nil:
		return
	case *mtt.Compare:
		if p.Op == "==" && pathNames(p.Path, field) {
			into[strings.Trim(p.Literal, "'")] = true
		}
	case *mtt.And:
		for _, t := range p.Terms {
			collectEqualities(t, field, into)
		}
	case *mtt.Or:
		for _, t := range p.Terms {
			collectEqualities(t, field, into)
		}
	}
}
