package mtt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vetxslt/vetxslt/internal/xtree"
)

// defaultMode is used for any template or apply-templates/for-each call
// that carries no explicit mode attribute (§4.C step 2).
const defaultMode = "default"

// Builder translates a subset-conforming stylesheet tree into an MTT,
// following the algorithm in §4.C. It mirrors internal/rtg's Builder:
// accumulate diagnostics on the value under construction rather than
// stopping at the first one.
type Builder struct {
	m    *M
	diag Diagnostics

	// stateOf maps a raw "match|mode" pair to the state name assigned to
	// it, so templates repeating a pair share one state. Callee resolution
	// does not consult it: resolveCallees looks the derived state name up
	// in Q.
	stateOf map[string]string
	// rulesOf groups rules by the same "match|mode" key, for the
	// determinism check (§4.C Determinism).
	rulesOf map[string][]*Rule

	nameCounts map[string]int
	freshList  int
}

// Build translates stylesheet into an MTT. It returns the MTT built so
// far (for callers that want partial results) and its diagnostics even on
// failure; err is non-nil only when stylesheet is nil. A stylesheet with
// no templates yields an MTT with no rules and a nil error.
func Build(stylesheet *xtree.Node) (*M, Diagnostics, error) {
	if stylesheet == nil {
		return nil, nil, fmt.Errorf("mtt: nil stylesheet")
	}

	b := &Builder{
		m: &M{
			Q:        map[string]bool{"q_root": true},
			Q0:       "q_root",
			SigmaIn:  map[string]bool{},
			SigmaOut: map[string]bool{},
		},
		stateOf:    map[string]string{},
		rulesOf:    map[string][]*Rule{},
		nameCounts: map[string]int{},
	}

	for _, tmpl := range templatesOf(stylesheet) {
		b.buildTemplate(tmpl)
	}

	b.checkDeterminism()
	b.resolveCallees()
	b.collectSigma()

	return b.m, b.diag, nil
}

func templatesOf(stylesheet *xtree.Node) []*xtree.Node {
	var out []*xtree.Node
	for _, c := range stylesheet.Children {
		if c.InStylesheetNS() && c.Tag == "template" {
			out = append(out, c)
		}
	}
	return out
}

func (b *Builder) errorf(sev Severity, cause error, path string, detailFmt string, args ...interface{}) {
	b.diag = append(b.diag, &Diagnostic{Severity: sev, Cause: cause, Path: path, Detail: fmt.Sprintf(detailFmt, args...)})
}

func (b *Builder) buildTemplate(tmpl *xtree.Node) {
	match, ok := tmpl.Attr("match")
	if !ok || match == "" {
		b.errorf(SeverityError, ErrMissingMatch, "/stylesheet/template", "")
		return
	}
	mode, hasMode := tmpl.Attr("mode")
	if !hasMode || mode == "" {
		mode = defaultMode
	}

	state := b.assignState(match, mode)
	b.m.Q[state] = true

	pattern := deriveInputPattern(match)

	body, guard := b.translateTemplateBody(tmpl)

	rule := &Rule{State: state, LHSPattern: pattern, Guard: guard, Output: body, Mode: mode, Match: match}
	b.m.Rules = append(b.m.Rules, rule)

	key := match + "|" + mode
	b.rulesOf[key] = append(b.rulesOf[key], rule)
}

// assignState derives a state name for (match, mode) and disambiguates it
// with a monotone counter if the derivation collides with an earlier,
// textually distinct (match, mode) pair (§4.C step 2). A repeat of the
// exact same (match, mode) pair reuses the state name already assigned;
// whether that is legal is decided later by checkDeterminism.
func (b *Builder) assignState(match, mode string) string {
	key := match + "|" + mode
	if s, ok := b.stateOf[key]; ok {
		return s
	}
	base := deriveStateName(match, mode)
	name := base
	if n := b.nameCounts[base]; n > 0 {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	b.nameCounts[base]++
	b.stateOf[key] = name
	return name
}

// deriveStateName implements the rewriting rules from §4.C step 2
// literally: "/" alone -> "root"; "/" within a path -> "_"; leading "@" ->
// "attr_"; "*" -> "any"; prefix "q_"; suffix "_<mode>".
func deriveStateName(match, mode string) string {
	body := match
	if body == "/" {
		body = "root"
	} else {
		body = strings.ReplaceAll(body, "/", "_")
		if strings.HasPrefix(body, "@") {
			body = "attr_" + body[1:]
		}
		body = strings.ReplaceAll(body, "*", "any")
	}
	return "q_" + body + "_" + mode
}

// deriveInputPattern implements §4.C step 2's pattern derivation: "/" ->
// root(children); a root-anchored path -> the last segment's name; a bare
// name -> itself. Every form derived from a template match is the "any
// children" shape, since a match string names an element, never its
// children (§3's enumerated-children form has no producer here).
func deriveInputPattern(match string) LHSPattern {
	if match == "/" {
		return LHSPattern{Element: "root", Any: true}
	}
	segs := strings.Split(strings.TrimPrefix(match, "/"), "/")
	last := segs[len(segs)-1]
	last = strings.TrimPrefix(last, "@")
	return LHSPattern{Element: last, Any: true}
}

// translateTemplateBody translates a template's children into an output
// skeleton, peeling off a whole-body-wrapping `xsl:if` into the rule's
// guard field per §4.C step 2 ("associate any top-level if.test wrapping
// the whole body with the rule's guard field").
func (b *Builder) translateTemplateBody(tmpl *xtree.Node) ([]OutputNode, Predicate) {
	if len(tmpl.Children) == 1 && tmpl.Children[0].InStylesheetNS() && tmpl.Children[0].Tag == "if" {
		ifNode := tmpl.Children[0]
		test, _ := ifNode.Attr("test")
		guard := b.parseGuard(test, "/stylesheet/template/if")
		return b.translateChildren(ifNode.Children), guard
	}
	return b.translateChildren(tmpl.Children), nil
}

func (b *Builder) parseGuard(text, path string) Predicate {
	if text == "" {
		return nil
	}
	pred, err := ParseGuard(text)
	if err != nil {
		b.errorf(SeverityError, ErrInvalidGuard, path, "%v", err)
		return nil
	}
	return pred
}

func (b *Builder) translateChildren(children []*xtree.Node) []OutputNode {
	var out []OutputNode
	for _, c := range children {
		if node := b.translateNode(c); node != nil {
			out = append(out, node)
		}
	}
	return out
}

func (b *Builder) translateNode(n *xtree.Node) OutputNode {
	if !n.InStylesheetNS() {
		return b.translateLiteralElement(n)
	}

	switch n.Tag {
	case "value-of":
		sel, ok := n.Attr("select")
		if !ok {
			b.errorf(SeverityError, ErrMissingSelect, "/stylesheet/template//value-of", "")
			return nil
		}
		return &ValueAccess{Path: sel}

	case "text":
		return &Text{Literal: n.Text}

	case "apply-templates":
		sel, _ := n.Attr("select")
		mode, hasMode := n.Attr("mode")
		if !hasMode || mode == "" {
			mode = defaultMode
		}
		return &ApplyTemplates{Select: sel, Callee: deriveStateName(sel, mode)}

	case "for-each":
		sel, ok := n.Attr("select")
		if !ok {
			b.errorf(SeverityError, ErrMissingSelect, "/stylesheet/template//for-each", "")
			return nil
		}
		b.freshList++
		return &ForEach{Select: sel, Body: b.translateChildren(n.Children), ListState: fmt.Sprintf("list_%d", b.freshList)}

	case "if":
		test, ok := n.Attr("test")
		if !ok {
			b.errorf(SeverityError, ErrMissingTest, "/stylesheet/template//if", "")
			return nil
		}
		return &If{Test: test, Then: b.translateChildren(n.Children)}

	case "choose":
		return b.translateChoose(n)

	case "element":
		name, _ := n.Attr("name")
		return &LiteralElement{Name: name, Children: b.translateChildren(n.Children)}

	case "attribute":
		// A stand-alone xsl:attribute outside an element-constructor
		// body has nowhere to attach; callers that expect attributes
		// fold xsl:attribute children in directly (see
		// translateLiteralElement), so reaching this case means the
		// attribute is detached from any element. It is kept rather
		// than dropped, as a literal element named after the attribute
		// whose only child is the attribute's text; the linter does not
		// reject this shape.
		name, _ := n.Attr("name")
		return &LiteralElement{Name: name, Attrs: nil, Children: []OutputNode{&Text{Literal: n.Text}}}

	default:
		// with-param / param and anything else admitted by the linter
		// but not meaningful to the MTT carry no output.
		return nil
	}
}

func (b *Builder) translateChoose(n *xtree.Node) OutputNode {
	var branches []Branch
	for _, c := range n.Children {
		if !c.InStylesheetNS() {
			continue
		}
		switch c.Tag {
		case "when":
			test, _ := c.Attr("test")
			branches = append(branches, Branch{Test: test, Body: b.translateChildren(c.Children)})
		case "otherwise":
			branches = append(branches, Branch{Otherwise: true, Body: b.translateChildren(c.Children)})
		}
	}
	return &Choose{Branches: branches}
}

// translateLiteralElement builds a LiteralElement from a result tree
// element: its plain attributes split into literal vs. attribute-value
// template form (§4.C step 3), its xsl:attribute children folded into the
// same Attrs list, and its remaining children translated recursively.
func (b *Builder) translateLiteralElement(n *xtree.Node) *LiteralElement {
	le := &LiteralElement{Name: n.Tag}
	attrNames := make([]string, 0, len(n.Attributes))
	for name := range n.Attributes {
		attrNames = append(attrNames, name)
	}
	sort.Strings(attrNames)
	for _, name := range attrNames {
		le.Attrs = append(le.Attrs, parseAttr(name, n.Attributes[name]))
	}
	for _, c := range n.Children {
		if c.InStylesheetNS() && c.Tag == "attribute" {
			name, _ := c.Attr("name")
			le.Attrs = append(le.Attrs, Attr{Name: name, Literal: c.Text})
			continue
		}
		if node := b.translateNode(c); node != nil {
			le.Children = append(le.Children, node)
		}
	}
	return le
}

// parseAttr splits a plain attribute value into a literal or a single
// attribute-value-template segment. A value containing more than one
// `{...}` segment is narrower than the subset (Open Question iii); the
// linter is expected to reject it, so here it degrades to treating the
// whole value as a literal rather than misparsing it.
func parseAttr(name, value string) Attr {
	open := strings.IndexByte(value, '{')
	if open < 0 {
		return Attr{Name: name, Literal: value}
	}
	closeIdx := strings.IndexByte(value[open:], '}')
	if closeIdx < 0 {
		return Attr{Name: name, Literal: value}
	}
	closeIdx += open
	if open != 0 || closeIdx != len(value)-1 {
		// multi-segment or mixed literal/template text: outside the
		// single-segment AVT the subset allows.
		return Attr{Name: name, Literal: value}
	}
	return Attr{Name: name, IsTemplate: true, ValueExpr: value[open+1 : closeIdx]}
}

// checkDeterminism enforces §4.C's Determinism rule: two rules sharing the
// same raw match+mode are ambiguous unless their guards are pairwise
// distinct (an approximation of "disjoint" decidable without a full
// predicate-satisfiability solver: identical or absent guards on both
// sides of a pair are flagged, distinct non-nil guards are accepted).
func (b *Builder) checkDeterminism() {
	for key, rules := range b.rulesOf {
		if len(rules) < 2 {
			continue
		}
		for i := 0; i < len(rules); i++ {
			for j := i + 1; j < len(rules); j++ {
				if rules[i].Guard == nil && rules[j].Guard == nil {
					b.errorf(SeverityError, ErrAmbiguousRule, "/stylesheet/template", "duplicate match+mode %q with no guard to disambiguate", key)
					continue
				}
				if rules[i].Guard != nil && rules[j].Guard != nil && Equal(rules[i].Guard, rules[j].Guard) {
					b.errorf(SeverityError, ErrAmbiguousRule, "/stylesheet/template", "duplicate match+mode %q with identical guards", key)
				}
			}
		}
	}
}

// resolveCallees walks every rule's output for ApplyTemplates nodes and
// checks that each Callee (the state name derived from its select and
// mode) is a state in Q, implementing Open Question (ii): an
// apply-templates with no matching template is not an error, it discards
// the subtree and records a structural-coverage warning.
func (b *Builder) resolveCallees() {
	for _, r := range b.m.Rules {
		walkOutput(r.Output, func(at *ApplyTemplates) {
			if b.m.Q[at.Callee] {
				return
			}
			at.Unresolved = true
			at.Callee = ""
			b.errorf(SeverityWarning, nil, "/stylesheet/template//apply-templates", "select %q has no matching template; subtree discarded", at.Select)
		})
	}
}

// walkOutput visits every ApplyTemplates node reachable from nodes,
// descending through every container variant.
func walkOutput(nodes []OutputNode, fn func(*ApplyTemplates)) {
	for _, n := range nodes {
		switch v := n.(type) {
		case *ApplyTemplates:
			fn(v)
		case *ForEach:
			walkOutput(v.Body, fn)
		case *If:
			walkOutput(v.Then, fn)
		case *Choose:
			for _, br := range v.Branches {
				walkOutput(br.Body, fn)
			}
		case *LiteralElement:
			walkOutput(v.Children, fn)
		}
	}
}

// collectSigma computes Σ_in (every element name named by some
// lhs_pattern) and Σ_out (every element name named by some
// LiteralElement), per §4.C step 4.
func (b *Builder) collectSigma() {
	for _, r := range b.m.Rules {
		b.m.SigmaIn[r.LHSPattern.Element] = true
		collectLiteralNames(r.Output, b.m.SigmaOut)
	}
}

func collectLiteralNames(nodes []OutputNode, out map[string]bool) {
	for _, n := range nodes {
		switch v := n.(type) {
		case *LiteralElement:
			out[v.Name] = true
			collectLiteralNames(v.Children, out)
		case *ForEach:
			collectLiteralNames(v.Body, out)
		case *If:
			collectLiteralNames(v.Then, out)
		case *Choose:
			for _, br := range v.Branches {
				collectLiteralNames(br.Body, out)
			}
		}
	}
}
