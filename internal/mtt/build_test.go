package mtt

import (
	"testing"

	"github.com/vetxslt/vetxslt/internal/xtree"
)

func xslNode(tag string, attrs map[string]string, children ...*xtree.Node) *xtree.Node {
	return &xtree.Node{Tag: tag, Namespace: xtree.StylesheetNS, Attributes: attrs, Children: children}
}

func resultNode(tag string, attrs map[string]string, children ...*xtree.Node) *xtree.Node {
	return &xtree.Node{Tag: tag, Attributes: attrs, Children: children}
}

// TestBuildGuardedTemplate is scenario 1 from the worked test set:
// match="Person" emits Individual with two attribute-value templates,
// the whole body guarded by "Age >= 0".
func TestBuildGuardedTemplate(t *testing.T) {
	individual := resultNode("Individual", map[string]string{
		"fullname": "{Name}",
		"years":    "{Age}",
	})
	ifNode := xslNode("if", map[string]string{"test": "Age >= 0"}, individual)
	tmpl := xslNode("template", map[string]string{"match": "Person"}, ifNode)
	stylesheet := xslNode("stylesheet", nil, tmpl)

	m, diags, err := Build(stylesheet)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags)
	}
	if len(m.Rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(m.Rules))
	}
	r := m.Rules[0]
	if r.LHSPattern.Element != "Person" {
		t.Fatalf("lhs pattern = %+v", r.LHSPattern)
	}
	cmp, ok := r.Guard.(*Compare)
	if !ok || cmp.Path != "Age" || cmp.Op != ">=" || cmp.Literal != "0" {
		t.Fatalf("guard = %+v", r.Guard)
	}
	if len(r.Output) != 1 {
		t.Fatalf("output = %+v, want single literal element (if unwrapped into guard)", r.Output)
	}
	le, ok := r.Output[0].(*LiteralElement)
	if !ok || le.Name != "Individual" {
		t.Fatalf("output[0] = %+v", r.Output[0])
	}
	var sawFullname, sawYears bool
	for _, a := range le.Attrs {
		if a.Name == "fullname" {
			sawFullname = a.IsTemplate && a.ValueExpr == "Name"
		}
		if a.Name == "years" {
			sawYears = a.IsTemplate && a.ValueExpr == "Age"
		}
	}
	if !sawFullname || !sawYears {
		t.Fatalf("attrs = %+v", le.Attrs)
	}
	if !m.SigmaIn["Person"] || !m.SigmaOut["Individual"] {
		t.Fatalf("sigma_in = %v sigma_out = %v", m.SigmaIn, m.SigmaOut)
	}
}

// TestBuildChooseWithConjunctionGuard is scenario 5's MTT half.
func TestBuildChooseWithConjunctionGuard(t *testing.T) {
	whenManager := xslNode("when", map[string]string{"test": "Role == 'manager'"},
		resultNode("Staff", map[string]string{"position": "lead"}))
	whenDeveloper := xslNode("when", map[string]string{"test": "Role == 'developer'"},
		resultNode("Staff", map[string]string{"position": "engineer"}))
	otherwise := xslNode("otherwise", nil, resultNode("Staff", map[string]string{"position": "engineer"}))
	choose := xslNode("choose", nil, whenManager, whenDeveloper, otherwise)
	ifNode := xslNode("if", map[string]string{"test": "Role != 'intern' and Age >= 18 and Salary > 0"}, choose)
	tmpl := xslNode("template", map[string]string{"match": "Employee"}, ifNode)
	stylesheet := xslNode("stylesheet", nil, tmpl)

	m, diags, err := Build(stylesheet)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags)
	}
	r := m.Rules[0]
	and, ok := r.Guard.(*And)
	if !ok || len(and.Terms) != 3 {
		t.Fatalf("guard = %+v", r.Guard)
	}
	chs, ok := r.Output[0].(*Choose)
	if !ok || len(chs.Branches) != 3 {
		t.Fatalf("output = %+v", r.Output)
	}
	if !chs.Branches[2].Otherwise {
		t.Fatalf("last branch should be otherwise: %+v", chs.Branches[2])
	}
}

func TestBuildApplyTemplatesResolvesCallee(t *testing.T) {
	childTmpl := xslNode("template", map[string]string{"match": "Phone"}, resultNode("phone", nil))
	parentTmpl := xslNode("template", map[string]string{"match": "Contact"},
		xslNode("apply-templates", map[string]string{"select": "Phone"}))
	stylesheet := xslNode("stylesheet", nil, parentTmpl, childTmpl)

	m, diags, err := Build(stylesheet)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags)
	}
	var parentRule *Rule
	for _, r := range m.Rules {
		if r.LHSPattern.Element == "Contact" {
			parentRule = r
		}
	}
	if parentRule == nil {
		t.Fatalf("no rule for Contact")
	}
	at, ok := parentRule.Output[0].(*ApplyTemplates)
	if !ok || at.Unresolved || at.Callee == "" {
		t.Fatalf("apply-templates = %+v", parentRule.Output[0])
	}
	if !m.HasState(at.Callee) {
		t.Fatalf("callee %q not a member of Q", at.Callee)
	}
}

func TestBuildApplyTemplatesNoMatchIsDiscardedWithWarning(t *testing.T) {
	tmpl := xslNode("template", map[string]string{"match": "Contact"},
		xslNode("apply-templates", map[string]string{"select": "Fax"}))
	stylesheet := xslNode("stylesheet", nil, tmpl)

	m, diags, err := Build(stylesheet)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	at := m.Rules[0].Output[0].(*ApplyTemplates)
	if !at.Unresolved || at.Callee != "" {
		t.Fatalf("apply-templates = %+v, want unresolved with empty callee", at)
	}
	if diags.HasErrors() {
		t.Fatalf("a missing template match should warn, not error: %v", diags)
	}
	found := false
	for _, d := range diags {
		if d.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a structural-coverage warning, got %v", diags)
	}
}

func TestBuildAmbiguousDuplicateTemplateIsRejected(t *testing.T) {
	t1 := xslNode("template", map[string]string{"match": "Person"}, resultNode("A", nil))
	t2 := xslNode("template", map[string]string{"match": "Person"}, resultNode("B", nil))
	stylesheet := xslNode("stylesheet", nil, t1, t2)

	_, diags, err := Build(stylesheet)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !diags.HasErrors() {
		t.Fatalf("expected an ambiguity error for two unguarded templates on the same match+mode")
	}
}

func TestBuildDisjointGuardsAdmissible(t *testing.T) {
	t1 := xslNode("template", map[string]string{"match": "Person"},
		xslNode("if", map[string]string{"test": "Age >= 18"}, resultNode("Adult", nil)))
	t2 := xslNode("template", map[string]string{"match": "Person"},
		xslNode("if", map[string]string{"test": "Age < 18"}, resultNode("Minor", nil)))
	stylesheet := xslNode("stylesheet", nil, t1, t2)

	_, diags, err := Build(stylesheet)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diags.HasErrors() {
		t.Fatalf("distinct guards on the same match+mode should be admissible: %v", diags)
	}
}
