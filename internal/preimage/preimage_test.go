package preimage

import (
	"testing"

	"github.com/vetxslt/vetxslt/internal/mtt"
	"github.com/vetxslt/vetxslt/internal/rtg"
	"github.com/vetxslt/vetxslt/internal/xtree"
)

func schemaNode(tag string, attrs map[string]string, children ...*xtree.Node) *xtree.Node {
	return &xtree.Node{Tag: tag, Attributes: attrs, Children: children}
}

func xslNode(tag string, attrs map[string]string, children ...*xtree.Node) *xtree.Node {
	return &xtree.Node{Tag: tag, Namespace: xtree.StylesheetNS, Attributes: attrs, Children: children}
}

func resultNode(tag string, attrs map[string]string, children ...*xtree.Node) *xtree.Node {
	return &xtree.Node{Tag: tag, Attributes: attrs, Children: children}
}

func buildAll(t *testing.T, schemaS, schemaT, stylesheet *xtree.Node) (*rtg.Grammar, *rtg.Grammar, *mtt.M) {
	t.Helper()
	gs, diags, err := rtg.Build(schemaS)
	if err != nil || diags.HasErrors() {
		t.Fatalf("source schema build failed: err=%v diags=%v", err, diags)
	}
	gt, diags, err := rtg.Build(schemaT)
	if err != nil || diags.HasErrors() {
		t.Fatalf("target schema build failed: err=%v diags=%v", err, diags)
	}
	m, diags, err := mtt.Build(stylesheet)
	if err != nil || diags.HasErrors() {
		t.Fatalf("mtt build failed: err=%v diags=%v", err, diags)
	}
	return gs, gt, m
}

// personToIndividual builds the minimal Person{Name:string} -> Individual
// with a single fullname attribute-value-template mapping, shared by
// several tests below as the uncontroversial "accepted rule" baseline.
func personToIndividual() (*xtree.Node, *xtree.Node) {
	name := schemaNode("element", map[string]string{"name": "Name", "type": "xs:string"})
	seq := schemaNode("sequence", nil, name)
	ct := schemaNode("complexType", map[string]string{"name": "PersonType"}, seq)
	el := schemaNode("element", map[string]string{"name": "Person", "type": "PersonType"})
	schemaS := schemaNode("schema", nil, ct, el)

	fullname := schemaNode("attribute", map[string]string{"name": "fullname", "type": "xs:string"})
	ctT := schemaNode("complexType", map[string]string{"name": "IndividualType"}, fullname, schemaNode("sequence", nil))
	elT := schemaNode("element", map[string]string{"name": "Individual", "type": "IndividualType"})
	schemaT := schemaNode("schema", nil, ctT, elT)

	return schemaS, schemaT
}

func TestAnalyzeAcceptsValidRule(t *testing.T) {
	schemaS, schemaT := personToIndividual()
	individual := resultNode("Individual", map[string]string{"fullname": "{Name}"})
	tmpl := xslNode("template", map[string]string{"match": "Person"}, individual)
	stylesheet := xslNode("stylesheet", nil, tmpl)

	gs, gt, m := buildAll(t, schemaS, schemaT, stylesheet)
	res := Analyze(gt, m, gs)

	if len(res.Rejected) != 0 {
		t.Fatalf("expected no rejected patterns, got %v", res.Rejected)
	}
	if len(res.Accepted) != 1 {
		t.Fatalf("expected exactly one accepted pattern, got %d", len(res.Accepted))
	}
	if res.Accepted[0].Pattern.Element != "Person" {
		t.Fatalf("expected the accepted pattern's element to be Person, got %q", res.Accepted[0].Pattern.Element)
	}
	if !res.Validity.Valid {
		t.Fatalf("expected the validity decision to be valid, got %+v", res.Validity)
	}
	if res.Validity.Total != 1 || res.Validity.Covered != 1 {
		t.Fatalf("expected 1/1 source patterns covered, got %d/%d", res.Validity.Covered, res.Validity.Total)
	}
}

// TestAnalyzeRejectsUndeclaredTargetAttribute is §4.E step 1's output-
// validity check: a rule writing an attribute the target schema never
// declares is rejected outright, not merely warned about.
func TestAnalyzeRejectsUndeclaredTargetAttribute(t *testing.T) {
	schemaS, schemaT := personToIndividual()
	individual := resultNode("Individual", map[string]string{"fullname": "{Name}", "nickname": "{Name}"})
	tmpl := xslNode("template", map[string]string{"match": "Person"}, individual)
	stylesheet := xslNode("stylesheet", nil, tmpl)

	gs, gt, m := buildAll(t, schemaS, schemaT, stylesheet)
	res := Analyze(gt, m, gs)

	if len(res.Accepted) != 0 {
		t.Fatalf("expected no accepted patterns, got %v", res.Accepted)
	}
	if len(res.Rejected) != 1 {
		t.Fatalf("expected exactly one rejected pattern, got %d", len(res.Rejected))
	}
	if !containsSubstring(res.Rejected[0].Reason, "nickname") {
		t.Fatalf("expected the rejection reason to name the undeclared attribute, got %q", res.Rejected[0].Reason)
	}
}

// TestAnalyzeCounterexampleForUncoveredPattern is the §4.E Validity
// decision's step 3: Person's Dept child is a structural (non-leaf) source
// pattern that no rule matches (no template has match="Dept"), so it surfaces as a
// counterexample even though Person itself is fully covered.
func TestAnalyzeCounterexampleForUncoveredPattern(t *testing.T) {
	name := schemaNode("element", map[string]string{"name": "Name", "type": "xs:string"})
	deptName := schemaNode("element", map[string]string{"name": "DeptName", "type": "xs:string"})
	deptSeq := schemaNode("sequence", nil, deptName)
	deptCT := schemaNode("complexType", map[string]string{"name": "DeptType"}, deptSeq)
	dept := schemaNode("element", map[string]string{"name": "Dept", "type": "DeptType"})
	seq := schemaNode("sequence", nil, name, dept)
	ct := schemaNode("complexType", map[string]string{"name": "PersonType"}, seq)
	el := schemaNode("element", map[string]string{"name": "Person", "type": "PersonType"})
	schemaS := schemaNode("schema", nil, deptCT, ct, el)

	fullname := schemaNode("attribute", map[string]string{"name": "fullname", "type": "xs:string"})
	ctT := schemaNode("complexType", map[string]string{"name": "IndividualType"}, fullname, schemaNode("sequence", nil))
	elT := schemaNode("element", map[string]string{"name": "Individual", "type": "IndividualType"})
	schemaT := schemaNode("schema", nil, ctT, elT)

	individual := resultNode("Individual", map[string]string{"fullname": "{Name}"})
	tmpl := xslNode("template", map[string]string{"match": "Person"}, individual)
	stylesheet := xslNode("stylesheet", nil, tmpl)

	gs, gt, m := buildAll(t, schemaS, schemaT, stylesheet)
	res := Analyze(gt, m, gs)

	if res.Validity.Valid {
		t.Fatalf("expected the validity decision to be invalid, got %+v", res.Validity)
	}
	found := false
	for _, ce := range res.Validity.Counterexamples {
		if ce.Element == "Dept" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a counterexample naming Dept, got %v", res.Validity.Counterexamples)
	}
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
