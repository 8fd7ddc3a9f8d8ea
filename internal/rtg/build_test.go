package rtg

import (
	"testing"

	"github.com/vetxslt/vetxslt/internal/xtree"
)

func attrNode(tag string, attrs map[string]string, children ...*xtree.Node) *xtree.Node {
	return &xtree.Node{Tag: tag, Attributes: attrs, Children: children}
}

// schemaWithContact builds the "Source Contact{Phone:string[0..∞]}" fixture
// scenario tests lean on throughout the pipeline.
func schemaWithContact() *xtree.Node {
	phone := attrNode("element", map[string]string{
		"name":      "Phone",
		"type":      "xs:string",
		"minOccurs": "0",
		"maxOccurs": "unbounded",
	})
	sequence := attrNode("sequence", nil, phone)
	contactType := attrNode("complexType", map[string]string{"name": "ContactType"}, sequence)
	contactEl := attrNode("element", map[string]string{"name": "Contact", "type": "ContactType"})
	return attrNode("schema", nil, contactType, contactEl)
}

func TestBuildContactSchema(t *testing.T) {
	g, diags, err := Build(schemaWithContact())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diags.HasErrors() {
		t.Fatalf("unexpected error diagnostics: %v", diags)
	}
	if g.Root != "Contact" {
		t.Fatalf("root = %q, want Contact", g.Root)
	}

	contactProds := g.ProductionsFor("Contact")
	if len(contactProds) != 1 {
		t.Fatalf("Contact productions = %d, want 1", len(contactProds))
	}
	cp := contactProds[0]
	if cp.Kind != Sequence || len(cp.RHS) != 1 || cp.RHS[0].Name != "Phone" {
		t.Fatalf("Contact production = %+v", cp)
	}
	if cp.Cardinality != DefaultCardinality {
		t.Fatalf("Contact cardinality = %v, want %v", cp.Cardinality, DefaultCardinality)
	}

	phoneProds := g.ProductionsFor("Phone")
	if len(phoneProds) != 1 {
		t.Fatalf("Phone productions = %d, want 1", len(phoneProds))
	}
	pp := phoneProds[0]
	if !pp.RHS[0].Atomic || pp.RHS[0].Name != "string" {
		t.Fatalf("Phone RHS = %+v, want atomic string", pp.RHS)
	}
	want := Cardinality{Lo: 0, Hi: Unbounded}
	if pp.Cardinality != want {
		t.Fatalf("Phone cardinality = %v, want %v", pp.Cardinality, want)
	}
	if !g.IsAtomic("string") {
		t.Fatalf("string should be atomic in Sigma")
	}
}

func TestBuildUnknownTypeDowngradesToString(t *testing.T) {
	el := attrNode("element", map[string]string{"name": "Weird", "type": "myns:FrobnicatedType"})
	schema := attrNode("schema", nil, el)

	g, diags, err := Build(schema)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diags.HasErrors() {
		t.Fatalf("expected a warning, not an error: %v", diags)
	}
	found := false
	for _, d := range diags {
		if d.Cause == ErrUndefinedType {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an ErrUndefinedType warning, got %v", diags)
	}
	prods := g.ProductionsFor("Weird")
	if len(prods) != 1 || prods[0].RHS[0].Name != "string" {
		t.Fatalf("Weird productions = %+v, want downgraded string leaf", prods)
	}
}

func TestBuildNoRootElement(t *testing.T) {
	schema := attrNode("schema", nil, attrNode("complexType", map[string]string{"name": "Orphan"}))
	_, _, err := Build(schema)
	if err != ErrNoRootElement {
		t.Fatalf("err = %v, want ErrNoRootElement", err)
	}
}

func TestBuildCircularDefinitionDoesNotLoop(t *testing.T) {
	// <element name="A" type="AType"/>, AType's sequence contains an
	// element named "A" again via ref, forming a cycle the builder must
	// guard against rather than recurse forever.
	childRef := attrNode("element", map[string]string{"ref": "A"})
	sequence := attrNode("sequence", nil, childRef)
	aType := attrNode("complexType", map[string]string{"name": "AType"}, sequence)
	aEl := attrNode("element", map[string]string{"name": "A", "type": "AType"})
	schema := attrNode("schema", nil, aType, aEl)

	g, _, err := Build(schema)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	prods := g.ProductionsFor("A")
	if len(prods) != 1 {
		t.Fatalf("A productions = %d, want 1 (no duplication from the cycle)", len(prods))
	}
	if len(prods[0].RHS) != 1 || prods[0].RHS[0].Name != "A" {
		t.Fatalf("A production RHS = %+v, want self-reference", prods[0].RHS)
	}
}

func TestBuildInconsistentCardinalityAborts(t *testing.T) {
	// maxOccurs < minOccurs on the root element itself: the build must
	// abort with ErrInconsistentCard rather than silently accept it.
	el := attrNode("element", map[string]string{
		"name":      "Weird",
		"type":      "xs:string",
		"minOccurs": "5",
		"maxOccurs": "2",
	})
	schema := attrNode("schema", nil, el)

	_, diags, err := Build(schema)
	if err != ErrInconsistentCard {
		t.Fatalf("err = %v, want ErrInconsistentCard", err)
	}
	if !diags.HasErrors() {
		t.Fatalf("expected an error diagnostic, got %v", diags)
	}
	found := false
	for _, d := range diags {
		if d.Cause == ErrInconsistentCard && d.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a SeverityError ErrInconsistentCard diagnostic, got %v", diags)
	}
}

func TestBuildRefReusesProduction(t *testing.T) {
	billTo := attrNode("element", map[string]string{"name": "BillTo", "type": "xs:string"})
	shipTo := attrNode("element", map[string]string{"ref": "BillTo", "maxOccurs": "unbounded"})
	sequence := attrNode("sequence", nil, shipTo)
	orderType := attrNode("complexType", map[string]string{"name": "OrderType"}, sequence)
	orderEl := attrNode("element", map[string]string{"name": "Order", "type": "OrderType"})
	schema := attrNode("schema", nil, orderType, orderEl, billTo)

	g, diags, err := Build(schema)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diags.HasErrors() {
		t.Fatalf("unexpected errors: %v", diags)
	}
	if len(g.ProductionsFor("BillTo")) != 1 {
		t.Fatalf("BillTo should have exactly one production, ref must not duplicate it")
	}
	orderProds := g.ProductionsFor("Order")
	if len(orderProds) != 1 || orderProds[0].RHS[0].Name != "BillTo" {
		t.Fatalf("Order production = %+v, want RHS referencing BillTo", orderProds)
	}
}

func TestBuildSimpleTypeRestriction(t *testing.T) {
	enum1 := attrNode("enumeration", map[string]string{"value": "gold"})
	enum2 := attrNode("enumeration", map[string]string{"value": "silver"})
	restriction := attrNode("restriction", map[string]string{"base": "xs:string"}, enum1, enum2)
	tier := attrNode("simpleType", nil, restriction)
	el := attrNode("element", map[string]string{"name": "Tier"}, tier)
	schema := attrNode("schema", nil, el)

	g, _, err := Build(schema)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tc := g.TypeConstraints["Tier"]
	if tc == nil || tc.BaseType != "string" {
		t.Fatalf("Tier type constraint = %+v", tc)
	}
	if len(tc.EnumerationValues) != 2 || tc.EnumerationValues[0] != "gold" || tc.EnumerationValues[1] != "silver" {
		t.Fatalf("Tier enumeration = %v", tc.EnumerationValues)
	}
}

func TestBuildSimpleContentExtension(t *testing.T) {
	unitAttr := attrNode("attribute", map[string]string{"name": "unit", "type": "xs:string", "use": "required"})
	extension := attrNode("extension", map[string]string{"base": "xs:decimal"}, unitAttr)
	simpleContent := attrNode("simpleContent", nil, extension)
	priceType := attrNode("complexType", map[string]string{"name": "PriceType"}, simpleContent)
	el := attrNode("element", map[string]string{"name": "Price", "type": "PriceType"})
	schema := attrNode("schema", nil, priceType, el)

	g, _, err := Build(schema)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tc := g.TypeConstraints["Price"]
	if tc == nil || tc.BaseType != "decimal" {
		t.Fatalf("Price type constraint = %+v", tc)
	}
	attrs := g.Attributes["Price"]
	if len(attrs) != 1 || attrs[0].Name != "unit" || !attrs[0].Required {
		t.Fatalf("Price attributes = %+v", attrs)
	}
	prods := g.ProductionsFor("Price")
	if len(prods) != 1 || prods[0].RHS[0].Name != "decimal" {
		t.Fatalf("Price productions = %+v, want decimal leaf, no sequence", prods)
	}
}
