package rtg

import (
	"fmt"

	"github.com/vetxslt/vetxslt/internal/xtree"
)

// Builder performs the schema-to-grammar translation (§4.B). It mirrors
// the teacher's GrammarBuilder (goyang's grammar.go): a value that
// accumulates diagnostics as it walks an AST. Warnings (safe defaults)
// are recorded and the walk goes on; the first error diagnostic ends the
// build, and Build returns its cause.
type Builder struct {
	g    *Grammar
	diag Diagnostics

	complexTypes map[string]*xtree.Node
	simpleTypes  map[string]*xtree.Node
	topElements  map[string]*xtree.Node

	// visiting guards circular element definitions (§4.B Edge policies):
	// a name in this set is mid-construction; a revisit reuses whatever
	// production already exists instead of recursing again.
	visiting map[string]bool
}

// Build translates a schema document into a Grammar. It returns the
// grammar built so far (possibly incomplete) and its diagnostics even on
// failure, along with a non-nil error for conditions that abort the build:
// no root element, a dangling ref=, an element with neither name nor ref,
// an unsupported content model, or an inconsistent cardinality.
func Build(schema *xtree.Node) (*Grammar, Diagnostics, error) {
	if schema == nil {
		return nil, nil, ErrInvalidSchema
	}

	b := &Builder{
		g:            New(""),
		complexTypes: map[string]*xtree.Node{},
		simpleTypes:  map[string]*xtree.Node{},
		topElements:  map[string]*xtree.Node{},
		visiting:     map[string]bool{},
	}

	// Pass 1: type collection, so later element definitions can resolve
	// type= references regardless of declaration order (§4.B step 2).
	var firstTopElement *xtree.Node
	for _, child := range schema.Children {
		switch xtree.LocalName(child.Tag) {
		case "complexType":
			if name, ok := child.Attr("name"); ok {
				b.complexTypes[name] = child
			}
		case "simpleType":
			if name, ok := child.Attr("name"); ok {
				b.simpleTypes[name] = child
			}
		case "element":
			if name, ok := child.Attr("name"); ok {
				b.topElements[name] = child
				if firstTopElement == nil {
					firstTopElement = child
				}
			}
		}
	}

	if firstTopElement == nil {
		b.diag = append(b.diag, &Diagnostic{Severity: SeverityError, Cause: ErrNoRootElement})
		return b.g, b.diag, ErrNoRootElement
	}

	// Pass 2: element processing, rooted at the first top-level element.
	rootName, err := b.processElement(firstTopElement, DefaultCardinality)
	if err != nil {
		return b.g, b.diag, err
	}
	b.g.Root = rootName

	return b.g, b.diag, nil
}

func (b *Builder) errorf(sev Severity, cause error, node *xtree.Node, detailFmt string, args ...interface{}) {
	d := &Diagnostic{Severity: sev, Cause: cause, Detail: fmt.Sprintf(detailFmt, args...)}
	if node != nil {
		d.Row, d.Col = node.Row, node.Col
	}
	b.diag = append(b.diag, d)
}

// processElement resolves one <element> declaration (top-level, inline, or
// a ref=) into exactly one production for its name and returns that name.
func (b *Builder) processElement(el *xtree.Node, card Cardinality) (string, error) {
	if ref, ok := el.Attr("ref"); ok && ref != "" {
		name := xtree.LocalName(ref)
		if b.g.HasProduction(name) {
			return name, nil
		}
		target, found := b.topElements[name]
		if !found {
			b.errorf(SeverityError, ErrDanglingRef, el, "ref=%q", ref)
			return name, ErrDanglingRef
		}
		// do not duplicate the referenced element's productions (§4.B
		// Edge policies); the ref's own occurrence bound governs the use
		// site, so we hand it through here.
		refCard, err := b.refCardinality(el, card)
		if err != nil {
			return name, err
		}
		return b.processElement(target, refCard)
	}

	name, ok := el.Attr("name")
	if !ok || name == "" {
		b.errorf(SeverityError, ErrMissingElementName, el, "")
		return "", ErrMissingElementName
	}

	if b.g.HasProduction(name) {
		// Already fully built (e.g. reached again through another ref);
		// reuse it rather than recurse.
		return name, nil
	}
	if b.visiting[name] {
		// Circular definition: the in-progress production will be
		// completed by the outer call; nothing to add here.
		return name, nil
	}
	b.visiting[name] = true
	defer delete(b.visiting, name)

	eltCard, err := b.elementCardinality(el, card)
	if err != nil {
		return name, err
	}

	if typeAttr, ok := el.Attr("type"); ok && typeAttr != "" {
		base := xtree.LocalName(typeAttr)
		if BuiltinAtomicTypes[base] {
			b.g.AddProduction(&Production{LHS: name, RHS: []Symbol{{Name: base, Atomic: true}}, Kind: Sequence, Cardinality: eltCard})
			b.g.TypeConstraints[name] = NewTypeConstraint(base)
			return name, nil
		}
		if ct, ok := b.complexTypes[base]; ok {
			return name, b.processComplexType(name, ct, eltCard)
		}
		if st, ok := b.simpleTypes[base]; ok {
			return name, b.processSimpleType(name, st, eltCard)
		}
		// Unknown type reference: downgrade to string with a warning
		// rather than aborting the whole build (§4.B, §7 Kind 3).
		b.errorf(SeverityWarning, ErrUndefinedType, el, "%q on element %q, treated as string", typeAttr, name)
		b.g.AddProduction(&Production{LHS: name, RHS: []Symbol{{Name: "string", Atomic: true}}, Kind: Sequence, Cardinality: eltCard})
		b.g.TypeConstraints[name] = NewTypeConstraint("string")
		return name, nil
	}

	if ct := el.Child("complexType"); ct != nil {
		return name, b.processComplexType(name, ct, eltCard)
	}
	if st := el.Child("simpleType"); st != nil {
		return name, b.processSimpleType(name, st, eltCard)
	}

	// No type, no inline definition: treat as an untyped string leaf,
	// the same "safe default" the unknown-type-reference path uses.
	b.g.AddProduction(&Production{LHS: name, RHS: []Symbol{{Name: "string", Atomic: true}}, Kind: Sequence, Cardinality: eltCard})
	b.g.TypeConstraints[name] = NewTypeConstraint("string")
	return name, nil
}

// processComplexType builds the production(s) for an element whose type is
// a complex type, named owner, harvesting attributes and exactly one of
// sequence/choice/all, or a simpleContent extension (§4.B step 4).
func (b *Builder) processComplexType(owner string, ct *xtree.Node, card Cardinality) error {
	b.harvestAttributes(owner, ct)

	if sc := ct.Child("simpleContent"); sc != nil {
		ext := sc.Child("extension")
		if ext == nil {
			b.errorf(SeverityError, ErrUnsupportedContent, ct, "simpleContent without extension on %q", owner)
			return ErrUnsupportedContent
		}
		b.harvestAttributes(owner, ext)
		base := xtree.LocalName(firstNonEmpty(ext.Attr("base")))
		b.g.TypeConstraints[owner] = NewTypeConstraint(base)
		// simpleContent produces no sequence/choice/all production; the
		// element still needs a leaf production so every nonterminal
		// remains derivable (§3 invariant).
		b.g.AddProduction(&Production{LHS: owner, RHS: []Symbol{{Name: base, Atomic: BuiltinAtomicTypes[base]}}, Kind: Sequence, Cardinality: card})
		return nil
	}

	for _, kindName := range []string{"sequence", "choice", "all"} {
		group := ct.Child(kindName)
		if group == nil {
			continue
		}
		var rhs []Symbol
		for _, childEl := range group.ChildrenNamed("element") {
			childName, err := b.processElement(childEl, DefaultCardinality)
			if err != nil {
				return err
			}
			rhs = append(rhs, Symbol{Name: childName, Atomic: b.g.IsAtomic(childName) && !b.g.HasProduction(childName)})
		}
		b.g.AddProduction(&Production{LHS: owner, RHS: rhs, Kind: ProductionKind(kindName), Cardinality: card})
		return nil
	}

	b.errorf(SeverityError, ErrUnsupportedContent, ct, "on %q", owner)
	return ErrUnsupportedContent
}

// processSimpleType builds the leaf production and type constraint for an
// element whose type is a simpleType with a restriction (§4.B step 5).
func (b *Builder) processSimpleType(owner string, st *xtree.Node, card Cardinality) error {
	// A simpleType without a restriction (e.g. a bare union) comes back
	// from simpleTypeConstraint as an opaque string, the same safe default
	// as an unresolved type reference.
	tc := b.simpleTypeConstraint(st)
	b.g.TypeConstraints[owner] = tc
	b.g.AddProduction(&Production{LHS: owner, RHS: []Symbol{{Name: tc.BaseType, Atomic: BuiltinAtomicTypes[tc.BaseType]}}, Kind: Sequence, Cardinality: card})
	return nil
}

// harvestAttributes collects an owning element's <attribute> children into
// the grammar's ordered attributes table (§4.B step 4), resolving each
// attribute's restrictions the same way processSimpleType resolves an
// element's (needed by §4.D step 2 and §4.E step 3, both of which compare
// against an attribute's declared restrictions, e.g. an attribute-value
// template mapping into an attribute like `years[minInclusive=0]`).
func (b *Builder) harvestAttributes(owner string, container *xtree.Node) {
	for _, a := range container.ChildrenNamed("attribute") {
		name, _ := a.Attr("name")
		typeRef := xtree.LocalName(firstNonEmpty(a.Attr("type")))
		use, _ := a.Attr("use")
		b.g.Attributes[owner] = append(b.g.Attributes[owner], AttributeDecl{
			Name:       name,
			TypeRef:    typeRef,
			Required:   use == "required",
			Constraint: b.resolveAttributeConstraint(a, typeRef),
		})
	}
}

// resolveAttributeConstraint resolves an attribute's type= reference (or
// inline simpleType child) into a TypeConstraint: a builtin type becomes a
// bare constraint with no restrictions, a named simpleType resolves its
// restriction facets the same way an element's simpleType would.
func (b *Builder) resolveAttributeConstraint(a *xtree.Node, typeRef string) *TypeConstraint {
	if st := a.Child("simpleType"); st != nil {
		return b.simpleTypeConstraint(st)
	}
	if typeRef == "" {
		return NewTypeConstraint("string")
	}
	if BuiltinAtomicTypes[typeRef] {
		return NewTypeConstraint(typeRef)
	}
	if st, ok := b.simpleTypes[typeRef]; ok {
		return b.simpleTypeConstraint(st)
	}
	// Unresolvable attribute type reference: same safe-default policy as
	// an element's unknown type= (§4.B, §7 Kind 3), but attributes do not
	// abort the build or need their own diagnostic category.
	return NewTypeConstraint("string")
}

// simpleTypeConstraint extracts the TypeConstraint a <simpleType> denotes,
// factored out of processSimpleType so both elements and attributes
// resolve restrictions identically.
func (b *Builder) simpleTypeConstraint(st *xtree.Node) *TypeConstraint {
	restriction := st.Child("restriction")
	if restriction == nil {
		return NewTypeConstraint("string")
	}
	base := xtree.LocalName(firstNonEmpty(restriction.Attr("base")))
	tc := NewTypeConstraint(base)
	for _, facet := range restriction.Children {
		value, _ := facet.Attr("value")
		tc.SetRestriction(xtree.LocalName(facet.Tag), value)
	}
	return tc
}

// elementCardinality resolves an element's minOccurs/maxOccurs into a
// Cardinality, falling back to the caller's default when neither attribute
// is present or the pair fails to parse. A pair that parses but is
// inconsistent (hi < lo) is a hard defect (§7 Kind 3), not a parse failure,
// so it is reported and aborts the build rather than silently falling back.
func (b *Builder) elementCardinality(el *xtree.Node, fallback Cardinality) (Cardinality, error) {
	minOccurs, hasMin := el.Attr("minOccurs")
	maxOccurs, hasMax := el.Attr("maxOccurs")
	if !hasMin && !hasMax {
		return fallback, nil
	}
	c, err := ParseCardinality(minOccurs, maxOccurs)
	if err != nil {
		return fallback, nil
	}
	if !c.Valid() {
		b.errorf(SeverityError, ErrInconsistentCard, el, "minOccurs=%q maxOccurs=%q", minOccurs, maxOccurs)
		return c, ErrInconsistentCard
	}
	return c, nil
}

func (b *Builder) refCardinality(el *xtree.Node, fallback Cardinality) (Cardinality, error) {
	return b.elementCardinality(el, fallback)
}

func firstNonEmpty(s string, ok bool) string {
	if !ok {
		return "string"
	}
	return s
}
