package rtg

// RestrictionKey enumerates the closed set of facet keywords a type
// constraint's restrictions map may use (§3).
type RestrictionKey string

const (
	MinInclusive RestrictionKey = "minInclusive"
	MaxInclusive RestrictionKey = "maxInclusive"
	MinExclusive RestrictionKey = "minExclusive"
	MaxExclusive RestrictionKey = "maxExclusive"
	Enumeration  RestrictionKey = "enumeration"
	Pattern      RestrictionKey = "pattern"
	Length       RestrictionKey = "length"
	MinLength    RestrictionKey = "minLength"
	MaxLength    RestrictionKey = "maxLength"
)

// knownRestrictionKeys is the closed set §3 allows; anything else found in
// a simpleType restriction is ignored by the builder rather than rejected,
// since the spec only promises to interpret this set.
var knownRestrictionKeys = map[string]RestrictionKey{
	"minInclusive": MinInclusive,
	"maxInclusive": MaxInclusive,
	"minExclusive": MinExclusive,
	"maxExclusive": MaxExclusive,
	"enumeration":  Enumeration,
	"pattern":      Pattern,
	"length":       Length,
	"minLength":    MinLength,
	"maxLength":    MaxLength,
}

// numericBaseTypes groups base types that the validator treats as mutually
// compatible (§4.D step 2).
var numericBaseTypes = map[string]bool{
	"integer": true,
	"int":     true,
	"long":    true,
	"decimal": true,
	"float":   true,
	"double":  true,
}

// stringLikeBaseTypes groups targets a "string" source may widen to.
var stringLikeBaseTypes = map[string]bool{
	"string":             true,
	"normalizedString":   true,
	"token":               true,
}

// TypesCompatible implements the base-type compatibility test from §4.D
// step 2: equal, both numeric, or string widening to a string-like target.
func TypesCompatible(src, tgt string) bool {
	if src == tgt {
		return true
	}
	if numericBaseTypes[src] && numericBaseTypes[tgt] {
		return true
	}
	if src == "string" && stringLikeBaseTypes[tgt] {
		return true
	}
	return false
}

// IsNumeric reports whether base is one of the numeric group members.
func IsNumeric(base string) bool { return numericBaseTypes[base] }

// BuiltinAtomicTypes is the set Σ of atomic type labels a schema may use
// directly as a `type="xs:*"` reference (§4.B step 3). Unknown type names
// are not in this set and are resolved via the custom-type tables instead.
var BuiltinAtomicTypes = map[string]bool{
	"string":   true,
	"integer":  true,
	"int":      true,
	"long":     true,
	"decimal":  true,
	"float":    true,
	"double":   true,
	"boolean":  true,
	"date":     true,
	"dateTime": true,
	"anyURI":   true,
	"token":    true,
}

// TypeConstraint records the base type and restrictions of one element, as
// described in the data model (§3).
type TypeConstraint struct {
	BaseType     string
	Restrictions map[RestrictionKey]string

	// EnumerationValues accumulates every <enumeration value="..."/> occurrence,
	// since that facet is multi-valued (§4.B step 5).
	EnumerationValues []string
}

// NewTypeConstraint returns an empty constraint rooted at base.
func NewTypeConstraint(base string) *TypeConstraint {
	return &TypeConstraint{BaseType: base, Restrictions: map[RestrictionKey]string{}}
}

// SetRestriction records a facet by its XML-Schema local name, ignoring
// any facet outside the closed set knownRestrictionKeys enumerates.
func (tc *TypeConstraint) SetRestriction(facetName, value string) {
	key, ok := knownRestrictionKeys[facetName]
	if !ok {
		return
	}
	if key == Enumeration {
		tc.EnumerationValues = append(tc.EnumerationValues, value)
	}
	tc.Restrictions[key] = value
}

// AttributeDecl is one entry of an element's ordered attribute list (§3).
// Constraint is resolved from TypeRef at harvest time (builtin type or a
// named simpleType's restriction) so the type-preservation validator and
// the preimage builder can read an attribute's restrictions the same way
// they read an element's, without re-resolving TypeRef themselves.
type AttributeDecl struct {
	Name       string
	TypeRef    string
	Required   bool
	Constraint *TypeConstraint
}
