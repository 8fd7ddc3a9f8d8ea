// Package lint implements the subset linter (§4.A component A): the gate
// that rejects a stylesheet before the rest of the pipeline ever builds a
// grammar or an MTT from it. It follows goyang's walk-and-accumulate
// validation idiom (its Entry validation passes), applied here to a
// generic xtree.Node instead of a yang.Entry.
package lint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vetxslt/vetxslt/internal/xtree"
)

// allowedLocalNames is the closed set §4.A allows inside the stylesheet
// namespace.
var allowedLocalNames = map[string]bool{
	"stylesheet": true, "transform": true, "template": true,
	"apply-templates": true, "for-each": true, "if": true, "choose": true,
	"when": true, "otherwise": true, "value-of": true, "text": true,
	"element": true, "attribute": true, "with-param": true, "param": true,
}

// reservedDisallowed is the closed set §4.A calls out by name even though
// it would already fail the allowed-set check, so each gets its own
// diagnostic category rather than a generic "disallowed construct".
var reservedDisallowed = map[string]bool{
	"document": true, "key": true, "import": true, "include": true,
	"call-template": true, "variable": true, "sort": true, "number": true,
	"copy": true, "copy-of": true,
}

var complexPatternTokens = []string{"//", "ancestor::", "following::"}
var stringFunctionTokens = []string{"contains(", "substring(", "concat(", "preceding::", "following::"}

// Result is the linter's contract: {valid, errors, warnings} (§4.A).
type Result struct {
	Valid    bool
	Errors   []*Diagnostic
	Warnings []*Diagnostic
}

// Lint walks stylesheet depth-first and enforces the subset (§4.A). Any
// error sets Valid=false; warnings never do.
func Lint(stylesheet *xtree.Node) *Result {
	r := &Result{Valid: true}
	if stylesheet == nil {
		r.Valid = false
		r.Errors = append(r.Errors, &Diagnostic{Severity: SeverityError, Cause: ErrDisallowed, Detail: "empty stylesheet", Path: "/"})
		return r
	}
	walk(stylesheet, "/"+stylesheet.Tag, r)
	r.Valid = len(r.Errors) == 0
	return r
}

func walk(n *xtree.Node, path string, r *Result) {
	if n.InStylesheetNS() {
		checkNode(n, path, r)
	} else {
		checkAttributeValueTemplates(n, path, r)
	}
	counts := map[string]int{}
	for _, c := range n.Children {
		counts[c.Tag]++
		childPath := fmt.Sprintf("%s/%s[%d]", path, c.Tag, counts[c.Tag])
		walk(c, childPath, r)
	}
}

func checkNode(n *xtree.Node, path string, r *Result) {
	name := n.Tag

	if reservedDisallowed[name] {
		r.Errors = append(r.Errors, &Diagnostic{Severity: SeverityError, Cause: ErrDisallowed, Detail: fmt.Sprintf("%q is not analyzable", name), Path: path})
		return
	}
	if !allowedLocalNames[name] {
		r.Errors = append(r.Errors, &Diagnostic{Severity: SeverityError, Cause: ErrDisallowed, Detail: fmt.Sprintf("%q is outside the stylesheet subset", name), Path: path})
		return
	}

	switch name {
	case "template":
		match, ok := n.Attr("match")
		if !ok || match == "" {
			r.Errors = append(r.Errors, &Diagnostic{Severity: SeverityError, Cause: ErrMissingAttr, Detail: "template requires match", Path: path})
		} else if containsAny(match, complexPatternTokens) {
			r.Warnings = append(r.Warnings, &Diagnostic{Severity: SeverityWarning, Detail: "complex pattern", Path: path})
		}

	case "if":
		test, ok := n.Attr("test")
		if !ok || test == "" {
			r.Errors = append(r.Errors, &Diagnostic{Severity: SeverityError, Cause: ErrMissingAttr, Detail: "if requires test", Path: path})
		} else if containsAny(test, stringFunctionTokens) {
			r.Warnings = append(r.Warnings, &Diagnostic{Severity: SeverityWarning, Detail: "string-function usage", Path: path})
		}

	case "for-each":
		if sel, ok := n.Attr("select"); !ok || sel == "" {
			r.Errors = append(r.Errors, &Diagnostic{Severity: SeverityError, Cause: ErrMissingAttr, Detail: "for-each requires select", Path: path})
		}

	case "value-of":
		if sel, ok := n.Attr("select"); !ok || sel == "" {
			r.Errors = append(r.Errors, &Diagnostic{Severity: SeverityError, Cause: ErrMissingAttr, Detail: "value-of requires select", Path: path})
		}

	case "apply-templates":
		if sel, ok := n.Attr("select"); ok && containsAny(sel, stringFunctionTokens) {
			r.Warnings = append(r.Warnings, &Diagnostic{Severity: SeverityWarning, Detail: "string-function usage", Path: path})
		}

	case "choose":
		if len(n.ChildrenNamed("when")) == 0 {
			r.Errors = append(r.Errors, &Diagnostic{Severity: SeverityError, Cause: ErrChooseNoWhen, Path: path})
		}
	}

	checkAttributeValueTemplates(n, path, r)
}

// checkAttributeValueTemplates rejects multi-segment attribute-value
// templates (Open Question iii): any attribute value containing more than
// one `{`. Literal text around a single `{...}` fragment is not rejected.
// walk applies it to literal result elements as well as to the stylesheet
// instructions checkNode admits.
func checkAttributeValueTemplates(n *xtree.Node, path string, r *Result) {
	names := make([]string, 0, len(n.Attributes))
	for attrName := range n.Attributes {
		names = append(names, attrName)
	}
	sort.Strings(names)

	for _, attrName := range names {
		value := n.Attributes[attrName]
		if strings.Count(value, "{") <= 1 {
			continue
		}
		r.Errors = append(r.Errors, &Diagnostic{
			Severity: SeverityError,
			Cause:    ErrMultiSegmentAVT,
			Detail:   fmt.Sprintf("attribute %q has multiple {...} segments", attrName),
			Path:     path,
		})
	}
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
