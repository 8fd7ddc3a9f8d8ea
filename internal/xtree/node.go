// Package xtree implements the generic labeled tree that the rest of the
// analyzer is built on: a node with a tag, optional text, ordered children,
// and a flat attribute map. Every other package (the linter, the grammar
// builder, the MTT builder) consumes this type and never touches an XML
// library directly.
package xtree

import "strings"

// Node is a single element of a generic labeled tree, as described by the
// data model: a tag, optional text, ordered children, and attributes.
type Node struct {
	Tag        string
	Namespace  string
	Text       string
	Children   []*Node
	Attributes map[string]string

	// Row and Col locate the node's opening tag in the source document,
	// for diagnostics. Both are 1-based; zero means unknown.
	Row int
	Col int
}

// StylesheetNS is the XML namespace URI the subset linter and the
// stylesheet-to-MTT builder use to tell a stylesheet instruction
// (xsl:template, xsl:for-each, ...) apart from a literal result element
// that merely happens to share a local name with one.
const StylesheetNS = "http://www.w3.org/1999/XSL/Transform"

// InStylesheetNS reports whether n's tag belongs to the stylesheet
// namespace, as opposed to being a literal result element.
func (n *Node) InStylesheetNS() bool {
	return n != nil && n.Namespace == StylesheetNS
}

// Attr returns the value of the named attribute and whether it was present.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil || n.Attributes == nil {
		return "", false
	}
	v, ok := n.Attributes[name]
	return v, ok
}

// Child returns the first direct child whose Tag equals name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Tag == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every direct child whose Tag equals name, in order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Tag == name {
			out = append(out, c)
		}
	}
	return out
}

// LocalName strips a namespace prefix ("xs:element" -> "element"), since
// the schema and stylesheet subsets this analyzer accepts are identified
// by local name alone (spec.md §4.A, §4.B).
func LocalName(tag string) string {
	if i := strings.IndexByte(tag, ':'); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

// Walk calls fn for n and every descendant, depth first, pre-order.
func Walk(n *Node, fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		Walk(c, fn)
	}
}
