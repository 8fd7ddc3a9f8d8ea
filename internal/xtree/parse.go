package xtree

import (
	"fmt"

	"aqwari.net/xml/xmltree"
)

// ParseError reports that an input blob was not well-formed XML (Error
// Kind 1, input malformation). Offset is the byte offset of the failure
// when known and -1 otherwise; Parse does not get an offset from the XML
// library and always sets -1.
type ParseError struct {
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("malformed xml at byte %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("malformed xml: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse turns a well-formed XML document into a generic labeled tree. It
// is the only XML entry point in the analyzer: everything downstream
// (the subset linter, the schema-to-grammar builder, the stylesheet-to-MTT
// builder) consumes *Node and never imports an XML package itself.
func Parse(data []byte) (*Node, error) {
	root, err := xmltree.Parse(data)
	if err != nil {
		return nil, &ParseError{Offset: -1, Err: err}
	}
	return fromElement(root), nil
}

// fromElement copies an xmltree.Element subtree into our own Node shape so
// that the rest of the analyzer depends on a small stable type rather than
// the XML library's own element representation.
func fromElement(el *xmltree.Element) *Node {
	n := &Node{
		Tag:        el.Name.Local,
		Namespace:  el.Name.Space,
		Text:       string(el.Content),
		Attributes: make(map[string]string, len(el.StartElement.Attr)),
	}
	for _, a := range el.StartElement.Attr {
		n.Attributes[a.Name.Local] = a.Value
	}
	for i := range el.Children {
		n.Children = append(n.Children, fromElement(&el.Children[i]))
	}
	return n
}
