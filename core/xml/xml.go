// Package xml parses description markup into xmlquery trees and offers the
// read-only utilities built on them: XPath lookups, a well-formedness check
// and an indenting formatter.
//
// Entity expansion is disabled wherever encoding/xml decodes input, and
// xmlquery never fetches external entities.
package xml

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/msdesc/core/encoding"
	"github.com/FocuswithJustin/msdesc/core/errors"
)

// xmlNamespace is the URI encoding/xml reports for the reserved xml: prefix.
const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// Document represents a parsed markup document.
type Document struct {
	root *xmlquery.Node
}

// Node represents a node returned by an XPath query.
type Node struct {
	node *xmlquery.Node
}

// ValidationResult contains the result of a well-formedness check.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError represents a single well-formedness error.
type ValidationError struct {
	Line    int
	Message string
}

// FormatOptions controls formatting behavior.
type FormatOptions struct {
	Indent string // Indentation string (e.g., "  " or "\t")
}

// Parse parses markup and returns a Document.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewParse("XML", "", err.Error())
	}
	return &Document{root: root}, nil
}

// ParseString is Parse for string input.
func ParseString(s string) (*Document, error) {
	return Parse([]byte(s))
}

// Raw returns the underlying document node for tree walkers.
func (d *Document) Raw() *xmlquery.Node {
	return d.root
}

// Validate reports whether data is well-formed markup.
func Validate(data []byte) ValidationResult {
	result := ValidationResult{Valid: true}

	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}

	for {
		_, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			if se, ok := err.(*xml.SyntaxError); ok {
				line = se.Line
			}
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{Line: line, Message: err.Error()})
			break
		}
	}

	return result
}

// Format pretty-prints markup data.
func Format(data []byte, opts FormatOptions) ([]byte, error) {
	if opts.Indent == "" {
		opts.Indent = "  "
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	formatNode(&buf, doc.root, 0, opts.Indent)
	return buf.Bytes(), nil
}

// QualifiedName returns the prefixed name of an attribute, e.g. "xml:id".
func QualifiedName(attr xmlquery.Attr) string {
	space := attr.Name.Space
	if space == xmlNamespace {
		space = "xml"
	}
	if space == "" {
		return attr.Name.Local
	}
	return space + ":" + attr.Name.Local
}

func formatNode(w *bytes.Buffer, n *xmlquery.Node, depth int, indent string) {
	switch n.Type {
	case xmlquery.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			formatNode(w, child, depth, indent)
		}

	case xmlquery.DeclarationNode:
		w.WriteString("<?xml")
		for _, attr := range n.Attr {
			w.WriteString(" " + attr.Name.Local + "=\"" + encoding.EscapeXMLAttr(attr.Value) + "\"")
		}
		w.WriteString("?>\n")

	case xmlquery.ElementNode:
		name := n.Data
		if n.Prefix != "" {
			name = n.Prefix + ":" + name
		}
		writeIndent(w, depth, indent)
		w.WriteString("<" + name)
		for _, attr := range n.Attr {
			w.WriteString(" " + QualifiedName(attr) + "=\"" + encoding.EscapeXMLAttr(attr.Value) + "\"")
		}

		hasElementChildren := false
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.ElementNode {
				hasElementChildren = true
				break
			}
		}

		if n.FirstChild == nil {
			w.WriteString("/>\n")
			return
		}
		w.WriteString(">")
		if hasElementChildren {
			w.WriteString("\n")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			switch child.Type {
			case xmlquery.ElementNode:
				formatNode(w, child, depth+1, indent)
			case xmlquery.TextNode:
				text := strings.TrimSpace(child.Data)
				if text == "" {
					continue
				}
				if hasElementChildren {
					writeIndent(w, depth+1, indent)
				}
				w.WriteString(encoding.EscapeXMLText(text))
				if hasElementChildren {
					w.WriteString("\n")
				}
			case xmlquery.CharDataNode:
				w.WriteString("<![CDATA[" + child.Data + "]]>")
			case xmlquery.CommentNode:
				formatNode(w, child, depth+1, indent)
			}
		}
		if hasElementChildren {
			writeIndent(w, depth, indent)
		}
		w.WriteString("</" + name + ">\n")

	case xmlquery.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			w.WriteString(encoding.EscapeXMLText(text))
		}

	case xmlquery.CommentNode:
		writeIndent(w, depth, indent)
		w.WriteString("<!--" + n.Data + "-->\n")
	}
}

func writeIndent(w *bytes.Buffer, depth int, indent string) {
	for i := 0; i < depth; i++ {
		w.WriteString(indent)
	}
}

// XPath executes an XPath query and returns matching nodes.
func (d *Document) XPath(expr string) ([]*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, errors.NewParse("XPath", expr, err.Error())
	}

	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, errors.Wrap(err, "xpath query failed")
	}

	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result, nil
}

// Name returns the element name.
func (n *Node) Name() string {
	if n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns the text content of the node and its descendants.
func (n *Node) Text() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// OuterXML returns the node serialized with its own tag.
func (n *Node) OuterXML() string {
	if n.node == nil {
		return ""
	}
	return n.node.OutputXML(true)
}

// Attr returns the value of a specific attribute.
func (n *Node) Attr(name string) string {
	if n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}
