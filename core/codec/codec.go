// Package codec converts between description markup and annotated node
// trees, and projects trees into the sidebar forest.
//
// Reading never fails on unknown tags or attributes: they are carried
// through as ordinary elements with an empty component classification.
package codec

import (
	"slices"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/msdesc/core/encoding"
	"github.com/FocuswithJustin/msdesc/core/errors"
	"github.com/FocuswithJustin/msdesc/core/schema"
	"github.com/FocuswithJustin/msdesc/core/tree"
	"github.com/FocuswithJustin/msdesc/core/xml"
)

// Codec reads and writes markup for the subtypes of one registry.
type Codec struct {
	reg *schema.Registry
}

// New returns a Codec classifying against reg.
func New(reg *schema.Registry) *Codec {
	return &Codec{reg: reg}
}

// ParseString parses markup text and deserializes its root element.
func (c *Codec) ParseString(text, subtype string) (*tree.Element, error) {
	doc, err := xml.ParseString(text)
	if err != nil {
		return nil, err
	}
	return c.DeserializeDocument(doc.Raw(), subtype)
}

// DeserializeDocument deserializes the root element of a parsed document.
// Breadcrumbs start at "#document".
func (c *Codec) DeserializeDocument(doc *xmlquery.Node, subtype string) (*tree.Element, error) {
	root := doc
	if doc.Type == xmlquery.DocumentNode {
		root = nil
		for n := doc.FirstChild; n != nil; n = n.NextSibling {
			if n.Type == xmlquery.ElementNode {
				root = n
				break
			}
		}
	}
	if root == nil || root.Type != xmlquery.ElementNode {
		return nil, errors.NewParse("XML", "", "document has no root element")
	}
	cat, _ := c.reg.Catalog(subtype)
	n, _ := c.deserialize(cat, root, "", tree.DocumentPath, subtype, nil)
	el, _ := n.(*tree.Element)
	return el, nil
}

// Deserialize converts src and its subtree. region and path are those of
// src's parent. Comments, processing instructions and whitespace-only
// text yield nil. Identifiers depend on path and the position of each node
// below src, so converting the same source twice gives the same ids.
func (c *Codec) Deserialize(src *xmlquery.Node, region, path, subtype string) tree.Node {
	cat, _ := c.reg.Catalog(subtype)
	n, _ := c.deserialize(cat, src, region, path, subtype+":"+path, nil)
	return n
}

func (c *Codec) deserialize(cat *schema.Catalog, src *xmlquery.Node, region, path, seed string, pos []int) (tree.Node, bool) {
	switch src.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode:
		value := strings.TrimSpace(src.Data)
		if value == "" {
			return nil, false
		}
		return &tree.Element{
			ID:       tree.PositionID(seed, pos),
			Tag:      tree.TextElementTag,
			Region:   region,
			Path:     path,
			Level:    tree.LevelOf(path),
			Attrs:    []tree.Attr{{Key: tree.OriginAttr, Name: "origin", Value: tree.TextElementTag}},
			Children: []tree.Node{&tree.Text{Region: region, Value: value}},
		}, true

	case xmlquery.ElementNode:
		tag := src.Data
		typ := src.SelectAttr("type")
		region = tree.RegionFor(tag, typ, region)
		path = tree.JoinPath(path, tag)

		el := &tree.Element{
			ID:        tree.PositionID(seed, pos),
			Tag:       tag,
			Region:    region,
			Path:      path,
			Level:     tree.LevelOf(path),
			Component: Classify(cat, tag, src.SelectAttr("class"), typ, region),
			Attrs:     []tree.Attr{{Key: tree.OriginAttr, Name: "origin", Value: tag}},
		}
		for _, a := range src.Attr {
			name := xml.QualifiedName(a)
			el.Attrs = append(el.Attrs, tree.Attr{
				Key:   tree.AttrKey(name),
				Name:  name,
				Value: encoding.EscapeHTML(a.Value),
			})
		}
		for child := src.FirstChild; child != nil; child = child.NextSibling {
			childPos := append(slices.Clone(pos), len(el.Children))
			if n, ok := c.deserialize(cat, child, region, path, seed, childPos); ok {
				el.Children = append(el.Children, n)
			}
		}
		el.EnsureChild()
		return el, true
	}
	return nil, false
}

// Classify resolves the component kind of an element against cat. It
// returns "" when nothing matches or cat is nil.
func Classify(cat *schema.Catalog, tag, class, typ, region string) string {
	if cat == nil {
		return ""
	}
	return cat.Classify(tag, class, typ, region)
}

// Classify is the package Classify bound to subtype's catalog.
func (c *Codec) Classify(subtype, tag, class, typ, region string) string {
	cat, _ := c.reg.Catalog(subtype)
	return Classify(cat, tag, class, typ, region)
}

// Serialize writes n back to markup. Text wrappers are transparent.
func Serialize(n tree.Node) string {
	var b strings.Builder
	serialize(&b, n, true)
	return b.String()
}

// SerializeAsText writes only the text leaves of n.
func SerializeAsText(n tree.Node) string {
	var b strings.Builder
	serialize(&b, n, false)
	return b.String()
}

func serialize(b *strings.Builder, n tree.Node, tags bool) {
	switch v := n.(type) {
	case *tree.Text:
		b.WriteString(encoding.EscapeHTML(v.Value))
	case *tree.Element:
		if !tags || v.IsTextElement() {
			for _, c := range v.Children {
				serialize(b, c, tags)
			}
			return
		}
		b.WriteString("<" + v.Tag)
		for _, a := range v.Attrs {
			if a.Key == tree.OriginAttr || a.Value == tree.TextElementTag {
				continue
			}
			b.WriteString(" " + attrName(a) + "=\"" + a.Value + "\"")
		}
		b.WriteString(">")
		for _, c := range v.Children {
			serialize(b, c, tags)
		}
		b.WriteString("</" + v.Tag + ">\n")
	}
}

func attrName(a tree.Attr) string {
	if a.Name != "" {
		return a.Name
	}
	return strings.TrimPrefix(a.Key, tree.AttrPrefix)
}
