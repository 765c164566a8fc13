// Package tree defines the node algebra shared by the registry, the
// placement engine and the markup codec.
//
// A document is a tree of *Element and *Text values. Templates held by the
// registry use the same types; they are only ever handed out as clones.
package tree

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// AttrPrefix is prepended to every source attribute name stored on an element.
	AttrPrefix = "data_"
	// OriginAttr records the tag name the element was read from.
	OriginAttr = AttrPrefix + "origin"
	// TextElementTag marks the synthetic wrapper around a text leaf.
	TextElementTag = "textelement"
	// PathSeparator joins tag names in a breadcrumb path.
	PathSeparator = "-"
	// DocumentPath is the breadcrumb of the document node itself.
	DocumentPath = "#document"
)

// NewID returns a fresh node identifier.
var NewID = func() string {
	return uuid.NewString()
}

// idSpace is the name-based UUID namespace of positional identifiers.
var idSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:msdesc:node"))

// PositionID returns the identifier of the node at pos (child indices from
// the root) in a tree read under seed. Reading the same markup twice yields
// the same identifiers, so ids printed by one run address the same
// components in the next.
func PositionID(seed string, pos []int) string {
	var b strings.Builder
	b.WriteString(seed)
	for _, i := range pos {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(i))
	}
	return uuid.NewSHA1(idSpace, []byte(b.String())).String()
}

// Node is either an *Element or a *Text.
type Node interface {
	// Clone returns an independent deep copy.
	Clone() Node
	isNode()
}

// Attr is one stored attribute. Key carries AttrPrefix and a flattened
// namespace ("data_xml_id"); Name keeps the source spelling ("xml:id").
type Attr struct {
	Key   string `json:"key" yaml:"key"`
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Element is a tagged node.
type Element struct {
	ID        string `json:"id"`
	Tag       string `json:"tag"`
	Region    string `json:"region"`
	Path      string `json:"path"`
	Level     int    `json:"level"`
	Component string `json:"component"`
	Attrs     []Attr `json:"attrs,omitempty"`
	Children  []Node `json:"children"`
}

// Text is a leaf holding character data.
type Text struct {
	Region string `json:"region,omitempty"`
	Value  string `json:"text"`
}

func (*Element) isNode() {}
func (*Text) isNode()    {}

// Clone returns an independent deep copy of the element and its subtree.
func (e *Element) Clone() Node {
	return e.CloneElement()
}

// CloneElement is Clone without the interface conversion.
func (e *Element) CloneElement() *Element {
	if e == nil {
		return nil
	}
	c := *e
	if e.Attrs != nil {
		c.Attrs = append([]Attr(nil), e.Attrs...)
	}
	if e.Children != nil {
		c.Children = make([]Node, len(e.Children))
		for i, child := range e.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// Clone returns a copy of the text leaf.
func (t *Text) Clone() Node {
	c := *t
	return &c
}

// AttrKey converts a source attribute name into its stored key.
func AttrKey(name string) string {
	return AttrPrefix + strings.ReplaceAll(name, ":", "_")
}

// Attr returns the value stored for the source attribute name.
func (e *Element) Attr(name string) (string, bool) {
	key := AttrKey(name)
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// AttrValue returns the attribute value or "".
func (e *Element) AttrValue(name string) string {
	v, _ := e.Attr(name)
	return v
}

// SetAttr replaces or appends an attribute.
func (e *Element) SetAttr(name, value string) {
	key := AttrKey(name)
	for i, a := range e.Attrs {
		if a.Key == key {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Key: key, Name: name, Value: value})
}

// Type returns the type discriminator attribute.
func (e *Element) Type() string {
	return e.AttrValue("type")
}

// IsTextElement reports whether e is the synthetic text wrapper.
func (e *Element) IsTextElement() bool {
	return e.Tag == TextElementTag
}

// EnsureChild applies the non-empty invariant: an element without
// children receives a single empty text leaf.
func (e *Element) EnsureChild() {
	if len(e.Children) == 0 {
		e.Children = []Node{&Text{Region: e.Region}}
	}
}

// ChildElements returns the element children in order.
func (e *Element) ChildElements() []*Element {
	var out []*Element
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok {
			out = append(out, el)
		}
	}
	return out
}

// JoinPath appends tag to a breadcrumb.
func JoinPath(path, tag string) string {
	if path == "" {
		return tag
	}
	return path + PathSeparator + tag
}

// NodeAt follows child indices from root. It returns nil when an index is
// out of range or passes through a text leaf.
func NodeAt(root Node, path []int) Node {
	cur := root
	for _, i := range path {
		el, ok := cur.(*Element)
		if !ok || i < 0 || i >= len(el.Children) {
			return nil
		}
		cur = el.Children[i]
	}
	return cur
}

// Walk visits every node depth-first, pre-order. Returning false from fn
// skips the node's children.
func Walk(n Node, fn func(n Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	if el, ok := n.(*Element); ok {
		for _, c := range el.Children {
			walk(c, depth+1, fn)
		}
	}
}

// FindElement returns the first element in the subtree with the given id.
func FindElement(root Node, id string) *Element {
	var found *Element
	Walk(root, func(n Node, _ int) bool {
		if found != nil {
			return false
		}
		if el, ok := n.(*Element); ok && el.ID == id {
			found = el
			return false
		}
		return true
	})
	return found
}
