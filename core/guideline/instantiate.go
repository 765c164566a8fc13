package guideline

import (
	"strconv"

	"github.com/FocuswithJustin/msdesc/core/errors"
	"github.com/FocuswithJustin/msdesc/core/schema"
	"github.com/FocuswithJustin/msdesc/core/tree"
)

// numberedKinds get their sequence number written into the new subtree.
var numberedKinds = map[string]bool{
	"msPartfragment": true,
	"msPartbooklet":  true,
}

// InsertRequest describes a component to create next to or inside Target.
type InsertRequest struct {
	Subtype string
	Target  *tree.Component
	Kind    string
	// IsChild places the new component inside Target instead of after it.
	IsChild bool
	// ExistingWrapper is the wrapper element the new component joins. When
	// nil and the kind requires a wrapper in this context, one is created.
	ExistingWrapper *tree.Element
	// Forest enables sequence numbering of part kinds.
	Forest []*tree.Component
}

// Insertion is a fully positioned subtree ready to splice into the
// document.
type Insertion struct {
	Kind string
	// Node is the subtree root: the new wrapper when one was created,
	// otherwise Element.
	Node *tree.Element
	// Element is the component element itself.
	Element *tree.Element
	// ParentID is Target's id for child insertions and "" otherwise.
	ParentID string
}

// Wrapped reports whether a new wrapper encloses the component.
func (in *Insertion) Wrapped() bool {
	return in.Node != in.Element
}

// Children returns the component element's children.
func (in *Insertion) Children() []tree.Node {
	return in.Element.Children
}

// Instantiate builds a new component subtree from the kind's defaults.
// Every node gets a fresh id, a full breadcrumb and the level and region
// it will have once inserted. It returns a CreationError and no subtree
// when the registry cannot supply the kind's default content.
func (e *Engine) Instantiate(req InsertRequest) (*Insertion, error) {
	if req.Target == nil {
		return nil, errors.NewCreation(req.Subtype, req.Kind, "no insertion target")
	}
	rule, ok := e.reg.RuleFor(req.Subtype, req.Kind)
	if !ok {
		return nil, errors.NewCreation(req.Subtype, req.Kind, "no rule for component")
	}
	cat, _ := e.reg.Catalog(req.Subtype)

	el, ok := e.reg.DefaultElementFor(req.Subtype, req.Kind)
	if !ok {
		return nil, errors.NewCreation(req.Subtype, req.Kind, "no default element")
	}
	if len(el.Children) == 0 {
		children, ok := e.reg.DefaultChildrenFor(req.Subtype, req.Kind)
		if !ok {
			return nil, errors.NewCreation(req.Subtype, req.Kind, "no default children")
		}
		for _, c := range children {
			el.Children = append(el.Children, c)
		}
	}

	root := el
	if req.ExistingWrapper == nil && rule.Wrapper.AppliesUnder(e.contextKind(req)) {
		wrapper, _ := e.reg.WrapperFor(req.Subtype, req.Kind)
		wrapper.Children = []tree.Node{el}
		root = wrapper
	}

	path, region := e.rootPlacement(req, root.Tag)
	annotate(cat, root, path, region)
	el.Component = req.Kind

	if numberedKinds[req.Kind] && req.Forest != nil {
		if leaf := deepestText(el); leaf != nil {
			leaf.Value = strconv.Itoa(SequenceNumber(req.Forest, req.Target, req.Kind, req.IsChild))
		}
	}

	in := &Insertion{Kind: req.Kind, Node: root, Element: el}
	if req.IsChild {
		in.ParentID = req.Target.ID
	}
	return in, nil
}

// contextKind is the kind of the component the new one will sit in.
func (e *Engine) contextKind(req InsertRequest) string {
	if req.IsChild {
		return req.Target.Kind
	}
	if parent := FindByID(req.Forest, req.Target.ParentID); parent != nil {
		return parent.Kind
	}
	return req.Subtype
}

// rootPlacement computes the breadcrumb and inherited region of the new
// subtree root.
func (e *Engine) rootPlacement(req InsertRequest, rootTag string) (string, string) {
	t := req.Target
	switch {
	case req.ExistingWrapper != nil:
		return tree.JoinPath(req.ExistingWrapper.Path, rootTag), req.ExistingWrapper.Region
	case req.IsChild:
		return tree.JoinPath(t.XMLPath, rootTag), t.Region
	}
	qualified := t.Tag
	if w, ok := e.reg.WrapperFor(req.Subtype, t.Kind); ok && t.Wrapped() {
		qualified = w.Tag + tree.PathSeparator + t.Tag
	}
	region := t.Region
	if parent := FindByID(req.Forest, t.ParentID); parent != nil {
		region = parent.Region
	}
	return tree.ReplaceLast(t.XMLPath, qualified, rootTag), region
}

// annotate stamps ids, breadcrumbs, levels, regions and classifications
// onto a template copy. path is n's own breadcrumb.
func annotate(cat *schema.Catalog, n *tree.Element, path, inherited string) {
	n.ID = tree.NewID()
	n.Path = path
	// Derived from the breadcrumb rather than the target's level so that
	// the new node matches what a re-parse of the serialized markup yields.
	n.Level = tree.LevelOf(path)
	n.Region = tree.RegionFor(n.Tag, n.Type(), inherited)
	if cat != nil {
		n.Component = cat.Classify(n.Tag, n.AttrValue("class"), n.Type(), n.Region)
	}
	n.EnsureChild()
	for _, c := range n.Children {
		switch v := c.(type) {
		case *tree.Element:
			annotate(cat, v, tree.JoinPath(path, v.Tag), n.Region)
		case *tree.Text:
			v.Region = n.Region
		}
	}
}

// deepestText returns the first text leaf at the greatest depth.
func deepestText(root *tree.Element) *tree.Text {
	var (
		found *tree.Text
		best  = -1
	)
	tree.Walk(root, func(n tree.Node, depth int) bool {
		if t, ok := n.(*tree.Text); ok && depth > best {
			found, best = t, depth
		}
		return true
	})
	return found
}
