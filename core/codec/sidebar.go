package codec

import (
	"slices"

	"github.com/FocuswithJustin/msdesc/core/schema"
	"github.com/FocuswithJustin/msdesc/core/tree"
)

// BuildSidebarForest projects root onto the components recognized for
// subtype. Elements that are not components are transparent: their
// children attach to the nearest component above them. Wrapper elements
// stamp their id onto the components directly inside them.
func (c *Codec) BuildSidebarForest(root tree.Node, subtype string) []*tree.Component {
	cat, ok := c.reg.Catalog(subtype)
	if !ok {
		return nil
	}
	b := &forestBuilder{reg: c.reg, cat: cat, subtype: subtype}
	var forest []*tree.Component
	b.walk(root, nil, nil, "", &forest)
	return forest
}

type forestBuilder struct {
	reg     *schema.Registry
	cat     *schema.Catalog
	subtype string
}

func (b *forestBuilder) walk(n tree.Node, path []int, parent *tree.Component, wrapperID string, out *[]*tree.Component) {
	el, ok := n.(*tree.Element)
	if !ok {
		return
	}

	if el.Component != "" && b.reg.Recognizes(b.subtype, el.Component) {
		comp := &tree.Component{
			ID:        el.ID,
			Label:     b.reg.LabelFor(el.Component),
			Kind:      el.Component,
			Tag:       el.Tag,
			Region:    el.Region,
			Path:      slices.Clone(path),
			XMLPath:   el.Path,
			Level:     el.Level,
			ParentID:  tree.RootParent,
			WrapperID: wrapperID,
		}
		if parent != nil {
			comp.ParentID = parent.ID
		}
		*out = append(*out, comp)
		for i, child := range el.Children {
			b.walk(child, append(slices.Clone(path), i), comp, "", &comp.Children)
		}
		return
	}

	if b.cat.IsWrapperTag(el.Tag) {
		wrapperID = el.ID
	}
	for i, child := range el.Children {
		b.walk(child, append(slices.Clone(path), i), parent, wrapperID, out)
	}
}
