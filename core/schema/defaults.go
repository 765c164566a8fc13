package schema

import "github.com/FocuswithJustin/msdesc/core/tree"

// DefaultElementFor returns a fresh copy of the element a new component of
// this kind starts from.
func (r *Registry) DefaultElementFor(subtype, component string) (*tree.Element, bool) {
	rule, ok := r.rule(subtype, component)
	if !ok || rule.DefaultElement == nil {
		return nil, false
	}
	return rule.DefaultElement.CloneElement(), true
}

// DefaultChildrenFor returns fresh copies of the default child elements.
func (r *Registry) DefaultChildrenFor(subtype, component string) ([]*tree.Element, bool) {
	rule, ok := r.rule(subtype, component)
	if !ok || len(rule.DefaultChildren) == 0 {
		return nil, false
	}
	return cloneElements(rule.DefaultChildren), true
}

// DefaultChildOfKind returns the first default child with the given tag.
// A non-empty childType also has to match the child's type attribute.
func (r *Registry) DefaultChildOfKind(subtype, component, childTag, childType string) (*tree.Element, bool) {
	rule, ok := r.rule(subtype, component)
	if !ok {
		return nil, false
	}
	for _, c := range rule.DefaultChildren {
		if c.Tag != childTag {
			continue
		}
		if childType != "" && c.Type() != childType {
			continue
		}
		return c.CloneElement(), true
	}
	return nil, false
}

// WrapperFor returns a fresh copy of the component's wrapper element.
func (r *Registry) WrapperFor(subtype, component string) (*tree.Element, bool) {
	rule, ok := r.rule(subtype, component)
	if !ok || rule.Wrapper == nil {
		return nil, false
	}
	return rule.Wrapper.Element.CloneElement(), true
}
