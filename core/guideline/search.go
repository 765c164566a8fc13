package guideline

import (
	"slices"

	"github.com/FocuswithJustin/msdesc/core/tree"
)

// FindByID returns the component with id, searching depth-first.
func FindByID(forest []*tree.Component, id string) *tree.Component {
	for _, c := range forest {
		if c.ID == id {
			return c
		}
		if found := FindByID(c.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// FindFollowing returns the sibling directly after target. target is
// matched by identity, not by id. It returns nil when target is last or
// not in the forest.
func FindFollowing(forest []*tree.Component, target *tree.Component) *tree.Component {
	if i := slices.Index(forest, target); i >= 0 {
		if i+1 < len(forest) {
			return forest[i+1]
		}
		return nil
	}
	for _, c := range forest {
		if found := FindFollowing(c.Children, target); found != nil {
			return found
		}
	}
	return nil
}

// CollectExistingKinds appends to acc the kinds of all components sharing
// target's parent, first occurrence only, and returns the result. The
// whole forest is searched, so the collection errs on the side of
// including too much.
func CollectExistingKinds(forest []*tree.Component, target *tree.Component, acc []string) []string {
	for _, c := range forest {
		if c.ParentID == target.ParentID && !slices.Contains(acc, c.Kind) {
			acc = append(acc, c.Kind)
		}
		acc = CollectExistingKinds(c.Children, target, acc)
	}
	return acc
}

// ChildKinds returns the distinct kinds among target's children in order.
func ChildKinds(target *tree.Component) []string {
	var out []string
	for _, c := range target.Children {
		if !slices.Contains(out, c.Kind) {
			out = append(out, c.Kind)
		}
	}
	return out
}
