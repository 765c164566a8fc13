// Package guideline decides where components may be placed in a
// description and builds new component subtrees.
//
// An Engine keeps no state between calls. Every operation reads the
// sidebar forest it is given and returns freshly allocated results; the
// forest itself is never modified.
package guideline

import (
	"slices"
	"strings"

	"github.com/FocuswithJustin/msdesc/core/schema"
	"github.com/FocuswithJustin/msdesc/core/tree"
)

// UnknownPosition is returned by PositionOf when the target's parent
// cannot be located. Callers sort it after every known position.
const UnknownPosition = 9999

// partFamily marks the manuscript-part kinds.
const partFamily = "msPart"

// Choice is one component kind that may be inserted.
type Choice struct {
	Component string `json:"element"`
	Label     string `json:"label"`
}

// Engine evaluates placement rules from one registry.
type Engine struct {
	reg *schema.Registry
}

// New returns an Engine reading rules from reg.
func New(reg *schema.Registry) *Engine {
	return &Engine{reg: reg}
}

// LegalNext lists the kinds that may be inserted next to target, or inside
// it when forChildren is set. existing holds the kinds already present at
// the relevant scope, in document order. parent is target's parent
// component, nil at top level. sameKindBehind reports that a component of
// target's kind already follows target.
//
// Candidates come from the containing rule's allowed components, in that
// order. A kind already in existing is dropped unless it may repeat.
// Sibling insertion additionally requires the kind to be a legal follower
// of target and a legal predecessor of the kind after target in existing.
func (e *Engine) LegalNext(subtype string, target *tree.Component, existing []string, forChildren bool, parent *tree.Component, sameKindBehind bool) []Choice {
	if target == nil {
		return nil
	}
	container, ok := e.containerRule(subtype, target, forChildren, parent)
	if !ok {
		return nil
	}

	if !forChildren && sameKindBehind && strings.Contains(target.Kind, partFamily) &&
		slices.Contains(container.AllowedComponents, target.Kind) {
		return []Choice{{Component: target.Kind, Label: e.reg.LabelFor(target.Kind)}}
	}

	var self, neighbor *schema.Rule
	if !forChildren {
		self, _ = e.reg.RuleFor(subtype, target.Kind)
		// A target missing from existing compares against existing[0].
		if next := slices.Index(existing, target.Kind) + 1; next < len(existing) {
			neighbor, _ = e.reg.RuleFor(subtype, existing[next])
		}
	}

	var out []Choice
	for _, kind := range container.AllowedComponents {
		if slices.Contains(existing, kind) {
			rule, ok := e.reg.RuleFor(subtype, kind)
			if !ok || !rule.Multi() {
				continue
			}
		}
		if self != nil && !self.Follows(kind) {
			continue
		}
		if neighbor != nil && !neighbor.Precedes(kind) {
			continue
		}
		out = append(out, Choice{Component: kind, Label: e.reg.LabelFor(kind)})
	}
	return out
}

func (e *Engine) containerRule(subtype string, target *tree.Component, forChildren bool, parent *tree.Component) (*schema.Rule, bool) {
	switch {
	case forChildren:
		return e.reg.RuleFor(subtype, target.Kind)
	case parent != nil:
		return e.reg.RuleFor(subtype, parent.Kind)
	default:
		return e.reg.RootRule(subtype)
	}
}

// SequenceNumber returns the ordinal a new component of kind would take:
// one more than the number of kind siblings already present. With isChild
// the siblings are target's children, otherwise those of target's parent.
func SequenceNumber(forest []*tree.Component, target *tree.Component, kind string, isChild bool) int {
	var siblings []*tree.Component
	if isChild {
		siblings = target.Children
	} else {
		siblings, _ = siblingsOf(forest, target)
	}
	return countKind(siblings, kind) + 1
}

// PositionOf returns the 1-based position of target among its parent's
// children of kind. It returns UnknownPosition when the parent is not in
// the forest or target is not among the kind siblings.
func PositionOf(forest []*tree.Component, target *tree.Component, kind string) int {
	siblings, ok := siblingsOf(forest, target)
	if !ok {
		return UnknownPosition
	}
	pos := 0
	for _, c := range siblings {
		if c.Kind != kind {
			continue
		}
		pos++
		if c.ID == target.ID {
			return pos
		}
	}
	return UnknownPosition
}

// siblingsOf returns the child list target belongs to.
func siblingsOf(forest []*tree.Component, target *tree.Component) ([]*tree.Component, bool) {
	if target == nil {
		return nil, false
	}
	if target.ParentID == tree.RootParent || target.ParentID == "" {
		return forest, true
	}
	parent := FindByID(forest, target.ParentID)
	if parent == nil {
		return nil, false
	}
	return parent.Children, true
}

func countKind(list []*tree.Component, kind string) int {
	n := 0
	for _, c := range list {
		if c.Kind == kind {
			n++
		}
	}
	return n
}
