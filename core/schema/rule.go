package schema

import (
	"slices"

	"github.com/FocuswithJustin/msdesc/core/tree"
)

// Numbers is the cardinality of a component within one parent.
type Numbers string

const (
	// One allows a single instance.
	One Numbers = "1"
	// Multi allows any number of instances.
	Multi Numbers = "multi"
)

// Wrapper is a grouping shell placed around a component when it is
// created under one of the Under parent kinds.
type Wrapper struct {
	Under   []string
	Element *tree.Element
}

// AppliesUnder reports whether the wrapper is required under parent.
func (w *Wrapper) AppliesUnder(parent string) bool {
	return w != nil && slices.Contains(w.Under, parent)
}

func (w *Wrapper) clone() *Wrapper {
	if w == nil {
		return nil
	}
	return &Wrapper{Under: slices.Clone(w.Under), Element: w.Element.CloneElement()}
}

// Rule is the structure rule of one component kind in one subtype.
type Rule struct {
	Name               string
	AllowedNumbers     Numbers
	Required           bool
	SelfContaining     bool
	Duplicate          bool
	AllowedComponents  []string
	AllowedIn          []string
	AllowedFollower    []string
	AllowedPredecessor []string
	// Regions limits where the kind is recognized; empty means everywhere.
	Regions         []string
	DefaultElement  *tree.Element
	DefaultChildren []*tree.Element
	Wrapper         *Wrapper
}

// Multi reports whether the kind may repeat within one parent.
func (r *Rule) Multi() bool {
	return r.AllowedNumbers == Multi
}

// Contains reports whether kind is a legal child.
func (r *Rule) Contains(kind string) bool {
	return slices.Contains(r.AllowedComponents, kind)
}

// Follows reports whether kind may sit directly after this component.
func (r *Rule) Follows(kind string) bool {
	return slices.Contains(r.AllowedFollower, kind)
}

// Precedes reports whether kind may sit directly before this component.
func (r *Rule) Precedes(kind string) bool {
	return slices.Contains(r.AllowedPredecessor, kind)
}

// Clone returns a deep copy.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	c := *r
	c.AllowedComponents = slices.Clone(r.AllowedComponents)
	c.AllowedIn = slices.Clone(r.AllowedIn)
	c.AllowedFollower = slices.Clone(r.AllowedFollower)
	c.AllowedPredecessor = slices.Clone(r.AllowedPredecessor)
	c.Regions = slices.Clone(r.Regions)
	c.DefaultElement = r.DefaultElement.CloneElement()
	c.DefaultChildren = cloneElements(r.DefaultChildren)
	c.Wrapper = r.Wrapper.clone()
	return &c
}

// RuleSet is every rule of one subtype.
type RuleSet struct {
	Subtype string
	// Root governs the top level of a description.
	Root   *Rule
	Rules  map[string]*Rule
	Order  []string
	Labels map[string]string
	Values map[string][]string
}

// Clone returns a deep copy.
func (s *RuleSet) Clone() *RuleSet {
	c := &RuleSet{
		Subtype: s.Subtype,
		Root:    s.Root.Clone(),
		Rules:   make(map[string]*Rule, len(s.Rules)),
		Order:   slices.Clone(s.Order),
		Labels:  make(map[string]string, len(s.Labels)),
		Values:  make(map[string][]string, len(s.Values)),
	}
	for k, r := range s.Rules {
		c.Rules[k] = r.Clone()
	}
	for k, v := range s.Labels {
		c.Labels[k] = v
	}
	for k, v := range s.Values {
		c.Values[k] = slices.Clone(v)
	}
	return c
}

func cloneElements(in []*tree.Element) []*tree.Element {
	if in == nil {
		return nil
	}
	out := make([]*tree.Element, len(in))
	for i, el := range in {
		out[i] = el.CloneElement()
	}
	return out
}
