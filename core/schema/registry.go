// Package schema is the registry of structure rules for manuscript
// descriptions: which component kinds exist per subtype, where they may be
// placed, how often, and what skeleton a new instance starts from.
//
// A Registry is immutable after Load. Every accessor returns a deep copy,
// so callers may modify results freely. A missing subtype or component is
// reported with ok == false, never with an error.
package schema

import (
	"embed"
	"slices"
	"sort"
	"strings"
	"sync"
)

//go:embed catalog/*.yaml
var catalogFS embed.FS

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the registry built from the embedded catalogs. It is
// loaded once per process.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Load(catalogFS)
	})
	return defaultRegistry, defaultErr
}

// MustDefault is Default for process start and tests.
func MustDefault() *Registry {
	reg, err := Default()
	if err != nil {
		panic("schema: embedded catalog: " + err.Error())
	}
	return reg
}

// Registry holds the rule sets of all known subtypes.
type Registry struct {
	sets     map[string]*RuleSet
	catalogs map[string]*Catalog
	labels   map[string]string
}

func (r *Registry) add(set *RuleSet) {
	r.sets[set.Subtype] = set
	r.catalogs[set.Subtype] = newCatalog(set)
	for k, v := range set.Labels {
		if _, ok := r.labels[k]; !ok {
			r.labels[k] = v
		}
	}
}

// Subtypes returns the known subtypes, sorted.
func (r *Registry) Subtypes() []string {
	out := make([]string, 0, len(r.sets))
	for k := range r.sets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RuleFor returns the rule of component in subtype.
func (r *Registry) RuleFor(subtype, component string) (*Rule, bool) {
	rule, ok := r.rule(subtype, component)
	if !ok {
		return nil, false
	}
	return rule.Clone(), true
}

// RuleForSubtype returns the complete rule set of subtype.
func (r *Registry) RuleForSubtype(subtype string) (*RuleSet, bool) {
	set, ok := r.sets[subtype]
	if !ok {
		return nil, false
	}
	return set.Clone(), true
}

// RootRule returns the rule governing the top level of a description.
func (r *Registry) RootRule(subtype string) (*Rule, bool) {
	set, ok := r.sets[subtype]
	if !ok {
		return nil, false
	}
	return set.Root.Clone(), true
}

// Recognizes reports whether component is governed by subtype's rules.
func (r *Registry) Recognizes(subtype, component string) bool {
	_, ok := r.rule(subtype, component)
	return ok
}

// LabelFor returns the display label of a component kind. Kinds without a
// label are shown by name.
func (r *Registry) LabelFor(component string) string {
	if l, ok := r.labels[component]; ok {
		return l
	}
	return component
}

// ComponentNames returns the component kinds of subtype in catalog order.
func (r *Registry) ComponentNames(subtype string) []string {
	set, ok := r.sets[subtype]
	if !ok {
		return nil
	}
	return slices.Clone(set.Order)
}

// Catalog returns the classification catalog of subtype.
func (r *Registry) Catalog(subtype string) (*Catalog, bool) {
	c, ok := r.catalogs[subtype]
	return c, ok
}

// ValuesFor returns the legal values of a field such as "msPart@type".
func (r *Registry) ValuesFor(subtype, field string) ([]string, bool) {
	set, ok := r.sets[subtype]
	if !ok {
		return nil, false
	}
	v, ok := set.Values[field]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// Fields returns the fields that have a value set, sorted.
func (r *Registry) Fields(subtype string) []string {
	set, ok := r.sets[subtype]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set.Values))
	for k := range set.Values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// WrapperTags returns the tags that open a wrapper in subtype.
func (r *Registry) WrapperTags(subtype string) []string {
	c, ok := r.catalogs[subtype]
	if !ok {
		return nil
	}
	return slices.Clone(c.wrappers)
}

func (r *Registry) rule(subtype, component string) (*Rule, bool) {
	set, ok := r.sets[subtype]
	if !ok {
		return nil, false
	}
	rule, ok := set.Rules[component]
	return rule, ok
}

// Catalog is the read-only name list used to classify elements.
type Catalog struct {
	order    []string
	regions  map[string][]string
	wrappers []string
}

func newCatalog(set *RuleSet) *Catalog {
	c := &Catalog{
		order:   slices.Clone(set.Order),
		regions: make(map[string][]string, len(set.Order)),
	}
	for _, name := range set.Order {
		rule := set.Rules[name]
		c.regions[name] = slices.Clone(rule.Regions)
		if rule.Wrapper != nil && !slices.Contains(c.wrappers, rule.Wrapper.Element.Tag) {
			c.wrappers = append(c.wrappers, rule.Wrapper.Element.Tag)
		}
	}
	return c
}

// Names returns the component kinds in catalog order.
func (c *Catalog) Names() []string {
	return slices.Clone(c.order)
}

// Has reports whether name is a component kind.
func (c *Catalog) Has(name string) bool {
	_, ok := c.regions[name]
	return ok
}

// RecognizedIn reports whether name is a component kind inside region.
func (c *Catalog) RecognizedIn(name, region string) bool {
	scopes, ok := c.regions[name]
	if !ok {
		return false
	}
	if len(scopes) == 0 {
		return true
	}
	for _, s := range scopes {
		if strings.HasPrefix(region, s) {
			return true
		}
	}
	return false
}

// Classify resolves the component kind of an element: tag+class, then
// tag+type, then the bare tag, each only if recognized in region. It
// returns "" when nothing matches.
func (c *Catalog) Classify(tag, class, typ, region string) string {
	candidates := make([]string, 0, 3)
	if class != "" {
		candidates = append(candidates, tag+class)
	}
	if typ != "" {
		candidates = append(candidates, tag+typ)
	}
	candidates = append(candidates, tag)
	for _, name := range candidates {
		if c.RecognizedIn(name, region) {
			return name
		}
	}
	return ""
}

// IsWrapperTag reports whether tag opens a wrapper.
func (c *Catalog) IsWrapperTag(tag string) bool {
	return slices.Contains(c.wrappers, tag)
}
