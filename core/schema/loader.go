package schema

import (
	"fmt"
	"io/fs"
	stdpath "path"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/msdesc/core/errors"
	"github.com/FocuswithJustin/msdesc/core/tree"
)

// catalogFile is the root structure of a catalog/<subtype>.yaml file.
type catalogFile struct {
	Subtype    string              `yaml:"subtype"`
	Root       ruleDef             `yaml:"root"`
	Labels     map[string]string   `yaml:"labels"`
	Values     map[string][]string `yaml:"values"`
	Components []ruleDef           `yaml:"components"`
}

type ruleDef struct {
	Name               string        `yaml:"name"`
	AllowedNumbers     string        `yaml:"allowedNumbers"`
	Required           bool          `yaml:"required"`
	SelfContaining     bool          `yaml:"selfContaining"`
	Duplicate          bool          `yaml:"duplicate"`
	AllowedComponents  []string      `yaml:"allowedComponents"`
	AllowedIn          []string      `yaml:"allowedIn"`
	AllowedFollower    []string      `yaml:"allowedFollower"`
	AllowedPredecessor []string      `yaml:"allowedPredecessor"`
	Regions            []string      `yaml:"regions"`
	DefaultElement     *templateDef  `yaml:"defaultElement"`
	DefaultChildren    []templateDef `yaml:"defaultChildren"`
	Wrapper            *wrapperDef   `yaml:"wrapper"`
}

type wrapperDef struct {
	Under   []string     `yaml:"under"`
	Element *templateDef `yaml:"element"`
}

// templateDef is a node skeleton. A template without children and text
// is an empty element.
type templateDef struct {
	Tag      string        `yaml:"tag"`
	Type     string        `yaml:"type"`
	Region   string        `yaml:"region"`
	Attrs    []attrDef     `yaml:"attrs"`
	Text     string        `yaml:"text"`
	Children []templateDef `yaml:"children"`
}

type attrDef struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Load reads every catalog/*.yaml file in fsys into a Registry.
func Load(fsys fs.FS) (*Registry, error) {
	files, err := fs.Glob(fsys, "catalog/*.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "list catalogs")
	}
	if len(files) == 0 {
		return nil, errors.NewNotFound("catalog", "catalog/*.yaml")
	}
	slices.Sort(files)

	reg := &Registry{
		sets:     make(map[string]*RuleSet),
		catalogs: make(map[string]*Catalog),
		labels:   make(map[string]string),
	}
	for _, name := range files {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		var file catalogFile
		if err := yaml.Unmarshal(content, &file); err != nil {
			return nil, errors.NewParse("catalog", name, err.Error())
		}
		if file.Subtype == "" {
			file.Subtype = stdpath.Base(name[:len(name)-len(stdpath.Ext(name))])
		}
		set, err := buildRuleSet(file)
		if err != nil {
			return nil, errors.Wrapf(err, "catalog %s", name)
		}
		if _, dup := reg.sets[set.Subtype]; dup {
			return nil, errors.NewValidation("subtype", fmt.Sprintf("%s declared twice", set.Subtype))
		}
		reg.add(set)
	}
	return reg, nil
}

func buildRuleSet(file catalogFile) (*RuleSet, error) {
	set := &RuleSet{
		Subtype: file.Subtype,
		Rules:   make(map[string]*Rule, len(file.Components)),
		Labels:  file.Labels,
		Values:  file.Values,
	}
	if set.Labels == nil {
		set.Labels = map[string]string{}
	}
	if set.Values == nil {
		set.Values = map[string][]string{}
	}

	if file.Root.Name == "" {
		file.Root.Name = file.Subtype
	}
	set.Root = buildRule(file.Root)

	for _, def := range file.Components {
		if def.Name == "" {
			return nil, errors.NewValidation("name", "component without a name")
		}
		if _, dup := set.Rules[def.Name]; dup {
			return nil, errors.NewValidation(def.Name, "declared twice")
		}
		set.Rules[def.Name] = buildRule(def)
		set.Order = append(set.Order, def.Name)
	}

	if err := validateRuleSet(set); err != nil {
		return nil, err
	}
	return set, nil
}

func buildRule(def ruleDef) *Rule {
	r := &Rule{
		Name:               def.Name,
		AllowedNumbers:     Numbers(def.AllowedNumbers),
		Required:           def.Required,
		SelfContaining:     def.SelfContaining,
		Duplicate:          def.Duplicate,
		AllowedComponents:  def.AllowedComponents,
		AllowedIn:          def.AllowedIn,
		AllowedFollower:    def.AllowedFollower,
		AllowedPredecessor: def.AllowedPredecessor,
		Regions:            def.Regions,
	}
	if r.AllowedNumbers == "" {
		r.AllowedNumbers = One
	}
	if def.DefaultElement != nil {
		// The default element keeps an empty child list so the rule's
		// default children can fill it at creation time.
		r.DefaultElement = buildTemplate(*def.DefaultElement, false)
	}
	for _, c := range def.DefaultChildren {
		r.DefaultChildren = append(r.DefaultChildren, buildTemplate(c, true))
	}
	if def.Wrapper != nil && def.Wrapper.Element != nil {
		r.Wrapper = &Wrapper{
			Under:   def.Wrapper.Under,
			Element: buildTemplate(*def.Wrapper.Element, false),
		}
	}
	return r
}

func buildTemplate(def templateDef, fill bool) *tree.Element {
	el := &tree.Element{
		Tag:    def.Tag,
		Region: def.Region,
		Attrs:  []tree.Attr{{Key: tree.OriginAttr, Name: "origin", Value: def.Tag}},
	}
	if def.Type != "" {
		el.SetAttr("type", def.Type)
	}
	for _, a := range def.Attrs {
		el.SetAttr(a.Name, a.Value)
	}
	for _, c := range def.Children {
		el.Children = append(el.Children, buildTemplate(c, true))
	}
	if def.Text != "" {
		el.Children = append(el.Children, &tree.Text{Region: def.Region, Value: def.Text})
	}
	if fill {
		el.EnsureChild()
	}
	return el
}

func validateRuleSet(set *RuleSet) error {
	known := func(name string) bool {
		_, ok := set.Rules[name]
		return ok || name == set.Subtype
	}
	check := func(owner, field string, names []string) error {
		for _, n := range names {
			if !known(n) {
				return errors.NewValidation(owner+"."+field, fmt.Sprintf("unknown component %q", n))
			}
		}
		return nil
	}

	if set.Root.Name != set.Subtype {
		return errors.NewValidation("root.name", fmt.Sprintf("%q does not match subtype %q", set.Root.Name, set.Subtype))
	}
	if err := check("root", "allowedComponents", set.Root.AllowedComponents); err != nil {
		return err
	}
	for _, name := range set.Order {
		r := set.Rules[name]
		if r.AllowedNumbers != One && r.AllowedNumbers != Multi {
			return errors.NewValidation(name+".allowedNumbers", fmt.Sprintf("%q is neither 1 nor multi", r.AllowedNumbers))
		}
		for field, names := range map[string][]string{
			"allowedComponents":  r.AllowedComponents,
			"allowedIn":          r.AllowedIn,
			"allowedFollower":    r.AllowedFollower,
			"allowedPredecessor": r.AllowedPredecessor,
		} {
			if err := check(name, field, names); err != nil {
				return err
			}
		}
		if r.DefaultElement == nil || r.DefaultElement.Tag == "" {
			return errors.NewValidation(name+".defaultElement", "missing")
		}
		if len(r.DefaultElement.Children) == 0 && len(r.DefaultChildren) == 0 {
			return errors.NewValidation(name+".defaultChildren", "missing")
		}
		if r.Wrapper != nil {
			if err := check(name, "wrapper.under", r.Wrapper.Under); err != nil {
				return err
			}
		}
	}
	return nil
}
