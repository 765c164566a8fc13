package tree

// RootParent is the parent id of top-level sidebar components.
const RootParent = "root"

// Component is one entry of the sidebar forest: a projection of an
// element whose component classification is governed by the registry.
type Component struct {
	ID        string       `json:"id"`
	Label     string       `json:"label"`
	Kind      string       `json:"teiElement"`
	Tag       string       `json:"tag"`
	Region    string       `json:"region"`
	Children  []*Component `json:"children"`
	Path      []int        `json:"path"`
	XMLPath   string       `json:"xmlpath"`
	Level     int          `json:"level"`
	ParentID  string       `json:"parent"`
	WrapperID string       `json:"wrapperID"`
	Copied    bool         `json:"copied"`
}

// Wrapped reports whether the component sits inside a wrapper element.
func (c *Component) Wrapped() bool {
	return c.WrapperID != ""
}
