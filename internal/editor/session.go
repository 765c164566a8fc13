// Package editor holds one description open for structural editing. It
// owns the document state the core packages compute over: every change is
// computed on a copy and swapped in as a whole, so a failed insertion
// leaves the description untouched.
package editor

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/msdesc/core/cache"
	"github.com/FocuswithJustin/msdesc/core/codec"
	"github.com/FocuswithJustin/msdesc/core/errors"
	"github.com/FocuswithJustin/msdesc/core/guideline"
	"github.com/FocuswithJustin/msdesc/core/schema"
	"github.com/FocuswithJustin/msdesc/core/tree"
	"github.com/FocuswithJustin/msdesc/internal/logging"
)

// Session is an open description. It is safe for concurrent use.
type Session struct {
	id      string
	subtype string
	reg     *schema.Registry
	codec   *codec.Codec
	engine  *guideline.Engine
	docs    *cache.DocumentCache

	mu     sync.Mutex
	root   *tree.Element
	forest []*tree.Component
}

// Result describes a completed insertion.
type Result struct {
	Component *tree.Component
	Before    string
	After     string
}

// NewSession returns an empty session for subtype. docs may be shared
// between sessions; nil uses a private cache.
func NewSession(reg *schema.Registry, subtype string, docs *cache.DocumentCache) (*Session, error) {
	if _, ok := reg.RuleForSubtype(subtype); !ok {
		return nil, errors.NewUnsupported("subtype", fmt.Sprintf("%q has no structure rules", subtype))
	}
	if docs == nil {
		docs = cache.NewDefaultDocumentCache()
	}
	return &Session{
		id:      uuid.NewString(),
		subtype: subtype,
		reg:     reg,
		codec:   codec.New(reg),
		engine:  guideline.New(reg),
		docs:    docs,
	}, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Subtype returns the subtype the session edits.
func (s *Session) Subtype() string {
	return s.subtype
}

func (s *Session) context(ctx context.Context) context.Context {
	return logging.WithSessionID(ctx, s.id)
}

// Open replaces the session's document with markup.
func (s *Session) Open(ctx context.Context, markup []byte) error {
	ctx = s.context(ctx)
	digest := cache.Digest(s.subtype, markup)

	doc, ok := s.docs.Get(digest)
	if !ok {
		root, err := s.codec.ParseString(string(markup), s.subtype)
		if err != nil {
			return err
		}
		doc = &cache.Document{Root: root, Forest: s.codec.BuildSidebarForest(root, s.subtype)}
		s.docs.Put(digest, doc)
	}

	s.mu.Lock()
	s.root, s.forest = doc.Root, doc.Forest
	s.mu.Unlock()

	logging.DebugContext(ctx, "description_opened", "digest", digest, "components", len(doc.Forest), "cached", ok)
	return nil
}

// Snapshot returns a copy of the current document tree, nil before Open.
func (s *Session) Snapshot() *tree.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.CloneElement()
}

// Markup serializes the current document.
func (s *Session) Markup() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return ""
	}
	return codec.Serialize(s.root)
}

// Forest returns the current sidebar forest. Callers must not modify it.
func (s *Session) Forest() []*tree.Component {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forest
}

// Allowed lists the kinds that may be inserted after the component with
// targetID, or inside it when asChild is set.
func (s *Session) Allowed(targetID string, asChild bool) ([]guideline.Choice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := guideline.FindByID(s.forest, targetID)
	if target == nil {
		return nil, errors.NewNotFound("component", targetID)
	}
	return s.allowed(target, asChild), nil
}

func (s *Session) allowed(target *tree.Component, asChild bool) []guideline.Choice {
	parent := guideline.FindByID(s.forest, target.ParentID)

	var existing []string
	if asChild {
		existing = guideline.ChildKinds(target)
	} else {
		existing = guideline.CollectExistingKinds(s.forest, target, nil)
	}
	next := guideline.FindFollowing(s.forest, target)
	sameKindBehind := next != nil && next.Kind == target.Kind

	return s.engine.LegalNext(s.subtype, target, existing, asChild, parent, sameKindBehind)
}

// Insert creates a component of kind after the component with targetID,
// or as its last child when asChild is set. The kind has to be one of
// Allowed's choices. On error the document is unchanged.
func (s *Session) Insert(ctx context.Context, targetID, kind string, asChild bool) (*Result, error) {
	ctx = s.context(ctx)
	res, err := s.insert(targetID, kind, asChild)
	if err != nil {
		logging.InsertionError(ctx, s.subtype, kind, err, "target", targetID)
		return nil, err
	}
	logging.Insertion(ctx, s.subtype, kind, targetID, asChild, "id", res.Component.ID)
	return res, nil
}

func (s *Session) insert(targetID, kind string, asChild bool) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root == nil {
		return nil, errors.NewNotFound("description", "no description open")
	}
	target := guideline.FindByID(s.forest, targetID)
	if target == nil {
		return nil, errors.NewNotFound("component", targetID)
	}
	if !slices.ContainsFunc(s.allowed(target, asChild), func(c guideline.Choice) bool { return c.Component == kind }) {
		return nil, errors.NewValidation("kind", fmt.Sprintf("%s may not be inserted %s %s", kind, placement(asChild), target.Kind))
	}

	root := s.root.CloneElement()
	targetEl := tree.FindElement(root, target.ID)
	if targetEl == nil {
		return nil, errors.NewNotFound("element", target.ID)
	}
	wrapper := s.existingWrapper(root, target, targetEl, kind, asChild)

	in, err := s.engine.Instantiate(guideline.InsertRequest{
		Subtype:         s.subtype,
		Target:          target,
		Kind:            kind,
		IsChild:         asChild,
		ExistingWrapper: wrapper,
		Forest:          s.forest,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case wrapper != nil && asChild:
		appendChild(wrapper, in.Node)
	case wrapper != nil:
		insertAfter(wrapper, targetEl, in.Node)
	case asChild:
		appendChild(targetEl, in.Node)
	default:
		anchor := targetEl
		if target.Wrapped() {
			if w := tree.FindElement(root, target.WrapperID); w != nil {
				anchor = w
			}
		}
		parent := parentOf(root, anchor)
		if parent == nil {
			return nil, errors.NewCreation(s.subtype, kind, "target has no parent element")
		}
		insertAfter(parent, anchor, in.Node)
	}

	forest := s.codec.BuildSidebarForest(root, s.subtype)
	created := guideline.FindByID(forest, in.Element.ID)
	if created == nil {
		return nil, errors.NewCreation(s.subtype, kind, "new component is not recognized in place")
	}

	before := codec.Serialize(s.root)
	after := codec.Serialize(root)
	s.docs.Put(cache.Digest(s.subtype, []byte(after)), &cache.Document{Root: root, Forest: forest})
	s.root, s.forest = root, forest

	return &Result{Component: created, Before: before, After: after}, nil
}

// existingWrapper finds the wrapper element the new component should
// join: the target's own wrapper for siblings, or a wrapper child of the
// target for child insertions. It returns nil when none matches the
// kind's wrapper.
func (s *Session) existingWrapper(root *tree.Element, target *tree.Component, targetEl *tree.Element, kind string, asChild bool) *tree.Element {
	tmpl, ok := s.reg.WrapperFor(s.subtype, kind)
	if !ok {
		return nil
	}
	if asChild {
		for _, c := range targetEl.ChildElements() {
			if c.Tag == tmpl.Tag {
				return c
			}
		}
		return nil
	}
	if !target.Wrapped() {
		return nil
	}
	if w := tree.FindElement(root, target.WrapperID); w != nil && w.Tag == tmpl.Tag {
		return w
	}
	return nil
}

func placement(asChild bool) string {
	if asChild {
		return "inside"
	}
	return "after"
}

// appendChild adds n as the last child, replacing a lone empty text leaf.
func appendChild(parent *tree.Element, n tree.Node) {
	if len(parent.Children) == 1 {
		if t, ok := parent.Children[0].(*tree.Text); ok && t.Value == "" {
			parent.Children = nil
		}
	}
	parent.Children = append(parent.Children, n)
}

// insertAfter places n directly after anchor among parent's children, or
// last when anchor is not a child of parent.
func insertAfter(parent, anchor *tree.Element, n tree.Node) {
	i := slices.IndexFunc(parent.Children, func(c tree.Node) bool { return c == tree.Node(anchor) })
	if i < 0 {
		appendChild(parent, n)
		return
	}
	parent.Children = slices.Insert(parent.Children, i+1, n)
}

// parentOf returns the element whose children include n.
func parentOf(root *tree.Element, n *tree.Element) *tree.Element {
	var found *tree.Element
	tree.Walk(root, func(cur tree.Node, _ int) bool {
		el, ok := cur.(*tree.Element)
		if !ok || found != nil {
			return false
		}
		for _, c := range el.Children {
			if c == tree.Node(n) {
				found = el
				return false
			}
		}
		return true
	})
	return found
}
