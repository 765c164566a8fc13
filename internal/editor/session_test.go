package editor

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/FocuswithJustin/msdesc/core/cache"
	"github.com/FocuswithJustin/msdesc/core/errors"
	"github.com/FocuswithJustin/msdesc/core/guideline"
	"github.com/FocuswithJustin/msdesc/core/schema"
	"github.com/FocuswithJustin/msdesc/core/tree"
)

const sample = `<TEI><text><body><msDesc xml:id="HSK-12">
<msIdentifier><idno>Ms 12</idno></msIdentifier>
<head><title>Psalterium</title></head>
<msContents><msItem><title>Psalter</title></msItem></msContents>
<physDesc><objectDesc form="codex"><supportDesc><support>Pergament</support></supportDesc></objectDesc><decoDesc><decoNote type="form"><p>Initialen</p></decoNote></decoDesc></physDesc>
<msPart type="fragment"><msIdentifier><idno>1</idno></msIdentifier><head><title>Fragment</title></head></msPart>
</msDesc></body></text></TEI>`

func openSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(schema.MustDefault(), "medieval", nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Open(context.Background(), []byte(sample)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func kinds(forest []*tree.Component) []string {
	out := make([]string, len(forest))
	for i, c := range forest {
		out[i] = c.Kind
	}
	return out
}

func choices(cs []guideline.Choice) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Component
	}
	return out
}

func byKind(forest []*tree.Component, kind string) *tree.Component {
	for _, c := range forest {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

func TestNewSessionUnknownSubtype(t *testing.T) {
	_, err := NewSession(schema.MustDefault(), "baroque", nil)
	if !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestOpen(t *testing.T) {
	s := openSession(t)
	want := []string{"msIdentifier", "head", "msContents", "physDesc", "msPartfragment"}
	if got := kinds(s.Forest()); !slices.Equal(got, want) {
		t.Errorf("forest = %v, want %v", got, want)
	}
	if s.Snapshot().Tag != "TEI" {
		t.Error("snapshot root is not TEI")
	}
	if s.ID() == "" || s.Subtype() != "medieval" {
		t.Errorf("session identity = %q/%q", s.ID(), s.Subtype())
	}

	before := s.Markup()
	if err := s.Open(context.Background(), []byte("<TEI>")); err == nil {
		t.Fatal("malformed markup accepted")
	}
	if s.Markup() != before {
		t.Error("failed Open changed the document")
	}
}

func TestOpenUsesCache(t *testing.T) {
	docs := cache.NewDefaultDocumentCache()
	reg := schema.MustDefault()
	a, _ := NewSession(reg, "medieval", docs)
	b, _ := NewSession(reg, "medieval", docs)

	ctx := context.Background()
	if err := a.Open(ctx, []byte(sample)); err != nil {
		t.Fatalf("Open a: %v", err)
	}
	if err := b.Open(ctx, []byte(sample)); err != nil {
		t.Fatalf("Open b: %v", err)
	}
	if docs.Stats().Hits != 1 {
		t.Errorf("cache hits = %d, want 1", docs.Stats().Hits)
	}
	if a.Forest()[0].ID != b.Forest()[0].ID {
		t.Error("cached document should keep its ids")
	}
	a.Snapshot().Tag = "changed"
	if b.Snapshot().Tag != "TEI" {
		t.Error("sessions share document state")
	}
}

func TestAllowed(t *testing.T) {
	s := openSession(t)
	forest := s.Forest()

	got, err := s.Allowed(byKind(forest, "physDesc").ID, false)
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	want := []string{"history", "additional", "msPartbooklet", "msPartfragment", "msPartaccMat", "msPartother"}
	if !slices.Equal(choices(got), want) {
		t.Errorf("after physDesc = %v, want %v", choices(got), want)
	}

	got, _ = s.Allowed(byKind(forest, "msContents").ID, true)
	if !slices.Equal(choices(got), []string{"msItem"}) {
		t.Errorf("inside msContents = %v", choices(got))
	}

	deco := byKind(forest, "physDesc").Children[0]
	got, _ = s.Allowed(deco.ID, false)
	if !slices.Equal(choices(got), []string{"decoNoteform", "decoNotecontent", "notetext"}) {
		t.Errorf("after decoNoteform = %v", choices(got))
	}

	if _, err := s.Allowed("missing", false); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing target error = %v", err)
	}
}

func TestInsertSibling(t *testing.T) {
	s := openSession(t)
	phys := byKind(s.Forest(), "physDesc")

	res, err := s.Insert(context.Background(), phys.ID, "history", false)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res.Component.Kind != "history" || res.Component.ParentID != tree.RootParent {
		t.Errorf("component = %+v", res.Component)
	}
	want := []string{"msIdentifier", "head", "msContents", "physDesc", "history", "msPartfragment"}
	if got := kinds(s.Forest()); !slices.Equal(got, want) {
		t.Errorf("forest = %v, want %v", got, want)
	}
	if !strings.Contains(res.After, "<history><origin><origDate></origDate>") {
		t.Errorf("history skeleton missing:\n%s", res.After)
	}
	if res.Before == res.After || strings.Contains(res.Before, "<history>") {
		t.Error("Before should be the markup prior to insertion")
	}
	el, ok := tree.NodeAt(s.Snapshot(), res.Component.Path).(*tree.Element)
	if !ok || el.ID != res.Component.ID {
		t.Errorf("component path %v does not resolve", res.Component.Path)
	}
}

func TestInsertChild(t *testing.T) {
	s := openSession(t)
	contents := byKind(s.Forest(), "msContents")

	res, err := s.Insert(context.Background(), contents.ID, "msItem", true)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got := byKind(s.Forest(), "msContents")
	if len(got.Children) != 2 || got.Children[1].ID != res.Component.ID {
		t.Errorf("msContents children = %v", kinds(got.Children))
	}
	if res.Component.ParentID != contents.ID || res.Component.Level != 3 {
		t.Errorf("component = %+v", res.Component)
	}
}

func TestInsertIntoExistingWrapper(t *testing.T) {
	s := openSession(t)
	phys := byKind(s.Forest(), "physDesc")
	wrapperID := phys.Children[0].WrapperID

	res, err := s.Insert(context.Background(), phys.ID, "decoNotecontent", true)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	phys = byKind(s.Forest(), "physDesc")
	if got := kinds(phys.Children); !slices.Equal(got, []string{"decoNoteform", "decoNotecontent"}) {
		t.Fatalf("physDesc children = %v", got)
	}
	if res.Component.WrapperID != wrapperID {
		t.Errorf("new note wrapper = %q, want existing %q", res.Component.WrapperID, wrapperID)
	}
	if strings.Count(res.After, "<decoDesc>") != 1 {
		t.Errorf("a second wrapper was created:\n%s", res.After)
	}
}

func TestInsertAfterWrappedSibling(t *testing.T) {
	s := openSession(t)
	deco := byKind(s.Forest(), "physDesc").Children[0]

	res, err := s.Insert(context.Background(), deco.ID, "notetext", false)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	phys := byKind(s.Forest(), "physDesc")
	if got := kinds(phys.Children); !slices.Equal(got, []string{"decoNoteform", "notetext"}) {
		t.Fatalf("physDesc children = %v", got)
	}
	if res.Component.Wrapped() {
		t.Error("note must be placed outside the decoration wrapper")
	}
	if !strings.Contains(res.After, "</decoDesc>\n<note type=\"text\">") {
		t.Errorf("note not placed after the wrapper:\n%s", res.After)
	}
}

func TestInsertNumbersFragments(t *testing.T) {
	s := openSession(t)
	part := byKind(s.Forest(), "msPartfragment")

	res, err := s.Insert(context.Background(), part.ID, "msPartfragment", false)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !strings.Contains(res.After, `<msPart type="fragment"><msIdentifier><idno>2</idno>`) {
		t.Errorf("second fragment not numbered:\n%s", res.After)
	}
}

func TestInsertRejected(t *testing.T) {
	s := openSession(t)
	phys := byKind(s.Forest(), "physDesc")
	before := s.Markup()
	forest := s.Forest()

	tests := []struct {
		name, target, kind string
		sentinel           error
	}{
		{"illegal kind", phys.ID, "head", errors.ErrInvalidInput},
		{"unknown kind", phys.ID, "msWhatever", errors.ErrInvalidInput},
		{"missing target", "nope", "history", errors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Insert(context.Background(), tt.target, tt.kind, false); !errors.Is(err, tt.sentinel) {
				t.Errorf("error = %v, want %v", err, tt.sentinel)
			}
		})
	}
	if s.Markup() != before {
		t.Error("rejected insertions changed the document")
	}
	if &s.Forest()[0] != &forest[0] {
		t.Error("rejected insertions replaced the forest")
	}
}

func TestInsertBeforeOpen(t *testing.T) {
	s, _ := NewSession(schema.MustDefault(), "medieval", nil)
	if _, err := s.Insert(context.Background(), "x", "head", false); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error = %v", err)
	}
	if s.Snapshot() != nil || s.Markup() != "" {
		t.Error("empty session has a document")
	}
}

func TestConcurrentInserts(t *testing.T) {
	s := openSession(t)
	contentsID := byKind(s.Forest(), "msContents").ID

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := s.Insert(context.Background(), contentsID, "msItem", true); err != nil {
				t.Errorf("Insert: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := s.Allowed(contentsID, true); err != nil {
				t.Errorf("Allowed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(byKind(s.Forest(), "msContents").Children); got != n+1 {
		t.Errorf("msItem count = %d, want %d", got, n+1)
	}
}

func TestDiff(t *testing.T) {
	got := Diff("a\nb\n", "a\nc\n")
	if got != "  a\n- b\n+ c\n" {
		t.Errorf("Diff = %q", got)
	}
	if got := Diff("same", "same"); got != "  same\n" {
		t.Errorf("Diff(equal) = %q", got)
	}
}
