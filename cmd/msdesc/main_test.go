package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/msdesc/core/errors"
	"github.com/FocuswithJustin/msdesc/core/tree"
	"github.com/FocuswithJustin/msdesc/internal/logging"
)

const sample = `<TEI><text><body><msDesc xml:id="HSK-12">
<msIdentifier><idno>Ms 12</idno></msIdentifier>
<head><title>Psalterium</title></head>
<msContents><msItem><title>Psalter</title></msItem></msContents>
<physDesc><objectDesc form="codex"><supportDesc><support>Pergament</support></supportDesc></objectDesc></physDesc>
<msPart type="fragment"><msIdentifier><idno>1</idno></msIdentifier><head><title>Fragment</title></head></msPart>
</msDesc></body></text></TEI>`

// Test helper functions

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	defer func() { stdout = orig }()
	logging.SetOutput(io.Discard)

	var cli CLI
	parser, err := newParser(&cli, kong.Exit(func(int) {}), kong.Writers(io.Discard, io.Discard))
	if err != nil {
		t.Fatalf("newParser: %v", err)
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	err = run(ctx, &cli)
	return buf.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("msdesc %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func componentID(t *testing.T, file, kind string) string {
	t.Helper()
	var forest []*tree.Component
	if err := json.Unmarshal([]byte(mustExecute(t, "sidebar", "--json", file)), &forest); err != nil {
		t.Fatalf("failed to decode sidebar: %v", err)
	}
	for _, c := range forest {
		if c.Kind == kind {
			return c.ID
		}
	}
	t.Fatalf("no %s in sidebar", kind)
	return ""
}

func TestComponentsCmd(t *testing.T) {
	out := mustExecute(t, "components")
	for _, want := range []string{"msIdentifier", "msItem", "msPartfragment"} {
		if !strings.Contains(out, want) {
			t.Errorf("components output missing %s:\n%s", want, out)
		}
	}
}

func TestValuesCmd(t *testing.T) {
	out := mustExecute(t, "values", "msPart@type")
	if !strings.Contains(out, "fragment\n") {
		t.Errorf("values output = %q", out)
	}
	if out := mustExecute(t, "values"); !strings.Contains(out, "msPart@type\n") {
		t.Errorf("fields output = %q", out)
	}
	if _, err := execute(t, "values", "nope@type"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown field error = %v", err)
	}
}

func TestUnknownSubtype(t *testing.T) {
	if _, err := execute(t, "--subtype", "baroque", "components"); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestParseCmd(t *testing.T) {
	file := createTestFile(t, t.TempDir(), "ms.xml", sample)
	var root map[string]any
	if err := json.Unmarshal([]byte(mustExecute(t, "parse", file)), &root); err != nil {
		t.Fatalf("parse output is not JSON: %v", err)
	}
	if root["tag"] != "TEI" {
		t.Errorf("root tag = %v", root["tag"])
	}

	bad := createTestFile(t, t.TempDir(), "bad.xml", "<TEI><msDesc></TEI>")
	if _, err := execute(t, "parse", bad); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("malformed markup error = %v", err)
	}
}

func TestSidebarCmd(t *testing.T) {
	file := createTestFile(t, t.TempDir(), "ms.xml", sample)
	out := mustExecute(t, "sidebar", file)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 8 {
		t.Fatalf("sidebar lines = %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "[msIdentifier]") || !strings.HasPrefix(lines[3], "  ") {
		t.Errorf("unexpected outline:\n%s", out)
	}
}

func TestTextAndQueryCmd(t *testing.T) {
	file := createTestFile(t, t.TempDir(), "ms.xml", sample)
	if out := mustExecute(t, "text", file); !strings.Contains(out, "Psalterium") {
		t.Errorf("text output = %q", out)
	}
	if out := mustExecute(t, "query", "--text", file, "//msItem/title"); out != "Psalter\n" {
		t.Errorf("query output = %q", out)
	}
	if out := mustExecute(t, "query", file, "//msPart/head"); !strings.HasPrefix(out, "<head>") {
		t.Errorf("query output = %q", out)
	}
	if out := mustExecute(t, "query", "--attr", "type", file, "//msPart"); out != "fragment\n" {
		t.Errorf("query --attr output = %q", out)
	}
	if out := mustExecute(t, "query", "--names", file, "//msDesc/*"); !strings.HasPrefix(out, "msIdentifier\nhead\n") {
		t.Errorf("query --names output = %q", out)
	}
	if _, err := execute(t, "query", file, "//["); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("bad xpath error = %v", err)
	}
}

func TestFormatCmd(t *testing.T) {
	file := createTestFile(t, t.TempDir(), "ms.xml", sample)
	out := mustExecute(t, "format", "--indent", "\t", file)
	if !strings.Contains(out, "\t<text>") {
		t.Errorf("format output not indented:\n%s", out)
	}
}

func TestAllowedCmd(t *testing.T) {
	file := createTestFile(t, t.TempDir(), "ms.xml", sample)
	id := componentID(t, file, "physDesc")

	out := mustExecute(t, "allowed", file, id)
	first := strings.Fields(strings.Split(out, "\n")[0])
	if len(first) == 0 || first[0] != "history" {
		t.Errorf("allowed output:\n%s", out)
	}

	out = mustExecute(t, "allowed", "--child", file, componentID(t, file, "msContents"))
	if strings.Fields(out)[0] != "msItem" {
		t.Errorf("allowed --child output:\n%s", out)
	}

	hits := docs.Stats().Hits
	mustExecute(t, "allowed", file, id)
	if docs.Stats().Hits <= hits {
		t.Error("repeated allowed did not reuse the cached document")
	}

	if _, err := execute(t, "allowed", file, "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing component error = %v", err)
	}
}

func TestInsertCmd(t *testing.T) {
	dir := t.TempDir()
	file := createTestFile(t, dir, "ms.xml", sample)
	id := componentID(t, file, "physDesc")

	out := mustExecute(t, "insert", file, id, "history")
	if !strings.Contains(out, "</physDesc>\n<history>") {
		t.Errorf("insert output:\n%s", out)
	}

	outFile := filepath.Join(dir, "out.xml")
	out = mustExecute(t, "insert", "--diff", "--out", outFile, file, id, "history")
	if !strings.Contains(out, "+ <history>") {
		t.Errorf("diff output:\n%s", out)
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if !strings.Contains(string(data), "<history>") {
		t.Errorf("output file missing history:\n%s", data)
	}

	if _, err := execute(t, "insert", file, id, "head"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("illegal insert error = %v", err)
	}

	bad := filepath.Join(dir, "out\x01.xml")
	if _, err := execute(t, "insert", "--out", bad, file, id, "history"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("control character in --out error = %v", err)
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Error("output written despite an invalid path")
	}
}

func TestStoreCmds(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "msdesc.db")
	file := createTestFile(t, dir, "ms.xml", sample)

	if out := mustExecute(t, "--db", db, "store", "put", "HSK-12", file); out != "Stored HSK-12 revision 1\n" {
		t.Errorf("put output = %q", out)
	}
	if out := mustExecute(t, "--db", db, "store", "get", "HSK-12"); out != sample {
		t.Errorf("get output = %q", out)
	}

	edited := createTestFile(t, dir, "ms2.xml", strings.Replace(sample, "Psalter<", "Hymnar<", 1))
	mustExecute(t, "--db", db, "store", "put", "HSK-12", edited)
	if out := mustExecute(t, "--db", db, "store", "get", "-r", "1", "HSK-12"); out != sample {
		t.Errorf("get -r 1 output = %q", out)
	}

	var list []map[string]any
	if err := json.Unmarshal([]byte(mustExecute(t, "--db", db, "store", "list", "--json")), &list); err != nil {
		t.Fatalf("list output is not JSON: %v", err)
	}
	if len(list) != 1 || list[0]["revision"] != float64(2) {
		t.Errorf("list = %v", list)
	}
	if out := mustExecute(t, "--db", db, "store", "revisions", "HSK-12"); strings.Count(out, "\n") != 2 {
		t.Errorf("revisions output:\n%s", out)
	}

	mustExecute(t, "--db", db, "store", "delete", "HSK-12")
	if _, err := execute(t, "--db", db, "store", "get", "HSK-12"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("get after delete error = %v", err)
	}
}

func TestVersionCmd(t *testing.T) {
	out := mustExecute(t, "version")
	if !strings.Contains(out, "msdesc version "+version) || !strings.Contains(out, "medieval") {
		t.Errorf("version output:\n%s", out)
	}
}
