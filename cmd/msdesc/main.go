// Command msdesc inspects and edits manuscript descriptions.
//
// Usage:
//
//	msdesc components
//	msdesc values [<field>]
//	msdesc parse <file>
//	msdesc sidebar <file> [--json]
//	msdesc text <file>
//	msdesc format <file> [--indent=<str>]
//	msdesc query <file> <xpath> [--text|--attr=<name>|--names]
//	msdesc allowed <file> <component-id> [--child]
//	msdesc insert <file> <component-id> <kind> [--child] [--diff] [--out=<path>]
//	msdesc store put|get|list|revisions|delete
//	msdesc version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/msdesc/core/cache"
	"github.com/FocuswithJustin/msdesc/core/codec"
	"github.com/FocuswithJustin/msdesc/core/errors"
	"github.com/FocuswithJustin/msdesc/core/schema"
	"github.com/FocuswithJustin/msdesc/core/sqlite"
	"github.com/FocuswithJustin/msdesc/core/tree"
	"github.com/FocuswithJustin/msdesc/core/xml"
	"github.com/FocuswithJustin/msdesc/internal/editor"
	"github.com/FocuswithJustin/msdesc/internal/logging"
	"github.com/FocuswithJustin/msdesc/internal/validation"
)

const version = "0.3.0"

// stdout receives command output. Tests replace it.
var stdout io.Writer = os.Stdout

// docs is shared by the sessions of one process.
var docs = cache.NewDocumentCache(cache.Config{MaxSize: 16, TTL: 10 * time.Minute})

// Globals holds the flags shared by every command.
type Globals struct {
	Subtype   string `help:"Description subtype" default:"medieval" env:"MSDESC_SUBTYPE"`
	DB        string `name:"db" help:"Description store path" default:"msdesc.db" env:"MSDESC_DB" type:"path"`
	LogLevel  string `help:"Log level" default:"info" env:"MSDESC_LOG_LEVEL" enum:"debug,info,warn,error"`
	LogFormat string `help:"Log format" default:"text" env:"MSDESC_LOG_FORMAT" enum:"text,json"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Components ComponentsCmd `cmd:"" help:"List the component kinds of the subtype"`
	Values     ValuesCmd     `cmd:"" help:"List the legal values of a field"`
	Parse      ParseCmd      `cmd:"" help:"Print the document tree of a description as JSON"`
	Sidebar    SidebarCmd    `cmd:"" help:"Print the sidebar forest of a description"`
	Text       TextCmd       `cmd:"" help:"Print the text content of a description"`
	Format     FormatCmd     `cmd:"" help:"Pretty-print description markup"`
	Query      QueryCmd      `cmd:"" help:"Run an XPath query against a description"`
	Allowed    AllowedCmd    `cmd:"" help:"List the components that may be inserted at a position"`
	Insert     InsertCmd     `cmd:"" help:"Insert a new component into a description"`
	Store      StoreGroup    `cmd:"" help:"Manage stored descriptions"`
	Version    VersionCmd    `cmd:"" help:"Print version information"`
}

func (g *Globals) initLogging() error {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

func (g *Globals) registry() (*schema.Registry, error) {
	reg, err := schema.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load structure rules: %w", err)
	}
	logging.CatalogLoaded(reg.Subtypes(), "subtype", g.Subtype)
	if _, ok := reg.RuleForSubtype(g.Subtype); !ok {
		return nil, errors.NewUnsupported("subtype", fmt.Sprintf("%q has no structure rules", g.Subtype))
	}
	return reg, nil
}

func (g *Globals) parse(path string) (*codec.Codec, *tree.Element, error) {
	reg, err := g.registry()
	if err != nil {
		return nil, nil, err
	}
	data, err := validation.ReadMarkup(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	c := codec.New(reg)
	root, err := c.ParseString(string(data), g.Subtype)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return c, root, nil
}

func (g *Globals) session(ctx context.Context, path string) (*editor.Session, error) {
	reg, err := g.registry()
	if err != nil {
		return nil, err
	}
	data, err := validation.ReadMarkup(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	s, err := editor.NewSession(reg, g.Subtype, docs)
	if err != nil {
		return nil, err
	}
	if err := s.Open(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return s, nil
}

// ComponentsCmd lists the component kinds of the subtype.
type ComponentsCmd struct{}

func (c *ComponentsCmd) Run(g *Globals) error {
	reg, err := g.registry()
	if err != nil {
		return err
	}
	for _, name := range reg.ComponentNames(g.Subtype) {
		fmt.Fprintf(stdout, "%-18s %s\n", name, reg.LabelFor(name))
	}
	return nil
}

// ValuesCmd lists the legal values of a field, or the fields when none is given.
type ValuesCmd struct {
	Field string `arg:"" optional:"" help:"Field such as msPart@type"`
}

func (c *ValuesCmd) Run(g *Globals) error {
	reg, err := g.registry()
	if err != nil {
		return err
	}
	if c.Field == "" {
		for _, f := range reg.Fields(g.Subtype) {
			fmt.Fprintln(stdout, f)
		}
		return nil
	}
	values, ok := reg.ValuesFor(g.Subtype, c.Field)
	if !ok {
		return errors.NewNotFound("field", c.Field)
	}
	for _, v := range values {
		fmt.Fprintln(stdout, v)
	}
	return nil
}

// ParseCmd prints the document tree as JSON.
type ParseCmd struct {
	File string `arg:"" help:"Description markup" type:"existingfile"`
}

func (c *ParseCmd) Run(g *Globals) error {
	_, root, err := g.parse(c.File)
	if err != nil {
		return err
	}
	return writeJSON(root)
}

// SidebarCmd prints the sidebar forest.
type SidebarCmd struct {
	File string `arg:"" help:"Description markup" type:"existingfile"`
	JSON bool   `help:"Print the forest as JSON"`
}

func (c *SidebarCmd) Run(g *Globals) error {
	cd, root, err := g.parse(c.File)
	if err != nil {
		return err
	}
	forest := cd.BuildSidebarForest(root, g.Subtype)
	if c.JSON {
		return writeJSON(forest)
	}
	printForest(forest, 0)
	return nil
}

func printForest(forest []*tree.Component, depth int) {
	for _, comp := range forest {
		fmt.Fprintf(stdout, "%s%s [%s] %s\n", strings.Repeat("  ", depth), comp.Label, comp.Kind, comp.ID)
		printForest(comp.Children, depth+1)
	}
}

// TextCmd prints the text content of a description.
type TextCmd struct {
	File string `arg:"" help:"Description markup" type:"existingfile"`
}

func (c *TextCmd) Run(g *Globals) error {
	_, root, err := g.parse(c.File)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, codec.SerializeAsText(root))
	return nil
}

// FormatCmd pretty-prints markup.
type FormatCmd struct {
	File   string `arg:"" help:"Description markup" type:"existingfile"`
	Indent string `help:"Indentation string" default:"  "`
}

func (c *FormatCmd) Run() error {
	data, err := validation.ReadMarkup(c.File)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.File, err)
	}
	out, err := xml.Format(data, xml.FormatOptions{Indent: c.Indent})
	if err != nil {
		return fmt.Errorf("failed to format %s: %w", c.File, err)
	}
	_, err = stdout.Write(out)
	return err
}

// QueryCmd runs an XPath query.
type QueryCmd struct {
	File  string `arg:"" help:"Description markup" type:"existingfile"`
	XPath string `arg:"" name:"xpath" help:"XPath expression"`
	Text  bool   `help:"Print text content instead of markup"`
	Attr  string `help:"Print this attribute of each match instead of markup"`
	Names bool   `help:"Print element names instead of markup"`
}

func (c *QueryCmd) Run() error {
	data, err := validation.ReadMarkup(c.File)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.File, err)
	}
	doc, err := xml.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.File, err)
	}
	nodes, err := doc.XPath(c.XPath)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		switch {
		case c.Attr != "":
			fmt.Fprintln(stdout, n.Attr(c.Attr))
		case c.Names:
			fmt.Fprintln(stdout, n.Name())
		case c.Text:
			fmt.Fprintln(stdout, n.Text())
		default:
			fmt.Fprintln(stdout, n.OuterXML())
		}
	}
	return nil
}

// AllowedCmd lists the kinds that may be inserted at a position.
type AllowedCmd struct {
	File      string `arg:"" help:"Description markup" type:"existingfile"`
	Component string `arg:"" help:"Target component id (see sidebar)"`
	Child     bool   `help:"Insert inside the target instead of after it"`
}

func (c *AllowedCmd) Run(g *Globals) error {
	s, err := g.session(context.Background(), c.File)
	if err != nil {
		return err
	}
	choices, err := s.Allowed(c.Component, c.Child)
	if err != nil {
		return err
	}
	for _, ch := range choices {
		fmt.Fprintf(stdout, "%-18s %s\n", ch.Component, ch.Label)
	}
	return nil
}

// InsertCmd inserts a component and prints the result.
type InsertCmd struct {
	File      string `arg:"" help:"Description markup" type:"existingfile"`
	Component string `arg:"" help:"Target component id (see sidebar)"`
	Kind      string `arg:"" help:"Component kind to insert (see allowed)"`
	Child     bool   `help:"Insert inside the target instead of after it"`
	Diff      bool   `help:"Print a line diff instead of the new markup"`
	Out       string `help:"Write the new markup to this file" type:"path"`
}

func (c *InsertCmd) Run(g *Globals) error {
	ctx := context.Background()
	s, err := g.session(ctx, c.File)
	if err != nil {
		return err
	}
	res, err := s.Insert(ctx, c.Component, c.Kind, c.Child)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", c.Kind, err)
	}

	if c.Out != "" {
		if err := writeFile(c.Out, []byte(res.After)); err != nil {
			return err
		}
	}
	switch {
	case c.Diff:
		fmt.Fprint(stdout, editor.Diff(res.Before, res.After))
	case c.Out != "":
		fmt.Fprintf(stdout, "Inserted %s %s\n", res.Component.Kind, res.Component.ID)
	default:
		fmt.Fprintln(stdout, res.After)
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Fprintf(stdout, "msdesc version %s\n", version)
	info := sqlite.GetInfo()
	fmt.Fprintf(stdout, "sqlite driver: %s (%s, %s)\n", info.DriverName, info.DriverType, info.Package)
	if reg, err := schema.Default(); err == nil {
		fmt.Fprintf(stdout, "subtypes: %s\n", strings.Join(reg.Subtypes(), ", "))
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := validation.ValidatePath(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func logCacheStats() {
	st := docs.Stats()
	logging.GetLogger().Debug("document_cache", "hits", st.Hits, "misses", st.Misses, "size", st.Size)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newParser(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	opts = append([]kong.Option{
		kong.Name("msdesc"),
		kong.Description("Structural editor for manuscript descriptions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	}, opts...)
	return kong.New(cli, opts...)
}

func run(ctx *kong.Context, cli *CLI) error {
	if err := cli.initLogging(); err != nil {
		return err
	}
	defer logCacheStats()
	return ctx.Run(&cli.Globals)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	ctx.FatalIfErrorf(run(ctx, &cli))
}
