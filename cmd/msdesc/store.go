package main

import (
	"context"
	"fmt"

	"github.com/FocuswithJustin/msdesc/internal/store"
	"github.com/FocuswithJustin/msdesc/internal/validation"
)

// StoreGroup contains description store operations.
type StoreGroup struct {
	Put       StorePutCmd       `cmd:"" help:"Save a description as a new revision"`
	Get       StoreGetCmd       `cmd:"" help:"Print a stored description"`
	List      StoreListCmd      `cmd:"" help:"List stored descriptions"`
	Revisions StoreRevisionsCmd `cmd:"" help:"List the revisions of a description"`
	Delete    StoreDeleteCmd    `cmd:"" help:"Delete a description and its revisions"`
}

// StorePutCmd saves a description.
type StorePutCmd struct {
	ID   string `arg:"" help:"Description id"`
	File string `arg:"" help:"Description markup" type:"existingfile"`
}

func (c *StorePutCmd) Run(g *Globals) error {
	if _, err := g.registry(); err != nil {
		return err
	}
	data, err := validation.ReadMarkup(c.File)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.File, err)
	}
	st, err := store.Open(g.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	rev, err := st.Put(context.Background(), c.ID, g.Subtype, data)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", c.ID, err)
	}
	fmt.Fprintf(stdout, "Stored %s revision %d\n", c.ID, rev)
	return nil
}

// StoreGetCmd prints a stored description.
type StoreGetCmd struct {
	ID       string `arg:"" help:"Description id"`
	Revision int64  `help:"Revision to print (default: current)" short:"r"`
	Out      string `help:"Write the markup to this file" type:"path"`
}

func (c *StoreGetCmd) Run(g *Globals) error {
	st, err := store.OpenReadOnly(g.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	var d *store.Description
	if c.Revision > 0 {
		d, err = st.GetRevision(ctx, c.ID, c.Revision)
	} else {
		d, err = st.Get(ctx, c.ID)
	}
	if err != nil {
		return err
	}
	if c.Out != "" {
		if err := writeFile(c.Out, d.Markup); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s revision %d to %s\n", d.ID, d.Revision, c.Out)
		return nil
	}
	_, err = stdout.Write(d.Markup)
	return err
}

// StoreListCmd lists stored descriptions.
type StoreListCmd struct {
	JSON bool `help:"Print as JSON"`
}

func (c *StoreListCmd) Run(g *Globals) error {
	st, err := store.OpenReadOnly(g.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := st.List(context.Background())
	if err != nil {
		return err
	}
	return printSummaries(list, c.JSON)
}

// StoreRevisionsCmd lists the revisions of one description.
type StoreRevisionsCmd struct {
	ID   string `arg:"" help:"Description id"`
	JSON bool   `help:"Print as JSON"`
}

func (c *StoreRevisionsCmd) Run(g *Globals) error {
	st, err := store.OpenReadOnly(g.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	revs, err := st.Revisions(context.Background(), c.ID)
	if err != nil {
		return err
	}
	return printSummaries(revs, c.JSON)
}

// StoreDeleteCmd deletes a description.
type StoreDeleteCmd struct {
	ID string `arg:"" help:"Description id"`
}

func (c *StoreDeleteCmd) Run(g *Globals) error {
	st, err := store.Open(g.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(context.Background(), c.ID); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Deleted %s\n", c.ID)
	return nil
}

func printSummaries(list []store.Summary, asJSON bool) error {
	if asJSON {
		if list == nil {
			list = []store.Summary{}
		}
		return writeJSON(list)
	}
	for _, s := range list {
		fmt.Fprintf(stdout, "%-20s %-10s r%-4d %8d  %s  %s\n",
			s.ID, s.Subtype, s.Revision, s.Size, s.UpdatedAt.Format("2006-01-02 15:04:05"), s.Digest[:12])
	}
	return nil
}
