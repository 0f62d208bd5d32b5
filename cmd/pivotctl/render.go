package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goliatone/go-pivot/components/pivot/commands"
	"github.com/goliatone/go-pivot/components/pivot/htmlview"
	"github.com/goliatone/go-pivot/components/pivot/queries"
	"github.com/goliatone/go-pivot/components/pivot/termview"
)

type renderCmd struct {
	Config   string    `arg:"" type:"existingfile" help:"Pivot document (.yaml or .json)."`
	Format   string    `short:"f" enum:"table,json,html" default:"table" help:"Output format (table, json, html)."`
	Out      string    `short:"o" type:"path" help:"Write to this file instead of stdout."`
	Collapse bool      `help:"Collapse every row group before printing."`
	Plain    bool      `help:"Disable bold totals and borders in table output."`
	Data     dataFlags `embed:""`

	out io.Writer
}

func (cmd *renderCmd) Run(ctx context.Context, rt *runtime) error {
	t, err := openTable(ctx, cmd.Config, cmd.Data, tableOptions{
		Env:       rt.Env,
		Logger:    rt.Logger,
		Scheduler: &settleScheduler{},
	})
	if err != nil {
		return err
	}
	if cmd.Collapse {
		if err := commands.NewCollapseAllCommand(t.registry, nil).Execute(ctx, commands.WidgetInput{WidgetID: t.id}); err != nil {
			return err
		}
	}
	out := cmd.out
	if out == nil {
		out = os.Stdout
	}
	if cmd.Out != "" {
		f, err := os.Create(cmd.Out) //nolint:gosec
		if err != nil {
			return fmt.Errorf("pivotctl: create %s: %w", cmd.Out, err)
		}
		defer f.Close()
		out = f
	}
	return renderTo(ctx, out, t, cmd.Format, !cmd.Plain)
}

func renderTo(ctx context.Context, out io.Writer, t *table, format string, emphasis bool) error {
	grid := queries.NewGridQuery(t.registry)
	view, err := grid.Query(ctx, queries.GridInput{WidgetID: t.id})
	if err != nil {
		return err
	}
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "html":
		v, err := htmlview.New(htmlview.Options{})
		if err != nil {
			return err
		}
		_, err = v.Render(ctx, htmlview.Page{WidgetID: view.WidgetID, Grid: view.Grid, Busy: view.Busy}, out)
		return err
	default:
		if view.Title != "" {
			fmt.Fprintln(out, colorInfo(view.Title))
		}
		return termview.Render(out, view.Grid, termview.Options{Emphasis: emphasis, Border: emphasis})
	}
}
