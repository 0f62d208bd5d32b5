package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goliatone/go-pivot/components/pivot/commands"
	"github.com/goliatone/go-pivot/components/pivot/xlsx"
)

type exportCmd struct {
	Config   string    `arg:"" type:"existingfile" help:"Pivot document (.yaml or .json)."`
	Dir      string    `type:"path" help:"Output directory (defaults to PIVOT_EXPORT_DIR)."`
	Filename string    `help:"Workbook name; derived from the title and time when empty."`
	Sheet    string    `name:"sheet-name" default:"Pivot" help:"Worksheet name."`
	Collapse bool      `help:"Collapse every row group before exporting."`
	Data     dataFlags `embed:""`

	out io.Writer
}

func (cmd *exportCmd) Run(ctx context.Context, rt *runtime) error {
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
	dir := cmd.Dir
	if dir == "" {
		dir = rt.Env.ExportDir
	}
	exporter := xlsx.NewExporter(xlsx.Options{Dir: dir, Sheet: cmd.Sheet, Logger: &rt.Logger})
	var path string
	export := commands.NewExportCommand(t.registry, exporter, nil)
	if err := export.Execute(ctx, commands.ExportInput{WidgetID: t.id, Filename: cmd.Filename, Path: &path}); err != nil {
		return err
	}
	out := cmd.out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "%s Exported %s to %s\n", colorOK("✓"), t.id, path)
	return nil
}
