package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-pivot/components/pivot"
)

// ExportInput requests an Excel export of a widget.
type ExportInput struct {
	WidgetID string `json:"widget_id"`
	Filename string `json:"filename,omitempty"`
	// Path receives the written file when set.
	Path *string `json:"-"`
}

// ExportCommand exports the widget's current grid. Unlike the dispatcher,
// it reports failures to the caller.
type ExportCommand struct {
	widgets   widgetLookup
	exporter  pivot.Exporter
	telemetry pivot.Telemetry
}

// NewExportCommand creates the command.
func NewExportCommand(widgets widgetLookup, exporter pivot.Exporter, telemetry pivot.Telemetry) *ExportCommand {
	return &ExportCommand{widgets: widgets, exporter: exporter, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ExportInput] = (*ExportCommand)(nil)

// Execute writes the export.
func (c *ExportCommand) Execute(ctx context.Context, msg ExportInput) error {
	if c.exporter == nil {
		return errors.New("export command requires exporter")
	}
	w, err := lookup(c.widgets, msg.WidgetID)
	if err != nil {
		return err
	}
	path, err := w.Export(ctx, c.exporter, msg.Filename)
	if err != nil {
		return err
	}
	if msg.Path != nil {
		*msg.Path = path
	}
	c.telemetry.Record(ctx, "pivot.command.export", map[string]any{"widget": msg.WidgetID, "path": path})
	return nil
}
