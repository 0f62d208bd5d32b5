package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/goliatone/go-pivot/components/pivot/tablecard"
)

// LoadInput fetches data for a widget, creating the widget when needed.
type LoadInput struct {
	Request tablecard.Request
}

type widgetEnsurer interface {
	Ensure(id string, opts pivot.WidgetOptions) (*pivot.Widget, error)
}

type loader interface {
	Load(ctx context.Context, w *pivot.Widget, req tablecard.Request) (bool, error)
}

// LoadCommand runs the table card fetch for a widget.
type LoadCommand struct {
	widgets   widgetEnsurer
	card      loader
	options   pivot.WidgetOptions
	telemetry pivot.Telemetry
}

// NewLoadCommand creates the command. opts are used for widgets created on
// first load.
func NewLoadCommand(widgets widgetEnsurer, card loader, opts pivot.WidgetOptions, telemetry pivot.Telemetry) *LoadCommand {
	return &LoadCommand{widgets: widgets, card: card, options: opts, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[LoadInput] = (*LoadCommand)(nil)

// Execute fetches and applies the data.
func (c *LoadCommand) Execute(ctx context.Context, msg LoadInput) error {
	if c.widgets == nil || c.card == nil {
		return errors.New("load command requires registry and table card")
	}
	w, err := c.widgets.Ensure(msg.Request.WidgetID, c.options)
	if err != nil {
		return err
	}
	changed, err := c.card.Load(ctx, w, msg.Request)
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "pivot.command.load", map[string]any{
		"widget":  msg.Request.WidgetID,
		"changed": changed,
	})
	return nil
}
