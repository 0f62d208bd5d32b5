// Package commands exposes pivot widget actions as go-command commanders.
package commands

import (
	"context"
	"errors"
	"fmt"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-pivot/components/pivot"
)

var (
	errNoWidgets = errors.New("commands: widget registry is required")
	// ErrInvalidInput marks malformed command input.
	ErrInvalidInput = errors.New("commands: invalid input")
)

// WidgetInput targets one widget.
type WidgetInput struct {
	WidgetID string `json:"widget_id"`
}

// ExpandAllCommand clears every collapsed group of a widget.
type ExpandAllCommand struct {
	widgets   widgetLookup
	telemetry pivot.Telemetry
}

// NewExpandAllCommand creates the command.
func NewExpandAllCommand(widgets widgetLookup, telemetry pivot.Telemetry) *ExpandAllCommand {
	return &ExpandAllCommand{widgets: widgets, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[WidgetInput] = (*ExpandAllCommand)(nil)

// Execute expands all rows and columns.
func (c *ExpandAllCommand) Execute(ctx context.Context, msg WidgetInput) error {
	w, err := lookup(c.widgets, msg.WidgetID)
	if err != nil {
		return err
	}
	w.ExpandAll(ctx)
	c.telemetry.Record(ctx, "pivot.command.expand_all", map[string]any{"widget": msg.WidgetID})
	return nil
}

// CollapseAllCommand collapses every row group with children.
type CollapseAllCommand struct {
	widgets   widgetLookup
	telemetry pivot.Telemetry
}

// NewCollapseAllCommand creates the command.
func NewCollapseAllCommand(widgets widgetLookup, telemetry pivot.Telemetry) *CollapseAllCommand {
	return &CollapseAllCommand{widgets: widgets, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[WidgetInput] = (*CollapseAllCommand)(nil)

// Execute collapses all row groups.
func (c *CollapseAllCommand) Execute(ctx context.Context, msg WidgetInput) error {
	w, err := lookup(c.widgets, msg.WidgetID)
	if err != nil {
		return err
	}
	prefixes := w.CollapseAll(ctx)
	c.telemetry.Record(ctx, "pivot.command.collapse_all", map[string]any{
		"widget":   msg.WidgetID,
		"prefixes": len(prefixes),
	})
	return nil
}

// ToggleInput names a group by its encoded key (see pivot.EncodeKey).
type ToggleInput struct {
	WidgetID string     `json:"widget_id"`
	Axis     pivot.Axis `json:"axis"`
	Key      string     `json:"key"`
}

// ToggleCommand collapses or expands one group.
type ToggleCommand struct {
	widgets   widgetLookup
	telemetry pivot.Telemetry
}

// NewToggleCommand creates the command.
func NewToggleCommand(widgets widgetLookup, telemetry pivot.Telemetry) *ToggleCommand {
	return &ToggleCommand{widgets: widgets, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ToggleInput] = (*ToggleCommand)(nil)

// Execute starts the transition for the group.
func (c *ToggleCommand) Execute(ctx context.Context, msg ToggleInput) error {
	w, err := lookup(c.widgets, msg.WidgetID)
	if err != nil {
		return err
	}
	prefix, err := pivot.DecodeKey(msg.Key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if prefix == "" {
		return fmt.Errorf("%w: toggle requires a group key", ErrInvalidInput)
	}
	axis := msg.Axis
	if axis != pivot.AxisColumns {
		axis = pivot.AxisRows
	}
	phase := w.Toggle(ctx, axis, prefix)
	c.telemetry.Record(ctx, "pivot.command.toggle", map[string]any{
		"widget": msg.WidgetID,
		"axis":   string(axis),
		"phase":  phase.String(),
	})
	return nil
}

// SortInput cycles either a row level (Level set) or a value column (Column
// holds an encoded column key or "__total__").
type SortInput struct {
	WidgetID string `json:"widget_id"`
	Level    *int   `json:"level,omitempty"`
	Column   string `json:"column,omitempty"`
}

// SortCommand advances a sort cycle.
type SortCommand struct {
	widgets   widgetLookup
	telemetry pivot.Telemetry
}

// NewSortCommand creates the command.
func NewSortCommand(widgets widgetLookup, telemetry pivot.Telemetry) *SortCommand {
	return &SortCommand{widgets: widgets, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SortInput] = (*SortCommand)(nil)

// Execute advances the requested sort.
func (c *SortCommand) Execute(ctx context.Context, msg SortInput) error {
	w, err := lookup(c.widgets, msg.WidgetID)
	if err != nil {
		return err
	}
	var dir pivot.SortDirection
	switch {
	case msg.Level != nil:
		if dir, err = w.CycleLevelSort(ctx, *msg.Level); err != nil {
			return err
		}
	case msg.Column != "":
		key, err := pivot.DecodeKey(msg.Column)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		dir = w.CycleValueSort(ctx, key)
	default:
		return fmt.Errorf("%w: sort requires a level or a column", ErrInvalidInput)
	}
	c.telemetry.Record(ctx, "pivot.command.sort", map[string]any{"widget": msg.WidgetID, "dir": string(dir)})
	return nil
}

func lookup(widgets widgetLookup, id string) (*pivot.Widget, error) {
	if widgets == nil {
		return nil, errNoWidgets
	}
	return widgets.Get(id)
}
