package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-pivot/components/pivot"
)

// HostEventCommand forwards host events to the pivot dispatcher.
type HostEventCommand struct {
	dispatcher *pivot.Dispatcher
}

// NewHostEventCommand creates the command.
func NewHostEventCommand(dispatcher *pivot.Dispatcher) *HostEventCommand {
	return &HostEventCommand{dispatcher: dispatcher}
}

var _ gocommand.Commander[pivot.HostEvent] = (*HostEventCommand)(nil)

// Execute dispatches the event.
func (c *HostEventCommand) Execute(ctx context.Context, msg pivot.HostEvent) error {
	if c.dispatcher == nil {
		return errors.New("host event command requires dispatcher")
	}
	_, err := c.dispatcher.Dispatch(ctx, msg)
	return err
}
