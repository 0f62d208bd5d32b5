package commands

import (
	"context"

	"github.com/goliatone/go-pivot/components/pivot"
)

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

func normalizeTelemetry(t pivot.Telemetry) pivot.Telemetry {
	if t == nil {
		return noopTelemetry{}
	}
	return t
}

// widgetLookup resolves live widgets; *pivot.Registry satisfies it.
type widgetLookup interface {
	Get(id string) (*pivot.Widget, error)
}
