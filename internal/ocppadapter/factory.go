package ocppadapter

import (
	"context"
	"fmt"

	"github.com/ocpp-csms/central-system/internal/connection"
)

// InboundAdapter encapsulates all version-specific type knowledge for one
// station's connection. The connection handler calls HandleMessage for
// every inbound text frame and stays version-agnostic after negotiation.
type InboundAdapter interface {
	// HandleMessage processes one inbound frame's raw text and returns the
	// text to send back, if any (a Call produces a response; a
	// CallResult/CallError the station sent us does not).
	HandleMessage(ctx context.Context, text string) (response string, hasResponse bool)
	Version() connection.Version
	StationID() string
}

// AdapterBuilder constructs a fresh InboundAdapter for one station's
// connection.
type AdapterBuilder func(stationID string) InboundAdapter

// Factory is a registry of AdapterBuilders keyed by negotiated version.
type Factory struct {
	builders map[connection.Version]AdapterBuilder
}

// NewFactory builds an empty Factory.
func NewFactory() *Factory {
	return &Factory{builders: make(map[connection.Version]AdapterBuilder)}
}

// Register installs the builder for a version, overwriting any prior
// registration — unlike the teacher's RegisterHandler, which errors on a
// duplicate, since wiring always re-registers the same builder at startup
// and a duplicate here is never a caller mistake worth failing loudly for.
func (f *Factory) Register(version connection.Version, builder AdapterBuilder) {
	f.builders[version] = builder
}

// Build produces a fresh adapter for stationID using the builder
// registered for version, or an error if no builder is registered.
func (f *Factory) Build(version connection.Version, stationID string) (InboundAdapter, error) {
	builder, ok := f.builders[version]
	if !ok {
		return nil, fmt.Errorf("ocppadapter: no adapter registered for version %s", version)
	}
	return builder(stationID), nil
}
