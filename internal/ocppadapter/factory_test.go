package ocppadapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-csms/central-system/internal/connection"
)

type stubAdapter struct {
	version   connection.Version
	stationID string
}

func (a *stubAdapter) HandleMessage(context.Context, string) (string, bool) {
	return `[3,"1",{}]`, true
}

func (a *stubAdapter) Version() connection.Version { return a.version }
func (a *stubAdapter) StationID() string            { return a.stationID }

func TestFactory_BuildUsesRegisteredBuilder(t *testing.T) {
	f := NewFactory()
	f.Register(connection.Version16, func(stationID string) InboundAdapter {
		return &stubAdapter{version: connection.Version16, stationID: stationID}
	})

	adapter, err := f.Build(connection.Version16, "CP1")
	require.NoError(t, err)
	assert.Equal(t, connection.Version16, adapter.Version())
	assert.Equal(t, "CP1", adapter.StationID())

	resp, has := adapter.HandleMessage(context.Background(), `[2,"1","Heartbeat",{}]`)
	assert.True(t, has)
	assert.Equal(t, `[3,"1",{}]`, resp)
}

func TestFactory_BuildUnregisteredVersion(t *testing.T) {
	f := NewFactory()
	_, err := f.Build(connection.Version201, "CP1")
	assert.Error(t, err)
}
