package commandengine

import (
	"context"

	"github.com/ocpp-csms/central-system/internal/connection"
	"github.com/ocpp-csms/central-system/internal/ocpperr"
)

// VersionResolver looks up a connected station's live session, for
// picking the Serializer a StopCommander sends through. Satisfied by
// *sessionregistry.Registry.
type VersionResolver interface {
	Session(stationID string) (*connection.Session, bool)
}

// StopCommander adapts the Engine into the charging package's narrow
// Commander capability, resolving the station's negotiated version
// through resolver so charging never has to import commandengine or
// connection directly.
type StopCommander struct {
	engine   *Engine
	resolver VersionResolver
}

// NewStopCommander builds a StopCommander.
func NewStopCommander(engine *Engine, resolver VersionResolver) *StopCommander {
	return &StopCommander{engine: engine, resolver: resolver}
}

// RequestStop implements charging.Commander.
func (c *StopCommander) RequestStop(ctx context.Context, stationID string, transactionID int64) error {
	sess, ok := c.resolver.Session(stationID)
	if !ok {
		return &ocpperr.NotConnected{StationID: stationID}
	}
	_, err := c.engine.Send(ctx, stationID, sess.NegotiatedVersion, Command{
		Action:  ActionRemoteStopTransaction,
		Payload: RemoteStopTransactionPayload{TransactionID: transactionID},
	})
	return err
}
