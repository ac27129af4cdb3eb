package commandengine

import (
	"encoding/json"

	"github.com/ocpp-csms/central-system/internal/wireframe"
)

func buildCallFrame(messageID, action string, payload []byte) ([]byte, error) {
	if payload == nil {
		payload = []byte("{}")
	}
	return wireframe.Serialize(wireframe.Frame{
		Kind:      wireframe.KindCall,
		MessageID: messageID,
		Action:    action,
		Payload:   json.RawMessage(payload),
	})
}
