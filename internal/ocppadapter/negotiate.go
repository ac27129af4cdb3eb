// Package ocppadapter negotiates a station's OCPP version during the
// WebSocket handshake and hands the connection handler a single
// version-specific adapter, generalizing the teacher's
// gateway.MessageDispatcher (a long-lived registry of N protocol handlers
// sharing one event-aggregator goroutine) down to a per-connection
// produce-one-adapter factory, since each connection only ever speaks one
// negotiated version for its lifetime.
package ocppadapter

import (
	"strings"

	"github.com/ocpp-csms/central-system/internal/connection"
)

// SupportedVersions is the ordered (newest-first) enumeration of OCPP
// versions this server can speak.
var SupportedVersions = []connection.Version{
	connection.Version201,
	connection.Version16,
}

// DefaultVersion is used when the client sends no Sec-WebSocket-Protocol
// header at all.
const DefaultVersion = connection.Version16

func isSupported(v connection.Version) bool {
	for _, sv := range SupportedVersions {
		if sv == v {
			return true
		}
	}
	return false
}

// lowestSupported returns the oldest version this server supports, used as
// the negotiation fallback when none of the client's requested
// subprotocols match.
func lowestSupported() connection.Version {
	lowest := SupportedVersions[0]
	for _, v := range SupportedVersions {
		if v < lowest {
			lowest = v
		}
	}
	return lowest
}

// subprotocolToVersion maps an OCPP-J Sec-WebSocket-Protocol token (e.g.
// "ocpp1.6", "ocpp2.0.1") to a Version, returning ok=false for anything
// else.
func subprotocolToVersion(token string) (connection.Version, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "ocpp1.6":
		return connection.Version16, true
	case "ocpp2.0.1":
		return connection.Version201, true
	default:
		return "", false
	}
}

// VersionToSubprotocol is the inverse of subprotocolToVersion, for echoing
// the negotiated choice back in the handshake response.
func VersionToSubprotocol(v connection.Version) string {
	switch v {
	case connection.Version201:
		return "ocpp2.0.1"
	default:
		return "ocpp1.6"
	}
}

// Negotiate picks a version from the client's requested subprotocols,
// supplied in the order the client listed them in Sec-WebSocket-Protocol.
// An empty list negotiates DefaultVersion. A non-empty list with no
// recognized entry falls back to the lowest version this server supports.
func Negotiate(requested []string) connection.Version {
	if len(requested) == 0 {
		return DefaultVersion
	}
	for _, token := range requested {
		if v, ok := subprotocolToVersion(token); ok && isSupported(v) {
			return v
		}
	}
	return lowestSupported()
}
