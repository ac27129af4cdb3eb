// Package connection holds the in-memory Session value type the Session
// Registry owns exclusively. Sessions never outlive a process restart.
package connection

import (
	"sync"
	"time"
)

// Version identifies a negotiated OCPP wire protocol.
type Version string

const (
	Version16  Version = "1.6"
	Version201 Version = "2.0.1"
)

// Sink is the outbound write side of a station's WebSocket. The Session
// Registry is the sole writer; dropping a Session's sink causes its writer
// pump to exit and the underlying socket to close.
type Sink interface {
	// Send enqueues text for delivery on the outbound pump. It must not
	// block the caller on network I/O.
	Send(text string) error
	// Close tears down the outbound pump and the underlying socket.
	Close() error
}

// Session is the in-memory record of one live station connection.
type Session struct {
	StationID        string
	NegotiatedVersion Version
	Sink             Sink
	ConnectedAt      time.Time

	mu           sync.RWMutex
	lastActivity time.Time
}

// NewSession builds a Session for a freshly registered station.
func NewSession(stationID string, sink Sink, version Version, now time.Time) *Session {
	return &Session{
		StationID:         stationID,
		NegotiatedVersion: version,
		Sink:              sink,
		ConnectedAt:       now,
		lastActivity:      now,
	}
}

// Touch refreshes the last-activity timestamp; called on every inbound
// frame, regardless of content.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
}

// LastActivity returns the timestamp of the most recent inbound frame.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Send posts text onto the session's outbound sink.
func (s *Session) Send(text string) error {
	return s.Sink.Send(text)
}
