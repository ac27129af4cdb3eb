// Package sessionregistry maps station IDs to live connections: the
// single-writer map the rest of the core treats as the sole authority on
// whether a station is currently reachable, generalized from the
// teacher's transport/websocket.Manager connection map into the narrow
// register/unregister/send_to/touch contract the core needs, with the
// duplicate-connection branch rewritten from the teacher's HTTP 409
// rejection into the debounce/evict semantics this module requires.
package sessionregistry

import (
	"context"
	"sync"
	"time"

	"github.com/ocpp-csms/central-system/internal/clock"
	"github.com/ocpp-csms/central-system/internal/connection"
	"github.com/ocpp-csms/central-system/internal/eventbus"
	"github.com/ocpp-csms/central-system/internal/metrics"
	"github.com/ocpp-csms/central-system/internal/ocpperr"
)

// Outcome classifies the three results register() can produce.
type Outcome int

const (
	OutcomeNew Outcome = iota
	OutcomeEvicted
	OutcomeDebounced
)

// RegisterResult is returned by Register.
type RegisterResult struct {
	Outcome Outcome
	// RetryAfter is set only when Outcome == OutcomeDebounced: how much of
	// the debounce window remains.
	RetryAfter time.Duration
}

// CommandCanceller lets the registry cancel a station's in-flight
// PendingCommands on eviction without importing the command engine
// package directly (it would otherwise import this one back).
type CommandCanceller interface {
	CancelAll(stationID string)
}

type entry struct {
	session    *connection.Session
	detachedAt time.Time // zero while the session is live
}

// Registry is the concurrent station-id -> Session map.
type Registry struct {
	mu    sync.Mutex
	byID  map[string]*entry
	clock clock.Clock

	reconnectDebounce time.Duration
	canceller         CommandCanceller
	publisher         eventbus.Publisher
}

// New builds an empty Registry.
func New(reconnectDebounce time.Duration, canceller CommandCanceller, publisher eventbus.Publisher, c clock.Clock) *Registry {
	if c == nil {
		c = clock.New()
	}
	return &Registry{
		byID:              make(map[string]*entry),
		clock:             c,
		reconnectDebounce: reconnectDebounce,
		canceller:         canceller,
		publisher:         publisher,
	}
}

// Register attempts to install a new session for stationID, returning
// which of the three spec outcomes occurred.
func (r *Registry) Register(stationID string, sink connection.Sink, version connection.Version) RegisterResult {
	now := r.clock.Now()

	r.mu.Lock()
	existing, ok := r.byID[stationID]
	if ok && existing.session != nil {
		old := existing.session
		r.byID[stationID] = &entry{session: connection.NewSession(stationID, sink, version, now)}
		r.mu.Unlock()

		_ = old.Sink.Close()
		if r.canceller != nil {
			r.canceller.CancelAll(stationID)
		}
		metrics.SessionRegistryEvictions.Inc()
		r.publishDisconnected(stationID, "Evicted")
		return RegisterResult{Outcome: OutcomeEvicted}
	}

	if ok && !existing.detachedAt.IsZero() {
		elapsed := now.Sub(existing.detachedAt)
		if elapsed < r.reconnectDebounce {
			remaining := r.reconnectDebounce - elapsed
			r.mu.Unlock()
			metrics.SessionRegistryDebounces.Inc()
			return RegisterResult{Outcome: OutcomeDebounced, RetryAfter: remaining}
		}
	}

	r.byID[stationID] = &entry{session: connection.NewSession(stationID, sink, version, now)}
	r.mu.Unlock()
	return RegisterResult{Outcome: OutcomeNew}
}

// Unregister tears down stationID's session if sess is still the one on
// file (guards against a stale unregister racing a newer Register/Evict).
func (r *Registry) Unregister(stationID string, sess *connection.Session) {
	r.mu.Lock()
	existing, ok := r.byID[stationID]
	if !ok || existing.session != sess {
		r.mu.Unlock()
		return
	}
	r.byID[stationID] = &entry{detachedAt: r.clock.Now()}
	r.mu.Unlock()

	if r.canceller != nil {
		r.canceller.CancelAll(stationID)
	}
	r.publishDisconnected(stationID, "Closed")
}

// Touch updates the session's last-activity timestamp on an inbound
// frame. A no-op if the station has no live session.
func (r *Registry) Touch(stationID string) {
	r.mu.Lock()
	existing, ok := r.byID[stationID]
	r.mu.Unlock()
	if !ok || existing.session == nil {
		return
	}
	existing.session.Touch(r.clock.Now())
}

// SendTo posts text to stationID's outbound sink, failing with
// NotConnected if no live session exists.
func (r *Registry) SendTo(stationID string, text string) error {
	r.mu.Lock()
	existing, ok := r.byID[stationID]
	r.mu.Unlock()
	if !ok || existing.session == nil {
		return &ocpperr.NotConnected{StationID: stationID}
	}
	return existing.session.Send(text)
}

// IsConnected reports whether stationID currently has a live session.
func (r *Registry) IsConnected(stationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[stationID]
	return ok && existing.session != nil
}

// ConnectedIDs returns every station ID with a currently live session.
func (r *Registry) ConnectedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.byID))
	for id, e := range r.byID {
		if e.session != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Session returns the live session for stationID, if any. Used by
// liveness sweepers that need last-activity timestamps directly.
func (r *Registry) Session(stationID string) (*connection.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[stationID]
	if !ok || existing.session == nil {
		return nil, false
	}
	return existing.session, true
}

func (r *Registry) publishDisconnected(stationID, reason string) {
	if r.publisher == nil {
		return
	}
	event := &eventbus.StationDisconnectedEvent{
		BaseEvent: eventbus.NewBaseEvent(eventbus.TypeStationDisconnected, stationID, eventbus.SeverityInfo, eventbus.Metadata{Source: "sessionregistry"}),
		Reason:    reason,
	}
	_ = r.publisher.Publish(context.Background(), event)
}
