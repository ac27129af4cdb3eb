// Package commandengine implements the Outbound Command Engine (C5): a
// version-agnostic façade for operator-initiated commands (remote
// start/stop, reset, unlock, change availability, trigger message,
// get/set configuration, charging profiles, reservations, firmware
// update, data transfer, and the rest). It resolves a station's
// negotiated version from the Session Registry, serializes the
// version-specific Call frame, and correlates the eventual CallResult
// or CallError routed back from the per-version dispatcher (C4).
//
// The PendingCommand table is sharded the way the teacher's cache
// package shards its LRU store: entries are spread over 32 shards by a
// hash of the message ID, so a send or completion only contends with
// others whose message IDs land in the same shard.
package commandengine

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ocpp-csms/central-system/internal/clock"
	"github.com/ocpp-csms/central-system/internal/connection"
	"github.com/ocpp-csms/central-system/internal/ocpperr"
)

// DefaultTimeout is the wall-clock budget for a server-initiated command
// awaiting its CallResult/CallError.
const DefaultTimeout = 30 * time.Second

const shardCount = 32

// Serializer turns a domain-vocabulary command into the version-specific
// action name and JSON payload to place in the Call frame. One
// implementation per negotiated version is registered with the engine.
type Serializer interface {
	// SerializeCommand returns the OCPP action name and JSON payload for
	// cmd, or an error if this version has no such command.
	SerializeCommand(cmd Command) (action string, payload []byte, err error)
}

// Command is a version-agnostic description of an operator-initiated
// request. Payload carries command-specific fields (e.g. connector ID,
// id tag, key/value pairs) understood by the registered Serializer.
type Command struct {
	Action  string
	Payload interface{}
}

// Sender is the narrow outbound capability the engine needs from a live
// session: write a pre-serialized frame to the station's socket.
type Sender interface {
	SendTo(stationID string, text string) error
}

type pendingEntry struct {
	stationID string
	messageID string
	done      chan Result
	timer     *time.Timer
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry // keyed by message ID
}

// Result is what a caller of Send receives once the command completes,
// times out, or fails outright.
type Result struct {
	Payload []byte // set on a successful CallResult
	Err     error  // set on CallError, Timeout, or NotConnected
}

// Engine is the version-agnostic outbound command façade.
type Engine struct {
	shards      [shardCount]*shard
	serializers map[connection.Version]Serializer
	sender      Sender
	clock       clock.Clock
	counter     uint64
	idPrefix    string

	// Timeout is the wall-clock budget for a command awaiting its
	// response. Defaults to DefaultTimeout; tests may shrink it.
	Timeout time.Duration
}

// New builds an Engine that writes frames through sender and times
// commands out using c (clock.New() if nil).
func New(sender Sender, idPrefix string, c clock.Clock) *Engine {
	if c == nil {
		c = clock.New()
	}
	e := &Engine{
		serializers: make(map[connection.Version]Serializer),
		sender:      sender,
		clock:       c,
		idPrefix:    idPrefix,
		Timeout:     DefaultTimeout,
	}
	for i := range e.shards {
		e.shards[i] = &shard{entries: make(map[string]*pendingEntry)}
	}
	return e
}

// RegisterSerializer installs the Serializer used for stations negotiated
// at version v.
func (e *Engine) RegisterSerializer(v connection.Version, s Serializer) {
	e.serializers[v] = s
}

// nextMessageID allocates a process-unique, monotonically increasing
// message ID with the engine's prefix.
func (e *Engine) nextMessageID() string {
	n := atomic.AddUint64(&e.counter, 1)
	return fmt.Sprintf("%s-%d", e.idPrefix, n)
}

func (e *Engine) shardFor(messageID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(messageID))
	return e.shards[h.Sum32()%shardCount]
}

// Send dispatches cmd to stationID at the given negotiated version and
// blocks the caller until a response, a CallError, or the 30-second
// timeout. Send must never be called from within the inbound read loop
// for the station it targets — callers that need to react to an inbound
// message (auto-stop on limit-reached) must spawn a separate goroutine,
// since the reader task is responsible for delivering the very responses
// Send waits on.
func (e *Engine) Send(ctx context.Context, stationID string, version connection.Version, cmd Command) (Result, error) {
	serializer, ok := e.serializers[version]
	if !ok {
		return Result{}, fmt.Errorf("commandengine: no serializer registered for version %s", version)
	}
	action, payload, err := serializer.SerializeCommand(cmd)
	if err != nil {
		return Result{}, err
	}

	messageID := e.nextMessageID()
	text, err := buildCallFrame(messageID, action, payload)
	if err != nil {
		return Result{}, err
	}

	pe := &pendingEntry{stationID: stationID, messageID: messageID, done: make(chan Result, 1)}
	sh := e.shardFor(messageID)
	sh.mu.Lock()
	sh.entries[messageID] = pe
	sh.mu.Unlock()

	if err := e.sender.SendTo(stationID, string(text)); err != nil {
		e.remove(messageID)
		return Result{}, &ocpperr.NotConnected{StationID: stationID}
	}

	pe.timer = time.AfterFunc(e.Timeout, func() {
		e.completeTimeout(messageID, stationID)
	})
	defer pe.timer.Stop()

	select {
	case res := <-pe.done:
		return res, res.Err
	case <-ctx.Done():
		e.remove(messageID)
		return Result{}, ctx.Err()
	}
}

func (e *Engine) completeTimeout(messageID, stationID string) {
	sh := e.shardFor(messageID)
	sh.mu.Lock()
	pe, ok := sh.entries[messageID]
	if ok {
		delete(sh.entries, messageID)
	}
	sh.mu.Unlock()
	if !ok {
		return
	}
	pe.done <- Result{Err: &ocpperr.CommandTimeout{StationID: stationID, MessageID: messageID}}
}

func (e *Engine) remove(messageID string) {
	sh := e.shardFor(messageID)
	sh.mu.Lock()
	delete(sh.entries, messageID)
	sh.mu.Unlock()
}

// CompleteResult is called by the inbound dispatcher (C4) when a
// CallResult frame arrives correlating to messageID. It returns false if
// no pending command matches (stale or already-timed-out reply).
func (e *Engine) CompleteResult(messageID string, payload []byte) bool {
	sh := e.shardFor(messageID)
	sh.mu.Lock()
	pe, ok := sh.entries[messageID]
	if ok {
		delete(sh.entries, messageID)
	}
	sh.mu.Unlock()
	if !ok {
		return false
	}
	if pe.timer != nil {
		pe.timer.Stop()
	}
	pe.done <- Result{Payload: payload}
	return true
}

// CompleteError is called by the inbound dispatcher when a CallError
// frame arrives correlating to messageID.
func (e *Engine) CompleteError(messageID, code, description string, details interface{}) bool {
	sh := e.shardFor(messageID)
	sh.mu.Lock()
	pe, ok := sh.entries[messageID]
	if ok {
		delete(sh.entries, messageID)
	}
	sh.mu.Unlock()
	if !ok {
		return false
	}
	if pe.timer != nil {
		pe.timer.Stop()
	}
	pe.done <- Result{Err: &ocpperr.CallError{Code: code, Description: description, Details: details}}
	return true
}

// CancelAll bulk-cancels every pending command addressed to stationID,
// delivering NotConnected to each awaiting caller. The Session Registry
// calls this on eviction and disconnect, satisfying its CommandCanceller
// dependency.
func (e *Engine) CancelAll(stationID string) {
	for _, sh := range e.shards {
		sh.mu.Lock()
		var victims []*pendingEntry
		for id, pe := range sh.entries {
			if pe.stationID == stationID {
				victims = append(victims, pe)
				delete(sh.entries, id)
			}
		}
		sh.mu.Unlock()
		for _, pe := range victims {
			if pe.timer != nil {
				pe.timer.Stop()
			}
			pe.done <- Result{Err: &ocpperr.NotConnected{StationID: stationID}}
		}
	}
}

// Pending returns the number of commands currently awaiting completion,
// for diagnostics and tests.
func (e *Engine) Pending() int {
	n := 0
	for _, sh := range e.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
