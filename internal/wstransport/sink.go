package wstransport

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// errSinkClosed is returned by Send once Close has run.
var errSinkClosed = errors.New("wstransport: sink closed")

// sink is the connection.Sink implementation the Session Registry holds
// for a live station: it owns the single goroutine allowed to call
// conn.WriteMessage, matching the teacher's one-sendRoutine-per-connection
// rule (gorilla/websocket connections are not safe for concurrent writers).
type sink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	out          chan string

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newSink(conn *websocket.Conn, writeTimeout time.Duration, buffer int) *sink {
	return &sink{
		conn:         conn,
		writeTimeout: writeTimeout,
		out:          make(chan string, buffer),
		done:         make(chan struct{}),
	}
}

// Send implements connection.Sink. It enqueues text for the writer pump
// and never blocks on network I/O itself.
func (s *sink) Send(text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errSinkClosed
	}
	s.mu.Unlock()

	select {
	case s.out <- text:
		return nil
	case <-s.done:
		return errSinkClosed
	default:
		return errors.New("wstransport: send buffer full")
	}
}

// Close implements connection.Sink. Idempotent.
func (s *sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()
	return s.conn.Close()
}

// writePump drains queued frames onto the socket until the sink is closed.
// Runs on its own goroutine for the life of the connection.
func (s *sink) writePump() {
	for {
		select {
		case <-s.done:
			return
		case text, ok := <-s.out:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				return
			}
		}
	}
}

// writePing sends a control-frame ping, used by the handler's ping ticker.
func (s *sink) writePing() error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// closeWithStatus sends a close frame carrying code/reason best-effort,
// then tears down the socket. Used for the reject-after-accept policies
// (unknown station, debounce) where no session is ever registered.
func (s *sink) closeWithStatus(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
	_ = s.Close()
}
