package sessionregistry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-csms/central-system/internal/clock"
	"github.com/ocpp-csms/central-system/internal/connection"
	"github.com/ocpp-csms/central-system/internal/eventbus"
	"github.com/ocpp-csms/central-system/internal/ocpperr"
)

type fakeSink struct {
	closed bool
	sent   []string
}

func (s *fakeSink) Send(text string) error {
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

type fakeCanceller struct {
	cancelled []string
}

func (c *fakeCanceller) CancelAll(stationID string) {
	c.cancelled = append(c.cancelled, stationID)
}

func TestRegister_NewOutcome(t *testing.T) {
	reg := New(30*time.Second, nil, eventbus.NoopPublisher{}, clock.NewFake(time.Now()))
	result := reg.Register("CP1", &fakeSink{}, connection.Version16)
	assert.Equal(t, OutcomeNew, result.Outcome)
	assert.True(t, reg.IsConnected("CP1"))
}

func TestRegister_EvictsExistingSession(t *testing.T) {
	canceller := &fakeCanceller{}
	pub := eventbus.NewFakePublisher()
	reg := New(30*time.Second, canceller, pub, clock.NewFake(time.Now()))

	oldSink := &fakeSink{}
	first := reg.Register("CP1", oldSink, connection.Version16)
	require.Equal(t, OutcomeNew, first.Outcome)

	newSink := &fakeSink{}
	second := reg.Register("CP1", newSink, connection.Version201)
	assert.Equal(t, OutcomeEvicted, second.Outcome)
	assert.True(t, oldSink.closed)
	assert.Equal(t, []string{"CP1"}, canceller.cancelled)
	assert.Equal(t, 1, pub.Count(eventbus.TypeStationDisconnected))

	sess, ok := reg.Session("CP1")
	require.True(t, ok)
	assert.Equal(t, connection.Version201, sess.NegotiatedVersion)
}

func TestRegister_DebouncesQuickReconnect(t *testing.T) {
	fc := clock.NewFake(time.Now())
	reg := New(30*time.Second, nil, eventbus.NoopPublisher{}, fc)

	reg.Register("CP1", &fakeSink{}, connection.Version16)
	sess, _ := reg.Session("CP1")
	reg.Unregister("CP1", sess)

	fc.Advance(5 * time.Second)
	result := reg.Register("CP1", &fakeSink{}, connection.Version16)
	assert.Equal(t, OutcomeDebounced, result.Outcome)
	assert.Equal(t, 25*time.Second, result.RetryAfter)
	assert.False(t, reg.IsConnected("CP1"))
}

func TestRegister_AllowsReconnectAfterDebounceWindow(t *testing.T) {
	fc := clock.NewFake(time.Now())
	reg := New(30*time.Second, nil, eventbus.NoopPublisher{}, fc)

	reg.Register("CP1", &fakeSink{}, connection.Version16)
	sess, _ := reg.Session("CP1")
	reg.Unregister("CP1", sess)

	fc.Advance(31 * time.Second)
	result := reg.Register("CP1", &fakeSink{}, connection.Version16)
	assert.Equal(t, OutcomeNew, result.Outcome)
	assert.True(t, reg.IsConnected("CP1"))
}

func TestUnregister_IgnoresStaleSession(t *testing.T) {
	fc := clock.NewFake(time.Now())
	reg := New(30*time.Second, nil, eventbus.NoopPublisher{}, fc)

	reg.Register("CP1", &fakeSink{}, connection.Version16)
	staleSess, _ := reg.Session("CP1")

	// A new connection arrives and evicts the first.
	reg.Register("CP1", &fakeSink{}, connection.Version16)

	// The old reader loop's deferred Unregister(staleSess) must not tear
	// down the new session.
	reg.Unregister("CP1", staleSess)
	assert.True(t, reg.IsConnected("CP1"))
}

func TestTouch_UpdatesLastActivity(t *testing.T) {
	fc := clock.NewFake(time.Now())
	reg := New(30*time.Second, nil, eventbus.NoopPublisher{}, fc)
	reg.Register("CP1", &fakeSink{}, connection.Version16)

	fc.Advance(10 * time.Second)
	reg.Touch("CP1")

	sess, _ := reg.Session("CP1")
	assert.Equal(t, fc.Now(), sess.LastActivity())
}

func TestSendTo_NotConnected(t *testing.T) {
	reg := New(30*time.Second, nil, eventbus.NoopPublisher{}, clock.NewFake(time.Now()))
	err := reg.SendTo("ghost", "hello")
	var notConnected *ocpperr.NotConnected
	assert.ErrorAs(t, err, &notConnected)
}

func TestSendTo_DeliversToSink(t *testing.T) {
	reg := New(30*time.Second, nil, eventbus.NoopPublisher{}, clock.NewFake(time.Now()))
	sink := &fakeSink{}
	reg.Register("CP1", sink, connection.Version16)

	require.NoError(t, reg.SendTo("CP1", `[2,"1","Heartbeat",{}]`))
	assert.Equal(t, []string{`[2,"1","Heartbeat",{}]`}, sink.sent)
}

func TestConnectedIDs(t *testing.T) {
	reg := New(30*time.Second, nil, eventbus.NoopPublisher{}, clock.NewFake(time.Now()))
	reg.Register("CP1", &fakeSink{}, connection.Version16)
	reg.Register("CP2", &fakeSink{}, connection.Version201)

	ids := reg.ConnectedIDs()
	assert.ElementsMatch(t, []string{"CP1", "CP2"}, ids)
}
