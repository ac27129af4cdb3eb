package ocpp201

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-csms/central-system/internal/charging"
	"github.com/ocpp-csms/central-system/internal/clock"
	"github.com/ocpp-csms/central-system/internal/eventbus"
	"github.com/ocpp-csms/central-system/internal/repository"
	"github.com/ocpp-csms/central-system/internal/repository/memrepo"
)

type fakeCommander struct{}

func (fakeCommander) RequestStop(context.Context, string, int64) error { return nil }

type fakeRouter struct {
	results map[string][]byte
	errs    map[string]string
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{results: map[string][]byte{}, errs: map[string]string{}}
}

func (r *fakeRouter) CompleteResult(messageID string, payload []byte) bool {
	r.results[messageID] = payload
	return true
}

func (r *fakeRouter) CompleteError(messageID, code, description string, _ interface{}) bool {
	r.errs[messageID] = code
	return true
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *memrepo.Store, *eventbus.FakePublisher) {
	t.Helper()
	store := memrepo.New()
	store.SeedIdTag(&repository.IdTag{Tag: "TAG1", Status: repository.IdTagAccepted, Active: true})
	store.SeedTariff(&repository.Tariff{ID: "default", Type: repository.TariffPerKwh, PricePerKwh: 100, Currency: "EUR", IsActive: true, IsDefault: true})

	pub := eventbus.NewFakePublisher()
	fc := clock.NewFake(time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC))
	svc := charging.New(store, pub, fakeCommander{}, fc, zerolog.Nop())

	d := New("CP2", svc, newFakeRouter(), pub, fc, zerolog.Nop())
	return d, store, pub
}

func TestHandleMessage_BootNotification(t *testing.T) {
	d, store, pub := newTestDispatcher(t)

	in := `[2,"1","BootNotification",{"reason":"PowerUp","chargingStation":{"vendorName":"Acme","model":"X2"}}]`
	resp, has := d.HandleMessage(context.Background(), in)
	require.True(t, has)
	assert.Contains(t, resp, `"Accepted"`)

	station, err := store.Stations().FindByID(context.Background(), "CP2")
	require.NoError(t, err)
	assert.Equal(t, "Acme", station.Vendor)
	assert.Equal(t, 1, pub.Count(eventbus.TypeBootNotification))
}

func TestHandleMessage_Heartbeat(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	resp, has := d.HandleMessage(context.Background(), `[2,"2","Heartbeat",{}]`)
	require.True(t, has)
	assert.Contains(t, resp, "currentTime")
}

func TestHandleMessage_AuthorizeUnknownTokenIsInvalid(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	resp, has := d.HandleMessage(context.Background(), `[2,"3","Authorize",{"idToken":{"idToken":"GHOST","type":"ISO14443"}}]`)
	require.True(t, has)
	assert.Contains(t, resp, `"Invalid"`)
}

func TestHandleMessage_TransactionLifecycle(t *testing.T) {
	d, _, pub := newTestDispatcher(t)

	started := `[2,"4","TransactionEvent",{"eventType":"Started","timestamp":"2026-07-31T10:00:00Z","triggerReason":"CablePluggedIn","seqNo":0,"transactionInfo":{"transactionId":"EXT-1"},"idToken":{"idToken":"TAG1","type":"ISO14443"},"evse":{"id":1,"connectorId":1}}]`
	startResp, has := d.HandleMessage(context.Background(), started)
	require.True(t, has)
	assert.Contains(t, startResp, `"Accepted"`)

	updated := `[2,"5","TransactionEvent",{"eventType":"Updated","timestamp":"2026-07-31T10:30:00Z","triggerReason":"MeterValuePeriodic","seqNo":1,"transactionInfo":{"transactionId":"EXT-1"},"evse":{"id":1,"connectorId":1},"meterValue":[{"timestamp":"2026-07-31T10:30:00Z","sampledValue":[{"value":1.5,"measurand":"Energy.Active.Import.Register","unitOfMeasure":{"unit":"kWh"}}]}]}]`
	updResp, has := d.HandleMessage(context.Background(), updated)
	require.True(t, has)
	assert.Equal(t, `[3,"5",{}]`, updResp)

	ended := `[2,"6","TransactionEvent",{"eventType":"Ended","timestamp":"2026-07-31T11:00:00Z","triggerReason":"StopAuthorized","seqNo":2,"transactionInfo":{"transactionId":"EXT-1","stoppedReason":"Local"},"idToken":{"idToken":"TAG1","type":"ISO14443"}}]`
	endResp, has := d.HandleMessage(context.Background(), ended)
	require.True(t, has)
	assert.Contains(t, endResp, `"Accepted"`)
	assert.Equal(t, 1, pub.Count(eventbus.TypeTransactionBilled))
}

func TestHandleMessage_TransactionEndedUnknownIsIgnored(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	ended := `[2,"7","TransactionEvent",{"eventType":"Ended","timestamp":"2026-07-31T11:00:00Z","triggerReason":"StopAuthorized","seqNo":0,"transactionInfo":{"transactionId":"GHOST"}}]`
	resp, has := d.HandleMessage(context.Background(), ended)
	require.True(t, has)
	assert.Equal(t, `[3,"7",{}]`, resp)
}

func TestHandleMessage_CallResultRoutesToEngine(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	router := d.router.(*fakeRouter)

	_, has := d.HandleMessage(context.Background(), `[3,"eng-1",{"status":"Accepted"}]`)
	assert.False(t, has)
	assert.Contains(t, string(router.results["eng-1"]), "Accepted")
}

func TestHandleMessage_CallErrorRoutesToEngine(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	router := d.router.(*fakeRouter)

	_, has := d.HandleMessage(context.Background(), `[4,"eng-2","GenericError","boom",{}]`)
	assert.False(t, has)
	assert.Equal(t, "GenericError", router.errs["eng-2"])
}

func TestHandleMessage_UnknownActionRespondsWithEmptyCallResult(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	resp, has := d.HandleMessage(context.Background(), `[2,"8","NotARealAction",{}]`)
	require.True(t, has)

	var elems []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(resp), &elems))
	var kind int
	require.NoError(t, json.Unmarshal(elems[0], &kind))
	assert.Equal(t, 3, kind)
}

func TestHandleMessage_NotifyEventRespondsEmpty(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	resp, has := d.HandleMessage(context.Background(), `[2,"9","NotifyEvent",{"generatedAt":"2026-07-31T10:00:00Z","seqNo":0,"eventData":[{"eventId":1,"timestamp":"2026-07-31T10:00:00Z","trigger":"Alerting","actualValue":"true","eventNotificationType":"HardWiredNotification","component":{"name":"Connector"},"variable":{"name":"Status"}}]}]`)
	require.True(t, has)
	assert.Equal(t, `[3,"9",{}]`, resp)
}
