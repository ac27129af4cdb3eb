package ocpp16

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

	d := New("CP1", svc, newFakeRouter(), pub, fc, zerolog.Nop())
	return d, store, pub
}

func TestHandleMessage_BootNotification(t *testing.T) {
	d, store, pub := newTestDispatcher(t)

	in := `[2,"1","BootNotification",{"chargePointVendor":"Acme","chargePointModel":"X1"}]`
	resp, has := d.HandleMessage(context.Background(), in)
	require.True(t, has)

	var frame []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(resp), &frame))
	assert.Len(t, frame, 3)

	station, err := store.Stations().FindByID(context.Background(), "CP1")
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

func TestHandleMessage_AuthorizeUnknownTagIsInvalid(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	resp, has := d.HandleMessage(context.Background(), `[2,"3","Authorize",{"idTag":"GHOST"}]`)
	require.True(t, has)
	assert.Contains(t, resp, `"Invalid"`)
}

func TestHandleMessage_StartAndStopTransaction(t *testing.T) {
	d, _, pub := newTestDispatcher(t)

	startResp, has := d.HandleMessage(context.Background(), `[2,"4","StartTransaction",{"connectorId":1,"idTag":"TAG1","meterStart":0,"timestamp":"2026-07-31T10:00:00Z"}]`)
	require.True(t, has)
	assert.Contains(t, startResp, `"Accepted"`)

	var elems []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(startResp), &elems))
	var payload struct {
		TransactionId int `json:"transactionId"`
	}
	require.NoError(t, json.Unmarshal(elems[2], &payload))
	assert.NotZero(t, payload.TransactionId)

	stopReq := `[2,"5","StopTransaction",{"transactionId":` + itoa(payload.TransactionId) + `,"idTag":"TAG1","meterStop":5000,"timestamp":"2026-07-31T11:00:00Z"}]`
	stopResp, has := d.HandleMessage(context.Background(), stopReq)
	require.True(t, has)
	assert.Contains(t, stopResp, `"Accepted"`)
	assert.Equal(t, 1, pub.Count(eventbus.TypeTransactionBilled))
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
	resp, has := d.HandleMessage(context.Background(), `[2,"6","NotARealAction",{}]`)
	require.True(t, has)

	var elems []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(resp), &elems))
	var kind int
	require.NoError(t, json.Unmarshal(elems[0], &kind))
	assert.Equal(t, 3, kind)
}

func TestHandleMessage_MeterValuesNormalizesMeasurands(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	startResp, _ := d.HandleMessage(context.Background(), `[2,"7","StartTransaction",{"connectorId":1,"idTag":"TAG1","meterStart":0,"timestamp":"2026-07-31T10:00:00Z"}]`)
	var elems []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(startResp), &elems))
	var payload struct {
		TransactionId int `json:"transactionId"`
	}
	require.NoError(t, json.Unmarshal(elems[2], &payload))

	mv := `[2,"8","MeterValues",{"connectorId":1,"transactionId":` + itoa(payload.TransactionId) + `,"meterValue":[{"timestamp":"2026-07-31T10:30:00Z","sampledValue":[{"value":"1.5","measurand":"Energy.Active.Import.Register","unit":"kWh"}]}]}]`
	resp, has := d.HandleMessage(context.Background(), mv)
	require.True(t, has)
	assert.Equal(t, `[3,"8",{}]`, resp)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
