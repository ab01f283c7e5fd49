package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resident-x/go-csms/internal/domain"
	"github.com/resident-x/go-csms/internal/registry"
)

func newHandler(t *testing.T, opts ...registry.Option) (*StationHandler, *domain.StationRegistry) {
	t.Helper()
	stations := domain.NewStationRegistry("csms-01", opts...)
	h := NewStationHandler(stations, 60)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return h, stations
}

func TestBootNotificationAdmitsStation(t *testing.T) {
	h, stations := newHandler(t)
	payload := json.RawMessage(`{"reason":"PowerUp","chargingStation":{"model":"M1","vendorName":"ACME","serialNumber":"SN1","firmwareVersion":"1.2"}}`)

	result, callErr := h.HandleCall(context.Background(), "CS1", ActionBootNotification, payload)
	require.Nil(t, callErr)

	resp, ok := result.(BootNotificationResponse)
	require.True(t, ok)
	assert.Equal(t, "Accepted", resp.Status)
	assert.Equal(t, 60, resp.Interval)
	assert.Equal(t, h.now(), resp.CurrentTime)

	station := stations.Get("CS1")
	require.NotNil(t, station)
	assert.Equal(t, "ACME", station.Vendor())
	assert.Equal(t, "M1", station.Model())
	assert.Equal(t, "SN1", station.SerialNumber())
	assert.Equal(t, "1.2", station.FirmwareVersion())
	assert.Same(t, stations, station.Owner())

	// a second boot keeps the registered station
	result, callErr = h.HandleCall(context.Background(), "CS1", ActionBootNotification,
		json.RawMessage(`{"reason":"PowerUp","chargingStation":{"model":"M2","vendorName":"Other"}}`))
	require.Nil(t, callErr)
	assert.Equal(t, "Accepted", result.(BootNotificationResponse).Status)
	assert.Same(t, station, stations.Get("CS1"))
}

func TestBootNotificationErrors(t *testing.T) {
	h, _ := newHandler(t)

	_, callErr := h.HandleCall(context.Background(), "CS1", ActionBootNotification, json.RawMessage(`[1,2]`))
	require.NotNil(t, callErr)
	assert.Equal(t, ErrorCodeFormationViolation, callErr.Code)

	_, callErr = h.HandleCall(context.Background(), "", ActionBootNotification, json.RawMessage(`{}`))
	require.NotNil(t, callErr)
	assert.Equal(t, ErrorCodePropertyConstraint, callErr.Code)
}

func TestBootNotificationLockTimeout(t *testing.T) {
	h, stations := newHandler(t, registry.WithLockTimeout(20*time.Millisecond))

	release, ok := stations.Coordinator().Acquire()
	require.True(t, ok)
	defer release()

	result, callErr := h.HandleCall(context.Background(), "CS1", ActionBootNotification,
		json.RawMessage(`{"reason":"PowerUp","chargingStation":{"model":"M1","vendorName":"ACME"}}`))
	require.Nil(t, callErr)
	assert.Equal(t, "Pending", result.(BootNotificationResponse).Status)
}

func TestHeartbeat(t *testing.T) {
	h, _ := newHandler(t)

	result, callErr := h.HandleCall(context.Background(), "CS1", ActionHeartbeat, json.RawMessage(`{}`))
	require.Nil(t, callErr)
	assert.Equal(t, HeartbeatResponse{CurrentTime: h.now()}, result)
}

func TestUnsupportedAction(t *testing.T) {
	h, _ := newHandler(t)

	result, callErr := h.HandleCall(context.Background(), "CS1", "DataTransfer", json.RawMessage(`{}`))
	assert.Nil(t, result)
	require.NotNil(t, callErr)
	assert.Equal(t, ErrorCodeNotImplemented, callErr.Code)
}

func TestStatusAndTransactionEvents(t *testing.T) {
	h, stations := newHandler(t)
	stations.AddDeleteVeto(domain.ActiveTransactionVeto)

	station := domain.NewChargingStationBuilder("CS1").
		AddEVSE(1, domain.Connector{ID: 1, Type: domain.ConnectorTypeCCS2}).
		MustBuild()
	require.True(t, stations.Add(station, nil).IsSuccess())

	_, callErr := h.HandleCall(context.Background(), "CS1", ActionStatusNotification,
		json.RawMessage(`{"timestamp":"2026-03-01T12:00:00Z","connectorStatus":"Reserved","evseId":1,"connectorId":1}`))
	require.Nil(t, callErr)
	evse, ok := station.EVSE(1)
	require.True(t, ok)
	assert.Equal(t, domain.StatusReserved, evse.Status())

	started := `{"eventType":"Started","timestamp":"2026-03-01T12:01:00Z","triggerReason":"Authorized","seqNo":0,
		"transactionInfo":{"transactionId":"tx-1"},"evse":{"id":1,"connectorId":1},
		"idToken":{"idToken":"RFID1","type":"ISO14443"},
		"meterValue":[{"timestamp":"2026-03-01T12:01:00Z","sampledValue":[{"value":1000}]}]}`
	_, callErr = h.HandleCall(context.Background(), "CS1", ActionTransactionEvent, json.RawMessage(started))
	require.Nil(t, callErr)

	state := evse.State()
	assert.Equal(t, "tx-1", state.TransactionID)
	require.NotNil(t, state.IDToken)
	assert.Equal(t, "RFID1", state.IDToken.Value)
	require.NotNil(t, state.MeterStart)
	assert.Equal(t, 1000.0, state.MeterStart.WattHours)
	assert.Equal(t, domain.StatusOccupied, evse.Status())

	res := stations.Delete(station, nil)
	assert.Equal(t, registry.OutcomeCanNotBeRemoved, res.Outcome)

	ended := `{"eventType":"Ended","timestamp":"2026-03-01T12:30:00Z","triggerReason":"EVDeparted","seqNo":1,
		"transactionInfo":{"transactionId":"tx-1"},"evse":{"id":1},
		"meterValue":[{"timestamp":"2026-03-01T12:30:00Z","sampledValue":[{"value":8500,"measurand":"Energy.Active.Import.Register"}]}]}`
	_, callErr = h.HandleCall(context.Background(), "CS1", ActionTransactionEvent, json.RawMessage(ended))
	require.Nil(t, callErr)

	state = evse.State()
	require.NotNil(t, state.MeterStop)
	assert.Equal(t, 8500.0, state.MeterStop.WattHours)
	assert.False(t, state.HasActiveTransaction())

	assert.Equal(t, registry.OutcomeSuccess, stations.Delete(station, nil).Outcome)
}

func TestNotificationsFromUnknownStation(t *testing.T) {
	h, _ := newHandler(t)

	result, callErr := h.HandleCall(context.Background(), "ghost", ActionStatusNotification,
		json.RawMessage(`{"connectorStatus":"Available","evseId":1,"connectorId":1}`))
	require.Nil(t, callErr)
	assert.Equal(t, struct{}{}, result)

	_, callErr = h.HandleCall(context.Background(), "ghost", ActionTransactionEvent, json.RawMessage(`"x"`))
	require.NotNil(t, callErr)
	assert.Equal(t, ErrorCodeFormationViolation, callErr.Code)
}

func TestTransactionEventsSurviveConcurrentReplacement(t *testing.T) {
	h, stations := newHandler(t)
	const evses = 20

	builder := domain.NewChargingStationBuilder("CS1")
	for id := 1; id <= evses; id++ {
		builder.AddEVSE(id, domain.Connector{ID: 1, Type: domain.ConnectorTypeCCS2})
	}
	require.True(t, stations.Add(builder.MustBuild(), nil).IsSuccess())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			res := stations.UpdateWith("CS1", func(b *domain.ChargingStationBuilder) {
				b.FirmwareVersion = fmt.Sprintf("fw-%d", i)
			}, nil)
			assert.True(t, res.IsSuccess())
		}
	}()
	go func() {
		defer wg.Done()
		for id := 1; id <= evses; id++ {
			payload := fmt.Sprintf(`{"eventType":"Started","timestamp":"2026-03-01T12:01:00Z","seqNo":0,
				"transactionInfo":{"transactionId":"tx-%d"},"evse":{"id":%d}}`, id, id)
			_, callErr := h.HandleCall(context.Background(), "CS1", ActionTransactionEvent, json.RawMessage(payload))
			assert.Nil(t, callErr)
		}
	}()
	wg.Wait()

	stored := stations.Get("CS1")
	for id := 1; id <= evses; id++ {
		evse, ok := stored.EVSE(id)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("tx-%d", id), evse.State().TransactionID, "evse %d", id)
	}
}

func TestNotificationLockTimeout(t *testing.T) {
	h, stations := newHandler(t, registry.WithLockTimeout(20*time.Millisecond))
	require.True(t, stations.Add(domain.NewChargingStationBuilder("CS1").AddEVSE(1).MustBuild(), nil).IsSuccess())

	release, ok := stations.Coordinator().Acquire()
	require.True(t, ok)
	defer release()

	_, callErr := h.HandleCall(context.Background(), "CS1", ActionStatusNotification,
		json.RawMessage(`{"connectorStatus":"Faulted","evseId":1,"connectorId":1}`))
	require.NotNil(t, callErr)
	assert.Equal(t, ErrorCodeInternalError, callErr.Code)
}
