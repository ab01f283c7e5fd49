package domain

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resident-x/go-csms/internal/registry"
)

func newStation(t *testing.T, id string) *ChargingStation {
	t.Helper()
	cs, err := NewChargingStationBuilder(StationID(id)).
		AddEVSE(1, Connector{ID: 1, Type: ConnectorTypeCCS2}).
		AddEVSE(2, Connector{ID: 1, Type: ConnectorTypeType2}).
		Build()
	require.NoError(t, err)
	return cs
}

func TestBuildStation(t *testing.T) {
	cs := newStation(t, "CS1")

	assert.Equal(t, StationID("CS1"), cs.ID())
	assert.Equal(t, AdminOperative, cs.AdminStatus())
	assert.Nil(t, cs.Owner())
	require.Len(t, cs.EVSEs(), 2)
	assert.Equal(t, 1, cs.EVSEs()[0].ID())

	evse, ok := cs.EVSE(2)
	require.True(t, ok)
	conn, ok := evse.Connector(1)
	require.True(t, ok)
	assert.Equal(t, ConnectorTypeType2, conn.Type)
	assert.Equal(t, StatusAvailable, evse.Status())
}

func TestBuildStationErrors(t *testing.T) {
	_, err := NewChargingStationBuilder("").Build()
	assert.ErrorIs(t, err, ErrEmptyStationID)

	_, err = NewChargingStationBuilder("CS1").AddEVSE(1).AddEVSE(1).Build()
	assert.Error(t, err)

	assert.Panics(t, func() { NewChargingStationBuilder("").MustBuild() })
}

func TestAttachOwnerOnce(t *testing.T) {
	regA := NewStationRegistry("node-a")
	regB := NewStationRegistry("node-b")
	cs := newStation(t, "CS1")

	assert.False(t, cs.AttachOwner(nil))
	assert.True(t, cs.AttachOwner(regA))
	assert.True(t, cs.AttachOwner(regA))
	assert.False(t, cs.AttachOwner(regB))
	assert.Equal(t, registry.Owner(regA), cs.Owner())
}

func TestStationLifecycleScenario(t *testing.T) {
	reg := NewStationRegistry("node-1")
	reg.AddDeleteVeto(ActiveTransactionVeto)

	res := reg.Add(newStation(t, "CS1"), nil)
	require.Equal(t, registry.OutcomeSuccess, res.Outcome)

	res = reg.Add(newStation(t, "CS1"), nil)
	require.Equal(t, registry.OutcomeArgumentError, res.Outcome)

	// a transaction that has already stopped must survive the update too
	evse, ok := reg.Get("CS1").EVSE(1)
	require.True(t, ok)
	evse.StartTransaction("tx-100", IDToken{Value: "TOKEN1", Type: "ISO14443"}, MeterValue{WattHours: 10})
	evse.StopTransaction(MeterValue{WattHours: 500})

	res = reg.UpdateWith("CS1", func(b *ChargingStationBuilder) {
		b.AdminStatus = AdminInoperative
	}, nil)
	require.Equal(t, registry.OutcomeSuccess, res.Outcome, res.String())

	stored, found := reg.TryGet("CS1")
	require.True(t, found)
	assert.Equal(t, AdminInoperative, stored.AdminStatus())
	evse, ok = stored.EVSE(1)
	require.True(t, ok)
	assert.Equal(t, "tx-100", evse.State().TransactionID)

	res = reg.Delete(stored, nil)
	require.Equal(t, registry.OutcomeSuccess, res.Outcome, res.String())

	_, found = reg.TryGet("CS1")
	assert.False(t, found)
}

func TestCarryForwardOnUpdate(t *testing.T) {
	reg := NewStationRegistry("node-1")
	original := newStation(t, "CS1")
	original.AttachTariff(Tariff{ID: "T1", Currency: "EUR", PricePerKWh: 0.35})
	require.True(t, reg.Add(original, nil).IsSuccess())

	evse, _ := original.EVSE(2)
	evse.StartTransaction("tx-7", IDToken{Value: "TOKEN7"}, MeterValue{WattHours: 1})

	replacement := NewChargingStationBuilder("CS1").
		AddEVSE(2, Connector{ID: 1, Type: ConnectorTypeType2}).
		AddEVSE(3, Connector{ID: 1, Type: ConnectorTypeCCS1})
	replacement.Vendor = "ACME"
	res := reg.Update(replacement.MustBuild(), nil)
	require.Equal(t, registry.OutcomeSuccess, res.Outcome)

	stored := reg.Get("CS1")
	assert.Equal(t, "ACME", stored.Vendor())
	assert.Len(t, stored.EVSEs(), 2)

	carried, ok := stored.EVSE(2)
	require.True(t, ok)
	assert.NotSame(t, evse, carried)
	assert.Equal(t, "tx-7", carried.State().TransactionID)
	assert.Equal(t, StatusOccupied, carried.Status())
	assert.True(t, stored.HasActiveTransaction())

	fresh, ok := stored.EVSE(3)
	require.True(t, ok)
	assert.Empty(t, fresh.State().TransactionID)

	require.Len(t, stored.Tariffs(), 1)
	assert.Equal(t, "T1", stored.Tariffs()[0].ID)
}

func TestCarryForwardAdoptsEVSEs(t *testing.T) {
	prev := newStation(t, "CS1")
	evse, _ := prev.EVSE(1)
	evse.StartTransaction("tx-1", IDToken{Value: "A"}, MeterValue{})

	next := NewChargingStationBuilder("CS1").MustBuild()
	next.CarryForward(prev)

	require.Len(t, next.EVSEs(), 2)
	adopted, _ := next.EVSE(1)
	assert.Same(t, evse, adopted)

	// no-op for nil and self
	next.CarryForward(nil)
	next.CarryForward(next)
	assert.Len(t, next.EVSEs(), 2)
}

func TestCarryForwardKeepsOmittedEVSEWithTransaction(t *testing.T) {
	reg := NewStationRegistry("node-1")
	reg.AddDeleteVeto(ActiveTransactionVeto)

	original := newStation(t, "CS1")
	require.True(t, reg.Add(original, nil).IsSuccess())

	busy, _ := original.EVSE(2)
	busy.StartTransaction("TX-42", IDToken{Value: "TOKEN42"}, MeterValue{WattHours: 10})

	replacement := NewChargingStationBuilder("CS1").
		AddEVSE(1, Connector{ID: 1, Type: ConnectorTypeCCS2}).
		MustBuild()
	require.Equal(t, registry.OutcomeSuccess, reg.Update(replacement, nil).Outcome)

	stored := reg.Get("CS1")
	require.Same(t, replacement, stored)
	assert.True(t, stored.HasActiveTransaction())

	kept, ok := stored.EVSE(2)
	require.True(t, ok)
	assert.Equal(t, "TX-42", kept.State().TransactionID)

	res := reg.Delete(stored, nil)
	assert.Equal(t, registry.OutcomeCanNotBeRemoved, res.Outcome)

	// once the transaction ends the omitted EVSE is dropped on the next replacement
	kept.StopTransaction(MeterValue{WattHours: 20})
	next := NewChargingStationBuilder("CS1").
		AddEVSE(1, Connector{ID: 1, Type: ConnectorTypeCCS2}).
		MustBuild()
	require.Equal(t, registry.OutcomeSuccess, reg.Update(next, nil).Outcome)
	_, ok = reg.Get("CS1").EVSE(2)
	assert.False(t, ok)
	assert.Equal(t, registry.OutcomeSuccess, reg.DeleteByID("CS1", nil).Outcome)
}

func TestCarryForwardKeepsOmittedReservedEVSE(t *testing.T) {
	prev := newStation(t, "CS1")
	reserved, _ := prev.EVSE(2)
	reservationID := 5
	reserved.UpdateState(func(s *ChargingState) { s.ReservationID = &reservationID })

	next := NewChargingStationBuilder("CS1").AddEVSE(1).MustBuild()
	next.CarryForward(prev)

	kept, ok := next.EVSE(2)
	require.True(t, ok)
	require.NotNil(t, kept.State().ReservationID)
	assert.Equal(t, 5, *kept.State().ReservationID)
}

func TestActiveTransactionVeto(t *testing.T) {
	reg := NewStationRegistry("node-1")
	reg.AddDeleteVeto(ActiveTransactionVeto)

	cs := newStation(t, "CS1")
	require.True(t, reg.Add(cs, nil).IsSuccess())

	evse, _ := cs.EVSE(1)
	evse.StartTransaction("tx-9", IDToken{Value: "TOKEN9"}, MeterValue{WattHours: 42})

	res := reg.Delete(cs, nil)
	assert.Equal(t, registry.OutcomeCanNotBeRemoved, res.Outcome)
	assert.Contains(t, res.Reason, "CS1")

	stored, found := reg.TryGet("CS1")
	require.True(t, found)
	assert.Same(t, cs, stored)
	state := evse.State()
	assert.Equal(t, "tx-9", state.TransactionID)
	require.NotNil(t, state.MeterStart)
	assert.Equal(t, 42.0, state.MeterStart.WattHours)

	evse.StopTransaction(MeterValue{WattHours: 99})
	assert.Equal(t, registry.OutcomeSuccess, reg.Delete(cs, nil).Outcome)
}

func TestConcurrentStationAdds(t *testing.T) {
	reg := NewStationRegistry("node-1")
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := reg.Add(NewChargingStationBuilder(StationID(fmt.Sprintf("CS%d", i))).MustBuild(), nil)
			assert.Equal(t, registry.OutcomeSuccess, res.Outcome)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.True(t, reg.Exists(StationID(fmt.Sprintf("CS%d", i))))
	}
}

func TestStationLockTimeout(t *testing.T) {
	reg := NewStationRegistry("node-1", registry.WithLockTimeout(25*time.Millisecond))

	release, ok := reg.Coordinator().Acquire()
	require.True(t, ok)
	defer release()

	done := make(chan registry.Outcome, 1)
	go func() {
		done <- reg.AddOrUpdate(newStation(t, "CS1"), nil, nil).Outcome
	}()

	select {
	case outcome := <-done:
		assert.Equal(t, registry.OutcomeLockTimeout, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("operation did not time out")
	}
}

func TestEVSEStateIsCopied(t *testing.T) {
	evse := NewEVSE(1, AdminOperative)
	evse.StartTransaction("tx-1", IDToken{Value: "A"}, MeterValue{WattHours: 5})

	state := evse.State()
	state.IDToken.Value = "B"
	state.MeterStart.WattHours = 100

	again := evse.State()
	assert.Equal(t, "A", again.IDToken.Value)
	assert.Equal(t, 5.0, again.MeterStart.WattHours)
	assert.True(t, again.HasActiveTransaction())
}

func TestParseStations(t *testing.T) {
	data := []byte(`
stations:
  - id: CS1
    vendor: ACME
    model: FastCharger 150
    evses:
      - id: 1
        connectors:
          - id: 1
            type: cCCS2
    tariffs:
      - id: T1
        currency: EUR
        price_per_kwh: 0.42
  - id: CS2
    admin_status: Inoperative
`)

	stations, err := ParseStations(data)
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, StationID("CS1"), stations[0].ID())
	assert.Equal(t, "ACME", stations[0].Vendor())
	require.Len(t, stations[0].EVSEs(), 1)
	conn, ok := stations[0].EVSEs()[0].Connector(1)
	require.True(t, ok)
	assert.Equal(t, ConnectorTypeCCS2, conn.Type)
	assert.InDelta(t, 0.42, stations[0].Tariffs()[0].PricePerKWh, 1e-9)

	assert.Equal(t, AdminInoperative, stations[1].AdminStatus())
}

func TestParseStationsErrors(t *testing.T) {
	_, err := ParseStations([]byte("stations: [ {id: "))
	assert.Error(t, err)

	_, err = ParseStations([]byte("stations:\n  - vendor: nobody\n"))
	assert.ErrorIs(t, err, ErrEmptyStationID)

	_, err = LoadStations("/nonexistent/stations.yaml")
	assert.Error(t, err)
}
