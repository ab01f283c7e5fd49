package domain

import (
	"sort"
	"sync"
	"time"
)

// ConnectorType is the physical connector standard.
type ConnectorType string

// Common connector types.
const (
	ConnectorTypeCCS1    ConnectorType = "cCCS1"
	ConnectorTypeCCS2    ConnectorType = "cCCS2"
	ConnectorTypeCHAdeMO ConnectorType = "cCHAdeMO"
	ConnectorTypeType1   ConnectorType = "cType1"
	ConnectorTypeType2   ConnectorType = "cType2"
	ConnectorTypeSType2  ConnectorType = "sType2"
	ConnectorTypeUnknown ConnectorType = "Unknown"
)

// Connector is an immutable connector id and type pair.
type Connector struct {
	ID   int           `json:"id" yaml:"id"`
	Type ConnectorType `json:"type" yaml:"type"`
}

// OperationalStatus is the live status reported for an EVSE.
type OperationalStatus string

// EVSE operational states.
const (
	StatusAvailable   OperationalStatus = "Available"
	StatusOccupied    OperationalStatus = "Occupied"
	StatusReserved    OperationalStatus = "Reserved"
	StatusUnavailable OperationalStatus = "Unavailable"
	StatusFaulted     OperationalStatus = "Faulted"
)

// IDToken identifies the driver or group authorizing a transaction.
type IDToken struct {
	Value string `json:"idToken"`
	Type  string `json:"type"`
}

// MeterValue is a single energy reading.
type MeterValue struct {
	Timestamp time.Time `json:"timestamp"`
	WattHours float64   `json:"wattHours"`
}

// SignedMeterValue is a meter reading together with its signature as reported by the meter.
type SignedMeterValue struct {
	MeterValue
	SignedData      string `json:"signedMeterData"`
	SigningMethod   string `json:"signingMethod"`
	EncodingMethod  string `json:"encodingMethod"`
	PublicKeyBase64 string `json:"publicKey,omitempty"`
}

// ChargingProfileRef identifies the charging profile currently applied to an EVSE.
type ChargingProfileRef struct {
	ID         int    `json:"id"`
	Purpose    string `json:"chargingProfilePurpose"`
	StackLevel int    `json:"stackLevel"`
}

// ChargingState is the live charging state of one EVSE.
type ChargingState struct {
	ReservationID     *int                `json:"reservationId,omitempty"`
	TransactionID     string              `json:"transactionId,omitempty"`
	IDToken           *IDToken            `json:"idToken,omitempty"`
	GroupIDToken      *IDToken            `json:"groupIdToken,omitempty"`
	ChargingProfile   *ChargingProfileRef `json:"chargingProfile,omitempty"`
	MeterStart        *MeterValue         `json:"meterStart,omitempty"`
	MeterStop         *MeterValue         `json:"meterStop,omitempty"`
	SignedMeterValues []SignedMeterValue  `json:"signedMeterValues,omitempty"`
	DefaultTariffID   string              `json:"defaultTariffId,omitempty"`
}

// HasActiveTransaction reports whether a transaction is in progress.
func (s ChargingState) HasActiveTransaction() bool {
	return s.TransactionID != "" && s.MeterStop == nil
}

func (s ChargingState) clone() ChargingState {
	out := s
	if s.ReservationID != nil {
		v := *s.ReservationID
		out.ReservationID = &v
	}
	if s.IDToken != nil {
		v := *s.IDToken
		out.IDToken = &v
	}
	if s.GroupIDToken != nil {
		v := *s.GroupIDToken
		out.GroupIDToken = &v
	}
	if s.ChargingProfile != nil {
		v := *s.ChargingProfile
		out.ChargingProfile = &v
	}
	if s.MeterStart != nil {
		v := *s.MeterStart
		out.MeterStart = &v
	}
	if s.MeterStop != nil {
		v := *s.MeterStop
		out.MeterStop = &v
	}
	if s.SignedMeterValues != nil {
		out.SignedMeterValues = append([]SignedMeterValue(nil), s.SignedMeterValues...)
	}
	return out
}

// EVSE is one energy supply point of a charging station. Its identity, admin status and
// connectors are fixed at construction; the operational status and charging state are live
// runtime data guarded by the EVSE's own mutex.
type EVSE struct {
	id          int
	adminStatus AdminStatus
	connectors  map[int]Connector

	mu     sync.RWMutex
	status OperationalStatus
	state  ChargingState
}

// NewEVSE creates an EVSE with the given connectors.
func NewEVSE(id int, adminStatus AdminStatus, connectors ...Connector) *EVSE {
	e := &EVSE{
		id:          id,
		adminStatus: adminStatus,
		connectors:  make(map[int]Connector, len(connectors)),
		status:      StatusAvailable,
	}
	for _, c := range connectors {
		e.connectors[c.ID] = c
	}
	return e
}

// ID returns the EVSE id.
func (e *EVSE) ID() int { return e.id }

// AdminStatus returns the configured admin status.
func (e *EVSE) AdminStatus() AdminStatus { return e.adminStatus }

// Connector looks up a connector by id.
func (e *EVSE) Connector(id int) (Connector, bool) {
	c, ok := e.connectors[id]
	return c, ok
}

// Connectors returns the connectors ordered by id.
func (e *EVSE) Connectors() []Connector {
	out := make([]Connector, 0, len(e.connectors))
	for _, c := range e.connectors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Status returns the live operational status.
func (e *EVSE) Status() OperationalStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// SetStatus updates the live operational status.
func (e *EVSE) SetStatus(status OperationalStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
}

// State returns a copy of the live charging state.
func (e *EVSE) State() ChargingState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.clone()
}

// UpdateState applies fn to the live charging state.
func (e *EVSE) UpdateState(fn func(*ChargingState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.state)
}

// StartTransaction records a transaction start on the EVSE.
func (e *EVSE) StartTransaction(transactionID string, token IDToken, meterStart MeterValue) {
	e.UpdateState(func(s *ChargingState) {
		s.TransactionID = transactionID
		s.IDToken = &token
		s.MeterStart = &meterStart
		s.MeterStop = nil
		s.ReservationID = nil
	})
	e.SetStatus(StatusOccupied)
}

// StopTransaction records the final meter reading of the active transaction.
func (e *EVSE) StopTransaction(meterStop MeterValue) {
	e.UpdateState(func(s *ChargingState) {
		s.MeterStop = &meterStop
	})
	e.SetStatus(StatusAvailable)
}

// holdsLiveState reports whether the EVSE carries a transaction or reservation that must
// survive a replacement of its station.
func (e *EVSE) holdsLiveState() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.HasActiveTransaction() || e.state.ReservationID != nil
}

// copyLiveStateFrom takes over the runtime status and charging state of prev.
func (e *EVSE) copyLiveStateFrom(prev *EVSE) {
	if prev == nil || prev == e {
		return
	}
	prev.mu.RLock()
	status, state := prev.status, prev.state.clone()
	prev.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
	e.state = state
}
