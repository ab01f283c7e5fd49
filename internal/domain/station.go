// Package domain provides the charging station entities managed by the node.
package domain

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/resident-x/go-csms/internal/registry"
)

// StationID identifies a charging station. It is the registry key.
type StationID string

// String returns the id as a plain string.
func (id StationID) String() string { return string(id) }

// AdminStatus is the administrative availability set by the operator.
type AdminStatus string

// Admin states.
const (
	AdminOperative   AdminStatus = "Operative"
	AdminInoperative AdminStatus = "Inoperative"
)

// Tariff is a price definition that can be attached to a station.
type Tariff struct {
	ID          string  `json:"id" yaml:"id"`
	Currency    string  `json:"currency" yaml:"currency"`
	PricePerKWh float64 `json:"pricePerKWh" yaml:"price_per_kwh"`
}

// ErrEmptyStationID is returned when a station is built without an id.
var ErrEmptyStationID = errors.New("station id must not be empty")

// ChargingStation is an immutable description of a charging station together with its linked
// runtime data (EVSEs with live charging state and attached tariffs). A replacement produced by
// an update receives the linked data of the entity it replaces through CarryForward.
type ChargingStation struct {
	id              StationID
	vendor          string
	model           string
	serialNumber    string
	firmwareVersion string
	adminStatus     AdminStatus
	description     string
	networkingNode  string

	owner atomic.Pointer[ownerRef]

	linkMu  sync.RWMutex
	evses   map[int]*EVSE
	tariffs []Tariff
}

type ownerRef struct {
	registry.Owner
}

// StationRegistry is the registry specialised for charging stations.
type StationRegistry = registry.Registry[StationID, *ChargingStation, *ChargingStationBuilder]

// StationTx is the lock-held view of a StationRegistry passed to StationRegistry.Do.
type StationTx = registry.Tx[StationID, *ChargingStation, *ChargingStationBuilder]

// StationResult is the result of a station registry operation.
type StationResult = registry.Result[*ChargingStation]

// StationEvent is a station registry lifecycle event.
type StationEvent = registry.Event[*ChargingStation]

// NewStationRegistry creates a station registry owned by nodeID.
func NewStationRegistry(nodeID string, opts ...registry.Option) *StationRegistry {
	return registry.New[StationID, *ChargingStation, *ChargingStationBuilder](nodeID, opts...)
}

// EntityID returns the station id.
func (cs *ChargingStation) EntityID() StationID { return cs.id }

// ID returns the station id.
func (cs *ChargingStation) ID() StationID { return cs.id }

// Vendor returns the vendor name.
func (cs *ChargingStation) Vendor() string { return cs.vendor }

// Model returns the model name.
func (cs *ChargingStation) Model() string { return cs.model }

// SerialNumber returns the serial number.
func (cs *ChargingStation) SerialNumber() string { return cs.serialNumber }

// FirmwareVersion returns the reported firmware version.
func (cs *ChargingStation) FirmwareVersion() string { return cs.firmwareVersion }

// AdminStatus returns the administrative status.
func (cs *ChargingStation) AdminStatus() AdminStatus { return cs.adminStatus }

// Description returns the free text description.
func (cs *ChargingStation) Description() string { return cs.description }

// NetworkingNode returns the id of the relay the station is reached through, if any.
func (cs *ChargingStation) NetworkingNode() string { return cs.networkingNode }

// Owner returns the registry the station was admitted to.
func (cs *ChargingStation) Owner() registry.Owner {
	if ref := cs.owner.Load(); ref != nil {
		return ref.Owner
	}
	return nil
}

// AttachOwner sets the owning registry once. Attaching the current owner again succeeds.
func (cs *ChargingStation) AttachOwner(o registry.Owner) bool {
	if o == nil {
		return false
	}
	if cs.owner.CompareAndSwap(nil, &ownerRef{Owner: o}) {
		return true
	}
	return cs.Owner() == o
}

// EVSE looks up an EVSE by id.
func (cs *ChargingStation) EVSE(id int) (*EVSE, bool) {
	cs.linkMu.RLock()
	defer cs.linkMu.RUnlock()
	e, ok := cs.evses[id]
	return e, ok
}

// EVSEs returns the EVSEs ordered by id.
func (cs *ChargingStation) EVSEs() []*EVSE {
	cs.linkMu.RLock()
	defer cs.linkMu.RUnlock()

	out := make([]*EVSE, 0, len(cs.evses))
	for _, e := range cs.evses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Tariffs returns the attached tariffs.
func (cs *ChargingStation) Tariffs() []Tariff {
	cs.linkMu.RLock()
	defer cs.linkMu.RUnlock()
	return append([]Tariff(nil), cs.tariffs...)
}

// AttachTariff links a tariff to the station, replacing one with the same id.
func (cs *ChargingStation) AttachTariff(t Tariff) {
	cs.linkMu.Lock()
	defer cs.linkMu.Unlock()
	for i := range cs.tariffs {
		if cs.tariffs[i].ID == t.ID {
			cs.tariffs[i] = t
			return
		}
	}
	cs.tariffs = append(cs.tariffs, t)
}

// HasActiveTransaction reports whether any EVSE has a transaction in progress.
func (cs *ChargingStation) HasActiveTransaction() bool {
	for _, e := range cs.EVSEs() {
		if e.State().HasActiveTransaction() {
			return true
		}
	}
	return false
}

// CarryForward moves the linked data of prev onto cs.
//
// A replacement that describes no EVSEs adopts the EVSEs of prev as they are. Otherwise each
// EVSE present on both takes over the live status and charging state of its predecessor, and
// an EVSE the replacement omits is kept while it still holds a transaction or reservation.
// Tariffs are adopted when cs has none.
func (cs *ChargingStation) CarryForward(prev *ChargingStation) {
	if prev == nil || prev == cs {
		return
	}

	prev.linkMu.RLock()
	prevEVSEs := make(map[int]*EVSE, len(prev.evses))
	for id, e := range prev.evses {
		prevEVSEs[id] = e
	}
	prevTariffs := append([]Tariff(nil), prev.tariffs...)
	prev.linkMu.RUnlock()

	cs.linkMu.Lock()
	defer cs.linkMu.Unlock()

	if len(cs.evses) == 0 {
		cs.evses = prevEVSEs
	} else {
		for id, e := range cs.evses {
			e.copyLiveStateFrom(prevEVSEs[id])
		}
		for id, e := range prevEVSEs {
			if _, listed := cs.evses[id]; !listed && e.holdsLiveState() {
				cs.evses[id] = e
			}
		}
	}

	if len(cs.tariffs) == 0 {
		cs.tariffs = prevTariffs
	}
}

// ToBuilder returns a mutable working copy of the station.
func (cs *ChargingStation) ToBuilder() *ChargingStationBuilder {
	b := &ChargingStationBuilder{
		ID:              cs.id,
		Vendor:          cs.vendor,
		Model:           cs.model,
		SerialNumber:    cs.serialNumber,
		FirmwareVersion: cs.firmwareVersion,
		AdminStatus:     cs.adminStatus,
		Description:     cs.description,
		NetworkingNode:  cs.networkingNode,
	}
	for _, e := range cs.EVSEs() {
		b.EVSEs = append(b.EVSEs, EVSESpec{
			ID:          e.ID(),
			AdminStatus: e.AdminStatus(),
			Connectors:  e.Connectors(),
		})
	}
	b.Tariffs = cs.Tariffs()
	return b
}

// EVSESpec describes an EVSE inside a builder.
type EVSESpec struct {
	ID          int         `yaml:"id"`
	AdminStatus AdminStatus `yaml:"admin_status"`
	Connectors  []Connector `yaml:"connectors"`
}

// ChargingStationBuilder is the mutable form of a ChargingStation.
type ChargingStationBuilder struct {
	ID              StationID
	Vendor          string
	Model           string
	SerialNumber    string
	FirmwareVersion string
	AdminStatus     AdminStatus
	Description     string
	NetworkingNode  string
	EVSEs           []EVSESpec
	Tariffs         []Tariff
}

// NewChargingStationBuilder starts a builder for the given id.
func NewChargingStationBuilder(id StationID) *ChargingStationBuilder {
	return &ChargingStationBuilder{ID: id, AdminStatus: AdminOperative}
}

// AddEVSE appends an EVSE description.
func (b *ChargingStationBuilder) AddEVSE(id int, connectors ...Connector) *ChargingStationBuilder {
	b.EVSEs = append(b.EVSEs, EVSESpec{ID: id, AdminStatus: AdminOperative, Connectors: connectors})
	return b
}

// Build freezes the builder into a new station. The result has no owner and fresh EVSEs.
func (b *ChargingStationBuilder) Build() (*ChargingStation, error) {
	if b.ID == "" {
		return nil, ErrEmptyStationID
	}

	adminStatus := b.AdminStatus
	if adminStatus == "" {
		adminStatus = AdminOperative
	}

	cs := &ChargingStation{
		id:              b.ID,
		vendor:          b.Vendor,
		model:           b.Model,
		serialNumber:    b.SerialNumber,
		firmwareVersion: b.FirmwareVersion,
		adminStatus:     adminStatus,
		description:     b.Description,
		networkingNode:  b.NetworkingNode,
		evses:           make(map[int]*EVSE, len(b.EVSEs)),
		tariffs:         append([]Tariff(nil), b.Tariffs...),
	}

	for _, def := range b.EVSEs {
		if _, dup := cs.evses[def.ID]; dup {
			return nil, fmt.Errorf("duplicate EVSE id %d", def.ID)
		}
		status := def.AdminStatus
		if status == "" {
			status = AdminOperative
		}
		cs.evses[def.ID] = NewEVSE(def.ID, status, def.Connectors...)
	}

	return cs, nil
}

// MustBuild is Build for statically known input; it panics on error.
func (b *ChargingStationBuilder) MustBuild() *ChargingStation {
	cs, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cs
}

// ActiveTransactionVeto blocks the removal of stations with a transaction in progress.
func ActiveTransactionVeto(cs *ChargingStation) string {
	if cs.HasActiveTransaction() {
		return fmt.Sprintf("charging station %s has an active transaction", cs.id)
	}
	return ""
}
