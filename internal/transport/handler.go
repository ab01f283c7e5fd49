package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/resident-x/go-csms/internal/domain"
	"github.com/resident-x/go-csms/internal/registry"
)

// Station initiated actions handled by StationHandler.
const (
	ActionBootNotification   = "BootNotification"
	ActionHeartbeat          = "Heartbeat"
	ActionStatusNotification = "StatusNotification"
	ActionTransactionEvent   = "TransactionEvent"
)

// IncomingHandler answers CALLs sent by stations. A non-nil CallError is returned as CALLERROR.
type IncomingHandler interface {
	HandleCall(ctx context.Context, stationID domain.StationID, action string, payload json.RawMessage) (any, *CallError)
}

// IncomingHandlerFunc adapts a function to IncomingHandler.
type IncomingHandlerFunc func(ctx context.Context, stationID domain.StationID, action string, payload json.RawMessage) (any, *CallError)

// HandleCall calls f.
func (f IncomingHandlerFunc) HandleCall(ctx context.Context, stationID domain.StationID, action string, payload json.RawMessage) (any, *CallError) {
	return f(ctx, stationID, action, payload)
}

type bootNotificationRequest struct {
	Reason          string `json:"reason"`
	ChargingStation struct {
		Model           string `json:"model"`
		VendorName      string `json:"vendorName"`
		SerialNumber    string `json:"serialNumber,omitempty"`
		FirmwareVersion string `json:"firmwareVersion,omitempty"`
	} `json:"chargingStation"`
}

// BootNotificationResponse is returned to a booting station.
type BootNotificationResponse struct {
	CurrentTime time.Time `json:"currentTime"`
	Interval    int       `json:"interval"`
	Status      string    `json:"status"`
}

// HeartbeatResponse carries the node clock.
type HeartbeatResponse struct {
	CurrentTime time.Time `json:"currentTime"`
}

type statusNotificationRequest struct {
	Timestamp       time.Time `json:"timestamp"`
	ConnectorStatus string    `json:"connectorStatus"`
	EVSEID          int       `json:"evseId"`
	ConnectorID     int       `json:"connectorId"`
}

type transactionEventRequest struct {
	EventType       string    `json:"eventType"`
	Timestamp       time.Time `json:"timestamp"`
	TriggerReason   string    `json:"triggerReason"`
	SeqNo           int       `json:"seqNo"`
	TransactionInfo struct {
		TransactionID string `json:"transactionId"`
	} `json:"transactionInfo"`
	EVSE *struct {
		ID          int `json:"id"`
		ConnectorID int `json:"connectorId,omitempty"`
	} `json:"evse,omitempty"`
	IDToken    *domain.IDToken `json:"idToken,omitempty"`
	MeterValue []struct {
		Timestamp    time.Time `json:"timestamp"`
		SampledValue []struct {
			Value     float64 `json:"value"`
			Measurand string  `json:"measurand,omitempty"`
		} `json:"sampledValue"`
	} `json:"meterValue,omitempty"`
}

// StationHandler admits booting stations into the station registry and tracks the live state
// they report.
type StationHandler struct {
	stations  *domain.StationRegistry
	heartbeat int
	now       func() time.Time
	logger    zerolog.Logger
}

// NewStationHandler creates a handler. heartbeatInterval is the interval in seconds handed
// out in BootNotification responses.
func NewStationHandler(stations *domain.StationRegistry, heartbeatInterval int) *StationHandler {
	return &StationHandler{
		stations:  stations,
		heartbeat: heartbeatInterval,
		now:       time.Now,
		logger:    log.With().Str("component", "station_handler").Logger(),
	}
}

// HandleCall dispatches a station CALL by action.
func (h *StationHandler) HandleCall(ctx context.Context, stationID domain.StationID, action string, payload json.RawMessage) (any, *CallError) {
	switch action {
	case ActionBootNotification:
		return h.bootNotification(ctx, stationID, payload)
	case ActionHeartbeat:
		return HeartbeatResponse{CurrentTime: h.now().UTC()}, nil
	case ActionStatusNotification:
		return h.statusNotification(stationID, payload)
	case ActionTransactionEvent:
		return h.transactionEvent(stationID, payload)
	default:
		return nil, &CallError{Code: ErrorCodeNotImplemented, Description: "action " + action + " is not supported"}
	}
}

func (h *StationHandler) bootNotification(ctx context.Context, stationID domain.StationID, payload json.RawMessage) (any, *CallError) {
	var req bootNotificationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &CallError{Code: ErrorCodeFormationViolation, Description: err.Error()}
	}

	builder := domain.NewChargingStationBuilder(stationID)
	builder.Vendor = req.ChargingStation.VendorName
	builder.Model = req.ChargingStation.Model
	builder.SerialNumber = req.ChargingStation.SerialNumber
	builder.FirmwareVersion = req.ChargingStation.FirmwareVersion

	station, err := builder.Build()
	if err != nil {
		return nil, &CallError{Code: ErrorCodePropertyConstraint, Description: err.Error()}
	}

	resp := BootNotificationResponse{CurrentTime: h.now().UTC(), Interval: h.heartbeat}

	correlationID, _ := ctx.Value(correlationKey{}).(string)
	res := h.stations.AddIfNotExists(station, nil, registry.WithCorrelationID(correlationID), registry.WithActor(string(stationID)))
	switch res.Outcome {
	case registry.OutcomeSuccess, registry.OutcomeAdded, registry.OutcomeNoOperation:
		resp.Status = "Accepted"
	case registry.OutcomeLockTimeout:
		resp.Status = "Pending"
	default:
		resp.Status = "Rejected"
	}

	h.logger.Info().
		Str("station_id", string(stationID)).
		Str("reason", req.Reason).
		Str("outcome", res.Outcome.String()).
		Str("status", resp.Status).
		Msg("Boot notification")

	return resp, nil
}

func (h *StationHandler) statusNotification(stationID domain.StationID, payload json.RawMessage) (any, *CallError) {
	var req statusNotificationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &CallError{Code: ErrorCodeFormationViolation, Description: err.Error()}
	}

	err := h.withEVSE(stationID, req.EVSEID, func(evse *domain.EVSE) {
		evse.SetStatus(connectorStatus(req.ConnectorStatus))
	})
	if err != nil {
		return nil, &CallError{Code: ErrorCodeInternalError, Description: err.Error()}
	}
	return struct{}{}, nil
}

func (h *StationHandler) transactionEvent(stationID domain.StationID, payload json.RawMessage) (any, *CallError) {
	var req transactionEventRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, &CallError{Code: ErrorCodeFormationViolation, Description: err.Error()}
	}
	if req.EVSE == nil {
		return struct{}{}, nil
	}

	reading := domain.MeterValue{Timestamp: req.Timestamp}
	for _, mv := range req.MeterValue {
		for _, sv := range mv.SampledValue {
			if sv.Measurand == "" || sv.Measurand == "Energy.Active.Import.Register" {
				reading = domain.MeterValue{Timestamp: mv.Timestamp, WattHours: sv.Value}
			}
		}
	}

	err := h.withEVSE(stationID, req.EVSE.ID, func(evse *domain.EVSE) {
		switch req.EventType {
		case "Started":
			token := domain.IDToken{}
			if req.IDToken != nil {
				token = *req.IDToken
			}
			evse.StartTransaction(req.TransactionInfo.TransactionID, token, reading)
		case "Ended":
			evse.StopTransaction(reading)
		}
	})
	if err != nil {
		return nil, &CallError{Code: ErrorCodeInternalError, Description: err.Error()}
	}

	h.logger.Debug().
		Str("station_id", string(stationID)).
		Int("evse_id", req.EVSE.ID).
		Str("event_type", req.EventType).
		Str("transaction_id", req.TransactionInfo.TransactionID).
		Msg("Transaction event")

	return struct{}{}, nil
}

// withEVSE applies fn to the EVSE of the registered station while holding the registry lock,
// so a concurrent replacement of the station either sees the change or carries it forward.
// Unknown stations and EVSEs are logged and skipped.
func (h *StationHandler) withEVSE(stationID domain.StationID, evseID int, fn func(*domain.EVSE)) error {
	return h.stations.Do(func(tx *domain.StationTx) error {
		station, ok := tx.TryGet(stationID)
		if !ok {
			h.logger.Warn().Str("station_id", string(stationID)).Msg("Notification from unknown station")
			return nil
		}
		evse, ok := station.EVSE(evseID)
		if !ok {
			h.logger.Warn().Str("station_id", string(stationID)).Int("evse_id", evseID).Msg("Notification for unknown EVSE")
			return nil
		}
		fn(evse)
		return nil
	})
}

func connectorStatus(s string) domain.OperationalStatus {
	switch s {
	case "Available":
		return domain.StatusAvailable
	case "Occupied":
		return domain.StatusOccupied
	case "Reserved":
		return domain.StatusReserved
	case "Faulted":
		return domain.StatusFaulted
	default:
		return domain.StatusUnavailable
	}
}

type correlationKey struct{}

func withCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}
