package command

import (
	"encoding/json"
	"time"

	"github.com/resident-x/go-csms/internal/domain"
)

// Action names of the outbound requests.
const (
	ActionReset                      = "Reset"
	ActionUpdateFirmware             = "UpdateFirmware"
	ActionPublishFirmware            = "PublishFirmware"
	ActionUnpublishFirmware          = "UnpublishFirmware"
	ActionGetBaseReport              = "GetBaseReport"
	ActionGetReport                  = "GetReport"
	ActionGetLog                     = "GetLog"
	ActionSetVariables               = "SetVariables"
	ActionGetVariables               = "GetVariables"
	ActionSetMonitoringBase          = "SetMonitoringBase"
	ActionSetMonitoringLevel         = "SetMonitoringLevel"
	ActionSetVariableMonitoring      = "SetVariableMonitoring"
	ActionClearVariableMonitoring    = "ClearVariableMonitoring"
	ActionGetMonitoringReport        = "GetMonitoringReport"
	ActionSetNetworkProfile          = "SetNetworkProfile"
	ActionChangeAvailability         = "ChangeAvailability"
	ActionTriggerMessage             = "TriggerMessage"
	ActionDataTransfer               = "DataTransfer"
	ActionCertificateSigned          = "CertificateSigned"
	ActionInstallCertificate         = "InstallCertificate"
	ActionGetInstalledCertificateIDs = "GetInstalledCertificateIds"
	ActionDeleteCertificate          = "DeleteCertificate"
	ActionGetLocalListVersion        = "GetLocalListVersion"
	ActionSendLocalList              = "SendLocalList"
	ActionClearCache                 = "ClearCache"
	ActionReserveNow                 = "ReserveNow"
	ActionCancelReservation          = "CancelReservation"
	ActionRequestStartTransaction    = "RequestStartTransaction"
	ActionRequestStopTransaction     = "RequestStopTransaction"
	ActionGetTransactionStatus       = "GetTransactionStatus"
	ActionSetChargingProfile         = "SetChargingProfile"
	ActionGetChargingProfiles        = "GetChargingProfiles"
	ActionClearChargingProfile       = "ClearChargingProfile"
	ActionGetCompositeSchedule       = "GetCompositeSchedule"
	ActionUnlockConnector            = "UnlockConnector"
	ActionSetDisplayMessage          = "SetDisplayMessage"
	ActionGetDisplayMessages         = "GetDisplayMessages"
	ActionClearDisplayMessage        = "ClearDisplayMessage"
	ActionCostUpdated                = "CostUpdated"
	ActionCustomerInformation        = "CustomerInformation"
)

// StatusResponse is the common answer shape of most requests.
type StatusResponse struct {
	Status     string      `json:"status"`
	StatusInfo *StatusInfo `json:"statusInfo,omitempty"`
}

// Accepted reports whether the station accepted the request.
func (r StatusResponse) Accepted() bool {
	return r.Status == "Accepted"
}

// ResetRequest restarts the station or one EVSE.
type ResetRequest struct {
	Type   string `json:"type" validate:"required,oneof=Immediate OnIdle"`
	EVSEID *int   `json:"evseId,omitempty" validate:"omitempty,min=0"`
}

func (ResetRequest) Action() string { return ActionReset }

// ResetResponse is the answer to ResetRequest.
type ResetResponse = StatusResponse

// UpdateFirmwareRequest starts a firmware update.
type UpdateFirmwareRequest struct {
	Retries       *int     `json:"retries,omitempty" validate:"omitempty,min=0"`
	RetryInterval *int     `json:"retryInterval,omitempty" validate:"omitempty,min=0"`
	RequestID     int      `json:"requestId"`
	Firmware      Firmware `json:"firmware" validate:"required"`
}

func (UpdateFirmwareRequest) Action() string { return ActionUpdateFirmware }

// UpdateFirmwareResponse is the answer to UpdateFirmwareRequest.
type UpdateFirmwareResponse = StatusResponse

// PublishFirmwareRequest asks a local controller to publish a firmware image.
type PublishFirmwareRequest struct {
	Location      string `json:"location" validate:"required,max=512"`
	Retries       *int   `json:"retries,omitempty" validate:"omitempty,min=0"`
	Checksum      string `json:"checksum" validate:"required,len=32"`
	RequestID     int    `json:"requestId"`
	RetryInterval *int   `json:"retryInterval,omitempty" validate:"omitempty,min=0"`
}

func (PublishFirmwareRequest) Action() string { return ActionPublishFirmware }

// PublishFirmwareResponse is the answer to PublishFirmwareRequest.
type PublishFirmwareResponse = StatusResponse

// UnpublishFirmwareRequest stops publishing a firmware image.
type UnpublishFirmwareRequest struct {
	Checksum string `json:"checksum" validate:"required,len=32"`
}

func (UnpublishFirmwareRequest) Action() string { return ActionUnpublishFirmware }

// UnpublishFirmwareResponse is the answer to UnpublishFirmwareRequest.
type UnpublishFirmwareResponse struct {
	Status string `json:"status"`
}

// GetBaseReportRequest asks for a predefined device model report.
type GetBaseReportRequest struct {
	RequestID  int    `json:"requestId"`
	ReportBase string `json:"reportBase" validate:"required,oneof=ConfigurationInventory FullInventory SummaryInventory"`
}

func (GetBaseReportRequest) Action() string { return ActionGetBaseReport }

// GetBaseReportResponse is the answer to GetBaseReportRequest.
type GetBaseReportResponse = StatusResponse

// GetReportRequest asks for a filtered device model report.
type GetReportRequest struct {
	RequestID          int                 `json:"requestId"`
	ComponentCriteria  []string            `json:"componentCriteria,omitempty" validate:"max=4,dive,oneof=Active Available Enabled Problem"`
	ComponentVariables []ComponentVariable `json:"componentVariable,omitempty" validate:"dive"`
}

func (GetReportRequest) Action() string { return ActionGetReport }

// GetReportResponse is the answer to GetReportRequest.
type GetReportResponse = StatusResponse

// GetLogRequest asks the station to upload a log file.
type GetLogRequest struct {
	Log           LogParameters `json:"log" validate:"required"`
	LogType       string        `json:"logType" validate:"required,oneof=DiagnosticsLog SecurityLog"`
	RequestID     int           `json:"requestId"`
	Retries       *int          `json:"retries,omitempty" validate:"omitempty,min=0"`
	RetryInterval *int          `json:"retryInterval,omitempty" validate:"omitempty,min=0"`
}

func (GetLogRequest) Action() string { return ActionGetLog }

// GetLogResponse is the answer to GetLogRequest.
type GetLogResponse struct {
	Status     string      `json:"status"`
	StatusInfo *StatusInfo `json:"statusInfo,omitempty"`
	Filename   string      `json:"filename,omitempty"`
}

// SetVariableData is one variable assignment.
type SetVariableData struct {
	AttributeType  string    `json:"attributeType,omitempty" validate:"omitempty,oneof=Actual Target MinSet MaxSet"`
	AttributeValue string    `json:"attributeValue" validate:"max=1000"`
	Component      Component `json:"component" validate:"required"`
	Variable       Variable  `json:"variable" validate:"required"`
}

// SetVariablesRequest assigns device model variables.
type SetVariablesRequest struct {
	SetVariableData []SetVariableData `json:"setVariableData" validate:"required,min=1,dive"`
}

func (SetVariablesRequest) Action() string { return ActionSetVariables }

// SetVariableResult is the per-variable answer of SetVariables.
type SetVariableResult struct {
	AttributeType   string      `json:"attributeType,omitempty"`
	AttributeStatus string      `json:"attributeStatus"`
	Component       Component   `json:"component"`
	Variable        Variable    `json:"variable"`
	StatusInfo      *StatusInfo `json:"attributeStatusInfo,omitempty"`
}

// SetVariablesResponse is the answer to SetVariablesRequest.
type SetVariablesResponse struct {
	SetVariableResult []SetVariableResult `json:"setVariableResult"`
}

// GetVariableData is one variable to read.
type GetVariableData struct {
	AttributeType string    `json:"attributeType,omitempty" validate:"omitempty,oneof=Actual Target MinSet MaxSet"`
	Component     Component `json:"component" validate:"required"`
	Variable      Variable  `json:"variable" validate:"required"`
}

// GetVariablesRequest reads device model variables.
type GetVariablesRequest struct {
	GetVariableData []GetVariableData `json:"getVariableData" validate:"required,min=1,dive"`
}

func (GetVariablesRequest) Action() string { return ActionGetVariables }

// GetVariableResult is the per-variable answer of GetVariables.
type GetVariableResult struct {
	AttributeStatus string      `json:"attributeStatus"`
	AttributeType   string      `json:"attributeType,omitempty"`
	AttributeValue  string      `json:"attributeValue,omitempty"`
	Component       Component   `json:"component"`
	Variable        Variable    `json:"variable"`
	StatusInfo      *StatusInfo `json:"attributeStatusInfo,omitempty"`
}

// GetVariablesResponse is the answer to GetVariablesRequest.
type GetVariablesResponse struct {
	GetVariableResult []GetVariableResult `json:"getVariableResult"`
}

// SetMonitoringBaseRequest selects a predefined monitoring set.
type SetMonitoringBaseRequest struct {
	MonitoringBase string `json:"monitoringBase" validate:"required,oneof=All FactoryDefault HardWiredOnly"`
}

func (SetMonitoringBaseRequest) Action() string { return ActionSetMonitoringBase }

// SetMonitoringBaseResponse is the answer to SetMonitoringBaseRequest.
type SetMonitoringBaseResponse = StatusResponse

// SetMonitoringLevelRequest filters monitoring events by severity.
type SetMonitoringLevelRequest struct {
	Severity int `json:"severity" validate:"min=0,max=9"`
}

func (SetMonitoringLevelRequest) Action() string { return ActionSetMonitoringLevel }

// SetMonitoringLevelResponse is the answer to SetMonitoringLevelRequest.
type SetMonitoringLevelResponse = StatusResponse

// SetMonitoringData is one monitor definition.
type SetMonitoringData struct {
	ID          *int      `json:"id,omitempty"`
	Transaction bool      `json:"transaction,omitempty"`
	Value       float64   `json:"value"`
	Type        string    `json:"type" validate:"required,oneof=UpperThreshold LowerThreshold Delta Periodic PeriodicClockAligned"`
	Severity    int       `json:"severity" validate:"min=0,max=9"`
	Component   Component `json:"component" validate:"required"`
	Variable    Variable  `json:"variable" validate:"required"`
}

// SetVariableMonitoringRequest installs variable monitors.
type SetVariableMonitoringRequest struct {
	SetMonitoringData []SetMonitoringData `json:"setMonitoringData" validate:"required,min=1,dive"`
}

func (SetVariableMonitoringRequest) Action() string { return ActionSetVariableMonitoring }

// SetMonitoringResult is the per-monitor answer of SetVariableMonitoring.
type SetMonitoringResult struct {
	ID        *int      `json:"id,omitempty"`
	Status    string    `json:"status"`
	Type      string    `json:"type"`
	Severity  int       `json:"severity"`
	Component Component `json:"component"`
	Variable  Variable  `json:"variable"`
}

// SetVariableMonitoringResponse is the answer to SetVariableMonitoringRequest.
type SetVariableMonitoringResponse struct {
	SetMonitoringResult []SetMonitoringResult `json:"setMonitoringResult"`
}

// ClearVariableMonitoringRequest removes monitors by id.
type ClearVariableMonitoringRequest struct {
	ID []int `json:"id" validate:"required,min=1"`
}

func (ClearVariableMonitoringRequest) Action() string { return ActionClearVariableMonitoring }

// ClearMonitoringResult is the per-monitor answer of ClearVariableMonitoring.
type ClearMonitoringResult struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
}

// ClearVariableMonitoringResponse is the answer to ClearVariableMonitoringRequest.
type ClearVariableMonitoringResponse struct {
	ClearMonitoringResult []ClearMonitoringResult `json:"clearMonitoringResult"`
}

// GetMonitoringReportRequest asks for a report of installed monitors.
type GetMonitoringReportRequest struct {
	RequestID          int                 `json:"requestId"`
	MonitoringCriteria []string            `json:"monitoringCriteria,omitempty" validate:"max=3,dive,oneof=ThresholdMonitoring DeltaMonitoring PeriodicMonitoring"`
	ComponentVariables []ComponentVariable `json:"componentVariable,omitempty" validate:"dive"`
}

func (GetMonitoringReportRequest) Action() string { return ActionGetMonitoringReport }

// GetMonitoringReportResponse is the answer to GetMonitoringReportRequest.
type GetMonitoringReportResponse = StatusResponse

// SetNetworkProfileRequest installs a connection profile in a slot.
type SetNetworkProfileRequest struct {
	ConfigurationSlot int                      `json:"configurationSlot" validate:"min=0"`
	ConnectionData    NetworkConnectionProfile `json:"connectionData" validate:"required"`
}

func (SetNetworkProfileRequest) Action() string { return ActionSetNetworkProfile }

// SetNetworkProfileResponse is the answer to SetNetworkProfileRequest.
type SetNetworkProfileResponse = StatusResponse

// ChangeAvailabilityRequest sets the station, an EVSE or a connector operative or inoperative.
type ChangeAvailabilityRequest struct {
	OperationalStatus domain.AdminStatus `json:"operationalStatus" validate:"required,oneof=Operative Inoperative"`
	EVSE              *EVSERef           `json:"evse,omitempty"`
}

func (ChangeAvailabilityRequest) Action() string { return ActionChangeAvailability }

// ChangeAvailabilityResponse is the answer to ChangeAvailabilityRequest.
type ChangeAvailabilityResponse = StatusResponse

// TriggerMessageRequest asks the station to send a message now.
type TriggerMessageRequest struct {
	RequestedMessage string   `json:"requestedMessage" validate:"required,oneof=BootNotification LogStatusNotification FirmwareStatusNotification Heartbeat MeterValues SignChargingStationCertificate SignV2GCertificate StatusNotification TransactionEvent SignCombinedCertificate PublishFirmwareStatusNotification"`
	EVSE             *EVSERef `json:"evse,omitempty"`
}

func (TriggerMessageRequest) Action() string { return ActionTriggerMessage }

// TriggerMessageResponse is the answer to TriggerMessageRequest.
type TriggerMessageResponse = StatusResponse

// DataTransferRequest carries vendor specific data.
type DataTransferRequest struct {
	VendorID  string          `json:"vendorId" validate:"required,max=255"`
	MessageID string          `json:"messageId,omitempty" validate:"max=50"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func (DataTransferRequest) Action() string { return ActionDataTransfer }

// DataTransferResponse is the answer to DataTransferRequest.
type DataTransferResponse struct {
	Status     string          `json:"status"`
	StatusInfo *StatusInfo     `json:"statusInfo,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// CertificateSignedRequest delivers a signed certificate chain.
type CertificateSignedRequest struct {
	CertificateChain string `json:"certificateChain" validate:"required,max=10000"`
	CertificateType  string `json:"certificateType,omitempty" validate:"omitempty,oneof=ChargingStationCertificate V2GCertificate"`
}

func (CertificateSignedRequest) Action() string { return ActionCertificateSigned }

// CertificateSignedResponse is the answer to CertificateSignedRequest.
type CertificateSignedResponse = StatusResponse

// InstallCertificateRequest installs a root certificate.
type InstallCertificateRequest struct {
	CertificateType string `json:"certificateType" validate:"required,oneof=V2GRootCertificate MORootCertificate CSMSRootCertificate ManufacturerRootCertificate"`
	Certificate     string `json:"certificate" validate:"required,max=5500"`
}

func (InstallCertificateRequest) Action() string { return ActionInstallCertificate }

// InstallCertificateResponse is the answer to InstallCertificateRequest.
type InstallCertificateResponse = StatusResponse

// GetInstalledCertificateIDsRequest lists installed certificates.
type GetInstalledCertificateIDsRequest struct {
	CertificateType []string `json:"certificateType,omitempty" validate:"dive,oneof=V2GRootCertificate MORootCertificate CSMSRootCertificate V2GCertificateChain ManufacturerRootCertificate"`
}

func (GetInstalledCertificateIDsRequest) Action() string { return ActionGetInstalledCertificateIDs }

// GetInstalledCertificateIDsResponse is the answer to GetInstalledCertificateIDsRequest.
type GetInstalledCertificateIDsResponse struct {
	Status                   string                     `json:"status"`
	StatusInfo               *StatusInfo                `json:"statusInfo,omitempty"`
	CertificateHashDataChain []CertificateHashDataChain `json:"certificateHashDataChain,omitempty"`
}

// DeleteCertificateRequest removes an installed certificate.
type DeleteCertificateRequest struct {
	CertificateHashData CertificateHashData `json:"certificateHashData" validate:"required"`
}

func (DeleteCertificateRequest) Action() string { return ActionDeleteCertificate }

// DeleteCertificateResponse is the answer to DeleteCertificateRequest.
type DeleteCertificateResponse = StatusResponse

// GetLocalListVersionRequest reads the local authorization list version.
type GetLocalListVersionRequest struct{}

func (GetLocalListVersionRequest) Action() string { return ActionGetLocalListVersion }

// GetLocalListVersionResponse is the answer to GetLocalListVersionRequest.
type GetLocalListVersionResponse struct {
	VersionNumber int `json:"versionNumber"`
}

// AuthorizationData is one entry of the local authorization list.
type AuthorizationData struct {
	IDToken     domain.IDToken `json:"idToken" validate:"required"`
	IDTokenInfo *IDTokenInfo   `json:"idTokenInfo,omitempty"`
}

// SendLocalListRequest replaces or patches the local authorization list.
type SendLocalListRequest struct {
	VersionNumber          int                 `json:"versionNumber" validate:"min=1"`
	UpdateType             string              `json:"updateType" validate:"required,oneof=Differential Full"`
	LocalAuthorizationList []AuthorizationData `json:"localAuthorizationList,omitempty" validate:"dive"`
}

func (SendLocalListRequest) Action() string { return ActionSendLocalList }

// SendLocalListResponse is the answer to SendLocalListRequest.
type SendLocalListResponse = StatusResponse

// ClearCacheRequest empties the authorization cache.
type ClearCacheRequest struct{}

func (ClearCacheRequest) Action() string { return ActionClearCache }

// ClearCacheResponse is the answer to ClearCacheRequest.
type ClearCacheResponse = StatusResponse

// ReserveNowRequest reserves an EVSE for an id token.
type ReserveNowRequest struct {
	ID             int             `json:"id"`
	ExpiryDateTime time.Time       `json:"expiryDateTime" validate:"required"`
	ConnectorType  string          `json:"connectorType,omitempty" validate:"max=20"`
	IDToken        domain.IDToken  `json:"idToken" validate:"required"`
	EVSEID         *int            `json:"evseId,omitempty" validate:"omitempty,min=0"`
	GroupIDToken   *domain.IDToken `json:"groupIdToken,omitempty"`
}

func (ReserveNowRequest) Action() string { return ActionReserveNow }

// ReserveNowResponse is the answer to ReserveNowRequest.
type ReserveNowResponse = StatusResponse

// CancelReservationRequest cancels a reservation.
type CancelReservationRequest struct {
	ReservationID int `json:"reservationId"`
}

func (CancelReservationRequest) Action() string { return ActionCancelReservation }

// CancelReservationResponse is the answer to CancelReservationRequest.
type CancelReservationResponse = StatusResponse

// RequestStartTransactionRequest starts a transaction remotely.
type RequestStartTransactionRequest struct {
	EVSEID          *int             `json:"evseId,omitempty" validate:"omitempty,min=1"`
	RemoteStartID   int              `json:"remoteStartId"`
	IDToken         domain.IDToken   `json:"idToken" validate:"required"`
	ChargingProfile *ChargingProfile `json:"chargingProfile,omitempty"`
	GroupIDToken    *domain.IDToken  `json:"groupIdToken,omitempty"`
}

func (RequestStartTransactionRequest) Action() string { return ActionRequestStartTransaction }

// RequestStartTransactionResponse is the answer to RequestStartTransactionRequest.
type RequestStartTransactionResponse struct {
	Status        string      `json:"status"`
	StatusInfo    *StatusInfo `json:"statusInfo,omitempty"`
	TransactionID string      `json:"transactionId,omitempty"`
}

// RequestStopTransactionRequest stops a transaction remotely.
type RequestStopTransactionRequest struct {
	TransactionID string `json:"transactionId" validate:"required,max=36"`
}

func (RequestStopTransactionRequest) Action() string { return ActionRequestStopTransaction }

// RequestStopTransactionResponse is the answer to RequestStopTransactionRequest.
type RequestStopTransactionResponse = StatusResponse

// GetTransactionStatusRequest asks whether transaction messages are still queued.
type GetTransactionStatusRequest struct {
	TransactionID string `json:"transactionId,omitempty" validate:"max=36"`
}

func (GetTransactionStatusRequest) Action() string { return ActionGetTransactionStatus }

// GetTransactionStatusResponse is the answer to GetTransactionStatusRequest.
type GetTransactionStatusResponse struct {
	OngoingIndicator *bool `json:"ongoingIndicator,omitempty"`
	MessagesInQueue  bool  `json:"messagesInQueue"`
}

// SetChargingProfileRequest installs a charging profile on an EVSE.
type SetChargingProfileRequest struct {
	EVSEID          int             `json:"evseId" validate:"min=0"`
	ChargingProfile ChargingProfile `json:"chargingProfile" validate:"required"`
}

func (SetChargingProfileRequest) Action() string { return ActionSetChargingProfile }

// SetChargingProfileResponse is the answer to SetChargingProfileRequest.
type SetChargingProfileResponse = StatusResponse

// ChargingProfileCriterion filters charging profiles.
type ChargingProfileCriterion struct {
	ChargingProfilePurpose string   `json:"chargingProfilePurpose,omitempty" validate:"omitempty,oneof=ChargingStationExternalConstraints ChargingStationMaxProfile TxDefaultProfile TxProfile"`
	StackLevel             *int     `json:"stackLevel,omitempty" validate:"omitempty,min=0"`
	ChargingProfileID      []int    `json:"chargingProfileId,omitempty"`
	ChargingLimitSource    []string `json:"chargingLimitSource,omitempty" validate:"max=4,dive,oneof=EMS Other SO CSO"`
}

// GetChargingProfilesRequest asks for a report of installed charging profiles.
type GetChargingProfilesRequest struct {
	RequestID       int                      `json:"requestId"`
	EVSEID          *int                     `json:"evseId,omitempty" validate:"omitempty,min=0"`
	ChargingProfile ChargingProfileCriterion `json:"chargingProfile"`
}

func (GetChargingProfilesRequest) Action() string { return ActionGetChargingProfiles }

// GetChargingProfilesResponse is the answer to GetChargingProfilesRequest.
type GetChargingProfilesResponse = StatusResponse

// ClearChargingProfileCriterion selects profiles to clear.
type ClearChargingProfileCriterion struct {
	EVSEID                 *int   `json:"evseId,omitempty" validate:"omitempty,min=0"`
	ChargingProfilePurpose string `json:"chargingProfilePurpose,omitempty" validate:"omitempty,oneof=ChargingStationExternalConstraints ChargingStationMaxProfile TxDefaultProfile TxProfile"`
	StackLevel             *int   `json:"stackLevel,omitempty" validate:"omitempty,min=0"`
}

// ClearChargingProfileRequest removes charging profiles by id or criteria.
type ClearChargingProfileRequest struct {
	ChargingProfileID       *int                           `json:"chargingProfileId,omitempty"`
	ChargingProfileCriteria *ClearChargingProfileCriterion `json:"chargingProfileCriteria,omitempty"`
}

func (ClearChargingProfileRequest) Action() string { return ActionClearChargingProfile }

// ClearChargingProfileResponse is the answer to ClearChargingProfileRequest.
type ClearChargingProfileResponse = StatusResponse

// GetCompositeScheduleRequest asks for the effective schedule of an EVSE.
type GetCompositeScheduleRequest struct {
	Duration         int    `json:"duration" validate:"min=1"`
	ChargingRateUnit string `json:"chargingRateUnit,omitempty" validate:"omitempty,oneof=W A"`
	EVSEID           int    `json:"evseId" validate:"min=0"`
}

func (GetCompositeScheduleRequest) Action() string { return ActionGetCompositeSchedule }

// CompositeSchedule is the effective schedule reported by a station.
type CompositeSchedule struct {
	EVSEID                 int                      `json:"evseId"`
	Duration               int                      `json:"duration"`
	ScheduleStart          time.Time                `json:"scheduleStart"`
	ChargingRateUnit       string                   `json:"chargingRateUnit"`
	ChargingSchedulePeriod []ChargingSchedulePeriod `json:"chargingSchedulePeriod"`
}

// GetCompositeScheduleResponse is the answer to GetCompositeScheduleRequest.
type GetCompositeScheduleResponse struct {
	Status     string             `json:"status"`
	StatusInfo *StatusInfo        `json:"statusInfo,omitempty"`
	Schedule   *CompositeSchedule `json:"schedule,omitempty"`
}

// UnlockConnectorRequest unlocks a connector.
type UnlockConnectorRequest struct {
	EVSEID      int `json:"evseId" validate:"min=1"`
	ConnectorID int `json:"connectorId" validate:"min=1"`
}

func (UnlockConnectorRequest) Action() string { return ActionUnlockConnector }

// UnlockConnectorResponse is the answer to UnlockConnectorRequest.
type UnlockConnectorResponse = StatusResponse

// SetDisplayMessageRequest shows a message on the station display.
type SetDisplayMessageRequest struct {
	Message MessageInfo `json:"message" validate:"required"`
}

func (SetDisplayMessageRequest) Action() string { return ActionSetDisplayMessage }

// SetDisplayMessageResponse is the answer to SetDisplayMessageRequest.
type SetDisplayMessageResponse = StatusResponse

// GetDisplayMessagesRequest asks for a report of configured display messages.
type GetDisplayMessagesRequest struct {
	ID        []int  `json:"id,omitempty"`
	RequestID int    `json:"requestId"`
	Priority  string `json:"priority,omitempty" validate:"omitempty,oneof=AlwaysFront InFront NormalCycle"`
	State     string `json:"state,omitempty" validate:"omitempty,oneof=Charging Faulted Idle Unavailable"`
}

func (GetDisplayMessagesRequest) Action() string { return ActionGetDisplayMessages }

// GetDisplayMessagesResponse is the answer to GetDisplayMessagesRequest.
type GetDisplayMessagesResponse = StatusResponse

// ClearDisplayMessageRequest removes a display message.
type ClearDisplayMessageRequest struct {
	ID int `json:"id"`
}

func (ClearDisplayMessageRequest) Action() string { return ActionClearDisplayMessage }

// ClearDisplayMessageResponse is the answer to ClearDisplayMessageRequest.
type ClearDisplayMessageResponse = StatusResponse

// CostUpdatedRequest reports the running cost of a transaction.
type CostUpdatedRequest struct {
	TotalCost     float64 `json:"totalCost" validate:"min=0"`
	TransactionID string  `json:"transactionId" validate:"required,max=36"`
}

func (CostUpdatedRequest) Action() string { return ActionCostUpdated }

// CostUpdatedResponse is the empty answer to CostUpdatedRequest.
type CostUpdatedResponse struct{}

// CustomerInformationRequest asks for or clears data held about a customer.
type CustomerInformationRequest struct {
	RequestID           int                  `json:"requestId"`
	Report              bool                 `json:"report"`
	Clear               bool                 `json:"clear"`
	CustomerIdentifier  string               `json:"customerIdentifier,omitempty" validate:"max=64"`
	IDToken             *domain.IDToken      `json:"idToken,omitempty"`
	CustomerCertificate *CertificateHashData `json:"customerCertificate,omitempty"`
}

func (CustomerInformationRequest) Action() string { return ActionCustomerInformation }

// CustomerInformationResponse is the answer to CustomerInformationRequest.
type CustomerInformationResponse = StatusResponse
