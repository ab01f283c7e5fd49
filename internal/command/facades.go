package command

import (
	"context"

	"github.com/resident-x/go-csms/internal/domain"
)

// Reset restarts the station or one of its EVSEs.
func (n *Node) Reset(ctx context.Context, dest domain.StationID, req ResetRequest, opts ...Option) (*Response[ResetResponse], error) {
	return Send[ResetRequest, ResetResponse](ctx, n, dest, req, opts...)
}

// UpdateFirmware starts a firmware update.
func (n *Node) UpdateFirmware(ctx context.Context, dest domain.StationID, req UpdateFirmwareRequest, opts ...Option) (*Response[UpdateFirmwareResponse], error) {
	return Send[UpdateFirmwareRequest, UpdateFirmwareResponse](ctx, n, dest, req, opts...)
}

// PublishFirmware asks a local controller to publish a firmware image.
func (n *Node) PublishFirmware(ctx context.Context, dest domain.StationID, req PublishFirmwareRequest, opts ...Option) (*Response[PublishFirmwareResponse], error) {
	return Send[PublishFirmwareRequest, PublishFirmwareResponse](ctx, n, dest, req, opts...)
}

// UnpublishFirmware sends a UnpublishFirmware request to dest.
func (n *Node) UnpublishFirmware(ctx context.Context, dest domain.StationID, req UnpublishFirmwareRequest, opts ...Option) (*Response[UnpublishFirmwareResponse], error) {
	return Send[UnpublishFirmwareRequest, UnpublishFirmwareResponse](ctx, n, dest, req, opts...)
}

// GetBaseReport requests a predefined device model report.
func (n *Node) GetBaseReport(ctx context.Context, dest domain.StationID, req GetBaseReportRequest, opts ...Option) (*Response[GetBaseReportResponse], error) {
	return Send[GetBaseReportRequest, GetBaseReportResponse](ctx, n, dest, req, opts...)
}

// GetReport sends a GetReport request to dest.
func (n *Node) GetReport(ctx context.Context, dest domain.StationID, req GetReportRequest, opts ...Option) (*Response[GetReportResponse], error) {
	return Send[GetReportRequest, GetReportResponse](ctx, n, dest, req, opts...)
}

// GetLog asks the station to upload a log file.
func (n *Node) GetLog(ctx context.Context, dest domain.StationID, req GetLogRequest, opts ...Option) (*Response[GetLogResponse], error) {
	return Send[GetLogRequest, GetLogResponse](ctx, n, dest, req, opts...)
}

// SetVariables sends a SetVariables request to dest.
func (n *Node) SetVariables(ctx context.Context, dest domain.StationID, req SetVariablesRequest, opts ...Option) (*Response[SetVariablesResponse], error) {
	return Send[SetVariablesRequest, SetVariablesResponse](ctx, n, dest, req, opts...)
}

// GetVariables sends a GetVariables request to dest.
func (n *Node) GetVariables(ctx context.Context, dest domain.StationID, req GetVariablesRequest, opts ...Option) (*Response[GetVariablesResponse], error) {
	return Send[GetVariablesRequest, GetVariablesResponse](ctx, n, dest, req, opts...)
}

// SetMonitoringBase sends a SetMonitoringBase request to dest.
func (n *Node) SetMonitoringBase(ctx context.Context, dest domain.StationID, req SetMonitoringBaseRequest, opts ...Option) (*Response[SetMonitoringBaseResponse], error) {
	return Send[SetMonitoringBaseRequest, SetMonitoringBaseResponse](ctx, n, dest, req, opts...)
}

// SetMonitoringLevel sends a SetMonitoringLevel request to dest.
func (n *Node) SetMonitoringLevel(ctx context.Context, dest domain.StationID, req SetMonitoringLevelRequest, opts ...Option) (*Response[SetMonitoringLevelResponse], error) {
	return Send[SetMonitoringLevelRequest, SetMonitoringLevelResponse](ctx, n, dest, req, opts...)
}

// SetVariableMonitoring sends a SetVariableMonitoring request to dest.
func (n *Node) SetVariableMonitoring(ctx context.Context, dest domain.StationID, req SetVariableMonitoringRequest, opts ...Option) (*Response[SetVariableMonitoringResponse], error) {
	return Send[SetVariableMonitoringRequest, SetVariableMonitoringResponse](ctx, n, dest, req, opts...)
}

// ClearVariableMonitoring sends a ClearVariableMonitoring request to dest.
func (n *Node) ClearVariableMonitoring(ctx context.Context, dest domain.StationID, req ClearVariableMonitoringRequest, opts ...Option) (*Response[ClearVariableMonitoringResponse], error) {
	return Send[ClearVariableMonitoringRequest, ClearVariableMonitoringResponse](ctx, n, dest, req, opts...)
}

// GetMonitoringReport sends a GetMonitoringReport request to dest.
func (n *Node) GetMonitoringReport(ctx context.Context, dest domain.StationID, req GetMonitoringReportRequest, opts ...Option) (*Response[GetMonitoringReportResponse], error) {
	return Send[GetMonitoringReportRequest, GetMonitoringReportResponse](ctx, n, dest, req, opts...)
}

// SetNetworkProfile sends a SetNetworkProfile request to dest.
func (n *Node) SetNetworkProfile(ctx context.Context, dest domain.StationID, req SetNetworkProfileRequest, opts ...Option) (*Response[SetNetworkProfileResponse], error) {
	return Send[SetNetworkProfileRequest, SetNetworkProfileResponse](ctx, n, dest, req, opts...)
}

// ChangeAvailability sets the station, an EVSE or a connector operative or inoperative.
func (n *Node) ChangeAvailability(ctx context.Context, dest domain.StationID, req ChangeAvailabilityRequest, opts ...Option) (*Response[ChangeAvailabilityResponse], error) {
	return Send[ChangeAvailabilityRequest, ChangeAvailabilityResponse](ctx, n, dest, req, opts...)
}

// TriggerMessage sends a TriggerMessage request to dest.
func (n *Node) TriggerMessage(ctx context.Context, dest domain.StationID, req TriggerMessageRequest, opts ...Option) (*Response[TriggerMessageResponse], error) {
	return Send[TriggerMessageRequest, TriggerMessageResponse](ctx, n, dest, req, opts...)
}

// DataTransfer sends vendor specific data.
func (n *Node) DataTransfer(ctx context.Context, dest domain.StationID, req DataTransferRequest, opts ...Option) (*Response[DataTransferResponse], error) {
	return Send[DataTransferRequest, DataTransferResponse](ctx, n, dest, req, opts...)
}

// CertificateSigned sends a CertificateSigned request to dest.
func (n *Node) CertificateSigned(ctx context.Context, dest domain.StationID, req CertificateSignedRequest, opts ...Option) (*Response[CertificateSignedResponse], error) {
	return Send[CertificateSignedRequest, CertificateSignedResponse](ctx, n, dest, req, opts...)
}

// InstallCertificate sends a InstallCertificate request to dest.
func (n *Node) InstallCertificate(ctx context.Context, dest domain.StationID, req InstallCertificateRequest, opts ...Option) (*Response[InstallCertificateResponse], error) {
	return Send[InstallCertificateRequest, InstallCertificateResponse](ctx, n, dest, req, opts...)
}

// GetInstalledCertificateIDs sends a GetInstalledCertificateIDs request to dest.
func (n *Node) GetInstalledCertificateIDs(ctx context.Context, dest domain.StationID, req GetInstalledCertificateIDsRequest, opts ...Option) (*Response[GetInstalledCertificateIDsResponse], error) {
	return Send[GetInstalledCertificateIDsRequest, GetInstalledCertificateIDsResponse](ctx, n, dest, req, opts...)
}

// DeleteCertificate sends a DeleteCertificate request to dest.
func (n *Node) DeleteCertificate(ctx context.Context, dest domain.StationID, req DeleteCertificateRequest, opts ...Option) (*Response[DeleteCertificateResponse], error) {
	return Send[DeleteCertificateRequest, DeleteCertificateResponse](ctx, n, dest, req, opts...)
}

// GetLocalListVersion sends a GetLocalListVersion request to dest.
func (n *Node) GetLocalListVersion(ctx context.Context, dest domain.StationID, req GetLocalListVersionRequest, opts ...Option) (*Response[GetLocalListVersionResponse], error) {
	return Send[GetLocalListVersionRequest, GetLocalListVersionResponse](ctx, n, dest, req, opts...)
}

// SendLocalList sends a SendLocalList request to dest.
func (n *Node) SendLocalList(ctx context.Context, dest domain.StationID, req SendLocalListRequest, opts ...Option) (*Response[SendLocalListResponse], error) {
	return Send[SendLocalListRequest, SendLocalListResponse](ctx, n, dest, req, opts...)
}

// ClearCache sends a ClearCache request to dest.
func (n *Node) ClearCache(ctx context.Context, dest domain.StationID, req ClearCacheRequest, opts ...Option) (*Response[ClearCacheResponse], error) {
	return Send[ClearCacheRequest, ClearCacheResponse](ctx, n, dest, req, opts...)
}

// ReserveNow reserves an EVSE for an id token.
func (n *Node) ReserveNow(ctx context.Context, dest domain.StationID, req ReserveNowRequest, opts ...Option) (*Response[ReserveNowResponse], error) {
	return Send[ReserveNowRequest, ReserveNowResponse](ctx, n, dest, req, opts...)
}

// CancelReservation sends a CancelReservation request to dest.
func (n *Node) CancelReservation(ctx context.Context, dest domain.StationID, req CancelReservationRequest, opts ...Option) (*Response[CancelReservationResponse], error) {
	return Send[CancelReservationRequest, CancelReservationResponse](ctx, n, dest, req, opts...)
}

// RequestStartTransaction starts a transaction remotely.
func (n *Node) RequestStartTransaction(ctx context.Context, dest domain.StationID, req RequestStartTransactionRequest, opts ...Option) (*Response[RequestStartTransactionResponse], error) {
	return Send[RequestStartTransactionRequest, RequestStartTransactionResponse](ctx, n, dest, req, opts...)
}

// RequestStopTransaction stops a transaction remotely.
func (n *Node) RequestStopTransaction(ctx context.Context, dest domain.StationID, req RequestStopTransactionRequest, opts ...Option) (*Response[RequestStopTransactionResponse], error) {
	return Send[RequestStopTransactionRequest, RequestStopTransactionResponse](ctx, n, dest, req, opts...)
}

// GetTransactionStatus sends a GetTransactionStatus request to dest.
func (n *Node) GetTransactionStatus(ctx context.Context, dest domain.StationID, req GetTransactionStatusRequest, opts ...Option) (*Response[GetTransactionStatusResponse], error) {
	return Send[GetTransactionStatusRequest, GetTransactionStatusResponse](ctx, n, dest, req, opts...)
}

// SetChargingProfile installs a charging profile.
func (n *Node) SetChargingProfile(ctx context.Context, dest domain.StationID, req SetChargingProfileRequest, opts ...Option) (*Response[SetChargingProfileResponse], error) {
	return Send[SetChargingProfileRequest, SetChargingProfileResponse](ctx, n, dest, req, opts...)
}

// GetChargingProfiles sends a GetChargingProfiles request to dest.
func (n *Node) GetChargingProfiles(ctx context.Context, dest domain.StationID, req GetChargingProfilesRequest, opts ...Option) (*Response[GetChargingProfilesResponse], error) {
	return Send[GetChargingProfilesRequest, GetChargingProfilesResponse](ctx, n, dest, req, opts...)
}

// ClearChargingProfile sends a ClearChargingProfile request to dest.
func (n *Node) ClearChargingProfile(ctx context.Context, dest domain.StationID, req ClearChargingProfileRequest, opts ...Option) (*Response[ClearChargingProfileResponse], error) {
	return Send[ClearChargingProfileRequest, ClearChargingProfileResponse](ctx, n, dest, req, opts...)
}

// GetCompositeSchedule sends a GetCompositeSchedule request to dest.
func (n *Node) GetCompositeSchedule(ctx context.Context, dest domain.StationID, req GetCompositeScheduleRequest, opts ...Option) (*Response[GetCompositeScheduleResponse], error) {
	return Send[GetCompositeScheduleRequest, GetCompositeScheduleResponse](ctx, n, dest, req, opts...)
}

// UnlockConnector sends a UnlockConnector request to dest.
func (n *Node) UnlockConnector(ctx context.Context, dest domain.StationID, req UnlockConnectorRequest, opts ...Option) (*Response[UnlockConnectorResponse], error) {
	return Send[UnlockConnectorRequest, UnlockConnectorResponse](ctx, n, dest, req, opts...)
}

// SetDisplayMessage sends a SetDisplayMessage request to dest.
func (n *Node) SetDisplayMessage(ctx context.Context, dest domain.StationID, req SetDisplayMessageRequest, opts ...Option) (*Response[SetDisplayMessageResponse], error) {
	return Send[SetDisplayMessageRequest, SetDisplayMessageResponse](ctx, n, dest, req, opts...)
}

// GetDisplayMessages sends a GetDisplayMessages request to dest.
func (n *Node) GetDisplayMessages(ctx context.Context, dest domain.StationID, req GetDisplayMessagesRequest, opts ...Option) (*Response[GetDisplayMessagesResponse], error) {
	return Send[GetDisplayMessagesRequest, GetDisplayMessagesResponse](ctx, n, dest, req, opts...)
}

// ClearDisplayMessage sends a ClearDisplayMessage request to dest.
func (n *Node) ClearDisplayMessage(ctx context.Context, dest domain.StationID, req ClearDisplayMessageRequest, opts ...Option) (*Response[ClearDisplayMessageResponse], error) {
	return Send[ClearDisplayMessageRequest, ClearDisplayMessageResponse](ctx, n, dest, req, opts...)
}

// CostUpdated reports the running cost of a transaction.
func (n *Node) CostUpdated(ctx context.Context, dest domain.StationID, req CostUpdatedRequest, opts ...Option) (*Response[CostUpdatedResponse], error) {
	return Send[CostUpdatedRequest, CostUpdatedResponse](ctx, n, dest, req, opts...)
}

// CustomerInformation sends a CustomerInformation request to dest.
func (n *Node) CustomerInformation(ctx context.Context, dest domain.StationID, req CustomerInformationRequest, opts ...Option) (*Response[CustomerInformationResponse], error) {
	return Send[CustomerInformationRequest, CustomerInformationResponse](ctx, n, dest, req, opts...)
}
