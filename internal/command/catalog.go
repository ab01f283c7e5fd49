package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/resident-x/go-csms/internal/domain"
)

// ErrUnknownAction is returned by the catalog for an action it has no invoker for.
var ErrUnknownAction = errors.New("unknown action")

// Invoker decodes a JSON request, sends it and encodes the decoded reply.
type Invoker func(ctx context.Context, n *Node, dest domain.StationID, raw json.RawMessage, opts ...Option) (json.RawMessage, error)

// Catalog maps action names to invokers for callers that only hold JSON, such as the HTTP API
// and the scheduler.
type Catalog struct {
	invokers map[string]Invoker
}

// NewCatalog returns a catalog with every outbound action registered.
func NewCatalog() *Catalog {
	c := &Catalog{invokers: make(map[string]Invoker)}
	register[ResetRequest, ResetResponse](c)
	register[UpdateFirmwareRequest, UpdateFirmwareResponse](c)
	register[PublishFirmwareRequest, PublishFirmwareResponse](c)
	register[UnpublishFirmwareRequest, UnpublishFirmwareResponse](c)
	register[GetBaseReportRequest, GetBaseReportResponse](c)
	register[GetReportRequest, GetReportResponse](c)
	register[GetLogRequest, GetLogResponse](c)
	register[SetVariablesRequest, SetVariablesResponse](c)
	register[GetVariablesRequest, GetVariablesResponse](c)
	register[SetMonitoringBaseRequest, SetMonitoringBaseResponse](c)
	register[SetMonitoringLevelRequest, SetMonitoringLevelResponse](c)
	register[SetVariableMonitoringRequest, SetVariableMonitoringResponse](c)
	register[ClearVariableMonitoringRequest, ClearVariableMonitoringResponse](c)
	register[GetMonitoringReportRequest, GetMonitoringReportResponse](c)
	register[SetNetworkProfileRequest, SetNetworkProfileResponse](c)
	register[ChangeAvailabilityRequest, ChangeAvailabilityResponse](c)
	register[TriggerMessageRequest, TriggerMessageResponse](c)
	register[DataTransferRequest, DataTransferResponse](c)
	register[CertificateSignedRequest, CertificateSignedResponse](c)
	register[InstallCertificateRequest, InstallCertificateResponse](c)
	register[GetInstalledCertificateIDsRequest, GetInstalledCertificateIDsResponse](c)
	register[DeleteCertificateRequest, DeleteCertificateResponse](c)
	register[GetLocalListVersionRequest, GetLocalListVersionResponse](c)
	register[SendLocalListRequest, SendLocalListResponse](c)
	register[ClearCacheRequest, ClearCacheResponse](c)
	register[ReserveNowRequest, ReserveNowResponse](c)
	register[CancelReservationRequest, CancelReservationResponse](c)
	register[RequestStartTransactionRequest, RequestStartTransactionResponse](c)
	register[RequestStopTransactionRequest, RequestStopTransactionResponse](c)
	register[GetTransactionStatusRequest, GetTransactionStatusResponse](c)
	register[SetChargingProfileRequest, SetChargingProfileResponse](c)
	register[GetChargingProfilesRequest, GetChargingProfilesResponse](c)
	register[ClearChargingProfileRequest, ClearChargingProfileResponse](c)
	register[GetCompositeScheduleRequest, GetCompositeScheduleResponse](c)
	register[UnlockConnectorRequest, UnlockConnectorResponse](c)
	register[SetDisplayMessageRequest, SetDisplayMessageResponse](c)
	register[GetDisplayMessagesRequest, GetDisplayMessagesResponse](c)
	register[ClearDisplayMessageRequest, ClearDisplayMessageResponse](c)
	register[CostUpdatedRequest, CostUpdatedResponse](c)
	register[CustomerInformationRequest, CustomerInformationResponse](c)
	return c
}

func register[Req Payload, Resp any](c *Catalog) {
	var zero Req
	c.invokers[zero.Action()] = func(ctx context.Context, n *Node, dest domain.StationID, raw json.RawMessage, opts ...Option) (json.RawMessage, error) {
		var req Req
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRequest, zero.Action(), err)
			}
		}
		resp, err := Send[Req, Resp](ctx, n, dest, req, opts...)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp.Payload)
	}
}

// Has reports whether action is known.
func (c *Catalog) Has(action string) bool {
	_, ok := c.invokers[action]
	return ok
}

// Actions returns the known action names in alphabetical order.
func (c *Catalog) Actions() []string {
	out := make([]string, 0, len(c.invokers))
	for action := range c.invokers {
		out = append(out, action)
	}
	sort.Strings(out)
	return out
}

// Invoke sends the JSON request raw as action to dest.
func (c *Catalog) Invoke(ctx context.Context, n *Node, action string, dest domain.StationID, raw json.RawMessage, opts ...Option) (json.RawMessage, error) {
	inv, ok := c.invokers[action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	return inv(ctx, n, dest, raw, opts...)
}
