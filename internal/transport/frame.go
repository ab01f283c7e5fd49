// Package transport carries OCPP-J frames between the management node and its stations.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/resident-x/go-csms/internal/command"
)

// MessageType is the first element of an OCPP-J frame.
type MessageType int

const (
	MessageTypeCall       MessageType = 2
	MessageTypeCallResult MessageType = 3
	MessageTypeCallError  MessageType = 4
)

// String returns the frame type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeCall:
		return "CALL"
	case MessageTypeCallResult:
		return "CALLRESULT"
	case MessageTypeCallError:
		return "CALLERROR"
	default:
		return "UNKNOWN"
	}
}

// Error codes of CALLERROR frames.
const (
	ErrorCodeNotImplemented        = "NotImplemented"
	ErrorCodeNotSupported          = "NotSupported"
	ErrorCodeInternalError         = "InternalError"
	ErrorCodeProtocolError         = "ProtocolError"
	ErrorCodeSecurityError         = "SecurityError"
	ErrorCodeFormationViolation    = "FormationViolation"
	ErrorCodePropertyConstraint    = "PropertyConstraintViolation"
	ErrorCodeOccurrenceConstraint  = "OccurrenceConstraintViolation"
	ErrorCodeTypeConstraint        = "TypeConstraintViolation"
	ErrorCodeGenericError          = "GenericError"
	ErrorCodeMessageTypeNotSupport = "MessageTypeNotSupported"
	ErrorCodeRPCFrameworkError     = "RpcFrameworkError"
)

// ErrMalformedFrame is returned for input that is not a valid OCPP-J frame.
var ErrMalformedFrame = errors.New("malformed frame")

// Routing is the optional trailing element of a CALL that travels through networking nodes or
// carries signatures.
type Routing struct {
	Destination string              `json:"destination"`
	NetworkPath []string            `json:"networkPath,omitempty"`
	Signatures  []command.Signature `json:"signatures,omitempty"`
}

// Frame is a decoded OCPP-J message.
type Frame struct {
	Type    MessageType
	ID      string
	Action  string
	Payload json.RawMessage
	Routing *Routing

	ErrorCode        string
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

// CallError is the error returned to a caller whose request was answered with a CALLERROR.
type CallError struct {
	Code        string
	Description string
	Details     json.RawMessage
}

func (e *CallError) Error() string {
	if e.Description == "" {
		return "call error " + e.Code
	}
	return fmt.Sprintf("call error %s: %s", e.Code, e.Description)
}

// EncodeCall renders a CALL frame. A non-nil routing is appended as a fifth element.
func EncodeCall(id, action string, payload any, routing *Routing) ([]byte, error) {
	body, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	frame := []any{MessageTypeCall, id, action, body}
	if routing != nil {
		frame = append(frame, routing)
	}
	return json.Marshal(frame)
}

// EncodeCallResult renders a CALLRESULT frame.
func EncodeCallResult(id string, payload any) ([]byte, error) {
	body, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]any{MessageTypeCallResult, id, body})
}

// EncodeCallError renders a CALLERROR frame.
func EncodeCallError(id, code, description string, details any) ([]byte, error) {
	if details == nil {
		details = struct{}{}
	}
	return json.Marshal([]any{MessageTypeCallError, id, code, description, details})
}

// DecodeFrame parses an OCPP-J frame.
func DecodeFrame(data []byte) (Frame, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(parts) < 3 {
		return Frame{}, fmt.Errorf("%w: %d elements", ErrMalformedFrame, len(parts))
	}

	var f Frame
	if err := json.Unmarshal(parts[0], &f.Type); err != nil {
		return Frame{}, fmt.Errorf("%w: message type: %v", ErrMalformedFrame, err)
	}
	if err := json.Unmarshal(parts[1], &f.ID); err != nil || f.ID == "" {
		return Frame{}, fmt.Errorf("%w: message id", ErrMalformedFrame)
	}

	switch f.Type {
	case MessageTypeCall:
		if len(parts) < 4 || len(parts) > 5 {
			return Frame{}, fmt.Errorf("%w: CALL has %d elements", ErrMalformedFrame, len(parts))
		}
		if err := json.Unmarshal(parts[2], &f.Action); err != nil || f.Action == "" {
			return Frame{}, fmt.Errorf("%w: action", ErrMalformedFrame)
		}
		f.Payload = parts[3]
		if len(parts) == 5 {
			f.Routing = &Routing{}
			if err := json.Unmarshal(parts[4], f.Routing); err != nil {
				return Frame{}, fmt.Errorf("%w: routing: %v", ErrMalformedFrame, err)
			}
		}
	case MessageTypeCallResult:
		f.Payload = parts[2]
	case MessageTypeCallError:
		if len(parts) < 4 {
			return Frame{}, fmt.Errorf("%w: CALLERROR has %d elements", ErrMalformedFrame, len(parts))
		}
		if err := json.Unmarshal(parts[2], &f.ErrorCode); err != nil {
			return Frame{}, fmt.Errorf("%w: error code", ErrMalformedFrame)
		}
		if err := json.Unmarshal(parts[3], &f.ErrorDescription); err != nil {
			return Frame{}, fmt.Errorf("%w: error description", ErrMalformedFrame)
		}
		if len(parts) > 4 {
			f.ErrorDetails = parts[4]
		}
	default:
		return Frame{}, fmt.Errorf("%w: unsupported message type %d", ErrMalformedFrame, f.Type)
	}

	return f, nil
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage("{}"), nil
		}
		return raw, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return body, nil
}
