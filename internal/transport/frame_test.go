package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resident-x/go-csms/internal/command"
)

func TestEncodeCall(t *testing.T) {
	data, err := EncodeCall("42", "Reset", command.ResetRequest{Type: "Immediate"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[2,"42","Reset",{"type":"Immediate"}]`, string(data))

	frame, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeCall, frame.Type)
	assert.Equal(t, "42", frame.ID)
	assert.Equal(t, "Reset", frame.Action)
	assert.JSONEq(t, `{"type":"Immediate"}`, string(frame.Payload))
	assert.Nil(t, frame.Routing)
}

func TestEncodeCallWithRouting(t *testing.T) {
	routing := &Routing{
		Destination: "CS1",
		NetworkPath: []string{"LC1", "LC2"},
		Signatures:  []command.Signature{{KeyID: "k1", Algorithm: "Ed25519", Value: "c2ln"}},
	}
	data, err := EncodeCall("7", "ClearCache", command.ClearCacheRequest{}, routing)
	require.NoError(t, err)

	frame, err := DecodeFrame(data)
	require.NoError(t, err)
	require.NotNil(t, frame.Routing)
	assert.Equal(t, "CS1", frame.Routing.Destination)
	assert.Equal(t, []string{"LC1", "LC2"}, frame.Routing.NetworkPath)
	require.Len(t, frame.Routing.Signatures, 1)
	assert.Equal(t, "k1", frame.Routing.Signatures[0].KeyID)
}

func TestEncodeCallResultAndError(t *testing.T) {
	data, err := EncodeCallResult("1", json.RawMessage(`{"status":"Accepted"}`))
	require.NoError(t, err)
	frame, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeCallResult, frame.Type)
	assert.JSONEq(t, `{"status":"Accepted"}`, string(frame.Payload))

	data, err = EncodeCallResult("2", json.RawMessage(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `[3,"2",{}]`, string(data))

	data, err = EncodeCallError("3", ErrorCodeNotImplemented, "nope", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[4,"3","NotImplemented","nope",{}]`, string(data))

	frame, err = DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeCallError, frame.Type)
	assert.Equal(t, ErrorCodeNotImplemented, frame.ErrorCode)
	assert.Equal(t, "nope", frame.ErrorDescription)
}

func TestDecodeFrameErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `hello`},
		{"not an array", `{"a":1}`},
		{"too short", `[2,"1"]`},
		{"bad type", `["x","1","Reset",{}]`},
		{"empty id", `[2,"","Reset",{}]`},
		{"call without payload", `[2,"1","Reset"]`},
		{"call too long", `[2,"1","Reset",{},{},{}]`},
		{"empty action", `[2,"1","",{}]`},
		{"bad routing", `[2,"1","Reset",{},"x"]`},
		{"short error", `[4,"1","GenericError"]`},
		{"unknown type", `[9,"1",{}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame([]byte(tt.input))
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestCallErrorMessage(t *testing.T) {
	assert.Equal(t, "call error GenericError", (&CallError{Code: ErrorCodeGenericError}).Error())
	assert.Equal(t, "call error NotSupported: no", (&CallError{Code: ErrorCodeNotSupported, Description: "no"}).Error())
	assert.Equal(t, "CALL", MessageTypeCall.String())
	assert.Equal(t, "UNKNOWN", MessageType(7).String())
}
