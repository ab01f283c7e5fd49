package transport

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sigurn/crc16"
)

// Binary framing wraps an OCPP-J frame for peers that negotiate the "+crc" subprotocol:
//
//	0      2        3        4       6        8
//	| 0001 | version | type | length | sequence | OCPP-J bytes ... | CRC16 (LE) |
//
// The checksum is CRC-16/MODBUS over header and body.
const (
	binaryHeaderLen = 8
	binaryCRCLen    = 2
	binaryVersion   = 0x01

	// maxBinaryBody is the largest OCPP-J frame the 16-bit length field can describe.
	maxBinaryBody = 0xFFFF
)

// ErrFrameTooLarge is returned for frames that do not fit a binary frame.
var ErrFrameTooLarge = errors.New("frame body too long")

// BinarySubprotocol marks websocket peers that exchange CRC protected binary frames.
const BinarySubprotocol = "ocpp2.0.1+crc"

// BinaryCodec encodes and validates CRC protected frames.
type BinaryCodec struct {
	crcTable *crc16.Table
}

// NewBinaryCodec creates a codec using the Modbus CRC16 parameters
// (poly 0x8005 reflected, init 0xFFFF).
func NewBinaryCodec() *BinaryCodec {
	return &BinaryCodec{crcTable: crc16.MakeTable(crc16.CRC16_MODBUS)}
}

// Encode wraps an OCPP-J frame.
func (c *BinaryCodec) Encode(msgType MessageType, sequence uint16, body []byte) ([]byte, error) {
	if len(body) > maxBinaryBody {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}

	out := make([]byte, binaryHeaderLen, binaryHeaderLen+len(body)+binaryCRCLen)
	out[0] = 0x00
	out[1] = 0x01
	out[2] = binaryVersion
	out[3] = byte(msgType)
	binary.BigEndian.PutUint16(out[4:6], uint16(len(body)))
	binary.BigEndian.PutUint16(out[6:8], sequence)
	out = append(out, body...)

	crc := crc16.Checksum(out, c.crcTable)
	return append(out, byte(crc&0xFF), byte(crc>>8)), nil
}

// BinaryFrameInfo is the decoded header of a binary frame.
type BinaryFrameInfo struct {
	Type     MessageType
	Sequence uint16
	BodyLen  int
}

// Decode validates a binary frame and returns the embedded OCPP-J bytes.
func (c *BinaryCodec) Decode(data []byte) (BinaryFrameInfo, []byte, error) {
	if len(data) < binaryHeaderLen+binaryCRCLen {
		return BinaryFrameInfo{}, nil, fmt.Errorf("%w: binary frame too short: %d bytes", ErrMalformedFrame, len(data))
	}
	if data[0] != 0x00 || data[1] != 0x01 {
		return BinaryFrameInfo{}, nil, fmt.Errorf("%w: bad magic %s", ErrMalformedFrame, hex.EncodeToString(data[:2]))
	}
	if data[2] != binaryVersion {
		return BinaryFrameInfo{}, nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedFrame, data[2])
	}

	dataPart := data[:len(data)-binaryCRCLen]
	receivedCRC := uint16(data[len(data)-2]) | uint16(data[len(data)-1])<<8
	calculatedCRC := crc16.Checksum(dataPart, c.crcTable)
	if receivedCRC != calculatedCRC {
		return BinaryFrameInfo{}, nil, fmt.Errorf("%w: CRC validation failed: expected 0x%04X, got 0x%04X", ErrMalformedFrame, receivedCRC, calculatedCRC)
	}

	info := BinaryFrameInfo{
		Type:     MessageType(data[3]),
		BodyLen:  int(binary.BigEndian.Uint16(data[4:6])),
		Sequence: binary.BigEndian.Uint16(data[6:8]),
	}
	body := dataPart[binaryHeaderLen:]
	if len(body) != info.BodyLen {
		return BinaryFrameInfo{}, nil, fmt.Errorf("%w: body length %d, header says %d", ErrMalformedFrame, len(body), info.BodyLen)
	}

	return info, body, nil
}
