package boundplot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Protocol constants
const (
	// ProtocolVersion is the current version of the websocket protocol
	ProtocolVersion byte = 1

	// Message type constants (server to client)
	MessageTypeFigure     byte = 0x01
	MessageTypeCurve      byte = 0x02
	MessageTypeControls   byte = 0x03
	MessageTypeInputError byte = 0x04

	// Header size in bytes
	EnvelopeHeaderSize = 8
)

// EnvelopeHeader represents the message envelope header
type EnvelopeHeader struct {
	Version  byte
	Reserved [2]byte // Reserved for future use
	Type     byte
	Length   uint32 // Payload length in bytes
}

// CurveMessage represents a CURVE message payload (type 0x02). The x values
// are the figure domain and are only sent once, in the FIGURE message.
type CurveMessage struct {
	CurveID uint32
	Length  uint32    // Number of Y values
	Y       []float64 // Y values
}

// WSMessage represents a complete websocket message with header and payload
type WSMessage struct {
	Header  EnvelopeHeader
	Payload interface{} // One of: FigureMessage, CurveMessage, ControlState, InputErrorMessage
}

// NewWSMessage wraps a payload with a header of the given type.
func NewWSMessage(messageType byte, payload interface{}) WSMessage {
	return WSMessage{
		Header: EnvelopeHeader{
			Version: ProtocolVersion,
			Type:    messageType,
		},
		Payload: payload,
	}
}

// NewCurveWSMessage builds the CURVE message for the current values of c.
func NewCurveWSMessage(c *BoundCurve) WSMessage {
	return NewWSMessage(MessageTypeCurve, CurveMessage{
		CurveID: c.ID,
		Length:  uint32(len(c.Y)),
		Y:       append([]float64(nil), c.Y...),
	})
}

// EncodeEnvelopeHeader encodes the envelope header into a byte slice
func EncodeEnvelopeHeader(env EnvelopeHeader) []byte {
	buf := make([]byte, EnvelopeHeaderSize)
	buf[0] = env.Version
	buf[1] = env.Reserved[0]
	buf[2] = env.Reserved[1]
	buf[3] = env.Type
	binary.LittleEndian.PutUint32(buf[4:8], env.Length)
	return buf
}

// DecodeEnvelopeHeader decodes the envelope header from a byte slice
// Returns the envelope and an error if the buffer is too short
func DecodeEnvelopeHeader(buf []byte) (EnvelopeHeader, error) {
	if len(buf) < EnvelopeHeaderSize {
		return EnvelopeHeader{}, fmt.Errorf("buffer too short: expected at least %d bytes, got %d", EnvelopeHeaderSize, len(buf))
	}

	env := EnvelopeHeader{
		Version: buf[0],
		Type:    buf[3],
		Length:  binary.LittleEndian.Uint32(buf[4:8]),
	}
	env.Reserved[0] = buf[1]
	env.Reserved[1] = buf[2]

	return env, nil
}

// EncodeCurveMessage encodes a CURVE message payload
// Returns error if the Length field doesn't match the Y array
func EncodeCurveMessage(msg CurveMessage) ([]byte, error) {
	if uint32(len(msg.Y)) != msg.Length {
		return nil, fmt.Errorf("Length field (%d) doesn't match array length (%d)", msg.Length, len(msg.Y))
	}

	// Calculate payload size: CurveID(4) + Length(4) + Y array
	payloadSize := 8 + (msg.Length * 8)
	buf := make([]byte, payloadSize)

	binary.LittleEndian.PutUint32(buf[0:4], msg.CurveID)
	binary.LittleEndian.PutUint32(buf[4:8], msg.Length)

	offset := 8
	for _, y := range msg.Y {
		binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(y))
		offset += 8
	}

	return buf, nil
}

// DecodeCurveMessage decodes a CURVE message payload
func DecodeCurveMessage(buf []byte) (CurveMessage, error) {
	if len(buf) < 8 {
		return CurveMessage{}, fmt.Errorf("buffer too short for CURVE message: expected at least 8 bytes, got %d", len(buf))
	}

	msg := CurveMessage{
		CurveID: binary.LittleEndian.Uint32(buf[0:4]),
		Length:  binary.LittleEndian.Uint32(buf[4:8]),
	}

	// Validate buffer size
	expectedSize := 8 + uint64(msg.Length)*8
	if uint64(len(buf)) != expectedSize {
		return CurveMessage{}, fmt.Errorf("buffer size mismatch: expected %d bytes for %d values, got %d", expectedSize, msg.Length, len(buf))
	}

	msg.Y = make([]float64, msg.Length)
	offset := 8
	for i := uint32(0); i < msg.Length; i++ {
		bits := binary.LittleEndian.Uint64(buf[offset : offset+8])
		msg.Y[i] = math.Float64frombits(bits)
		offset += 8
	}

	return msg, nil
}

// encodeJSONPayload is shared by every JSON bodied message.
// Payload: JSON Length (4 bytes) + JSON data
func encodeJSONPayload(name string, v interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	buf := make([]byte, 4+len(jsonData))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(jsonData)))
	copy(buf[4:], jsonData)

	return buf, nil
}

func decodeJSONPayload[T any](name string, buf []byte) (T, error) {
	var v T
	if len(buf) < 4 {
		return v, fmt.Errorf("buffer too short for %s message: expected at least 4 bytes, got %d", name, len(buf))
	}

	jsonLength := binary.LittleEndian.Uint32(buf[0:4])

	// Validate buffer size
	expectedSize := 4 + uint64(jsonLength)
	if uint64(len(buf)) != expectedSize {
		return v, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", expectedSize, len(buf))
	}

	if err := json.Unmarshal(buf[4:], &v); err != nil {
		return v, fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}

	return v, nil
}

// EncodeFigureMessage encodes a FIGURE message payload
func EncodeFigureMessage(msg FigureMessage) ([]byte, error) {
	return encodeJSONPayload("figure", msg)
}

// DecodeFigureMessage decodes a FIGURE message payload
func DecodeFigureMessage(buf []byte) (FigureMessage, error) {
	return decodeJSONPayload[FigureMessage]("FIGURE", buf)
}

// EncodeControlsMessage encodes a CONTROLS message payload
func EncodeControlsMessage(state ControlState) ([]byte, error) {
	return encodeJSONPayload("controls", state)
}

// DecodeControlsMessage decodes a CONTROLS message payload
func DecodeControlsMessage(buf []byte) (ControlState, error) {
	return decodeJSONPayload[ControlState]("CONTROLS", buf)
}

// EncodeInputErrorMessage encodes an INPUT_ERROR message payload
func EncodeInputErrorMessage(msg InputErrorMessage) ([]byte, error) {
	return encodeJSONPayload("input error", msg)
}

// DecodeInputErrorMessage decodes an INPUT_ERROR message payload
func DecodeInputErrorMessage(buf []byte) (InputErrorMessage, error) {
	return decodeJSONPayload[InputErrorMessage]("INPUT_ERROR", buf)
}

// EncodeWSMessage encodes a WSMessage into a complete message byte slice
// Returns error if payload encoding fails or if payload type is invalid
func EncodeWSMessage(msg WSMessage) ([]byte, error) {
	var payload []byte
	var err error

	// Encode payload based on message type
	switch msg.Header.Type {
	case MessageTypeFigure:
		figure, ok := msg.Payload.(FigureMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected FigureMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeFigureMessage(figure)
	case MessageTypeCurve:
		curve, ok := msg.Payload.(CurveMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected CurveMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeCurveMessage(curve)
	case MessageTypeControls:
		state, ok := msg.Payload.(ControlState)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected ControlState for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeControlsMessage(state)
	case MessageTypeInputError:
		inputErr, ok := msg.Payload.(InputErrorMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected InputErrorMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeInputErrorMessage(inputErr)
	default:
		return nil, fmt.Errorf("unknown message type: 0x%02x", msg.Header.Type)
	}

	if err != nil {
		return nil, err
	}

	// Update header length to match actual payload size
	msg.Header.Length = uint32(len(payload))

	header := EncodeEnvelopeHeader(msg.Header)

	fullMsg := make([]byte, len(header)+len(payload))
	copy(fullMsg, header)
	copy(fullMsg[len(header):], payload)

	return fullMsg, nil
}

// DecodeWSMessage decodes a complete message (envelope + payload) into a WSMessage
// Returns error if buffer is too short or payload decoding fails
func DecodeWSMessage(buf []byte) (WSMessage, error) {
	env, err := DecodeEnvelopeHeader(buf)
	if err != nil {
		return WSMessage{}, err
	}

	// Validate full message size
	expectedSize := EnvelopeHeaderSize + uint64(env.Length)
	if uint64(len(buf)) < expectedSize {
		return WSMessage{}, fmt.Errorf("buffer too short: expected %d bytes (header + payload), got %d", expectedSize, len(buf))
	}

	payloadBytes := buf[EnvelopeHeaderSize:expectedSize]

	var payload interface{}
	switch env.Type {
	case MessageTypeFigure:
		payload, err = DecodeFigureMessage(payloadBytes)
	case MessageTypeCurve:
		payload, err = DecodeCurveMessage(payloadBytes)
	case MessageTypeControls:
		payload, err = DecodeControlsMessage(payloadBytes)
	case MessageTypeInputError:
		payload, err = DecodeInputErrorMessage(payloadBytes)
	default:
		return WSMessage{}, fmt.Errorf("unknown message type: 0x%02x", env.Type)
	}

	if err != nil {
		return WSMessage{}, err
	}

	return WSMessage{
		Header:  env,
		Payload: payload,
	}, nil
}
