package boundplot

import (
	"encoding/binary"
	"math"
	"reflect"
	"strings"
	"testing"
)

// TestEncodeDecodeEnvelopeHeader tests envelope header encoding and decoding round-trip
func TestEncodeDecodeEnvelopeHeader(t *testing.T) {
	tests := []struct {
		name string
		env  EnvelopeHeader
	}{
		{
			name: "basic envelope",
			env:  EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeCurve, Length: 1024},
		},
		{
			name: "zero length payload",
			env:  EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeControls},
		},
		{
			name: "envelope with reserved bytes",
			env: EnvelopeHeader{
				Version:  ProtocolVersion,
				Reserved: [2]byte{0xAB, 0xCD},
				Type:     MessageTypeFigure,
				Length:   512,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeEnvelopeHeader(tt.env)
			if len(encoded) != EnvelopeHeaderSize {
				t.Errorf("encoded header size = %d, want %d", len(encoded), EnvelopeHeaderSize)
			}

			decoded, err := DecodeEnvelopeHeader(encoded)
			if err != nil {
				t.Fatalf("DecodeEnvelopeHeader() error = %v", err)
			}
			if decoded != tt.env {
				t.Errorf("decoded = %+v, want %+v", decoded, tt.env)
			}
		})
	}
}

func TestEnvelopeHeaderLayout(t *testing.T) {
	encoded := EncodeEnvelopeHeader(EnvelopeHeader{Version: 1, Type: MessageTypeInputError, Length: 0x01020304})
	want := []byte{1, 0, 0, 0x04, 0x04, 0x03, 0x02, 0x01}
	if !reflect.DeepEqual(encoded, want) {
		t.Fatalf("encoded = % x, want % x", encoded, want)
	}
}

func TestDecodeEnvelopeHeaderTooShort(t *testing.T) {
	_, err := DecodeEnvelopeHeader([]byte{1, 0, 0})
	if err == nil || !strings.Contains(err.Error(), "buffer too short") {
		t.Fatalf("expected buffer too short error, got %v", err)
	}
}

func TestEncodeDecodeCurveMessage(t *testing.T) {
	msg := CurveMessage{
		CurveID: 1,
		Length:  4,
		Y:       []float64{0.5, math.Inf(1), -2.25, math.SmallestNonzeroFloat64},
	}

	encoded, err := EncodeCurveMessage(msg)
	if err != nil {
		t.Fatalf("EncodeCurveMessage() error = %v", err)
	}
	if len(encoded) != 8+4*8 {
		t.Fatalf("encoded size = %d, want %d", len(encoded), 8+4*8)
	}
	if id := binary.LittleEndian.Uint32(encoded[0:4]); id != 1 {
		t.Fatalf("CurveID bytes = %d", id)
	}

	decoded, err := DecodeCurveMessage(encoded)
	if err != nil {
		t.Fatalf("DecodeCurveMessage() error = %v", err)
	}
	if !reflect.DeepEqual(decoded, msg) {
		t.Fatalf("decoded = %+v, want %+v", decoded, msg)
	}
}

func TestCurveMessageErrors(t *testing.T) {
	t.Run("LengthMismatch", func(t *testing.T) {
		_, err := EncodeCurveMessage(CurveMessage{Length: 3, Y: []float64{1}})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("TooShort", func(t *testing.T) {
		_, err := DecodeCurveMessage([]byte{0, 0, 0})
		if err == nil || !strings.Contains(err.Error(), "buffer too short for CURVE message") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		buf := make([]byte, 8+8)
		binary.LittleEndian.PutUint32(buf[4:8], 2)
		_, err := DecodeCurveMessage(buf)
		if err == nil || !strings.Contains(err.Error(), "buffer size mismatch") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestEncodeDecodeJSONMessages(t *testing.T) {
	figure := newTestFigure()

	tests := []struct {
		name string
		msg  WSMessage
	}{
		{name: "figure", msg: NewWSMessage(MessageTypeFigure, figure.FigureMessage())},
		{name: "controls", msg: NewWSMessage(MessageTypeControls, figure.ControlState())},
		{
			name: "input error",
			msg: NewWSMessage(MessageTypeInputError, InputErrorMessage{
				Curve: ThesisCurveName,
				Param: "C1",
				Text:  "abc",
				Msg:   "not a number",
			}),
		},
		{name: "curve", msg: NewCurveWSMessage(figure.Curves[1])},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeWSMessage(tt.msg)
			if err != nil {
				t.Fatalf("EncodeWSMessage() error = %v", err)
			}

			header, _ := DecodeEnvelopeHeader(encoded)
			if int(header.Length) != len(encoded)-EnvelopeHeaderSize {
				t.Fatalf("header length = %d, payload is %d bytes", header.Length, len(encoded)-EnvelopeHeaderSize)
			}

			decoded, err := DecodeWSMessage(encoded)
			if err != nil {
				t.Fatalf("DecodeWSMessage() error = %v", err)
			}
			if decoded.Header.Type != tt.msg.Header.Type {
				t.Fatalf("type = 0x%02x, want 0x%02x", decoded.Header.Type, tt.msg.Header.Type)
			}
			if !reflect.DeepEqual(decoded.Payload, tt.msg.Payload) {
				t.Fatalf("payload = %+v, want %+v", decoded.Payload, tt.msg.Payload)
			}
		})
	}
}

func TestEncodeWSMessageErrors(t *testing.T) {
	t.Run("PayloadTypeMismatch", func(t *testing.T) {
		_, err := EncodeWSMessage(NewWSMessage(MessageTypeCurve, ControlState{}))
		if err == nil || !strings.Contains(err.Error(), "payload type mismatch") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := EncodeWSMessage(NewWSMessage(0x7f, nil))
		if err == nil || !strings.Contains(err.Error(), "unknown message type") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestDecodeWSMessageErrors(t *testing.T) {
	t.Run("UnknownType", func(t *testing.T) {
		buf := EncodeEnvelopeHeader(EnvelopeHeader{Version: ProtocolVersion, Type: 0x7f})
		if _, err := DecodeWSMessage(buf); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("TruncatedPayload", func(t *testing.T) {
		encoded, err := EncodeWSMessage(NewWSMessage(MessageTypeControls, ControlState{}))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := DecodeWSMessage(encoded[:len(encoded)-1]); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("BadJSON", func(t *testing.T) {
		payload := []byte{2, 0, 0, 0, '{', '{'}
		buf := append(EncodeEnvelopeHeader(EnvelopeHeader{
			Version: ProtocolVersion,
			Type:    MessageTypeInputError,
			Length:  uint32(len(payload)),
		}), payload...)
		if _, err := DecodeWSMessage(buf); err == nil {
			t.Fatal("expected error")
		}
	})
}
