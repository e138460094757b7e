// Copyright 2025 Certen Protocol
//
// Encoded Payload Codec Tests

package codec

import (
	"bytes"
	"errors"
	"math/bits"
	"testing"
)

func TestRoundtripBoundarySizes(t *testing.T) {
	for _, size := range []int{0, 1, 30, 31, 32, 61, 62, 63, 100, 512, 1000, 2048} {
		rawPayload := make([]byte, size)
		for i := range rawPayload {
			rawPayload[i] = byte(i % 256)
		}

		encoded, err := Encode(rawPayload)
		if err != nil {
			t.Fatalf("size %d: encode failed: %v", size, err)
		}
		recovered, err := Decode(encoded)
		if err != nil {
			t.Fatalf("size %d: decode failed: %v", size, err)
		}
		if !bytes.Equal(rawPayload, recovered) {
			t.Errorf("size %d: roundtrip mismatch", size)
		}
	}
}

func TestEncodedPayloadShape(t *testing.T) {
	for _, size := range []int{0, 1, 31, 32, 100, 2048} {
		encoded, err := Encode(make([]byte, size))
		if err != nil {
			t.Fatalf("size %d: encode failed: %v", size, err)
		}
		if encoded[0] != GuardByte || encoded[1] != PayloadEncodingVersion0 {
			t.Errorf("size %d: header prefix mismatch: % x", size, encoded[:2])
		}
		if len(encoded)%BytesPerSymbol != 0 {
			t.Errorf("size %d: encoded length %d not a multiple of 32", size, len(encoded))
		}
		symbols := len(encoded) / BytesPerSymbol
		if bits.OnesCount(uint(symbols)) != 1 {
			t.Errorf("size %d: symbol count %d not a power of two", size, symbols)
		}
	}
}

func TestDecodeMinimalPayload(t *testing.T) {
	// A 32-byte all-zero header is a valid encoded payload of length 0.
	decoded, err := Decode(make([]byte, 32))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(decoded))
	}
}

func TestDecodeTooShortForHeader(t *testing.T) {
	for _, size := range []int{1, 2, 5, 9, 16, 31} {
		_, err := Decode(make([]byte, size))
		if !errors.Is(err, ErrEncodedPayloadTooShortForHeader) {
			t.Errorf("size %d: expected ErrEncodedPayloadTooShortForHeader, got %v", size, err)
		}
	}
}

func TestDecodeRejectsBadLengths(t *testing.T) {
	// not a multiple of 32
	for _, size := range []int{33, 50, 63, 100, 129, 1000} {
		_, err := Decode(make([]byte, size))
		if !errors.Is(err, ErrInvalidLengthEncodedPayload) {
			t.Errorf("size %d: expected ErrInvalidLengthEncodedPayload, got %v", size, err)
		}
	}

	// multiples of 32 whose symbol count is not a power of two
	for _, size := range []int{96, 224} {
		_, err := Decode(make([]byte, size))
		if !errors.Is(err, ErrInvalidPowerOfTwoLength) {
			t.Errorf("size %d: expected ErrInvalidPowerOfTwoLength, got %v", size, err)
		}
	}
}

func TestDecodeRejectsHeaderCorruption(t *testing.T) {
	// guard byte
	encoded := make([]byte, 32)
	encoded[0] = 0x01
	if _, err := Decode(encoded); !errors.Is(err, ErrInvalidHeaderFirstByte) {
		t.Errorf("expected ErrInvalidHeaderFirstByte, got %v", err)
	}

	// version byte
	encoded = make([]byte, 32)
	encoded[1] = 0x01
	if _, err := Decode(encoded); !errors.Is(err, ErrUnknownEncodingVersion) {
		t.Errorf("expected ErrUnknownEncodingVersion, got %v", err)
	}

	// header padding, at every offset
	for offset := 6; offset < 32; offset++ {
		encoded = make([]byte, 32)
		encoded[offset] = 0x42
		if _, err := Decode(encoded); !errors.Is(err, ErrInvalidEncodedPayloadHeaderPadding) {
			t.Errorf("offset %d: expected ErrInvalidEncodedPayloadHeaderPadding, got %v", offset, err)
		}
	}
}

func TestDecodeRejectsBodyCorruption(t *testing.T) {
	rawPayload := []byte{1, 1, 1, 1, 1}

	// symbol guard byte
	encoded, err := Encode(rawPayload)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	encoded[HeaderLen] = 0x99
	if _, err := Decode(encoded); !errors.Is(err, ErrInvalidFirstByteFieldElement) {
		t.Errorf("expected ErrInvalidFirstByteFieldElement, got %v", err)
	}

	// padding inside the last used symbol
	encoded, _ = Encode(rawPayload)
	encoded[HeaderLen+1+10] = 0xAB
	if _, err := Decode(encoded); !errors.Is(err, ErrInvalidEncodedPayloadBodyPadding) {
		t.Errorf("expected ErrInvalidEncodedPayloadBodyPadding, got %v", err)
	}

	// trailing padding in the power-of-two expansion
	encoded, _ = Encode(rawPayload)
	encoded[len(encoded)-1] = 0xCD
	if _, err := Decode(encoded); !errors.Is(err, ErrInvalidEncodedPayloadBodyPadding) {
		t.Errorf("expected ErrInvalidEncodedPayloadBodyPadding, got %v", err)
	}
}

func TestDecodeBodyTooShortForClaimedLength(t *testing.T) {
	// A 128-byte encoded payload can carry at most 3*31 = 93 body bytes,
	// so a header claiming 100 bytes must be rejected.
	encoded := make([]byte, 128)
	encoded[2] = 0
	encoded[3] = 0
	encoded[4] = 0
	encoded[5] = 100
	if _, err := Decode(encoded); !errors.Is(err, ErrDecodedPayloadBodyTooShort) {
		t.Errorf("expected ErrDecodedPayloadBodyTooShort, got %v", err)
	}
}
