package protocol

import (
	"bytes"
	"testing"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{
		0,
		1,
		-1,
		31,
		32,
		127,
		-127,
		128,
		-128,
		255,
		1000,
		-1000,
		65535,
		1000000,
		-1000000,
		2147483647,
		-2147483648,
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("decode failed for %d: %v", expected, err)
			continue
		}

		if decoded != expected {
			t.Errorf("roundtrip mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}

		if len(data) != 0 {
			t.Errorf("decode left %d bytes for value %d", len(data), expected)
		}
	}
}

func TestVLQEncodeDecodeUint(t *testing.T) {
	testCases := []uint32{
		0,
		1,
		127,
		128,
		255,
		1000,
		65535,
		1000000,
		4294967295,
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQUint(output, expected)

		data := output.Result()
		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("decode failed for %d: %v", expected, err)
			continue
		}

		if decoded != expected {
			t.Errorf("roundtrip mismatch: expected %d, got %d", expected, decoded)
		}
	}
}

func TestVLQSmallValuesSingleByte(t *testing.T) {
	// Values a flash command actually carries should stay compact
	for _, v := range []uint32{0, 3, 32, 63} {
		output := NewScratchOutput()
		EncodeVLQUint(output, v)
		if len(output.Result()) != 1 {
			t.Errorf("value %d encoded to %d bytes, want 1", v, len(output.Result()))
		}
	}
}

func TestVLQDecodeTruncated(t *testing.T) {
	// Continuation bit set but no continuation byte
	data := []byte{0x81}
	if _, err := DecodeVLQUint(&data); err != ErrBufferTooSmall {
		t.Errorf("expected ErrBufferTooSmall, got %v", err)
	}

	empty := []byte{}
	if _, err := DecodeVLQUint(&empty); err != ErrBufferTooSmall {
		t.Errorf("expected ErrBufferTooSmall on empty input, got %v", err)
	}
}

func TestVLQBytesRoundtrip(t *testing.T) {
	payload := []byte{0x10, 0x00, 0x7E, 0xFF}

	output := NewScratchOutput()
	EncodeVLQBytes(output, payload)

	data := output.Result()
	decoded, err := DecodeVLQBytes(&data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Errorf("expected %v, got %v", payload, decoded)
	}
	if len(data) != 0 {
		t.Errorf("decode left %d bytes", len(data))
	}
}

func TestVLQBytesTruncated(t *testing.T) {
	// Length prefix claims more bytes than are present
	data := []byte{5, 1, 2}
	if _, err := DecodeVLQBytes(&data); err != ErrBufferTooSmall {
		t.Errorf("expected ErrBufferTooSmall, got %v", err)
	}
}
