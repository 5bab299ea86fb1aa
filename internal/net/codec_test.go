package net

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x00, 0xAA, 0xBB, 0xCC}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	wire := buf.Bytes()
	if got, want := binary.LittleEndian.Uint16(wire[:2]), uint16(len(payload)+2); got != want {
		t.Fatalf("header length = %d, want %d", got, want)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %x, want %x", got, payload)
	}
}

func TestReadFrameRejectsShortLength(t *testing.T) {
	for _, total := range []uint16{0, 1, 2, 3} {
		var buf bytes.Buffer
		var header [2]byte
		binary.LittleEndian.PutUint16(header[:], total)
		buf.Write(header[:])
		buf.Write(make([]byte, 4))

		if _, err := ReadFrame(&buf); err == nil {
			t.Errorf("total length %d: expected error", total)
		}
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	var header [2]byte
	binary.LittleEndian.PutUint16(header[:], 10)
	buf.Write(header[:])
	buf.Write([]byte{0x01, 0x02}) // 2 of 8 promised bytes

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected error on truncated payload")
	}
}
