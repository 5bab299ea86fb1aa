package net

import (
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/net/packet"
)

func testOptions() SessionOptions {
	return SessionOptions{
		InQueueSize:  16,
		OutQueueSize: 16,
		WriteTimeout: time.Second,
	}
}

func newPipeSession(t *testing.T, opts SessionOptions) (*Session, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	s := NewSession(server, 1, packet.ConnWorld, opts, zap.NewNop())
	s.Start()
	t.Cleanup(func() {
		s.Close()
		client.Close()
	})
	return s, client
}

func TestSessionReceivesFrames(t *testing.T) {
	s, client := newPipeSession(t, testOptions())

	payload := []byte{0x20, 0x00, 0x01, 0x02, 0x03}
	go WriteFrame(client, payload)

	select {
	case got := <-s.InQueue:
		if len(got) != len(payload) {
			t.Fatalf("got %d bytes, want %d", len(got), len(payload))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for inbound frame")
	}
}

func TestSessionSendWritesFrame(t *testing.T) {
	s, client := newPipeSession(t, testOptions())

	payload := []byte{0x20, 0x80, 0xFF}
	s.Send(payload)

	done := make(chan []byte, 1)
	go func() {
		got, err := ReadFrame(client)
		if err != nil {
			return
		}
		done <- got
	}()

	select {
	case got := <-done:
		if len(got) != len(payload) {
			t.Fatalf("got %d bytes, want %d", len(got), len(payload))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound frame")
	}
}

func TestSessionBackpressureDisconnects(t *testing.T) {
	opts := testOptions()
	opts.OutQueueSize = 1
	s, _ := newPipeSession(t, opts)

	// The pipe peer never reads: the writer blocks on the first packet,
	// the queue holds the second, the third overflows.
	for i := 0; i < 8; i++ {
		s.Send([]byte{0x20, 0x80, byte(i)})
	}

	deadline := time.After(2 * time.Second)
	for !s.IsClosed() {
		select {
		case <-deadline:
			t.Fatal("session not closed under backpressure")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSessionStageTransitions(t *testing.T) {
	s, _ := newPipeSession(t, testOptions())

	if got := s.Stage(); got != packet.StageUnauthenticated {
		t.Fatalf("initial stage = %v", got)
	}
	s.SetStage(packet.StageInWorld)
	if got := s.Stage(); got != packet.StageInWorld {
		t.Fatalf("stage = %v, want InWorld", got)
	}
	s.Close()
	if got := s.Stage(); got != packet.StageDisconnecting {
		t.Fatalf("stage after close = %v, want Disconnecting", got)
	}
}
