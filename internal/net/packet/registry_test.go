package packet

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func buildPacket(opcode uint16) []byte {
	return NewWriterWithOpcode(opcode).Bytes()
}

func TestRegistry_Dispatch(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	called := 0
	reg.Register(COpcodeChat, "ClientChat", ConnWorld,
		[]Stage{StageInWorld},
		func(sess any, r *Reader) error {
			called++
			return nil
		},
	)

	if err := reg.Dispatch(nil, ConnWorld, StageInWorld, buildPacket(COpcodeChat)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if called != 1 {
		t.Errorf("handler called %d times, want 1", called)
	}
}

func TestRegistry_OutOfStageDropped(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	called := 0
	reg.Register(COpcodeChat, "ClientChat", ConnWorld,
		[]Stage{StageInWorld},
		func(sess any, r *Reader) error {
			called++
			return nil
		},
	)

	// Out-of-stage opcode is dropped, never fatal.
	if err := reg.Dispatch(nil, ConnWorld, StageAuthenticated, buildPacket(COpcodeChat)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if called != 0 {
		t.Error("handler must not run out of stage")
	}
}

func TestRegistry_Accounting(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	reg.Register(COpcodeItemMove, "ClientItemMove", ConnWorld,
		[]Stage{StageInWorld}, nil) // known but unhandled
	reg.Register(COpcodeMove, "ClientMove", ConnWorld,
		[]Stage{StageInWorld},
		func(sess any, r *Reader) error {
			return errors.New("bad payload")
		},
	)

	reg.Dispatch(nil, ConnWorld, StageInWorld, buildPacket(0x7777))         // unknown
	reg.Dispatch(nil, ConnWorld, StageInWorld, buildPacket(COpcodeItemMove)) // unhandled
	reg.Dispatch(nil, ConnWorld, StageInWorld, buildPacket(COpcodeMove))     // handler error

	if unk, _, _ := reg.Stats().Count(0x7777); unk != 1 {
		t.Errorf("unknown count = %d, want 1", unk)
	}
	if _, unh, _ := reg.Stats().Count(COpcodeItemMove); unh != 1 {
		t.Errorf("unhandled count = %d, want 1", unh)
	}
	if _, _, errs := reg.Stats().Count(COpcodeMove); errs != 1 {
		t.Errorf("handler error count = %d, want 1", errs)
	}
}

func TestRegistry_PanicRecovered(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(COpcodeMove, "ClientMove", ConnWorld,
		[]Stage{StageInWorld},
		func(sess any, r *Reader) error {
			panic("boom")
		},
	)

	// Must not propagate the panic.
	if err := reg.Dispatch(nil, ConnWorld, StageInWorld, buildPacket(COpcodeMove)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, _, errs := reg.Stats().Count(COpcodeMove); errs != 1 {
		t.Errorf("panic not recorded as handler error, count = %d", errs)
	}
}
