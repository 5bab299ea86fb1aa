package packet

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriterReader_Primitives(t *testing.T) {
	w := NewWriter()
	w.WriteC(0xAB)
	w.WriteH(0x1234)
	w.WriteD(-42)
	w.WriteDU(0xDEADBEEF)
	w.WriteQ(0x1122334455667788)
	w.WriteF(3.5)

	r := NewRawReader(w.Bytes())
	if got := r.ReadC(); got != 0xAB {
		t.Errorf("ReadC() = %#x, want 0xAB", got)
	}
	if got := r.ReadH(); got != 0x1234 {
		t.Errorf("ReadH() = %#x, want 0x1234", got)
	}
	if got := r.ReadD(); got != -42 {
		t.Errorf("ReadD() = %d, want -42", got)
	}
	if got := r.ReadDU(); got != 0xDEADBEEF {
		t.Errorf("ReadDU() = %#x, want 0xDEADBEEF", got)
	}
	if got := r.ReadQ(); got != 0x1122334455667788 {
		t.Errorf("ReadQ() = %#x", got)
	}
	if got := r.ReadF(); got != 3.5 {
		t.Errorf("ReadF() = %v, want 3.5", got)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", r.Remaining())
	}
}

func TestWideString_Hello(t *testing.T) {
	// "Hello": first byte (5<<1)|0 = 0x0A, then UTF-16LE code units.
	w := NewWriter()
	w.WriteString("Hello")

	want := []byte{0x0A, 0x48, 0x00, 0x65, 0x00, 0x6C, 0x00, 0x6C, 0x00, 0x6F, 0x00}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("encoded = % X, want % X", w.Bytes(), want)
	}

	r := NewRawReader(w.Bytes())
	if got := r.ReadString(); got != "Hello" {
		t.Errorf("ReadString() = %q, want %q", got, "Hello")
	}
}

func TestWideString_Empty(t *testing.T) {
	w := NewWriter()
	w.WriteString("")
	if !bytes.Equal(w.Bytes(), []byte{0x00}) {
		t.Fatalf("encoded = % X, want 00", w.Bytes())
	}
	r := NewRawReader(w.Bytes())
	if got := r.ReadString(); got != "" {
		t.Errorf("ReadString() = %q, want empty", got)
	}
}

func TestWideString_Multibyte(t *testing.T) {
	for _, s := range []string{"天堂", "König", "データ"} {
		w := NewWriter()
		w.WriteString(s)
		r := NewRawReader(w.Bytes())
		if got := r.ReadString(); got != s {
			t.Errorf("round trip %q = %q", s, got)
		}
	}
}

func TestWideString_Boundary127And128(t *testing.T) {
	s127 := strings.Repeat("a", 127)
	w := NewWriter()
	w.WriteString(s127)
	// Short form: single length byte (127<<1)|0 = 0xFE.
	if w.Bytes()[0] != 0xFE {
		t.Errorf("short form length byte = %#x, want 0xFE", w.Bytes()[0])
	}
	if got := len(w.Bytes()); got != 1+127*2 {
		t.Errorf("short form size = %d, want %d", got, 1+127*2)
	}
	r := NewRawReader(w.Bytes())
	if got := r.ReadString(); got != s127 {
		t.Error("length-127 round trip mismatch")
	}

	s128 := strings.Repeat("b", 128)
	w = NewWriter()
	w.WriteString(s128)
	// Extended form: 16 length bits (128<<1)|1 = 0x0101 LSB-first → 01 01.
	if w.Bytes()[0] != 0x01 || w.Bytes()[1] != 0x01 {
		t.Errorf("extended form length bytes = %#x %#x, want 0x01 0x01", w.Bytes()[0], w.Bytes()[1])
	}
	if got := len(w.Bytes()); got != 2+128*2 {
		t.Errorf("extended form size = %d, want %d", got, 2+128*2)
	}
	r = NewRawReader(w.Bytes())
	if got := r.ReadString(); got != s128 {
		t.Error("length-128 round trip mismatch")
	}
}

func TestBits_FlushOnByteRead(t *testing.T) {
	w := NewWriter()
	w.WriteBits(0x5, 3)
	w.WriteC(0x77) // aligns: leftover 5 bits padded with zeros

	if len(w.Bytes()) != 2 {
		t.Fatalf("len = %d, want 2", len(w.Bytes()))
	}
	if w.Bytes()[0] != 0x05 {
		t.Errorf("bit byte = %#x, want 0x05", w.Bytes()[0])
	}

	r := NewRawReader(w.Bytes())
	if got := r.ReadBits(3); got != 0x5 {
		t.Errorf("ReadBits(3) = %#x, want 0x5", got)
	}
	// Byte read after bit reads flushes the remainder of the byte.
	if got := r.ReadC(); got != 0x77 {
		t.Errorf("ReadC() after bits = %#x, want 0x77", got)
	}
}

func TestBits_SignedRoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 12345, -12345, 1<<30 - 1, -(1 << 30)} {
		w := NewWriter()
		w.WriteBitsSigned(v, 32)
		r := NewRawReader(w.Bytes())
		if got := r.ReadBitsSigned(32); got != v {
			t.Errorf("signed 32-bit round trip %d = %d", v, got)
		}
	}
	w := NewWriter()
	w.WriteBitsSigned(-3, 14)
	r := NewRawReader(w.Bytes())
	if got := r.ReadBitsSigned(14); got != -3 {
		t.Errorf("signed 14-bit round trip -3 = %d", got)
	}
}

func TestDragDrop(t *testing.T) {
	dd := DragDrop(LocBag, 5)
	if dd != 0x0105 {
		t.Errorf("DragDrop(bag, 5) = %#x, want 0x0105", dd)
	}
	if DragDropLocation(dd) != LocBag {
		t.Errorf("location = %d, want %d", DragDropLocation(dd), LocBag)
	}
	if DragDropSlot(dd) != 5 {
		t.Errorf("slot = %d, want 5", DragDropSlot(dd))
	}
}

func TestServerItemMove_ExactBytes(t *testing.T) {
	p := ServerItemMove{ItemGUID: 12345, Location: LocBag, Slot: 5}
	got := p.Encode()[2:] // strip opcode header

	want := []byte{
		0x39, 0x30, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // guid 12345 LE
		0x05, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // (1<<8)|5 LE
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("payload = % X, want % X", got, want)
	}

	back := DecodeServerItemMove(NewReader(p.Encode()))
	if back != p {
		t.Errorf("decode(encode) = %+v, want %+v", back, p)
	}
}

func TestServerItemSwap_RoundTrip(t *testing.T) {
	p := ServerItemSwap{
		From: ItemDragDrop{ItemGUID: 0xA1B2C3D4E5F60718, Location: LocEquipped, Slot: 3},
		To:   ItemDragDrop{ItemGUID: 42, Location: LocBank, Slot: 17},
	}
	back := DecodeServerItemSwap(NewReader(p.Encode()))
	if back != p {
		t.Errorf("decode(encode) = %+v, want %+v", back, p)
	}
}

func TestServerChat_RoundTrip(t *testing.T) {
	p := ServerChat{
		Channel:    ChatWhisper,
		SenderGUID: 0x1000000000000001,
		SenderName: "Tarja",
		Message:    "meet at the arkship 集合",
	}
	back := DecodeServerChat(NewReader(p.Encode()))
	if back != p {
		t.Errorf("decode(encode) = %+v, want %+v", back, p)
	}
}

func TestClientChat_RoundTrip(t *testing.T) {
	p := ClientChat{Channel: ChatSay, Target: "", Message: "hi"}
	back := DecodeClientChat(NewReader(p.Encode()))
	if back != p {
		t.Errorf("decode(encode) = %+v, want %+v", back, p)
	}
}

func TestQuestPackets_RoundTrip(t *testing.T) {
	add := ServerQuestAdd{QuestID: 900, Objectives: []uint16{12, 0, 65535}}
	gotAdd := DecodeServerQuestAdd(NewReader(add.Encode()))
	if gotAdd.QuestID != add.QuestID || len(gotAdd.Objectives) != 3 ||
		gotAdd.Objectives[2] != 65535 {
		t.Errorf("quest add round trip = %+v", gotAdd)
	}

	upd := ServerQuestUpdate{QuestID: 900, State: QuestStateAccepted, ObjectiveIndex: 1, Current: 7}
	if got := DecodeServerQuestUpdate(NewReader(upd.Encode())); got != upd {
		t.Errorf("quest update round trip = %+v", got)
	}

	rem := ServerQuestRemove{QuestID: 900, Reason: QuestRemoveCompleted}
	if got := DecodeServerQuestRemove(NewReader(rem.Encode())); got != rem {
		t.Errorf("quest remove round trip = %+v", got)
	}
}

func TestServerTelegraph_RoundTrip(t *testing.T) {
	p := ServerTelegraph{
		CasterGUID: 0x2000000000000007,
		SpellID:    31001,
		Shape:      ShapeCone,
		X:          104.5, Y: -3.25, Z: 880,
		Rotation:   1.5707964,
		DurationMs: 2500,
		Color:      1,
		Params:     []float32{45, 25},
	}
	back := DecodeServerTelegraph(NewReader(p.Encode()))
	if back.CasterGUID != p.CasterGUID || back.Shape != p.Shape ||
		back.Rotation != p.Rotation || len(back.Params) != 2 ||
		back.Params[0] != 45 || back.Params[1] != 25 {
		t.Errorf("decode(encode) = %+v", back)
	}

	room := ServerTelegraph{CasterGUID: 1, SpellID: 2, Shape: ShapeRoomWide, DurationMs: 1000}
	backRoom := DecodeServerTelegraph(NewReader(room.Encode()))
	if len(backRoom.Params) != 0 {
		t.Errorf("room_wide params = %v, want none", backRoom.Params)
	}
}

func TestServerItemVisualUpdate_RoundTrip(t *testing.T) {
	p := ServerItemVisualUpdate{
		PlayerGUID: 7777,
		Visuals: []ItemVisual{
			{Slot: 127, DisplayID: 32767, ColourSet: 16383, DyeData: -1},
			{Slot: 0, DisplayID: 0, ColourSet: 0, DyeData: 0},
			{Slot: 3, DisplayID: 1205, ColourSet: 41, DyeData: -99887766},
		},
	}
	back := DecodeServerItemVisualUpdate(NewReader(p.Encode()))
	if back.PlayerGUID != p.PlayerGUID {
		t.Fatalf("player guid = %d, want %d", back.PlayerGUID, p.PlayerGUID)
	}
	if len(back.Visuals) != len(p.Visuals) {
		t.Fatalf("count = %d, want %d", len(back.Visuals), len(p.Visuals))
	}
	for i := range p.Visuals {
		if back.Visuals[i] != p.Visuals[i] {
			t.Errorf("visual[%d] = %+v, want %+v", i, back.Visuals[i], p.Visuals[i])
		}
	}
}

func TestBuffPackets_RoundTrip(t *testing.T) {
	apply := ServerBuffApply{
		TargetGUID: 0x1000000000000002,
		CasterGUID: 0x2000000000000009,
		BuffID:     55, SpellID: 31002, BuffType: 2,
		Amount: -150, Duration: 8000, IsDebuff: 1,
	}
	if got := DecodeServerBuffApply(NewReader(apply.Encode())); got != apply {
		t.Errorf("buff apply round trip = %+v", got)
	}

	remove := ServerBuffRemove{TargetGUID: 9, BuffID: 55, Reason: BuffRemoveExpired}
	if got := DecodeServerBuffRemove(NewReader(remove.Encode())); got != remove {
		t.Errorf("buff remove round trip = %+v", got)
	}
}

func TestServerPlayerDeath_RoundTrip(t *testing.T) {
	p := ServerPlayerDeath{PlayerGUID: 0x1000000000000004, KillerGUID: 0, DeathType: DeathFall}
	if got := DecodeServerPlayerDeath(NewReader(p.Encode())); got != p {
		t.Errorf("death round trip = %+v", got)
	}
}
