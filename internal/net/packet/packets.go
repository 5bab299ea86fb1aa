package packet

// Wire-level constants. These values are part of the fixed client protocol
// and must not change.

// Inventory location tags for drag-drop encoding: (tag << 8) | slot.
const (
	LocEquipped uint16 = 0
	LocBag      uint16 = 1
	LocBank     uint16 = 2
	LocTrade    uint16 = 3
)

// Chat channels.
const (
	ChatSay     uint32 = 0
	ChatYell    uint32 = 1
	ChatWhisper uint32 = 2
	ChatSystem  uint32 = 3
	ChatEmote   uint32 = 4
	ChatParty   uint32 = 5
	ChatZone    uint32 = 7
)

// Chat send results.
const (
	ChatResultSuccess            uint32 = 0
	ChatResultPlayerNotFound     uint32 = 1
	ChatResultPlayerOffline      uint32 = 2
	ChatResultMuted              uint32 = 3
	ChatResultChannelUnavailable uint32 = 4
	ChatResultMessageTooLong     uint32 = 5
	ChatResultRateLimited        uint32 = 6
)

// Quest states for ServerQuestUpdate.
const (
	QuestStateAccepted byte = 0
	QuestStateComplete byte = 1
	QuestStateFailed   byte = 2
)

// Quest removal reasons.
const (
	QuestRemoveAbandoned byte = 0
	QuestRemoveCompleted byte = 1
	QuestRemoveFailed    byte = 2
)

// Buff removal reasons.
const (
	BuffRemoveExpired   byte = 1
	BuffRemoveDispelled byte = 2
	BuffRemoveCanceled  byte = 3
)

// Death types for ServerPlayerDeath.
const (
	DeathCombat      uint32 = 0
	DeathFall        uint32 = 1
	DeathDrown       uint32 = 2
	DeathEnvironment uint32 = 3
)

// Telegraph shape tags.
const (
	ShapeCircle   byte = 0
	ShapeCone     byte = 1
	ShapeLine     byte = 2
	ShapeDonut    byte = 3
	ShapeCross    byte = 4
	ShapeRoomWide byte = 5
	ShapeWave     byte = 6
)

// DragDrop packs an inventory location into the client's drag-drop format.
func DragDrop(location uint16, slot byte) uint64 {
	return uint64(location)<<8 | uint64(slot)
}

// DragDropLocation extracts the location tag from a drag-drop value.
func DragDropLocation(v uint64) uint16 { return uint16(v >> 8) }

// DragDropSlot extracts the slot from a drag-drop value.
func DragDropSlot(v uint64) byte { return byte(v) }

// ItemDragDrop is one (guid, drag-drop) pair inside an item packet.
type ItemDragDrop struct {
	ItemGUID uint64
	Location uint16
	Slot     byte
}

func (p ItemDragDrop) encode(w *Writer) {
	w.WriteQ(p.ItemGUID)
	w.WriteQ(DragDrop(p.Location, p.Slot))
}

func decodeItemDragDrop(r *Reader) ItemDragDrop {
	guid := r.ReadQ()
	dd := r.ReadQ()
	return ItemDragDrop{ItemGUID: guid, Location: DragDropLocation(dd), Slot: DragDropSlot(dd)}
}

// ServerItemMove notifies the client that an item moved to a new slot.
type ServerItemMove struct {
	ItemGUID uint64
	Location uint16
	Slot     byte
}

func (p ServerItemMove) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeItemMove)
	ItemDragDrop{ItemGUID: p.ItemGUID, Location: p.Location, Slot: p.Slot}.encode(w)
	return w.Bytes()
}

func DecodeServerItemMove(r *Reader) ServerItemMove {
	dd := decodeItemDragDrop(r)
	return ServerItemMove{ItemGUID: dd.ItemGUID, Location: dd.Location, Slot: dd.Slot}
}

// ServerItemSwap notifies the client that two items exchanged slots.
type ServerItemSwap struct {
	From ItemDragDrop
	To   ItemDragDrop
}

func (p ServerItemSwap) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeItemSwap)
	p.From.encode(w)
	p.To.encode(w)
	return w.Bytes()
}

func DecodeServerItemSwap(r *Reader) ServerItemSwap {
	return ServerItemSwap{From: decodeItemDragDrop(r), To: decodeItemDragDrop(r)}
}

// ServerChat carries one chat line to the client.
type ServerChat struct {
	Channel    uint32
	SenderGUID uint64
	SenderName string
	Message    string
}

func (p ServerChat) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeChat)
	w.WriteDU(p.Channel)
	w.WriteQ(p.SenderGUID)
	w.WriteString(p.SenderName)
	w.WriteString(p.Message)
	return w.Bytes()
}

func DecodeServerChat(r *Reader) ServerChat {
	return ServerChat{
		Channel:    r.ReadDU(),
		SenderGUID: r.ReadQ(),
		SenderName: r.ReadString(),
		Message:    r.ReadString(),
	}
}

// ClientChat is an outgoing chat line from the client. Target is empty for
// non-whisper channels.
type ClientChat struct {
	Channel uint32
	Target  string
	Message string
}

func (p ClientChat) Encode() []byte {
	w := NewWriterWithOpcode(COpcodeChat)
	w.WriteDU(p.Channel)
	w.WriteString(p.Target)
	w.WriteString(p.Message)
	return w.Bytes()
}

func DecodeClientChat(r *Reader) ClientChat {
	return ClientChat{
		Channel: r.ReadDU(),
		Target:  r.ReadString(),
		Message: r.ReadString(),
	}
}

// ServerChatResult reports the outcome of a chat send.
type ServerChatResult struct {
	Result  uint32
	Channel uint32
}

func (p ServerChatResult) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeChatResult)
	w.WriteDU(p.Result)
	w.WriteDU(p.Channel)
	return w.Bytes()
}

func DecodeServerChatResult(r *Reader) ServerChatResult {
	return ServerChatResult{Result: r.ReadDU(), Channel: r.ReadDU()}
}

// ServerQuestAdd announces a new quest with its objective targets.
type ServerQuestAdd struct {
	QuestID    uint32
	Objectives []uint16
}

func (p ServerQuestAdd) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeQuestAdd)
	w.WriteDU(p.QuestID)
	w.WriteC(byte(len(p.Objectives)))
	for _, target := range p.Objectives {
		w.WriteH(target)
	}
	return w.Bytes()
}

func DecodeServerQuestAdd(r *Reader) ServerQuestAdd {
	p := ServerQuestAdd{QuestID: r.ReadDU()}
	n := int(r.ReadC())
	p.Objectives = make([]uint16, 0, n)
	for i := 0; i < n; i++ {
		p.Objectives = append(p.Objectives, r.ReadH())
	}
	return p
}

// ServerQuestUpdate reports progress on one objective.
type ServerQuestUpdate struct {
	QuestID        uint32
	State          byte
	ObjectiveIndex byte
	Current        uint16
}

func (p ServerQuestUpdate) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeQuestUpdate)
	w.WriteDU(p.QuestID)
	w.WriteC(p.State)
	w.WriteC(p.ObjectiveIndex)
	w.WriteH(p.Current)
	return w.Bytes()
}

func DecodeServerQuestUpdate(r *Reader) ServerQuestUpdate {
	return ServerQuestUpdate{
		QuestID:        r.ReadDU(),
		State:          r.ReadC(),
		ObjectiveIndex: r.ReadC(),
		Current:        r.ReadH(),
	}
}

// ServerQuestRemove removes a quest from the client's log.
type ServerQuestRemove struct {
	QuestID uint32
	Reason  byte
}

func (p ServerQuestRemove) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeQuestRemove)
	w.WriteDU(p.QuestID)
	w.WriteC(p.Reason)
	return w.Bytes()
}

func DecodeServerQuestRemove(r *Reader) ServerQuestRemove {
	return ServerQuestRemove{QuestID: r.ReadDU(), Reason: r.ReadC()}
}

// ServerTelegraph displays a telegraphed damage shape. Params is the
// shape-specific parameter list, in declaration order:
//
//	circle:    radius
//	cone:      angle_degrees, length
//	line:      width, length
//	donut:     inner_radius, outer_radius
//	cross:     width, length
//	room_wide: (none)
//	wave:      width, speed
type ServerTelegraph struct {
	CasterGUID uint64
	SpellID    uint32
	Shape      byte
	X, Y, Z    float32
	Rotation   float32
	DurationMs uint32
	Color      byte
	Params     []float32
}

// shapeParamCount maps a shape tag to its parameter count on the wire.
func shapeParamCount(shape byte) int {
	switch shape {
	case ShapeCircle:
		return 1
	case ShapeCone, ShapeLine, ShapeDonut, ShapeCross, ShapeWave:
		return 2
	case ShapeRoomWide:
		return 0
	default:
		return 0
	}
}

func (p ServerTelegraph) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeTelegraph)
	w.WriteQ(p.CasterGUID)
	w.WriteDU(p.SpellID)
	w.WriteC(p.Shape)
	w.WriteF(p.X)
	w.WriteF(p.Y)
	w.WriteF(p.Z)
	w.WriteF(p.Rotation)
	w.WriteDU(p.DurationMs)
	w.WriteC(p.Color)
	for i := 0; i < shapeParamCount(p.Shape); i++ {
		var v float32
		if i < len(p.Params) {
			v = p.Params[i]
		}
		w.WriteF(v)
	}
	return w.Bytes()
}

func DecodeServerTelegraph(r *Reader) ServerTelegraph {
	p := ServerTelegraph{
		CasterGUID: r.ReadQ(),
		SpellID:    r.ReadDU(),
		Shape:      r.ReadC(),
	}
	p.X = r.ReadF()
	p.Y = r.ReadF()
	p.Z = r.ReadF()
	p.Rotation = r.ReadF()
	p.DurationMs = r.ReadDU()
	p.Color = r.ReadC()
	n := shapeParamCount(p.Shape)
	if n > 0 {
		p.Params = make([]float32, n)
		for i := range p.Params {
			p.Params[i] = r.ReadF()
		}
	}
	return p
}

// ItemVisual is one bit-packed equipment visual entry.
type ItemVisual struct {
	Slot      byte   // 7 bits
	DisplayID uint16 // 15 bits
	ColourSet uint16 // 14 bits
	DyeData   int32  // signed 32 bits
}

// ServerItemVisualUpdate updates a player's visible equipment. The entry
// list is one continuous bit stream, byte-aligned only at the end.
type ServerItemVisualUpdate struct {
	PlayerGUID uint32
	Visuals    []ItemVisual
}

func (p ServerItemVisualUpdate) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeItemVisualUpdate)
	w.WriteDU(p.PlayerGUID)
	w.WriteC(byte(len(p.Visuals)))
	for _, v := range p.Visuals {
		w.WriteBits(uint32(v.Slot), 7)
		w.WriteBits(uint32(v.DisplayID), 15)
		w.WriteBits(uint32(v.ColourSet), 14)
		w.WriteBitsSigned(v.DyeData, 32)
	}
	w.Align()
	return w.Bytes()
}

func DecodeServerItemVisualUpdate(r *Reader) ServerItemVisualUpdate {
	p := ServerItemVisualUpdate{PlayerGUID: r.ReadDU()}
	n := int(r.ReadC())
	p.Visuals = make([]ItemVisual, 0, n)
	for i := 0; i < n; i++ {
		p.Visuals = append(p.Visuals, ItemVisual{
			Slot:      byte(r.ReadBits(7)),
			DisplayID: uint16(r.ReadBits(15)),
			ColourSet: uint16(r.ReadBits(14)),
			DyeData:   r.ReadBitsSigned(32),
		})
	}
	r.Align()
	return p
}

// ServerBuffApply applies a buff or debuff to a target.
type ServerBuffApply struct {
	TargetGUID uint64
	CasterGUID uint64
	BuffID     uint32
	SpellID    uint32
	BuffType   byte
	Amount     int32
	Duration   uint32
	IsDebuff   byte
}

func (p ServerBuffApply) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeBuffApply)
	w.WriteQ(p.TargetGUID)
	w.WriteQ(p.CasterGUID)
	w.WriteDU(p.BuffID)
	w.WriteDU(p.SpellID)
	w.WriteC(p.BuffType)
	w.WriteD(p.Amount)
	w.WriteDU(p.Duration)
	w.WriteC(p.IsDebuff)
	return w.Bytes()
}

func DecodeServerBuffApply(r *Reader) ServerBuffApply {
	return ServerBuffApply{
		TargetGUID: r.ReadQ(),
		CasterGUID: r.ReadQ(),
		BuffID:     r.ReadDU(),
		SpellID:    r.ReadDU(),
		BuffType:   r.ReadC(),
		Amount:     r.ReadD(),
		Duration:   r.ReadDU(),
		IsDebuff:   r.ReadC(),
	}
}

// ServerBuffRemove removes a buff from a target.
type ServerBuffRemove struct {
	TargetGUID uint64
	BuffID     uint32
	Reason     byte
}

func (p ServerBuffRemove) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeBuffRemove)
	w.WriteQ(p.TargetGUID)
	w.WriteDU(p.BuffID)
	w.WriteC(p.Reason)
	return w.Bytes()
}

func DecodeServerBuffRemove(r *Reader) ServerBuffRemove {
	return ServerBuffRemove{TargetGUID: r.ReadQ(), BuffID: r.ReadDU(), Reason: r.ReadC()}
}

// ServerPlayerDeath announces a player death. KillerGUID is zero for
// environmental deaths.
type ServerPlayerDeath struct {
	PlayerGUID uint64
	KillerGUID uint64
	DeathType  uint32
}

func (p ServerPlayerDeath) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodePlayerDeath)
	w.WriteQ(p.PlayerGUID)
	w.WriteQ(p.KillerGUID)
	w.WriteDU(p.DeathType)
	return w.Bytes()
}

func DecodeServerPlayerDeath(r *Reader) ServerPlayerDeath {
	return ServerPlayerDeath{
		PlayerGUID: r.ReadQ(),
		KillerGUID: r.ReadQ(),
		DeathType:  r.ReadDU(),
	}
}
