package packet

// Entity kind tags for ServerEntitySpawn.
const (
	SpawnKindPlayer   byte = 0
	SpawnKindCreature byte = 1
	SpawnKindObject   byte = 2
)

// ServerEntitySpawn introduces an entity to nearby clients.
type ServerEntitySpawn struct {
	GUID        uint64
	Kind        byte
	Name        string
	X, Y, Z     float32
	Level       uint32
	Health      uint32
	MaxHealth   uint32
	DisplayInfo uint32
	Faction     uint32
}

func (p ServerEntitySpawn) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeEntitySpawn)
	w.WriteQ(p.GUID)
	w.WriteC(p.Kind)
	w.WriteString(p.Name)
	w.WriteF(p.X)
	w.WriteF(p.Y)
	w.WriteF(p.Z)
	w.WriteDU(p.Level)
	w.WriteDU(p.Health)
	w.WriteDU(p.MaxHealth)
	w.WriteDU(p.DisplayInfo)
	w.WriteDU(p.Faction)
	return w.Bytes()
}

func DecodeServerEntitySpawn(r *Reader) ServerEntitySpawn {
	return ServerEntitySpawn{
		GUID:        r.ReadQ(),
		Kind:        r.ReadC(),
		Name:        r.ReadString(),
		X:           r.ReadF(),
		Y:           r.ReadF(),
		Z:           r.ReadF(),
		Level:       r.ReadDU(),
		Health:      r.ReadDU(),
		MaxHealth:   r.ReadDU(),
		DisplayInfo: r.ReadDU(),
		Faction:     r.ReadDU(),
	}
}

// ServerEntityDespawn removes an entity from nearby clients.
type ServerEntityDespawn struct {
	GUID uint64
}

func (p ServerEntityDespawn) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeEntityDespawn)
	w.WriteQ(p.GUID)
	return w.Bytes()
}

func DecodeServerEntityDespawn(r *Reader) ServerEntityDespawn {
	return ServerEntityDespawn{GUID: r.ReadQ()}
}

// ServerEntityMove reports an entity heading toward a destination at the
// given speed. The client interpolates; the server position is truth.
type ServerEntityMove struct {
	GUID    uint64
	X, Y, Z float32
	Speed   float32
}

func (p ServerEntityMove) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeEntityMove)
	w.WriteQ(p.GUID)
	w.WriteF(p.X)
	w.WriteF(p.Y)
	w.WriteF(p.Z)
	w.WriteF(p.Speed)
	return w.Bytes()
}

func DecodeServerEntityMove(r *Reader) ServerEntityMove {
	return ServerEntityMove{
		GUID:  r.ReadQ(),
		X:     r.ReadF(),
		Y:     r.ReadF(),
		Z:     r.ReadF(),
		Speed: r.ReadF(),
	}
}

// ServerEntityHealth reports an entity's current and maximum health.
type ServerEntityHealth struct {
	GUID      uint64
	Health    uint32
	MaxHealth uint32
}

func (p ServerEntityHealth) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeEntityHealth)
	w.WriteQ(p.GUID)
	w.WriteDU(p.Health)
	w.WriteDU(p.MaxHealth)
	return w.Bytes()
}

func DecodeServerEntityHealth(r *Reader) ServerEntityHealth {
	return ServerEntityHealth{
		GUID:      r.ReadQ(),
		Health:    r.ReadDU(),
		MaxHealth: r.ReadDU(),
	}
}

// ServerSpellEffect shows a combat effect: caster hit target for amount.
// Amount is negative for healing.
type ServerSpellEffect struct {
	CasterGUID uint64
	TargetGUID uint64
	SpellID    uint32
	Amount     int32
}

func (p ServerSpellEffect) Encode() []byte {
	w := NewWriterWithOpcode(SOpcodeSpellEffect)
	w.WriteQ(p.CasterGUID)
	w.WriteQ(p.TargetGUID)
	w.WriteDU(p.SpellID)
	w.WriteD(p.Amount)
	return w.Bytes()
}

func DecodeServerSpellEffect(r *Reader) ServerSpellEffect {
	return ServerSpellEffect{
		CasterGUID: r.ReadQ(),
		TargetGUID: r.ReadQ(),
		SpellID:    r.ReadDU(),
		Amount:     r.ReadD(),
	}
}
