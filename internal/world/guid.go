package world

import (
	"fmt"
	"sync/atomic"
)

// GUID is the realm-unique 64-bit entity identifier. The top 4 bits encode
// the entity type; the low 60 bits are a per-type monotonic sequence.
type GUID uint64

// EntityType occupies the top 4 bits of a GUID.
type EntityType uint8

const (
	TypePlayer     EntityType = 1
	TypeCreature   EntityType = 2
	TypeGroundItem EntityType = 3
	TypeTrigger    EntityType = 4
)

func (t EntityType) String() string {
	switch t {
	case TypePlayer:
		return "Player"
	case TypeCreature:
		return "Creature"
	case TypeGroundItem:
		return "GroundItem"
	case TypeTrigger:
		return "Trigger"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

const guidSeqBits = 60

// MakeGUID composes a GUID from a type tag and a sequence number.
func MakeGUID(t EntityType, seq uint64) GUID {
	return GUID(uint64(t)<<guidSeqBits | seq&(1<<guidSeqBits-1))
}

// Type returns the entity type encoded in the top 4 bits.
func (g GUID) Type() EntityType {
	return EntityType(g >> guidSeqBits)
}

// Seq returns the per-type sequence number.
func (g GUID) Seq() uint64 {
	return uint64(g) & (1<<guidSeqBits - 1)
}

func (g GUID) IsZero() bool { return g == 0 }

// GUIDAllocator hands out monotonic per-type GUIDs. Safe for concurrent use.
type GUIDAllocator struct {
	counters [16]atomic.Uint64
}

func NewGUIDAllocator() *GUIDAllocator {
	return &GUIDAllocator{}
}

// Next allocates the next GUID for a type.
func (a *GUIDAllocator) Next(t EntityType) GUID {
	return MakeGUID(t, a.counters[t].Add(1))
}
