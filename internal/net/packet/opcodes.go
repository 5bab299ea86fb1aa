package packet

import "fmt"

// ConnType categorizes a connection by its listening port. Each category
// constrains which opcodes a session may send.
type ConnType int

const (
	ConnAuth ConnType = iota
	ConnRealm
	ConnWorld
)

func (c ConnType) String() string {
	switch c {
	case ConnAuth:
		return "Auth"
	case ConnRealm:
		return "Realm"
	case ConnWorld:
		return "World"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Stage represents the session's current protocol phase. Transitions are
// strictly forward except on error (→ Disconnecting).
type Stage int

const (
	StageUnauthenticated Stage = iota
	StageAuthenticated
	StageInRealm
	StageLoading
	StageInWorld
	StageDisconnecting
)

func (s Stage) String() string {
	switch s {
	case StageUnauthenticated:
		return "Unauthenticated"
	case StageAuthenticated:
		return "Authenticated"
	case StageInRealm:
		return "InRealm"
	case StageLoading:
		return "Loading"
	case StageInWorld:
		return "InWorld"
	case StageDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Client opcodes.
const (
	COpcodeAuthLogin     uint16 = 0x0001
	COpcodeRealmList     uint16 = 0x0002
	COpcodeRealmSelect   uint16 = 0x0003
	COpcodeCharacterList uint16 = 0x0010
	COpcodeEnterWorld    uint16 = 0x0011
	COpcodeMove          uint16 = 0x0020
	COpcodeChat          uint16 = 0x0021
	COpcodeAttack        uint16 = 0x0022
	COpcodeItemMove      uint16 = 0x0030
	COpcodeItemSwap      uint16 = 0x0031
	COpcodeDuelRequest   uint16 = 0x0040
	COpcodeDuelAccept    uint16 = 0x0041
	COpcodeDuelForfeit   uint16 = 0x0042
	COpcodeArenaQueue    uint16 = 0x0043
	COpcodeArenaLeave    uint16 = 0x0044
	COpcodeInterrupt     uint16 = 0x0050
	COpcodeLogout        uint16 = 0x00FF
)

// Server opcodes.
const (
	SOpcodeAuthResult       uint16 = 0x8001
	SOpcodeRealmList        uint16 = 0x8002
	SOpcodeRealmJoin        uint16 = 0x8003
	SOpcodeCharacterList    uint16 = 0x8010
	SOpcodeWorldEnter       uint16 = 0x8011
	SOpcodeEntitySpawn      uint16 = 0x8020
	SOpcodeEntityDespawn    uint16 = 0x8021
	SOpcodeEntityMove       uint16 = 0x8022
	SOpcodeEntityHealth     uint16 = 0x8023
	SOpcodeItemMove         uint16 = 0x8030
	SOpcodeItemSwap         uint16 = 0x8031
	SOpcodeItemVisualUpdate uint16 = 0x8032
	SOpcodeChat             uint16 = 0x8040
	SOpcodeChatResult       uint16 = 0x8041
	SOpcodeQuestAdd         uint16 = 0x8050
	SOpcodeQuestUpdate      uint16 = 0x8051
	SOpcodeQuestRemove      uint16 = 0x8052
	SOpcodeTelegraph        uint16 = 0x8060
	SOpcodeSpellEffect      uint16 = 0x8061
	SOpcodeBuffApply        uint16 = 0x8062
	SOpcodeBuffRemove       uint16 = 0x8063
	SOpcodePlayerDeath      uint16 = 0x8064
	SOpcodeDuelState        uint16 = 0x8070
	SOpcodeArenaState       uint16 = 0x8071
)
