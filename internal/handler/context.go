package handler

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/config"
	"github.com/nexusgo/server/internal/data"
	"github.com/nexusgo/server/internal/encounter"
	"github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/persist"
	"github.com/nexusgo/server/internal/pvp"
	"github.com/nexusgo/server/internal/world"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Accounts *persist.AccountRepo
	Chars    *persist.CharacterRepo
	Realms   *persist.RealmRepo
	Config   *config.Config
	Log      *zap.Logger
	Store    *data.Store
	Router   *world.WorldRouter
	Duels    *pvp.DuelManager
	Arena    *pvp.ArenaQueue

	// Encounters hosts the live boss engines. Nil when the deployment
	// runs no encounters.
	Encounters *encounter.Host

	// Calc rolls combat formulas for player attacks. Nil falls back to a
	// uniform roll.
	Calc world.CombatCalc

	// Sessions resolves a character name to a live world session, for
	// whisper routing. Nil outside the world listener.
	Sessions func(name string) *net.Session

	chatMu      sync.Mutex
	chatWindows map[uint64]*chatWindow

	loginMu      sync.Mutex
	loginWindows map[string]*chatWindow

	rngMu sync.Mutex
	rng   *rand.Rand
}

// rollMelee draws one basic-attack roll. Handlers run on per-session
// goroutines, so the shared rng is mutex guarded.
func (d *Deps) rollMelee(min, max int32) int32 {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	if d.Calc != nil {
		return d.Calc.MeleeDamage(min, max, d.rng)
	}
	if max <= min {
		return min
	}
	return min + d.rng.Int31n(max-min+1)
}

type chatWindow struct {
	start time.Time
	sent  int
}

// RegisterAll registers the full opcode surface into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	deps.chatWindows = make(map[uint64]*chatWindow)
	deps.loginWindows = make(map[string]*chatWindow)
	deps.rng = rand.New(rand.NewSource(time.Now().UnixNano()))

	// Auth listener
	reg.Register(packet.COpcodeAuthLogin, "AuthLogin", packet.ConnAuth,
		[]packet.Stage{packet.StageUnauthenticated},
		func(sess any, r *packet.Reader) error {
			return HandleAuthLogin(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeRealmList, "RealmList", packet.ConnAuth,
		[]packet.Stage{packet.StageAuthenticated},
		func(sess any, r *packet.Reader) error {
			return HandleRealmList(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeRealmSelect, "RealmSelect", packet.ConnAuth,
		[]packet.Stage{packet.StageAuthenticated},
		func(sess any, r *packet.Reader) error {
			return HandleRealmSelect(sess.(*net.Session), r, deps)
		},
	)

	// Realm listener
	reg.Register(packet.COpcodeCharacterList, "CharacterList", packet.ConnRealm,
		[]packet.Stage{packet.StageInRealm},
		func(sess any, r *packet.Reader) error {
			return HandleCharacterList(sess.(*net.Session), r, deps)
		},
	)

	// World listener
	reg.Register(packet.COpcodeEnterWorld, "EnterWorld", packet.ConnWorld,
		[]packet.Stage{packet.StageInRealm, packet.StageLoading},
		func(sess any, r *packet.Reader) error {
			return HandleEnterWorld(sess.(*net.Session), r, deps)
		},
	)

	inWorld := []packet.Stage{packet.StageInWorld}

	reg.Register(packet.COpcodeMove, "Move", packet.ConnWorld, inWorld,
		func(sess any, r *packet.Reader) error {
			return HandleMove(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeChat, "Chat", packet.ConnWorld, inWorld,
		func(sess any, r *packet.Reader) error {
			return HandleChat(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeAttack, "Attack", packet.ConnWorld, inWorld,
		func(sess any, r *packet.Reader) error {
			return HandleAttack(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeItemMove, "ItemMove", packet.ConnWorld, inWorld,
		func(sess any, r *packet.Reader) error {
			return HandleItemMove(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeItemSwap, "ItemSwap", packet.ConnWorld, inWorld,
		func(sess any, r *packet.Reader) error {
			return HandleItemSwap(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeDuelRequest, "DuelRequest", packet.ConnWorld, inWorld,
		func(sess any, r *packet.Reader) error {
			return HandleDuelRequest(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeDuelAccept, "DuelAccept", packet.ConnWorld, inWorld,
		func(sess any, r *packet.Reader) error {
			return HandleDuelAccept(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeDuelForfeit, "DuelForfeit", packet.ConnWorld, inWorld,
		func(sess any, r *packet.Reader) error {
			return HandleDuelForfeit(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeArenaQueue, "ArenaQueue", packet.ConnWorld, inWorld,
		func(sess any, r *packet.Reader) error {
			return HandleArenaQueue(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeArenaLeave, "ArenaLeave", packet.ConnWorld, inWorld,
		func(sess any, r *packet.Reader) error {
			return HandleArenaLeave(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeInterrupt, "Interrupt", packet.ConnWorld, inWorld,
		func(sess any, r *packet.Reader) error {
			return HandleInterrupt(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.COpcodeLogout, "Logout", packet.ConnWorld,
		[]packet.Stage{packet.StageInRealm, packet.StageLoading, packet.StageInWorld},
		func(sess any, r *packet.Reader) error {
			return HandleLogout(sess.(*net.Session), r, deps)
		},
	)
}

func (d *Deps) zoneOf(sess *net.Session) (*world.ZoneInstance, bool) {
	return d.Router.Get(world.ZoneRef{ZoneID: sess.ZoneID, InstanceID: sess.InstanceID})
}
