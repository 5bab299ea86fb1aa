package world

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/nexusgo/server/internal/data"
	"github.com/nexusgo/server/internal/net/packet"
	"go.uber.org/zap"
)

// ZoneRef addresses one zone shard.
type ZoneRef struct {
	ZoneID     int32
	InstanceID int32
}

func (r ZoneRef) String() string {
	return fmt.Sprintf("%d/%d", r.ZoneID, r.InstanceID)
}

// Sender delivers one encoded packet to a player connection. Implemented
// by net.Session; delivery order per recipient follows call order.
type Sender interface {
	Send(data []byte)
}

// ZoneInfo is a read snapshot of instance population.
type ZoneInfo struct {
	Ref       ZoneRef
	Entities  int
	Players   int
	Creatures int
}

// ErrZoneStopped is returned for operations against a stopped instance.
var ErrZoneStopped = errors.New("zone instance stopped")

// ErrZoneBusy is returned when an instance call times out.
var ErrZoneBusy = errors.New("zone instance call timed out")

const zoneCallTimeout = 5 * time.Second

// ZoneOptions carries the per-zone tuning knobs (config §6 defaults).
type ZoneOptions struct {
	CellSize            float32
	AITickInterval      time.Duration
	MaxCreaturesPerTick int
	CombatTimeout       time.Duration
	Seed                int64 // 0 = time-seeded
}

func (o *ZoneOptions) fill() {
	if o.CellSize <= 0 {
		o.CellSize = DefaultCellSize
	}
	if o.AITickInterval <= 0 {
		o.AITickInterval = time.Second
	}
	if o.MaxCreaturesPerTick <= 0 {
		o.MaxCreaturesPerTick = 100
	}
	if o.CombatTimeout <= 0 {
		o.CombatTimeout = 30 * time.Second
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
}

// ZoneInstance is a single-writer actor owning one zone shard. All state
// below the cmds channel is touched only by the zone goroutine; external
// callers go through Do/Call, which serialize every mutation and read.
type ZoneInstance struct {
	Ref ZoneRef

	cmds chan func()
	stop chan struct{}
	log  *zap.Logger

	// Zone-goroutine-owned state.
	entities  map[GUID]*Entity
	grid      *SpatialGrid
	players   map[GUID]Sender
	creatures map[GUID]*CreatureState
	mgr       *CreatureManager
	store     *data.Store
	rng       *rand.Rand
	opts      ZoneOptions

	timers   map[uint64]*time.Timer
	timerSeq uint64
}

func NewZoneInstance(ref ZoneRef, store *data.Store, calc CombatCalc, opts ZoneOptions, log *zap.Logger) *ZoneInstance {
	opts.fill()
	z := &ZoneInstance{
		Ref:       ref,
		cmds:      make(chan func(), 256),
		stop:      make(chan struct{}),
		log:       log.With(zap.String("zone", ref.String())),
		entities:  make(map[GUID]*Entity),
		grid:      NewSpatialGrid(opts.CellSize),
		players:   make(map[GUID]Sender),
		creatures: make(map[GUID]*CreatureState),
		store:     store,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		opts:      opts,
		timers:    make(map[uint64]*time.Timer),
	}
	z.mgr = newCreatureManager(z, calc)
	return z
}

// Manager exposes the colocated creature manager.
func (z *ZoneInstance) Manager() *CreatureManager { return z.mgr }

// Start launches the zone goroutine and kicks off the async content-sourced
// population loads (creature spawns and harvest nodes). Population failures
// are logged and ignored: an empty zone is a valid state.
func (z *ZoneInstance) Start(alloc *GUIDAllocator) {
	go z.loop()

	z.Do(func() {
		if err := z.mgr.populateSpawns(alloc); err != nil {
			z.log.Warn("生物生成載入失敗，區域將以空狀態運行", zap.Error(err))
		}
	})
	z.Do(func() {
		if err := z.populateHarvest(alloc); err != nil {
			z.log.Warn("採集點載入失敗", zap.Error(err))
		}
	})
}

func (z *ZoneInstance) loop() {
	defer func() {
		// An invariant breach panics the worker; the zone restarts with
		// clean state and connected players re-enter on reconnect.
		if rec := recover(); rec != nil {
			z.log.Error("區域工作者崩潰，以全新狀態重啟", zap.Any("panic", rec))
			z.resetState()
			go z.loop()
		}
	}()

	ticker := time.NewTicker(z.opts.AITickInterval)
	defer ticker.Stop()

	for {
		select {
		case fn := <-z.cmds:
			fn()
		case now := <-ticker.C:
			z.mgr.Tick(now)
		case <-z.stop:
			z.cancelAllTimers()
			return
		}
	}
}

func (z *ZoneInstance) resetState() {
	z.cancelAllTimers()
	z.entities = make(map[GUID]*Entity)
	z.grid = NewSpatialGrid(z.opts.CellSize)
	z.players = make(map[GUID]Sender)
	z.creatures = make(map[GUID]*CreatureState)
	z.mgr.reset()
}

// Stop shuts the instance down. All pending timers owned by the worker are
// canceled; no cross-worker timer leaks.
func (z *ZoneInstance) Stop() {
	select {
	case <-z.stop:
	default:
		close(z.stop)
	}
}

// Do enqueues fn for asynchronous execution on the zone goroutine.
func (z *ZoneInstance) Do(fn func()) error {
	select {
	case z.cmds <- fn:
		return nil
	case <-z.stop:
		return ErrZoneStopped
	}
}

// Call executes fn on the zone goroutine and waits for completion, with an
// explicit timeout. Reads through Call observe a consistent snapshot.
func (z *ZoneInstance) Call(fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	timeout := time.NewTimer(zoneCallTimeout)
	defer timeout.Stop()

	select {
	case z.cmds <- wrapped:
	case <-z.stop:
		return ErrZoneStopped
	case <-timeout.C:
		return ErrZoneBusy
	}
	select {
	case <-done:
		return nil
	case <-z.stop:
		return ErrZoneStopped
	case <-timeout.C:
		return ErrZoneBusy
	}
}

// schedule arms a delayed self-message. The returned cancel is safe to
// call from the zone goroutine.
// Zone goroutine only.
func (z *ZoneInstance) schedule(d time.Duration, fn func()) (cancel func()) {
	z.timerSeq++
	id := z.timerSeq
	t := time.AfterFunc(d, func() {
		// Re-enter the actor; drop silently if the zone stopped meanwhile.
		z.Do(func() {
			if _, live := z.timers[id]; !live {
				return // canceled after firing
			}
			delete(z.timers, id)
			fn()
		})
	})
	z.timers[id] = t
	return func() {
		if t, ok := z.timers[id]; ok {
			t.Stop()
			delete(z.timers, id)
		}
	}
}

func (z *ZoneInstance) cancelAllTimers() {
	for id, t := range z.timers {
		t.Stop()
		delete(z.timers, id)
	}
}

// ───────────────────────── mutation API ─────────────────────────

// AddEntity places an entity into the instance. The spatial grid and the
// derived index sets stay consistent with the entity map after every
// mutation.
func (z *ZoneInstance) AddEntity(e Entity) error {
	return z.Call(func() {
		z.addEntityLocked(e, nil)
	})
}

// AddPlayer places a player entity and binds its connection for broadcast.
func (z *ZoneInstance) AddPlayer(e Entity, conn Sender) error {
	return z.Call(func() {
		z.addEntityLocked(e, conn)
	})
}

// Zone goroutine only.
func (z *ZoneInstance) addEntityLocked(e Entity, conn Sender) {
	ent := e
	ent.ClampHealth()
	z.entities[ent.GUID] = &ent
	z.grid.Insert(ent.GUID, ent.Position)
	switch ent.Type {
	case TypePlayer:
		if conn != nil {
			z.players[ent.GUID] = conn
		}
	case TypeCreature:
		if _, ok := z.creatures[ent.GUID]; !ok {
			cs := NewCreatureState(ent.GUID, ent.Position)
			if sp := z.store.SplineFor(ent.CreatureID); sp != nil {
				// Binding carries the spline id in store terms; resolved at walk time.
				cs.SplineID = sp.ID
			}
			z.creatures[ent.GUID] = cs
		}
	}
}

// RemoveEntity removes an entity, returning its final snapshot.
func (z *ZoneInstance) RemoveEntity(guid GUID) (Entity, bool) {
	var snap Entity
	var ok bool
	z.Call(func() {
		var e *Entity
		e, ok = z.entities[guid]
		if !ok {
			return
		}
		snap = *e
		delete(z.entities, guid)
		z.grid.Remove(guid)
		delete(z.players, guid)
		delete(z.creatures, guid)
	})
	return snap, ok
}

// TakeEntity removes an entity and returns its final snapshot together
// with any bound player connection, for hand-off to another instance.
func (z *ZoneInstance) TakeEntity(guid GUID) (Entity, Sender, bool) {
	var snap Entity
	var conn Sender
	var ok bool
	z.Call(func() {
		var e *Entity
		e, ok = z.entities[guid]
		if !ok {
			return
		}
		snap = *e
		conn = z.players[guid]
		delete(z.entities, guid)
		z.grid.Remove(guid)
		delete(z.players, guid)
		delete(z.creatures, guid)
	})
	return snap, conn, ok
}

// GetEntity returns a consistent snapshot of one entity.
func (z *ZoneInstance) GetEntity(guid GUID) (Entity, bool) {
	var snap Entity
	var ok bool
	z.Call(func() {
		var e *Entity
		if e, ok = z.entities[guid]; ok {
			snap = *e
		}
	})
	return snap, ok
}

// UpdateEntity applies fn to an entity atomically.
func (z *ZoneInstance) UpdateEntity(guid GUID, fn func(*Entity)) bool {
	var ok bool
	z.Call(func() {
		var e *Entity
		if e, ok = z.entities[guid]; !ok {
			return
		}
		fn(e)
		e.ClampHealth()
		z.grid.Update(guid, e.Position)
	})
	return ok
}

// UpdateEntityPosition moves an entity, keeping the grid in sync.
func (z *ZoneInstance) UpdateEntityPosition(guid GUID, p Vec3) bool {
	return z.UpdateEntity(guid, func(e *Entity) {
		e.Position = p
	})
}

// EntitiesInRange returns snapshots of all entities within radius.
func (z *ZoneInstance) EntitiesInRange(center Vec3, radius float32) []Entity {
	var out []Entity
	z.Call(func() {
		for _, guid := range z.grid.EntitiesInRange(center, radius) {
			if e, ok := z.entities[guid]; ok {
				out = append(out, *e)
			}
		}
	})
	return out
}

// ListPlayers returns the GUIDs of players bound to the instance.
func (z *ZoneInstance) ListPlayers() []GUID {
	var out []GUID
	z.Call(func() {
		for guid := range z.players {
			out = append(out, guid)
		}
	})
	return out
}

// Info returns instance population counts.
func (z *ZoneInstance) Info() ZoneInfo {
	var info ZoneInfo
	z.Call(func() {
		info = ZoneInfo{
			Ref:       z.Ref,
			Entities:  len(z.entities),
			Players:   len(z.players),
			Creatures: len(z.creatures),
		}
	})
	return info
}

// Broadcast enqueues an encoded packet to every player connection bound to
// the zone. Broadcasts initiated within one actor step reach each
// recipient in initiation order; no cross-recipient ordering is promised.
func (z *ZoneInstance) Broadcast(pkt []byte) {
	z.Do(func() {
		z.broadcastLocked(pkt)
	})
}

// Zone goroutine only.
func (z *ZoneInstance) broadcastLocked(pkt []byte) {
	for _, conn := range z.players {
		conn.Send(pkt)
	}
}

// sendTo delivers to a single bound player, if present.
// Zone goroutine only.
func (z *ZoneInstance) sendTo(guid GUID, pkt []byte) {
	if conn, ok := z.players[guid]; ok {
		conn.Send(pkt)
	}
}

// SendTo delivers an encoded packet to one bound player, if present.
func (z *ZoneInstance) SendTo(guid GUID, pkt []byte) {
	z.Do(func() {
		z.sendTo(guid, pkt)
	})
}

// DamageCreature routes player damage into the creature combat pipeline.
func (z *ZoneInstance) DamageCreature(creature, attacker GUID, amount int32) (DamageResult, error) {
	var res DamageResult
	var err error
	callErr := z.Call(func() {
		res, err = z.mgr.damageCreatureLocked(creature, attacker, amount, time.Now())
	})
	if callErr != nil {
		return DamageResult{}, callErr
	}
	return res, err
}

// ───────────────────────── population ─────────────────────────

// populateHarvest loads harvest nodes as inert trigger entities.
// Zone goroutine only.
func (z *ZoneInstance) populateHarvest(alloc *GUIDAllocator) error {
	nodes := z.store.HarvestForZone(z.Ref.ZoneID)
	for _, n := range nodes {
		guid := alloc.Next(TypeTrigger)
		z.addEntityLocked(Entity{
			GUID:        guid,
			Type:        TypeTrigger,
			Position:    Vec3{n.X, n.Y, n.Z},
			Health:      1,
			MaxHealth:   1,
			DisplayInfo: n.NodeType,
		}, nil)
	}
	if len(nodes) > 0 {
		z.log.Info("採集點載入完成", zap.Int("count", len(nodes)))
	}
	return nil
}

// broadcastPlayerDeath emits the death packet for a player kill.
// Zone goroutine only.
func (z *ZoneInstance) broadcastPlayerDeath(player, killer GUID, deathType uint32) {
	z.broadcastLocked(packet.ServerPlayerDeath{
		PlayerGUID: uint64(player),
		KillerGUID: uint64(killer),
		DeathType:  deathType,
	}.Encode())
}
