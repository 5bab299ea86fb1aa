package world

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nexusgo/server/internal/data"
	"go.uber.org/zap"
)

// ErrNoInstance is returned when no instance exists for a zone id.
var ErrNoInstance = errors.New("no instance for zone")

// WorldRouter owns GUID allocation and the registry of live zone
// instances. It coordinates zone transfers and picks the least-loaded
// instance for incoming players.
type WorldRouter struct {
	mu    sync.RWMutex
	zones map[ZoneRef]*ZoneInstance
	next  map[int32]int32 // zone id → next instance id

	alloc *GUIDAllocator
	store *data.Store
	calc  CombatCalc
	opts  ZoneOptions
	log   *zap.Logger
}

func NewWorldRouter(store *data.Store, calc CombatCalc, opts ZoneOptions, log *zap.Logger) *WorldRouter {
	return &WorldRouter{
		zones: make(map[ZoneRef]*ZoneInstance),
		next:  make(map[int32]int32),
		alloc: NewGUIDAllocator(),
		store: store,
		calc:  calc,
		opts:  opts,
		log:   log,
	}
}

// Alloc exposes the realm-wide GUID allocator.
func (r *WorldRouter) Alloc() *GUIDAllocator { return r.alloc }

// SpawnInstance brings up a fresh instance of a zone and registers it.
func (r *WorldRouter) SpawnInstance(zoneID int32) *ZoneInstance {
	r.mu.Lock()
	r.next[zoneID]++
	ref := ZoneRef{ZoneID: zoneID, InstanceID: r.next[zoneID]}
	z := NewZoneInstance(ref, r.store, r.calc, r.opts, r.log)
	r.zones[ref] = z
	r.mu.Unlock()

	z.Start(r.alloc)
	r.log.Info("區域實例啟動", zap.String("zone", ref.String()))
	return z
}

// Get returns a live instance by reference.
func (r *WorldRouter) Get(ref ZoneRef) (*ZoneInstance, bool) {
	r.mu.RLock()
	z, ok := r.zones[ref]
	r.mu.RUnlock()
	return z, ok
}

// PickInstance returns the instance of the zone with the fewest players,
// or ErrNoInstance when the zone has no live instance.
func (r *WorldRouter) PickInstance(zoneID int32) (*ZoneInstance, error) {
	r.mu.RLock()
	var candidates []*ZoneInstance
	for ref, z := range r.zones {
		if ref.ZoneID == zoneID {
			candidates = append(candidates, z)
		}
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNoInstance, zoneID)
	}
	best := candidates[0]
	bestLoad := best.Info().Players
	for _, z := range candidates[1:] {
		if load := z.Info().Players; load < bestLoad {
			best, bestLoad = z, load
		}
	}
	return best, nil
}

// Transfer moves an entity from its current instance into the least-loaded
// instance of the target zone. The move is not transactional: the entity
// may be briefly absent from both instances. If the target add fails, the
// source add is reattempted.
func (r *WorldRouter) Transfer(guid GUID, from ZoneRef, toZone int32) (ZoneRef, error) {
	src, ok := r.Get(from)
	if !ok {
		return ZoneRef{}, fmt.Errorf("transfer source %s: %w", from, ErrNoInstance)
	}
	dst, err := r.PickInstance(toZone)
	if err != nil {
		return ZoneRef{}, fmt.Errorf("transfer target: %w", err)
	}

	ent, conn, ok := src.TakeEntity(guid)
	if !ok {
		return ZoneRef{}, fmt.Errorf("transfer: entity %d not in %s", guid, from)
	}

	if err := r.place(dst, ent, conn); err != nil {
		// 回滾：目標加入失敗時重新放回來源實例。
		if rbErr := r.place(src, ent, conn); rbErr != nil {
			r.log.Error("轉移回滾失敗，實體遺失",
				zap.Uint64("guid", uint64(guid)),
				zap.String("source", from.String()),
				zap.Error(rbErr))
		}
		return ZoneRef{}, fmt.Errorf("transfer add to %s: %w", dst.Ref, err)
	}
	return dst.Ref, nil
}

func (r *WorldRouter) place(z *ZoneInstance, ent Entity, conn Sender) error {
	if conn != nil {
		return z.AddPlayer(ent, conn)
	}
	return z.AddEntity(ent)
}

// Shutdown stops every live instance.
func (r *WorldRouter) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ref, z := range r.zones {
		z.Stop()
		delete(r.zones, ref)
	}
}
