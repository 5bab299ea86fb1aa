package pvp

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/world"
)

// ErrBusy is the typed refusal for a duel request against a player who is
// already in a duel (or for a challenger who is).
var ErrBusy = errors.New("player already in a duel")

// ErrNoDuel is returned when an operation references no active duel.
var ErrNoDuel = errors.New("no active duel for player")

const duelTickInterval = 500 * time.Millisecond

// DuelManager owns every live duel and routes player actions to them.
// The registry is a read-mostly concurrent map; each duel's timeline is
// driven by the manager's single ticker goroutine.
type DuelManager struct {
	mu      sync.Mutex
	duels   map[int64]*duelEntry
	byGUID  map[world.GUID]int64
	nextID  int64
	cfg     DuelConfig
	rec     Recorder
	log     *zap.Logger
	stop    chan struct{}
	stopped sync.Once
}

type duelEntry struct {
	duel      *Duel
	startedAt time.Time
}

func NewDuelManager(cfg DuelConfig, rec Recorder, log *zap.Logger) *DuelManager {
	if rec == nil {
		rec = NopRecorder{}
	}
	m := &DuelManager{
		duels:  make(map[int64]*duelEntry),
		byGUID: make(map[world.GUID]int64),
		cfg:    cfg,
		rec:    rec,
		log:    log,
		stop:   make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *DuelManager) run() {
	ticker := time.NewTicker(duelTickInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			m.tickAll(now)
		case <-m.stop:
			return
		}
	}
}

func (m *DuelManager) Stop() {
	m.stopped.Do(func() { close(m.stop) })
}

func (m *DuelManager) tickAll(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.duels {
		e.duel.Tick(now)
		if e.duel.State() == DuelEnded {
			m.finishLocked(id, e, now)
		}
	}
}

// Request opens a new pending duel challenge. Either side already being in
// a duel is a typed refusal.
func (m *DuelManager) Request(challenger, target world.GUID, center world.Vec3) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.byGUID[challenger]; busy {
		return 0, ErrBusy
	}
	if _, busy := m.byGUID[target]; busy {
		return 0, ErrBusy
	}
	m.nextID++
	id := m.nextID
	m.duels[id] = &duelEntry{
		duel:      NewDuel(id, challenger, target, center, m.cfg, time.Now()),
		startedAt: time.Now(),
	}
	m.byGUID[challenger] = id
	m.byGUID[target] = id
	m.log.Info("決鬥挑戰發出",
		zap.Int64("duel_id", id),
		zap.Uint64("challenger", uint64(challenger)),
		zap.Uint64("target", uint64(target)))
	return id, nil
}

func (m *DuelManager) forPlayer(guid world.GUID) (*duelEntry, int64, error) {
	id, ok := m.byGUID[guid]
	if !ok {
		return nil, 0, ErrNoDuel
	}
	e, ok := m.duels[id]
	if !ok {
		return nil, 0, ErrNoDuel
	}
	return e, id, nil
}

// Accept accepts the pending challenge the target is part of.
func (m *DuelManager) Accept(target world.GUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, id, err := m.forPlayer(target)
	if err != nil {
		return err
	}
	if target != e.duel.Target {
		return ErrNotParticipant
	}
	if err := e.duel.Accept(time.Now()); err != nil {
		if e.duel.State() == DuelEnded {
			m.finishLocked(id, e, time.Now())
		}
		return err
	}
	return nil
}

// Forfeit concedes the duel for the given player.
func (m *DuelManager) Forfeit(guid world.GUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, id, err := m.forPlayer(guid)
	if err != nil {
		return err
	}
	if err := e.duel.Forfeit(guid); err != nil {
		return err
	}
	m.finishLocked(id, e, time.Now())
	return nil
}

// UpdatePosition forwards a participant movement for boundary checks.
func (m *DuelManager) UpdatePosition(guid world.GUID, pos world.Vec3) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, _, err := m.forPlayer(guid); err == nil {
		e.duel.UpdatePosition(guid, pos, time.Now())
	}
}

// ReportDamage forwards a gated damage event between two players.
func (m *DuelManager) ReportDamage(attacker, victim world.GUID, victimHealthPct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, id, err := m.forPlayer(victim)
	if err != nil {
		return
	}
	if e.duel.ReportDamage(attacker, victim, victimHealthPct, time.Now()) == nil &&
		e.duel.State() == DuelEnded {
		m.finishLocked(id, e, time.Now())
	}
}

// Duel returns the live duel a player is part of.
func (m *DuelManager) Duel(guid world.GUID) (*Duel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _, err := m.forPlayer(guid)
	if err != nil {
		return nil, false
	}
	return e.duel, true
}

// finishLocked unregisters an ended duel and records the outcome off the
// manager's timeline.
func (m *DuelManager) finishLocked(id int64, e *duelEntry, now time.Time) {
	delete(m.duels, id)
	delete(m.byGUID, e.duel.Challenger)
	delete(m.byGUID, e.duel.Target)

	res := e.duel.Result()
	if res == nil {
		return
	}
	m.log.Info("決鬥結束",
		zap.Int64("duel_id", id),
		zap.String("reason", string(res.Reason)),
		zap.Uint64("winner", uint64(res.Winner)))

	rec := &DuelRecord{
		DuelID:     id,
		Challenger: uint64(e.duel.Challenger),
		Target:     uint64(e.duel.Target),
		Winner:     uint64(res.Winner),
		Reason:     string(res.Reason),
		Duration:   now.Sub(e.startedAt),
		EndedAt:    now,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.rec.RecordDuel(ctx, rec); err != nil {
			m.log.Warn("決鬥紀錄寫入失敗", zap.Int64("duel_id", id), zap.Error(err))
		}
	}()
}
