package pvp

import (
	"errors"
	"fmt"
	"time"

	"github.com/nexusgo/server/internal/world"
)

// DuelState is the duel lifecycle: pending → countdown → active → ended.
type DuelState int

const (
	DuelPending DuelState = iota
	DuelCountdown
	DuelActive
	DuelEnded
)

func (s DuelState) String() string {
	switch s {
	case DuelPending:
		return "Pending"
	case DuelCountdown:
		return "Countdown"
	case DuelActive:
		return "Active"
	case DuelEnded:
		return "Ended"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// EndReason says how a duel finished.
type EndReason string

const (
	EndDefeat  EndReason = "defeat"
	EndForfeit EndReason = "forfeit"
	EndFlee    EndReason = "flee"
	EndTimeout EndReason = "timeout"
	EndExpired EndReason = "expired" // challenge never accepted
)

// DuelConfig carries the duel tuning knobs.
type DuelConfig struct {
	RequestTimeout time.Duration
	Countdown      time.Duration
	BoundaryRadius float64
	TotalTimeout   time.Duration
	FleeGrace      time.Duration
}

// DefaultDuelConfig mirrors the server config defaults.
func DefaultDuelConfig() DuelConfig {
	return DuelConfig{
		RequestTimeout: 30 * time.Second,
		Countdown:      5 * time.Second,
		BoundaryRadius: 40.0,
		TotalTimeout:   10 * time.Minute,
		FleeGrace:      5 * time.Second,
	}
}

// DuelResult is the final outcome. Winner and Loser partition the two
// participants exactly; both are zero only for a draw or expired challenge.
type DuelResult struct {
	Reason EndReason
	Winner world.GUID
	Loser  world.GUID
	Draw   bool
}

var (
	ErrNotParticipant = errors.New("not a duel participant")
	ErrBadDuelState   = errors.New("operation invalid in current duel state")
)

// Duel is one duel state machine. It is owned by the DuelManager worker;
// all methods take an explicit now for deterministic testing.
type Duel struct {
	ID         int64
	Challenger world.GUID
	Target     world.GUID
	Center     world.Vec3

	cfg   DuelConfig
	state DuelState

	pendingDeadline time.Time
	countdownEnd    time.Time
	activeDeadline  time.Time

	// Flee tracking: zero time means inside bounds.
	outSince map[world.GUID]time.Time

	// Health percent per participant, fed by damage reports.
	healthPct map[world.GUID]float64

	result *DuelResult
}

func NewDuel(id int64, challenger, target world.GUID, center world.Vec3, cfg DuelConfig, now time.Time) *Duel {
	return &Duel{
		ID:              id,
		Challenger:      challenger,
		Target:          target,
		Center:          center,
		cfg:             cfg,
		state:           DuelPending,
		pendingDeadline: now.Add(cfg.RequestTimeout),
		outSince:        make(map[world.GUID]time.Time),
		healthPct:       map[world.GUID]float64{challenger: 100, target: 100},
	}
}

func (d *Duel) State() DuelState    { return d.state }
func (d *Duel) Result() *DuelResult { return d.result }

func (d *Duel) participant(guid world.GUID) bool {
	return guid == d.Challenger || guid == d.Target
}

func (d *Duel) opponent(guid world.GUID) world.GUID {
	if guid == d.Challenger {
		return d.Target
	}
	return d.Challenger
}

// Accept moves a pending challenge into the countdown.
func (d *Duel) Accept(now time.Time) error {
	if d.state != DuelPending {
		return ErrBadDuelState
	}
	if now.After(d.pendingDeadline) {
		d.end(DuelResult{Reason: EndExpired, Draw: true})
		return ErrBadDuelState
	}
	d.state = DuelCountdown
	d.countdownEnd = now.Add(d.cfg.Countdown)
	return nil
}

// Decline ends a pending challenge without a winner.
func (d *Duel) Decline() error {
	if d.state != DuelPending {
		return ErrBadDuelState
	}
	d.end(DuelResult{Reason: EndExpired, Draw: true})
	return nil
}

// Tick advances time-driven transitions: challenge expiry, countdown
// completion, flee grace expiry, and the total duel timeout.
func (d *Duel) Tick(now time.Time) {
	switch d.state {
	case DuelPending:
		if now.After(d.pendingDeadline) {
			d.end(DuelResult{Reason: EndExpired, Draw: true})
		}
	case DuelCountdown:
		if !now.Before(d.countdownEnd) {
			d.state = DuelActive
			d.activeDeadline = now.Add(d.cfg.TotalTimeout)
		}
	case DuelActive:
		for guid, since := range d.outSince {
			if !since.IsZero() && now.Sub(since) > d.cfg.FleeGrace {
				d.end(DuelResult{Reason: EndFlee, Winner: d.opponent(guid), Loser: guid})
				return
			}
		}
		if now.After(d.activeDeadline) {
			d.timeout()
		}
	}
}

// UpdatePosition checks the duel boundary for a participant. Standing at
// exactly the boundary radius is in bounds; strictly beyond starts the
// flee grace window, returning inside cancels it.
func (d *Duel) UpdatePosition(guid world.GUID, pos world.Vec3, now time.Time) {
	if d.state != DuelActive || !d.participant(guid) {
		return
	}
	if pos.Dist(d.Center) > d.cfg.BoundaryRadius {
		if d.outSince[guid].IsZero() {
			d.outSince[guid] = now
		}
	} else {
		d.outSince[guid] = time.Time{}
	}
}

// ReportDamage gates a damage event: only damage between the two
// participants progresses the duel. The victim's health percent after the
// hit is recorded; reaching zero ends the duel with the attacker winning.
func (d *Duel) ReportDamage(attacker, victim world.GUID, victimHealthPct float64, _ time.Time) error {
	if d.state != DuelActive {
		return ErrBadDuelState
	}
	if !d.participant(attacker) || !d.participant(victim) || attacker == victim {
		return ErrNotParticipant
	}
	d.healthPct[victim] = victimHealthPct
	if victimHealthPct <= 0 {
		d.end(DuelResult{Reason: EndDefeat, Winner: attacker, Loser: victim})
	}
	return nil
}

// Forfeit ends the duel against the forfeiting participant.
func (d *Duel) Forfeit(guid world.GUID) error {
	if d.state == DuelEnded {
		return ErrBadDuelState
	}
	if !d.participant(guid) {
		return ErrNotParticipant
	}
	d.end(DuelResult{Reason: EndForfeit, Winner: d.opponent(guid), Loser: guid})
	return nil
}

// timeout applies the total-timeout tiebreak: the participant with the
// higher remaining health percent wins; equal health is a draw.
func (d *Duel) timeout() {
	ch, tg := d.healthPct[d.Challenger], d.healthPct[d.Target]
	switch {
	case ch > tg:
		d.end(DuelResult{Reason: EndTimeout, Winner: d.Challenger, Loser: d.Target})
	case tg > ch:
		d.end(DuelResult{Reason: EndTimeout, Winner: d.Target, Loser: d.Challenger})
	default:
		d.end(DuelResult{Reason: EndTimeout, Draw: true})
	}
}

func (d *Duel) end(res DuelResult) {
	d.state = DuelEnded
	d.result = &res
}
