package handler

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/pvp"
	"github.com/nexusgo/server/internal/world"
)

// Duel state codes for SOpcodeDuelState.
const (
	duelNotifyRequested byte = 0
	duelNotifyCountdown byte = 1
	duelNotifyDeclined  byte = 2
	duelNotifyBusy      byte = 3
)

// HandleDuelRequest opens a duel against a target player.
// Format: [q target_guid]
func HandleDuelRequest(sess *net.Session, r *packet.Reader, deps *Deps) error {
	target := world.GUID(r.ReadQ())
	challenger := world.GUID(sess.PlayerGUID)

	zone, ok := deps.zoneOf(sess)
	if !ok {
		return nil
	}
	self, ok := zone.GetEntity(challenger)
	if !ok {
		return nil
	}
	if _, ok := zone.GetEntity(target); !ok {
		return nil // target must share the shard
	}

	// The challenger's position anchors the boundary sphere.
	id, err := deps.Duels.Request(challenger, target, self.Position)
	if errors.Is(err, pvp.ErrBusy) {
		sendDuelState(sess, duelNotifyBusy, 0)
		return nil
	}
	if err != nil {
		return err
	}

	sendDuelState(sess, duelNotifyRequested, uint64(target))
	zone.SendTo(target, duelStatePacket(duelNotifyRequested, uint64(challenger)))
	deps.Log.Info("決鬥邀請",
		zap.Int64("duel", id),
		zap.Uint64("challenger", uint64(challenger)),
		zap.Uint64("target", uint64(target)))
	return nil
}

// HandleDuelAccept accepts the pending duel addressed to this player.
func HandleDuelAccept(sess *net.Session, _ *packet.Reader, deps *Deps) error {
	guid := world.GUID(sess.PlayerGUID)
	if err := deps.Duels.Accept(guid); err != nil {
		if errors.Is(err, pvp.ErrNoDuel) {
			return nil
		}
		return err
	}
	sendDuelState(sess, duelNotifyCountdown, uint64(guid))
	return nil
}

// HandleDuelForfeit concedes the player's live duel.
func HandleDuelForfeit(sess *net.Session, _ *packet.Reader, deps *Deps) error {
	err := deps.Duels.Forfeit(world.GUID(sess.PlayerGUID))
	if errors.Is(err, pvp.ErrNoDuel) {
		return nil
	}
	return err
}

func duelStatePacket(state byte, otherGUID uint64) []byte {
	w := packet.NewWriterWithOpcode(packet.SOpcodeDuelState)
	w.WriteC(state)
	w.WriteQ(otherGUID)
	return w.Bytes()
}

func sendDuelState(sess *net.Session, state byte, otherGUID uint64) {
	sess.Send(duelStatePacket(state, otherGUID))
}

// HandleArenaQueue enters the player's group into an arena bracket.
// Format: [c bracket_size][c member_count][q member_guid]...
// The sender must be part of the listed group.
func HandleArenaQueue(sess *net.Session, r *packet.Reader, deps *Deps) error {
	bracket := pvp.Bracket(r.ReadC())
	switch bracket {
	case pvp.Bracket2v2, pvp.Bracket3v3, pvp.Bracket5v5:
	default:
		return nil
	}

	n := int(r.ReadC())
	if n <= 0 || n > bracket.TeamSize() {
		return nil
	}
	team := pvp.Team{Players: make([]world.GUID, 0, n)}
	self := world.GUID(sess.PlayerGUID)
	selfListed := false
	for i := 0; i < n; i++ {
		g := world.GUID(r.ReadQ())
		if g == self {
			selfListed = true
		}
		team.Players = append(team.Players, g)
	}
	if !selfListed {
		return nil
	}

	if err := deps.Arena.Queue(bracket, team); err != nil {
		if errors.Is(err, pvp.ErrAlreadyQueued) {
			sendArenaState(sess, 1)
			return nil
		}
		deps.Log.Debug("競技場排隊失敗", zap.Error(err))
		return nil
	}
	sendArenaState(sess, 0)
	return nil
}

// HandleArenaLeave withdraws the player's team from the queue.
func HandleArenaLeave(sess *net.Session, _ *packet.Reader, deps *Deps) error {
	deps.Arena.Leave(world.GUID(sess.PlayerGUID))
	sendArenaState(sess, 2)
	return nil
}

func sendArenaState(sess *net.Session, state byte) {
	w := packet.NewWriterWithOpcode(packet.SOpcodeArenaState)
	w.WriteC(state)
	sess.Send(w.Bytes())
}

// HandleInterrupt applies one interrupt-armor hit to the engaged boss in
// the player's zone shard.
func HandleInterrupt(sess *net.Session, _ *packet.Reader, deps *Deps) error {
	if deps.Encounters == nil {
		return nil
	}
	ref := world.ZoneRef{ZoneID: sess.ZoneID, InstanceID: sess.InstanceID}
	if deps.Encounters.Interrupt(ref, time.Now()) {
		deps.Log.Debug("打斷命中",
			zap.Uint64("player", sess.PlayerGUID),
			zap.Int32("zone", sess.ZoneID))
	}
	return nil
}
