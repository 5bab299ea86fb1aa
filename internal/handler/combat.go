package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/world"
)

// meleeReach: a basic attack lands within this distance of the target.
const meleeReach = 5.0

// playerDamageSpan derives the basic-attack roll window from level.
// Weapon and stat contributions belong to the ability system.
func playerDamageSpan(level int32) (min, max int32) {
	min = 8 + level*2
	max = min + 4 + level/2
	return min, max
}

// HandleAttack lands one basic attack on a creature. Boss health is owned
// by the encounter engine; everything else goes through the zone's kill
// pipeline.
// Format: [q target_guid]
func HandleAttack(sess *net.Session, r *packet.Reader, deps *Deps) error {
	target := world.GUID(r.ReadQ())
	attacker := world.GUID(sess.PlayerGUID)

	zone, ok := deps.zoneOf(sess)
	if !ok {
		return nil
	}
	self, ok := zone.GetEntity(attacker)
	if !ok || !self.Alive() {
		return nil
	}
	tgt, ok := zone.GetEntity(target)
	if !ok || tgt.Type != world.TypeCreature || !tgt.Alive() {
		return nil
	}
	if self.Position.Dist(tgt.Position) > meleeReach {
		return nil // out of reach; the client mispredicted
	}

	min, max := playerDamageSpan(self.Level)
	dmg := deps.rollMelee(min, max)

	ref := world.ZoneRef{ZoneID: sess.ZoneID, InstanceID: sess.InstanceID}
	if deps.Encounters != nil {
		if boss, live := deps.Encounters.Boss(ref); live && boss == target {
			return attackBoss(sess, zone, deps, ref, target, dmg)
		}
	}

	zone.Broadcast(packet.ServerSpellEffect{
		CasterGUID: uint64(attacker),
		TargetGUID: uint64(target),
		Amount:     dmg,
	}.Encode())

	res, err := zone.DamageCreature(target, attacker, dmg)
	if errors.Is(err, world.ErrNoSuchCreature) || errors.Is(err, world.ErrCreatureDead) {
		return nil
	}
	if err != nil {
		return err
	}
	if res.Killed && res.Kill != nil {
		awardKill(sess, deps, res.Kill)
	}
	return nil
}

// attackBoss routes damage through the encounter host so phase thresholds
// and the Moment of Opportunity bonus apply on the engine's timeline. The
// killing blow comes back as a kill result from the zone pipeline.
func attackBoss(sess *net.Session, zone *world.ZoneInstance, deps *Deps,
	ref world.ZoneRef, boss world.GUID, dmg int32) error {
	attacker := world.GUID(sess.PlayerGUID)
	remaining, kill, live := deps.Encounters.Damage(ref, attacker, dmg, time.Now())
	if !live {
		return nil
	}
	zone.Broadcast(packet.ServerSpellEffect{
		CasterGUID: uint64(attacker),
		TargetGUID: uint64(boss),
		Amount:     dmg,
	}.Encode())
	if kill != nil {
		// The kill pipeline already broadcast the death; pay the killer.
		awardKill(sess, deps, kill)
		return nil
	}
	tgt, ok := zone.GetEntity(boss)
	if !ok {
		return nil
	}
	zone.Broadcast(packet.ServerEntityHealth{
		GUID:      uint64(boss),
		Health:    uint32(remaining),
		MaxHealth: uint32(tgt.MaxHealth),
	}.Encode())
	return nil
}

// awardKill persists the killer's XP and gold and tells them what dropped.
func awardKill(sess *net.Session, deps *Deps, kill *world.KillResult) {
	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()

	c, err := deps.Chars.Load(ctx, sess.CharacterID)
	if err != nil {
		deps.Log.Warn("擊殺獎勵讀取角色失敗",
			zap.Int32("character", sess.CharacterID), zap.Error(err))
		return
	}
	if err := deps.Chars.SaveProgress(ctx, c.ID, c.Level,
		c.XP+int64(kill.XP), c.Gold+kill.Gold); err != nil {
		deps.Log.Warn("擊殺獎勵寫入失敗",
			zap.Int32("character", sess.CharacterID), zap.Error(err))
		return
	}

	msg := fmt.Sprintf("獲得 %d 經驗值、%d 金幣", kill.XP, kill.Gold)
	for _, drop := range kill.Items {
		if item := deps.Store.Item(drop.ItemID); item != nil {
			msg += fmt.Sprintf("、%s x%d", item.Name, drop.Count)
		}
	}
	sess.Send(packet.ServerChat{
		Channel: packet.ChatSystem,
		Message: msg,
	}.Encode())
}
