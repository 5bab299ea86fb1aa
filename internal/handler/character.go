package handler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/persist"
	"github.com/nexusgo/server/internal/world"
)

// HandleCharacterList sends the account's characters on the selected realm.
func HandleCharacterList(sess *net.Session, _ *packet.Reader, deps *Deps) error {
	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()

	chars, err := deps.Chars.LoadByAccount(ctx, sess.AccountName, sess.RealmID)
	if err != nil {
		deps.Log.Error("載入角色清單資料庫錯誤", zap.Error(err))
		return err
	}

	w := packet.NewWriterWithOpcode(packet.SOpcodeCharacterList)
	w.WriteC(byte(len(chars)))
	for _, c := range chars {
		w.WriteD(c.ID)
		w.WriteString(c.Name)
		w.WriteC(byte(c.ClassID))
		w.WriteD(c.Faction)
		w.WriteC(byte(c.Level))
		w.WriteD(c.ZoneID)
		w.WriteD(c.DisplayInfo)
	}
	sess.Send(w.Bytes())
	return nil
}

// HandleEnterWorld loads the character, places it in its zone instance,
// and flips the session into the world. Format: [d character_id]
func HandleEnterWorld(sess *net.Session, r *packet.Reader, deps *Deps) error {
	charID := r.ReadD()

	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()

	c, err := deps.Chars.Load(ctx, charID)
	if errors.Is(err, persist.ErrNotFound) {
		deps.Log.Warn("進入世界的角色不存在", zap.Int32("char", charID))
		return nil
	}
	if err != nil {
		return err
	}
	if c.AccountName != sess.AccountName {
		deps.Log.Warn("嘗試使用他人角色進入世界",
			zap.String("account", sess.AccountName), zap.Int32("char", charID))
		return nil
	}

	sess.SetStage(packet.StageLoading)

	zone, err := deps.Router.PickInstance(c.ZoneID)
	if err != nil {
		deps.Log.Error("無可用區域實例", zap.Int32("zone", c.ZoneID), zap.Error(err))
		return err
	}

	guid := deps.Router.Alloc().Next(world.TypePlayer)
	ent := world.Entity{
		GUID:        guid,
		Type:        world.TypePlayer,
		Position:    world.Vec3{X: float32(c.X), Y: float32(c.Y), Z: float32(c.Z)},
		Faction:     c.Faction,
		Level:       int32(c.Level),
		Health:      c.Health,
		MaxHealth:   c.MaxHealth,
		Name:        c.Name,
		DisplayInfo: c.DisplayInfo,
	}
	if err := zone.AddPlayer(ent, sess); err != nil {
		return fmt.Errorf("place player: %w", err)
	}

	sess.CharacterID = c.ID
	sess.CharName = c.Name
	sess.PlayerGUID = uint64(guid)
	sess.ZoneID = zone.Ref.ZoneID
	sess.InstanceID = zone.Ref.InstanceID
	sess.SetStage(packet.StageInWorld)

	if err := deps.Chars.TouchLogin(ctx, c.ID); err != nil {
		deps.Log.Warn("更新登入時間失敗", zap.Error(err))
	}

	w := packet.NewWriterWithOpcode(packet.SOpcodeWorldEnter)
	w.WriteQ(uint64(guid))
	w.WriteD(zone.Ref.ZoneID)
	w.WriteD(zone.Ref.InstanceID)
	w.WriteF(ent.Position.X)
	w.WriteF(ent.Position.Y)
	w.WriteF(ent.Position.Z)
	sess.Send(w.Bytes())

	deps.Log.Info(fmt.Sprintf("角色進入世界  名稱=%s  區域=%s", c.Name, zone.Ref))
	return nil
}

// HandleLogout saves the character and detaches it from the world.
func HandleLogout(sess *net.Session, _ *packet.Reader, deps *Deps) error {
	DetachFromWorld(sess, deps)
	sess.SetStage(packet.StageDisconnecting)
	sess.Close()
	return nil
}

// DetachFromWorld removes the player from its zone and persists position
// and health. Safe to call for sessions that never entered the world; the
// server's close hook uses it for abrupt disconnects too.
func DetachFromWorld(sess *net.Session, deps *Deps) {
	if sess.PlayerGUID == 0 {
		return
	}
	guid := world.GUID(sess.PlayerGUID)

	if deps.Duels != nil {
		// A live duel counts as forfeited on logout.
		deps.Duels.Forfeit(guid)
	}
	if deps.Arena != nil {
		deps.Arena.Leave(guid)
	}

	zone, ok := deps.zoneOf(sess)
	if !ok {
		return
	}
	ent, ok := zone.RemoveEntity(guid)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()
	err := deps.Chars.SavePosition(ctx, sess.CharacterID, sess.ZoneID,
		float64(ent.Position.X), float64(ent.Position.Y), float64(ent.Position.Z), ent.Health)
	if err != nil {
		deps.Log.Error("儲存角色位置失敗", zap.Int32("char", sess.CharacterID), zap.Error(err))
	}
	if err := deps.Accounts.SetOnline(ctx, sess.AccountName, false); err != nil {
		deps.Log.Warn("清除上線狀態失敗", zap.Error(err))
	}

	sess.PlayerGUID = 0
	deps.Log.Info(fmt.Sprintf("角色離開世界  名稱=%s", sess.CharName))
}
