package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/persist"
)

// Auth result codes.
const (
	authOK           byte = 0
	authBadPassword  byte = 1
	authBanned       byte = 2
	authAlreadyInUse byte = 3
	authInternal     byte = 4
	authRateLimited  byte = 5
)

const repoTimeout = 5 * time.Second

// HandleAuthLogin processes the account/password login.
// Format: [string account][string password]
func HandleAuthLogin(sess *net.Session, r *packet.Reader, deps *Deps) error {
	accountName := strings.ToLower(r.ReadString())
	password := r.ReadString()

	if deps.loginLimited(sess.IP) {
		sendAuthResult(sess, authRateLimited)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()

	account, err := deps.Accounts.Load(ctx, accountName)
	if errors.Is(err, persist.ErrNotFound) {
		// Same code as a wrong password: account names are not probeable.
		sendAuthResult(sess, authBadPassword)
		return nil
	}
	if err != nil {
		deps.Log.Error("載入帳號資料庫錯誤", zap.Error(err))
		sendAuthResult(sess, authInternal)
		return nil
	}

	if !deps.Accounts.ValidatePassword(account.PasswordHash, password) {
		sendAuthResult(sess, authBadPassword)
		return nil
	}
	if account.Banned {
		deps.Log.Info(fmt.Sprintf("被封鎖帳號嘗試登入  帳號=%s", accountName))
		sendAuthResult(sess, authBanned)
		return nil
	}
	if account.Online {
		sendAuthResult(sess, authAlreadyInUse)
		return nil
	}

	if err := deps.Accounts.SetOnline(ctx, accountName, true); err != nil {
		deps.Log.Error("設定上線狀態資料庫錯誤", zap.Error(err))
	}
	if err := deps.Accounts.UpdateLastActive(ctx, accountName, sess.IP); err != nil {
		deps.Log.Error("更新最後活動時間資料庫錯誤", zap.Error(err))
	}

	sess.AccountName = accountName
	sess.SetStage(packet.StageAuthenticated)
	sendAuthResult(sess, authOK)

	deps.Log.Info(fmt.Sprintf("登入成功  帳號=%s  ip=%s", accountName, sess.IP))
	return nil
}

// loginLimited enforces the per-IP login budget over a sliding 60 s
// window. Failed and successful attempts count the same.
func (d *Deps) loginLimited(ip string) bool {
	limit := d.Config.RateLimit.LoginAttemptsPerMinute
	if !d.Config.RateLimit.Enabled || limit <= 0 {
		return false
	}

	d.loginMu.Lock()
	defer d.loginMu.Unlock()

	now := time.Now()
	w, ok := d.loginWindows[ip]
	if !ok || now.Sub(w.start) >= time.Minute {
		d.loginWindows[ip] = &chatWindow{start: now, sent: 1}
		return false
	}
	w.sent++
	return w.sent > limit
}

func sendAuthResult(sess *net.Session, code byte) {
	w := packet.NewWriterWithOpcode(packet.SOpcodeAuthResult)
	w.WriteC(code)
	sess.Send(w.Bytes())
}

// HandleRealmList returns the realm roster.
func HandleRealmList(sess *net.Session, _ *packet.Reader, deps *Deps) error {
	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()

	realms, err := deps.Realms.List(ctx)
	if err != nil {
		deps.Log.Error("載入伺服器清單資料庫錯誤", zap.Error(err))
		return err
	}

	w := packet.NewWriterWithOpcode(packet.SOpcodeRealmList)
	w.WriteC(byte(len(realms)))
	for _, rm := range realms {
		w.WriteD(rm.ID)
		w.WriteString(rm.Name)
		w.WriteString(rm.Address)
		w.WriteD(rm.Population)
		if rm.Locked {
			w.WriteC(1)
		} else {
			w.WriteC(0)
		}
	}
	sess.Send(w.Bytes())
	return nil
}

// HandleRealmSelect validates the chosen realm and hands out its world
// address. Format: [d realm_id]
func HandleRealmSelect(sess *net.Session, r *packet.Reader, deps *Deps) error {
	realmID := r.ReadD()

	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()

	realm, err := deps.Realms.Load(ctx, realmID)
	if errors.Is(err, persist.ErrNotFound) {
		deps.Log.Warn("選擇不存在的伺服器", zap.Int32("realm", realmID))
		return nil
	}
	if err != nil {
		return err
	}
	if realm.Locked {
		deps.Log.Info("伺服器已鎖定", zap.Int32("realm", realmID))
		return nil
	}

	sess.RealmID = realmID
	sess.SetStage(packet.StageInRealm)

	w := packet.NewWriterWithOpcode(packet.SOpcodeRealmJoin)
	w.WriteD(realm.ID)
	w.WriteString(realm.Address)
	sess.Send(w.Bytes())
	return nil
}
