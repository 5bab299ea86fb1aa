package handler

import (
	"time"

	"github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
)

const maxChatLength = 255

// HandleChat routes one chat line: zone channels broadcast through the
// zone instance, whispers resolve the target session by name, and every
// failure class answers with a ServerChatResult code.
func HandleChat(sess *net.Session, r *packet.Reader, deps *Deps) error {
	msg := packet.DecodeClientChat(r)

	if len(msg.Message) > maxChatLength {
		sendChatResult(sess, packet.ChatResultMessageTooLong, msg.Channel)
		return nil
	}
	if deps.chatLimited(sess) {
		sendChatResult(sess, packet.ChatResultRateLimited, msg.Channel)
		return nil
	}

	out := packet.ServerChat{
		Channel:    msg.Channel,
		SenderGUID: sess.PlayerGUID,
		SenderName: sess.CharName,
		Message:    msg.Message,
	}.Encode()

	switch msg.Channel {
	case packet.ChatSay, packet.ChatYell, packet.ChatEmote, packet.ChatZone:
		zone, ok := deps.zoneOf(sess)
		if !ok {
			sendChatResult(sess, packet.ChatResultChannelUnavailable, msg.Channel)
			return nil
		}
		zone.Broadcast(out)

	case packet.ChatWhisper:
		if deps.Sessions == nil {
			sendChatResult(sess, packet.ChatResultChannelUnavailable, msg.Channel)
			return nil
		}
		target := deps.Sessions(msg.Target)
		if target == nil {
			sendChatResult(sess, packet.ChatResultPlayerNotFound, msg.Channel)
			return nil
		}
		if target.Stage() != packet.StageInWorld {
			sendChatResult(sess, packet.ChatResultPlayerOffline, msg.Channel)
			return nil
		}
		target.Send(out)

	case packet.ChatParty:
		// 隊伍系統尚未開放
		sendChatResult(sess, packet.ChatResultChannelUnavailable, msg.Channel)
		return nil

	default:
		sendChatResult(sess, packet.ChatResultChannelUnavailable, msg.Channel)
		return nil
	}

	sendChatResult(sess, packet.ChatResultSuccess, msg.Channel)
	return nil
}

func sendChatResult(sess *net.Session, result, channel uint32) {
	sess.Send(packet.ServerChatResult{Result: result, Channel: channel}.Encode())
}

// chatLimited enforces the per-session chat budget over a sliding 10 s
// window.
func (d *Deps) chatLimited(sess *net.Session) bool {
	limit := d.Config.RateLimit.ChatPerTenSeconds
	if !d.Config.RateLimit.Enabled || limit <= 0 {
		return false
	}

	d.chatMu.Lock()
	defer d.chatMu.Unlock()

	now := time.Now()
	w, ok := d.chatWindows[sess.ID]
	if !ok || now.Sub(w.start) >= 10*time.Second {
		d.chatWindows[sess.ID] = &chatWindow{start: now, sent: 1}
		return false
	}
	w.sent++
	return w.sent > limit
}
