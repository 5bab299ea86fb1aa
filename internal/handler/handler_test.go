package handler

import (
	"math/rand"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nexusgo/server/internal/config"
	gonet "github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/world"
)

func testSession(t *testing.T, id uint64) *gonet.Session {
	t.Helper()
	client, server := net.Pipe()
	s := gonet.NewSession(server, id, packet.ConnWorld, gonet.SessionOptions{
		InQueueSize:  4,
		OutQueueSize: 4,
		WriteTimeout: time.Second,
	}, zap.NewNop())
	t.Cleanup(func() {
		s.Close()
		client.Close()
	})
	return s
}

func TestClampMoveWithinBound(t *testing.T) {
	cur := world.Vec3{X: 10, Y: 10}
	target := world.Vec3{X: 20, Y: 10}
	got := clampMove(cur, target)
	if got != target {
		t.Fatalf("short move altered: %+v", got)
	}
}

func TestClampMoveLimitsJump(t *testing.T) {
	cur := world.Vec3{}
	target := world.Vec3{X: 200}
	got := clampMove(cur, target)
	if d := cur.Dist(got); d > maxMoveDelta+0.001 {
		t.Fatalf("clamped move travels %.2f, max %v", d, maxMoveDelta)
	}
	// Direction preserved.
	if got.X <= 0 || got.Y != 0 || got.Z != 0 {
		t.Fatalf("clamped move off axis: %+v", got)
	}
}

func TestValidLocationWhitelist(t *testing.T) {
	for _, loc := range []uint16{packet.LocEquipped, packet.LocBag, packet.LocBank, packet.LocTrade} {
		if !validLocation(loc) {
			t.Errorf("location %d rejected", loc)
		}
	}
	if validLocation(9) {
		t.Error("unknown location accepted")
	}
}

func TestPlayerDamageSpan(t *testing.T) {
	min1, max1 := playerDamageSpan(1)
	if min1 >= max1 {
		t.Fatalf("empty roll window: [%d,%d]", min1, max1)
	}
	min50, max50 := playerDamageSpan(50)
	if min50 <= min1 || max50 <= max1 {
		t.Fatalf("damage does not scale with level: [%d,%d] vs [%d,%d]",
			min1, max1, min50, max50)
	}
}

func TestRollMeleeFallbackBounds(t *testing.T) {
	deps := &Deps{rng: rand.New(rand.NewSource(1))}
	for i := 0; i < 100; i++ {
		if got := deps.rollMelee(5, 9); got < 5 || got > 9 {
			t.Fatalf("roll %d outside [5,9]", got)
		}
	}
	if got := deps.rollMelee(7, 7); got != 7 {
		t.Fatalf("degenerate window: got %d, want 7", got)
	}
}

func TestChatRateLimitWindow(t *testing.T) {
	deps := &Deps{
		Config: &config.Config{
			RateLimit: config.RateLimitConfig{Enabled: true, ChatPerTenSeconds: 3},
		},
		chatWindows: make(map[uint64]*chatWindow),
	}
	sess := testSession(t, 7)

	for i := 0; i < 3; i++ {
		if deps.chatLimited(sess) {
			t.Fatalf("message %d limited below the budget", i+1)
		}
	}
	if !deps.chatLimited(sess) {
		t.Fatal("fourth message within the window should be limited")
	}

	// A different session has its own window.
	other := testSession(t, 8)
	if deps.chatLimited(other) {
		t.Fatal("fresh session limited")
	}
}

func TestLoginRateLimitPerIP(t *testing.T) {
	deps := &Deps{
		Config: &config.Config{
			RateLimit: config.RateLimitConfig{Enabled: true, LoginAttemptsPerMinute: 2},
		},
		loginWindows: make(map[string]*chatWindow),
	}

	for i := 0; i < 2; i++ {
		if deps.loginLimited("10.0.0.1") {
			t.Fatalf("attempt %d limited below the budget", i+1)
		}
	}
	if !deps.loginLimited("10.0.0.1") {
		t.Fatal("third attempt within the window should be limited")
	}
	if deps.loginLimited("10.0.0.2") {
		t.Fatal("other address limited")
	}
}

func TestChatRateLimitDisabled(t *testing.T) {
	deps := &Deps{
		Config:      &config.Config{},
		chatWindows: make(map[uint64]*chatWindow),
	}
	sess := testSession(t, 1)
	for i := 0; i < 50; i++ {
		if deps.chatLimited(sess) {
			t.Fatal("limiter fired while disabled")
		}
	}
}
