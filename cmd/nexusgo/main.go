package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nexusgo/server/internal/config"
	"github.com/nexusgo/server/internal/data"
	"github.com/nexusgo/server/internal/encounter"
	"github.com/nexusgo/server/internal/handler"
	gonet "github.com/nexusgo/server/internal/net"
	"github.com/nexusgo/server/internal/net/packet"
	"github.com/nexusgo/server/internal/persist"
	"github.com/nexusgo/server/internal/pvp"
	"github.com/nexusgo/server/internal/scripting"
	"github.com/nexusgo/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, realmID int32) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             NexusGo  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      動作戰鬥 MMO · Go 世界伺服器         \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s \033[90m(編號: %d)\033[0m\n\n", serverName, realmID)
}

func printSection(title string) {
	// Use rune count for CJK width calculation (each CJK char = 2 columns)
	displayWidth := 0
	for _, r := range title {
		if r > 0x7F {
			displayWidth += 2
		} else {
			displayWidth++
		}
	}
	lineLen := 46 - displayWidth - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	displayWidth := 0
	for _, r := range label {
		if r > 0x7F {
			displayWidth += 2
		} else {
			displayWidth++
		}
	}
	dotsLen := 42 - displayWidth - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config (path arg > NEXUSGO_CONFIG > defaults)
	cfgPath := ""
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.RealmID)

	// 3. Connect to PostgreSQL and run migrations
	printSection("資料庫")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL 連線成功")

	if err := persist.RunMigrations(ctx, db.Pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("資料庫遷移完成")
	fmt.Println()

	// 4. Create repositories
	accountRepo := persist.NewAccountRepo(db)
	charRepo := persist.NewCharacterRepo(db)
	realmRepo := persist.NewRealmRepo(db)
	pvpRepo := persist.NewPvPRepo(db)

	// 5. Load content
	printSection("資料載入")

	store, err := data.LoadStore(cfg.Content.Root, log)
	if err != nil {
		return fmt.Errorf("load content store: %w", err)
	}
	printStat("生物模板", store.Catalog.Len(data.TableCreatures))
	printStat("道具模板", store.Catalog.Len(data.TableItems))
	printStat("掉寶表", store.Catalog.Len(data.TableLootTables))
	printStat("生物生成點", store.Catalog.Len(data.TableCreatureSpawns))
	printStat("採集點", store.Catalog.Len(data.TableHarvestSpawns))

	encounters, err := encounter.LoadDir(cfg.Content.EncounterDir, log)
	if err != nil {
		return fmt.Errorf("load encounters: %w", err)
	}
	printStat("首領戰定義", len(encounters))

	luaEngine, err := scripting.NewEngine(cfg.Content.Root+"/scripts", log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("Lua 腳本載入完成")

	encounterHost := encounter.NewHost(encounters, luaEngine, log)
	defer encounterHost.Shutdown()
	fmt.Println()

	// 6. Spin up the world: router + starting zone instances
	printSection("世界")

	router := world.NewWorldRouter(store, luaEngine, world.ZoneOptions{
		CellSize:            float32(cfg.World.SpatialCellSize),
		AITickInterval:      time.Duration(cfg.World.AITickIntervalMs) * time.Millisecond,
		MaxCreaturesPerTick: cfg.World.MaxCreaturesPerTick,
		CombatTimeout:       time.Duration(cfg.World.CombatTimeoutMs) * time.Millisecond,
	}, log)
	bossCount := 0
	for _, zoneID := range cfg.World.StartingZones {
		zone := router.SpawnInstance(zoneID)
		for _, boss := range store.BossesForZone(zoneID) {
			tmpl := store.Creature(boss.CreatureID)
			if tmpl == nil {
				log.Warn("世界首領缺少生物模板",
					zap.Int64("boss", boss.ID),
					zap.Int64("creature", boss.CreatureID))
				continue
			}
			guid := router.Alloc().Next(world.TypeCreature)
			err := zone.AddEntity(world.Entity{
				GUID:        guid,
				Type:        world.TypeCreature,
				Position:    world.Vec3{X: boss.X, Y: boss.Y, Z: boss.Z},
				Faction:     tmpl.Faction,
				Level:       tmpl.Level,
				Health:      tmpl.MaxHealth,
				MaxHealth:   tmpl.MaxHealth,
				Name:        tmpl.Name,
				CreatureID:  tmpl.ID,
				DisplayInfo: tmpl.DisplayInfo,
			})
			if err != nil {
				log.Warn("世界首領放置失敗", zap.Int64("boss", boss.ID), zap.Error(err))
				continue
			}
			if err := encounterHost.Engage(zone, boss.Encounter, guid, boss.ID); err != nil {
				log.Warn("遭遇戰啟動失敗",
					zap.String("encounter", boss.Encounter),
					zap.Error(err))
				continue
			}
			bossCount++
		}
	}
	printStat("起始區域", len(cfg.World.StartingZones))
	printStat("世界首領", bossCount)

	// 7. PvP managers
	duelCfg := pvp.DuelConfig{
		RequestTimeout: time.Duration(cfg.Duel.RequestTimeoutMs) * time.Millisecond,
		Countdown:      time.Duration(cfg.Duel.CountdownS) * time.Second,
		BoundaryRadius: cfg.Duel.BoundaryRadius,
		TotalTimeout:   time.Duration(cfg.Duel.TotalTimeoutMs) * time.Millisecond,
	}
	duels := pvp.NewDuelManager(duelCfg, pvpRepo, log)
	defer duels.Stop()

	arenaCfg := pvp.ArenaConfig{
		Preparation:      time.Duration(cfg.Arena.PreparationMs) * time.Millisecond,
		RoundCap:         time.Duration(cfg.Arena.RoundCapMs) * time.Millisecond,
		DampeningStart:   time.Duration(cfg.Arena.DampeningStartMs) * time.Millisecond,
		DampeningTick:    time.Duration(cfg.Arena.DampeningTickMs) * time.Millisecond,
		DampeningPerTick: cfg.Arena.DampeningPerTick,
		EndingDuration:   10 * time.Second,
	}
	arena := pvp.NewArenaQueue(arenaCfg, pvpRepo, log)
	defer arena.Stop()
	printOK("PvP 管理器啟動")
	fmt.Println()

	// 8. Handler registry + listeners
	var worldSessions sync.Map // char name → *gonet.Session
	deps := &handler.Deps{
		Accounts:   accountRepo,
		Chars:      charRepo,
		Realms:     realmRepo,
		Config:     cfg,
		Log:        log,
		Store:      store,
		Router:     router,
		Duels:      duels,
		Arena:      arena,
		Encounters: encounterHost,
		Calc:       luaEngine,
		Sessions: func(name string) *gonet.Session {
			if v, ok := worldSessions.Load(name); ok {
				return v.(*gonet.Session)
			}
			return nil
		},
	}
	pktReg := packet.NewRegistry(log)
	handler.RegisterAll(pktReg, deps)

	sessOpts := gonet.SessionOptions{
		InQueueSize:  cfg.Network.InQueueSize,
		OutQueueSize: cfg.Network.OutQueueSize,
		PktPerSec:    0,
		WriteTimeout: cfg.Network.WriteTimeout,
	}
	if cfg.RateLimit.Enabled {
		sessOpts.PktPerSec = cfg.RateLimit.PacketsPerSecond
	}

	authSrv, err := gonet.NewServer(cfg.Network.AuthAddress, packet.ConnAuth, pktReg, sessOpts, log)
	if err != nil {
		return fmt.Errorf("auth listener: %w", err)
	}
	realmSrv, err := gonet.NewServer(cfg.Network.RealmAddress, packet.ConnRealm, pktReg, sessOpts, log)
	if err != nil {
		return fmt.Errorf("realm listener: %w", err)
	}
	worldSrv, err := gonet.NewServer(cfg.Network.WorldAddress, packet.ConnWorld, pktReg, sessOpts, log)
	if err != nil {
		return fmt.Errorf("world listener: %w", err)
	}
	worldSrv.OnClose = func(sess *gonet.Session) {
		if sess.CharName != "" {
			worldSessions.Delete(sess.CharName)
		}
		handler.DetachFromWorld(sess, deps)
	}

	go authSrv.AcceptLoop()
	go realmSrv.AcceptLoop()
	go worldSrv.AcceptLoop()

	// Whisper routing needs name → session; index sessions as they enter
	// the world.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			worldSrv.Each(func(s *gonet.Session) {
				if s.Stage() == packet.StageInWorld && s.CharName != "" {
					worldSessions.Store(s.CharName, s)
				}
			})
		}
	}()

	printSection("伺服器就緒")
	printReady(fmt.Sprintf("認證監聽 %s", authSrv.Addr()))
	printReady(fmt.Sprintf("領域監聽 %s", realmSrv.Addr()))
	printReady(fmt.Sprintf("世界監聽 %s", worldSrv.Addr()))
	fmt.Println()

	// 9. Block until shutdown signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownCh
	log.Info("收到關閉信號", zap.String("signal", sig.String()))

	worldSrv.Shutdown()
	realmSrv.Shutdown()
	authSrv.Shutdown()
	router.Shutdown()
	log.Info("伺服器已停止")
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
