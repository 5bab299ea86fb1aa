package scripting

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding the combat formula scripts.
// The VM is not goroutine-safe, so every bridge call takes the mutex: zone
// instances run on separate goroutines and share one engine.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory. A missing directory is not an error: every formula has a Go
// fallback, so a server can boot without scripts.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	for _, sub := range []string{"core", "combat", "loot", "pvp"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// MeleeDamage calls Lua calc_melee_damage(ctx). The roll is pre-drawn in Go
// so the zone's seeded PRNG stays the only source of randomness.
func (e *Engine) MeleeDamage(min, max int32, rng *rand.Rand) int32 {
	roll := rng.Float64()

	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("calc_melee_damage")
	if fn == lua.LNil {
		return fallbackMelee(min, max, roll)
	}

	t := e.vm.NewTable()
	t.RawSetString("min", lua.LNumber(min))
	t.RawSetString("max", lua.LNumber(max))
	t.RawSetString("roll", lua.LNumber(roll))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_melee_damage error", zap.Error(err))
		return fallbackMelee(min, max, roll)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	dmg := int32(lua.LVAsNumber(result))
	if dmg < 0 {
		dmg = 0
	}
	return dmg
}

// XPReward calls Lua calc_xp_reward(level, base_xp).
func (e *Engine) XPReward(level, baseXP int32) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("calc_xp_reward")
	if fn == lua.LNil {
		return baseXP
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(level), lua.LNumber(baseXP)); err != nil {
		e.log.Error("lua calc_xp_reward error", zap.Error(err))
		return baseXP
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	xp := int32(lua.LVAsNumber(result))
	if xp < 0 {
		xp = 0
	}
	return xp
}

// TelegraphDamage calls Lua calc_telegraph_damage(ctx): base damage scaled
// by the target's normalized distance from the telegraph origin.
func (e *Engine) TelegraphDamage(base int32, distFrac float64) int32 {
	if distFrac < 0 {
		distFrac = 0
	} else if distFrac > 1 {
		distFrac = 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("calc_telegraph_damage")
	if fn == lua.LNil {
		return base
	}

	t := e.vm.NewTable()
	t.RawSetString("base", lua.LNumber(base))
	t.RawSetString("dist_frac", lua.LNumber(distFrac))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_telegraph_damage error", zap.Error(err))
		return base
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	dmg := int32(lua.LVAsNumber(result))
	if dmg < 0 {
		dmg = 0
	}
	return dmg
}

// DampenedHealing calls Lua calc_dampened_healing(amount, dampening).
// Dampening is the arena healing-reduction percent, 0-100.
func (e *Engine) DampenedHealing(amount int32, dampening int) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("calc_dampened_healing")
	if fn == lua.LNil {
		return fallbackDampen(amount, dampening)
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LNumber(amount), lua.LNumber(dampening)); err != nil {
		e.log.Error("lua calc_dampened_healing error", zap.Error(err))
		return fallbackDampen(amount, dampening)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	healed := int32(lua.LVAsNumber(result))
	if healed < 0 {
		healed = 0
	}
	return healed
}

func fallbackMelee(min, max int32, roll float64) int32 {
	if max <= min {
		return min
	}
	return min + int32(roll*float64(max-min+1))
}

func fallbackDampen(amount int32, dampening int) int32 {
	if dampening <= 0 {
		return amount
	}
	if dampening >= 100 {
		return 0
	}
	return amount * int32(100-dampening) / 100
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
