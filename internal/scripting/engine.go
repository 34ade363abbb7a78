package scripting

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

//go:embed default.lua
var defaultScript string

// Engine wraps a single gopher-lua VM holding the demo formulas.
// Single-goroutine access only: systems reach it through ecs.WriteRes so the
// scheduler never runs two of its users at once.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine loads the built-in formulas, then every .lua file of scriptsDir
// on top of them. An empty scriptsDir keeps the built-ins.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := vm.DoString(defaultScript); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load built-in scripts: %w", err)
	}
	if scriptsDir != "" {
		if err := e.loadDir(scriptsDir); err != nil {
			vm.Close()
			return nil, err
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return fmt.Errorf("read scripts: %w", err)
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

// DamageContext holds pre-packed data for one Targeting edge.
type DamageContext struct {
	Base      int32
	Distance  float64
	TargetHP  int32
	TargetMax int32
}

// DamageResult is returned by the Lua damage function.
type DamageResult struct {
	IsHit  bool
	Damage int32
}

// CalcDamage calls the Lua calc_damage function. Errors fall back to a hit
// for the base damage.
func (e *Engine) CalcDamage(ctx DamageContext) DamageResult {
	fallback := DamageResult{IsHit: true, Damage: ctx.Base}
	fn := e.vm.GetGlobal("calc_damage")
	if fn == lua.LNil {
		e.log.Error("lua function calc_damage not found")
		return fallback
	}

	t := e.vm.NewTable()
	t.RawSetString("base", lua.LNumber(ctx.Base))
	t.RawSetString("distance", lua.LNumber(ctx.Distance))
	t.RawSetString("target_hp", lua.LNumber(ctx.TargetHP))
	t.RawSetString("target_max", lua.LNumber(ctx.TargetMax))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_damage error", zap.Error(err))
		return fallback
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua calc_damage returned non-table")
		return fallback
	}
	return DamageResult{
		IsHit:  rt.RawGetString("is_hit") == lua.LTrue,
		Damage: int32(lInt(rt, "damage")),
	}
}

// CalcRegen calls the Lua calc_regen function and returns the new health.
func (e *Engine) CalcRegen(perSecond, seconds, current, maxHP int32) int32 {
	return int32(e.callIntFunc("calc_regen", int(perSecond), int(seconds), int(current), int(maxHP)))
}

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// callIntFunc calls a Lua function with int args and returns an int result.
func (e *Engine) callIntFunc(name string, args ...int) int {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		e.log.Error("lua function not found", zap.String("name", name))
		return 0
	}

	lArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		lArgs[i] = lua.LNumber(a)
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lArgs...); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return 0
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return int(lua.LVAsNumber(result))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
