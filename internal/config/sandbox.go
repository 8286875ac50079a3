package config

import (
	lua "github.com/yuin/gopher-lua"
)

// safeLibs are the only standard libraries a config can see. os, io,
// package and debug are never opened.
var safeLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// loaderGlobals are base functions that read, compile or import code at
// runtime. OpenBase registers require and module even without package.
var loaderGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

// newSandboxedVM returns a Lua state with only safeLibs opened and the
// code loaders removed from the base library.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: 256,
		RegistrySize:  1024 * 8,
	})
	for _, lib := range safeLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range loaderGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
