package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestNewSandboxedVM(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
		errMsg  string
	}{
		// Safe operations that should work
		{name: "string operations allowed", code: `x = string.upper("hello")`},
		{name: "table operations allowed", code: `t = {1, 2, 3}; table.insert(t, 4)`},
		{name: "math operations allowed", code: `x = math.max(10, 30)`},
		{name: "basic functions allowed", code: `x = type("hello"); y = tostring(123); z = tonumber("456")`},

		// Dangerous operations that should fail
		{name: "os.execute blocked", code: `os.execute("id")`, wantErr: true, errMsg: "attempt to index"},
		{name: "os.getenv blocked", code: `x = os.getenv("SHADOW_ORG_TOKEN")`, wantErr: true, errMsg: "attempt to index"},
		{name: "io.open blocked", code: `f = io.open("/etc/shadow")`, wantErr: true, errMsg: "attempt to index"},
		{name: "io.popen blocked", code: `f = io.popen("id")`, wantErr: true, errMsg: "attempt to index"},
		{name: "require blocked", code: `socket = require("socket")`, wantErr: true, errMsg: "attempt to call"},
		{name: "dofile blocked", code: `dofile("/tmp/evil.lua")`, wantErr: true, errMsg: "attempt to call"},
		{name: "loadfile blocked", code: `f = loadfile("/tmp/evil.lua")`, wantErr: true, errMsg: "attempt to call"},
		{name: "load blocked", code: `f = load("return 1+1")`, wantErr: true, errMsg: "attempt to call"},
		{name: "loadstring blocked", code: `f = loadstring("return 1+1")`, wantErr: true, errMsg: "attempt to call"},
		{name: "module blocked", code: `module("evil")`, wantErr: true, errMsg: "attempt to call"},
		{name: "debug blocked", code: `debug.getinfo(1)`, wantErr: true, errMsg: "attempt to index"},
		{name: "package blocked", code: `x = package.path`, wantErr: true, errMsg: "attempt to index"},
		{name: "coroutine not opened", code: `coroutine.create(function() end)`, wantErr: true, errMsg: "attempt to index"},
		{name: "pcall allowed", code: `ok = pcall(error, "boom")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newSandboxedVM()
			defer L.Close()

			err := L.DoString(tt.code)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewSandboxedVM_ComputesValues(t *testing.T) {
	L := newSandboxedVM()
	defer L.Close()

	code := `
		host = string.format("%s.%s", "agents", "example.com")
		parts = {"a", "b"}
		table.insert(parts, "c")
		joined = table.concat(parts, "/")
		interval = math.floor(45.7)
	`
	require.NoError(t, L.DoString(code))

	assert.Equal(t, "agents.example.com", L.GetGlobal("host").String())
	assert.Equal(t, "a/b/c", L.GetGlobal("joined").String())
	assert.Equal(t, lua.LNumber(45), L.GetGlobal("interval"))
}

func TestNewSandboxedVM_NoLoaderGlobals(t *testing.T) {
	L := newSandboxedVM()
	defer L.Close()

	for _, name := range loaderGlobals {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), name)
	}
	assert.Contains(t, loaderGlobals, "require")
}
