// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package vmhost

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"luaward/value"
)

func newHost(t *testing.T, cfg Config) *Host {
	t.Helper()
	h := New(cfg)
	t.Cleanup(h.Close)
	return h
}

func TestExecuteRunsPlainScript(t *testing.T) {
	h := newHost(t, Config{})
	require.NoError(t, h.Execute(`x = 1 + 1`))
}

func TestExecuteReportsScriptError(t *testing.T) {
	h := newHost(t, Config{})
	err := h.Execute(`error("boom")`)
	require.Error(t, err)
	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
}

func TestExecuteRejectsSyntaxError(t *testing.T) {
	h := newHost(t, Config{})
	err := h.Execute(`this is not lua`)
	require.Error(t, err)
}

func TestCallRoundTripsArgsAndResult(t *testing.T) {
	h := newHost(t, Config{})
	require.NoError(t, h.Execute(`
		function add(a, b) return a + b end
	`))

	result, err := h.Call("add", value.Int(2), value.Int(3))
	require.NoError(t, err)
	require.Equal(t, value.KindInt, result.Kind)
	require.Equal(t, int64(5), result.Int)
}

func TestCallOnMissingFunctionIsScriptError(t *testing.T) {
	h := newHost(t, Config{})
	_, err := h.Call("doesNotExist")
	require.Error(t, err)
	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
}

func TestFunctionExists(t *testing.T) {
	h := newHost(t, Config{})
	require.NoError(t, h.Execute(`function known() end`))

	require.True(t, h.FunctionExists("known"))
	require.False(t, h.FunctionExists("unknown"))
}

func TestCallbackBridgeInvokesHostFunction(t *testing.T) {
	var seen []value.Value
	h := newHost(t, Config{
		Callbacks: map[string]Callback{
			"hostAdd": func(args []value.Value) (value.Value, error) {
				seen = args
				return value.Int(args[0].Int + args[1].Int), nil
			},
		},
	})

	require.NoError(t, h.Execute(`
		function useHost()
			return hostAdd(4, 5)
		end
	`))
	result, err := h.Call("useHost")
	require.NoError(t, err)
	require.Equal(t, int64(9), result.Int)
	require.Len(t, seen, 2)
}

func TestCallbackErrorSurfacesAsStringToScript(t *testing.T) {
	h := newHost(t, Config{
		Callbacks: map[string]Callback{
			"failer": func(args []value.Value) (value.Value, error) {
				return value.Nil(), errors.New("denied")
			},
		},
	})

	require.NoError(t, h.Execute(`
		function useFailer()
			local r = failer()
			return r
		end
	`))
	result, err := h.Call("useFailer")
	require.NoError(t, err)
	require.Equal(t, value.KindString, result.Kind)
	require.Contains(t, string(result.Str), "denied")
}

func TestInstructionCapAbortsRunawayLoop(t *testing.T) {
	h := newHost(t, Config{InstrCap: 5000})
	err := h.Execute(`while true do end`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Instruction limit exceeded")
}

func TestInstructionCounterResetsBetweenCalls(t *testing.T) {
	h := newHost(t, Config{InstrCap: 50000})
	require.NoError(t, h.Execute(`
		function spin(n)
			local x = 0
			for i = 1, n do x = x + 1 end
			return x
		end
	`))
	for i := 0; i < 5; i++ {
		_, err := h.Call("spin", value.Int(10000))
		require.NoError(t, err)
	}
}
