// Copyright 2016 The go-ethereum Authors
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

package sandbox

import (
	"testing"

	"github.com/stretchr/testify/require"

	"luaward/internal/luacore"
)

func newSandboxedState(t *testing.T) *luacore.State {
	t.Helper()
	st := luacore.NewState()
	t.Cleanup(st.Close)
	Install(st)
	return st
}

func TestForbiddenGlobalsAreNil(t *testing.T) {
	st := newSandboxedState(t)

	names := []string{
		"os", "io", "debug", "package", "coroutine",
		"dofile", "load", "loadfile", "loadstring", "require", "module",
		"collectgarbage", "getmetatable", "setmetatable",
		"rawget", "rawset", "rawequal", "rawlen",
	}
	for _, name := range names {
		st.GetGlobal(name)
		require.Equal(t, luacore.TNil, st.Type(-1), "global %q should be nil after sandbox install", name)
		st.Pop(1)
	}
}

func TestStringDumpIsAbsent(t *testing.T) {
	st := newSandboxedState(t)

	require.NoError(t, st.LoadText([]byte(`return ("x").dump`), "t"))
	require.NoError(t, st.PCall(0, 1))
	require.Equal(t, luacore.TNil, st.Type(-1))
	st.Pop(1)
}

func TestStringMethodsStillWork(t *testing.T) {
	st := newSandboxedState(t)

	require.NoError(t, st.LoadText([]byte(`return ("hello"):upper()`), "t"))
	require.NoError(t, st.PCall(0, 1))
	require.Equal(t, "HELLO", st.ToString(-1))
	st.Pop(1)
}

func TestPrintSurvives(t *testing.T) {
	st := newSandboxedState(t)

	st.GetGlobal("print")
	require.Equal(t, luacore.TFunction, st.Type(-1))
	st.Pop(1)
}

func TestSafeLibrariesSurvive(t *testing.T) {
	st := newSandboxedState(t)

	for _, lib := range []string{"table", "string", "math"} {
		st.GetGlobal(lib)
		require.Equal(t, luacore.TTable, st.Type(-1), "library %q should remain", lib)
		st.Pop(1)
	}
}
