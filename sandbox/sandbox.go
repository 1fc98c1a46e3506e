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

// Package sandbox applies the surface-reduction policy to a freshly opened
// Lua state before any untrusted chunk is loaded into it: library roots are
// deleted outright, a handful of base-library primitives that would let a
// script reach them again are deleted alongside, and the one implicit
// metatable Lua install (on strings) is replaced with a sealed copy of the
// pruned string library.
package sandbox

import (
	mapset "github.com/deckarep/golang-set"

	"luaward/internal/luacore"
)

// forbiddenGlobals is the exact set named in spec.md §4.2 / §8 invariant 4.
// A mapset.Set gives Install and its tests the same membership idiom the
// teacher's miner package uses for its ancestor/family/uncle sets.
var forbiddenGlobals = mapset.NewSetFromSlice([]interface{}{
	"dofile", "load", "loadfile", "loadstring", "require", "module",
	"collectgarbage", "getmetatable", "setmetatable",
	"rawget", "rawset", "rawequal", "rawlen",
})

// forbiddenLibraries are whole library tables removed outright.
var forbiddenLibraries = mapset.NewSetFromSlice([]interface{}{
	"os", "io", "debug", "package", "coroutine",
})

// Install opens the safe subset of the Lua standard library on st and then
// applies the removals and the string-metatable seal described in
// spec.md §4.2. It must run before any untrusted source is loaded; calling
// it twice on the same state is not supported.
func Install(st *luacore.State) {
	openSafeLibraries(st)

	st.PushGlobalTable()
	globals := st.Top()

	forbiddenLibraries.Each(func(name interface{}) bool {
		st.PushNil()
		st.SetGlobal(name.(string))
		return false
	})
	forbiddenGlobals.Each(func(name interface{}) bool {
		st.PushNil()
		st.SetGlobal(name.(string))
		return false
	})

	pruneStringLibrary(st)
	sealStringMetatable(st)

	st.Pop(1) // globals
	_ = globals
}

// pruneStringLibrary removes string.dump: spec.md §4.2, "From the string
// library, remove dump." Without this, (""):dump() would still recover
// bytecode dumping through the metatable even after the seal below, since
// the seal's __index points at this very table.
func pruneStringLibrary(st *luacore.State) {
	st.GetGlobal("string")
	st.PushNil()
	st.SetField(-2, "dump")
	st.Pop(1)
}

// sealStringMetatable replaces the per-string metatable Lua installs
// implicitly with a fresh table whose only entry is __index pointing at
// the (already pruned) string library. This is what makes
// (""):dump() fail even though "dump" was only removed from the string
// table and not from every possible alias of it: there is no other alias
// left, because the implicit metatable was the only other path to it.
func sealStringMetatable(st *luacore.State) {
	st.PushString(nil) // any string value carries the shared metatable
	st.NewTable()       // the fresh metatable
	st.GetGlobal("string")
	st.SetField(-2, "__index")
	st.SetMetatable(-2)
	st.Pop(1) // the sample string value
}

// openSafeLibraries opens base, table, string, math, and utf8 — the
// libraries spec.md §4.2 leaves in place, either whole (math, table, utf8)
// or pruned in place (string, base). os, io, debug, package, and coroutine
// are never opened at all, which is simpler and more robust than opening
// and then deleting them: a script can't recover a library table that was
// never registered anywhere (not even in package.loaded).
func openSafeLibraries(st *luacore.State) {
	st.OpenBase()
	st.OpenTable()
	st.OpenString()
	st.OpenMath()
	st.OpenUTF8()
}
