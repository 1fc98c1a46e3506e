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

package luacore

/*
#include <lua.h>
#include <lauxlib.h>

extern int cgoCallback(lua_State *L);

static void luacore_register_callback(lua_State *L, size_t handle, int slot, const char *name) {
	lua_pushinteger(L, (lua_Integer)handle);
	lua_pushinteger(L, (lua_Integer)slot);
	lua_pushcclosure(L, cgoCallback, 2);
	lua_setglobal(L, name);
}
*/
import "C"

import (
	"unsafe"
)

// GoFunc is a host function reachable from Lua, invoked with its own State
// and the count of arguments already sitting at stack indices 1..nargs. It
// must push exactly nresults values before returning and leave nothing
// else behind; package value's FromLua/ToLua do the actual marshalling,
// including full table support, so this boundary stays a thin stack
// pass-through rather than a primitives-only Arg type.
type GoFunc func(s *State, nargs int) (nresults int, err error)

var callbackSlots []GoFunc

// Register installs fn as a global Lua function named name.
func (s *State) Register(name string, fn GoFunc) {
	callbackSlots = append(callbackSlots, fn)
	slot := len(callbackSlots) - 1

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	C.luacore_register_callback(s.L, C.size_t(s.handle), C.int(slot), cname)
}

//export cgoCallback
func cgoCallback(L *C.lua_State) C.int {
	// Upvalue 1: handle, upvalue 2: slot.
	handle := uintptr(C.lua_tointegerx(L, C.lua_upvalueindex(1), nil))
	slot := int(C.lua_tointegerx(L, C.lua_upvalueindex(2), nil))

	registryMu.Lock()
	st := registry[handle]
	registryMu.Unlock()
	if st == nil || slot < 0 || slot >= len(callbackSlots) {
		pushErrorString(L, "luacore: callback not found")
		return 0
	}

	nargs := int(C.lua_gettop(L))
	fn := callbackSlots[slot]
	nresults, err := fn(st, nargs)
	if err != nil {
		pushErrorString(L, err.Error())
		return 0
	}
	return C.int(nresults)
}

func pushErrorString(L *C.lua_State, msg string) {
	cmsg := C.CString(msg)
	defer C.free(unsafe.Pointer(cmsg))
	C.lua_pushstring(L, cmsg)
	C.lua_error(L)
}
