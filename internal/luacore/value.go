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
*/
import "C"

import "unsafe"

// Lua value type tags, mirroring lua.h's LUA_T* constants.
const (
	TNil           = C.LUA_TNIL
	TBoolean       = C.LUA_TBOOLEAN
	TNumber        = C.LUA_TNUMBER
	TString        = C.LUA_TSTRING
	TTable         = C.LUA_TTABLE
	TFunction      = C.LUA_TFUNCTION
	TLightUserdata = C.LUA_TLIGHTUSERDATA
	TUserdata      = C.LUA_TUSERDATA
)

func (s *State) Type(idx int) int { return int(C.lua_type(s.L, C.int(idx))) }

// IsCallable reports whether the value at idx is directly invokable: a
// function, or (in principle) a table/userdata with a __call metamethod.
// Since sandbox installation removes setmetatable/getmetatable and the only
// surviving implicit metatable (strings) carries no __call, in practice
// this reduces to "is a function" for anything scripts can construct.
func (s *State) IsCallable(idx int) bool {
	if s.Type(idx) == TFunction {
		return true
	}
	field := C.CString("__call")
	defer C.free(unsafe.Pointer(field))
	return C.luaL_getmetafield(s.L, C.int(idx), field) != C.LUA_TNIL
}

func (s *State) IsInteger(idx int) bool { return C.lua_isinteger(s.L, C.int(idx)) != 0 }

func (s *State) PushNil()          { C.lua_pushnil(s.L) }
func (s *State) PushBool(v bool)   { C.lua_pushboolean(s.L, boolToInt(v)) }
func (s *State) PushInteger(v int64) { C.lua_pushinteger(s.L, C.lua_Integer(v)) }
func (s *State) PushNumber(v float64) { C.lua_pushnumber(s.L, C.lua_Number(v)) }

func (s *State) PushString(v []byte) {
	var cbuf *C.char
	if len(v) > 0 {
		cbuf = (*C.char)(unsafe.Pointer(&v[0]))
	}
	C.lua_pushlstring(s.L, cbuf, C.size_t(len(v)))
}

func (s *State) ToBool(idx int) bool { return C.lua_toboolean(s.L, C.int(idx)) != 0 }
func (s *State) ToInteger(idx int) int64 { return int64(C.lua_tointegerx(s.L, C.int(idx), nil)) }
func (s *State) ToNumber(idx int) float64 { return float64(C.lua_tonumberx(s.L, C.int(idx), nil)) }

func (s *State) ToString(idx int) string {
	var length C.size_t
	cstr := C.lua_tolstring(s.L, C.int(idx), &length)
	if cstr == nil {
		return ""
	}
	return C.GoStringN(cstr, C.int(length))
}

func (s *State) ToBytes(idx int) []byte {
	var length C.size_t
	cstr := C.lua_tolstring(s.L, C.int(idx), &length)
	if cstr == nil {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(cstr), C.int(length))
}

// NewTable pushes a fresh, empty table.
func (s *State) NewTable() { C.lua_createtable(s.L, 0, 0) }

// RawSetIndex sets t[n] = (value at top of stack), popping the value. t is
// the stack index of the table.
func (s *State) RawSetIndex(t int, n int64) {
	C.lua_rawseti(s.L, C.int(t), C.lua_Integer(n))
}

// RawSet sets t[key at -2] = (value at -1), popping both. t is the stack
// index of the table.
func (s *State) RawSet(t int) { C.lua_rawset(s.L, C.int(t)) }

// RawGetIndex pushes t[n], where t is the stack index of the table.
func (s *State) RawGetIndex(t int, n int64) int {
	return int(C.lua_rawgeti(s.L, C.int(t), C.lua_Integer(n)))
}

// Next iterates a table for marshalling: given a key on top of the stack
// (nil to start), replaces it with the next key and pushes its value.
// Returns false when iteration is exhausted.
func (s *State) Next(t int) bool { return C.lua_next(s.L, C.int(t)) != 0 }

// RawLen returns the raw length of the value at idx (used to detect Lua's
// contiguous-sequence part of a table).
func (s *State) RawLen(idx int) int { return int(C.lua_rawlen(s.L, C.int(idx))) }

// PushValue duplicates the value at idx onto the top of the stack.
func (s *State) PushValue(idx int) { C.lua_pushvalue(s.L, C.int(idx)) }

// SetField pops the top of the stack and assigns it to t[field], where t
// is the stack index of the table (before the pop).
func (s *State) SetField(t int, field string) {
	cfield := C.CString(field)
	defer C.free(unsafe.Pointer(cfield))
	C.lua_setfield(s.L, C.int(t), cfield)
}

// GetField pushes t[field] onto the stack.
func (s *State) GetField(t int, field string) int {
	cfield := C.CString(field)
	defer C.free(unsafe.Pointer(cfield))
	return int(C.lua_getfield(s.L, C.int(t), cfield))
}

// SetMetatable pops the table at the top of the stack and installs it as
// the metatable of the value at idx (computed before the pop).
func (s *State) SetMetatable(idx int) { C.lua_setmetatable(s.L, C.int(idx)) }

// TablePointer returns a stable identity for the table at idx, used to
// detect cycles while marshalling (spec.md §3: cyclic tables are not
// convertible).
func (s *State) TablePointer(idx int) uintptr {
	return uintptr(C.lua_topointer(s.L, C.int(idx)))
}

func boolToInt(v bool) C.int {
	if v {
		return 1
	}
	return 0
}
