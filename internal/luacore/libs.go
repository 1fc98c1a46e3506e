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
#include <lualib.h>
*/
import "C"

// Each Open* method below opens exactly one standard library via
// luaL_requiref, leaving it registered as the matching global (and in
// package.loaded, though package itself is never exposed to scripts since
// sandbox never opens it). os, io, debug, package, and coroutine
// intentionally have no Open* method here: sandbox.Install never opens
// them, which is stronger than opening-then-deleting them.

func (s *State) OpenBase() { C.luaL_requiref(s.L, C.LUA_GNAME, C.luaopen_base, 1); s.Pop(1) }
func (s *State) OpenTable() { C.luaL_requiref(s.L, C.LUA_TABLIBNAME, C.luaopen_table, 1); s.Pop(1) }
func (s *State) OpenString() { C.luaL_requiref(s.L, C.LUA_STRLIBNAME, C.luaopen_string, 1); s.Pop(1) }
func (s *State) OpenMath() { C.luaL_requiref(s.L, C.LUA_MATHLIBNAME, C.luaopen_math, 1); s.Pop(1) }
func (s *State) OpenUTF8() { C.luaL_requiref(s.L, C.LUA_UTF8LIBNAME, C.luaopen_utf8, 1); s.Pop(1) }
