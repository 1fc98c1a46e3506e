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

// Package luacore is a thin cgo binding over the Lua 5.4 C API: just enough
// surface for luaward's limiter, sandbox, and host packages to drive a
// single lua_State without reaching for a general-purpose Lua-for-Go
// binding. It does not attempt to be a complete Lua binding: no debug
// library reflection, no userdata finalizers, no coroutine support (the
// host package never exposes coroutines, per spec).
//
// Building this package requires a Lua 5.4 development install
// (liblua5.4 + headers) reachable through pkg-config; compiling the Lua C
// sources themselves is out of scope for luaward (see SPEC_FULL.md §1) and
// is left to the embedding application's build, exactly as it is left to
// pkg-config/cgo for any other cgo-wrapped C library.
package luacore
