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
#cgo pkg-config: lua5.4
#cgo !pkgconfig LDFLAGS: -llua5.4 -lm

#include <stdlib.h>
#include <string.h>
#include <lua.h>
#include <lauxlib.h>
#include <lualib.h>

// goAlloc and goHook are the two fixed C trampolines registered with every
// lua_State luacore creates. Lua's C API takes plain function pointers, not
// closures, so the real per-state Go callback is looked up through the
// state registry (below): cgoAlloc by the integer handle stashed in the
// allocator userdata, cgoHook by matching the lua_State pointer, rather than
// passing a Go pointer through void* (cgo forbids storing Go pointers in C
// memory).
extern void *cgoAlloc(void *ud, void *ptr, size_t osize, size_t nsize);
extern void cgoHook(lua_State *L, lua_Debug *ar);

static lua_State *luacore_newstate(size_t handle) {
	lua_State *L = lua_newstate(cgoAlloc, (void *)handle);
	return L;
}

static void luacore_sethook_count(lua_State *L, int count) {
	lua_sethook(L, cgoHook, LUA_MASKCOUNT, count);
}

static void luacore_clearhook(lua_State *L) {
	lua_sethook(L, NULL, 0, 0);
}

static int luacore_loadbuffer(lua_State *L, const char *buf, size_t sz, const char *name) {
	// "t" forbids loading precompiled bytecode chunks: execute() must only
	// ever run text source, per spec.
	return luaL_loadbufferx(L, buf, sz, name, "t");
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// State owns one lua_State and the Go-side bookkeeping (allocator limiter,
// instruction counter) that the C trampolines above dispatch into. A State
// is single-threaded: callers (limiter, vmhost) never call into it from two
// goroutines concurrently, matching spec.md §5's single-threaded,
// cooperative scheduling model.
type State struct {
	L      *C.lua_State
	handle uintptr

	// AllocFunc is invoked on every allocation request the interpreter
	// makes. newSize == 0 means free. Returning ok == false fails the
	// request, which the interpreter surfaces as a Lua out-of-memory error.
	AllocFunc func(oldSize, newSize uintptr) (ok bool)

	// HookFunc is invoked every `count` VM instructions once InstallHook
	// has been called. Returning an error message aborts the running
	// chunk with that message.
	HookFunc func() (errMsg string, abort bool)
}

var (
	registryMu sync.Mutex
	registry   = map[uintptr]*State{}
	nextHandle uintptr
)

// NewState allocates a fresh, empty lua_State with no libraries open. The
// caller is responsible for opening the safe subset of the standard
// library (see package sandbox) before running any untrusted chunk.
func NewState() *State {
	registryMu.Lock()
	nextHandle++
	h := nextHandle
	registryMu.Unlock()

	s := &State{handle: h}
	registryMu.Lock()
	registry[h] = s
	registryMu.Unlock()

	s.L = C.luacore_newstate(C.size_t(h))
	return s
}

// Close releases the lua_State. The State must not be used afterwards.
func (s *State) Close() {
	if s.L == nil {
		return
	}
	C.lua_close(s.L)
	s.L = nil

	registryMu.Lock()
	delete(registry, s.handle)
	registryMu.Unlock()
}

// InstallHook arms the instruction-count hook so HookFunc fires every
// count VM instructions. count <= 0 disables the hook entirely, matching
// spec.md §4.1's "an unset instr_cap disables the hook".
func (s *State) InstallHook(count int) {
	if count <= 0 {
		C.luacore_clearhook(s.L)
		return
	}
	C.luacore_sethook_count(s.L, C.int(count))
}

// LoadText compiles source as a chunk named chunkName, in text mode only
// (bytecode chunks are rejected by the "t" load mode passed to
// luaL_loadbufferx). The compiled chunk is left on top of the stack.
func (s *State) LoadText(source []byte, chunkName string) error {
	cname := C.CString(chunkName)
	defer C.free(unsafe.Pointer(cname))

	var cbuf *C.char
	if len(source) > 0 {
		cbuf = (*C.char)(unsafe.Pointer(&source[0]))
	}
	rc := C.luacore_loadbuffer(s.L, cbuf, C.size_t(len(source)), cname)
	if rc != C.LUA_OK {
		msg := s.ToString(-1)
		s.Pop(1)
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// PCall calls the function sitting nargs below the top of the stack
// (pushed before its nargs arguments), propagating any Lua-level error as a
// Go error carrying the interpreter's error string verbatim.
func (s *State) PCall(nargs, nresults int) error {
	rc := C.lua_pcallk(s.L, C.int(nargs), C.int(nresults), 0, 0, nil)
	if rc != C.LUA_OK {
		msg := s.ToString(-1)
		s.Pop(1)
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// PushGlobalTable pushes the globals table onto the stack.
func (s *State) PushGlobalTable() { C.lua_pushglobaltable(s.L) }

// GetGlobal pushes the value of global name onto the stack.
func (s *State) GetGlobal(name string) int {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return int(C.lua_getglobal(s.L, cname))
}

// SetGlobal pops the top of the stack and assigns it to global name.
func (s *State) SetGlobal(name string) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	C.lua_setglobal(s.L, cname)
}

// Pop removes n values from the top of the stack.
func (s *State) Pop(n int) { C.lua_settop(s.L, C.int(-n-1)) }

// Top returns the index of the top stack slot (0 if the stack is empty).
func (s *State) Top() int { return int(C.lua_gettop(s.L)) }

// SetTop sets the stack top, truncating or padding with nils.
func (s *State) SetTop(idx int) { C.lua_settop(s.L, C.int(idx)) }

//export cgoAlloc
func cgoAlloc(ud unsafe.Pointer, ptr unsafe.Pointer, osize, nsize C.size_t) unsafe.Pointer {
	h := uintptr(ud)
	registryMu.Lock()
	st := registry[h]
	registryMu.Unlock()

	if nsize == 0 {
		if st != nil && st.AllocFunc != nil {
			st.AllocFunc(uintptr(osize), 0)
		}
		C.free(ptr)
		return nil
	}
	if st != nil && st.AllocFunc != nil {
		if ok := st.AllocFunc(uintptr(osize), uintptr(nsize)); !ok {
			return nil // signals out-of-memory to the interpreter
		}
	}
	return C.realloc(ptr, nsize)
}

//export cgoHook
func cgoHook(L *C.lua_State, ar *C.lua_Debug) {
	h := uintptr(0)
	registryMu.Lock()
	for handle, st := range registry {
		if st.L == L {
			h = handle
			break
		}
	}
	st := registry[h]
	registryMu.Unlock()

	if st == nil || st.HookFunc == nil {
		return
	}
	if msg, abort := st.HookFunc(); abort {
		cmsg := C.CString(msg)
		defer C.free(unsafe.Pointer(cmsg))
		C.lua_pushstring(L, cmsg)
		C.lua_error(L) // longjmps out of the hook, aborting the running chunk
	}
}
