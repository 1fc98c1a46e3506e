// Copyright 2015 The go-ethereum Authors
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

// Package luaward embeds Lua 5.4 in a host application and runs untrusted
// scripts under layered isolation: a restricted language surface, a
// capped memory allocator and instruction counter, and (optionally) an
// OS-sandboxed worker child process. See SPEC_FULL.md for the full design.
package luaward

import (
	"context"

	"luaward/value"
	"luaward/vmhost"
	"luaward/worker"
)

// Re-exported so callers never need to import package value directly for
// ordinary use: luaward.Value, luaward.Int, luaward.String, and so on.
type Value = value.Value

var (
	Nil      = value.Nil
	Bool     = value.Bool
	Int      = value.Int
	Float    = value.Float
	String   = value.String
	Bytes    = value.Bytes
	Sequence = value.Sequence
	Mapping  = value.Mapping
)

// ScriptError, CallbackError, and CriticalError are the three error
// classes of spec.md §7. A Host operation returns a ScriptError (recoverable,
// the Host remains usable) or a CriticalError (the underlying worker is no
// longer usable and the Host should be closed). A CallbackError is not
// returned by Host operations: an error from a host callback reaches the
// script as the callback's string return value, and a CallbackError raised
// for unmarshallable callback arguments surfaces as a ScriptError's text.
type (
	ScriptError   = vmhost.ScriptError
	CallbackError = vmhost.CallbackError
	CriticalError = worker.CriticalError
)

// Callback is a host function a script can call by name.
type Callback = vmhost.Callback

// Options configures a Host.
type Options struct {
	MemoryLimit      uint64 // bytes; 0 means unlimited
	InstructionLimit uint64 // instructions; 0 means unlimited
	Callbacks        map[string]Callback

	// Isolated, when true, runs the interpreter inside a separate worker
	// process under the OS-level sandboxing described by the remaining
	// fields (spec.md §4.4) instead of in-process. When false, a Host
	// embeds the interpreter directly (spec.md §4.3) with no process
	// boundary — suitable when the embedding application already trusts
	// its own process boundary, or is not running on an OS this package
	// can sandbox against.
	Isolated bool

	UID             int
	GID             int
	FullIsolation   bool
	CPULimit        int // seconds; 0 means unlimited
	ShutdownTimeout int // seconds; 0 defaults to 5
}

// driver is the common surface New's two backing implementations share.
type driver interface {
	Execute(source string) error
	Call(name string, args ...value.Value) (value.Value, error)
	FunctionExists(name string) (bool, error)
	Close() error
}

// inProcessDriver adapts vmhost.Host (whose FunctionExists has no error
// return, since an in-process Host call can't fail the way an IPC round
// trip can) to the driver interface.
type inProcessDriver struct{ h *vmhost.Host }

func (d inProcessDriver) Execute(source string) error { return d.h.Execute(source) }
func (d inProcessDriver) Call(name string, args ...value.Value) (value.Value, error) {
	return d.h.Call(name, args...)
}
func (d inProcessDriver) FunctionExists(name string) (bool, error) {
	return d.h.FunctionExists(name), nil
}
func (d inProcessDriver) Close() error { d.h.Close(); return nil }

// Host is a running, isolated Lua interpreter: the public entry point for
// everything this package does.
type Host struct {
	d driver
}

// New constructs a Host per opts. When opts.Isolated is set, this spawns
// a worker child process and returns once the child has connected and been
// sent its options (see worker.Spawn); it does not wait for the child's
// isolation startup sequence to finish. Otherwise the interpreter is
// created in-process.
func New(opts Options) (*Host, error) {
	if !opts.Isolated {
		h := vmhost.New(vmhost.Config{
			MemCap:    opts.MemoryLimit,
			InstrCap:  opts.InstructionLimit,
			Callbacks: opts.Callbacks,
		})
		return &Host{d: inProcessDriver{h}}, nil
	}

	d, err := worker.Spawn(context.Background(), worker.Options{
		MemoryLimit:      opts.MemoryLimit,
		InstructionLimit: opts.InstructionLimit,
		UID:              opts.UID,
		GID:              opts.GID,
		FullIsolation:     opts.FullIsolation,
		CPULimit:          opts.CPULimit,
		ShutdownTimeout:   opts.ShutdownTimeout,
		Callbacks:         opts.Callbacks,
	})
	if err != nil {
		return nil, err
	}
	return &Host{d: d}, nil
}

// Execute compiles and runs source as a new top-level chunk.
func (h *Host) Execute(source string) error { return h.d.Execute(source) }

// Call invokes the global function named name with args, returning its
// single result.
func (h *Host) Call(name string, args ...Value) (Value, error) { return h.d.Call(name, args...) }

// FunctionExists reports whether name is currently bound to a callable
// global value.
func (h *Host) FunctionExists(name string) (bool, error) { return h.d.FunctionExists(name) }

// Close releases the Host's interpreter (and, if isolated, terminates its
// worker process). The Host must not be used afterwards.
func (h *Host) Close() error { return h.d.Close() }
