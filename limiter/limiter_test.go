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

package limiter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLimiter(cfg Config) *Limiter {
	return &Limiter{cfg: cfg}
}

func TestAllocWithinCap(t *testing.T) {
	l := newTestLimiter(Config{MemCap: 1024})

	require.True(t, l.alloc(0, 512))
	require.EqualValues(t, 512, l.memUsed)

	require.True(t, l.alloc(512, 1024))
	require.EqualValues(t, 1024, l.memUsed)
}

func TestAllocRejectsOverCap(t *testing.T) {
	l := newTestLimiter(Config{MemCap: 1024})

	require.True(t, l.alloc(0, 1024))
	ok := l.alloc(1024, 2048)
	require.False(t, ok)
	// A rejected allocation must not change net usage.
	require.EqualValues(t, 1024, l.memUsed)
}

func TestAllocFreeDecrementsUsage(t *testing.T) {
	l := newTestLimiter(Config{MemCap: 1024})

	require.True(t, l.alloc(0, 512))
	require.True(t, l.alloc(512, 0)) // free
	require.EqualValues(t, 0, l.memUsed)
}

func TestAllocUnboundedWhenCapUnset(t *testing.T) {
	l := newTestLimiter(Config{})

	require.True(t, l.alloc(0, 1<<40))
}

func TestHookFiresAtCap(t *testing.T) {
	l := newTestLimiter(Config{InstrCap: 2500})

	msg, abort := l.hook()
	require.False(t, abort)
	require.Equal(t, uint64(1000), l.instrUsed)

	msg, abort = l.hook()
	require.False(t, abort)

	msg, abort = l.hook()
	require.True(t, abort)
	require.Contains(t, msg, instrExhaustedMsg)
}

func TestResetClearsInstructionCounterOnly(t *testing.T) {
	l := newTestLimiter(Config{MemCap: 1024, InstrCap: 500})
	l.alloc(0, 100)
	l.hook()
	require.NotZero(t, l.instrUsed)

	l.Reset()
	require.Zero(t, l.instrUsed)
	require.EqualValues(t, 100, l.memUsed) // memory is not reset between calls
}

func TestStringRendersTable(t *testing.T) {
	l := newTestLimiter(Config{MemCap: 1024, InstrCap: 500})
	l.alloc(0, 64)

	out := l.String()
	require.True(t, strings.Contains(out, "64"))
	require.True(t, strings.Contains(out, "1024"))
}
