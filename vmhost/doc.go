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

// Package vmhost implements the Embedded VM Host (spec.md §4.3): one
// sandboxed, capped luacore.State plus the three operations a caller drives
// it with (Execute, Call, FunctionExists) and the bidirectional callback
// bridge that lets loaded scripts invoke host-registered functions.
//
// A Host owns its State for its entire lifetime; Close releases the
// interpreter. A Host is not safe for concurrent use — the same
// single-threaded, cooperative model console.JSRE builds its otto VM
// around, and the one spec.md §5 requires of the embedded interpreter.
package vmhost
