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

//go:build windows

package worker

import (
	"context"
	"fmt"
	"net"
	"time"

	npipe "gopkg.in/natefinch/npipe.v2"
)

// pipeListener adapts an npipe.PipeListener to net.Listener so
// listenIPC's caller doesn't need a build-tagged branch of its own.
type pipeListener struct{ *npipe.PipeListener }

func (p pipeListener) Accept() (net.Conn, error) { return p.PipeListener.Accept() }

// listenIPCWindows opens a named pipe in place of listenIPC's unix
// socket. path is the bare endpoint name; the \\.\pipe\ prefix is added
// here so callers pass the same style of path on every platform.
func listenIPCWindows(path string) (net.Listener, error) {
	l, err := npipe.Listen(`\\.\pipe\` + path)
	if err != nil {
		return nil, fmt.Errorf("worker: listening on pipe %s: %w", path, err)
	}
	return pipeListener{l}, nil
}

// dialIPCWindows connects to the parent's named pipe from within the
// worker child, mirroring dialIPC's unix-socket retry loop since the pipe
// may not exist yet when the child starts executing.
func dialIPCWindows(ctx context.Context, path string) (*channel, error) {
	deadline := time.Now().Add(5 * time.Second)
	var lastErr error
	for {
		conn, err := npipe.DialTimeout(`\\.\pipe\`+path, 250*time.Millisecond)
		if err == nil {
			return newChannel(conn), nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("worker: dialing pipe %s: %w", path, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}
