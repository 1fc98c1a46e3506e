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

package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"luaward/log"
)

// channel wraps one net.Conn carrying newline-delimited JSON messages, the
// same NewJSONCodec-over-a-connection idiom the teacher's rpc package uses
// for its own IPC transport; the worker protocol just has no need for a
// full JSON-RPC server on top of it, so the codec is inlined here.
type channel struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

func newChannel(conn net.Conn) *channel {
	return &channel{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(bufio.NewReader(conn)),
	}
}

func (c *channel) sendCommand(cmd Command) error { return c.enc.Encode(cmd) }
func (c *channel) recvCommand() (Command, error) {
	var cmd Command
	err := c.dec.Decode(&cmd)
	return cmd, err
}

func (c *channel) sendResult(res Result) error { return c.enc.Encode(res) }
func (c *channel) recvResult() (Result, error) {
	var res Result
	err := c.dec.Decode(&res)
	return res, err
}

func (c *channel) Close() error { return c.conn.Close() }

// listenIPC opens a unix domain socket at path, removing any stale socket
// file left behind by a prior run, mirroring rpc.ServeListener's pattern
// of accepting exactly one long-lived connection per worker.
func listenIPC(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("worker: removing stale socket %s: %w", path, err)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("worker: listening on %s: %w", path, err)
	}
	return l, nil
}

// acceptIPC blocks for the worker's single inbound connection, bounding
// the wait so a worker that never connects (killed during exec, seccomp
// rejected before it could dial back) does not hang the parent forever.
func acceptIPC(ctx context.Context, l net.Listener, log log.Logger) (*channel, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.Accept()
		ch <- result{conn, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("worker: accepting IPC connection: %w", r.err)
		}
		log.Trace("IPC accepted connection")
		return newChannel(r.conn), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("worker: waiting for IPC connection: %w", ctx.Err())
	}
}

// dialIPC connects to the parent's listening unix socket from within the
// worker child, retrying briefly since the parent may still be binding the
// socket when the child process starts executing.
func dialIPC(ctx context.Context, path string) (*channel, error) {
	deadline := time.Now().Add(5 * time.Second)
	var lastErr error
	for {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return newChannel(conn), nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("worker: dialing IPC socket %s: %w", path, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}
