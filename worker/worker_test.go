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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"luaward/log"
	"luaward/value"
	"luaward/vmhost"
)

func TestShutdownTimeoutDefaultsToFiveSeconds(t *testing.T) {
	require.Equal(t, 5*time.Second, Options{}.shutdownTimeout())
	require.Equal(t, 5*time.Second, Options{ShutdownTimeout: 0}.shutdownTimeout())
}

func TestShutdownTimeoutHonorsExplicitValue(t *testing.T) {
	require.Equal(t, 30*time.Second, Options{ShutdownTimeout: 30}.shutdownTimeout())
}

func TestPendingCallbacksResolveDeliversToWaiter(t *testing.T) {
	pc := newPendingCallbacks()
	id, waiter := pc.register()

	reply := Command{Kind: CmdCallbackResult, CallbackID: id}
	pc.resolve(id, reply)

	select {
	case got := <-waiter:
		require.Equal(t, id, got.CallbackID)
	case <-time.After(time.Second):
		t.Fatal("resolve did not deliver to the registered waiter")
	}
}

func TestPendingCallbacksResolveOfUnknownIDIsANoop(t *testing.T) {
	pc := newPendingCallbacks()
	require.NotPanics(t, func() {
		pc.resolve(999, Command{})
	})
}

// TestRunCommandLoopSurvivesCallbackReentry drives runCommandLoop through an
// actual CALL that reenters the host via the callback bridge, the scenario
// that deadlocked when runCommandLoop itself was the goroutine blocked
// inside host.Call: the CALLBACK_RESULT sent back for the in-flight
// callback would never be read. It is exercised here over a real net.Pipe
// so both the reader goroutine and the callback's blocking round trip run
// exactly as they would between parent and child.
func TestRunCommandLoopSurvivesCallbackReentry(t *testing.T) {
	parentConn, childConn := net.Pipe()
	defer parentConn.Close()
	defer childConn.Close()

	parent := newChannel(parentConn)
	child := newChannel(childConn)

	negotiatedCallbackNames[child] = []string{"double"}
	defer delete(negotiatedCallbackNames, child)

	host := vmhost.New(vmhost.Config{Callbacks: bridgeCallbacks(child, log.New())})
	defer host.Close()
	defer delete(pendingByChannel, child)

	done := make(chan struct{})
	go func() {
		runCommandLoop(child, host, log.New())
		close(done)
	}()

	require.NoError(t, parent.sendCommand(Command{
		ID:     1,
		Kind:   CmdExecute,
		Source: "function run() return double(21) end",
	}))
	execResult, err := parent.recvResult()
	require.NoError(t, err)
	require.Equal(t, ResSuccess, execResult.Kind)

	require.NoError(t, parent.sendCommand(Command{ID: 2, Kind: CmdCall, Name: "run"}))

	callback, err := parent.recvResult()
	require.NoError(t, err)
	require.Equal(t, ResCallback, callback.Kind)
	require.Equal(t, "double", callback.CallbackName)
	require.Len(t, callback.CallbackArgs, 1)

	require.NoError(t, parent.sendCommand(Command{
		Kind:           CmdCallbackResult,
		CallbackID:     callback.CallbackID,
		CallbackResult: value.Int(42),
	}))

	callResult, err := parent.recvResult()
	require.NoError(t, err)
	require.Equal(t, ResSuccess, callResult.Kind)
	require.Equal(t, int64(42), callResult.Value.Int)

	require.NoError(t, parent.sendCommand(Command{Kind: CmdStop}))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runCommandLoop did not exit after STOP")
	}
}
