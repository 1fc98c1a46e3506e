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
	"context"
	"fmt"
	"time"

	gopsprocess "github.com/shirou/gopsutil/process"

	"luaward/log"
)

// pollInterval is how often the supervisor checks that the worker process
// is still alive between command/result round trips.
const pollInterval = 500 * time.Millisecond

// supervisor watches a worker's pid outside of the command/result
// channel, so a death the channel itself can't report — most notably a
// SIGXCPU/SIGKILL delivered by the kernel when cpu_limit's RLIMIT_CPU is
// exceeded — is discovered promptly instead of only on the next failed
// read. This answers spec.md §9's open question about late discovery of
// CPU-rlimit termination.
type supervisor struct {
	pid    int
	log    log.Logger
	cancel context.CancelFunc
	dead   chan struct{}
}

// watch starts polling pid in the background. onDead is invoked exactly
// once, from the polling goroutine, the first time the process is
// observed to no longer exist; it is not invoked if stop is called first.
func watch(pid int, log log.Logger, onDead func()) *supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	s := &supervisor{pid: pid, log: log, cancel: cancel, dead: make(chan struct{})}

	go func() {
		defer close(s.dead)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				alive, err := gopsprocess.PidExists(int32(pid))
				if err != nil {
					s.log.Debug("supervisor: liveness check failed", "pid", pid, "err", err)
					continue
				}
				if !alive {
					s.log.Warn("worker process is no longer running", "pid", pid)
					onDead()
					return
				}
			}
		}
	}()
	return s
}

// stop halts polling. Safe to call more than once.
func (s *supervisor) stop() {
	s.cancel()
	<-s.dead
}

func (s *supervisor) String() string {
	return fmt.Sprintf("supervisor(pid=%d)", s.pid)
}
