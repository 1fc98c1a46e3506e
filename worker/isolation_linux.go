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

//go:build linux

package worker

import (
	"fmt"

	"golang.org/x/sys/unix"

	"luaward/log"
)

// applyIsolation runs the OS-level part of the worker child's startup
// sequence (spec.md §4.4, steps 1-4): namespace detach, CPU rlimit, the
// credential drop, and finally the seccomp lockdown, in that order.
// Interpreter construction and the command loop follow in runChild.
//
// Every step through the credential drop is best-effort and logged rather
// than fatal, the same way p2p/nat falls back silently when a particular
// port-mapping protocol isn't available on the local gateway, and the way
// the Python reference's proxy() startup logs and continues past a failed
// rlimit or setuid/setgid call rather than aborting the worker: a kernel
// or container runtime that can't honor one particular isolation knob
// should not prevent the worker from running at all under partial
// isolation. Only seccomp installation is allowed to fail the worker
// outright (spec.md §4.4): a full_isolation request that silently runs
// without its syscall filter is not actually isolated.
func applyIsolation(opts Options, log log.Logger) error {
	if opts.FullIsolation {
		if err := unix.Unshare(unix.CLONE_NEWNET); err != nil {
			log.Warn("network namespace detach failed, continuing without it", "err", err)
		} else {
			log.Debug("network namespace detached")
		}
	}

	if opts.CPULimit > 0 {
		limit := &unix.Rlimit{Cur: uint64(opts.CPULimit), Max: uint64(opts.CPULimit)}
		if err := unix.Setrlimit(unix.RLIMIT_CPU, limit); err != nil {
			log.Warn("setting CPU rlimit failed, continuing without it", "seconds", opts.CPULimit, "err", err)
		} else {
			log.Debug("CPU rlimit set", "seconds", opts.CPULimit)
		}
	}

	// GID before UID: once the UID drops from root, a subsequent setgid
	// call would itself be rejected.
	if opts.GID != 0 {
		if err := unix.Setgid(opts.GID); err != nil {
			log.Warn("dropping gid failed, continuing as current gid", "gid", opts.GID, "err", err)
		}
	}
	if opts.UID != 0 {
		if err := unix.Setuid(opts.UID); err != nil {
			log.Warn("dropping uid failed, continuing as current uid", "uid", opts.UID, "err", err)
		}
	}
	log.Debug("credential drop attempted", "uid", opts.UID, "gid", opts.GID)

	// Seccomp last: it is irreversible and must not itself forbid any
	// syscall the steps above still needed to make. Unlike the steps
	// above, this one is mandatory: a caller that asked for full_isolation
	// must get a real syscall filter or an error, never a silent no-op.
	if opts.FullIsolation {
		if err := applySeccomp(log); err != nil {
			return fmt.Errorf("worker: installing seccomp filter: %w", err)
		}
	}

	return nil
}
