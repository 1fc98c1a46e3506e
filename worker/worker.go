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

// Package worker implements the Isolated Worker Driver (spec.md §4.4): a
// child process running one Embedded VM Host, reached over a command/
// result message channel, started under as much OS-level sandboxing as
// Options asks for.
//
// The worker child is the same binary as the parent, re-executed with a
// marker environment variable set (the same "is this the child" trick
// self-hosted-runner style supervisors use for a managed subprocess,
// adapted here instead of a second cmd/ binary, since spec.md's Non-goals
// rule out a standalone CLI). An embedding application must call
// worker.Main() as the first statement of its own main() so a re-exec'd
// child takes over before any of the application's own startup runs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"luaward/log"
	"luaward/value"
	"luaward/vmhost"
)

// reexecEnv, when set in a child's environment, names the unix socket
// path the child should dial back to instead of running the embedding
// application's normal main(). Spawn and runChild use the unix-socket
// transport of ipc.go on every platform; the named-pipe helpers in
// ipc_windows.go are not called by either.
const reexecEnv = "LUAWARD_WORKER_SOCKET"

// Options configures a worker: the same caps and OS-isolation knobs as
// config.Options, plus the Go-only Callbacks map a config file cannot
// express.
type Options struct {
	MemoryLimit      uint64
	InstructionLimit uint64
	UID              int
	GID              int
	FullIsolation    bool
	CPULimit         int
	ShutdownTimeout  int // seconds; 0 defaults to 5
	Callbacks        map[string]vmhost.Callback `json:"-"` // names only are sent to the child
}

func (o Options) shutdownTimeout() time.Duration {
	if o.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(o.ShutdownTimeout) * time.Second
}

// CriticalError reports that the worker process is no longer usable: it
// crashed, was killed (e.g. by its own CPU rlimit, or by seccomp for a
// forbidden syscall), or its IPC channel broke. Unlike ScriptError, the
// Driver that returns this should be closed; nothing further can be sent
// to this worker.
type CriticalError struct {
	Message string
}

func (e *CriticalError) Error() string { return e.Message }

// Driver is the parent-process handle to one running worker child. It
// mirrors vmhost.Host's three operations, each one round-tripping over
// the command/result channel instead of calling straight into an
// in-process interpreter.
type Driver struct {
	log log.Logger
	cmd *exec.Cmd
	ch  *channel
	sup *supervisor

	nextID    uint64
	mu        sync.Mutex
	pending   map[uint64]chan Result
	callbacks map[string]vmhost.Callback

	closeOnce       sync.Once
	closed          chan struct{}
	critical        atomic.Value // stores error
	shutdownTimeout time.Duration
}

// Spawn starts a worker child process under opts and blocks until the
// child has dialed back over IPC and the options handshake has been sent to
// it, or ctx is cancelled. It does not wait for the child's isolation
// startup sequence: if that fails, the child exits and the next operation
// on the Driver returns a CriticalError.
func Spawn(ctx context.Context, opts Options) (*Driver, error) {
	id := uuid.NewString()
	workerLog := log.New("component", "worker-driver", "id", id)

	sockPath := fmt.Sprintf("%s/luaward-%s.sock", os.TempDir(), id)
	l, err := listenIPC(sockPath)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("worker: resolving own executable: %w", err)
	}
	cmd := exec.CommandContext(ctx, exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), reexecEnv+"="+sockPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("worker: starting child process: %w", err)
	}

	acceptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ch, err := acceptIPC(acceptCtx, l, workerLog)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	d := &Driver{
		log:       workerLog,
		cmd:       cmd,
		ch:        ch,
		pending:   make(map[uint64]chan Result),
		callbacks: opts.Callbacks,
		closed:    make(chan struct{}),

		shutdownTimeout: opts.shutdownTimeout(),
	}

	names := make([]string, 0, len(opts.Callbacks))
	for name := range opts.Callbacks {
		names = append(names, name)
	}
	handshake, err := json.Marshal(struct {
		Options Options
		Names   []string
	}{opts, names})
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("worker: encoding options handshake: %w", err)
	}
	if err := ch.sendCommand(Command{Kind: CmdExecute, Source: string(handshake)}); err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("worker: sending options handshake: %w", err)
	}

	d.sup = watch(cmd.Process.Pid, workerLog, d.markCritical(fmt.Errorf("worker process exited unexpectedly")))
	go d.readLoop()

	workerLog.Info("worker spawned", "pid", cmd.Process.Pid, "full_isolation", opts.FullIsolation)
	return d, nil
}

func (d *Driver) markCritical(err error) func() {
	return func() {
		d.critical.Store(err)
		d.failAllPending(err)
	}
}

func (d *Driver) failAllPending(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, rc := range d.pending {
		rc <- Result{ID: id, Kind: ResCritical, Message: err.Error()}
		delete(d.pending, id)
	}
}

// readLoop dispatches every Result arriving on the channel: pending
// request replies are routed to their waiter, CALLBACK results invoke the
// matching host callback and send its CALLBACK_RESULT back down.
func (d *Driver) readLoop() {
	for {
		res, err := d.ch.recvResult()
		if err != nil {
			d.markCritical(fmt.Errorf("worker: IPC channel closed: %w", err))()
			return
		}

		if res.Kind == ResCallback {
			go d.handleCallback(res)
			continue
		}

		d.mu.Lock()
		rc, ok := d.pending[res.ID]
		if ok {
			delete(d.pending, res.ID)
		}
		d.mu.Unlock()
		if ok {
			rc <- res
		}
	}
}

func (d *Driver) handleCallback(res Result) {
	fn, ok := d.callbacks[res.CallbackName]
	var cmd Command
	if !ok {
		cmd = Command{Kind: CmdCallbackResult, CallbackID: res.CallbackID, CallbackErr: fmt.Sprintf("no such callback %q", res.CallbackName)}
	} else {
		result, err := fn(res.CallbackArgs)
		if err != nil {
			cmd = Command{Kind: CmdCallbackResult, CallbackID: res.CallbackID, CallbackErr: err.Error()}
		} else {
			cmd = Command{Kind: CmdCallbackResult, CallbackID: res.CallbackID, CallbackResult: result}
		}
	}
	if err := d.ch.sendCommand(cmd); err != nil {
		d.log.Warn("failed to deliver callback result", "name", res.CallbackName, "err", err)
	}
}

func (d *Driver) roundTrip(cmd Command) (Result, error) {
	if stored := d.critical.Load(); stored != nil {
		return Result{}, &CriticalError{Message: stored.(error).Error()}
	}

	id := atomic.AddUint64(&d.nextID, 1)
	cmd.ID = id
	rc := make(chan Result, 1)

	d.mu.Lock()
	d.pending[id] = rc
	d.mu.Unlock()

	if err := d.ch.sendCommand(cmd); err != nil {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
		return Result{}, &CriticalError{Message: err.Error()}
	}

	select {
	case res := <-rc:
		if res.Kind == ResCritical {
			return Result{}, &CriticalError{Message: res.Message}
		}
		return res, nil
	case <-d.closed:
		return Result{}, &CriticalError{Message: "worker closed"}
	}
}

// Execute sends an EXECUTE command and waits for its result.
func (d *Driver) Execute(source string) error {
	res, err := d.roundTrip(Command{Kind: CmdExecute, Source: source})
	if err != nil {
		return err
	}
	if res.Kind == ResError {
		return &vmhost.ScriptError{Message: res.Message}
	}
	return nil
}

// Call sends a CALL command and waits for its single result value.
func (d *Driver) Call(name string, args ...value.Value) (value.Value, error) {
	res, err := d.roundTrip(Command{Kind: CmdCall, Name: name, Args: args})
	if err != nil {
		return value.Nil(), err
	}
	if res.Kind == ResError {
		return value.Nil(), &vmhost.ScriptError{Message: res.Message}
	}
	return res.Value, nil
}

// FunctionExists sends a FUNCTION_EXISTS command and waits for its answer.
func (d *Driver) FunctionExists(name string) (bool, error) {
	res, err := d.roundTrip(Command{Kind: CmdFunctionExists, Name: name})
	if err != nil {
		return false, err
	}
	if res.Kind == ResError {
		return false, &vmhost.ScriptError{Message: res.Message}
	}
	return res.Bool != nil && *res.Bool, nil
}

// Close asks the worker to stop, waiting up to Options.ShutdownTimeout
// before killing it outright.
func (d *Driver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.sup.stop()
		_ = d.ch.sendCommand(Command{Kind: CmdStop})

		done := make(chan error, 1)
		go func() { done <- d.cmd.Wait() }()

		select {
		case <-done:
		case <-time.After(d.shutdownTimeout):
			d.log.Warn("worker did not exit after STOP, killing", "pid", d.cmd.Process.Pid)
			_ = d.cmd.Process.Kill()
			<-done
		}
		close(d.closed)
		_ = d.ch.Close()
	})
	return err
}

// Main re-execs into the worker command loop if this process was started
// as a worker child (reexecEnv set in its environment) and never returns
// in that case — it calls os.Exit once the loop ends. If reexecEnv is
// unset, Main returns immediately so the embedding application's normal
// main() continues.
func Main() {
	sockPath := os.Getenv(reexecEnv)
	if sockPath == "" {
		return
	}
	os.Exit(runChild(sockPath))
}

func runChild(sockPath string) int {
	childLog := log.New("component", "worker-child", "pid", os.Getpid())

	ctx := context.Background()
	ch, err := dialIPC(ctx, sockPath)
	if err != nil {
		childLog.Crit("failed to dial parent IPC socket", "err", err)
		return 1
	}
	defer ch.Close()

	opts, err := negotiateOptions(ch, childLog)
	if err != nil {
		childLog.Crit("failed to negotiate worker options", "err", err)
		return 1
	}

	if err := applyIsolation(opts, childLog); err != nil {
		childLog.Crit("isolation startup sequence failed", "err", err)
		return 1
	}

	host := vmhost.New(vmhost.Config{
		MemCap:    opts.MemoryLimit,
		InstrCap:  opts.InstructionLimit,
		Callbacks: bridgeCallbacks(ch, childLog),
	})
	defer host.Close()

	runCommandLoop(ch, host, childLog)
	return 0
}

// pendingCallbacks tracks CALLBACK round trips awaiting their
// CALLBACK_RESULT reply from the parent, keyed by a monotonically
// increasing id local to this child process.
type pendingCallbacks struct {
	mu      sync.Mutex
	nextID  uint64
	waiters map[uint64]chan Command
}

func newPendingCallbacks() *pendingCallbacks {
	return &pendingCallbacks{waiters: make(map[uint64]chan Command)}
}

func (p *pendingCallbacks) register() (uint64, chan Command) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	c := make(chan Command, 1)
	p.waiters[id] = c
	return id, c
}

func (p *pendingCallbacks) resolve(id uint64, cmd Command) {
	p.mu.Lock()
	c, ok := p.waiters[id]
	if ok {
		delete(p.waiters, id)
	}
	p.mu.Unlock()
	if ok {
		c <- cmd
	}
}

// bridgeCallbacks builds the vmhost.Callback set a child-side Host is
// constructed with: each entry here doesn't run locally at all, it sends
// a CALLBACK result up to the parent and blocks until the matching
// CALLBACK_RESULT command answers it (spec.md §4.4's reentrant bridge).
// The actual callback names come from the parent during option
// negotiation, since only the parent process's Go code carries the real
// Callback closures.
func bridgeCallbacks(ch *channel, log log.Logger) map[string]vmhost.Callback {
	pc := newPendingCallbacks()
	pendingByChannel[ch] = pc // see dispatchCallbackResult

	bridge := func(name string) vmhost.Callback {
		return func(args []value.Value) (value.Value, error) {
			id, waiter := pc.register()
			err := ch.sendResult(Result{
				ID:           id,
				Kind:         ResCallback,
				CallbackID:   id,
				CallbackName: name,
				CallbackArgs: args,
			})
			if err != nil {
				return value.Nil(), fmt.Errorf("worker: sending callback request: %w", err)
			}
			reply := <-waiter
			if reply.CallbackErr != "" {
				return value.Nil(), fmt.Errorf("%s", reply.CallbackErr)
			}
			return reply.CallbackResult, nil
		}
	}

	names := negotiatedCallbackNames[ch]
	out := make(map[string]vmhost.Callback, len(names))
	for _, name := range names {
		out[name] = bridge(name)
	}
	return out
}

// pendingByChannel and negotiatedCallbackNames are small process-local
// registries keyed by the single channel a worker child ever has; a child
// process never holds more than one, so this avoids threading an extra
// parameter through bridgeCallbacks/runCommandLoop/negotiateOptions.
var (
	pendingByChannel         = map[*channel]*pendingCallbacks{}
	negotiatedCallbackNames  = map[*channel][]string{}
)

// negotiateOptions reads the one-time options handshake the parent sends
// immediately after accepting the child's connection: an EXECUTE-shaped
// Command carrying the worker Options serialized as its Source field,
// since the protocol has no dedicated handshake message type of its own.
func negotiateOptions(ch *channel, log log.Logger) (Options, error) {
	cmd, err := ch.recvCommand()
	if err != nil {
		return Options{}, err
	}
	var handshake struct {
		Options Options
		Names   []string
	}
	if err := json.Unmarshal([]byte(cmd.Source), &handshake); err != nil {
		return Options{}, fmt.Errorf("worker: decoding options handshake: %w", err)
	}
	negotiatedCallbackNames[ch] = handshake.Names
	return handshake.Options, nil
}

// runCommandLoop is the worker child's main loop. It is split into two
// goroutines, mirroring the parent Driver's own readLoop/roundTrip split:
// this function itself is the sole reader of the channel, and a second
// goroutine (processLoop) is the sole caller into host. Executing a
// CmdExecute/CmdCall on host can itself block mid-script on the callback
// bridge, waiting for a CmdCallbackResult the parent sends back over this
// very channel (spec.md §4.4's reentrant bridge) — if the same goroutine
// that called into host were also the one reading the channel, that
// CmdCallbackResult would never be read and the bridge would block
// forever. Keeping the reader free to keep reading, and only handing
// EXECUTE/CALL/FUNCTION_EXISTS commands to processLoop, is what the
// Python reference's own proxy() does by reading off cmd_q directly
// instead of blocking inside whatever it dispatched.
func runCommandLoop(ch *channel, host *vmhost.Host, log log.Logger) {
	pc := pendingByChannel[ch]
	work := make(chan Command)

	go processLoop(ch, host, work, log)
	defer close(work)

	for {
		cmd, err := ch.recvCommand()
		if err != nil {
			log.Error("command channel read failed, exiting", "err", err)
			return
		}

		switch cmd.Kind {
		case CmdStop:
			log.Info("received STOP, exiting")
			return

		case CmdCallbackResult:
			// Resolved here, not handed to processLoop: this is what lets a
			// CALL blocked on its own callback bridge see the reply.
			pc.resolve(cmd.CallbackID, cmd)

		case CmdExecute, CmdCall, CmdFunctionExists:
			work <- cmd

		default:
			log.Warn("unknown command kind", "kind", cmd.Kind)
		}
	}
}

// processLoop is the sole goroutine that calls into host, one command at
// a time (host is not safe for concurrent use). It runs independently of
// runCommandLoop's reader so a command that reenters the host through the
// callback bridge never blocks the channel read that bridge is waiting on.
func processLoop(ch *channel, host *vmhost.Host, work <-chan Command, log log.Logger) {
	for cmd := range work {
		switch cmd.Kind {
		case CmdExecute:
			err := host.Execute(cmd.Source)
			sendOutcome(ch, cmd.ID, value.Nil(), nil, err, log)

		case CmdCall:
			result, err := host.Call(cmd.Name, cmd.Args...)
			sendOutcome(ch, cmd.ID, result, nil, err, log)

		case CmdFunctionExists:
			exists := host.FunctionExists(cmd.Name)
			sendOutcome(ch, cmd.ID, value.Nil(), &exists, nil, log)
		}
	}
}

func sendOutcome(ch *channel, id uint64, v value.Value, b *bool, err error, log log.Logger) {
	res := Result{ID: id, Value: v, Bool: b}
	if err != nil {
		res.Kind = ResError
		res.Message = err.Error()
	} else {
		res.Kind = ResSuccess
	}
	if sendErr := ch.sendResult(res); sendErr != nil {
		log.Error("failed to send result", "err", sendErr)
	}
}
