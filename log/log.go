// Copyright 2016 The go-ethereum Authors
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

// Package log provides the leveled, structured logger used across luaward.
// It carries a worker's startup sequence, its command loop, and the host's
// callback bridge; none of these write to stdout directly.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is the severity of a log record, ordered from most to least severe
// (LvlCrit is 0, LvlTrace is the largest value).
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERRO"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DBUG"
	case LvlTrace:
		return "TRCE"
	default:
		return "UNKN"
	}
}

var lvlColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgMagenta, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgWhite),
}

// Logger writes leveled records carrying free-form key/value context, in
// the same call shape used throughout the adapted teacher code:
// log.Error("message", "key", value, "key2", value2).
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	// New returns a child logger that prepends ctx to every record it emits.
	New(ctx ...interface{}) Logger
}

type logger struct {
	mu     *sync.Mutex
	out    io.Writer
	color  bool
	level  Lvl
	prefix []interface{}
}

// Root is the default, process-wide logger. Applications embedding luaward
// may call SetOutput/SetLevel on it, or take New() children for
// component-scoped prefixes (e.g. log.New("component", "worker")).
var Root Logger = newLogger(colorable.NewColorableStdout(), isatty.IsTerminal(os.Stdout.Fd()))

func newLogger(out io.Writer, useColor bool) *logger {
	return &logger{
		mu:    new(sync.Mutex),
		out:   out,
		color: useColor,
		level: LvlInfo,
	}
}

// SetOutput redirects Root's output stream.
func SetOutput(w io.Writer) {
	if l, ok := Root.(*logger); ok {
		l.mu.Lock()
		l.out = w
		l.mu.Unlock()
	}
}

// SetLevel bounds the verbosity of Root; records above lvl are dropped.
func SetLevel(lvl Lvl) {
	if l, ok := Root.(*logger); ok {
		l.mu.Lock()
		l.level = lvl
		l.mu.Unlock()
	}
}

func New(ctx ...interface{}) Logger { return Root.New(ctx...) }

func (l *logger) New(ctx ...interface{}) Logger {
	child := &logger{mu: l.mu, out: l.out, color: l.color, level: l.level}
	child.prefix = append(append([]interface{}{}, l.prefix...), ctx...)
	return child
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	if lvl > l.level {
		return
	}
	all := append(append([]interface{}{}, l.prefix...), ctx...)

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("2006-01-02T15:04:05-0700")
	tag := lvl.String()
	if l.color {
		tag = lvlColor[lvl].Sprint(tag)
	}
	fmt.Fprintf(l.out, "%s [%s] %s", ts, tag, msg)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", all[i], all[i+1])
	}
	if len(all)%2 == 1 {
		fmt.Fprintf(l.out, " %v=%s", all[len(all)-1], "MISSING")
	}
	if lvl <= LvlWarn {
		// Capture the caller for warnings and above, the same depth the
		// teacher's log15-derived logger records for triage.
		fmt.Fprintf(l.out, " caller=%v", callerFrame())
	}
	fmt.Fprintln(l.out)
}

func callerFrame() stack.Call {
	cs := stack.Caller(3)
	return cs
}

func Trace(msg string, ctx ...interface{}) { Root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { Root.Crit(msg, ctx...) }
