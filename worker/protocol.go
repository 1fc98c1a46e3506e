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

import "luaward/value"

// CommandKind discriminates the messages the parent process sends down
// the worker's command/result channel (spec.md §4.4).
type CommandKind string

const (
	CmdExecute        CommandKind = "EXECUTE"
	CmdCall           CommandKind = "CALL"
	CmdFunctionExists CommandKind = "FUNCTION_EXISTS"
	CmdCallbackResult CommandKind = "CALLBACK_RESULT"
	CmdStop           CommandKind = "STOP"
)

// Command is one message sent from the parent to the worker.
type Command struct {
	ID   uint64      `json:"id"`
	Kind CommandKind `json:"kind"`

	Source string        `json:"source,omitempty"` // CmdExecute
	Name   string        `json:"name,omitempty"`   // CmdCall, CmdFunctionExists
	Args   []value.Value `json:"args,omitempty"`   // CmdCall

	CallbackID     uint64      `json:"callback_id,omitempty"`     // CmdCallbackResult
	CallbackResult value.Value `json:"callback_result,omitempty"` // CmdCallbackResult
	CallbackErr    string      `json:"callback_err,omitempty"`    // CmdCallbackResult
}

// ResultKind discriminates the messages the worker sends back up the
// channel. CALLBACK inverts the usual direction: the worker is asking the
// parent to run a registered host callback and block for the answer,
// which arrives as a subsequent CmdCallbackResult command (spec.md §4.4,
// "bidirectional callback bridge").
type ResultKind string

const (
	ResSuccess  ResultKind = "SUCCESS"
	ResError    ResultKind = "ERROR"
	ResCritical ResultKind = "CRITICAL"
	ResCallback ResultKind = "CALLBACK"
)

// Result is one message sent from the worker to the parent.
type Result struct {
	ID   uint64     `json:"id"`
	Kind ResultKind `json:"kind"`

	Value value.Value `json:"value,omitempty"` // ResSuccess
	Bool  *bool       `json:"bool,omitempty"`  // ResSuccess, CmdFunctionExists reply

	Message string `json:"message,omitempty"` // ResError, ResCritical

	CallbackID   uint64        `json:"callback_id,omitempty"`   // ResCallback
	CallbackName string        `json:"callback_name,omitempty"` // ResCallback
	CallbackArgs []value.Value `json:"callback_args,omitempty"` // ResCallback
}
