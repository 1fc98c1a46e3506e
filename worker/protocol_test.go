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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"luaward/value"
)

func TestCommandJSONRoundTrip(t *testing.T) {
	cmd := Command{
		ID:   7,
		Kind: CmdCall,
		Name: "add",
		Args: []value.Value{value.Int(1), value.String("x")},
	}
	data, err := json.Marshal(cmd)
	require.NoError(t, err)

	var got Command
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, cmd.ID, got.ID)
	require.Equal(t, cmd.Kind, got.Kind)
	require.Equal(t, cmd.Name, got.Name)
	require.Len(t, got.Args, 2)
	require.Equal(t, int64(1), got.Args[0].Int)
}

func TestResultJSONRoundTrip(t *testing.T) {
	ok := true
	res := Result{ID: 3, Kind: ResSuccess, Bool: &ok, Value: value.Int(9)}
	data, err := json.Marshal(res)
	require.NoError(t, err)

	var got Result
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, ResSuccess, got.Kind)
	require.NotNil(t, got.Bool)
	require.True(t, *got.Bool)
	require.Equal(t, int64(9), got.Value.Int)
}

func TestCallbackResultRoundTrip(t *testing.T) {
	cmd := Command{
		Kind:           CmdCallbackResult,
		CallbackID:     42,
		CallbackResult: value.String("ok"),
	}
	data, err := json.Marshal(cmd)
	require.NoError(t, err)

	var got Command
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, uint64(42), got.CallbackID)
	require.Equal(t, []byte("ok"), got.CallbackResult.Str)
}
