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

package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"luaward/internal/luacore"
)

func TestLuaRoundTripScalars(t *testing.T) {
	st := luacore.NewState()
	defer st.Close()

	cases := []Value{
		Nil(),
		Bool(true),
		Bool(false),
		Int(42),
		Int(-7),
		Float(3.25),
		String("hello"),
		Bytes([]byte{0, 1, 2, 0xff}),
	}
	for _, want := range cases {
		ToLua(st, want)
		got, err := FromLua(st, -1)
		require.NoError(t, err)
		st.Pop(1)
		require.Equal(t, want.Kind, got.Kind)
		switch want.Kind {
		case KindBool:
			require.Equal(t, want.Bool, got.Bool)
		case KindInt:
			require.Equal(t, want.Int, got.Int)
		case KindFloat:
			require.Equal(t, want.Float, got.Float)
		case KindString:
			require.Equal(t, want.Str, got.Str)
		}
	}
}

func TestLuaRoundTripSequence(t *testing.T) {
	st := luacore.NewState()
	defer st.Close()

	want := Sequence([]Value{Int(1), Int(2), String("three")})
	ToLua(st, want)
	got, err := FromLua(st, -1)
	require.NoError(t, err)
	st.Pop(1)

	require.Equal(t, KindSequence, got.Kind)
	require.Len(t, got.Seq, 3)
	require.Equal(t, int64(1), got.Seq[0].Int)
	require.Equal(t, int64(2), got.Seq[1].Int)
	require.Equal(t, []byte("three"), got.Seq[2].Str)
}

func TestLuaRoundTripMapping(t *testing.T) {
	st := luacore.NewState()
	defer st.Close()

	want := Mapping(map[string]Value{
		"a": Int(1),
		"b": String("x"),
	})
	ToLua(st, want)
	got, err := FromLua(st, -1)
	require.NoError(t, err)
	st.Pop(1)

	require.Equal(t, KindMapping, got.Kind)
	require.Equal(t, int64(1), got.Mapping["a"].Int)
	require.Equal(t, []byte("x"), got.Mapping["b"].Str)
}

func TestLuaCyclicTableIsRejected(t *testing.T) {
	st := luacore.NewState()
	defer st.Close()

	require.NoError(t, st.LoadText([]byte(`
		local t = {}
		t.self = t
		return t
	`), "cycle"))
	require.NoError(t, st.PCall(0, 1))

	_, err := FromLua(st, -1)
	require.ErrorIs(t, err, ErrCyclicTable)
}

func TestLuaMixedKeysAreAMapping(t *testing.T) {
	st := luacore.NewState()
	defer st.Close()

	require.NoError(t, st.LoadText([]byte(`
		local t = {10, 20, 30}
		t.extra = "x"
		return t
	`), "mixed"))
	require.NoError(t, st.PCall(0, 1))

	got, err := FromLua(st, -1)
	require.NoError(t, err)
	require.Equal(t, KindMapping, got.Kind)
	require.Equal(t, []byte("x"), got.Mapping["extra"].Str)
	require.Equal(t, int64(10), got.Mapping["1"].Int)
}

func TestJSONRoundTripPreservesIntVsFloat(t *testing.T) {
	cases := []Value{
		Nil(),
		Bool(true),
		Int(5),
		Float(5.0),
		Float(2.5),
		String("payload"),
		Sequence([]Value{Int(1), Float(1.5)}),
		Mapping(map[string]Value{"k": Int(9)}),
	}
	for _, want := range cases {
		data, err := json.Marshal(want)
		require.NoError(t, err)

		var got Value
		require.NoError(t, json.Unmarshal(data, &got))
		require.Equal(t, want.Kind, got.Kind, "round-tripping %#v", want)
	}
}

func TestJSONDistinguishesIntFromFloatOnTheWire(t *testing.T) {
	intData, err := json.Marshal(Int(5))
	require.NoError(t, err)
	floatData, err := json.Marshal(Float(5))
	require.NoError(t, err)
	require.NotEqual(t, string(intData), string(floatData))

	var fromInt, fromFloat Value
	require.NoError(t, json.Unmarshal(intData, &fromInt))
	require.NoError(t, json.Unmarshal(floatData, &fromFloat))
	require.Equal(t, KindInt, fromInt.Kind)
	require.Equal(t, KindFloat, fromFloat.Kind)
}
