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

// Package value defines the marshalled Script Value domain exchanged
// between the host and an embedded script (spec.md §3), the conversions to
// and from a luacore.State's stack, and a JSON codec used to carry values
// across the worker/parent wire (spec.md §6).
package value

import (
	"fmt"
	"sort"
	"strconv"

	"luaward/internal/luacore"
)

// Kind discriminates a Value's variant.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSequence
	KindMapping
)

// Value is the marshalled-value domain: nil, boolean, integer, float,
// byte string, or a table flattened into either an ordered Sequence or a
// string-keyed Mapping, per spec.md §3/§4.3.
type Value struct {
	Kind Kind

	Bool    bool
	Int     int64
	Float   float64
	Str     []byte
	Seq     []Value
	Mapping map[string]Value
}

func Nil() Value                 { return Value{Kind: KindNil} }
func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func Int(v int64) Value          { return Value{Kind: KindInt, Int: v} }
func Float(v float64) Value      { return Value{Kind: KindFloat, Float: v} }
func String(s string) Value      { return Value{Kind: KindString, Str: []byte(s)} }
func Bytes(b []byte) Value       { return Value{Kind: KindString, Str: b} }
func Sequence(v []Value) Value   { return Value{Kind: KindSequence, Seq: v} }
func Mapping(v map[string]Value) Value { return Value{Kind: KindMapping, Mapping: v} }

// ErrCyclicTable is returned by FromLua when a table references itself,
// directly or transitively: spec.md §3, "Cyclic tables are not
// convertible and produce a marshalling error."
var ErrCyclicTable = fmt.Errorf("luaward/value: cyclic table cannot be marshalled")

// maxTableDepth bounds nested-table recursion so a deeply (but
// non-cyclically) nested table fails predictably rather than exhausting
// the Go stack; spec.md §3 allows "nested tables permitted to bounded
// depth" without naming the bound.
const maxTableDepth = 200

// FromLua marshals the value at stack index idx of st into the Script
// Value domain.
func FromLua(st *luacore.State, idx int) (Value, error) {
	return fromLua(st, idx, map[uintptr]bool{}, 0)
}

func fromLua(st *luacore.State, idx int, seen map[uintptr]bool, depth int) (Value, error) {
	switch st.Type(idx) {
	case luacore.TNil:
		return Nil(), nil
	case luacore.TBoolean:
		return Bool(st.ToBool(idx)), nil
	case luacore.TNumber:
		if st.IsInteger(idx) {
			return Int(st.ToInteger(idx)), nil
		}
		return Float(st.ToNumber(idx)), nil
	case luacore.TString:
		return Bytes(st.ToBytes(idx)), nil
	case luacore.TTable:
		return tableFromLua(st, idx, seen, depth)
	default:
		return Value{}, fmt.Errorf("luaward/value: cannot marshal a %d value", st.Type(idx))
	}
}

func tableFromLua(st *luacore.State, idx int, seen map[uintptr]bool, depth int) (Value, error) {
	if depth >= maxTableDepth {
		return Value{}, fmt.Errorf("luaward/value: table nesting exceeds %d levels", maxTableDepth)
	}
	ptr := st.TablePointer(idx)
	if seen[ptr] {
		return Value{}, ErrCyclicTable
	}
	seen[ptr] = true
	defer delete(seen, ptr)

	// absolute index, since we're about to push/pop around it
	abs := idx
	if abs < 0 {
		abs = st.Top() + abs + 1
	}

	n := st.RawLen(abs)

	// Walk every key once to decide sequence-vs-mapping: a table counts as
	// a Sequence only if its raw length n is positive and every key in the
	// table is an integer in [1, n] (spec.md §3), which also rules out
	// sparse or mixed-key tables masquerading as sequences.
	keys := []interface{}{}
	st.PushNil()
	for st.Next(abs) {
		k, err := keyFromLua(st, -2)
		if err != nil {
			st.Pop(2)
			return Value{}, err
		}
		keys = append(keys, k)
		st.Pop(1) // keep the key on top for the next Next() call
	}

	if n > 0 && allContiguousInts(keys, n) {
		seq := make([]Value, n)
		for i := int64(1); i <= int64(n); i++ {
			st.RawGetIndex(abs, i)
			v, err := fromLua(st, -1, seen, depth+1)
			st.Pop(1)
			if err != nil {
				return Value{}, err
			}
			seq[i-1] = v
		}
		return Sequence(seq), nil
	}

	mapping := make(map[string]Value, len(keys))
	st.PushNil()
	for st.Next(abs) {
		k, _ := keyFromLua(st, -2)
		v, err := fromLua(st, -1, seen, depth+1)
		if err != nil {
			st.Pop(2)
			return Value{}, err
		}
		mapping[stringifyKey(k)] = v
		st.Pop(1)
	}
	return Mapping(mapping), nil
}

func keyFromLua(st *luacore.State, idx int) (interface{}, error) {
	switch st.Type(idx) {
	case luacore.TNumber:
		if st.IsInteger(idx) {
			return st.ToInteger(idx), nil
		}
		return st.ToNumber(idx), nil
	case luacore.TString:
		return st.ToString(idx), nil
	default:
		return nil, fmt.Errorf("luaward/value: unsupported table key type %d", st.Type(idx))
	}
}

func stringifyKey(k interface{}) string {
	switch v := k.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func allContiguousInts(keys []interface{}, n int) bool {
	if len(keys) != n {
		return false
	}
	seen := make(map[int64]bool, n)
	for _, k := range keys {
		iv, ok := k.(int64)
		if !ok || iv < 1 || iv > int64(n) {
			return false
		}
		seen[iv] = true
	}
	return len(seen) == n
}

// ToLua pushes v onto st's stack as the equivalent Lua value: sequences
// become 1-indexed tables, mappings become string-keyed tables, and
// integers are pushed as Lua integers (floats as Lua floats), per
// spec.md §4.3.
func ToLua(st *luacore.State, v Value) {
	switch v.Kind {
	case KindNil:
		st.PushNil()
	case KindBool:
		st.PushBool(v.Bool)
	case KindInt:
		st.PushInteger(v.Int)
	case KindFloat:
		st.PushNumber(v.Float)
	case KindString:
		st.PushString(v.Str)
	case KindSequence:
		st.NewTable()
		top := st.Top()
		for i, elem := range v.Seq {
			ToLua(st, elem)
			st.RawSetIndex(top, int64(i+1))
		}
	case KindMapping:
		st.NewTable()
		top := st.Top()
		keys := make([]string, 0, len(v.Mapping))
		for k := range v.Mapping {
			keys = append(keys, k)
		}
		sort.Strings(keys) // deterministic push order, not semantically required
		for _, k := range keys {
			st.PushString([]byte(k))
			ToLua(st, v.Mapping[k])
			st.RawSet(top)
		}
	}
}
