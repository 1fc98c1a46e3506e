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
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// wireValue is the tagged representation Value is (un)marshalled to on the
// worker/parent wire. Plain JSON cannot distinguish int from float, or
// arbitrary byte strings from UTF-8 text, so every Value carries an
// explicit "t" discriminator; this is the same shape the host's other
// wire messages (worker/protocol.go) already use for their own payloads.
type wireValue struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

// MarshalJSON implements json.Marshaler, encoding v in the tagged wire
// format used by worker/protocol.go's Command and Result envelopes.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNil:
		return json.Marshal(wireValue{T: "nil"})
	case KindBool:
		raw, err := json.Marshal(v.Bool)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireValue{T: "bool", V: raw})
	case KindInt:
		raw, err := json.Marshal(v.Int)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireValue{T: "int", V: raw})
	case KindFloat:
		raw, err := json.Marshal(v.Float)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireValue{T: "float", V: raw})
	case KindString:
		raw, err := json.Marshal(base64.StdEncoding.EncodeToString(v.Str))
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireValue{T: "string", V: raw})
	case KindSequence:
		raw, err := json.Marshal(v.Seq)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireValue{T: "sequence", V: raw})
	case KindMapping:
		raw, err := json.Marshal(v.Mapping)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireValue{T: "mapping", V: raw})
	default:
		return nil, fmt.Errorf("luaward/value: unknown kind %d", v.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler, the inverse of MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.T {
	case "nil":
		*v = Nil()
	case "bool":
		var b bool
		if err := json.Unmarshal(w.V, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case "int":
		var i int64
		if err := json.Unmarshal(w.V, &i); err != nil {
			return err
		}
		*v = Int(i)
	case "float":
		var f float64
		if err := json.Unmarshal(w.V, &f); err != nil {
			return err
		}
		*v = Float(f)
	case "string":
		var enc string
		if err := json.Unmarshal(w.V, &enc); err != nil {
			return err
		}
		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return fmt.Errorf("luaward/value: decoding string payload: %w", err)
		}
		*v = Bytes(raw)
	case "sequence":
		var seq []Value
		if err := json.Unmarshal(w.V, &seq); err != nil {
			return err
		}
		*v = Sequence(seq)
	case "mapping":
		var m map[string]Value
		if err := json.Unmarshal(w.V, &m); err != nil {
			return err
		}
		*v = Mapping(m)
	default:
		return fmt.Errorf("luaward/value: unknown wire tag %q", w.T)
	}
	return nil
}
