// Copyright 2017 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// Package config loads the non-callable portion of a luaward Host's
// options from a TOML document, so an embedding application can keep
// sandbox tuning alongside its other service configuration.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
)

// Options is the TOML-serializable subset of luaward.Options. Callback
// functions cannot be expressed in a config file and are always wired by
// the embedding Go program after loading.
type Options struct {
	MemoryLimit      uint64 `toml:",omitempty"` // bytes; 0 means unlimited
	InstructionLimit uint64 `toml:",omitempty"` // count; 0 means unlimited
	UID              int    `toml:",omitempty"`
	GID              int    `toml:",omitempty"`
	FullIsolation    bool   `toml:",omitempty"`
	CPULimit         int    `toml:",omitempty"` // seconds; 0 means unlimited
	ShutdownTimeout  int    `toml:",omitempty"` // seconds, defaults to 5 when unset
}

// tomlSettings mirrors the teacher's exact-case TOML field mapping: struct
// field names are used verbatim as TOML keys, and an unknown key in the
// file is an error that links back to the field's godoc.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) {
			link = fmt.Sprintf(", see https://pkg.go.dev/luaward/config#%s for available fields", rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// Load reads and decodes a TOML options file.
func Load(path string) (Options, error) {
	var cfg Options

	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg)
	var lineErr *toml.LineError
	if errors.As(err, &lineErr) {
		err = fmt.Errorf("%s, %w", path, err)
	}
	return cfg, err
}

// Dump renders cfg back to TOML, primarily useful for a `dumpconfig`-style
// diagnostic command in an embedding application.
func Dump(cfg Options) ([]byte, error) {
	return tomlSettings.Marshal(&cfg)
}
