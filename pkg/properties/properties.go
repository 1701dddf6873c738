// SPDX-License-Identifier: MPL-2.0

package properties

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	mprops "github.com/magiconair/properties"
)

// Set is an ordered, immutable mapping from property key to value.
// The zero value is an empty set.
type Set struct {
	keys   []string
	values map[string]string
	source string
}

// Empty returns an empty set with no source.
func Empty() *Set {
	return &Set{values: map[string]string{}}
}

// Load reads a property file. A missing file yields an empty set and a nil
// error; a file that exists but cannot be read or parsed is an error.
// Variable expansion (${key}) is disabled so secrets are taken literally.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Set{values: map[string]string{}, source: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read properties %s: %w", path, err)
	}
	return parse(data, path)
}

// Parse builds a set from in-memory property file contents.
func Parse(data []byte, source string) (*Set, error) {
	return parse(data, source)
}

func parse(data []byte, source string) (*Set, error) {
	loader := &mprops.Loader{Encoding: mprops.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse properties %s: %w", source, err)
	}

	s := &Set{values: make(map[string]string, p.Len()), source: source}
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		s.keys = append(s.keys, key)
		s.values[key] = value
	}
	return s, nil
}

// FromEnv builds a set from environment entries ("NAME=value") whose name
// starts with prefix. The prefix is stripped from the key. Entries keep the
// order of environ.
func FromEnv(prefix string, environ []string) *Set {
	s := &Set{values: map[string]string{}, source: "env:" + prefix}
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.TrimPrefix(name, prefix)
		if key == "" {
			continue
		}
		if _, seen := s.values[key]; !seen {
			s.keys = append(s.keys, key)
		}
		s.values[key] = value
	}
	return s
}

// Overlay returns a new set holding base's entries replaced or extended by top's.
// Keys keep base's order followed by keys only present in top.
func Overlay(base, top *Set) *Set {
	out := &Set{values: map[string]string{}}
	for _, s := range []*Set{base, top} {
		if s == nil {
			continue
		}
		for _, key := range s.keys {
			if _, seen := out.values[key]; !seen {
				out.keys = append(out.keys, key)
			}
			out.values[key] = s.values[key]
		}
	}
	if base != nil {
		out.source = base.source
	}
	return out
}

// Get returns the value for key. The boolean is false when the key is absent.
func (s *Set) Get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the keys in load order.
func (s *Set) Keys() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.keys)
}

// Len returns the number of entries.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Source names where the set was loaded from.
func (s *Set) Source() string {
	if s == nil {
		return ""
	}
	return s.source
}

// Map returns a copy of the entries.
func (s *Set) Map() map[string]string {
	out := make(map[string]string, s.Len())
	if s == nil {
		return out
	}
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
