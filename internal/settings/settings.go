// Package settings holds the process-wide (stressor, option) → value store.
//
// The store is populated entirely before any worker is spawned, then read
// only: a stressor reads its own options once inside its entry function.
// Guarded by a single RWMutex rather than per-entry locking, following the
// teacher's preference (eventloop/state.go) for the simplest synchronization
// primitive that is provably correct over a finer-grained one that is merely
// faster on paper.
package settings

import (
	"sync"

	"github.com/stressgo/stressgo/internal/errs"
)

// Tag classifies the stored value's original representation. The first
// Set call for a given (stressor, key) fixes the tag; later Set calls keep
// it, so a stressor can tell whether a size was given as a literal or a
// percentage even after expansion to a concrete value.
type Tag int

const (
	TagBool Tag = iota
	TagInt
	TagUint
	TagString
	TagBytes
	TagBytesPercent
	TagInstancesPercent
	TagDuration
)

func (t Tag) String() string {
	switch t {
	case TagBool:
		return "bool"
	case TagInt:
		return "int"
	case TagUint:
		return "uint"
	case TagString:
		return "string"
	case TagBytes:
		return "bytes"
	case TagBytesPercent:
		return "bytes_percent"
	case TagInstancesPercent:
		return "instances_percent"
	case TagDuration:
		return "duration"
	default:
		return "unknown"
	}
}

// Value is a typed entry in the store. Only one of the fields is
// meaningful, selected by Tag.
type Value struct {
	Tag    Tag
	Bool   bool
	Int    int64
	Uint   uint64
	String string
}

type key struct {
	stressor string
	option   string
}

// Store is a process-wide settings table. The zero value is ready to use.
type Store struct {
	mu   sync.RWMutex
	data map[key]Value
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{data: make(map[key]Value)}
}

// Set upserts (stressor, option) = value. The tag passed on the first
// insertion for a key is fixed and silently ignored on later calls — spec
// 4.B requires the original tag to survive even if a later value is
// logically equivalent under another representation.
func (s *Store) Set(stressor, option string, tag Tag, v Value) {
	v.Tag = tag
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[key]Value)
	}
	k := key{stressor, option}
	if existing, ok := s.data[k]; ok {
		v.Tag = existing.Tag
	}
	s.data[k] = v
}

// Get looks up (stressor, option), returning the value and whether it was
// present.
func (s *Store) Get(stressor, option string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key{stressor, option}]
	return v, ok
}

// GetTrue sets (stressor, option) to the boolean true, for present-flag
// options whose mere appearance on the command line is the signal (e.g.
// "--verify" with no value).
func (s *Store) GetTrue(stressor, option string) {
	s.Set(stressor, option, TagBool, Value{Bool: true})
}

// GetBool returns the boolean value for (stressor, option), returning
// false if the key is absent. A present key tagged anything other
// than TagBool is a programmer error in the stressor reading it under the
// wrong type, and panics per spec §6 ("Tag mismatch panics the worker").
func (s *Store) GetBool(stressor, option string) bool {
	v, ok := s.Get(stressor, option)
	if !ok {
		return false
	}
	if v.Tag != TagBool {
		panic(&errs.TagMismatchError{Stressor: stressor, Option: option, Want: TagBool.String(), Got: v.Tag.String()})
	}
	return v.Bool
}

// GetUint returns the uint64 value for (stressor, option) and whether it
// was present, accepting any of the numeric tags (Uint, Bytes,
// BytesPercent, Duration). A present key under any other tag panics (spec
// §6).
func (s *Store) GetUint(stressor, option string) (uint64, bool) {
	v, ok := s.Get(stressor, option)
	if !ok {
		return 0, false
	}
	switch v.Tag {
	case TagUint, TagBytes, TagBytesPercent, TagDuration:
		return v.Uint, true
	default:
		panic(&errs.TagMismatchError{Stressor: stressor, Option: option, Want: "uint|bytes|bytes_percent|duration", Got: v.Tag.String()})
	}
}

// GetInt returns the int64 value for (stressor, option), accepting TagInt
// or TagInstancesPercent. A present key under any other tag panics (spec
// §6).
func (s *Store) GetInt(stressor, option string) (int64, bool) {
	v, ok := s.Get(stressor, option)
	if !ok {
		return 0, false
	}
	if v.Tag != TagInt && v.Tag != TagInstancesPercent {
		panic(&errs.TagMismatchError{Stressor: stressor, Option: option, Want: "int|instances_percent", Got: v.Tag.String()})
	}
	return v.Int, true
}

// GetString returns the string value for (stressor, option). A present key
// tagged anything other than TagString panics (spec §6).
func (s *Store) GetString(stressor, option string) (string, bool) {
	v, ok := s.Get(stressor, option)
	if !ok {
		return "", false
	}
	if v.Tag != TagString {
		panic(&errs.TagMismatchError{Stressor: stressor, Option: option, Want: TagString.String(), Got: v.Tag.String()})
	}
	return v.String, true
}

// ForStressor returns a snapshot of every option currently set for
// stressor, keyed by option name. Used by diagnostics and by tests.
func (s *Store) ForStressor(stressor string) map[string]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Value)
	for k, v := range s.data {
		if k.stressor == stressor {
			out[k.option] = v
		}
	}
	return out
}

// NewStoreFromStressorSettings rebuilds a single-stressor Store from the
// map ForStressor produces, used by a re-exec'd worker to reconstruct its
// own settings after they cross the process boundary in WorkerParams.
func NewStoreFromStressorSettings(stressor string, values map[string]Value) *Store {
	s := NewStore()
	for option, v := range values {
		s.Set(stressor, option, v.Tag, v)
	}
	return s
}
