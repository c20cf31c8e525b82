package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := NewStore()
	s.Set("cpu", "workers", TagUint, Value{Uint: 4})

	v, ok := s.Get("cpu", "workers")
	assert.True(t, ok)
	assert.Equal(t, uint64(4), v.Uint)
	assert.Equal(t, TagUint, v.Tag)
}

func TestFirstTagWins(t *testing.T) {
	s := NewStore()
	s.Set("vm", "bytes", TagBytesPercent, Value{Uint: 1024})
	// Later set with concrete bytes keeps the original percent tag.
	s.Set("vm", "bytes", TagBytes, Value{Uint: 2048})

	v, ok := s.Get("vm", "bytes")
	assert.True(t, ok)
	assert.Equal(t, TagBytesPercent, v.Tag)
	assert.Equal(t, uint64(2048), v.Uint)
}

func TestGetTrue(t *testing.T) {
	s := NewStore()
	s.GetTrue("io", "verify")
	assert.True(t, s.GetBool("io", "verify"))
	assert.False(t, s.GetBool("io", "other"))
}

func TestForStressorScoped(t *testing.T) {
	s := NewStore()
	s.Set("cpu", "a", TagUint, Value{Uint: 1})
	s.Set("vm", "a", TagUint, Value{Uint: 2})

	got := s.ForStressor("cpu")
	assert.Len(t, got, 1)
	assert.Equal(t, uint64(1), got["a"].Uint)
}

func TestZeroValueStoreUsable(t *testing.T) {
	var s Store
	s.Set("x", "y", TagBool, Value{Bool: true})
	assert.True(t, s.GetBool("x", "y"))
}

func TestTagMismatchPanics(t *testing.T) {
	s := NewStore()
	s.Set("vm", "size", TagUint, Value{Uint: 4096})

	assert.Panics(t, func() { s.GetBool("vm", "size") })
	assert.Panics(t, func() { s.GetString("vm", "size") })

	s.Set("cpu", "method", TagString, Value{String: "all"})
	assert.Panics(t, func() { s.GetInt("cpu", "method") })

	// Absence, as opposed to mismatch, never panics.
	assert.NotPanics(t, func() { s.GetUint("vm", "missing") })
}
