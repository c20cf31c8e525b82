package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCellStartsAtInit(t *testing.T) {
	c := NewCell()
	assert.Equal(t, StateInit, c.Load())
	assert.False(t, c.IsTerminal())
}

func TestTryTransition(t *testing.T) {
	c := NewCell()
	assert.True(t, c.TryTransition(StateInit, StateSyncWait))
	assert.Equal(t, StateSyncWait, c.Load())

	// wrong "from" fails and leaves state unchanged
	assert.False(t, c.TryTransition(StateInit, StateRun))
	assert.Equal(t, StateSyncWait, c.Load())
}

func TestTransitionAny(t *testing.T) {
	c := NewCell()
	c.Store(StateStop)
	ok := c.TransitionAny([]State{StateStop, StateTidy}, StateWaitComplete)
	assert.True(t, ok)
	assert.Equal(t, StateWaitComplete, c.Load())
}

func TestIsRunning(t *testing.T) {
	c := NewCell()
	c.Store(StateRun)
	assert.True(t, c.IsRunning())
	c.Store(StateWait)
	assert.True(t, c.IsRunning())
	c.Store(StateStop)
	assert.False(t, c.IsRunning())
}

func TestIsTerminal(t *testing.T) {
	c := NewCell()
	c.Store(StateExit)
	assert.True(t, c.IsTerminal())
}

func TestSafePoint(t *testing.T) {
	var sp SafePoint
	assert.False(t, sp.Armed())
	sp.MarkSafePoint()
	assert.True(t, sp.Armed())
	sp.ClearSafePoint()
	assert.False(t, sp.Armed())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "RUN", StateRun.String())
	assert.Equal(t, "UNKNOWN", State(999).String())
}
