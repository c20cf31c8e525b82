package logifacesink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stressgo/stressgo/internal/logging"
)

type recordingLogger struct {
	entries []logging.Entry
}

func (r *recordingLogger) Log(e logging.Entry) { r.entries = append(r.entries, e) }

func (r *recordingLogger) IsEnabled(logging.Level) bool { return true }

func TestSinkForwardsToDestination(t *testing.T) {
	rec := &recordingLogger{}
	l := New(rec, "procsup", logging.LevelDebug)

	l.Info().Str("stressor", "cpu").Int("instance", 1).Log("worker started")

	if assert.Len(t, rec.entries, 1) {
		e := rec.entries[0]
		assert.Equal(t, logging.LevelInfo, e.Level)
		assert.Equal(t, "procsup", e.Category)
		assert.Equal(t, "worker started", e.Message)
		assert.Equal(t, "cpu", e.Context["stressor"])
		assert.Equal(t, 1, e.Context["instance"])
	}
}

func TestSinkCarriesError(t *testing.T) {
	rec := &recordingLogger{}
	l := New(rec, "procsup", logging.LevelDebug)

	l.Err().Err(errors.New("eagain")).Log("spawn failed")

	if assert.Len(t, rec.entries, 1) {
		assert.Equal(t, logging.LevelError, rec.entries[0].Level)
		assert.EqualError(t, rec.entries[0].Err, "eagain")
	}
}

func TestSinkHonoursMinimumLevel(t *testing.T) {
	rec := &recordingLogger{}
	l := New(rec, "procsup", logging.LevelWarn)

	l.Debug().Log("too verbose")
	l.Info().Log("still too verbose")
	l.Err().Log("this gets through")

	assert.Len(t, rec.entries, 1)
}
