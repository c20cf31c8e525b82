// Package logifacesink adapts internal/logging onto github.com/joeycumines/logiface,
// so stressgo's structured log entries can be routed through any logiface
// sink (zerolog, slog, stumpy, ...) a deployment wants, instead of only the
// package's own DefaultLogger.
//
// Event, factory, and writer are the three pieces logiface asks every
// integration to provide (see logiface.Event, logiface.EventFactory,
// logiface.Writer); New wires them into a logiface.Logger whose events are
// forwarded to a logging.Logger.
package logifacesink

import (
	"time"

	"github.com/joeycumines/logiface"

	"github.com/stressgo/stressgo/internal/logging"
)

// Event is the minimal logiface.Event implementation stressgo needs: a
// level, a message, an error, and a flat field map. It must embed
// logiface.UnimplementedEvent, per the interface's contract.
type Event struct {
	logiface.UnimplementedEvent

	level   logiface.Level
	message string
	err     error
	fields  map[string]any
}

func (e *Event) Level() logiface.Level { return e.level }

func (e *Event) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.fields[key] = val
}

func (e *Event) AddMessage(msg string) bool { e.message = msg; return true }

func (e *Event) AddError(err error) bool { e.err = err; return true }

func (e *Event) AddString(key string, val string) bool { e.AddField(key, val); return true }

func (e *Event) AddInt(key string, val int) bool { e.AddField(key, val); return true }

func (e *Event) AddInt64(key string, val int64) bool { e.AddField(key, val); return true }

func (e *Event) AddUint64(key string, val uint64) bool { e.AddField(key, val); return true }

func (e *Event) AddFloat32(key string, val float32) bool { e.AddField(key, val); return true }

func (e *Event) AddFloat64(key string, val float64) bool { e.AddField(key, val); return true }

func (e *Event) AddBool(key string, val bool) bool { e.AddField(key, val); return true }

func (e *Event) AddTime(key string, val time.Time) bool { e.AddField(key, val.Format(time.RFC3339Nano)); return true }

func (e *Event) AddDuration(key string, val time.Duration) bool { e.AddField(key, val.String()); return true }

// factory implements logiface.EventFactory[*Event].
type factory struct{}

func (factory) NewEvent(level logiface.Level) *Event {
	return &Event{level: level}
}

// writer implements logiface.Writer[*Event], translating each event into a
// logging.Entry and dispatching it to dest.
type writer struct {
	dest     logging.Logger
	category string
}

func (w writer) Write(event *Event) error {
	w.dest.Log(logging.Entry{
		Level:     fromLogifaceLevel(event.level),
		Category:  w.category,
		Message:   event.message,
		Err:       event.err,
		Context:   event.fields,
		Timestamp: time.Now(),
	})
	return nil
}

// logiface orders severity the opposite way to logging.Level: lower
// numeric value is more severe (LevelEmergency=0 ... LevelTrace=8), so the
// comparisons below run "backwards" relative to logging.Level's ascending
// DEBUG < INFO < WARN < ERROR scale.
func fromLogifaceLevel(l logiface.Level) logging.Level {
	switch {
	case l <= logiface.LevelError:
		return logging.LevelError
	case l <= logiface.LevelWarning:
		return logging.LevelWarn
	case l <= logiface.LevelInformational:
		return logging.LevelInfo
	default:
		return logging.LevelDebug
	}
}

func toLogifaceLevel(l logging.Level) logiface.Level {
	switch l {
	case logging.LevelError:
		return logiface.LevelError
	case logging.LevelWarn:
		return logiface.LevelWarning
	case logging.LevelInfo:
		return logiface.LevelInformational
	default:
		return logiface.LevelDebug
	}
}

// New builds a logiface.Logger[*Event] that forwards every event to dest
// under the given category, at minimum severity level.
func New(dest logging.Logger, category string, level logging.Level) *logiface.Logger[*Event] {
	return logiface.New[*Event](
		logiface.WithEventFactory[*Event](factory{}),
		logiface.WithWriter[*Event](writer{dest: dest, category: category}),
		logiface.WithLevel[*Event](toLogifaceLevel(level)),
	)
}
