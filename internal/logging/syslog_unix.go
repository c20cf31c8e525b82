//go:build !windows && !plan9 && !js && !wasip1

package logging

import (
	"fmt"
	"log/syslog"
)

// syslogLogger adapts logging.Entry onto the standard library's
// log/syslog.Writer, the portable-enough POSIX syslog client every mainline
// Go platform except Windows/Plan9/WASM provides.
type syslogLogger struct {
	w     *syslog.Writer
	level Level
}

// NewSyslogLogger dials the local syslog daemon and returns a Logger that
// forwards entries to it at the matching syslog priority, mapped from
// logging.Level (spec §6's --syslog flag).
func NewSyslogLogger(minLevel Level, tag string) (Logger, error) {
	w, err := syslog.New(syslog.LOG_NOTICE|syslog.LOG_DAEMON, tag)
	if err != nil {
		return nil, fmt.Errorf("logging: dial syslog: %w", err)
	}
	return &syslogLogger{w: w, level: minLevel}, nil
}

func (s *syslogLogger) IsEnabled(level Level) bool { return level >= s.level }

func (s *syslogLogger) Log(entry Entry) {
	if !s.IsEnabled(entry.Level) {
		return
	}
	msg := formatSyslogMessage(entry)
	switch entry.Level {
	case LevelDebug:
		_ = s.w.Debug(msg)
	case LevelInfo:
		_ = s.w.Info(msg)
	case LevelWarn:
		_ = s.w.Warning(msg)
	case LevelError:
		_ = s.w.Err(msg)
	default:
		_ = s.w.Notice(msg)
	}
}

func formatSyslogMessage(entry Entry) string {
	msg := fmt.Sprintf("[%s] %s", entry.Category, entry.Message)
	if entry.Stressor != "" {
		msg += fmt.Sprintf(" stressor=%s", entry.Stressor)
	}
	if entry.PID != 0 {
		msg += fmt.Sprintf(" pid=%d", entry.PID)
	}
	if entry.Err != nil {
		msg += fmt.Sprintf(" err=%v", entry.Err)
	}
	return msg
}
