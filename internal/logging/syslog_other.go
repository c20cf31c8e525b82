//go:build windows || plan9 || js || wasip1

package logging

import "fmt"

// NewSyslogLogger is unavailable on platforms with no POSIX syslog socket;
// callers (cmd/stressgo's --syslog handling) treat this as a warning, not a
// fatal error, the same tolerance spec §4.F gives an unsupported scheduler
// policy.
func NewSyslogLogger(minLevel Level, tag string) (Logger, error) {
	return nil, fmt.Errorf("logging: syslog is not supported on this platform")
}
