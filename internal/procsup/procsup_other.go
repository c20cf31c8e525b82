//go:build !linux

package procsup

import (
	"errors"
	"fmt"
	"syscall"
)

func killPIDPlatform(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("procsup: kill pid %d: %w", pid, err)
	}
	return nil
}

func tryReap(h *Handle) (status int, exited bool, err error) {
	var ws syscall.WaitStatus
	wpid, err := syscall.Wait4(h.PID, &ws, syscall.WNOHANG, nil)
	if err != nil {
		if errors.Is(err, syscall.ECHILD) {
			return 0, true, nil
		}
		return 0, false, err
	}
	if wpid == 0 {
		return 0, false, nil
	}
	if ws.Exited() {
		return ws.ExitStatus(), true, nil
	}
	if ws.Signaled() {
		return 128 + int(ws.Signal()), true, nil
	}
	return 0, false, nil
}

func runtimeGosched() {
	// no cheap yield syscall portably available here; the caller's own
	// iteration pacing (sleepAfterIteration) bounds busy-looping.
}
