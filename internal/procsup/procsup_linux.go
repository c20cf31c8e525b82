//go:build linux

package procsup

import (
	"errors"
	"fmt"
	"syscall"
)

// killPIDPlatform sends SIGKILL to pid via kill(2). ESRCH (already gone)
// is treated as success: the goal state (pid not running) already holds.
func killPIDPlatform(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("procsup: kill pid %d: %w", pid, err)
	}
	return nil
}

// tryReap performs a non-blocking waitpid on h, reporting whether the
// process has exited and its status if so.
func tryReap(h *Handle) (status int, exited bool, err error) {
	var ws syscall.WaitStatus
	wpid, err := syscall.Wait4(h.PID, &ws, syscall.WNOHANG, nil)
	if err != nil {
		if errors.Is(err, syscall.ECHILD) {
			// already reaped by someone else (e.g. cmd.Wait from the Go
			// runtime's SIGCHLD reaper); treat as a clean exit.
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
	syscall.Syscall(syscall.SYS_SCHED_YIELD, 0, 0, 0)
}
