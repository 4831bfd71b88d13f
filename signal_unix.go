//go:build unix

package racfg

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// KillSignaler delivers signals with kill(2)
type KillSignaler struct{}

func (KillSignaler) Signal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("%w: pid %d", ErrInvalidParameter, pid)
	}
	if err := unix.Kill(pid, sig); err != nil {
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	return nil
}

// daemonSignal maps the firmware's signal ids
func daemonSignal(id uint32) (syscall.Signal, bool) {
	switch id {
	case 1:
		return unix.SIGUSR1, true
	case 2:
		return unix.SIGUSR2, true
	case 3:
		return unix.SIGHUP, true
	default:
		return 0, false
	}
}
