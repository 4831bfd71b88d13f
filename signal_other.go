//go:build !unix

package racfg

import (
	"errors"
	"syscall"
)

var errSignalUnsupported = errors.New("signals not supported on this platform")

// KillSignaler is unavailable without kill(2)
type KillSignaler struct{}

func (KillSignaler) Signal(int, syscall.Signal) error {
	return errSignalUnsupported
}

// daemonSignal has no mapping here; daemon signals are logged and skipped.
func daemonSignal(uint32) (syscall.Signal, bool) {
	return 0, false
}
