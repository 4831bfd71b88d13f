//go:build !linux

package rawsock

import (
	racfg "github.com/ZaparooProject/go-racfg"
	"github.com/rs/zerolog"
)

// Transport is unavailable on this platform
type Transport struct {
	racfg.Transport
}

// New always fails with ErrUnsupported
func New(_ string, _ Config, _ zerolog.Logger) (*Transport, error) {
	return nil, ErrUnsupported
}
