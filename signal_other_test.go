//go:build !unix

package racfg

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalsUnsupported(t *testing.T) {
	t.Parallel()

	for _, id := range []uint32{1, 2, 3} {
		_, ok := daemonSignal(id)
		assert.False(t, ok, "id %d", id)
	}
	require.ErrorIs(t, KillSignaler{}.Signal(1, syscall.SIGTERM), errSignalUnsupported)
}
