//go:build linux

package rawsock

import (
	"errors"
	"testing"

	racfg "github.com/ZaparooProject/go-racfg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNewUnknownInterface(t *testing.T) {
	t.Parallel()

	_, err := New("racfg-missing0", Config{}, zerolog.Nop())
	require.Error(t, err)
	var te *racfg.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "lookup", te.Op)
	assert.False(t, racfg.IsRetryable(err))
}

func TestLoopbackSocket(t *testing.T) {
	t.Parallel()

	tr, err := New("lo", Config{}, zerolog.Nop())
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		t.Skip("raw sockets need CAP_NET_RAW")
	}
	require.NoError(t, err)

	assert.Equal(t, racfg.TransportRawSocket, tr.Type())
	require.Error(t, tr.Send([]byte{1, 2, 3}))
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())
	require.ErrorIs(t, tr.Send(make([]byte, 60)), racfg.ErrTransportClosed)
}
