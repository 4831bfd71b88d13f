//go:build linux

package rawsock

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	racfg "github.com/ZaparooProject/go-racfg"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	readTimeout = 100 * time.Millisecond
	maxFrame    = 2048
)

// Transport implements racfg.Transport over AF_PACKET
type Transport struct {
	receiver atomic.Pointer[racfg.ReceiveFunc]
	ifi      *net.Interface
	done     chan struct{}
	log      zerolog.Logger
	wg       sync.WaitGroup
	fd       int
	proto    uint16
	closed   atomic.Bool
}

// New opens a raw socket on ifname. It needs CAP_NET_RAW.
func New(ifname string, cfg Config, logger zerolog.Logger) (*Transport, error) {
	ifi, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, racfg.NewTransportError("lookup", ifname, err, racfg.ErrorTypePermanent)
	}
	proto := htons(cfg.etherType())
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(proto))
	if err != nil {
		return nil, racfg.NewTransportError("socket", ifname, err, racfg.ErrorTypePermanent)
	}

	t := &Transport{
		ifi:   ifi,
		fd:    fd,
		proto: proto,
		done:  make(chan struct{}),
		log:   logger.With().Str("iface", ifname).Logger(),
	}
	if err := t.setup(cfg); err != nil {
		_ = unix.Close(fd)
		return nil, racfg.NewTransportError("setup", ifname, err, racfg.ErrorTypePermanent)
	}

	t.wg.Add(1)
	go t.readLoop()
	return t, nil
}

func (t *Transport) setup(cfg Config) error {
	if err := unix.Bind(t.fd, &unix.SockaddrLinklayer{Protocol: t.proto, Ifindex: t.ifi.Index}); err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(t.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("receive timeout: %w", err)
	}
	if cfg.Promiscuous {
		mreq := unix.PacketMreq{Ifindex: int32(t.ifi.Index), Type: unix.PACKET_MR_PROMISC}
		if err := unix.SetsockoptPacketMreq(t.fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
			return fmt.Errorf("promiscuous mode: %w", err)
		}
	}
	return nil
}

func (t *Transport) readLoop() {
	defer t.wg.Done()
	buf := make([]byte, maxFrame)
	for {
		select {
		case <-t.done:
			return
		default:
		}
		n, from, err := unix.Recvfrom(t.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			if t.closed.Load() {
				return
			}
			t.log.Warn().Err(err).Msg("raw socket read")
			time.Sleep(readTimeout)
			continue
		}
		if ll, ok := from.(*unix.SockaddrLinklayer); ok && ll.Pkttype == unix.PACKET_OUTGOING {
			continue
		}
		if fn := t.receiver.Load(); fn != nil {
			(*fn)(buf[:n])
		}
	}
}

// Send transmits one Ethernet frame
func (t *Transport) Send(pkt []byte) error {
	if t.closed.Load() {
		return racfg.ErrTransportClosed
	}
	dst, ok := destination(pkt)
	if !ok {
		return fmt.Errorf("%w: frame of %d bytes", racfg.ErrInvalidParameter, len(pkt))
	}
	addr := &unix.SockaddrLinklayer{
		Protocol: t.proto,
		Ifindex:  t.ifi.Index,
		Halen:    6,
	}
	copy(addr.Addr[:], dst)
	if err := unix.Sendto(t.fd, pkt, 0, addr); err != nil {
		errType := racfg.ErrorTypePermanent
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ENOBUFS) || errors.Is(err, unix.EINTR) {
			errType = racfg.ErrorTypeTransient
		}
		if errors.Is(err, unix.ENETDOWN) {
			err = fmt.Errorf("%w: %w", racfg.ErrLinkDown, err)
			errType = racfg.ErrorTypeTransient
		}
		return racfg.NewTransportError("send", t.ifi.Name, err, errType)
	}
	return nil
}

// SetReceiver registers the inbound frame callback
func (t *Transport) SetReceiver(fn racfg.ReceiveFunc) {
	if fn == nil {
		t.receiver.Store(nil)
		return
	}
	t.receiver.Store(&fn)
}

// HardwareAddr returns the interface MAC
func (t *Transport) HardwareAddr() net.HardwareAddr {
	return t.ifi.HardwareAddr
}

// Close stops the reader and closes the socket
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	close(t.done)
	t.wg.Wait()
	if err := unix.Close(t.fd); err != nil {
		return fmt.Errorf("close raw socket: %w", err)
	}
	return nil
}

// IsConnected reports whether the socket is open and the link is up
func (t *Transport) IsConnected() bool {
	if t.closed.Load() {
		return false
	}
	ifi, err := net.InterfaceByIndex(t.ifi.Index)
	return err == nil && ifi.Flags&net.FlagUp != 0
}

// Type returns the transport type
func (*Transport) Type() racfg.TransportType {
	return racfg.TransportRawSocket
}
