// Package testing builds device-side RaCfg frames for tests.
package testing

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/ZaparooProject/go-racfg/internal/frame"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Fixed link addresses used by tests
var (
	HostMAC   = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	DeviceMAC = net.HardwareAddr{0x00, 0x0c, 0x43, 0x28, 0x80, 0x01}
	Broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
)

// BuildFrame wraps a RaCfg frame in an Ethernet header
func BuildFrame(src, dst net.HardwareAddr, h frame.Header, payload []byte) []byte {
	raw, err := frame.Encode(h, payload)
	if err != nil {
		panic(err)
	}
	buf := gopacket.NewSerializeBuffer()
	err = gopacket.SerializeLayers(buf, gopacket.SerializeOptions{},
		&layers.Ethernet{
			SrcMAC:       src,
			DstMAC:       dst,
			EthernetType: layers.EthernetType(frame.EtherType),
		},
		gopacket.Payload(raw),
	)
	if err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// FromDevice wraps a frame sent by the device to the host
func FromDevice(h frame.Header, payload []byte) []byte {
	return BuildFrame(DeviceMAC, HostMAC, h, payload)
}

// Sent is a frame captured from the host side
type Sent struct {
	Src     net.HardwareAddr
	Dst     net.HardwareAddr
	Payload []byte
	Header  frame.Header
}

// ParseSent decodes a host transmission
func ParseSent(pkt []byte) (Sent, error) {
	eth := &layers.Ethernet{}
	if err := eth.DecodeFromBytes(pkt, gopacket.NilDecodeFeedback); err != nil {
		return Sent{}, err
	}
	if eth.EthernetType != layers.EthernetType(frame.EtherType) {
		return Sent{}, fmt.Errorf("ethertype %s", eth.EthernetType)
	}
	f, err := frame.DecodeFrame(eth.Payload)
	if err != nil {
		return Sent{}, err
	}
	return Sent{Src: eth.SrcMAC, Dst: eth.DstMAC, Header: f.Header, Payload: f.Payload}, nil
}

// Reply returns the response header for req with the given class
func Reply(req frame.Header, class frame.CommandType, status int32) frame.Header {
	h := frame.NewHeader(class.Response(), req.ID)
	h.CommandSeq = req.CommandSeq
	h.DevID = req.DevID
	h.DevType = req.DevType
	h.Status = status
	return h
}

// BuildIwHandlerReply splits data into IW_HANDLER response frames carrying
// the total length in status.
func BuildIwHandlerReply(req frame.Header, data []byte) [][]byte {
	var out [][]byte
	for seq := 0; seq == 0 || seq*frame.MaxPayload < len(data); seq++ {
		start := seq * frame.MaxPayload
		end := min(start+frame.MaxPayload, len(data))
		h := Reply(req, frame.TypeIwHandler, int32(len(data)))
		h.Sequence = uint16(seq)
		out = append(out, FromDevice(h, data[start:end]))
	}
	return out
}

// BuildNotify creates the BOOT_NOTIFY a device sends after reset
func BuildNotify() []byte {
	return BuildFrame(DeviceMAC, Broadcast, frame.NewHeader(frame.TypeBootstrap, frame.BootNotify), nil)
}

// BuildHeartbeat creates a heartbeat frame
func BuildHeartbeat() []byte {
	return FromDevice(frame.NewHeader(frame.TypeAsync.Response(), frame.AsyncHeartBeat), nil)
}

// BuildConsole creates a NUL-terminated console message
func BuildConsole(msg string) []byte {
	return FromDevice(frame.NewHeader(frame.TypeAsync.Response(), frame.AsyncConsole), append([]byte(msg), 0))
}

// BuildWirelessEvent creates a WIRELESS_SEND_EVENT for one interface
func BuildWirelessEvent(devType, devID, event, flags uint16, data []byte) []byte {
	h := frame.NewHeader(frame.TypeAsync.Response(), frame.AsyncWirelessSendEvent)
	h.DevType = devType
	h.DevID = devID
	p := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint16(p[0:2], event)
	binary.LittleEndian.PutUint16(p[2:4], flags)
	return FromDevice(h, append(p, data...))
}

// BuildDaemonSignal creates a SEND_DAEMON_SIGNAL for pid
func BuildDaemonSignal(pid int32, signal uint32) []byte {
	h := frame.NewHeader(frame.TypeAsync.Response(), frame.AsyncSendDaemonSignal)
	h.Status = pid
	p := make([]byte, 4)
	binary.LittleEndian.PutUint32(p, signal)
	return FromDevice(h, p)
}

// BuildRewriteChunk creates one WSC or EEPROM rewrite chunk
func BuildRewriteChunk(id, sequence uint16, data []byte) []byte {
	h := frame.NewHeader(frame.TypeAsync.Response(), id)
	h.Sequence = sequence
	return FromDevice(h, data)
}
