// Package mcast implements the multicast publish/subscribe loops used for
// record fanout discovery: a publisher multicasting MSG datagrams to a
// group, subscribers answering with unicast PNG messages, and the
// publisher acknowledging each with an ACK. Message bodies are ASCII
// `key[value]` tokens, optionally wrapped in an LCM-compatible envelope.
package mcast

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

const (
	DefaultGroup = "239.255.0.16"
	DefaultPort  = 29000
	DefaultTTL   = 1
	DefaultDelay = 2 * time.Second

	// MsgBufSize bounds one datagram.
	MsgBufSize = 512

	// LCMMagic opens an LCM-compatible envelope.
	LCMMagic = "LC02"

	// LCMChannel is the channel name published in envelope mode.
	LCMChannel = "MSG"
)

var ErrGroupAddr = errors.New("Error Invalid Multicast Group Address")
var ErrEnvelope = errors.New("Error Malformed LCM Envelope")

// Config is shared by the publisher and subscriber loops.
type Config struct {
	Group string
	Port  int
	// IfAddr selects the multicast interface address; empty = INADDR_ANY.
	IfAddr string
	TTL    int
	// Loopback delivers our own datagrams locally (off unless set; the mcpub
	// tool turns it on by default).
	Loopback bool
	// Bind binds the publisher socket to the group port as well.
	Bind bool
	// Bidir enables the PNG/ACK unicast exchange.
	Bidir bool
	// LCM wraps messages in the LCM-compatible envelope.
	LCM bool
	// Delay paces publisher iterations and subscriber read deadlines.
	Delay time.Duration
	// Cycles bounds the loop; negative runs until Stop.
	Cycles int
}

func (c *Config) fill() {
	if c.Group == "" {
		c.Group = DefaultGroup
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.Delay == 0 {
		c.Delay = DefaultDelay
	}
}

// groupAddr resolves the group destination.
func (c *Config) groupAddr() (*net.UDPAddr, error) {
	ip := net.ParseIP(c.Group)
	if ip == nil || !ip.IsMulticast() {
		return nil, ErrGroupAddr
	}
	return &net.UDPAddr{IP: ip, Port: c.Port}, nil
}

func ip4bytes(s string) [4]byte {
	var out [4]byte
	if ip := net.ParseIP(s); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			copy(out[:], v4)
		}
	}
	return out
}

// openSocket creates the group socket: bound to the group port (or an
// ephemeral port), SO_REUSEADDR/SO_REUSEPORT set, group membership joined,
// and the loopback/TTL/interface policy applied.
func openSocket(cfg *Config, bindPort bool) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: reuseControl}
	laddr := ":0"
	if bindPort {
		laddr = fmt.Sprintf(":%d", cfg.Port)
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", laddr)
	if err != nil {
		return nil, err
	}
	conn := pc.(*net.UDPConn)

	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, err
	}
	var serr error
	err = raw.Control(func(fd uintptr) {
		loop := 0
		if cfg.Loopback {
			loop = 1
		}
		if serr = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IP, syscall.IP_MULTICAST_LOOP, loop); serr != nil {
			return
		}
		if serr = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IP, syscall.IP_MULTICAST_TTL, cfg.TTL); serr != nil {
			return
		}
		if cfg.IfAddr != "" {
			if serr = syscall.SetsockoptInet4Addr(int(fd), syscall.IPPROTO_IP, syscall.IP_MULTICAST_IF, ip4bytes(cfg.IfAddr)); serr != nil {
				return
			}
		}
		mreq := &syscall.IPMreq{
			Multiaddr: ip4bytes(cfg.Group),
			Interface: ip4bytes(cfg.IfAddr),
		}
		serr = syscall.SetsockoptIPMreq(int(fd), syscall.IPPROTO_IP, syscall.IP_ADD_MEMBERSHIP, mreq)
	})
	if err == nil {
		err = serr
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func reuseControl(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		if serr != nil {
			return
		}
		serr = setReusePort(int(fd))
	})
	if err != nil {
		return err
	}
	return serr
}

// WrapLCM wraps payload in the envelope: magic, sequence, NUL-terminated
// channel name, payload length, payload.
func WrapLCM(seq uint32, channel string, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteString(LCMMagic)
	_ = binary.Write(&b, binary.LittleEndian, seq)
	b.WriteString(channel)
	b.WriteByte(0)
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(payload)))
	b.Write(payload)
	return b.Bytes()
}

// UnwrapLCM parses an envelope, returning sequence, channel and payload.
func UnwrapLCM(msg []byte) (uint32, string, []byte, error) {
	if len(msg) < len(LCMMagic)+4 || string(msg[:4]) != LCMMagic {
		return 0, "", nil, ErrEnvelope
	}
	seq := binary.LittleEndian.Uint32(msg[4:])
	rest := msg[8:]
	nul := bytes.IndexByte(rest, 0)
	if nul < 0 || len(rest) < nul+1+4 {
		return 0, "", nil, ErrEnvelope
	}
	channel := string(rest[:nul])
	rest = rest[nul+1:]
	plen := binary.LittleEndian.Uint32(rest)
	rest = rest[4:]
	if int(plen) > len(rest) {
		return 0, "", nil, ErrEnvelope
	}
	return seq, channel, rest[:plen], nil
}

// scanKV extracts the integer from the first `key[value]` token in msg,
// returning -1 when absent.
func scanKV(msg, key string) int {
	idx := bytes.Index([]byte(msg), []byte(key+"["))
	if idx < 0 {
		return -1
	}
	var v int
	if _, err := fmt.Sscanf(msg[idx:], key+"[%d]", &v); err != nil {
		return -1
	}
	return v
}
