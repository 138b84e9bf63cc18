// Package sock wraps the TCP/UDP socket lifecycle used by the network
// interface: address resolution, bind/listen/accept, blocking and
// non-blocking I/O, bounded-deadline reads and peer connection records.
//
// Non-blocking mode is mapped onto read deadlines: a socket in non-blocking
// mode fails immediately with a deadline error when no data is pending, and
// IsNoData reports that condition the way EAGAIN does for raw sockets.
package sock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"
)

// Kind selects the transport for a Socket.
type Kind int

const (
	TCP Kind = iota
	UDP
	UDPMcast
)

func (k Kind) String() string {
	switch k {
	case TCP:
		return "tcp"
	case UDP, UDPMcast:
		return "udp"
	}
	return "unknown"
}

// Addr wraps a resolved host:port pair. Service carries the port rendered
// as a decimal string, which doubles as the peer lookup id.
type Addr struct {
	Host    string
	Port    int
	Service string

	TCPAddr *net.TCPAddr
	UDPAddr *net.UDPAddr
}

// ResolveAddr resolves host:port for the given transport kind.
func ResolveAddr(host string, port int, kind Kind) (*Addr, error) {
	a := &Addr{Host: host, Port: port, Service: strconv.Itoa(port)}
	hp := net.JoinHostPort(host, a.Service)
	var err error
	switch kind {
	case TCP:
		a.TCPAddr, err = net.ResolveTCPAddr("tcp", hp)
	case UDP, UDPMcast:
		a.UDPAddr, err = net.ResolveUDPAddr("udp", hp)
	default:
		err = ErrBadKind
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Socket is one endpoint: a bound/listening server socket, a connected
// client socket, or a wrapped accepted connection.
type Socket struct {
	Kind Kind
	Addr *Addr

	// LastErr records the error kind of the most recent failed bounded
	// read, the way a module errno would.
	LastErr error

	blocking bool

	conn net.Conn        // TCP stream or connected UDP
	pc   net.PacketConn  // bound UDP
	ln   *net.TCPListener
}

// New resolves host:port and returns an unopened socket of the requested
// kind. The OS-level socket is created by Bind, Listen or Connect.
func New(host string, port int, kind Kind) (*Socket, error) {
	addr, err := ResolveAddr(host, port, kind)
	if err != nil {
		return nil, err
	}
	return &Socket{Kind: kind, Addr: addr, blocking: true}, nil
}

// WrapConn adopts an externally-obtained connection (e.g. from Accept).
func WrapConn(conn net.Conn, kind Kind) *Socket {
	return &Socket{Kind: kind, conn: conn, blocking: true}
}

// SetBlocking switches between blocking reads and immediate-return reads.
func (s *Socket) SetBlocking(b bool) {
	s.blocking = b
}

// Blocking reports the current mode.
func (s *Socket) Blocking() bool { return s.blocking }

// Bind binds a UDP socket to its address. Multicast sockets are bound with
// SO_REUSEADDR (and SO_REUSEPORT where the platform defines it) so several
// subscribers can share the group port. TCP sockets bind in Listen.
func (s *Socket) Bind() error {
	switch s.Kind {
	case UDP:
		pc, err := net.ListenUDP("udp", s.Addr.UDPAddr)
		if err != nil {
			return err
		}
		s.pc = pc
		return nil
	case UDPMcast:
		lc := net.ListenConfig{Control: reusePort}
		pc, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort("0.0.0.0", s.Addr.Service))
		if err != nil {
			return err
		}
		s.pc = pc
		return nil
	case TCP:
		return nil
	}
	return ErrBadKind
}

// Listen opens the TCP listener. queue is advisory; the OS backlog applies.
func (s *Socket) Listen(queue int) error {
	if s.Kind != TCP {
		return ErrBadKind
	}
	_ = queue
	ln, err := net.ListenTCP("tcp", s.Addr.TCPAddr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Accept returns the next pending connection wrapped as a Socket, plus the
// peer address. In non-blocking mode it returns immediately when nothing is
// pending, with an error that IsNoData reports as no data.
func (s *Socket) Accept() (*Socket, net.Addr, error) {
	if s.ln == nil {
		return nil, nil, ErrNotListening
	}
	if !s.blocking {
		if err := s.ln.SetDeadline(time.Now()); err != nil {
			return nil, nil, err
		}
	} else {
		if err := s.ln.SetDeadline(time.Time{}); err != nil {
			return nil, nil, err
		}
	}
	conn, err := s.ln.AcceptTCP()
	if err != nil {
		return nil, nil, err
	}
	return WrapConn(conn, TCP), conn.RemoteAddr(), nil
}

// Connect dials the socket's address.
func (s *Socket) Connect() error {
	var err error
	switch s.Kind {
	case TCP:
		s.conn, err = net.DialTCP("tcp", nil, s.Addr.TCPAddr)
	case UDP, UDPMcast:
		s.conn, err = net.DialUDP("udp", nil, s.Addr.UDPAddr)
	default:
		err = ErrBadKind
	}
	return err
}

func (s *Socket) readDeadline() time.Time {
	if s.blocking {
		return time.Time{}
	}
	return time.Now()
}

// Send writes buf on a connected socket.
func (s *Socket) Send(buf []byte) (int, error) {
	if s.conn == nil {
		return 0, ErrNotConnected
	}
	return s.conn.Write(buf)
}

// SendTo writes buf to addr on a bound packet socket.
func (s *Socket) SendTo(addr net.Addr, buf []byte) (int, error) {
	if s.pc == nil {
		if s.conn != nil {
			return s.conn.Write(buf)
		}
		return 0, ErrNotConnected
	}
	return s.pc.WriteTo(buf, addr)
}

// Recv reads up to len(buf) bytes from a connected socket, honoring the
// blocking mode.
func (s *Socket) Recv(buf []byte) (int, error) {
	if s.conn == nil {
		return 0, ErrNotConnected
	}
	if err := s.conn.SetReadDeadline(s.readDeadline()); err != nil {
		return 0, err
	}
	return s.conn.Read(buf)
}

// RecvFrom reads one datagram from a bound packet socket, honoring the
// blocking mode, and returns the sender address.
func (s *Socket) RecvFrom(buf []byte) (int, net.Addr, error) {
	if s.pc == nil {
		return 0, nil, ErrNotConnected
	}
	if err := s.pc.SetReadDeadline(s.readDeadline()); err != nil {
		return 0, nil, err
	}
	return s.pc.ReadFrom(buf)
}

// ReadTimeout reads from a connected socket until buf is full, the timeout
// elapses, or a terminal socket error occurs. It returns the bytes read so
// far along with the classifying error; LastErr records the same kind.
func (s *Socket) ReadTimeout(buf []byte, timeout time.Duration) (int, error) {
	s.LastErr = nil
	if s.conn == nil {
		return 0, ErrNotConnected
	}
	deadline := time.Now().Add(timeout)
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		s.LastErr = ErrSocket
		return 0, s.LastErr
	}
	total := 0
	for total < len(buf) {
		n, err := s.conn.Read(buf[total:])
		total += n
		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
			s.LastErr = ErrTimeout
		case errors.Is(err, io.EOF):
			s.LastErr = io.EOF
		default:
			s.LastErr = ErrSocket
		}
		return total, s.LastErr
	}
	return total, nil
}

// LocalAddr returns the bound/connected local address, or nil.
func (s *Socket) LocalAddr() net.Addr {
	switch {
	case s.conn != nil:
		return s.conn.LocalAddr()
	case s.pc != nil:
		return s.pc.LocalAddr()
	case s.ln != nil:
		return s.ln.Addr()
	}
	return nil
}

// Conn exposes the underlying stream connection (TCP peers).
func (s *Socket) Conn() net.Conn { return s.conn }

// PacketConn exposes the underlying packet connection (UDP ports).
func (s *Socket) PacketConn() net.PacketConn { return s.pc }

// Close releases whichever endpoints are open.
func (s *Socket) Close() error {
	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	if s.pc != nil {
		if e := s.pc.Close(); err == nil {
			err = e
		}
		s.pc = nil
	}
	if s.ln != nil {
		if e := s.ln.Close(); err == nil {
			err = e
		}
		s.ln = nil
	}
	return err
}

// String renders the socket address for diagnostics.
func (s *Socket) String() string {
	if s.Addr != nil {
		return fmt.Sprintf("%s:%d/%s", s.Addr.Host, s.Addr.Port, s.Kind)
	}
	if s.conn != nil {
		return s.conn.RemoteAddr().String()
	}
	return "?"
}

func reusePort(network, address string, c syscall.RawConn) error {
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
