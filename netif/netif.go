// Package netif implements the per-port network interface: one bound
// socket servicing many TCP subscribers or UDP peers, with peer liveness
// tracked by heartbeats, message dispatch through user-supplied callbacks,
// and record fanout to all live subscribers.
//
// A Port is single-threaded: one goroutine runs its main loop, and the
// peer list is touched only from that loop. A peer admitted during the
// connection update becomes eligible for service on the next iteration;
// a peer evicted mid-iteration is not serviced again in that iteration.
package netif

import (
	"sync/atomic"
	"time"

	"github.com/sixy6e/go-mbtrn/seslog"
	"github.com/sixy6e/go-mbtrn/sock"
)

// Mode selects how a port interacts with its peers.
type Mode int

const (
	// ModeReqRes services client-initiated request/response traffic.
	ModeReqRes Mode = iota
	// ModePub broadcasts records to subscribed peers.
	ModePub
)

const (
	// UDPBufLen bounds one discovery-path datagram.
	UDPBufLen = 4096

	// QueueDefault is the TCP listen backlog hint.
	QueueDefault = 16

	// LogName and LogExt name the port session log.
	LogName = "netif"
	LogExt  = ".log"
)

// ReadFn receives one message from a peer. It returns the message bytes,
// or an empty slice / error when nothing was read this cycle.
type ReadFn func(p *Port, peer *sock.Connection) ([]byte, error)

// HandleFn processes one decoded message and sends any reply. It returns
// the reply bytes sent; an error satisfying sock.IsPipe evicts the peer.
type HandleFn func(p *Port, peer *sock.Connection, msg []byte) (int, error)

// PubFn delivers one record to one peer, returning the bytes sent.
type PubFn func(p *Port, peer *sock.Connection, data []byte) (int, error)

// Port is one network interface instance bound to a single socket.
type Port struct {
	Name  string
	Host  string
	Port  int
	CType sock.Kind
	Mode  Mode

	// HbTimeout is the peer liveness limit in seconds; zero or negative
	// disables heartbeat expiry.
	HbTimeout float64

	Read    ReadFn
	Handle  HandleFn
	Publish PubFn

	// Resource is the opaque object handed to protocol handlers (the TRN
	// filter for the request/response ports).
	Resource interface{}

	Socket  *sock.Socket
	List    *sock.List
	Stats   *Profile
	Log     *seslog.Log
	LogDir  string
	Verbose int

	peer *sock.Connection // staging record for the next admitted peer
	stop atomic.Bool
}

// New returns an unstarted port.
func New(name, host string, port int, ctype sock.Kind, mode Mode, hbTimeout float64) *Port {
	return &Port{
		Name:      name,
		Host:      host,
		Port:      port,
		CType:     ctype,
		Mode:      mode,
		HbTimeout: hbTimeout,
		List:      sock.NewList(),
		Stats:     newProfile(name),
		LogDir:    seslog.DefaultDir,
		peer:      sock.NewConnection(),
	}
}

func dtime() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Connections returns the current peer count.
func (p *Port) Connections() int { return p.List.Len() }

// Stopped reports whether Stop has been requested.
func (p *Port) Stopped() bool { return p.stop.Load() }

// Connect binds the port socket (and listens, for TCP).
func (p *Port) Connect() error {
	s, err := sock.New(p.Host, p.Port, p.CType)
	if err != nil {
		return err
	}
	s.SetBlocking(false)
	if err := s.Bind(); err != nil {
		return err
	}
	if p.CType == sock.TCP {
		if err := s.Listen(QueueDefault); err != nil {
			return err
		}
	}
	p.Socket = s
	return nil
}

// UpdateConnections admits newly-arrived peers: accepted TCP connections,
// or UDP senders discovered via recvfrom.
func (p *Port) UpdateConnections() {
	switch p.CType {
	case sock.TCP:
		p.tcpUpdateConnections()
	case sock.UDP:
		p.udpUpdateConnections()
	}
}

func (p *Port) tcpUpdateConnections() {
	p.Socket.SetBlocking(false)
	cli, raddr, err := p.Socket.Accept()
	if err != nil {
		// nothing pending is the common case
		return
	}
	peer := p.peer
	peer.Sock = cli
	peer.Addr = raddr
	peer.Addr2Str()
	peer.HbTime = dtime()
	p.List.Add(peer)
	p.peer = sock.NewConnection()

	p.Log.Tprintf("[TCPCON.%s]:ADD_CLI - id[%d/%s:%s] idx[%d]",
		p.Name, peer.ID, peer.CHost, peer.Service, p.List.Len()-1)
	p.Stats.IncCliConn()
	p.Stats.SetClients(p.List.Len())
}

func (p *Port) udpUpdateConnections() {
	buf := make([]byte, UDPBufLen)
	n, raddr, err := p.Socket.RecvFrom(buf)
	if err != nil || n <= 0 {
		if err != nil && !sock.IsNoData(err) && p.Verbose > 1 {
			p.Log.Tprintf("[UDPCON.%s]:ERR - recvfrom [%v]", p.Name, err)
		}
		return
	}

	p.peer.Addr = raddr
	svc := p.peer.Addr2Str()
	connectTime := dtime()

	pcon := p.List.LookupID(svc)
	if pcon != nil {
		// known sender: refresh liveness
		pcon.HbTime = connectTime
	} else {
		pcon = p.peer
		pcon.HbTime = connectTime
		p.List.Add(pcon)
		p.peer = sock.NewConnection()

		p.Log.Tprintf("[UDPCON.%s]:ADD_SUB - id[%d/%s:%s] n[%d]",
			p.Name, pcon.ID, pcon.CHost, pcon.Service, p.List.Len())
		p.Stats.IncCliConn()
		p.Stats.SetClients(p.List.Len())
	}

	// deliver the datagram (the initial connect message, typically)
	if p.Handle != nil {
		if _, err := p.Handle(p, pcon, buf[:n]); err != nil && p.Verbose > 1 {
			p.Log.Tprintf("[UDPCON.%s]:ERR - handle [%v]", p.Name, err)
		}
	}
	p.Stats.AddRx(n)
}

// checkHbeat evicts the peer when its heartbeat has expired. Returns true
// when the peer was removed.
func (p *Port) checkHbeat(peer *sock.Connection, idx int) bool {
	if p.HbTimeout <= 0 {
		return false
	}
	if dtime()-peer.HbTime <= p.HbTimeout {
		return false
	}
	p.Log.Tprintf("[CHKHB.%s]:DEL_CLI - expired id[%d/%s:%s] - removed",
		p.Name, idx, peer.CHost, peer.Service)
	p.List.Remove(peer)
	p.Stats.IncCliDisn()
	p.Stats.SetClients(p.List.Len())
	return true
}

// ReqRes runs one request/response pass: every live peer gets at most one
// read→handle round, in insertion order.
func (p *Port) ReqRes() {
	if p.Read == nil || p.Handle == nil {
		return
	}
	for idx, peer := range p.List.Items() {
		if peer.Sock != nil {
			peer.Sock.SetBlocking(false)
		}

		msg, rerr := p.Read(p, peer)
		iobytes := len(msg)

		if iobytes > 0 {
			p.Stats.AddRx(iobytes)
			if p.HbTimeout > 0 {
				peer.HbTime = dtime()
			}
		} else if rerr != nil && !sock.IsNoData(rerr) && p.Verbose > 2 {
			p.Log.Tprintf("[SVCCLI.%s]:ERR - read id[%d/%s:%s] [%v]",
				p.Name, idx, peer.CHost, peer.Service, rerr)
		}

		if p.checkHbeat(peer, idx) {
			continue
		}

		if iobytes > 0 {
			sent, herr := p.Handle(p, peer, msg)
			if sent <= 0 || herr != nil {
				if sock.IsPipe(herr) {
					p.Log.Tprintf("[SVCCLI.%s]:DEL_CLI - send err (EPIPE) id[%d/%s:%s]",
						p.Name, idx, peer.CHost, peer.Service)
					p.List.Remove(peer)
					p.Stats.IncCliDisn()
					p.Stats.SetClients(p.List.Len())
					continue
				}
				p.Stats.IncEProtoHnd()
			} else {
				p.Stats.AddTx(sent)
			}
		}
	}
}

// Pub delivers one record to every live subscriber in insertion order,
// then applies heartbeat expiry to each.
func (p *Port) Pub(data []byte) error {
	if p.Publish == nil || len(data) == 0 {
		return ErrNoPublisher
	}
	for idx, peer := range p.List.Items() {
		if n, err := p.Publish(p, peer, data); err == nil && n > 0 {
			p.Stats.AddPub(n)
		} else {
			if p.Verbose > 2 {
				p.Log.Tprintf("[SVCPUB.%s]:ERR - pub id[%d/%s:%s] [%v]",
					p.Name, idx, peer.CHost, peer.Service, err)
			}
			p.Stats.IncEProtoHnd()
		}
		p.checkHbeat(peer, idx)
	}
	return nil
}

// InitLog opens the port session log in dir (or the configured LogDir).
func (p *Port) InitLog(dir string) error {
	if dir != "" {
		p.LogDir = dir
	}
	l, err := seslog.Open(p.LogDir, LogName+"-"+p.Name, LogExt)
	if err != nil {
		return err
	}
	p.Log = l
	return nil
}

// Start opens the log, binds the socket and runs the main loop until Stop.
// delay is the idle sleep between iterations.
func (p *Port) Start(delay time.Duration) error {
	if p.Log == nil {
		if err := p.InitLog(""); err != nil {
			return err
		}
	}
	p.Log.Tprintf("*** netif session start ***")

	if err := p.Connect(); err != nil {
		p.Log.Tprintf("connect failed [%v]", err)
		p.Log.Tprintf("*** netif session end ***")
		return err
	}

	for !p.stop.Load() {
		p.UpdateConnections()
		p.ReqRes()
		p.Stats.IncCycle()
		time.Sleep(delay)
	}

	p.Log.Tprintf("*** netif session end ***")
	return nil
}

// Stop requests loop exit; reason is recorded in the session log.
func (p *Port) Stop(reason string) {
	p.Log.Tprintf("session stop called [%s]", reason)
	p.stop.Store(true)
}

// Close tears down the socket, peers and log.
func (p *Port) Close() error {
	p.List.Clear()
	p.Stats.SetClients(0)
	var err error
	if p.Socket != nil {
		err = p.Socket.Close()
	}
	if cerr := p.Log.Close(); err == nil {
		err = cerr
	}
	return err
}
