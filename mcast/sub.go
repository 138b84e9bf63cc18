package mcast

import (
	"fmt"
	"log"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// udpConn is the slice of *net.UDPConn the loops use.
type udpConn interface {
	SetReadDeadline(t time.Time) error
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
}

// Subscriber binds the group port, joins the group and consumes MSG
// datagrams. In bidirectional mode each MSG is answered with a unicast
// PNG to the publisher, and the publisher's ACK is awaited.
type Subscriber struct {
	Cfg Config
	Log *log.Logger

	// MsgN counts group messages received; AckN counts ACKs observed.
	MsgN uint32
	AckN uint32

	stop atomic.Bool
}

// NewSubscriber returns an unstarted subscriber; zero config fields take
// the package defaults.
func NewSubscriber(cfg Config) *Subscriber {
	cfg.fill()
	return &Subscriber{Cfg: cfg, Log: log.Default()}
}

// Stop requests loop exit at the next iteration boundary.
func (s *Subscriber) Stop() { s.stop.Store(true) }

// Run executes the subscribe loop until Stop or the configured cycle
// count.
func (s *Subscriber) Run() error {
	conn, err := openSocket(&s.Cfg, true)
	if err != nil {
		return err
	}
	defer conn.Close()

	pid := os.Getpid()
	buf := make([]byte, MsgBufSize)
	cycles := 0
	for !s.stop.Load() {
		if s.Cfg.Cycles >= 0 && cycles >= s.Cfg.Cycles {
			break
		}
		cycles++

		_ = conn.SetReadDeadline(time.Now().Add(s.Cfg.Delay))
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil || n <= 0 {
			continue
		}

		var body string
		if s.Cfg.LCM {
			seq, channel, payload, uerr := UnwrapLCM(buf[:n])
			if uerr != nil {
				s.Log.Printf("SUB - mrx envelope err [%v]", uerr)
				continue
			}
			body = trimNul(string(payload))
			s.Log.Printf("SUB - mrx chn[%s] seq[%d] msg[%s] src[%s]", channel, seq, body, src)
		} else {
			body = trimNul(string(buf[:n]))
			s.Log.Printf("SUB - mrx msg[%s] len[%d] src[%s]", body, n, src)
		}
		s.MsgN++

		if !s.Cfg.Bidir {
			continue
		}
		mid := scanKV(body, "mid")
		png := fmt.Sprintf("PNG mid[%d] cid[%d]", mid, pid)
		if _, err := conn.WriteToUDP(append([]byte(png), 0), src); err != nil {
			s.Log.Printf("SUB - utx err [%v]", err)
			continue
		}
		s.Log.Printf("SUB - utx msg[%s] dest[%s]", png, src)

		// collect the publisher's ACK
		_ = conn.SetReadDeadline(time.Now().Add(s.Cfg.Delay))
		n, src, err = conn.ReadFromUDP(buf)
		if err == nil && n > 0 {
			ack := trimNul(string(buf[:n]))
			s.AckN++
			s.Log.Printf("SUB - urx msg[%s] src[%s]", ack, src)
		}
	}
	return nil
}
