package mcast

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"
)

// Publisher multicasts MSG datagrams to the group and, in bidirectional
// mode, drains unicast PNG replies from subscribers and acknowledges each
// with an ACK sent back to the reply's source address.
type Publisher struct {
	Cfg Config
	Log *log.Logger

	// MsgN is the number of messages published.
	MsgN uint32
	// AckN is the number of PNG replies acknowledged.
	AckN uint32

	stop atomic.Bool
}

// NewPublisher returns an unstarted publisher; zero config fields take the
// package defaults. Enable Loopback when a co-located subscriber should
// hear the group traffic.
func NewPublisher(cfg Config) *Publisher {
	cfg.fill()
	return &Publisher{Cfg: cfg, Log: log.Default()}
}

// Stop requests loop exit at the next iteration boundary.
func (p *Publisher) Stop() { p.stop.Store(true) }

// Run executes the publish loop until Stop or the configured cycle count.
func (p *Publisher) Run() error {
	dest, err := p.Cfg.groupAddr()
	if err != nil {
		return err
	}
	conn, err := openSocket(&p.Cfg, p.Cfg.Bind)
	if err != nil {
		return err
	}
	defer conn.Close()

	pid := os.Getpid()
	cycles := 0
	for !p.stop.Load() {
		if p.Cfg.Cycles >= 0 && cycles >= p.Cfg.Cycles {
			break
		}
		cycles++

		body := fmt.Sprintf("MSG mid[%3d]", p.MsgN)
		var wire []byte
		if p.Cfg.LCM {
			wire = WrapLCM(p.MsgN, LCMChannel, append([]byte(fmt.Sprintf("mid[%3d]", p.MsgN)), 0))
		} else {
			wire = append([]byte(body), 0)
		}
		p.MsgN++

		if _, err := conn.WriteToUDP(wire, dest); err != nil {
			p.Log.Printf("PUB - mtx err [%v]", err)
		} else {
			p.Log.Printf("PUB - mtx msg[%s] len[%d] dest[%s]", body, len(wire), dest)
		}

		if p.Cfg.Bidir {
			p.drainReplies(conn, pid)
		}
		time.Sleep(p.Cfg.Delay)
	}
	return nil
}

// drainReplies answers every pending PNG with an ACK, without blocking.
func (p *Publisher) drainReplies(conn udpConn, pid int) {
	buf := make([]byte, MsgBufSize)
	for {
		_ = conn.SetReadDeadline(time.Now())
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil || n <= 0 {
			return
		}
		msg := string(buf[:n])
		p.Log.Printf("PUB - urx msg[%s] len[%d] src[%s]", trimNul(msg), n, src)

		mid := scanKV(msg, "mid")
		cid := scanKV(msg, "cid")
		ack := fmt.Sprintf("ACK mid[%d] cid[%d] pid[%d]", mid, cid, pid)
		if _, err := conn.WriteToUDP(append([]byte(ack), 0), src); err != nil {
			p.Log.Printf("PUB - utx err [%v]", err)
			continue
		}
		p.AckN++
		p.Log.Printf("PUB - utx msg[%s] dest[%s]", ack, src)
	}
}

func trimNul(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return s[:i]
		}
	}
	return s
}
