package trnif

import (
	"net"
	"testing"
	"time"

	"github.com/sixy6e/go-mbtrn/netif"
)

// serveInBackground runs the port's service cycle until the returned stop
// func is called.
func serveInBackground(p *netif.Port) func() {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			p.UpdateConnections()
			p.ReqRes()
			time.Sleep(5 * time.Millisecond)
		}
	}()
	return func() { close(done) }
}

func portOf(t *testing.T, p *netif.Port) int {
	t.Helper()
	addr, ok := p.Socket.LocalAddr().(*net.TCPAddr)
	if !ok {
		t.Fatal("not a TCP port")
	}
	return addr.Port
}

func TestCTClientPing(t *testing.T) {
	p, _ := startPort(t, NewCTReader(CTReaderConfig{}), HandleCT, &fakeTRN{})
	stop := serveInBackground(p)
	defer stop()

	cli, err := DialCT("127.0.0.1", portOf(t, p))
	if err != nil {
		t.Fatal(err)
	}
	defer cli.Close()

	if err := cli.Ping(); err != nil {
		t.Fatal(err)
	}
}

func TestCTClientStatusQueries(t *testing.T) {
	trn := &fakeTRN{initialized: true}
	p, _ := startPort(t, NewCTReader(CTReaderConfig{}), HandleCT, trn)
	stop := serveInBackground(p)
	defer stop()

	cli, err := DialCT("127.0.0.1", portOf(t, p))
	if err != nil {
		t.Fatal(err)
	}
	defer cli.Close()

	reply, err := cli.Transact(NewTypeCT(MsgIsInit, 0))
	if err != nil {
		t.Fatal(err)
	}
	if reply.MsgType != MsgAck || reply.Parameter != 1 {
		t.Errorf("reply %c param %d", reply.MsgType, reply.Parameter)
	}

	reply, err = cli.Transact(NewTypeCT(MsgNReinits, 0))
	if err != nil {
		t.Fatal(err)
	}
	if reply.Parameter != 2 {
		t.Errorf("n_reinits %d", reply.Parameter)
	}
}

func TestTRNMsgClientPing(t *testing.T) {
	p, _ := startPort(t, ReadTRNMsg, HandleTRNMsg, &fakeTRN{})
	stop := serveInBackground(p)
	defer stop()

	cli, err := DialTRNMsg("127.0.0.1", portOf(t, p))
	if err != nil {
		t.Fatal(err)
	}
	defer cli.Close()

	if err := cli.Ping(); err != nil {
		t.Fatal(err)
	}
}

func TestTRNMsgClientMeas(t *testing.T) {
	trn := &fakeTRN{}
	p, _ := startPort(t, ReadTRNMsg, HandleTRNMsg, trn)
	stop := serveInBackground(p)
	defer stop()

	cli, err := DialTRNMsg("127.0.0.1", portOf(t, p))
	if err != nil {
		t.Fatal(err)
	}
	defer cli.Close()

	meas := &Meas{
		Time:       9.5,
		PingNumber: 11,
		Ranges:     []float64{40},
		CrossTrack: []float64{0},
		AlongTrack: []float64{0},
		Altitudes:  []float64{39},
	}
	msg, err := NewMeasMsg(IDMeas, 2, meas)
	if err != nil {
		t.Fatal(err)
	}
	reply, err := cli.Transact(msg)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Hdr.MsgID != IDMeas {
		t.Errorf("reply id %d", reply.Hdr.MsgID)
	}
	if trn.measCalls != 1 || trn.lastParam != 2 {
		t.Errorf("meas calls %d param %d", trn.measCalls, trn.lastParam)
	}
}
