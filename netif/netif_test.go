package netif

import (
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/sixy6e/go-mbtrn/sock"
)

func testPeer(id int) *sock.Connection {
	c := sock.NewConnection()
	c.Addr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: id}
	c.Addr2Str()
	c.HbTime = dtime()
	return c
}

func TestHeartbeatExpiry(t *testing.T) {
	p := New("hbt", "localhost", 0, sock.TCP, ModeReqRes, 0.05)
	p.Read = func(p *Port, peer *sock.Connection) ([]byte, error) { return nil, nil }
	p.Handle = func(p *Port, peer *sock.Connection, msg []byte) (int, error) { return 0, nil }

	p.List.Add(testPeer(5001))
	p.ReqRes()
	if p.Connections() != 1 {
		t.Fatal("live peer evicted early")
	}

	time.Sleep(60 * time.Millisecond)
	p.ReqRes()
	if p.Connections() != 0 {
		t.Fatal("expired peer not evicted")
	}
	if p.Stats.CliDisn != 1 {
		t.Errorf("cli_dis %d", p.Stats.CliDisn)
	}
}

func TestHeartbeatDisabled(t *testing.T) {
	p := New("hbt0", "localhost", 0, sock.TCP, ModeReqRes, 0)
	p.Read = func(p *Port, peer *sock.Connection) ([]byte, error) { return nil, nil }
	p.Handle = func(p *Port, peer *sock.Connection, msg []byte) (int, error) { return 0, nil }

	peer := testPeer(5002)
	peer.HbTime = 0 // decades stale
	p.List.Add(peer)
	p.ReqRes()
	if p.Connections() != 1 {
		t.Fatal("peer evicted with expiry disabled")
	}
}

func TestReadRefreshesHeartbeat(t *testing.T) {
	p := New("hbr", "localhost", 0, sock.TCP, ModeReqRes, 10)
	p.Read = func(p *Port, peer *sock.Connection) ([]byte, error) { return []byte("x"), nil }
	p.Handle = func(p *Port, peer *sock.Connection, msg []byte) (int, error) { return len(msg), nil }

	peer := testPeer(5003)
	peer.HbTime = 1.0
	p.List.Add(peer)
	p.ReqRes()
	if peer.HbTime == 1.0 {
		t.Error("heartbeat not refreshed by traffic")
	}
}

func TestEpipeEviction(t *testing.T) {
	p := New("pipe", "localhost", 0, sock.TCP, ModeReqRes, 0)
	p.Read = func(p *Port, peer *sock.Connection) ([]byte, error) { return []byte("x"), nil }
	p.Handle = func(p *Port, peer *sock.Connection, msg []byte) (int, error) {
		return 0, syscall.EPIPE
	}

	p.List.Add(testPeer(5004))
	p.ReqRes()
	if p.Connections() != 0 {
		t.Fatal("peer not evicted on EPIPE")
	}
}

func TestHandleErrorKeepsPeer(t *testing.T) {
	p := New("herr", "localhost", 0, sock.TCP, ModeReqRes, 0)
	p.Read = func(p *Port, peer *sock.Connection) ([]byte, error) { return []byte("x"), nil }
	p.Handle = func(p *Port, peer *sock.Connection, msg []byte) (int, error) {
		return 0, syscall.EPROTO
	}

	p.List.Add(testPeer(5005))
	p.ReqRes()
	if p.Connections() != 1 {
		t.Fatal("peer evicted on non-pipe error")
	}
	if p.Stats.EProtoHnd != 1 {
		t.Errorf("eproto_hnd %d", p.Stats.EProtoHnd)
	}
}

func TestPubOrderAndCount(t *testing.T) {
	p := New("pub", "localhost", 0, sock.UDP, ModePub, 0)
	var order []int
	p.Publish = func(p *Port, peer *sock.Connection, data []byte) (int, error) {
		order = append(order, peer.ID)
		return len(data), nil
	}

	for _, id := range []int{6001, 6002, 6003} {
		p.List.Add(testPeer(id))
	}
	if err := p.Pub([]byte("record")); err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 {
		t.Fatalf("publish calls %d", len(order))
	}
	for i, id := range []int{6001, 6002, 6003} {
		if order[i] != id {
			t.Errorf("order[%d] = %d, want %d", i, order[i], id)
		}
	}
	if p.Stats.PubN != 3 || p.Stats.PubBytes != 18 {
		t.Errorf("pub stats %d/%d", p.Stats.PubN, p.Stats.PubBytes)
	}
}

func TestPubSkipsEvicted(t *testing.T) {
	p := New("pube", "localhost", 0, sock.UDP, ModePub, 0.05)
	var calls int
	p.Publish = func(p *Port, peer *sock.Connection, data []byte) (int, error) {
		calls++
		return len(data), nil
	}

	peer := testPeer(6004)
	p.List.Add(peer)
	time.Sleep(60 * time.Millisecond)

	// expired: this pass publishes once more, then evicts
	_ = p.Pub([]byte("x"))
	if p.Connections() != 0 {
		t.Fatal("expired subscriber not evicted")
	}
	calls = 0
	_ = p.Pub([]byte("x"))
	if calls != 0 {
		t.Error("evicted subscriber still published to")
	}
}

func TestStopFlag(t *testing.T) {
	p := New("stop", "localhost", 0, sock.TCP, ModeReqRes, 0)
	if p.Stopped() {
		t.Fatal("new port stopped")
	}
	p.Stop("test")
	if !p.Stopped() {
		t.Fatal("stop flag not set")
	}
}
