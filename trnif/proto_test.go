package trnif

import (
	"net"
	"testing"
	"time"

	"github.com/sixy6e/go-mbtrn/netif"
	"github.com/sixy6e/go-mbtrn/sock"
)

// fakeTRN records handler calls for inspection.
type fakeTRN struct {
	initialized bool
	measCalls   int
	lastParam   int32
	lastMeas    *Meas
}

func (f *fakeTRN) Initialize(ct *CommsT) { f.initialized = true }
func (f *fakeTRN) MeasUpdate(m *Meas, parameter int32) {
	f.measCalls++
	f.lastParam = parameter
	f.lastMeas = m
}
func (f *fakeTRN) MotionUpdate(p *Pose)                  {}
func (f *fakeTRN) EstimatePose(p *Pose, kind PoseType)   {}
func (f *fakeTRN) LastMeasSuccessful() bool              { return true }
func (f *fakeTRN) NumReinits() int32                     { return 2 }
func (f *fakeTRN) FilterType() int32                     { return 1 }
func (f *fakeTRN) FilterState() int32                    { return 1 }
func (f *fakeTRN) OutstandingMeas() bool                 { return false }
func (f *fakeTRN) IsConverged() bool                     { return true }
func (f *fakeTRN) IsInitialized() bool                   { return f.initialized }
func (f *fakeTRN) ReinitFilter(lowInfoTransition bool)   {}
func (f *fakeTRN) SetModifiedWeighting(p int32)          {}
func (f *fakeTRN) SetFilterReinit(enable bool)           {}
func (f *fakeTRN) SetInterpMeasAttitude(enable bool)     {}
func (f *fakeTRN) SetMapInterpMethod(p int32)            {}
func (f *fakeTRN) SetVehicleDriftRate(rate float64)      {}
func (f *fakeTRN) UseHighgradeFilter()                   {}
func (f *fakeTRN) UseLowgradeFilter()                    {}

// startPort binds a req/res TCP port on an ephemeral port and returns it
// along with its dial address.
func startPort(t *testing.T, read netif.ReadFn, handle netif.HandleFn, res interface{}) (*netif.Port, string) {
	t.Helper()
	p := netif.New("test", "127.0.0.1", 0, sock.TCP, netif.ModeReqRes, 0)
	p.Read = read
	p.Handle = handle
	p.Resource = res
	if err := p.Connect(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p, p.Socket.LocalAddr().String()
}

// dialAndAdmit connects a client and services the accept path until the
// port has admitted it.
func dialAndAdmit(t *testing.T, p *netif.Port, addr string) net.Conn {
	t.Helper()
	cli, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cli.Close() })
	for i := 0; i < 100 && p.Connections() == 0; i++ {
		p.UpdateConnections()
		time.Sleep(5 * time.Millisecond)
	}
	if p.Connections() != 1 {
		t.Fatal("client not admitted")
	}
	return cli
}

// service runs the given number of read/handle cycles, sleeping between
// them to give the OS time to deliver the client's bytes.
func service(p *netif.Port, rounds int) {
	for i := 0; i < rounds; i++ {
		p.ReqRes()
		time.Sleep(5 * time.Millisecond)
	}
}

func readReply(t *testing.T, cli net.Conn, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_ = cli.SetReadDeadline(time.Now().Add(3 * time.Second))
	total := 0
	for total < n {
		r, err := cli.Read(buf[total:])
		if err != nil {
			t.Fatalf("reply read after %d/%d bytes: %v", total, n, err)
		}
		total += r
	}
	return buf
}

func TestCommsTPingCycle(t *testing.T) {
	trn := &fakeTRN{}
	p, addr := startPort(t, NewCTReader(CTReaderConfig{}), HandleCT, trn)
	cli := dialAndAdmit(t, p, addr)

	ping, err := NewTypeCT(MsgPing, 0).Serialize(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cli.Write(ping); err != nil {
		t.Fatal(err)
	}

	service(p, 10)

	reply := readReply(t, cli, CTMsgSize)
	ct, err := UnserializeCT(reply)
	if err != nil {
		t.Fatal(err)
	}
	if ct.MsgType != MsgAck {
		t.Errorf("reply type %c", ct.MsgType)
	}
}

func TestCommsTUnknownNack(t *testing.T) {
	p, addr := startPort(t, NewCTReader(CTReaderConfig{}), HandleCT, &fakeTRN{})
	cli := dialAndAdmit(t, p, addr)

	blob, _ := NewTypeCT('z', 0).Serialize(0)
	if _, err := cli.Write(blob); err != nil {
		t.Fatal(err)
	}
	service(p, 10)

	reply := readReply(t, cli, CTMsgSize)
	ct, err := UnserializeCT(reply)
	if err != nil {
		t.Fatal(err)
	}
	if ct.MsgType != MsgNack {
		t.Errorf("reply type %c", ct.MsgType)
	}
	if p.Stats.EProtoHnd == 0 {
		t.Error("unknown type not counted")
	}
}

func TestTRNMsgMeasDispatch(t *testing.T) {
	trn := &fakeTRN{}
	p, addr := startPort(t, ReadTRNMsg, HandleTRNMsg, trn)
	cli := dialAndAdmit(t, p, addr)

	meas := &Meas{
		Time:       100.5,
		DataType:   1,
		PingNumber: 7,
		Ranges:     []float64{50, 51},
		CrossTrack: []float64{-1, 1},
		AlongTrack: []float64{0, 0},
		Altitudes:  []float64{49, 48},
	}
	msg, err := NewMeasMsg(IDMeas, 3, meas)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cli.Write(msg.Serialize()); err != nil {
		t.Fatal(err)
	}

	service(p, 10)

	if trn.measCalls != 1 || trn.lastParam != 3 {
		t.Fatalf("meas update calls %d param %d", trn.measCalls, trn.lastParam)
	}

	hdr := readReply(t, cli, HdrLen)
	reply, err := DeserializeTRNMsg(append(hdr, readReply(t, cli, int(leUint32(hdr[8:])))...))
	if err != nil {
		t.Fatal(err)
	}
	if reply.Hdr.MsgID != IDMeas {
		t.Errorf("reply id %d", reply.Hdr.MsgID)
	}
}

func TestTRNMsgPingResync(t *testing.T) {
	p, addr := startPort(t, ReadTRNMsg, HandleTRNMsg, &fakeTRN{})
	cli := dialAndAdmit(t, p, addr)

	// garbage before a valid frame: the reader must resync on the pattern
	wire := append([]byte{0xFF, 0x01, 'T'}, NewTypeMsg(IDPing, 0x1234).Serialize()...)
	if _, err := cli.Write(wire); err != nil {
		t.Fatal(err)
	}

	service(p, 10)

	hdr := readReply(t, cli, HdrLen)
	reply, err := DeserializeTRNMsg(append(hdr, readReply(t, cli, int(leUint32(hdr[8:])))...))
	if err != nil {
		t.Fatal(err)
	}
	if reply.Hdr.MsgID != IDAck {
		t.Errorf("reply id %d", reply.Hdr.MsgID)
	}
}

func TestTRNMsgChecksumNoDispatch(t *testing.T) {
	trn := &fakeTRN{}
	p, addr := startPort(t, ReadTRNMsg, HandleTRNMsg, trn)
	cli := dialAndAdmit(t, p, addr)

	wire := NewTypeMsg(IDPing, 0x1234).Serialize()
	wire[HdrLen] ^= 0xFF
	if _, err := cli.Write(wire); err != nil {
		t.Fatal(err)
	}

	service(p, 10)

	if p.Stats.EProtoRd == 0 {
		t.Error("checksum error not counted")
	}
	// the whole frame was consumed: a following valid frame still parses
	if _, err := cli.Write(NewTypeMsg(IDPing, 0x5678).Serialize()); err != nil {
		t.Fatal(err)
	}
	service(p, 10)
	hdr := readReply(t, cli, HdrLen)
	reply, err := DeserializeTRNMsg(append(hdr, readReply(t, cli, int(leUint32(hdr[8:])))...))
	if err != nil {
		t.Fatal(err)
	}
	if reply.Hdr.MsgID != IDAck {
		t.Errorf("reply id %d", reply.Hdr.MsgID)
	}
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
