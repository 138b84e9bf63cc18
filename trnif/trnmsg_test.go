package trnif

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sixy6e/go-mbtrn/byteutil"
)

func TestTRNMsgRoundTrip(t *testing.T) {
	msg := NewTypeMsg(IDPing, 0x1234)
	wire := msg.Serialize()
	if len(wire) != HdrLen+4 {
		t.Fatalf("wire len %d", len(wire))
	}
	if !bytes.Equal(wire[:SyncLen], Sync[:]) {
		t.Error("sync pattern missing")
	}

	out, err := DeserializeTRNMsg(wire)
	if err != nil {
		t.Fatal(err)
	}
	if out.Hdr.MsgID != IDPing || out.Hdr.DataLen != 4 {
		t.Errorf("header %+v", out.Hdr)
	}
	if out.Hdr.Checksum != byteutil.Checksum(out.Data) {
		t.Error("checksum field mismatch")
	}
}

func TestTRNMsgChecksumError(t *testing.T) {
	wire := NewTypeMsg(IDPing, 0x1234).Serialize()
	wire[HdrLen] ^= 0xFF

	_, err := DeserializeTRNMsg(wire)
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("got %v", err)
	}
}

func TestMeasMsgRoundTrip(t *testing.T) {
	meas := &Meas{
		Time:       12345.678,
		DataType:   2,
		X:          100, Y: 200, Z: 50,
		PingNumber: 99,
		Ranges:     []float64{10, 11, 12},
		CrossTrack: []float64{-1, 0, 1},
		AlongTrack: []float64{0.5, 0.6, 0.7},
		Altitudes:  []float64{48, 49, 50},
	}
	msg, err := NewMeasMsg(IDMeas, 7, meas)
	if err != nil {
		t.Fatal(err)
	}
	out, err := DeserializeTRNMsg(msg.Serialize())
	if err != nil {
		t.Fatal(err)
	}

	parameter, got, err := DecodeMeasPayload(out.Data)
	if err != nil {
		t.Fatal(err)
	}
	if parameter != 7 {
		t.Errorf("parameter %d", parameter)
	}
	if got.Time != meas.Time || got.PingNumber != meas.PingNumber || got.NumMeas() != 3 {
		t.Errorf("meas %+v", got)
	}
	for i := range meas.Ranges {
		if got.Ranges[i] != meas.Ranges[i] || got.CrossTrack[i] != meas.CrossTrack[i] {
			t.Errorf("sample %d mismatch", i)
		}
	}
}

func TestCommsTRoundTrip(t *testing.T) {
	ct := &CommsT{
		MsgType:   MsgMeas,
		Parameter: 3,
		VDR:       0.01,
		Pose: Pose{
			Time: 1.5, X: 10, Y: 20, Z: 30,
			Phi: 0.1, Theta: 0.2, Psi: 0.3,
			DvlValid: true, BottomLock: true,
		},
		Meas: Meas{
			Time:       2.5,
			DataType:   1,
			PingNumber: 42,
			Ranges:     []float64{50, 51},
			CrossTrack: []float64{-5, 5},
			AlongTrack: []float64{0, 1},
			Altitudes:  []float64{49, 48},
		},
	}
	blob, err := ct.Serialize(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(blob) != CTMsgSize {
		t.Fatalf("blob len %d", len(blob))
	}
	if blob[0] != MsgMeas {
		t.Errorf("type byte %c", blob[0])
	}

	out, err := UnserializeCT(blob)
	if err != nil {
		t.Fatal(err)
	}
	if out.MsgType != MsgMeas || out.Parameter != 3 || out.VDR != 0.01 {
		t.Errorf("scalars %+v", out)
	}
	if out.Pose != ct.Pose {
		t.Errorf("pose %+v", out.Pose)
	}
	if out.Meas.NumMeas() != 2 || out.Meas.Ranges[1] != 51 {
		t.Errorf("meas %+v", out.Meas)
	}
}

func TestCommsTShortBlob(t *testing.T) {
	if _, err := UnserializeCT([]byte{MsgPing}); err == nil {
		t.Error("short blob accepted")
	}
}

func TestTextTokens(t *testing.T) {
	if got := trimText(append([]byte("PING"), 0, 0, 0)); got != "PING" {
		t.Errorf("got %q", got)
	}
	if got := trimText([]byte("  CON \x00junk")); got != "CON" {
		t.Errorf("got %q", got)
	}
	reply := textReply(TextACK)
	if !bytes.Equal(reply, []byte{'A', 'C', 'K', 0}) {
		t.Errorf("got %v", reply)
	}
}
