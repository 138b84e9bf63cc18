package mcast

import (
	"bytes"
	"testing"
)

func TestLCMRoundTrip(t *testing.T) {
	payload := []byte("mid[ 42]\x00")
	wire := WrapLCM(7, LCMChannel, payload)

	if !bytes.HasPrefix(wire, []byte(LCMMagic)) {
		t.Fatal("magic missing")
	}
	seq, channel, got, err := UnwrapLCM(wire)
	if err != nil {
		t.Fatal(err)
	}
	if seq != 7 || channel != LCMChannel {
		t.Errorf("seq %d channel %q", seq, channel)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload %q", got)
	}
}

func TestUnwrapLCMRejects(t *testing.T) {
	if _, _, _, err := UnwrapLCM([]byte("XX")); err == nil {
		t.Error("short buffer accepted")
	}
	if _, _, _, err := UnwrapLCM([]byte("BAD!....junk")); err == nil {
		t.Error("bad magic accepted")
	}
	// truncated payload length
	wire := WrapLCM(1, "MSG", []byte("abc"))
	if _, _, _, err := UnwrapLCM(wire[:len(wire)-2]); err == nil {
		t.Error("truncated payload accepted")
	}
}

func TestScanKV(t *testing.T) {
	msg := "PNG mid[42] cid[12345]"
	if got := scanKV(msg, "mid"); got != 42 {
		t.Errorf("mid %d", got)
	}
	if got := scanKV(msg, "cid"); got != 12345 {
		t.Errorf("cid %d", got)
	}
	if got := scanKV(msg, "pid"); got != -1 {
		t.Errorf("pid %d", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.fill()
	if cfg.Group != DefaultGroup || cfg.Port != DefaultPort || cfg.TTL != DefaultTTL {
		t.Errorf("cfg %+v", cfg)
	}
	if _, err := cfg.groupAddr(); err != nil {
		t.Error(err)
	}
	cfg.Group = "10.0.0.1" // not multicast
	if _, err := cfg.groupAddr(); err == nil {
		t.Error("unicast group accepted")
	}
}

func TestTrimNul(t *testing.T) {
	if trimNul("abc\x00def") != "abc" {
		t.Error("nul not trimmed")
	}
	if trimNul("abc") != "abc" {
		t.Error("plain string altered")
	}
}
