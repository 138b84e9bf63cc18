package mb71

import (
	"bytes"
	"math"
	"testing"

	"github.com/sixy6e/go-mbtrn/mb1"
)

func testSounding(t *testing.T, beams []mb1.Beam) *mb1.Sounding {
	t.Helper()
	s, err := mb1.New(uint32(len(beams)))
	if err != nil {
		t.Fatal(err)
	}
	s.SetTs(1_000_000.0)
	s.SetLat(36.8)
	s.SetLon(-122.0)
	s.SetDepth(100)
	s.SetHdg(0)
	for i, b := range beams {
		s.SetBeam(i, b)
	}
	return s
}

func TestBuildFromMB1(t *testing.T) {
	s := testSounding(t, []mb1.Beam{
		{BeamNum: 0, RhoX: 0, RhoY: 0, RhoZ: 50},
		{BeamNum: 1, RhoX: 10, RhoY: 0, RhoZ: 50},
		{BeamNum: 2, RhoX: 0, RhoY: 10, RhoZ: 60},
		{BeamNum: 3, RhoX: -10, RhoY: -10, RhoZ: 70},
	})
	f, err := BuildFromMB1(s)
	if err != nil {
		t.Fatal(err)
	}

	if f.RecordType() != 0x5635 {
		t.Errorf("recordtype %04X", f.RecordType())
	}
	if f.BeamsBath() != 4 {
		t.Errorf("beams_bath %d", f.BeamsBath())
	}
	if len(f.Bytes()) != 98+7*4 {
		t.Errorf("frame size %d", len(f.Bytes()))
	}
	if f.TimeD() != 1_000_000.0 || f.Latitude() != 36.8 || f.Longitude() != -122.0 {
		t.Error("header fields not copied")
	}

	// depth_scale = 0.001 * max(70/30, 1); distance_scale = 0.001 * max(10/30, 1)
	if math.Abs(float64(f.DepthScale())-0.0023333) > 1e-6 {
		t.Errorf("depth_scale %f", f.DepthScale())
	}
	if math.Abs(float64(f.DistanceScale())-0.001) > 1e-9 {
		t.Errorf("distance_scale %f", f.DistanceScale())
	}

	want := []int16{21428, 21428, 25714, 30000}
	for i, w := range want {
		got := f.Z(i)
		if got < w-1 || got > w+1 {
			t.Errorf("z[%d] = %d, want %d (+-1)", i, got, w)
		}
	}
	// every beam flag is left at zero
	for i := 0; i < 4; i++ {
		if f.Flag(i) != 0 {
			t.Errorf("flag[%d] = %02X", i, f.Flag(i))
		}
	}
}

func TestBuildScalePolicy(t *testing.T) {
	s := testSounding(t, []mb1.Beam{{BeamNum: 0, RhoX: 0, RhoY: 0, RhoZ: 60}})
	f, err := BuildFromMB1(s)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(f.DepthScale())-0.002) > 1e-9 {
		t.Errorf("depth_scale %f, want 0.002", f.DepthScale())
	}
	if f.Z(0) != 30000 {
		t.Errorf("z[0] = %d, want 30000", f.Z(0))
	}
}

func TestByteswapInvolutive(t *testing.T) {
	s := testSounding(t, []mb1.Beam{
		{BeamNum: 0, RhoX: 5, RhoY: -2, RhoZ: 40},
		{BeamNum: 1, RhoX: -4, RhoY: 7, RhoZ: 45},
	})
	f, err := BuildFromMB1(s)
	if err != nil {
		t.Fatal(err)
	}
	orig := append([]byte(nil), f.Bytes()...)

	if err := f.Byteswap(nil); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(f.Bytes(), orig) {
		t.Fatal("in-place swap changed nothing")
	}
	if err := f.Byteswap(nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(f.Bytes(), orig) {
		t.Error("double swap did not restore original")
	}
}

func TestByteswapToDest(t *testing.T) {
	s := testSounding(t, []mb1.Beam{{BeamNum: 0, RhoX: 1, RhoY: 2, RhoZ: 30}})
	f, err := BuildFromMB1(s)
	if err != nil {
		t.Fatal(err)
	}
	orig := append([]byte(nil), f.Bytes()...)

	dest := &Frame{}
	if err := f.Byteswap(dest); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(f.Bytes(), orig) {
		t.Error("source mutated by to-dest swap")
	}

	// dest must equal the in-place swap of the source
	dup := &Frame{buf: append([]byte(nil), orig...)}
	if err := dup.Byteswap(nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dest.Bytes(), dup.Bytes()) {
		t.Error("to-dest swap differs from in-place swap")
	}

	// single-byte fields survive unswapped
	if dest.Bytes()[96] != f.Bytes()[96] || dest.Bytes()[97] != f.Bytes()[97] {
		t.Error("single-byte header fields altered")
	}
}

func TestByteswapSwapsCount(t *testing.T) {
	s := testSounding(t, []mb1.Beam{{BeamNum: 0, RhoZ: 30}, {BeamNum: 1, RhoZ: 31}})
	f, _ := BuildFromMB1(s)
	if err := f.Byteswap(nil); err != nil {
		t.Fatal(err)
	}
	// beams_bath = 2 swapped = 0x02000000
	if f.BeamsBath() != 0x02000000 {
		t.Errorf("swapped count %08X", uint32(f.BeamsBath()))
	}
}

func TestFromBytesValidates(t *testing.T) {
	s := testSounding(t, []mb1.Beam{{BeamNum: 0, RhoZ: 10}})
	f, _ := BuildFromMB1(s)
	dup, err := FromBytes(f.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if dup.BeamsBath() != 1 {
		t.Error("adopted frame mismatched")
	}
	if _, err := FromBytes(f.Bytes()[:50]); err == nil {
		t.Error("short frame accepted")
	}
}
