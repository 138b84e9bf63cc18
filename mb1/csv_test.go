package mb1

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteCSV(t *testing.T) {
	s, err := New(2)
	if err != nil {
		t.Fatal(err)
	}
	s.SetTs(0) // unix epoch: JD 2440587.5
	s.SetLat(36.8)
	s.SetLon(-122.0)
	s.SetPingNumber(5)
	s.SetBeam(0, Beam{BeamNum: 0, RhoX: 1, RhoY: 2, RhoZ: 3})
	s.SetBeam(1, Beam{BeamNum: 1, RhoX: 4, RhoY: 5, RhoZ: 6})

	var b bytes.Buffer
	if err := CSVHeader(&b); err != nil {
		t.Fatal(err)
	}
	if err := WriteCSV(&b, s); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ping_number,ts,jd") {
		t.Errorf("header %q", lines[0])
	}
	if !strings.Contains(lines[1], "2440587.5") {
		t.Errorf("julian day missing: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "5,") || !strings.Contains(lines[2], ",6.000") {
		t.Errorf("beam row %q", lines[2])
	}
}
