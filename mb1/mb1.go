// Package mb1 implements the MB1 multibeam sounding record: a
// variable-length frame with a fixed 56 byte header, a beam array and a
// trailing 32 bit checksum. The wire layout is little-endian; the type tag
// reads 'M','B','1',0x00 on the wire (0x0031424D).
//
// A Sounding owns one contiguous backing buffer mirroring the wire layout.
// Field accessors and the checksum region are derived views over that
// buffer, so a Sounding can be serialized by copying its bytes.
package mb1

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	// TypeID is the record type tag ('M''B''1''\0' little-endian).
	TypeID uint32 = 0x0031424D

	// MaxBeams is the maximum number of beams in a sounding.
	MaxBeams = 512

	HeaderBytes   = 56
	BeamBytes     = 28
	ChecksumBytes = 4

	// DefaultPort is the acquisition stream port.
	DefaultPort = 7007
)

// ZeroFlags selects which frame regions Zero and Resize clear.
type ZeroFlags int

const (
	ZeroBeams ZeroFlags = 1 << iota
	ZeroHeader
	ZeroChecksum
)

const ZeroAll = ZeroBeams | ZeroHeader | ZeroChecksum

// FrameBytes returns the total frame size for the given beam count.
func FrameBytes(beams uint32) uint32 {
	return HeaderBytes + beams*BeamBytes + ChecksumBytes
}

// Beam is one sonar return: position relative to the sonar in meters,
// vertical positive down. Beam 0 is the port-most beam.
type Beam struct {
	BeamNum uint32
	RhoX    float64 // along-track
	RhoY    float64 // cross-track
	RhoZ    float64 // vertical
}

// Sounding is one MB1 ping record backed by a contiguous buffer.
type Sounding struct {
	buf []byte
}

// New allocates a zeroed sounding sized for the given beam count, with the
// type tag, frame size and beam count fields set.
func New(beams uint32) (*Sounding, error) {
	if beams > MaxBeams {
		return nil, ErrBeamCount
	}
	s := &Sounding{buf: make([]byte, FrameBytes(beams))}
	s.init(beams)
	return s, nil
}

// FromBytes wraps raw frame bytes as a Sounding. The buffer is adopted, not
// copied. The type tag and the size invariant are validated; the checksum
// is not.
func FromBytes(b []byte) (*Sounding, error) {
	if len(b) < int(FrameBytes(0)) {
		return nil, ErrShortFrame
	}
	s := &Sounding{buf: b}
	if s.Type() != TypeID {
		return nil, ErrFrameType
	}
	n := s.NBeams()
	if n > MaxBeams {
		return nil, ErrBeamCount
	}
	if s.Size() != FrameBytes(n) || int(s.Size()) != len(b) {
		return nil, ErrFrameSize
	}
	return s, nil
}

func (s *Sounding) init(beams uint32) {
	binary.LittleEndian.PutUint32(s.buf[0:], TypeID)
	binary.LittleEndian.PutUint32(s.buf[4:], FrameBytes(beams))
	binary.LittleEndian.PutUint32(s.buf[52:], beams)
}

// Bytes returns the backing frame buffer.
func (s *Sounding) Bytes() []byte { return s.buf }

func (s *Sounding) Type() uint32 { return binary.LittleEndian.Uint32(s.buf[0:]) }
func (s *Sounding) Size() uint32 { return binary.LittleEndian.Uint32(s.buf[4:]) }

// Ts is the ping epoch time in seconds.
func (s *Sounding) Ts() float64    { return s.f64(8) }
func (s *Sounding) Lat() float64   { return s.f64(16) }
func (s *Sounding) Lon() float64   { return s.f64(24) }
func (s *Sounding) Depth() float64 { return s.f64(32) }

// Hdg is the vehicle heading in degrees.
func (s *Sounding) Hdg() float64 { return s.f64(40) }

func (s *Sounding) PingNumber() int32 {
	return int32(binary.LittleEndian.Uint32(s.buf[48:]))
}

func (s *Sounding) NBeams() uint32 { return binary.LittleEndian.Uint32(s.buf[52:]) }

func (s *Sounding) SetTs(v float64)    { s.setF64(8, v) }
func (s *Sounding) SetLat(v float64)   { s.setF64(16, v) }
func (s *Sounding) SetLon(v float64)   { s.setF64(24, v) }
func (s *Sounding) SetDepth(v float64) { s.setF64(32, v) }
func (s *Sounding) SetHdg(v float64)   { s.setF64(40, v) }

func (s *Sounding) SetPingNumber(v int32) {
	binary.LittleEndian.PutUint32(s.buf[48:], uint32(v))
}

func (s *Sounding) f64(off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(s.buf[off:]))
}

func (s *Sounding) setF64(off int, v float64) {
	binary.LittleEndian.PutUint64(s.buf[off:], math.Float64bits(v))
}

// Beam returns beam i decoded from the beam array.
func (s *Sounding) Beam(i int) Beam {
	off := HeaderBytes + i*BeamBytes
	return Beam{
		BeamNum: binary.LittleEndian.Uint32(s.buf[off:]),
		RhoX:    math.Float64frombits(binary.LittleEndian.Uint64(s.buf[off+4:])),
		RhoY:    math.Float64frombits(binary.LittleEndian.Uint64(s.buf[off+12:])),
		RhoZ:    math.Float64frombits(binary.LittleEndian.Uint64(s.buf[off+20:])),
	}
}

// SetBeam writes beam i into the beam array.
func (s *Sounding) SetBeam(i int, b Beam) {
	off := HeaderBytes + i*BeamBytes
	binary.LittleEndian.PutUint32(s.buf[off:], b.BeamNum)
	binary.LittleEndian.PutUint64(s.buf[off+4:], math.Float64bits(b.RhoX))
	binary.LittleEndian.PutUint64(s.buf[off+12:], math.Float64bits(b.RhoY))
	binary.LittleEndian.PutUint64(s.buf[off+20:], math.Float64bits(b.RhoZ))
}

// beamRegion returns the beam array bytes.
func (s *Sounding) beamRegion() []byte {
	return s.buf[HeaderBytes : len(s.buf)-ChecksumBytes]
}

// checksumRegion returns the trailing checksum bytes. The slice is derived
// from the current buffer, so it stays valid across Resize.
func (s *Sounding) checksumRegion() []byte {
	return s.buf[len(s.buf)-ChecksumBytes:]
}

// Resize grows or shrinks the frame for the given beam count and updates
// the size and beam count fields. Regions selected by flags are zeroed;
// header contents other than size and beam count are preserved unless
// ZeroHeader is set.
func (s *Sounding) Resize(beams uint32, flags ZeroFlags) error {
	if beams > MaxBeams {
		return ErrBeamCount
	}
	want := int(FrameBytes(beams))
	if want != len(s.buf) {
		next := make([]byte, want)
		copy(next, s.buf[:min(len(s.buf), want)])
		s.buf = next
	}
	binary.LittleEndian.PutUint32(s.buf[4:], FrameBytes(beams))
	binary.LittleEndian.PutUint32(s.buf[52:], beams)
	return s.Zero(flags)
}

// Zero clears the regions selected by flags without reallocation.
func (s *Sounding) Zero(flags ZeroFlags) error {
	if flags&ZeroHeader != 0 {
		for i := 0; i < HeaderBytes; i++ {
			s.buf[i] = 0
		}
		s.init(uint32((len(s.buf) - HeaderBytes - ChecksumBytes) / BeamBytes))
	}
	if flags&ZeroBeams != 0 {
		region := s.beamRegion()
		for i := range region {
			region[i] = 0
		}
	}
	if flags&ZeroChecksum != 0 {
		region := s.checksumRegion()
		for i := range region {
			region[i] = 0
		}
	}
	return nil
}

// CalcChecksum computes the frame checksum: the wrapping byte sum over all
// bytes preceding the checksum field.
func (s *Sounding) CalcChecksum() uint32 {
	var sum uint32
	for _, b := range s.buf[:len(s.buf)-ChecksumBytes] {
		sum += uint32(b)
	}
	return sum
}

// Checksum returns the stored checksum field.
func (s *Sounding) Checksum() uint32 {
	return binary.LittleEndian.Uint32(s.checksumRegion())
}

// SetChecksum stores the computed checksum and returns the previous value.
func (s *Sounding) SetChecksum() uint32 {
	prev := s.Checksum()
	binary.LittleEndian.PutUint32(s.checksumRegion(), s.CalcChecksum())
	return prev
}

// ValidateChecksum compares the stored and computed checksums.
func (s *Sounding) ValidateChecksum() error {
	if s.Checksum() != s.CalcChecksum() {
		return ErrChecksum
	}
	return nil
}

// Serialize validates the size invariant, stamps the checksum and returns a
// copy of the frame bytes ready for the wire.
func (s *Sounding) Serialize() ([]byte, error) {
	if s.Size() != FrameBytes(s.NBeams()) || int(s.Size()) != len(s.buf) {
		return nil, ErrFrameSize
	}
	s.SetChecksum()
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out, nil
}

// Show writes a parameter summary to w. When verbose, each beam is listed.
func (s *Sounding) Show(w io.Writer, verbose bool, indent int) {
	pad := fmt.Sprintf("%*s", indent, "")
	fmt.Fprintf(w, "%stype        %08X\n", pad, s.Type())
	fmt.Fprintf(w, "%ssize        %d\n", pad, s.Size())
	fmt.Fprintf(w, "%sts          %.3f\n", pad, s.Ts())
	fmt.Fprintf(w, "%slat         %.6f\n", pad, s.Lat())
	fmt.Fprintf(w, "%slon         %.6f\n", pad, s.Lon())
	fmt.Fprintf(w, "%sdepth       %.3f\n", pad, s.Depth())
	fmt.Fprintf(w, "%shdg         %.3f\n", pad, s.Hdg())
	fmt.Fprintf(w, "%sping_number %d\n", pad, s.PingNumber())
	fmt.Fprintf(w, "%snbeams      %d\n", pad, s.NBeams())
	fmt.Fprintf(w, "%schecksum    %08X\n", pad, s.Checksum())
	if verbose {
		fmt.Fprintf(w, "%s[ n    rhox       rhoy       rhoz ]\n", pad)
		for i := 0; i < int(s.NBeams()); i++ {
			b := s.Beam(i)
			fmt.Fprintf(w, "%s %3d %10.3f %10.3f %10.3f\n", pad, b.BeamNum, b.RhoX, b.RhoY, b.RhoZ)
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
