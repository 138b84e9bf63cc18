// Package mb71 implements the F71/FBT multibeam export record: a 98 byte
// header followed by packed parallel beam arrays (flag bytes, then vertical,
// cross-track and along-track samples as scaled 16 bit integers).
//
// Frames are produced in little-endian order; Byteswap converts a frame for
// cross-endian consumers, either in place or into a destination frame
// without mutating the source.
package mb71

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/samber/lo"

	"github.com/sixy6e/go-mbtrn/byteutil"
	"github.com/sixy6e/go-mbtrn/mb1"
)

const (
	// TypeID is the F71 record type tag (0x5635, written little-endian as
	// '5','V' on the wire).
	TypeID uint16 = 0x5635

	HeaderBytes = 98
	BeamBytes   = 7
)

// FrameBytes returns the total frame size for the given beam count.
func FrameBytes(beams int32) int {
	return HeaderBytes + int(beams)*BeamBytes
}

// Frame is one export record backed by a contiguous buffer.
type Frame struct {
	buf []byte
}

// New allocates a zeroed frame sized for the given beam count, with the
// record type and beam count set.
func New(beams int32) (*Frame, error) {
	if beams < 0 {
		return nil, ErrBeamCount
	}
	f := &Frame{buf: make([]byte, FrameBytes(beams))}
	binary.LittleEndian.PutUint16(f.buf[0:], TypeID)
	binary.LittleEndian.PutUint32(f.buf[70:], uint32(beams))
	return f, nil
}

// FromBytes adopts raw frame bytes as a Frame, validating the size against
// the beam count. No byte order conversion is performed.
func FromBytes(b []byte) (*Frame, error) {
	if len(b) < HeaderBytes {
		return nil, ErrShortFrame
	}
	f := &Frame{buf: b}
	if FrameBytes(f.BeamsBath()) != len(b) {
		return nil, ErrFrameSize
	}
	return f, nil
}

// Bytes returns the backing frame buffer.
func (f *Frame) Bytes() []byte { return f.buf }

func (f *Frame) RecordType() uint16 { return binary.LittleEndian.Uint16(f.buf[0:]) }
func (f *Frame) TimeD() float64     { return f.f64(2) }
func (f *Frame) Longitude() float64 { return f.f64(10) }
func (f *Frame) Latitude() float64  { return f.f64(18) }
func (f *Frame) SonarDepth() float64 {
	return f.f64(26)
}
func (f *Frame) Altitude() float64 { return f.f64(34) }

func (f *Frame) Heading() float32    { return f.f32(42) }
func (f *Frame) Speed() float32      { return f.f32(46) }
func (f *Frame) Roll() float32       { return f.f32(50) }
func (f *Frame) Pitch() float32      { return f.f32(54) }
func (f *Frame) Heave() float32      { return f.f32(58) }
func (f *Frame) BeamXWidth() float32 { return f.f32(62) }
func (f *Frame) BeamLWidth() float32 { return f.f32(66) }

func (f *Frame) BeamsBath() int32 { return int32(binary.LittleEndian.Uint32(f.buf[70:])) }
func (f *Frame) BeamsAmp() int32  { return int32(binary.LittleEndian.Uint32(f.buf[74:])) }
func (f *Frame) PixelsSS() int32  { return int32(binary.LittleEndian.Uint32(f.buf[78:])) }

func (f *Frame) DepthScale() float32    { return f.f32(86) }
func (f *Frame) DistanceScale() float32 { return f.f32(90) }

func (f *Frame) SSScalePower() uint8 { return f.buf[94] }
func (f *Frame) SSType() uint8       { return f.buf[95] }
func (f *Frame) ImageryType() uint8  { return f.buf[96] }
func (f *Frame) TopoType() uint8     { return f.buf[97] }

func (f *Frame) f64(off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(f.buf[off:]))
}

func (f *Frame) f32(off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(f.buf[off:]))
}

// Beam array regions. Flags occupy the first n bytes after the header; the
// vertical, cross-track and along-track arrays follow at byte offsets n,
// 3n and 5n of the beam region.
func (f *Frame) Flag(i int) uint8 {
	return f.buf[HeaderBytes+i]
}

func (f *Frame) Z(i int) int16 {
	n := int(f.BeamsBath())
	return int16(binary.LittleEndian.Uint16(f.buf[HeaderBytes+n+2*i:]))
}

func (f *Frame) Y(i int) int16 {
	n := int(f.BeamsBath())
	return int16(binary.LittleEndian.Uint16(f.buf[HeaderBytes+3*n+2*i:]))
}

func (f *Frame) X(i int) int16 {
	n := int(f.BeamsBath())
	return int16(binary.LittleEndian.Uint16(f.buf[HeaderBytes+5*n+2*i:]))
}

// BuildFromMB1 converts an MB1 sounding to an export frame. The vertical
// and distance scale factors are 0.001*max(max/30, 1), so a largest sample
// magnitude above 30 maps to 30000 counts and smaller ones keep a 0.001
// resolution; samples are rounded to the nearest count. Heading is copied
// verbatim (MB1 headings are degrees).
func BuildFromMB1(src *mb1.Sounding) (*Frame, error) {
	if src == nil {
		return nil, ErrNilSounding
	}
	nbeams := int32(src.NBeams())
	f, err := New(nbeams)
	if err != nil {
		return nil, err
	}

	le := binary.LittleEndian
	le.PutUint64(f.buf[2:], math.Float64bits(src.Ts()))
	le.PutUint64(f.buf[10:], math.Float64bits(src.Lon()))
	le.PutUint64(f.buf[18:], math.Float64bits(src.Lat()))
	le.PutUint64(f.buf[26:], math.Float64bits(src.Depth()))
	// altitude unknown in the MB1 path
	le.PutUint32(f.buf[42:], math.Float32bits(float32(src.Hdg())))
	// speed, roll, pitch, heave zero
	le.PutUint32(f.buf[62:], math.Float32bits(1.0))
	le.PutUint32(f.buf[66:], math.Float32bits(1.0))
	f.buf[96] = 0x02 // imagery_type
	f.buf[97] = 0x02 // topo_type

	depthAbs := make([]float64, 0, nbeams)
	distAbs := make([]float64, 0, 2*nbeams)
	for i := 0; i < int(nbeams); i++ {
		b := src.Beam(i)
		depthAbs = append(depthAbs, math.Abs(b.RhoZ))
		distAbs = append(distAbs, math.Abs(b.RhoY), math.Abs(b.RhoX))
	}

	var depthScale, distScale float32
	if depthMax := lo.Max(depthAbs); depthMax > 0 {
		depthScale = float32(0.001 * math.Max(depthMax/30.0, 1.0))
		le.PutUint32(f.buf[86:], math.Float32bits(depthScale))
	}
	if distMax := lo.Max(distAbs); distMax > 0 {
		distScale = float32(0.001 * math.Max(distMax/30.0, 1.0))
		le.PutUint32(f.buf[90:], math.Float32bits(distScale))
	}

	// a zero scale means every sample in that axis is zero
	dz := float64(depthScale)
	dd := float64(distScale)
	if dz == 0 {
		dz = 1
	}
	if dd == 0 {
		dd = 1
	}
	n := int(nbeams)
	for i := 0; i < n; i++ {
		b := src.Beam(i)
		f.buf[HeaderBytes+i] = 0x00
		le.PutUint16(f.buf[HeaderBytes+n+2*i:], uint16(int16(math.Round(b.RhoZ/dz))))
		le.PutUint16(f.buf[HeaderBytes+3*n+2*i:], uint16(int16(math.Round(b.RhoY/dd))))
		le.PutUint16(f.buf[HeaderBytes+5*n+2*i:], uint16(int16(math.Round(b.RhoX/dd))))
	}
	return f, nil
}

// header field spans that need swapping, as (offset, width) pairs. The four
// trailing single-byte fields and the beam flag bytes are never swapped.
var swapFields = [][2]int{
	{0, 2},
	{2, 8}, {10, 8}, {18, 8}, {26, 8}, {34, 8},
	{42, 4}, {46, 4}, {50, 4}, {54, 4}, {58, 4}, {62, 4}, {66, 4},
	{70, 4}, {74, 4}, {78, 4}, {82, 4},
	{86, 4}, {90, 4},
}

// Byteswap converts the frame's multi-byte fields and 16 bit beam samples
// to the opposite byte order. With dest == nil the swap is done in place;
// otherwise the result is written into dest and src is left unchanged. The
// beam count is derived from the buffer length rather than the count field,
// so a swapped-in-place frame still addresses its arrays correctly.
func (f *Frame) Byteswap(dest *Frame) error {
	if f == nil || len(f.buf) <= HeaderBytes || (len(f.buf)-HeaderBytes)%BeamBytes != 0 {
		return ErrBeamCount
	}
	// derived from the buffer length, not the count field, so swapping an
	// already-swapped frame still addresses the arrays correctly
	nbeams := (len(f.buf) - HeaderBytes) / BeamBytes

	out := f
	if dest != nil {
		if len(dest.buf) < len(f.buf) {
			dest.buf = make([]byte, len(f.buf))
		}
		out = dest
	}

	for _, fld := range swapFields {
		off, w := fld[0], fld[1]
		if out == f {
			if err := byteutil.SwapBytes(out.buf[off : off+w]); err != nil {
				return err
			}
		} else {
			if err := byteutil.SwapBytesTo(out.buf[off:off+w], f.buf[off:off+w]); err != nil {
				return err
			}
		}
	}
	out.buf[94] = f.buf[94]
	out.buf[95] = f.buf[95]
	out.buf[96] = f.buf[96]
	out.buf[97] = f.buf[97]

	copy(out.buf[HeaderBytes:HeaderBytes+nbeams], f.buf[HeaderBytes:HeaderBytes+nbeams])
	for _, base := range []int{HeaderBytes + nbeams, HeaderBytes + 3*nbeams, HeaderBytes + 5*nbeams} {
		for i := 0; i < nbeams; i++ {
			off := base + 2*i
			if out == f {
				out.buf[off], out.buf[off+1] = out.buf[off+1], out.buf[off]
			} else {
				out.buf[off], out.buf[off+1] = f.buf[off+1], f.buf[off]
			}
		}
	}
	return nil
}

// Show writes a parameter summary to w. When verbose, each beam is listed.
func (f *Frame) Show(w io.Writer, verbose bool, indent int) {
	pad := fmt.Sprintf("%*s", indent, "")
	fmt.Fprintf(w, "%srecordtype     %04X\n", pad, f.RecordType())
	fmt.Fprintf(w, "%stime_d         %.3f\n", pad, f.TimeD())
	fmt.Fprintf(w, "%slongitude      %.6f\n", pad, f.Longitude())
	fmt.Fprintf(w, "%slatitude       %.6f\n", pad, f.Latitude())
	fmt.Fprintf(w, "%ssonardepth     %.3f\n", pad, f.SonarDepth())
	fmt.Fprintf(w, "%saltitude       %.3f\n", pad, f.Altitude())
	fmt.Fprintf(w, "%sheading        %.3f\n", pad, f.Heading())
	fmt.Fprintf(w, "%sbeams_bath     %d\n", pad, f.BeamsBath())
	fmt.Fprintf(w, "%sbeams_amp      %d\n", pad, f.BeamsAmp())
	fmt.Fprintf(w, "%spixels_ss      %d\n", pad, f.PixelsSS())
	fmt.Fprintf(w, "%sdepth_scale    %.6f\n", pad, f.DepthScale())
	fmt.Fprintf(w, "%sdistance_scale %.6f\n", pad, f.DistanceScale())
	fmt.Fprintf(w, "%simagery_type   %02X\n", pad, f.ImageryType())
	fmt.Fprintf(w, "%stopo_type      %02X\n", pad, f.TopoType())
	if verbose && f.BeamsBath() > 0 {
		fmt.Fprintf(w, "%s[ n   flags vert    cross    along ]\n", pad)
		for i := 0; i < int(f.BeamsBath()); i++ {
			fmt.Fprintf(w, "%s %3d  %02X %8d %8d %8d\n", pad, i, f.Flag(i), f.Z(i), f.Y(i), f.X(i))
		}
	}
}
