package mb1

import (
	"encoding/binary"
	"io"
	"log"
)

// Reader extracts MB1 records from a stream of concatenated frames,
// resynchronizing on the 'M' tag byte after corruption. Checksum mismatches
// are logged and counted but the record is still delivered; callers that
// need strict framing can call ValidateChecksum on the result.
type Reader struct {
	src     io.Reader
	Verbose int
	Log     *log.Logger

	// Records and ChecksumErrors count frames delivered and frames whose
	// stored checksum did not match.
	Records        uint64
	ChecksumErrors uint64
}

func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, Log: log.Default()}
}

// Next reads the next record into s, resizing it as needed, and returns the
// record's byte count. Garbage bytes skipped during sync are consumed from
// the stream but not counted. A frame whose assembled type tag is not the
// MB1 tag yields ErrFrameType with the stream left past the bad header.
func (r *Reader) Next(s *Sounding) (int64, error) {
	if s == nil {
		return 0, ErrShortFrame
	}
	if len(s.buf) < int(FrameBytes(0)) {
		s.buf = make([]byte, FrameBytes(0))
		s.init(0)
	}

	// sync to start of record
	var one [1]byte
	for {
		if _, err := io.ReadFull(r.src, one[:]); err != nil {
			return 0, err
		}
		if one[0] == 'M' {
			break
		}
		if r.Verbose > 2 {
			r.Log.Printf("mb1: sync skip [%02X]", one[0])
		}
	}
	s.buf[0] = 'M'
	consumed := int64(1)

	// fixed header bytes
	n, err := io.ReadFull(r.src, s.buf[1:HeaderBytes])
	consumed += int64(n)
	if err != nil {
		return consumed, err
	}

	if s.Type() != TypeID {
		if r.Verbose > 1 {
			r.Log.Printf("mb1: invalid type tag [%08X]", s.Type())
		}
		return consumed, ErrFrameType
	}

	nbeams := s.NBeams()
	if nbeams > MaxBeams {
		return consumed, ErrBeamCount
	}
	if s.Size() != FrameBytes(nbeams) {
		return consumed, ErrFrameSize
	}
	// grow/shrink for the beam array; the derived checksum region follows
	// the new size even when nbeams is zero
	if err := s.Resize(nbeams, ZeroBeams|ZeroChecksum); err != nil {
		return consumed, err
	}

	// variable-length beam payload
	if nbeams > 0 {
		n, err = io.ReadFull(r.src, s.beamRegion())
		consumed += int64(n)
		if err != nil {
			return consumed, err
		}
	}

	// trailing checksum
	n, err = io.ReadFull(r.src, s.checksumRegion())
	consumed += int64(n)
	if err != nil {
		return consumed, err
	}

	r.Records++
	if got, want := s.Checksum(), s.CalcChecksum(); got != want {
		r.ChecksumErrors++
		r.Log.Printf("mb1: checksum err (calc/read)[%08X/%08X]", want, got)
	}
	return consumed, nil
}

// ReadSize peeks the size field from raw header bytes. Helper for callers
// that frame records themselves.
func ReadSize(hdr []byte) (uint32, error) {
	if len(hdr) < 8 {
		return 0, ErrShortFrame
	}
	if binary.LittleEndian.Uint32(hdr) != TypeID {
		return 0, ErrFrameType
	}
	return binary.LittleEndian.Uint32(hdr[4:]), nil
}
