package trnif

import (
	"bytes"
	"encoding/binary"

	"github.com/sixy6e/go-mbtrn/byteutil"
)

// The framed trnmsg protocol: a 4 byte sync pattern, a 12 byte header
// (msg id, reserved, data length, checksum) and data_len payload bytes.
// The checksum is the wrapping byte sum of the payload.

const (
	SyncLen = 4
	// HdrLen is the framed prefix: sync pattern plus header fields.
	HdrLen = SyncLen + 12
	// MaxSize bounds one framed message.
	MaxSize = 8192
)

// Sync is the compile-time frame sync pattern.
var Sync = [SyncLen]byte{'T', 'R', 'N', 0x00}

// trnmsg message ids.
const (
	IDPing uint16 = iota + 1
	IDAck
	IDNack
	IDMeas
	IDMotn
	IDMLE
	IDMMSE
)

// TRNMsgHeader is the fixed header following the sync pattern.
type TRNMsgHeader struct {
	MsgID    uint16
	Reserved uint16
	DataLen  uint32
	Checksum uint32
}

// TRNMsg is one framed message.
type TRNMsg struct {
	Hdr  TRNMsgHeader
	Data []byte
}

// Len returns the serialized size: sync + header + data.
func (m *TRNMsg) Len() int {
	return HdrLen + len(m.Data)
}

// NewTypeMsg returns a message of the given id carrying one 32 bit
// parameter as its payload.
func NewTypeMsg(id uint16, param uint32) *TRNMsg {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, param)
	return &TRNMsg{Hdr: TRNMsgHeader{MsgID: id, DataLen: 4}, Data: data}
}

// NewMeasMsg returns a MEAS-class message: a parameter word followed by
// the serialized measurement.
func NewMeasMsg(id uint16, parameter int32, m *Meas) (*TRNMsg, error) {
	var b bytes.Buffer
	le := binary.LittleEndian
	if err := binary.Write(&b, le, parameter); err != nil {
		return nil, err
	}
	if err := binary.Write(&b, le, uint32(0)); err != nil {
		return nil, err
	}
	if err := encodeMeas(&b, m); err != nil {
		return nil, err
	}
	if b.Len() > MaxSize-HdrLen {
		return nil, ErrMsgSize
	}
	data := b.Bytes()
	return &TRNMsg{Hdr: TRNMsgHeader{MsgID: id, DataLen: uint32(len(data))}, Data: data}, nil
}

// DecodeMeasPayload extracts the parameter word and measurement from a
// MEAS-class payload.
func DecodeMeasPayload(data []byte) (int32, *Meas, error) {
	r := bytes.NewReader(data)
	le := binary.LittleEndian
	var parameter int32
	var reserved uint32
	if err := binary.Read(r, le, &parameter); err != nil {
		return 0, nil, ErrParse
	}
	if err := binary.Read(r, le, &reserved); err != nil {
		return 0, nil, ErrParse
	}
	m, err := decodeMeas(r)
	if err != nil {
		return 0, nil, err
	}
	return parameter, m, nil
}

func encodeMeas(b *bytes.Buffer, m *Meas) error {
	le := binary.LittleEndian
	fields := []interface{}{
		m.Time, m.DataType, m.X, m.Y, m.Z, m.PingNumber, m.NumMeas(),
		m.Ranges, m.CrossTrack, m.AlongTrack, m.Altitudes,
	}
	for _, f := range fields {
		if err := binary.Write(b, le, f); err != nil {
			return err
		}
	}
	return nil
}

func decodeMeas(r *bytes.Reader) (*Meas, error) {
	le := binary.LittleEndian
	m := &Meas{}
	var numMeas int32
	head := []interface{}{&m.Time, &m.DataType, &m.X, &m.Y, &m.Z, &m.PingNumber, &numMeas}
	for _, f := range head {
		if err := binary.Read(r, le, f); err != nil {
			return nil, ErrParse
		}
	}
	if numMeas < 0 || int(numMeas)*4*8 > r.Len() {
		return nil, ErrParse
	}
	m.Ranges = make([]float64, numMeas)
	m.CrossTrack = make([]float64, numMeas)
	m.AlongTrack = make([]float64, numMeas)
	m.Altitudes = make([]float64, numMeas)
	for _, arr := range [][]float64{m.Ranges, m.CrossTrack, m.AlongTrack, m.Altitudes} {
		if err := binary.Read(r, le, arr); err != nil {
			return nil, ErrParse
		}
	}
	return m, nil
}

// Serialize renders the framed wire form, stamping the payload checksum.
func (m *TRNMsg) Serialize() []byte {
	m.Hdr.DataLen = uint32(len(m.Data))
	m.Hdr.Checksum = byteutil.Checksum(m.Data)

	out := make([]byte, m.Len())
	copy(out, Sync[:])
	le := binary.LittleEndian
	le.PutUint16(out[4:], m.Hdr.MsgID)
	le.PutUint16(out[6:], m.Hdr.Reserved)
	le.PutUint32(out[8:], m.Hdr.DataLen)
	le.PutUint32(out[12:], m.Hdr.Checksum)
	copy(out[HdrLen:], m.Data)
	return out
}

// DeserializeTRNMsg decodes a framed message from buf. A payload whose
// checksum does not match the header yields the decoded message along with
// ErrChecksum.
func DeserializeTRNMsg(buf []byte) (*TRNMsg, error) {
	if len(buf) < HdrLen {
		return nil, ErrParse
	}
	if !bytes.Equal(buf[:SyncLen], Sync[:]) {
		return nil, ErrParse
	}
	le := binary.LittleEndian
	m := &TRNMsg{
		Hdr: TRNMsgHeader{
			MsgID:    le.Uint16(buf[4:]),
			Reserved: le.Uint16(buf[6:]),
			DataLen:  le.Uint32(buf[8:]),
			Checksum: le.Uint32(buf[12:]),
		},
	}
	if int(m.Hdr.DataLen) > len(buf)-HdrLen || int(m.Hdr.DataLen) > MaxSize-HdrLen {
		return nil, ErrParse
	}
	m.Data = make([]byte, m.Hdr.DataLen)
	copy(m.Data, buf[HdrLen:HdrLen+int(m.Hdr.DataLen)])
	if byteutil.Checksum(m.Data) != m.Hdr.Checksum {
		return m, ErrChecksum
	}
	return m, nil
}
