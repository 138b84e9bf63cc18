package trnif

import (
	"bytes"
	"encoding/binary"
)

// The legacy commsT protocol exchanges opaque fixed-size blobs whose first
// byte is a one-character message type. There is no framing or sync on the
// wire; the writer is trusted to send whole blobs.

// CTMsgSize is the default commsT blob size in bytes.
const CTMsgSize = 8192

// commsT message type codes.
const (
	MsgInit       byte = 'I'
	MsgMeas       byte = 'M'
	MsgMotn       byte = 'N'
	MsgMLE        byte = 'E'
	MsgMMSE       byte = 'S'
	MsgLastMeas   byte = 'L'
	MsgNReinits   byte = 'R'
	MsgFiltType   byte = 'T'
	MsgFiltState  byte = 'H'
	MsgOutMeas    byte = 'O'
	MsgIsConv     byte = 'C'
	MsgIsInit     byte = 'J'
	MsgFiltReinit byte = 'F'
	MsgSetMW      byte = 'W'
	MsgSetFR      byte = 'f'
	MsgSetIMA     byte = 'A'
	MsgSetMIM     byte = 'i'
	MsgSetVDR     byte = 'V'
	MsgFiltGrd    byte = 'G'
	MsgPing       byte = 'P'
	MsgAck        byte = '+'
	MsgNack       byte = '-'
)

// CommsT is the decoded form of one commsT blob: the type code, a scalar
// parameter pair, and the pose/measurement payloads used by the update and
// estimate operations.
type CommsT struct {
	MsgType   byte
	Parameter int32
	VDR       float64
	Pose      Pose
	Meas      Meas
}

// NewTypeCT returns a message of the given type carrying a parameter.
func NewTypeCT(msgType byte, parameter int32) *CommsT {
	return &CommsT{MsgType: msgType, Parameter: parameter}
}

// Serialize encodes the message into a blob of msgSize bytes (CTMsgSize
// when msgSize <= 0). The measurement arrays must fit the blob.
func (ct *CommsT) Serialize(msgSize int) ([]byte, error) {
	if msgSize <= 0 {
		msgSize = CTMsgSize
	}
	var b bytes.Buffer
	b.WriteByte(ct.MsgType)
	b.Write([]byte{0, 0, 0})

	le := binary.LittleEndian
	fields := []interface{}{
		ct.Parameter,
		ct.VDR,
		ct.Pose.Time, ct.Pose.X, ct.Pose.Y, ct.Pose.Z,
		ct.Pose.Phi, ct.Pose.Theta, ct.Pose.Psi,
		ct.Pose.DvlValid, ct.Pose.GpsValid, ct.Pose.BottomLock,
		ct.Pose.Covariance,
		ct.Meas.Time, ct.Meas.DataType,
		ct.Meas.X, ct.Meas.Y, ct.Meas.Z,
		ct.Meas.PingNumber, ct.Meas.NumMeas(),
		ct.Meas.Ranges, ct.Meas.CrossTrack, ct.Meas.AlongTrack, ct.Meas.Altitudes,
	}
	for _, f := range fields {
		if err := binary.Write(&b, le, f); err != nil {
			return nil, err
		}
	}
	if b.Len() > msgSize {
		return nil, ErrMsgSize
	}
	out := make([]byte, msgSize)
	copy(out, b.Bytes())
	return out, nil
}

// UnserializeCT decodes a commsT blob.
func UnserializeCT(buf []byte) (*CommsT, error) {
	if len(buf) < 4 {
		return nil, ErrParse
	}
	ct := &CommsT{MsgType: buf[0]}
	r := bytes.NewReader(buf[4:])
	le := binary.LittleEndian

	var numMeas int32
	head := []interface{}{
		&ct.Parameter,
		&ct.VDR,
		&ct.Pose.Time, &ct.Pose.X, &ct.Pose.Y, &ct.Pose.Z,
		&ct.Pose.Phi, &ct.Pose.Theta, &ct.Pose.Psi,
		&ct.Pose.DvlValid, &ct.Pose.GpsValid, &ct.Pose.BottomLock,
		&ct.Pose.Covariance,
		&ct.Meas.Time, &ct.Meas.DataType,
		&ct.Meas.X, &ct.Meas.Y, &ct.Meas.Z,
		&ct.Meas.PingNumber, &numMeas,
	}
	for _, f := range head {
		if err := binary.Read(r, le, f); err != nil {
			return nil, ErrParse
		}
	}
	if numMeas < 0 || int(numMeas)*4*8 > r.Len() {
		return nil, ErrParse
	}
	ct.Meas.Ranges = make([]float64, numMeas)
	ct.Meas.CrossTrack = make([]float64, numMeas)
	ct.Meas.AlongTrack = make([]float64, numMeas)
	ct.Meas.Altitudes = make([]float64, numMeas)
	for _, arr := range [][]float64{ct.Meas.Ranges, ct.Meas.CrossTrack, ct.Meas.AlongTrack, ct.Meas.Altitudes} {
		if err := binary.Read(r, le, arr); err != nil {
			return nil, ErrParse
		}
	}
	return ct, nil
}
