package trnif

import (
	"encoding/binary"
	"time"

	"github.com/sixy6e/go-mbtrn/byteutil"
	"github.com/sixy6e/go-mbtrn/netif"
	"github.com/sixy6e/go-mbtrn/sock"
)

// readChunk fills b from the peer socket, tolerating short non-blocking
// reads while data is still flowing. A no-data condition before the first
// byte returns ErrNoData; stalling mid-chunk gives up after a bounded spin.
func readChunk(s *sock.Socket, b []byte) (int, error) {
	total := 0
	spins := 0
	for total < len(b) {
		n, err := s.Recv(b[total:])
		if n > 0 {
			total += n
			spins = 0
			continue
		}
		if err != nil && !sock.IsNoData(err) {
			return total, err
		}
		if total == 0 {
			return 0, ErrNoData
		}
		if spins++; spins > 40 {
			return total, ErrNoData
		}
		time.Sleep(time.Millisecond)
	}
	return total, nil
}

// ReadTRNMsg collects one framed trnmsg from a peer: match the sync
// pattern byte by byte (restarting the match on a mismatch), then read the
// header, then data_len payload bytes, then verify the payload checksum.
// No pending data at the first sync byte yields ErrNoData; a checksum
// mismatch consumes the whole frame but yields ErrChecksum so the message
// is not dispatched.
func ReadTRNMsg(p *netif.Port, peer *sock.Connection) ([]byte, error) {
	if peer.Sock == nil {
		return nil, nil
	}
	buf := make([]byte, MaxSize)

	// sync
	matched := 0
	var one [1]byte
	for matched < SyncLen {
		n, err := peer.Sock.Recv(one[:])
		if n != 1 {
			if err != nil && !sock.IsNoData(err) {
				p.Stats.IncEProtoRd()
				return nil, err
			}
			return nil, ErrNoData
		}
		if one[0] == Sync[matched] {
			buf[matched] = one[0]
			matched++
			continue
		}
		// restart the match; the mismatched byte may begin a new pattern
		p.Stats.IncEProtoRd()
		if one[0] == Sync[0] {
			buf[0] = one[0]
			matched = 1
		} else {
			matched = 0
		}
	}

	// header
	if _, err := readChunk(peer.Sock, buf[SyncLen:HdrLen]); err != nil {
		p.Stats.IncEProtoRd()
		return nil, err
	}
	dataLen := binary.LittleEndian.Uint32(buf[8:])
	wantChk := binary.LittleEndian.Uint32(buf[12:])
	if int(dataLen) > MaxSize-HdrLen {
		p.Stats.IncEProtoRd()
		return nil, ErrParse
	}

	// data (zero-length payloads are legal)
	if dataLen > 0 {
		if _, err := readChunk(peer.Sock, buf[HdrLen:HdrLen+int(dataLen)]); err != nil {
			p.Stats.IncEProtoRd()
			return nil, err
		}
	}

	if byteutil.Checksum(buf[HdrLen:HdrLen+int(dataLen)]) != wantChk {
		p.Stats.IncEProtoRd()
		return nil, ErrChecksum
	}
	return buf[:HdrLen+int(dataLen)], nil
}

// HandleTRNMsg dispatches one framed message: PING is answered with an
// ACK, MEAS runs a measurement update and echoes the measurement back.
// Unknown ids get no reply and count as protocol errors.
func HandleTRNMsg(p *netif.Port, peer *sock.Connection, msg []byte) (int, error) {
	in, err := DeserializeTRNMsg(msg)
	if err != nil {
		p.Stats.IncEProtoHnd()
		return 0, err
	}

	var out *TRNMsg
	switch in.Hdr.MsgID {
	case IDPing:
		out = NewTypeMsg(IDAck, 0xabcd)

	case IDMeas:
		trn, ok := p.Resource.(TRN)
		if !ok {
			p.Stats.IncEProtoHnd()
			return 0, ErrNoResource
		}
		parameter, meas, derr := DecodeMeasPayload(in.Data)
		if derr != nil {
			p.Stats.IncEProtoHnd()
			return 0, derr
		}
		trn.MeasUpdate(meas, parameter)
		out, err = NewMeasMsg(IDMeas, parameter, meas)
		if err != nil {
			p.Stats.IncEProtoHnd()
			return 0, err
		}

	default:
		p.Stats.IncEProtoHnd()
		return 0, ErrParse
	}

	n, err := sendPeer(p, peer, out.Serialize())
	if err != nil {
		return 0, err
	}
	return n, nil
}
