package trnif

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/sixy6e/go-mbtrn/sock"
)

// Client-side helpers for the two TRN protocols. A CTClient exchanges
// fixed-size commsT blobs; a TRNMsgClient exchanges framed messages.
// Both run one blocking request/response round per call.

// CTClient is a commsT protocol client over one TCP connection.
type CTClient struct {
	Sock    *sock.Socket
	MsgSize int
	Timeout time.Duration
}

// DialCT connects to a commsT server.
func DialCT(host string, port int) (*CTClient, error) {
	s, err := sock.New(host, port, sock.TCP)
	if err != nil {
		return nil, err
	}
	if err := s.Connect(); err != nil {
		return nil, err
	}
	return &CTClient{Sock: s, MsgSize: CTMsgSize, Timeout: 3 * time.Second}, nil
}

// Transact sends the message and collects the server's fixed-size reply.
func (c *CTClient) Transact(ct *CommsT) (*CommsT, error) {
	blob, err := ct.Serialize(c.MsgSize)
	if err != nil {
		return nil, err
	}
	if _, err := c.Sock.Send(blob); err != nil {
		return nil, err
	}
	reply := make([]byte, c.MsgSize)
	if _, err := c.Sock.ReadTimeout(reply, c.Timeout); err != nil {
		return nil, err
	}
	return UnserializeCT(reply)
}

// Ping runs one PING/ACK round.
func (c *CTClient) Ping() error {
	reply, err := c.Transact(NewTypeCT(MsgPing, 0))
	if err != nil {
		return err
	}
	if reply.MsgType != MsgAck {
		return ErrParse
	}
	return nil
}

// Close releases the connection.
func (c *CTClient) Close() error { return c.Sock.Close() }

// TRNMsgClient is a framed trnmsg protocol client over one TCP connection.
type TRNMsgClient struct {
	Sock    *sock.Socket
	Timeout time.Duration
}

// DialTRNMsg connects to a trnmsg server.
func DialTRNMsg(host string, port int) (*TRNMsgClient, error) {
	s, err := sock.New(host, port, sock.TCP)
	if err != nil {
		return nil, err
	}
	if err := s.Connect(); err != nil {
		return nil, err
	}
	return &TRNMsgClient{Sock: s, Timeout: 3 * time.Second}, nil
}

// Transact sends the message and collects one framed reply.
func (c *TRNMsgClient) Transact(msg *TRNMsg) (*TRNMsg, error) {
	if _, err := c.Sock.Send(msg.Serialize()); err != nil {
		return nil, err
	}
	hdr := make([]byte, HdrLen)
	if _, err := c.Sock.ReadTimeout(hdr, c.Timeout); err != nil {
		return nil, err
	}
	if !bytes.Equal(hdr[:SyncLen], Sync[:]) {
		return nil, ErrParse
	}
	dataLen := binary.LittleEndian.Uint32(hdr[8:])
	if int(dataLen) > MaxSize-HdrLen {
		return nil, ErrParse
	}
	wire := hdr
	if dataLen > 0 {
		data := make([]byte, dataLen)
		if _, err := c.Sock.ReadTimeout(data, c.Timeout); err != nil {
			return nil, err
		}
		wire = append(hdr, data...)
	}
	return DeserializeTRNMsg(wire)
}

// Ping runs one PING/ACK round.
func (c *TRNMsgClient) Ping() error {
	reply, err := c.Transact(NewTypeMsg(IDPing, 0x1234))
	if err != nil {
		return err
	}
	if reply.Hdr.MsgID != IDAck {
		return ErrParse
	}
	return nil
}

// Close releases the connection.
func (c *TRNMsgClient) Close() error { return c.Sock.Close() }
