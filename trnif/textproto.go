package trnif

import (
	"bytes"
	"strings"

	"github.com/sixy6e/go-mbtrn/netif"
	"github.com/sixy6e/go-mbtrn/sock"
)

// Plain-text control tokens used on the UDP publish ports. Messages are
// NUL-terminated ASCII on the wire.
const (
	TextCON  = "CON"
	TextREQ  = "REQ"
	TextHBT  = "HBT"
	TextDIS  = "DIS"
	TextPING = "PING"
	TextRST  = "RST"
	TextACK  = "ACK"
	TextNACK = "NACK"
)

// TextMsgSize bounds one control datagram.
const TextMsgSize = 256

// trimText extracts the token from wire bytes: everything before the
// first NUL, whitespace-trimmed.
func trimText(msg []byte) string {
	if i := bytes.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(string(msg))
}

// textReply renders a token for the wire with its terminating NUL.
func textReply(token string) []byte {
	return append([]byte(token), 0)
}

// ReadText reads one control message from a stream peer. UDP control
// traffic arrives through the port's discovery path instead, so peers
// without a per-peer socket report no data here.
func ReadText(p *netif.Port, peer *sock.Connection) ([]byte, error) {
	if peer.Sock == nil {
		return nil, nil
	}
	buf := make([]byte, TextMsgSize)
	n, err := peer.Sock.Recv(buf)
	if n <= 0 {
		if err != nil && !sock.IsNoData(err) {
			p.Stats.IncEProtoRd()
			return nil, err
		}
		return nil, nil
	}
	return buf[:n], nil
}

// HandleMB services the MB publish port's control channel: CON and REQ are
// acknowledged, anything else is refused.
func HandleMB(p *netif.Port, peer *sock.Connection, msg []byte) (int, error) {
	token := trimText(msg)
	var reply string
	switch token {
	case TextCON, TextREQ:
		reply = TextACK
	default:
		reply = TextNACK
	}
	if reply == TextACK {
		p.Log.Tprintf("mb_%s,[%s:%s]", strings.ToLower(token), peer.CHost, peer.Service)
	}
	n, err := sendPeer(p, peer, textReply(reply))
	if err != nil {
		p.Stats.IncEProtoHnd()
		return 0, err
	}
	return n, nil
}

// HandleTRNU services the TRN update port's control channel. RST invokes
// the registered reset callback and acknowledges per its outcome.
func HandleTRNU(p *netif.Port, peer *sock.Connection, msg []byte) (int, error) {
	token := trimText(msg)
	msgTime := etime()

	var reply string
	switch token {
	case TextCON, TextREQ, TextHBT, TextDIS, TextPING:
		reply = TextACK
		p.Log.Tprintf("trnu_%s,%f,[%s:%s]", strings.ToLower(token), msgTime, peer.CHost, peer.Service)

	case TextRST:
		res, ok := p.Resource.(*ResetResource)
		if !ok || res.Reset == nil {
			p.Log.Tprintf("trn_filt_reinit[nil resource],%f,[%s:%s],-1", msgTime, peer.CHost, peer.Service)
			reply = TextNACK
			break
		}
		if err := res.Reset(); err != nil {
			p.Log.Tprintf("trn_filt_reinit,%f,[%s:%s],%v", msgTime, peer.CHost, peer.Service, err)
			reply = TextNACK
		} else {
			p.Log.Tprintf("trn_filt_reinit,%f,[%s:%s],0", msgTime, peer.CHost, peer.Service)
			reply = TextACK
		}

	default:
		reply = TextNACK
	}

	n, err := sendPeer(p, peer, textReply(reply))
	if err != nil {
		p.Stats.IncEProtoHnd()
		return 0, err
	}
	return n, nil
}

// PubDefault is the publish callback shared by the MB and TRNU ports:
// datagram sendto for UDP subscribers, stream send for TCP.
func PubDefault(p *netif.Port, peer *sock.Connection, data []byte) (int, error) {
	if p.CType == sock.UDP {
		return p.Socket.SendTo(peer.Addr, data)
	}
	if peer.Sock == nil {
		return 0, sock.ErrNotConnected
	}
	return peer.Sock.Send(data)
}
