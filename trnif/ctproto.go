package trnif

import (
	"time"

	"github.com/sixy6e/go-mbtrn/netif"
	"github.com/sixy6e/go-mbtrn/sock"
)

// Default chunked-read policy for the commsT protocol. The writer chunks
// blobs with no sync mechanism, so the reader polls the remainder for a
// bounded interval once any bytes arrive.
const (
	DefaultCTRetries = 40
	DefaultCTDelay   = 10 * time.Millisecond
)

// CTReaderConfig tunes the commsT chunked reader.
type CTReaderConfig struct {
	MsgSize int
	Retries int
	Delay   time.Duration
}

// NewCTReader returns a netif read callback collecting one commsT blob.
// If the first non-blocking read yields nothing the cycle is idle; once any
// bytes arrive the remainder is polled until the blob completes or the
// retries expire. A short blob is returned as-is for the handler to reject.
func NewCTReader(cfg CTReaderConfig) netif.ReadFn {
	if cfg.MsgSize <= 0 {
		cfg.MsgSize = CTMsgSize
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultCTRetries
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultCTDelay
	}
	return func(p *netif.Port, peer *sock.Connection) ([]byte, error) {
		if peer.Sock == nil {
			return nil, nil
		}
		buf := make([]byte, cfg.MsgSize)
		total := 0
		for retries := 0; retries < cfg.Retries && total < len(buf); retries++ {
			n, err := peer.Sock.Recv(buf[total:])
			if n > 0 {
				total += n
				continue
			}
			if err != nil && !sock.IsNoData(err) {
				p.Stats.IncEProtoRd()
				return buf[:total], err
			}
			if total == 0 {
				// nothing pending this cycle
				return nil, nil
			}
			time.Sleep(cfg.Delay)
		}
		return buf[:total], nil
	}
}

func etime() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func sendPeer(p *netif.Port, peer *sock.Connection, buf []byte) (int, error) {
	if peer.Sock != nil {
		return peer.Sock.Send(buf)
	}
	return p.Socket.SendTo(peer.Addr, buf)
}

var ensembleCount int

// HandleCT decodes one commsT blob, drives the TRN filter and replies.
// The reply is the updated message for MEAS/MLE/MMSE, an ACK carrying a
// status parameter for queries, and a NACK for unsupported types. A send
// failure surfaces so the port loop can evict the peer.
func HandleCT(p *netif.Port, peer *sock.Connection, msg []byte) (int, error) {
	trn, ok := p.Resource.(TRN)
	if !ok {
		return 0, ErrNoResource
	}
	ct, err := UnserializeCT(msg)
	if err != nil {
		p.Stats.IncEProtoHnd()
		return 0, err
	}

	msgTime := etime()
	var reply *CommsT

	switch ct.MsgType {
	case MsgInit:
		trn.Initialize(ct)
		if trn.IsInitialized() {
			reply = NewTypeCT(MsgAck, 0)
			p.Log.Tprintf("trn_init_ack,[%s:%s]", peer.CHost, peer.Service)
		} else {
			reply = NewTypeCT(MsgNack, 0)
			p.Log.Tprintf("trn_init_nack,[%s:%s]", peer.CHost, peer.Service)
		}
		p.Log.Tprintf("trn_init,%f,[%s:%s]", msgTime, peer.CHost, peer.Service)

	case MsgMeas:
		trn.MeasUpdate(&ct.Meas, ct.Parameter)
		reply = ct
		p.Log.Tprintf("trn_meas,%f,[%s:%s]", msgTime, peer.CHost, peer.Service)

	case MsgMotn:
		trn.MotionUpdate(&ct.Pose)
		reply = NewTypeCT(MsgAck, 0)
		p.Log.Tprintf("trn_motn,%f,[%s:%s]", msgTime, peer.CHost, peer.Service)

	case MsgMLE:
		trn.EstimatePose(&ct.Pose, PoseMLE)
		reply = ct
		p.Log.Tprintf("trn_mle,%f,[%s:%s]", msgTime, peer.CHost, peer.Service)

	case MsgMMSE:
		trn.EstimatePose(&ct.Pose, PoseMMSE)
		reply = ct
		ensembleCount++
		p.Log.Tprintf("trn_mmse,%f,%d,[%s:%s]", msgTime, ensembleCount, peer.CHost, peer.Service)

	case MsgLastMeas:
		reply = NewTypeCT(MsgAck, b2i(trn.LastMeasSuccessful()))
		p.Log.Tprintf("trn_lms,%f,%d,[%s:%s]", msgTime, reply.Parameter, peer.CHost, peer.Service)

	case MsgNReinits:
		reply = NewTypeCT(MsgAck, trn.NumReinits())
		p.Log.Tprintf("trn_n_reinits,%f,[%s:%s]", msgTime, peer.CHost, peer.Service)

	case MsgFiltType:
		reply = NewTypeCT(MsgAck, trn.FilterType())
		p.Log.Tprintf("trn_ftype,%f,[%s:%s]", msgTime, peer.CHost, peer.Service)

	case MsgFiltState:
		reply = NewTypeCT(MsgAck, trn.FilterState())
		p.Log.Tprintf("trn_fstate,%f,[%s:%s]", msgTime, peer.CHost, peer.Service)

	case MsgOutMeas:
		reply = NewTypeCT(MsgAck, b2i(trn.OutstandingMeas()))
		p.Log.Tprintf("trn_out_meas,%f,%d,[%s:%s]", msgTime, reply.Parameter, peer.CHost, peer.Service)

	case MsgIsConv:
		reply = NewTypeCT(MsgAck, b2i(trn.IsConverged()))
		p.Log.Tprintf("trn_is_conv,%f,%d,[%s:%s]", msgTime, reply.Parameter, peer.CHost, peer.Service)

	case MsgIsInit:
		reply = NewTypeCT(MsgAck, b2i(trn.IsInitialized()))
		p.Log.Tprintf("trn_is_init,%f,%d,[%s:%s]", msgTime, reply.Parameter, peer.CHost, peer.Service)

	case MsgFiltReinit:
		trn.ReinitFilter(true)
		reply = NewTypeCT(MsgAck, 0)
		p.Log.Tprintf("trn_filt_reinit,%f,[%s:%s]", msgTime, peer.CHost, peer.Service)

	case MsgSetMW:
		trn.SetModifiedWeighting(ct.Parameter)
		reply = NewTypeCT(MsgAck, 0)
		p.Log.Tprintf("trn_set_mw,%f,%d,[%s:%s]", msgTime, ct.Parameter, peer.CHost, peer.Service)

	case MsgSetFR:
		trn.SetFilterReinit(ct.Parameter != 0)
		reply = NewTypeCT(MsgAck, 0)
		p.Log.Tprintf("trn_set_fr,%f,%d,[%s:%s]", msgTime, ct.Parameter, peer.CHost, peer.Service)

	case MsgSetIMA:
		trn.SetInterpMeasAttitude(ct.Parameter != 0)
		reply = NewTypeCT(MsgAck, 0)
		p.Log.Tprintf("trn_set_ima,%f,%d,[%s:%s]", msgTime, ct.Parameter, peer.CHost, peer.Service)

	case MsgSetMIM:
		trn.SetMapInterpMethod(ct.Parameter)
		reply = NewTypeCT(MsgAck, 0)
		p.Log.Tprintf("trn_set_mim,%f,%d,[%s:%s]", msgTime, ct.Parameter, peer.CHost, peer.Service)

	case MsgSetVDR:
		trn.SetVehicleDriftRate(ct.VDR)
		reply = NewTypeCT(MsgAck, 0)
		p.Log.Tprintf("trn_set_vdr,%f,%f,[%s:%s]", msgTime, ct.VDR, peer.CHost, peer.Service)

	case MsgFiltGrd:
		if ct.Parameter == 0 {
			trn.UseHighgradeFilter()
		} else {
			trn.UseLowgradeFilter()
		}
		reply = NewTypeCT(MsgAck, 0)
		p.Log.Tprintf("trn_set_filtgrd,%f,%d,[%s:%s]", msgTime, ct.Parameter, peer.CHost, peer.Service)

	case MsgPing:
		reply = NewTypeCT(MsgAck, 0)
		p.Log.Tprintf("trn_ping_ACK,%f,[%s:%s]", msgTime, peer.CHost, peer.Service)

	default:
		reply = NewTypeCT(MsgNack, 0)
		p.Stats.IncEProtoHnd()
	}

	out, err := reply.Serialize(len(msg))
	if err != nil {
		p.Stats.IncEProtoHnd()
		return 0, err
	}
	n, err := sendPeer(p, peer, out)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
