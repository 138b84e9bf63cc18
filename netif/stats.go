package netif

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Per-port counters are exported to prometheus labelled by port name, and
// mirrored in a plain Profile for the session log and Show output.

var (
	pmCliConn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mbtrn_netif_client_connects_total",
		Help: "Peers admitted to the port's connection list.",
	}, []string{"port"})
	pmCliDisn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mbtrn_netif_client_disconnects_total",
		Help: "Peers evicted (heartbeat expiry or send failure).",
	}, []string{"port"})
	pmRxBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mbtrn_netif_rx_bytes_total",
		Help: "Message bytes read from peers.",
	}, []string{"port"})
	pmTxBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mbtrn_netif_tx_bytes_total",
		Help: "Bytes published or replied to peers.",
	}, []string{"port"})
	pmPubN = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mbtrn_netif_publish_total",
		Help: "Successful per-peer publish calls.",
	}, []string{"port"})
	pmEProtoRd = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mbtrn_netif_proto_read_errors_total",
		Help: "Protocol errors detected while framing reads.",
	}, []string{"port"})
	pmEProtoHnd = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mbtrn_netif_proto_handle_errors_total",
		Help: "Protocol errors detected while handling messages.",
	}, []string{"port"})
	pmCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mbtrn_netif_cycles_total",
		Help: "Main loop iterations.",
	}, []string{"port"})
	pmCliListLen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mbtrn_netif_clients",
		Help: "Current connection list length.",
	}, []string{"port"})
)

// Profile is the per-port stats mirror.
type Profile struct {
	port string

	CliConn   uint64
	CliDisn   uint64
	RxBytes   uint64
	TxBytes   uint64
	PubN      uint64
	PubBytes  uint64
	EProtoRd  uint64
	EProtoHnd uint64
	Cycles    uint64
}

func newProfile(port string) *Profile {
	return &Profile{port: port}
}

func (p *Profile) IncCliConn() {
	p.CliConn++
	pmCliConn.WithLabelValues(p.port).Inc()
}

func (p *Profile) IncCliDisn() {
	p.CliDisn++
	pmCliDisn.WithLabelValues(p.port).Inc()
}

func (p *Profile) AddRx(n int) {
	p.RxBytes += uint64(n)
	pmRxBytes.WithLabelValues(p.port).Add(float64(n))
}

func (p *Profile) AddTx(n int) {
	p.TxBytes += uint64(n)
	pmTxBytes.WithLabelValues(p.port).Add(float64(n))
}

func (p *Profile) AddPub(n int) {
	p.PubN++
	p.PubBytes += uint64(n)
	pmPubN.WithLabelValues(p.port).Inc()
	pmTxBytes.WithLabelValues(p.port).Add(float64(n))
}

func (p *Profile) IncEProtoRd() {
	p.EProtoRd++
	pmEProtoRd.WithLabelValues(p.port).Inc()
}

func (p *Profile) IncEProtoHnd() {
	p.EProtoHnd++
	pmEProtoHnd.WithLabelValues(p.port).Inc()
}

func (p *Profile) IncCycle() {
	p.Cycles++
	pmCycles.WithLabelValues(p.port).Inc()
}

func (p *Profile) SetClients(n int) {
	pmCliListLen.WithLabelValues(p.port).Set(float64(n))
}

// Show writes the counter summary to w.
func (p *Profile) Show(w io.Writer, indent int) {
	pad := fmt.Sprintf("%*s", indent, "")
	fmt.Fprintf(w, "%scli_con    %d\n", pad, p.CliConn)
	fmt.Fprintf(w, "%scli_dis    %d\n", pad, p.CliDisn)
	fmt.Fprintf(w, "%srx_bytes   %d\n", pad, p.RxBytes)
	fmt.Fprintf(w, "%stx_bytes   %d\n", pad, p.TxBytes)
	fmt.Fprintf(w, "%spub_n      %d\n", pad, p.PubN)
	fmt.Fprintf(w, "%spub_bytes  %d\n", pad, p.PubBytes)
	fmt.Fprintf(w, "%seproto_rd  %d\n", pad, p.EProtoRd)
	fmt.Fprintf(w, "%seproto_hnd %d\n", pad, p.EProtoHnd)
	fmt.Fprintf(w, "%scycles     %d\n", pad, p.Cycles)
}
