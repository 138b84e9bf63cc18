package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alitto/pond"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/sixy6e/go-mbtrn/kvconf"
	"github.com/sixy6e/go-mbtrn/mb1"
	"github.com/sixy6e/go-mbtrn/netif"
	"github.com/sixy6e/go-mbtrn/sock"
	"github.com/sixy6e/go-mbtrn/trnif"
)

// svrConfig collects the server settings; a kvconf file can set any of
// them, and command line flags override.
type svrConfig struct {
	Host      string  `conf:"key=host"`
	CTPort    int     `conf:"key=trn_port"`
	TRNMPort  int     `conf:"key=trnmsg_port"`
	MBPort    int     `conf:"key=mb_port"`
	TRNUPort  int     `conf:"key=trnu_port"`
	HbTimeout float64 `conf:"key=hbto"`
	DelayMs   int     `conf:"key=delay_ms"`
	LogDir    string  `conf:"key=log_dir"`
	Metrics   string  `conf:"key=metrics_addr"`
	IFile     string  `conf:"key=ifile"`
	PubMs     int     `conf:"key=pub_ms"`
	Verbose   int     `conf:"key=verbose"`
}

func defaultConfig() svrConfig {
	return svrConfig{
		Host:      "localhost",
		CTPort:    27027,
		TRNMPort:  27028,
		MBPort:    27000,
		TRNUPort:  27341,
		HbTimeout: 15.0,
		DelayMs:   50,
		LogDir:    ".",
		PubMs:     400,
	}
}

// runPubPort drives a publish-mode port: the same goroutine services the
// discovery path, the control channel, and the record fanout, so the peer
// list stays single-owner. Records stream from path, rewinding at end of
// file; an empty path leaves the port in control-only mode.
func runPubPort(port *netif.Port, path string, loopDelay, pubDelay time.Duration) error {
	if port.Log == nil {
		if err := port.InitLog(""); err != nil {
			return err
		}
	}
	port.Log.Tprintf("*** netif session start ***")
	if err := port.Connect(); err != nil {
		port.Log.Tprintf("connect failed [%v]", err)
		port.Log.Tprintf("*** netif session end ***")
		return err
	}

	var src *os.File
	var reader *mb1.Reader
	sounding, _ := mb1.New(0)
	next := time.Now()

	for !port.Stopped() {
		port.UpdateConnections()
		port.ReqRes()

		if path != "" && time.Now().After(next) {
			if src == nil {
				f, err := os.Open(path)
				if err != nil {
					port.Log.Tprintf("pub open failed [%v]", err)
					path = ""
					continue
				}
				src = f
				reader = mb1.NewReader(f)
			}
			_, rerr := reader.Next(sounding)
			switch {
			case errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF):
				src.Close()
				src = nil
			case rerr != nil:
				// skip the bad record
			default:
				if wire, serr := sounding.Serialize(); serr == nil {
					_ = port.Pub(wire)
				}
			}
			next = time.Now().Add(pubDelay)
		}
		time.Sleep(loopDelay)
	}
	if src != nil {
		src.Close()
	}
	port.Log.Tprintf("*** netif session end ***")
	return nil
}

func serve(cfg svrConfig) error {
	trn := newNavEngine()

	ctReader := trnif.NewCTReader(trnif.CTReaderConfig{})
	ports := []*netif.Port{}

	ctPort := netif.New("trnsvr", cfg.Host, cfg.CTPort, sock.TCP, netif.ModeReqRes, cfg.HbTimeout)
	ctPort.Read = ctReader
	ctPort.Handle = trnif.HandleCT
	ctPort.Resource = trn
	ports = append(ports, ctPort)

	trnmPort := netif.New("trnmsvr", cfg.Host, cfg.TRNMPort, sock.TCP, netif.ModeReqRes, cfg.HbTimeout)
	trnmPort.Read = trnif.ReadTRNMsg
	trnmPort.Handle = trnif.HandleTRNMsg
	trnmPort.Resource = trn
	ports = append(ports, trnmPort)

	mbPort := netif.New("mbpub", cfg.Host, cfg.MBPort, sock.UDP, netif.ModePub, cfg.HbTimeout)
	mbPort.Read = trnif.ReadText
	mbPort.Handle = trnif.HandleMB
	mbPort.Publish = trnif.PubDefault
	ports = append(ports, mbPort)

	trnuPort := netif.New("trnusvr", cfg.Host, cfg.TRNUPort, sock.UDP, netif.ModePub, cfg.HbTimeout)
	trnuPort.Read = trnif.ReadText
	trnuPort.Handle = trnif.HandleTRNU
	trnuPort.Publish = trnif.PubDefault
	trnuPort.Resource = &trnif.ResetResource{Reset: func() error {
		trn.ReinitFilter(true)
		return nil
	}}
	ports = append(ports, trnuPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if cfg.Metrics != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics, nil); err != nil {
				log.Printf("metrics listener failed [%v]", err)
			}
		}()
	}

	// one worker per port loop
	pool := pond.New(len(ports), 0, pond.MinWorkers(len(ports)), pond.Context(ctx))

	delay := time.Duration(cfg.DelayMs) * time.Millisecond
	pubDelay := time.Duration(cfg.PubMs) * time.Millisecond
	for _, p := range ports {
		port := p
		port.LogDir = cfg.LogDir
		port.Verbose = cfg.Verbose
		pool.Submit(func() {
			var err error
			if port == mbPort {
				err = runPubPort(port, cfg.IFile, delay, pubDelay)
			} else {
				err = port.Start(delay)
			}
			if err != nil {
				log.Printf("port %s failed [%v]", port.Name, err)
			}
		})
	}

	<-ctx.Done()
	log.Println("stopping")
	for _, p := range ports {
		p.Stop("signal")
	}
	pool.StopAndWait()
	for _, p := range ports {
		_ = p.Close()
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "trnifsvr",
		Usage: "Host the TRN request/response and MB publish ports.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Pathname of a key/value config file."},
			&cli.StringFlag{Name: "host", Usage: "Bind address for all ports."},
			&cli.IntFlag{Name: "trn-port", Usage: "commsT TCP port."},
			&cli.IntFlag{Name: "trnmsg-port", Usage: "trnmsg TCP port."},
			&cli.IntFlag{Name: "mb-port", Usage: "MB1 publish UDP port."},
			&cli.IntFlag{Name: "trnu-port", Usage: "TRN update UDP port."},
			&cli.Float64Flag{Name: "hbto", Usage: "Peer heartbeat timeout in seconds; <= 0 disables expiry."},
			&cli.IntFlag{Name: "delay", Usage: "Main loop delay in milliseconds."},
			&cli.StringFlag{Name: "logdir", Usage: "Session log directory."},
			&cli.StringFlag{Name: "metrics", Usage: "Prometheus listen address (e.g. :9100)."},
			&cli.StringFlag{Name: "ifile", Usage: "MB1 log to stream to publish subscribers."},
			&cli.IntFlag{Name: "verbose", Usage: "Diagnostic output level."},
		},
		Action: func(cCtx *cli.Context) error {
			cfg := defaultConfig()
			if path := cCtx.String("config"); path != "" {
				vals, err := kvconf.Load(path)
				if err != nil {
					return err
				}
				if err := kvconf.Populate(vals, &cfg); err != nil {
					return err
				}
			}
			if cCtx.IsSet("host") {
				cfg.Host = cCtx.String("host")
			}
			if cCtx.IsSet("trn-port") {
				cfg.CTPort = cCtx.Int("trn-port")
			}
			if cCtx.IsSet("trnmsg-port") {
				cfg.TRNMPort = cCtx.Int("trnmsg-port")
			}
			if cCtx.IsSet("mb-port") {
				cfg.MBPort = cCtx.Int("mb-port")
			}
			if cCtx.IsSet("trnu-port") {
				cfg.TRNUPort = cCtx.Int("trnu-port")
			}
			if cCtx.IsSet("hbto") {
				cfg.HbTimeout = cCtx.Float64("hbto")
			}
			if cCtx.IsSet("delay") {
				cfg.DelayMs = cCtx.Int("delay")
			}
			if cCtx.IsSet("logdir") {
				cfg.LogDir = cCtx.String("logdir")
			}
			if cCtx.IsSet("metrics") {
				cfg.Metrics = cCtx.String("metrics")
			}
			if cCtx.IsSet("ifile") {
				cfg.IFile = cCtx.String("ifile")
			}
			if cCtx.IsSet("verbose") {
				cfg.Verbose = cCtx.Int("verbose")
			}
			return serve(cfg)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
