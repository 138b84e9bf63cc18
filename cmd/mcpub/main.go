package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sixy6e/go-mbtrn/mcast"
)

func main() {
	app := &cli.App{
		Name:  "mcpub",
		Usage: "Multicast group publisher with bidirectional PNG/ACK.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: mcast.DefaultGroup, Usage: "Multicast group address."},
			&cli.IntFlag{Name: "port", Value: mcast.DefaultPort, Usage: "Multicast port."},
			&cli.StringFlag{Name: "mcast-if", Usage: "Multicast interface address."},
			&cli.IntFlag{Name: "ttl", Value: mcast.DefaultTTL, Usage: "Multicast TTL."},
			&cli.BoolFlag{Name: "no-loopback", Usage: "Disable multicast loopback."},
			&cli.BoolFlag{Name: "bind", Usage: "Bind the publisher socket to the group port."},
			&cli.BoolFlag{Name: "unidir", Usage: "Unidirectional (multicast pub to sub only)."},
			&cli.BoolFlag{Name: "lcm", Usage: "LCM-compatible envelope (not fully compliant)."},
			&cli.IntFlag{Name: "delay", Value: 2, Usage: "Seconds between messages."},
			&cli.IntFlag{Name: "cycles", Value: -1, Usage: "Messages to publish; -1 runs until interrupted."},
		},
		Action: func(cCtx *cli.Context) error {
			pub := mcast.NewPublisher(mcast.Config{
				Group:    cCtx.String("addr"),
				Port:     cCtx.Int("port"),
				IfAddr:   cCtx.String("mcast-if"),
				TTL:      cCtx.Int("ttl"),
				Loopback: !cCtx.Bool("no-loopback"),
				Bind:     cCtx.Bool("bind"),
				Bidir:    !cCtx.Bool("unidir"),
				LCM:      cCtx.Bool("lcm"),
				Delay:    time.Duration(cCtx.Int("delay")) * time.Second,
				Cycles:   cCtx.Int("cycles"),
			})

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			go func() {
				<-sig
				pub.Stop()
			}()

			return pub.Run()
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
