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
		Name:  "mcsub",
		Usage: "Multicast group subscriber with unicast PNG replies.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: mcast.DefaultGroup, Usage: "Multicast group address."},
			&cli.IntFlag{Name: "port", Value: mcast.DefaultPort, Usage: "Multicast port."},
			&cli.StringFlag{Name: "mcast-if", Usage: "Multicast interface address."},
			&cli.BoolFlag{Name: "unidir", Usage: "Do not reply to publisher messages."},
			&cli.BoolFlag{Name: "lcm", Usage: "Expect LCM-compatible envelopes."},
			&cli.IntFlag{Name: "delay", Value: 2, Usage: "Read deadline in seconds."},
			&cli.IntFlag{Name: "cycles", Value: -1, Usage: "Read cycles; -1 runs until interrupted."},
		},
		Action: func(cCtx *cli.Context) error {
			sub := mcast.NewSubscriber(mcast.Config{
				Group:  cCtx.String("addr"),
				Port:   cCtx.Int("port"),
				IfAddr: cCtx.String("mcast-if"),
				Bidir:  !cCtx.Bool("unidir"),
				LCM:    cCtx.Bool("lcm"),
				Delay:  time.Duration(cCtx.Int("delay")) * time.Second,
				Cycles: cCtx.Int("cycles"),
			})

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			go func() {
				<-sig
				sub.Stop()
			}()

			return sub.Run()
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
