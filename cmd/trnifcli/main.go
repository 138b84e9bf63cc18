package main

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sixy6e/go-mbtrn/trnif"
)

// exercise drives one operation against a TRN server and reports the
// reply, cycling as requested.
func exercise(host string, port int, proto, op string, cycles int, delay time.Duration) error {
	switch proto {
	case "ct":
		return exerciseCT(host, port, op, cycles, delay)
	case "trnmsg":
		return exerciseTRNMsg(host, port, op, cycles, delay)
	}
	return errors.New("unknown protocol: " + proto)
}

func exerciseCT(host string, port int, op string, cycles int, delay time.Duration) error {
	cli, err := trnif.DialCT(host, port)
	if err != nil {
		return err
	}
	defer cli.Close()

	for i := 0; i < cycles; i++ {
		var reply *trnif.CommsT
		switch op {
		case "ping":
			if err := cli.Ping(); err != nil {
				return err
			}
			log.Printf("ping ACK [%d/%d]", i+1, cycles)

		case "init":
			reply, err = cli.Transact(trnif.NewTypeCT(trnif.MsgInit, 0))
			if err != nil {
				return err
			}
			log.Printf("init reply[%c]", reply.MsgType)

		case "meas":
			ct := trnif.NewTypeCT(trnif.MsgMeas, 1)
			ct.Meas = trnif.Meas{
				Time:       float64(time.Now().UnixNano()) / 1e9,
				DataType:   1,
				PingNumber: int32(i),
				Ranges:     []float64{50, 51, 52, 53},
				CrossTrack: []float64{-10, -5, 5, 10},
				AlongTrack: []float64{0, 0, 0, 0},
				Altitudes:  []float64{48, 49, 49, 48},
			}
			reply, err = cli.Transact(ct)
			if err != nil {
				return err
			}
			log.Printf("meas reply[%c] nmeas[%d]", reply.MsgType, reply.Meas.NumMeas())

		case "mle", "mmse":
			code := trnif.MsgMLE
			if op == "mmse" {
				code = trnif.MsgMMSE
			}
			reply, err = cli.Transact(trnif.NewTypeCT(code, 0))
			if err != nil {
				return err
			}
			log.Printf("%s reply[%c] pose[%.3f %.3f %.3f]", op, reply.MsgType,
				reply.Pose.X, reply.Pose.Y, reply.Pose.Z)

		case "status":
			for _, q := range []byte{trnif.MsgIsInit, trnif.MsgIsConv, trnif.MsgNReinits, trnif.MsgFiltState} {
				reply, err = cli.Transact(trnif.NewTypeCT(q, 0))
				if err != nil {
					return err
				}
				log.Printf("status %c reply[%c] param[%d]", q, reply.MsgType, reply.Parameter)
			}

		default:
			return errors.New("unknown op: " + op)
		}
		time.Sleep(delay)
	}
	return nil
}

func exerciseTRNMsg(host string, port int, op string, cycles int, delay time.Duration) error {
	cli, err := trnif.DialTRNMsg(host, port)
	if err != nil {
		return err
	}
	defer cli.Close()

	for i := 0; i < cycles; i++ {
		switch op {
		case "ping":
			if err := cli.Ping(); err != nil {
				return err
			}
			log.Printf("ping ACK [%d/%d]", i+1, cycles)

		case "meas":
			meas := &trnif.Meas{
				Time:       float64(time.Now().UnixNano()) / 1e9,
				DataType:   1,
				PingNumber: int32(i),
				Ranges:     []float64{50, 51, 52, 53},
				CrossTrack: []float64{-10, -5, 5, 10},
				AlongTrack: []float64{0, 0, 0, 0},
				Altitudes:  []float64{48, 49, 49, 48},
			}
			msg, merr := trnif.NewMeasMsg(trnif.IDMeas, 1, meas)
			if merr != nil {
				return merr
			}
			reply, terr := cli.Transact(msg)
			if terr != nil {
				return terr
			}
			log.Printf("meas reply id[%d] len[%d]", reply.Hdr.MsgID, reply.Hdr.DataLen)

		default:
			return errors.New("unknown op for trnmsg: " + op)
		}
		time.Sleep(delay)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "trnifcli",
		Usage: "Exercise a TRN server over the commsT or trnmsg protocol.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "Server address."},
			&cli.IntFlag{Name: "port", Value: 27027, Usage: "Server port."},
			&cli.StringFlag{Name: "proto", Value: "ct", Usage: "Protocol: ct or trnmsg."},
			&cli.StringFlag{Name: "op", Value: "ping", Usage: "Operation: ping, init, meas, mle, mmse, status."},
			&cli.IntFlag{Name: "cycles", Value: 1, Usage: "Operation repetitions."},
			&cli.IntFlag{Name: "delay", Value: 500, Usage: "Milliseconds between cycles."},
		},
		Action: func(cCtx *cli.Context) error {
			return exercise(cCtx.String("host"), cCtx.Int("port"), cCtx.String("proto"),
				cCtx.String("op"), cCtx.Int("cycles"),
				time.Duration(cCtx.Int("delay"))*time.Millisecond)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
