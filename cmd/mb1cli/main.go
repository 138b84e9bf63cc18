package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sixy6e/go-mbtrn/mb1"
	"github.com/sixy6e/go-mbtrn/sock"
	"github.com/sixy6e/go-mbtrn/trnif"
)

// subscribe connects to an MB publish port, requests the stream, keeps
// the heartbeat alive and sinks received soundings to a log and/or CSV.
func subscribe(host string, port, cycles int, ofile, csvFile string, hbtSec, verbose int) error {
	s, err := sock.New(host, port, sock.UDP)
	if err != nil {
		return err
	}
	if err := s.Connect(); err != nil {
		return err
	}
	defer s.Close()

	var out, csv *os.File
	if ofile != "" {
		if out, err = os.OpenFile(ofile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o664); err != nil {
			return err
		}
		defer out.Close()
	}
	if csvFile != "" {
		if csv, err = os.OpenFile(csvFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o664); err != nil {
			return err
		}
		defer csv.Close()
		if err = mb1.CSVHeader(csv); err != nil {
			return err
		}
	}

	// subscribe: the connect message admits us to the publisher's list
	if _, err := s.Send(append([]byte(trnif.TextCON), 0)); err != nil {
		return err
	}

	hbt := time.Duration(hbtSec) * time.Second
	nextHbt := time.Now().Add(hbt)
	s.SetBlocking(false)

	buf := make([]byte, mb1.FrameBytes(mb1.MaxBeams)+64)
	var records, badFrames uint32
	for cycles < 0 || int(records) < cycles {
		n, rerr := s.Recv(buf)
		if n <= 0 {
			if rerr != nil && !sock.IsNoData(rerr) {
				return rerr
			}
			if time.Now().After(nextHbt) {
				if _, err := s.Send(append([]byte(trnif.TextHBT), 0)); err != nil {
					return err
				}
				nextHbt = time.Now().Add(hbt)
				if verbose > 0 {
					log.Println("HBT sent")
				}
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}

		// control replies (ACK/NACK) are short; everything else is a frame
		if n < mb1.HeaderBytes {
			if verbose > 1 {
				log.Printf("ctl msg[%q]", buf[:n])
			}
			continue
		}

		frame := append([]byte(nil), buf[:n]...)
		sounding, ferr := mb1.FromBytes(frame)
		if ferr != nil {
			badFrames++
			if verbose > 0 {
				log.Printf("bad frame [%v]", ferr)
			}
			continue
		}
		if verr := sounding.ValidateChecksum(); verr != nil && verbose > 0 {
			log.Printf("checksum mismatch ping[%d]", sounding.PingNumber())
		}
		records++

		if verbose > 1 {
			sounding.Show(os.Stderr, verbose > 2, 3)
		}
		if out != nil {
			if _, err := out.Write(frame); err != nil {
				return err
			}
		}
		if csv != nil {
			if err := mb1.WriteCSV(csv, sounding); err != nil {
				return err
			}
		}
	}

	log.Printf("records[%d] bad_frames[%d]", records, badFrames)
	return nil
}

func main() {
	app := &cli.App{
		Name:  "mb1cli",
		Usage: "Subscribe to an MB1 publish port and sink the sounding stream.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "Publisher address."},
			&cli.IntFlag{Name: "port", Value: 27000, Usage: "Publisher UDP port."},
			&cli.IntFlag{Name: "cycles", Value: -1, Usage: "Records to collect; -1 runs until interrupted."},
			&cli.StringFlag{Name: "ofile", Usage: "Pathname for the raw MB1 record log."},
			&cli.StringFlag{Name: "csv", Usage: "Pathname for CSV export."},
			&cli.IntFlag{Name: "hbt", Value: 5, Usage: "Heartbeat interval in seconds."},
			&cli.IntFlag{Name: "verbose", Usage: "Diagnostic output level."},
		},
		Action: func(cCtx *cli.Context) error {
			return subscribe(cCtx.String("host"), cCtx.Int("port"), cCtx.Int("cycles"),
				cCtx.String("ofile"), cCtx.String("csv"), cCtx.Int("hbt"), cCtx.Int("verbose"))
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
