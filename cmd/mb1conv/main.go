package main

import (
	"errors"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sixy6e/go-mbtrn/mb1"
	"github.com/sixy6e/go-mbtrn/mb71"
)

// convert reads concatenated MB1 records from ifile and writes one MB71
// frame per record to ofile, optionally byteswapped for cross-endian
// consumers.
func convert(ifile, ofile string, bswap bool, verbose int) error {
	if ofile == "" {
		ofile = ifile + ".mb71"
	}

	in, err := os.Open(ifile)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(ofile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o664)
	if err != nil {
		return err
	}
	defer out.Close()

	reader := mb1.NewReader(in)
	reader.Verbose = verbose

	var inputBytes, outputBytes int64
	var recCount, errCount uint32

	sounding, err := mb1.New(0)
	if err != nil {
		return err
	}
	for {
		n, rerr := reader.Next(sounding)
		inputBytes += n
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			errCount++
			if verbose > 0 {
				log.Printf("read failed [%v]", rerr)
			}
			continue
		}
		recCount++

		frame, berr := mb71.BuildFromMB1(sounding)
		if berr != nil {
			errCount++
			continue
		}
		if verbose > 1 {
			frame.Show(os.Stderr, verbose > 2, 3)
		}
		if bswap {
			if serr := frame.Byteswap(nil); serr != nil {
				errCount++
				continue
			}
		}
		wn, werr := out.Write(frame.Bytes())
		if werr != nil {
			return werr
		}
		outputBytes += int64(wn)
	}

	log.Printf("records[%d] errors[%d] in[%d] out[%d]", recCount, errCount, inputBytes, outputBytes)
	return nil
}

func main() {
	app := &cli.App{
		Name:  "mb1conv",
		Usage: "Convert an MB1 sounding log to an MB71 (F71/FBT) file.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "ifile",
				Usage: "Pathname of the input MB1 log.",
			},
			&cli.StringFlag{
				Name:  "ofile",
				Usage: "Pathname of the output file (default is <ifile>.mb71).",
			},
			&cli.BoolFlag{
				Name:  "bswap",
				Usage: "Byteswap output frames.",
			},
			&cli.IntFlag{
				Name:  "verbose",
				Usage: "Diagnostic output level.",
			},
		},
		Action: func(cCtx *cli.Context) error {
			return convert(cCtx.String("ifile"), cCtx.String("ofile"), cCtx.Bool("bswap"), cCtx.Int("verbose"))
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
