package main

import (
	"errors"
	"io"
	"log"
	"os"
	"strings"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/urfave/cli/v2"

	"github.com/sixy6e/go-mbtrn/archive"
	"github.com/sixy6e/go-mbtrn/byteutil"
	"github.com/sixy6e/go-mbtrn/mb1"
)

// ofmt is the record output selection: any combination of the letters
// H (header), B (beams), X (hex), with A or * selecting everything.
type ofmt struct {
	header bool
	beams  bool
	hex    bool
}

func parseOfmt(s string) ofmt {
	var f ofmt
	for _, c := range strings.ToUpper(s) {
		switch c {
		case 'H':
			f.header = true
		case 'B':
			f.beams = true
		case 'X':
			f.hex = true
		case 'A', '*':
			f.header = true
			f.beams = true
			f.hex = true
		}
	}
	return f
}

func scan(ifile, format, csvFile, archiveURI, configURI string, verbose int) error {
	in, err := os.Open(ifile)
	if err != nil {
		return err
	}
	defer in.Close()

	f := parseOfmt(format)

	var csv *os.File
	if csvFile != "" {
		csv, err = os.OpenFile(csvFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o664)
		if err != nil {
			return err
		}
		defer csv.Close()
		if err = mb1.CSVHeader(csv); err != nil {
			return err
		}
	}

	var rows archive.Soundings

	reader := mb1.NewReader(in)
	reader.Verbose = verbose

	sounding, err := mb1.New(0)
	if err != nil {
		return err
	}
	var total int64
	for {
		n, rerr := reader.Next(sounding)
		total += n
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			if verbose > 0 {
				log.Printf("read failed [%v]", rerr)
			}
			continue
		}

		if f.header || f.beams {
			sounding.Show(os.Stdout, f.beams, 3)
		}
		if f.hex {
			byteutil.HexShow(os.Stdout, sounding.Bytes(), 16, true, 3)
		}
		if csv != nil {
			if err = mb1.WriteCSV(csv, sounding); err != nil {
				return err
			}
		}
		if archiveURI != "" {
			rows.Append(sounding)
		}
	}

	log.Printf("records[%d] checksum_errors[%d] bytes[%d]", reader.Records, reader.ChecksumErrors, total)

	if archiveURI != "" {
		var config *tiledb.Config
		if configURI == "" {
			config, err = tiledb.NewConfig()
		} else {
			config, err = tiledb.LoadConfig(configURI)
		}
		if err != nil {
			return err
		}
		defer config.Free()

		ctx, err := tiledb.NewContext(config)
		if err != nil {
			return err
		}
		defer ctx.Free()

		log.Println("Writing sounding archive:", archiveURI)
		if err = rows.ToTileDB(archiveURI, ctx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "mb1scan",
		Usage: "Read, validate and export MB1 sounding logs.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "ifile",
				Usage: "Pathname of the input MB1 log.",
			},
			&cli.StringFlag{
				Name:  "ofmt",
				Usage: "Record output format: combination of H (header), B (beams), X (hex), A or * (all).",
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Pathname for CSV export (one row per beam).",
			},
			&cli.StringFlag{
				Name:  "archive-uri",
				Usage: "URI or pathname for a TileDB sounding archive.",
			},
			&cli.StringFlag{
				Name:  "config-uri",
				Usage: "URI or pathname to a TileDB config file.",
			},
			&cli.IntFlag{
				Name:  "verbose",
				Usage: "Diagnostic output level.",
			},
		},
		Action: func(cCtx *cli.Context) error {
			return scan(cCtx.String("ifile"), cCtx.String("ofmt"), cCtx.String("csv"),
				cCtx.String("archive-uri"), cCtx.String("config-uri"), cCtx.Int("verbose"))
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
