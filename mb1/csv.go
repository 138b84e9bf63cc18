package mb1

import (
	"fmt"
	"io"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// CSVHeader writes the column header for CSV export.
func CSVHeader(w io.Writer) error {
	_, err := fmt.Fprintln(w, "ping_number,ts,jd,lat,lon,depth,hdg,nbeams,beam_num,rhox,rhoy,rhoz")
	return err
}

// WriteCSV writes one row per beam for the sounding. The jd column is the
// Julian day of the ping time, for tools that join against ephemeris or
// tide series.
func WriteCSV(w io.Writer, s *Sounding) error {
	sec := int64(s.Ts())
	nsec := int64((s.Ts() - float64(sec)) * 1e9)
	jd := julian.TimeToJD(time.Unix(sec, nsec).UTC())
	for i := 0; i < int(s.NBeams()); i++ {
		b := s.Beam(i)
		_, err := fmt.Fprintf(w, "%d,%.3f,%.6f,%.7f,%.7f,%.3f,%.3f,%d,%d,%.3f,%.3f,%.3f\n",
			s.PingNumber(), s.Ts(), jd, s.Lat(), s.Lon(), s.Depth(), s.Hdg(),
			s.NBeams(), b.BeamNum, b.RhoX, b.RhoY, b.RhoZ)
		if err != nil {
			return err
		}
	}
	return nil
}
