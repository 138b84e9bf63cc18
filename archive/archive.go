// Package archive persists sounding streams to TileDB arrays for offline
// analysis. One array row is one beam, carrying its ping's header fields,
// so the archive can be queried without re-parsing MB1 logs.
package archive

import (
	"errors"
	"math"
	"reflect"
	"time"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"

	"github.com/sixy6e/go-mbtrn/mb1"
)

var ErrCreateSoundingTdb = errors.New("Error Creating Sounding TileDB Array")
var ErrWriteSoundingTdb = errors.New("Error Writing Sounding TileDB Array")
var ErrCreateAttributeTdb = errors.New("Error Creating Attribute For TileDB Array")
var ErrAttrDtype = errors.New("Error Attribute Datatype Is Unexpected")
var ErrEmptyArchive = errors.New("Error No Soundings Collected")

const rowsDim = "__tiledb_rows"

// Soundings accumulates ping records as parallel columns, one row per
// beam.
type Soundings struct {
	Timestamp  []time.Time `tiledb:"dtype=datetime_ns,ftype=attr" filters:"zstd(level=16)"`
	Latitude   []float64   `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	Longitude  []float64   `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	Depth      []float64   `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	Heading    []float64   `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	PingNumber []int32     `tiledb:"dtype=int32,ftype=attr" filters:"zstd(level=16)"`
	BeamNumber []uint32    `tiledb:"dtype=uint32,ftype=attr" filters:"zstd(level=16)"`
	RhoX       []float64   `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	RhoY       []float64   `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	RhoZ       []float64   `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
}

// Append adds every beam of the sounding as archive rows.
func (a *Soundings) Append(s *mb1.Sounding) {
	sec := int64(s.Ts())
	nsec := int64((s.Ts() - float64(sec)) * 1e9)
	ts := time.Unix(sec, nsec).UTC()
	for i := 0; i < int(s.NBeams()); i++ {
		b := s.Beam(i)
		a.Timestamp = append(a.Timestamp, ts)
		a.Latitude = append(a.Latitude, s.Lat())
		a.Longitude = append(a.Longitude, s.Lon())
		a.Depth = append(a.Depth, s.Depth())
		a.Heading = append(a.Heading, s.Hdg())
		a.PingNumber = append(a.PingNumber, s.PingNumber())
		a.BeamNumber = append(a.BeamNumber, b.BeamNum)
		a.RhoX = append(a.RhoX, b.RhoX)
		a.RhoY = append(a.RhoY, b.RhoY)
		a.RhoZ = append(a.RhoZ, b.RhoZ)
	}
}

// Len returns the number of accumulated rows.
func (a *Soundings) Len() int { return len(a.Timestamp) }

// zstdFilter initialises the Zstandard compression filter with the given
// level.
func zstdFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_ZSTD)
	if err != nil {
		return nil, err
	}
	err = filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level)
	if err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// createAttr adds one struct field as an array attribute, with a zstd
// level 16 filter; the field's filters tag is not read.
func createAttr(name string, dtype string, schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	var tdbType tiledb.Datatype
	switch dtype {
	case "datetime_ns":
		tdbType = tiledb.TILEDB_DATETIME_NS
	case "float64":
		tdbType = tiledb.TILEDB_FLOAT64
	case "int32":
		tdbType = tiledb.TILEDB_INT32
	case "uint32":
		tdbType = tiledb.TILEDB_UINT32
	default:
		return ErrAttrDtype
	}

	attr, err := tiledb.NewAttribute(ctx, name, tdbType)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}
	defer attr.Free()

	filtList, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}
	defer filtList.Free()

	filt, err := zstdFilter(ctx, int32(16))
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}
	defer filt.Free()

	err = filtList.AddFilter(filt)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}
	err = attr.SetFilterList(filtList)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}

	err = schema.AddAttributes(attr)
	if err != nil {
		return errors.Join(ErrCreateAttributeTdb, err)
	}
	return nil
}

// schemaAttrs establishes the tiledb attributes from the Soundings struct
// tags.
func (a *Soundings) schemaAttrs(schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	values := reflect.ValueOf(a).Elem()
	types := values.Type()
	tdbDefs, err := stgpsr.ParseStruct(*a, "tiledb")
	if err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}

	for i := 0; i < values.NumField(); i++ {
		name := types.Field(i).Name
		fieldDefs := make(map[string]stgpsr.Definition)
		for _, v := range tdbDefs[name] {
			fieldDefs[v.Name()] = v
		}

		def, ok := fieldDefs["ftype"]
		if !ok {
			return errors.Join(ErrCreateSoundingTdb, errors.New("ftype tag not found"))
		}
		ftype, _ := def.Attribute("ftype")
		if ftype == "dim" {
			continue
		}

		dtypeDef, ok := fieldDefs["dtype"]
		if !ok {
			return errors.Join(ErrCreateSoundingTdb, errors.New("dtype tag not found"))
		}
		dtypeAttr, _ := dtypeDef.Attribute("dtype")
		dtype, _ := dtypeAttr.(string)

		if err := createAttr(name, dtype, schema, ctx); err != nil {
			return errors.Join(ErrCreateSoundingTdb, err)
		}
	}
	return nil
}

// soundingArray establishes the dense schema and creates the array. Rows
// are the queryable dimension; whole-archive reads are the expected access
// pattern.
func (a *Soundings) soundingArray(uri string, ctx *tiledb.Context, nrows uint64) error {
	tileSz := uint64(math.Min(float64(50000), float64(nrows)))

	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}
	defer domain.Free()

	dim, err := tiledb.NewDimension(ctx, rowsDim, tiledb.TILEDB_UINT64, []uint64{0, nrows - 1}, tileSz)
	if err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}
	defer dim.Free()

	dimFilters, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}
	defer dimFilters.Free()

	dimF1, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_POSITIVE_DELTA)
	if err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}
	defer dimF1.Free()

	dimF2, err := zstdFilter(ctx, int32(16))
	if err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}
	defer dimF2.Free()

	for _, f := range []*tiledb.Filter{dimF1, dimF2} {
		if err = dimFilters.AddFilter(f); err != nil {
			return errors.Join(ErrCreateSoundingTdb, err)
		}
	}
	if err = dim.SetFilterList(dimFilters); err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}
	if err = domain.AddDimensions(dim); err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}

	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}
	defer schema.Free()

	if err = schema.SetDomain(domain); err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}
	if err = schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}
	if err = schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}

	if err = a.schemaAttrs(schema, ctx); err != nil {
		return err
	}

	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}
	defer array.Free()

	if err = array.Create(schema); err != nil {
		return errors.Join(ErrCreateSoundingTdb, err)
	}
	return nil
}

// ToTileDB writes the accumulated rows to a dense TileDB array at uri.
// Column structure:
// [__tiledb_rows (dim), timestamp, lat, lon, depth, heading, ping_number,
// beam_number, rhox, rhoy, rhoz (attrs)].
func (a *Soundings) ToTileDB(uri string, ctx *tiledb.Context) error {
	nrows := uint64(a.Len())
	if nrows == 0 {
		return ErrEmptyArchive
	}
	if err := a.soundingArray(uri, ctx, nrows); err != nil {
		return err
	}

	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return errors.Join(ErrWriteSoundingTdb, err)
	}
	defer array.Free()

	if err = array.Open(tiledb.TILEDB_WRITE); err != nil {
		return errors.Join(ErrWriteSoundingTdb, err)
	}
	defer array.Close()

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return errors.Join(ErrWriteSoundingTdb, err)
	}
	defer query.Free()

	if err = query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return errors.Join(ErrWriteSoundingTdb, err)
	}

	tempData := make([]int64, nrows)
	for i := uint64(0); i < nrows; i++ {
		tempData[i] = a.Timestamp[i].UnixNano()
	}
	buffers := map[string]interface{}{
		"Timestamp":  tempData,
		"Latitude":   a.Latitude,
		"Longitude":  a.Longitude,
		"Depth":      a.Depth,
		"Heading":    a.Heading,
		"PingNumber": a.PingNumber,
		"BeamNumber": a.BeamNumber,
		"RhoX":       a.RhoX,
		"RhoY":       a.RhoY,
		"RhoZ":       a.RhoZ,
	}
	for name, buf := range buffers {
		if _, err = query.SetDataBuffer(name, buf); err != nil {
			return errors.Join(ErrWriteSoundingTdb, err)
		}
	}

	subarr, err := array.NewSubarray()
	if err != nil {
		return errors.Join(ErrWriteSoundingTdb, err)
	}
	defer subarr.Free()

	rng := tiledb.MakeRange(uint64(0), nrows-1)
	if err = subarr.AddRangeByName(rowsDim, rng); err != nil {
		return errors.Join(ErrWriteSoundingTdb, err)
	}
	if err = query.SetSubarray(subarr); err != nil {
		return errors.Join(ErrWriteSoundingTdb, err)
	}

	if err = query.Submit(); err != nil {
		return errors.Join(ErrWriteSoundingTdb, err)
	}
	if err = query.Finalize(); err != nil {
		return errors.Join(ErrWriteSoundingTdb, err)
	}
	return nil
}
