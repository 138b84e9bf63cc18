// Package kvconf reads plain key/value configuration files and fills
// tagged config structs. A file holds one `key = value` pair per line;
// a line whose first non-blank character is '#' is a comment (a '#' later
// in a line is part of the value). Struct fields opt in with a `conf:"key=<name>"`
// tag; untagged fields are left alone.
package kvconf

import (
	"bufio"
	"errors"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"

	stgpsr "github.com/yuin/stagparser"
)

var ErrNotPointer = errors.New("Error Config Destination Not A Struct Pointer")
var ErrBadLine = errors.New("Error Malformed Config Line")
var ErrFieldKind = errors.New("Error Unsupported Config Field Kind")

// Parse reads key/value pairs from r.
func Parse(r io.Reader) (map[string]string, error) {
	vals := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, found := strings.Cut(line, "=")
		if !found {
			return nil, errors.Join(ErrBadLine, errors.New(line))
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		v = strings.Trim(v, `"`)
		vals[k] = v
	}
	return vals, scanner.Err()
}

// Load reads key/value pairs from the file at path.
func Load(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Populate copies vals into cfg, a pointer to a struct whose fields carry
// `conf:"key=<name>"` tags. Keys absent from vals leave the field's current
// value (the default) in place.
func Populate(vals map[string]string, cfg interface{}) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return ErrNotPointer
	}
	defs, err := stgpsr.ParseStruct(rv.Elem().Interface(), "conf")
	if err != nil {
		return err
	}

	values := rv.Elem()
	types := values.Type()
	for i := 0; i < values.NumField(); i++ {
		name := types.Field(i).Name
		var key string
		for _, def := range defs[name] {
			if def.Name() == "key" {
				if attr, ok := def.Attribute("key"); ok {
					key, _ = attr.(string)
				}
			}
		}
		if key == "" {
			continue
		}
		raw, ok := vals[key]
		if !ok {
			continue
		}
		if err := setField(values.Field(i), raw); err != nil {
			return errors.Join(err, errors.New(key))
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(v)
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		field.SetFloat(v)
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(v)
	default:
		return ErrFieldKind
	}
	return nil
}
