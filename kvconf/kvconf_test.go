package kvconf

import (
	"strings"
	"testing"
)

type testConfig struct {
	Host    string  `conf:"key=host"`
	Port    int     `conf:"key=trn_port"`
	HbTo    float64 `conf:"key=hbto"`
	Verbose bool    `conf:"key=verbose"`
	Skipped string
}

func TestParse(t *testing.T) {
	src := `
# server settings
host = localhost
trn_port = 27027

hbto = 15.5
verbose = true
name = "quoted value"
`
	vals, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if vals["host"] != "localhost" || vals["trn_port"] != "27027" {
		t.Errorf("vals %v", vals)
	}
	if vals["name"] != "quoted value" {
		t.Errorf("quotes not trimmed: %q", vals["name"])
	}
	if _, ok := vals["# server settings"]; ok {
		t.Error("comment parsed as key")
	}
}

func TestParseBadLine(t *testing.T) {
	if _, err := Parse(strings.NewReader("no equals sign here")); err == nil {
		t.Error("malformed line accepted")
	}
}

func TestPopulate(t *testing.T) {
	vals := map[string]string{
		"host":     "10.0.0.5",
		"trn_port": "28000",
		"hbto":     "7.25",
		"verbose":  "true",
	}
	cfg := testConfig{Host: "localhost", Port: 27027, Skipped: "keep"}
	if err := Populate(vals, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "10.0.0.5" || cfg.Port != 28000 || cfg.HbTo != 7.25 || !cfg.Verbose {
		t.Errorf("cfg %+v", cfg)
	}
	if cfg.Skipped != "keep" {
		t.Error("untagged field touched")
	}
}

func TestPopulateDefaultsSurvive(t *testing.T) {
	cfg := testConfig{Host: "localhost", Port: 27027}
	if err := Populate(map[string]string{"hbto": "1.0"}, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "localhost" || cfg.Port != 27027 {
		t.Error("defaults overwritten by absent keys")
	}
}

func TestPopulateRejectsNonPointer(t *testing.T) {
	cfg := testConfig{}
	if err := Populate(nil, cfg); err != ErrNotPointer {
		t.Errorf("got %v", err)
	}
}

func TestPopulateBadValue(t *testing.T) {
	cfg := testConfig{}
	if err := Populate(map[string]string{"trn_port": "not-a-number"}, &cfg); err == nil {
		t.Error("bad int accepted")
	}
}
