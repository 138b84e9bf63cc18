package seslog

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestOpenNaming(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "netif-test", ".log")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	base := filepath.Base(l.Path)
	ok, _ := regexp.MatchString(`^netif-test-\d{8}-\d{6}\.log$`, base)
	if !ok {
		t.Errorf("log name %q", base)
	}
	if l.SessionID == "" {
		t.Error("session id empty")
	}
}

func TestLineFormat(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, "fmt", ".log")
	if err != nil {
		t.Fatal(err)
	}
	l.Tprintf("*** netif session start ***")
	l.Cprintf("TCPCON", "ADD_CLI - id[%d]", 27027)
	l.Close()

	raw, err := os.ReadFile(l.Path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines %d", len(lines))
	}

	// ISO-8601 timestamp prefix
	tsRe := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z`)
	for _, line := range lines {
		if !tsRe.MatchString(line) {
			t.Errorf("no timestamp prefix: %q", line)
		}
	}
	if !strings.Contains(lines[0], "session start") {
		t.Errorf("line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[TCPCON]") || !strings.Contains(lines[1], "id[27027]") {
		t.Errorf("line %q", lines[1])
	}
}

func TestSessionStamp(t *testing.T) {
	at := time.Date(2019, 7, 9, 18, 21, 3, 0, time.UTC)
	if got := SessionStamp(at); got != "20190709-182103" {
		t.Errorf("stamp %q", got)
	}
}

func TestNilSafe(t *testing.T) {
	var l *Log
	l.Tprintf("ignored")
	l.Cprintf("c", "ignored")
	if err := l.Close(); err != nil {
		t.Error(err)
	}
}
