package sock

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestAddr2Str(t *testing.T) {
	c := NewConnection()
	c.Addr = &net.UDPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 27027}
	if svc := c.Addr2Str(); svc != 27027 {
		t.Errorf("svc %d", svc)
	}
	if c.CHost != "10.0.0.7" || c.Service != "27027" || c.ID != 27027 {
		t.Errorf("peer %+v", c)
	}
}

func TestAddr2StrUnset(t *testing.T) {
	c := NewConnection()
	if svc := c.Addr2Str(); svc != -1 {
		t.Errorf("svc %d", svc)
	}
}

func TestListInsertionOrder(t *testing.T) {
	l := NewList()
	for _, id := range []int{3, 1, 2} {
		c := NewConnection()
		c.ID = id
		l.Add(c)
	}
	items := l.Items()
	if len(items) != 3 {
		t.Fatalf("len %d", len(items))
	}
	for i, want := range []int{3, 1, 2} {
		if items[i].ID != want {
			t.Errorf("items[%d].ID = %d, want %d", i, items[i].ID, want)
		}
	}
}

func TestListLookupRemove(t *testing.T) {
	l := NewList()
	a, b := NewConnection(), NewConnection()
	a.ID, b.ID = 10, 20
	l.Add(a)
	l.Add(b)

	if got := l.LookupID(20); got != b {
		t.Error("lookup failed")
	}
	if !l.Remove(a) {
		t.Error("remove failed")
	}
	if l.Len() != 1 || l.Contains(a) {
		t.Error("list state after remove")
	}
	if l.Remove(a) {
		t.Error("double remove succeeded")
	}
	// snapshot iteration is unaffected by removal
	items := l.Items()
	l.Remove(b)
	if len(items) != 1 || items[0] != b {
		t.Error("snapshot mutated")
	}
}

func TestReadTimeoutExpiry(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	s := WrapConn(left, TCP)
	buf := make([]byte, 16)
	start := time.Now()
	n, err := s.ReadTimeout(buf, 50*time.Millisecond)
	if n != 0 {
		t.Errorf("read %d bytes", n)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("got %v", err)
	}
	if s.LastErr != ErrTimeout {
		t.Errorf("LastErr %v", s.LastErr)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("deadline not honored")
	}
}

func TestReadTimeoutShortThenFull(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	go func() {
		right.Write([]byte("abcd"))
		time.Sleep(10 * time.Millisecond)
		right.Write([]byte("efgh"))
	}()

	s := WrapConn(left, TCP)
	buf := make([]byte, 8)
	n, err := s.ReadTimeout(buf, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 || string(buf) != "abcdefgh" {
		t.Errorf("read %d %q", n, buf)
	}
}

func TestReadTimeoutEOF(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()

	s := WrapConn(left, TCP)
	right.Close()
	buf := make([]byte, 4)
	_, err := s.ReadTimeout(buf, 100*time.Millisecond)
	if err == nil {
		t.Fatal("no error on closed peer")
	}
	if !errors.Is(err, io.EOF) && !errors.Is(err, ErrSocket) {
		t.Errorf("got %v", err)
	}
}

func TestNonBlockingRecv(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	s := WrapConn(left, TCP)
	s.SetBlocking(false)
	buf := make([]byte, 4)
	_, err := s.Recv(buf)
	if !IsNoData(err) {
		t.Errorf("got %v", err)
	}
}

func TestIsPipe(t *testing.T) {
	if IsPipe(nil) {
		t.Error("nil is pipe")
	}
	if !IsPipe(&net.OpError{Op: "write", Err: errClosed()}) {
		t.Error("wrapped closed conn not detected")
	}
}

func errClosed() error { return net.ErrClosed }
