package sock

import (
	"net"
	"strconv"
)

// Connection is one tracked peer: its address, an optional per-peer socket
// (TCP only), the wall-clock time of its last heartbeat and a stable
// numeric id derived from its address.
type Connection struct {
	Addr net.Addr
	Sock *Socket // per-peer stream socket; nil for UDP peers

	CHost   string
	Service string
	ID      int

	// HbTime is the epoch time of the last activity from this peer.
	HbTime float64
}

// NewConnection returns an empty staging peer record.
func NewConnection() *Connection {
	return &Connection{ID: -1}
}

// Addr2Str fills the peer's host and service strings from its address and
// returns the numeric service id used as the lookup key. Returns -1 when
// the address is unset or malformed.
func (c *Connection) Addr2Str() int {
	if c.Addr == nil {
		return -1
	}
	host, svc, err := net.SplitHostPort(c.Addr.String())
	if err != nil {
		return -1
	}
	port, err := strconv.Atoi(svc)
	if err != nil {
		return -1
	}
	c.CHost = host
	c.Service = svc
	c.ID = port
	return port
}

// Close releases the per-peer socket, if any.
func (c *Connection) Close() error {
	if c.Sock != nil {
		return c.Sock.Close()
	}
	return nil
}

// List is an insertion-ordered set of peers owned by one port. Removal
// closes the peer's resources (the autofree policy); iteration order is
// insertion order.
type List struct {
	items []*Connection
}

func NewList() *List {
	return &List{}
}

// Len returns the number of tracked peers.
func (l *List) Len() int { return len(l.items) }

// Add appends a peer.
func (l *List) Add(c *Connection) {
	l.items = append(l.items, c)
}

// Lookup returns the first peer matching the comparator, or nil.
func (l *List) Lookup(cmp func(*Connection) bool) *Connection {
	for _, c := range l.items {
		if cmp(c) {
			return c
		}
	}
	return nil
}

// LookupID returns the peer with the given service id, or nil.
func (l *List) LookupID(id int) *Connection {
	return l.Lookup(func(c *Connection) bool { return c.ID == id })
}

// Remove drops the peer from the list and closes its resources.
func (l *List) Remove(c *Connection) bool {
	for i, item := range l.items {
		if item == c {
			l.items = append(l.items[:i], l.items[i+1:]...)
			_ = c.Close()
			return true
		}
	}
	return false
}

// Items returns a snapshot of the current peers in insertion order. Peers
// added or removed after the snapshot do not affect iteration over it.
func (l *List) Items() []*Connection {
	out := make([]*Connection, len(l.items))
	copy(out, l.items)
	return out
}

// Contains reports whether the peer is still tracked.
func (l *List) Contains(c *Connection) bool {
	for _, item := range l.items {
		if item == c {
			return true
		}
	}
	return false
}

// Clear removes and closes every peer.
func (l *List) Clear() {
	for _, c := range l.items {
		_ = c.Close()
	}
	l.items = nil
}
