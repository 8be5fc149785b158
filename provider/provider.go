// Package provider moves raw datagrams for a node.
//
// A node never touches sockets itself; it is handed a Provider. UDP is the
// real implementation. Network and Endpoint are an in-process stand-in with
// a manual clock and scripted loss, delay, jitter and duplication, used to
// exercise the protocol deterministically.
package provider

import (
	"errors"
	"net"
	"strconv"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("provider: closed")

// Datagram is one received packet and where it came from.
type Datagram struct {
	Addr string
	Port int
	Data []byte
}

// Address returns "host:port".
func (d Datagram) Address() string {
	return net.JoinHostPort(d.Addr, strconv.Itoa(d.Port))
}

// Provider sends and receives datagrams. TryReceive never blocks: it returns
// the next datagram that has already arrived, or false.
type Provider interface {
	Send(addr string, port int, data []byte) error
	TryReceive() (Datagram, bool)
	LocalPort() int
	Close() error
}
