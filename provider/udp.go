package provider

import (
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
)

// MaxDatagramSize is the largest datagram the UDP provider reads.
const MaxDatagramSize = 64 * 1024

// DefaultInboxSize bounds datagrams queued between ticks. Further datagrams
// are dropped, as the kernel would drop them on a full socket buffer.
const DefaultInboxSize = 1024

// UDP is a Provider over a real UDP socket.
//
// A single reader goroutine drains the socket into a buffered channel;
// TryReceive pulls from the channel without blocking. This keeps the node's
// tick free of socket deadlines.
type UDP struct {
	conn    *net.UDPConn
	inbox   chan Datagram
	closed  atomic.Bool
	dropped atomic.Uint64 // Datagrams discarded because the inbox was full
	once    sync.Once
	done    chan struct{}
	readErr atomic.Value // error that ended the read loop
}

// ListenUDP binds address (e.g. ":7777" or "127.0.0.1:0").
func ListenUDP(address string) (*UDP, error) {
	return ListenUDPSize(address, DefaultInboxSize)
}

// ListenUDPSize binds address with a custom inbox size.
func ListenUDPSize(address string, inbox int) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	u := &UDP{
		conn:  conn,
		inbox: make(chan Datagram, inbox),
		done:  make(chan struct{}),
	}
	go u.readLoop()
	return u, nil
}

func (u *UDP) readLoop() {
	defer close(u.done)
	buf := make([]byte, MaxDatagramSize)
	for {
		n, from, err := u.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if !u.closed.Load() {
				u.readErr.Store(err)
			}
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		dg := Datagram{
			Addr: from.Addr().Unmap().String(),
			Port: int(from.Port()),
			Data: data,
		}
		select {
		case u.inbox <- dg:
		default:
			u.dropped.Add(1)
		}
	}
}

func (u *UDP) Send(addr string, port int, data []byte) error {
	if u.closed.Load() {
		return ErrClosed
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		resolved, rerr := net.ResolveIPAddr("ip", addr)
		if rerr != nil {
			return rerr
		}
		ip, _ = netip.AddrFromSlice(resolved.IP)
		ip = ip.Unmap()
	}
	_, err = u.conn.WriteToUDPAddrPort(data, netip.AddrPortFrom(ip, uint16(port)))
	return err
}

func (u *UDP) TryReceive() (Datagram, bool) {
	select {
	case dg := <-u.inbox:
		return dg, true
	default:
		return Datagram{}, false
	}
}

func (u *UDP) LocalPort() int {
	return u.conn.LocalAddr().(*net.UDPAddr).Port
}

// Dropped returns how many datagrams were discarded on a full inbox.
func (u *UDP) Dropped() uint64 {
	return u.dropped.Load()
}

// Err returns the error that stopped the reader, if any.
func (u *UDP) Err() error {
	if err, ok := u.readErr.Load().(error); ok {
		return err
	}
	return nil
}

func (u *UDP) Close() error {
	var err error
	u.once.Do(func() {
		u.closed.Store(true)
		err = u.conn.Close()
		<-u.done
	})
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
