package provider

import (
	"fmt"
	"math/rand"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Link scripts the behavior of one direction between two endpoints.
// Counters are per link and start at 1 for the first datagram sent after
// the link is configured.
type Link struct {
	Down      bool          // Drop everything
	DropEvery int           // Drop every Nth datagram
	Loss      float64       // Drop with this probability, from the network's seeded source
	Delay     time.Duration // Fixed one-way delay
	Jitter    time.Duration // Extra uniform delay in [0, Jitter); reorders datagrams
	Duplicate int           // Deliver every Nth datagram twice
}

// LinkStats counts what happened on a link.
type LinkStats struct {
	Sent       uint64
	Dropped    uint64
	Queued     uint64
	Duplicated uint64
}

type linkKey struct {
	from, to string
}

type linkState struct {
	Link
	count uint64
	stats LinkStats
}

type packet struct {
	deliverAt time.Time
	seq       uint64
	dg        Datagram
}

// Network is an in-process datagram fabric with a manual clock. Delivery
// order is fixed by (delivery time, send order), so a run with the same seed
// and the same calls is reproducible.
type Network struct {
	mu          sync.Mutex
	now         time.Time
	rng         *rand.Rand
	seq         uint64
	nextPort    int
	endpoints   map[string]*Endpoint
	links       map[linkKey]*linkState
	defaultLink Link
}

// NewNetwork creates an empty network whose clock starts at a fixed instant.
func NewNetwork(seed int64) *Network {
	return &Network{
		now:       time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		rng:       rand.New(rand.NewSource(seed)),
		nextPort:  49152,
		endpoints: make(map[string]*Endpoint),
		links:     make(map[linkKey]*linkState),
	}
}

// Now returns the network clock. Pass it as a node's clock so timers and
// delivery agree.
func (n *Network) Now() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.now
}

// Advance moves the clock forward.
func (n *Network) Advance(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.now = n.now.Add(d)
}

// Endpoint attaches a new endpoint at addr:port. Port 0 picks a free port.
func (n *Network) Endpoint(addr string, port int) (*Endpoint, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if port == 0 {
		for {
			port = n.nextPort
			n.nextPort++
			if _, taken := n.endpoints[hostPort(addr, port)]; !taken {
				break
			}
		}
	}
	key := hostPort(addr, port)
	if _, taken := n.endpoints[key]; taken {
		return nil, fmt.Errorf("provider: address already in use: %s", key)
	}
	e := &Endpoint{network: n, addr: addr, port: port}
	n.endpoints[key] = e
	return e, nil
}

// SetLink scripts traffic from one "host:port" to another and resets its counters.
func (n *Network) SetLink(from, to string, l Link) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links[linkKey{from, to}] = &linkState{Link: l}
}

// SetDefaultLink applies to every pair without an explicit link.
func (n *Network) SetDefaultLink(l Link) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.defaultLink = l
}

// Stats returns the counters of a link.
func (n *Network) Stats(from, to string) LinkStats {
	n.mu.Lock()
	defer n.mu.Unlock()
	if st, ok := n.links[linkKey{from, to}]; ok {
		return st.stats
	}
	return LinkStats{}
}

func (n *Network) link(from, to string) *linkState {
	k := linkKey{from, to}
	st, ok := n.links[k]
	if !ok {
		st = &linkState{Link: n.defaultLink}
		n.links[k] = st
	}
	return st
}

func (n *Network) send(src *Endpoint, addr string, port int, data []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if src.closed {
		return ErrClosed
	}

	from, to := src.Address(), hostPort(addr, port)
	st := n.link(from, to)
	st.count++
	st.stats.Sent++

	dst, ok := n.endpoints[to]
	if !ok || st.drop(n.rng) {
		st.stats.Dropped++
		return nil
	}

	copies := 1
	if st.Duplicate > 0 && st.count%uint64(st.Duplicate) == 0 {
		copies = 2
		st.stats.Duplicated++
	}
	for i := 0; i < copies; i++ {
		delay := st.Delay
		if st.Jitter > 0 {
			delay += time.Duration(n.rng.Int63n(int64(st.Jitter)))
		}
		buf := make([]byte, len(data))
		copy(buf, data)
		n.seq++
		dst.enqueue(packet{
			deliverAt: n.now.Add(delay),
			seq:       n.seq,
			dg:        Datagram{Addr: src.addr, Port: src.port, Data: buf},
		})
		st.stats.Queued++
	}
	return nil
}

func (st *linkState) drop(rng *rand.Rand) bool {
	if st.Down {
		return true
	}
	if st.DropEvery > 0 && st.count%uint64(st.DropEvery) == 0 {
		return true
	}
	return st.Loss > 0 && rng.Float64() < st.Loss
}

func (n *Network) receive(e *Endpoint) (Datagram, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(e.inbox) == 0 || e.inbox[0].deliverAt.After(n.now) {
		return Datagram{}, false
	}
	p := e.inbox[0]
	e.inbox = e.inbox[1:]
	return p.dg, true
}

func (n *Network) detach(e *Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.inbox = nil
	delete(n.endpoints, e.Address())
}

// Endpoint is a Provider attached to a Network.
type Endpoint struct {
	network *Network
	addr    string
	port    int
	inbox   []packet // Sorted by (deliverAt, seq); guarded by network.mu
	closed  bool
}

func (e *Endpoint) enqueue(p packet) {
	i := sort.Search(len(e.inbox), func(i int) bool {
		q := e.inbox[i]
		if !q.deliverAt.Equal(p.deliverAt) {
			return q.deliverAt.After(p.deliverAt)
		}
		return q.seq > p.seq
	})
	e.inbox = append(e.inbox, packet{})
	copy(e.inbox[i+1:], e.inbox[i:])
	e.inbox[i] = p
}

// Address returns "host:port".
func (e *Endpoint) Address() string {
	return hostPort(e.addr, e.port)
}

func (e *Endpoint) Addr() string { return e.addr }

func (e *Endpoint) Send(addr string, port int, data []byte) error {
	return e.network.send(e, addr, port, data)
}

func (e *Endpoint) TryReceive() (Datagram, bool) {
	return e.network.receive(e)
}

func (e *Endpoint) LocalPort() int {
	return e.port
}

func (e *Endpoint) Close() error {
	e.network.detach(e)
	return nil
}

func hostPort(addr string, port int) string {
	return net.JoinHostPort(addr, strconv.Itoa(port))
}
