// Package remote models one peer of a RigelNet node.
//
// A Descriptor owns everything the node knows about a peer: where it lives,
// whether the handshake completed, when it was last heard from, how long a
// round trip takes, which ordinal to stamp on the next outgoing frame, which
// ordinal it expects next, and the frames still waiting for acknowledgment.
//
// Descriptors are owned by exactly one node and are only touched from inside
// that node's tick, so they carry no locks.
package remote

import (
	"fmt"
	"net"
	"rigelnet/protocol"
	"strconv"
	"time"
)

// Status is the connection state of a descriptor.
//
//	Disconnected ──dial──► AwaitingHandshakeAck ──ack──► Connected
//	      ▲                         │                        │
//	      └──────── timeout / reject / disconnect ◄──────────┘
type Status uint8

const (
	StatusDisconnected Status = iota
	StatusAwaitingHandshakeAck
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusAwaitingHandshakeAck:
		return "awaiting-handshake-ack"
	case StatusConnected:
		return "connected"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Reason explains why a descriptor left the Connected state.
type Reason uint8

const (
	ReasonLocal    Reason = iota // This side called Disconnect
	ReasonRemote                 // The peer sent a Disconnect frame
	ReasonTimeout                // Liveness timer expired
	ReasonKicked                 // Server removed the peer
	ReasonShutdown               // Server is shutting down
)

func (r Reason) String() string {
	switch r {
	case ReasonLocal:
		return "local"
	case ReasonRemote:
		return "remote"
	case ReasonTimeout:
		return "timeout"
	case ReasonKicked:
		return "kicked"
	case ReasonShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("reason(%d)", uint8(r))
}

// LatencyLimits bounds the smoothed round-trip estimate.
type LatencyLimits struct {
	Initial time.Duration // Estimate before the first sample
	Min     time.Duration
	Max     time.Duration
}

// DefaultLatencyLimits suit a LAN-to-WAN range of links.
var DefaultLatencyLimits = LatencyLimits{
	Initial: 100 * time.Millisecond,
	Min:     5 * time.Millisecond,
	Max:     5 * time.Second,
}

// DefaultWindow is how far ahead of the next expected ordinal a frame may
// arrive and still be buffered.
const DefaultWindow = 256

// Descriptor is the state of one peer.
type Descriptor struct {
	slot    int
	status  Status
	addr    string
	port    int
	session protocol.Ordinal // Chosen by the client per dial

	lastHeard time.Time // Reset by any inbound frame
	lastSent  time.Time // Last outbound datagram of any kind
	lastPing  time.Time // Last heartbeat ping

	limits  LatencyLimits
	latency time.Duration
	sampled bool

	nextOrdinal protocol.Ordinal
	acked       protocol.Ordinal // Highest ordinal the peer has acknowledged
	pending     Queue
	inbound     *Inbound
	window      int
	ackDue      bool
}

// NewDescriptor creates a disconnected descriptor bound to a slot.
func NewDescriptor(slot int, limits LatencyLimits, window int) *Descriptor {
	if window <= 0 {
		window = DefaultWindow
	}
	d := &Descriptor{
		slot:   slot,
		limits: limits,
		window: window,
	}
	d.resetStreams()
	return d
}

func (d *Descriptor) Slot() int                 { return d.slot }
func (d *Descriptor) Status() Status            { return d.status }
func (d *Descriptor) Addr() string              { return d.addr }
func (d *Descriptor) Port() int                 { return d.port }
func (d *Descriptor) Session() protocol.Ordinal { return d.session }
func (d *Descriptor) Latency() time.Duration    { return d.latency }
func (d *Descriptor) LastHeard() time.Time      { return d.lastHeard }
func (d *Descriptor) LastSent() time.Time       { return d.lastSent }
func (d *Descriptor) Pending() *Queue           { return &d.pending }
func (d *Descriptor) Inbound() *Inbound         { return d.inbound }
func (d *Descriptor) Connected() bool           { return d.status == StatusConnected }

// Address returns "host:port".
func (d *Descriptor) Address() string {
	return net.JoinHostPort(d.addr, strconv.Itoa(d.port))
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("slot %d (%s, %s)", d.slot, d.Address(), d.status)
}

// Matches reports whether a datagram from addr:port belongs to this peer.
func (d *Descriptor) Matches(addr string, port int) bool {
	return d.status != StatusDisconnected && d.addr == addr && d.port == port
}

// Bind prepares the descriptor for a new session with addr:port. Any state
// from a previous session is discarded.
func (d *Descriptor) Bind(addr string, port int, session protocol.Ordinal, status Status, now time.Time) {
	d.addr = addr
	d.port = port
	d.session = session
	d.status = status
	d.lastHeard = now
	d.lastSent = time.Time{}
	d.lastPing = time.Time{}
	d.latency = d.clamp(d.limits.Initial)
	d.sampled = false
	d.resetStreams()
}

// Establish moves the descriptor to Connected.
func (d *Descriptor) Establish(now time.Time) {
	d.status = StatusConnected
	d.lastHeard = now
}

// Close moves the descriptor to Disconnected and discards every pending frame.
func (d *Descriptor) Close() {
	d.status = StatusDisconnected
	d.resetStreams()
}

// resetStreams starts both directions right after the session token, so
// frames left in flight by an earlier session on the same address fall
// outside the new receive window.
func (d *Descriptor) resetStreams() {
	first := d.session.Next()
	d.nextOrdinal = first
	d.acked = d.session
	d.pending.Clear()
	d.inbound = NewInbound(first, d.window)
	d.ackDue = false
}

// NextOrdinal returns the ordinal for the next outgoing Rpc frame.
func (d *Descriptor) NextOrdinal() protocol.Ordinal {
	o := d.nextOrdinal
	d.nextOrdinal = o.Next()
	return o
}

// Acknowledge applies a cumulative ack through o and returns the frames it
// released. An ack older than the last one, or for an ordinal not sent yet,
// is rejected; it belongs to another session or was reordered.
func (d *Descriptor) Acknowledge(o protocol.Ordinal) ([]*PendingFrame, bool) {
	if protocol.Less(o, d.acked) || !protocol.Less(o, d.nextOrdinal) {
		return nil, false
	}
	d.acked = o
	return d.pending.AckThrough(o), true
}

// Touch resets the liveness timer.
func (d *Descriptor) Touch(now time.Time) {
	d.lastHeard = now
}

// MarkSent records outbound traffic, which postpones the next heartbeat.
func (d *Descriptor) MarkSent(now time.Time) {
	d.lastSent = now
}

// Expired reports whether the peer has been silent for longer than timeout.
func (d *Descriptor) Expired(now time.Time, timeout time.Duration) bool {
	return timeout > 0 && now.Sub(d.lastHeard) > timeout
}

// Idle reports whether nothing has been sent to the peer for at least interval.
func (d *Descriptor) Idle(now time.Time, interval time.Duration) bool {
	return now.Sub(d.lastSent) >= interval
}

// PingDue reports whether frames are waiting for acknowledgment and no
// heartbeat ping went out for at least interval. Resent frames give no
// latency sample, so a busy link needs pings to keep the estimate fresh.
func (d *Descriptor) PingDue(now time.Time, interval time.Duration) bool {
	return d.pending.Len() > 0 && now.Sub(d.lastPing) >= interval
}

// MarkPinged records a heartbeat ping.
func (d *Descriptor) MarkPinged(now time.Time) {
	d.lastPing = now
}

// ObserveRTT folds a round-trip sample into the smoothed estimate.
func (d *Descriptor) ObserveRTT(sample time.Duration) {
	sample = d.clamp(sample)
	if !d.sampled {
		d.latency = sample
		d.sampled = true
		return
	}
	d.latency = d.clamp(d.latency + (sample-d.latency)/8)
}

func (d *Descriptor) clamp(v time.Duration) time.Duration {
	if d.limits.Min > 0 && v < d.limits.Min {
		return d.limits.Min
	}
	if d.limits.Max > 0 && v > d.limits.Max {
		return d.limits.Max
	}
	return v
}

// MarkAckDue records that the peer sent an Rpc frame this tick.
func (d *Descriptor) MarkAckDue() {
	d.ackDue = true
}

// TakeAckDue reports and clears the ack flag.
func (d *Descriptor) TakeAckDue() bool {
	due := d.ackDue
	d.ackDue = false
	return due
}
