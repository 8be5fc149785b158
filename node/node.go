// Package node drives RigelNet peers: one Client talking to one server, or
// one Server talking to a fixed number of clients.
//
// A node does nothing on its own. The application calls Update once per
// tick, from one goroutine, and everything happens inside that call:
//
//	Update:
//	  1. drain the provider, decode, route by address, handle each frame
//	     (handshakes, Rpc dispatch in ordinal order, acks, heartbeats)
//	  2. send one cumulative Ack to every peer that sent Rpc frames
//	  3. resend pending frames the retransmit policy says are due
//	  4. ping peers nothing was sent to for HeartbeatInterval, and peers
//	     with unacknowledged frames once per HeartbeatInterval
//	  5. drop peers silent for longer than LivenessTimeout
//
// Handlers run inside step 1 on the caller's goroutine. A Node is not safe
// for concurrent use.
package node

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"rigelnet/codec"
	"rigelnet/handler"
	"rigelnet/message"
	"rigelnet/objectmap"
	"rigelnet/protocol"
	"rigelnet/provider"
	"rigelnet/remote"
	"rigelnet/retransmit"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrConnectTimeout means the handshake was retransmitted HandshakeRetries
	// times without an answer. A wrong passphrase ends the same way.
	ErrConnectTimeout = errors.New("node: connect timed out")
	// ErrServerFull means the server rejected the handshake for lack of a slot.
	ErrServerFull = errors.New("node: server full")
	// ErrNotConnected is returned when sending to a peer that is not connected.
	ErrNotConnected = errors.New("node: peer not connected")
	// ErrBusy is returned by Dial while a connection is open or pending.
	ErrBusy = errors.New("node: already connected or connecting")
)

// Role says which side of a connection a node is.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Node is the state shared by Client and Server.
type Node struct {
	role     Role
	opts     Options
	provider provider.Provider
	slots    slotTable
	handlers *handler.Registry
	objects  *objectmap.Mapper[any]
	engine   *retransmit.Engine
	codec    codec.Codec
	log      *zap.Logger

	connectErr error // Last handshake failure, client only
	sessionSeq uint32
}

func newNode(role Role, p provider.Provider, opts Options) (*Node, error) {
	if p == nil {
		return nil, errors.New("node: nil provider")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	n := &Node{
		role:     role,
		opts:     opts,
		provider: p,
		handlers: opts.Handlers,
		objects:  objectmap.New[any](),
		engine:   retransmit.NewEngine(opts.Retransmit),
		codec:    opts.Codec,
		log:      opts.Logger.With(zap.Stringer("role", role), zap.Int("port", p.LocalPort())),
	}
	if role == RoleServer {
		n.slots = newFixedSlots(opts.MaxConnections, opts.Latency, opts.Window)
	} else {
		n.slots = &singleSlot{peer: remote.NewDescriptor(0, opts.Latency, opts.Window)}
	}
	return n, nil
}

func (n *Node) Role() Role                      { return n.role }
func (n *Node) Handlers() *handler.Registry     { return n.handlers }
func (n *Node) Objects() *objectmap.Mapper[any] { return n.objects }
func (n *Node) Provider() provider.Provider     { return n.provider }
func (n *Node) Logger() *zap.Logger             { return n.log }
func (n *Node) Now() time.Time                  { return n.opts.Clock() }

// SetPassphrase changes the passphrase for future handshakes. Established
// connections are unaffected.
func (n *Node) SetPassphrase(pass string) {
	n.opts.Passphrase = pass
}

// SetTimeouts changes the liveness timeout and heartbeat interval between
// ticks. Zero leaves a value unchanged.
func (n *Node) SetTimeouts(liveness, heartbeat time.Duration) error {
	if liveness <= 0 {
		liveness = n.opts.LivenessTimeout
	}
	if heartbeat <= 0 {
		heartbeat = n.opts.HeartbeatInterval
	}
	if heartbeat >= liveness {
		return fmt.Errorf("node: heartbeat interval %s must be below liveness timeout %s", heartbeat, liveness)
	}
	n.opts.LivenessTimeout = liveness
	n.opts.HeartbeatInterval = heartbeat
	return nil
}

// Update runs one tick. The returned error joins every handler failure of
// this tick and, on a client, a failed handshake; none of them stop the node.
func (n *Node) Update() error {
	n.handlers.Seal()
	now := n.opts.Clock()

	var errs []error
	for {
		dg, ok := n.provider.TryReceive()
		if !ok {
			break
		}
		if err := n.receive(dg, now); err != nil {
			errs = append(errs, err)
		}
	}

	for _, d := range n.slots.all() {
		if d.Status() == remote.StatusDisconnected {
			continue
		}
		n.flushAck(d, now)
		if err := n.retransmit(d, now); err != nil {
			errs = append(errs, err)
			continue
		}
		if !d.Connected() {
			continue
		}
		if d.Idle(now, n.opts.HeartbeatInterval) || d.PingDue(now, n.opts.HeartbeatInterval) {
			n.ping(d, now)
		}
		if d.Expired(now, n.opts.LivenessTimeout) {
			n.drop(d, remote.ReasonTimeout)
		}
	}
	return errors.Join(errs...)
}

func (n *Node) receive(dg provider.Datagram, now time.Time) error {
	f, err := protocol.Decode(dg.Data)
	if err != nil {
		n.log.Debug("dropping datagram", zap.String("from", dg.Address()), zap.Error(err))
		return nil
	}

	d := n.slots.find(dg.Addr, dg.Port)
	if d == nil {
		if n.role == RoleServer && f.Kind == protocol.KindHandshake {
			n.acceptHandshake(dg, f, now)
			return nil
		}
		n.log.Debug("frame from unknown peer", zap.String("from", dg.Address()), zap.Stringer("kind", f.Kind))
		return nil
	}
	d.Touch(now)

	switch f.Kind {
	case protocol.KindHandshake:
		if n.role == RoleServer {
			n.repeatHandshake(d, dg, f, now)
		}
	case protocol.KindHandshakeAck:
		if n.role == RoleClient {
			n.handshakeAck(d, f, now)
		}
	case protocol.KindHandshakeReject:
		if n.role == RoleClient {
			return n.handshakeReject(d, f)
		}
	case protocol.KindRpc:
		return n.rpc(d, f)
	case protocol.KindAck:
		n.ack(d, f, now)
	case protocol.KindHeartbeat:
		n.heartbeat(d, f, now)
	case protocol.KindDisconnect:
		if f.Ordinal != d.Session() {
			n.log.Debug("ignoring disconnect for another session", zap.String("peer", d.Address()))
			return nil
		}
		n.drop(d, remote.ReasonRemote)
	}
	return nil
}

func (n *Node) checkPassphrase(payload []byte) bool {
	pass, err := protocol.DecodeHandshake(payload)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(n.opts.Passphrase)) == 1
}

// rpc delivers f and any buffered successors in ordinal order.
func (n *Node) rpc(d *remote.Descriptor, f protocol.Frame) error {
	if !d.Connected() {
		return nil
	}
	d.MarkAckDue()
	payloads, fresh := d.Inbound().Accept(f.Ordinal, f.Payload)
	if !fresh {
		n.log.Debug("duplicate or out-of-window rpc", zap.String("peer", d.Address()), zap.Uint32("ordinal", uint32(f.Ordinal)))
		return nil
	}

	var errs []error
	for _, p := range payloads {
		index, raw, err := protocol.DecodeCall(p)
		if err == nil && len(raw) > n.opts.MaxArgs {
			err = fmt.Errorf("%w: %d > %d", protocol.ErrTooManyArgs, len(raw), n.opts.MaxArgs)
		}
		if err == nil {
			call := &message.Call{Index: index, Args: message.NewArgs(n.codec, raw)}
			err = n.handlers.Dispatch(context.Background(), n, d, call)
		}
		if err != nil {
			n.log.Warn("rpc failed", zap.String("peer", d.Address()), zap.Uint32("index", index), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", d.Address(), err))
		}
		// A handler may have kicked its own sender.
		if !d.Connected() {
			break
		}
	}
	return errors.Join(errs...)
}

// ack removes acknowledged frames. Only frames sent exactly once give a
// latency sample; for a resent frame the ack could belong to either copy.
func (n *Node) ack(d *remote.Descriptor, f protocol.Frame, now time.Time) {
	acked, ok := d.Acknowledge(f.Ordinal)
	if !ok {
		n.log.Debug("ignoring stale ack", zap.String("peer", d.Address()), zap.Uint32("ordinal", uint32(f.Ordinal)))
		return
	}
	var sample *remote.PendingFrame
	for _, p := range acked {
		if p.Cycles == 0 {
			sample = p
		}
	}
	if sample != nil {
		d.ObserveRTT(now.Sub(sample.FirstSent))
	}
}

func (n *Node) heartbeat(d *remote.Descriptor, f protocol.Frame, now time.Time) {
	if !d.Connected() {
		return
	}
	hb, err := protocol.DecodeHeartbeat(f.Payload)
	if err != nil {
		return
	}
	if !hb.Pong {
		n.transmit(d, protocol.Encode(protocol.KindHeartbeat, 0, protocol.EncodeHeartbeat(protocol.Heartbeat{Pong: true, SentAt: hb.SentAt})), now)
		return
	}
	if rtt := now.Sub(time.Unix(0, hb.SentAt)); rtt >= 0 {
		d.ObserveRTT(rtt)
	}
}

func (n *Node) ping(d *remote.Descriptor, now time.Time) {
	d.MarkPinged(now)
	n.transmit(d, protocol.Encode(protocol.KindHeartbeat, 0, protocol.EncodeHeartbeat(protocol.Heartbeat{SentAt: now.UnixNano()})), now)
}

func (n *Node) flushAck(d *remote.Descriptor, now time.Time) {
	if d.TakeAckDue() && d.Connected() {
		n.transmit(d, protocol.Encode(protocol.KindAck, d.Inbound().Last(), nil), now)
	}
}

// retransmit resends due frames. A handshake that has used up its retries
// ends the dial with ErrConnectTimeout.
func (n *Node) retransmit(d *remote.Descriptor, now time.Time) error {
	expired := false
	n.engine.Scan(d, now, func(p *remote.PendingFrame) bool {
		if p.Kind == protocol.KindHandshake && p.Cycles >= n.opts.HandshakeRetries {
			expired = true
			return false
		}
		n.transmit(d, p.Data, now)
		return true
	})
	if expired {
		return n.failConnect(d, ErrConnectTimeout)
	}
	return nil
}

// Send invokes handler index on the peer. The arguments are encoded with
// the node's codec, and the call is delivered exactly once and in order
// relative to other calls to the same peer, for as long as the connection
// lives.
func (n *Node) Send(to *remote.Descriptor, index uint32, args ...any) error {
	n.mustOwn(to)
	if !to.Connected() {
		return fmt.Errorf("%w: %s", ErrNotConnected, to)
	}
	payload, err := n.encodeCall(index, args)
	if err != nil {
		return err
	}
	n.sendReliable(to, payload)
	return nil
}

func (n *Node) encodeCall(index uint32, args []any) ([]byte, error) {
	if len(args) > n.opts.MaxArgs {
		return nil, fmt.Errorf("%w: %d > %d", protocol.ErrTooManyArgs, len(args), n.opts.MaxArgs)
	}
	raw, err := message.EncodeArgs(n.codec, args...)
	if err != nil {
		return nil, err
	}
	payload, err := protocol.EncodeCall(index, raw)
	if err != nil {
		return nil, err
	}
	if err := protocol.CheckSize(len(payload), n.opts.MaxFrameSize); err != nil {
		return nil, err
	}
	return payload, nil
}

// sendReliable stamps the next ordinal, queues the frame, and sends it. A
// send error leaves the frame queued for the retransmit pass.
func (n *Node) sendReliable(to *remote.Descriptor, payload []byte) {
	now := n.opts.Clock()
	ord := to.NextOrdinal()
	data := protocol.Encode(protocol.KindRpc, ord, payload)
	to.Pending().Push(protocol.KindRpc, ord, data, now)
	n.transmit(to, data, now)
}

func (n *Node) transmit(d *remote.Descriptor, data []byte, now time.Time) {
	if err := n.provider.Send(d.Addr(), d.Port(), data); err != nil {
		n.log.Warn("send failed", zap.String("peer", d.Address()), zap.Error(err))
	}
	d.MarkSent(now)
}

// drop closes d and reports it if it was connected.
func (n *Node) drop(d *remote.Descriptor, reason remote.Reason) {
	wasConnected := d.Connected()
	addr := d.Address()
	d.Close()
	if !wasConnected {
		return
	}
	n.log.Info("peer disconnected", zap.Int("slot", d.Slot()), zap.String("peer", addr), zap.Stringer("reason", reason))
	if n.opts.OnDisconnect != nil {
		n.opts.OnDisconnect(d, reason)
	}
}

func (n *Node) connected(d *remote.Descriptor) {
	n.log.Info("peer connected", zap.Int("slot", d.Slot()), zap.String("peer", d.Address()))
	if n.opts.OnConnect != nil {
		n.opts.OnConnect(d)
	}
}

// mustOwn panics if d is not one of this node's descriptors; such a
// descriptor has no pending queue this node would ever drain.
func (n *Node) mustOwn(d *remote.Descriptor) {
	if d != nil {
		for _, own := range n.slots.all() {
			if own == d {
				return
			}
		}
	}
	panic(fmt.Sprintf("node: descriptor %v does not belong to this %s", d, n.role))
}

// nextSession returns a fresh token for a dial. Tokens mix the clock with a
// counter so a restarted client does not reuse its previous one.
func (n *Node) nextSession() protocol.Ordinal {
	n.sessionSeq++
	s := uint32(n.opts.Clock().UnixNano()) ^ (n.sessionSeq * 0x9E3779B9)
	if s == 0 {
		s = 1
	}
	return protocol.Ordinal(s)
}
