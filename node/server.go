package node

import (
	"fmt"
	"net"
	"rigelnet/protocol"
	"rigelnet/provider"
	"rigelnet/registry"
	"rigelnet/remote"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Server accepts up to MaxConnections clients. Slot numbers are stable for
// the life of a connection and are reused after it ends.
type Server struct {
	*Node
	fixed *fixedSlots

	registry registry.Registry // nil unless Advertise was called
	service  string
	instance registry.ServiceInstance
}

// NewServer creates a server on p. The provider must already be bound.
func NewServer(p provider.Provider, opts Options) (*Server, error) {
	n, err := newNode(RoleServer, p, opts)
	if err != nil {
		return nil, err
	}
	return &Server{Node: n, fixed: n.slots.(*fixedSlots)}, nil
}

// acceptHandshake handles a Handshake from an address with no slot. A wrong
// passphrase is dropped without reply, so probing cannot tell a closed
// server from a protected one.
func (n *Node) acceptHandshake(dg provider.Datagram, f protocol.Frame, now time.Time) {
	if !n.checkPassphrase(f.Payload) {
		n.log.Info("handshake with wrong passphrase", zap.String("from", dg.Address()))
		return
	}
	d, ok := n.slots.claim()
	if !ok {
		n.log.Info("rejecting handshake, server full", zap.String("from", dg.Address()))
		if err := n.provider.Send(dg.Addr, dg.Port, protocol.Encode(protocol.KindHandshakeReject, f.Ordinal, nil)); err != nil {
			n.log.Warn("send failed", zap.String("peer", dg.Address()), zap.Error(err))
		}
		return
	}
	d.Bind(dg.Addr, dg.Port, f.Ordinal, remote.StatusAwaitingHandshakeAck, now)
	d.Establish(now)
	n.sendHandshakeAck(d, now)
	n.connected(d)
}

// repeatHandshake handles a Handshake from a connected address. The same
// session means our ack was lost; a new one means the client restarted and
// the old connection is gone.
func (n *Node) repeatHandshake(d *remote.Descriptor, dg provider.Datagram, f protocol.Frame, now time.Time) {
	if !n.checkPassphrase(f.Payload) {
		n.log.Info("handshake with wrong passphrase", zap.String("from", dg.Address()))
		return
	}
	if f.Ordinal == d.Session() {
		n.sendHandshakeAck(d, now)
		return
	}
	n.drop(d, remote.ReasonRemote)
	n.acceptHandshake(dg, f, now)
}

func (n *Node) sendHandshakeAck(d *remote.Descriptor, now time.Time) {
	payload := protocol.EncodeHandshakeAck(uint32(d.Slot()))
	n.transmit(d, protocol.Encode(protocol.KindHandshakeAck, d.Session(), payload), now)
}

// ConnectedCount returns the number of connected clients.
func (s *Server) ConnectedCount() int {
	count := 0
	for _, d := range s.fixed.peers {
		if d.Connected() {
			count++
		}
	}
	return count
}

// Peers returns the connected clients in slot order.
func (s *Server) Peers() []*remote.Descriptor {
	var out []*remote.Descriptor
	for _, d := range s.fixed.peers {
		if d.Connected() {
			out = append(out, d)
		}
	}
	return out
}

// Slots returns every slot's descriptor, connected or not.
func (s *Server) Slots() []*remote.Descriptor {
	return s.fixed.peers
}

// Peer returns the descriptor in slot, connected or not.
func (s *Server) Peer(slot int) (*remote.Descriptor, bool) {
	if slot < 0 || slot >= len(s.fixed.peers) {
		return nil, false
	}
	return s.fixed.peers[slot], true
}

// Kick disconnects the client in slot. The client is told with a
// Disconnect frame, which is not retransmitted; if it is lost the client
// times out instead.
func (s *Server) Kick(slot int) error {
	d, ok := s.Peer(slot)
	if !ok {
		return fmt.Errorf("node: no slot %d", slot)
	}
	if !d.Connected() {
		return fmt.Errorf("%w: slot %d", ErrNotConnected, slot)
	}
	s.sendDisconnect(d)
	s.drop(d, remote.ReasonKicked)
	return nil
}

// Broadcast sends the same call to every connected client.
func (s *Server) Broadcast(index uint32, args ...any) error {
	payload, err := s.encodeCall(index, args)
	if err != nil {
		return err
	}
	for _, d := range s.fixed.peers {
		if d.Connected() {
			s.sendReliable(d, payload)
		}
	}
	return nil
}

func (n *Node) sendDisconnect(d *remote.Descriptor) {
	n.transmit(d, protocol.Encode(protocol.KindDisconnect, d.Session(), nil), n.opts.Clock())
}

// Advertise registers the server under service so clients can find it.
// host is the address clients should dial; the port is the provider's.
// The instance weight is the number of free slots at the time of the call,
// so calling Advertise again refreshes it.
func (s *Server) Advertise(reg registry.Registry, service, version, host string, ttl int64) error {
	inst := registry.ServiceInstance{
		Addr:    net.JoinHostPort(host, strconv.Itoa(s.provider.LocalPort())),
		Weight:  len(s.fixed.peers) - s.ConnectedCount(),
		Version: version,
	}
	if err := reg.Register(service, inst, ttl); err != nil {
		return fmt.Errorf("node: advertise %s: %w", service, err)
	}
	s.registry, s.service, s.instance = reg, service, inst
	s.log.Info("advertised", zap.String("service", service), zap.String("addr", inst.Addr), zap.Int("free", inst.Weight))
	return nil
}

// Shutdown disconnects every client and withdraws the advertisement. The
// provider is left open for the caller to close.
func (s *Server) Shutdown() error {
	for _, d := range s.fixed.peers {
		if d.Connected() {
			s.sendDisconnect(d)
			s.drop(d, remote.ReasonShutdown)
		}
	}
	if s.registry == nil {
		return nil
	}
	err := s.registry.Deregister(s.service, s.instance.Addr)
	s.registry = nil
	return err
}
