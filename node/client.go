package node

import (
	"context"
	"fmt"
	"rigelnet/loadbalance"
	"rigelnet/protocol"
	"rigelnet/provider"
	"rigelnet/registry"
	"rigelnet/remote"
	"time"

	"go.uber.org/zap"
)

// Client connects to one server at a time.
type Client struct {
	*Node
	peer *remote.Descriptor
}

// NewClient creates a client on p. The provider must already be bound.
func NewClient(p provider.Provider, opts Options) (*Client, error) {
	n, err := newNode(RoleClient, p, opts)
	if err != nil {
		return nil, err
	}
	return &Client{Node: n, peer: n.slots.(*singleSlot).peer}, nil
}

// Remote returns the descriptor of the server.
func (c *Client) Remote() *remote.Descriptor { return c.peer }

// Status returns the connection status.
func (c *Client) Status() remote.Status { return c.peer.Status() }

// Err returns why the last dial failed, or nil.
func (c *Client) Err() error { return c.connectErr }

// Dial starts a handshake with addr:port and returns immediately; Update
// drives it. An empty passphrase uses Options.Passphrase.
func (c *Client) Dial(addr string, port int, passphrase string) error {
	if c.peer.Status() != remote.StatusDisconnected {
		return ErrBusy
	}
	if passphrase == "" {
		passphrase = c.opts.Passphrase
	}
	payload, err := protocol.EncodeHandshake(passphrase)
	if err != nil {
		return err
	}
	if err := protocol.CheckSize(len(payload), c.opts.MaxFrameSize); err != nil {
		return err
	}

	now := c.opts.Clock()
	session := c.nextSession()
	c.connectErr = nil
	c.peer.Bind(addr, port, session, remote.StatusAwaitingHandshakeAck, now)

	data := protocol.Encode(protocol.KindHandshake, session, payload)
	c.peer.Pending().Push(protocol.KindHandshake, session, data, now)
	c.transmit(c.peer, data, now)
	c.log.Debug("dialing", zap.String("server", c.peer.Address()))
	return nil
}

// Connect dials and ticks until the handshake completes, fails, or ctx
// ends. It calls Update on its own ticker, so the caller must not tick
// concurrently. Handler errors during the wait are logged, not returned.
func (c *Client) Connect(ctx context.Context, addr string, port int, passphrase string) error {
	if err := c.Dial(addr, port, passphrase); err != nil {
		return err
	}
	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()
	for {
		_ = c.Update()
		switch c.peer.Status() {
		case remote.StatusConnected:
			return nil
		case remote.StatusDisconnected:
			if c.connectErr != nil {
				return c.connectErr
			}
			return ErrConnectTimeout
		}
		select {
		case <-ctx.Done():
			c.Disconnect()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ConnectService discovers service in reg, keeps instances whose version
// satisfies constraint, lets bal pick one, and connects to it.
func (c *Client) ConnectService(ctx context.Context, reg registry.Registry, bal loadbalance.Balancer, service, constraint, passphrase string) error {
	instances, err := reg.Discover(service)
	if err != nil {
		return fmt.Errorf("node: discover %s: %w", service, err)
	}
	instances, err = registry.Compatible(instances, constraint)
	if err != nil {
		return err
	}
	inst, err := bal.Pick(instances)
	if err != nil {
		return fmt.Errorf("node: pick %s: %w", service, err)
	}
	host, port, err := inst.HostPort()
	if err != nil {
		return err
	}
	c.log.Info("connecting to service", zap.String("service", service), zap.String("addr", inst.Addr),
		zap.String("version", inst.Version), zap.String("balancer", bal.Name()))
	return c.Connect(ctx, host, port, passphrase)
}

// Disconnect ends the connection or abandons a pending dial. The server is
// told with one unacknowledged Disconnect frame.
func (c *Client) Disconnect() {
	switch c.peer.Status() {
	case remote.StatusConnected:
		c.sendDisconnect(c.peer)
		c.drop(c.peer, remote.ReasonLocal)
	case remote.StatusAwaitingHandshakeAck:
		c.peer.Close()
	}
}

// Call invokes handler index on the server.
func (c *Client) Call(index uint32, args ...any) error {
	return c.Send(c.peer, index, args...)
}

func (n *Node) handshakeAck(d *remote.Descriptor, f protocol.Frame, now time.Time) {
	if d.Status() != remote.StatusAwaitingHandshakeAck || f.Ordinal != d.Session() {
		return
	}
	for _, p := range d.Pending().RemoveKind(protocol.KindHandshake) {
		if p.Cycles == 0 {
			d.ObserveRTT(now.Sub(p.FirstSent))
		}
	}
	d.Establish(now)
	slot, _ := protocol.DecodeHandshakeAck(f.Payload)
	n.log.Debug("handshake accepted", zap.Uint32("slot", slot))
	n.connected(d)
}

func (n *Node) handshakeReject(d *remote.Descriptor, f protocol.Frame) error {
	if d.Status() != remote.StatusAwaitingHandshakeAck || f.Ordinal != d.Session() {
		return nil
	}
	return n.failConnect(d, ErrServerFull)
}

func (n *Node) failConnect(d *remote.Descriptor, err error) error {
	addr := d.Address()
	d.Close()
	n.connectErr = fmt.Errorf("%w: %s", err, addr)
	n.log.Info("connect failed", zap.String("server", addr), zap.Error(err))
	return n.connectErr
}

