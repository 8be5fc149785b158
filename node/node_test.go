package node

import (
	"context"
	"errors"
	"fmt"
	"rigelnet/handler"
	"rigelnet/objectmap"
	"rigelnet/protocol"
	"rigelnet/provider"
	"rigelnet/remote"
	"strings"
	"testing"
	"time"
)

const (
	serverHost = "10.0.0.1"
	serverPort = 7000
	serverAddr = "10.0.0.1:7000"
)

type events struct {
	connects    int
	disconnects []remote.Reason
}

func (e *events) options(o Options) Options {
	o.OnConnect = func(*remote.Descriptor) { e.connects++ }
	o.OnDisconnect = func(_ *remote.Descriptor, r remote.Reason) { e.disconnects = append(e.disconnects, r) }
	return o
}

func testOptions(net *provider.Network, o Options) Options {
	o.Clock = net.Now
	if o.LivenessTimeout == 0 {
		o.LivenessTimeout = 2 * time.Second
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = 500 * time.Millisecond
	}
	return o
}

func newTestServer(t *testing.T, net *provider.Network, o Options) *Server {
	t.Helper()
	ep, err := net.Endpoint(serverHost, serverPort)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewServer(ep, testOptions(net, o))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestClient(t *testing.T, net *provider.Network, host string, o Options) (*Client, *provider.Endpoint) {
	t.Helper()
	ep, err := net.Endpoint(host, 5000)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewClient(ep, testOptions(net, o))
	if err != nil {
		t.Fatal(err)
	}
	return c, ep
}

type updater interface {
	Update() error
}

// tick runs count ticks of every node, advancing the clock by step after each.
func tick(net *provider.Network, step time.Duration, count int, nodes ...updater) []error {
	var errs []error
	for i := 0; i < count; i++ {
		for _, n := range nodes {
			if err := n.Update(); err != nil {
				errs = append(errs, err)
			}
		}
		net.Advance(step)
	}
	return errs
}

func connect(t *testing.T, net *provider.Network, s *Server, c *Client) {
	t.Helper()
	if err := c.Dial(serverHost, serverPort, "pw1"); err != nil {
		t.Fatal(err)
	}
	tick(net, 0, 1, s, c)
	if c.Status() != remote.StatusConnected {
		t.Fatalf("expect connected after one tick pair, got %s (%v)", c.Status(), c.Err())
	}
}

// recorder registers a string handler at index and collects what it receives.
func recorder(t *testing.T, reg *handler.Registry, index uint32) *[]string {
	t.Helper()
	var got []string
	err := reg.RegisterEntry(handler.Entry{Index: index, Name: "record", Arity: 1, Func: func(_ context.Context, req *handler.Request) error {
		var s string
		if err := req.Call.Args.Scan(&s); err != nil {
			return err
		}
		got = append(got, s)
		return nil
	}})
	if err != nil {
		t.Fatal(err)
	}
	return &got
}

func TestConnect(t *testing.T) {
	net := provider.NewNetwork(1)
	var se, ce events
	s := newTestServer(t, net, se.options(Options{Passphrase: "pw1"}))
	c, _ := newTestClient(t, net, "10.0.0.2", ce.options(Options{}))

	connect(t, net, s, c)
	if s.ConnectedCount() != 1 {
		t.Fatalf("expect 1 connected client, got %d", s.ConnectedCount())
	}
	if se.connects != 1 || ce.connects != 1 {
		t.Fatalf("expect one connect notification per side, got server=%d client=%d", se.connects, ce.connects)
	}
	peer, _ := s.Peer(0)
	if peer.Address() != "10.0.0.2:5000" {
		t.Fatalf("unexpected peer address %s", peer.Address())
	}
	if err := c.Dial(serverHost, serverPort, "pw1"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expect ErrBusy dialing twice, got %v", err)
	}
}

func TestWrongPassphraseTimesOut(t *testing.T) {
	net := provider.NewNetwork(1)
	s := newTestServer(t, net, Options{Passphrase: "pw1"})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{})

	if err := c.Dial(serverHost, serverPort, "nope"); err != nil {
		t.Fatal(err)
	}
	var errs []error
	for i := 0; i < 500 && c.Status() != remote.StatusDisconnected; i++ {
		errs = append(errs, tick(net, 50*time.Millisecond, 1, s, c)...)
	}
	if c.Status() != remote.StatusDisconnected {
		t.Fatal("expect the dial to give up")
	}
	if !errors.Is(c.Err(), ErrConnectTimeout) {
		t.Fatalf("expect ErrConnectTimeout, got %v", c.Err())
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrConnectTimeout) {
		t.Fatalf("expect Update to report the timeout once, got %v", errs)
	}
	if s.ConnectedCount() != 0 {
		t.Fatal("server accepted a wrong passphrase")
	}
}

func TestServerFull(t *testing.T) {
	net := provider.NewNetwork(1)
	s := newTestServer(t, net, Options{Passphrase: "pw1", MaxConnections: 1})
	c1, _ := newTestClient(t, net, "10.0.0.2", Options{})
	c2, _ := newTestClient(t, net, "10.0.0.3", Options{})

	connect(t, net, s, c1)

	if err := c2.Dial(serverHost, serverPort, "pw1"); err != nil {
		t.Fatal(err)
	}
	s.Update()
	err := c2.Update()
	if !errors.Is(err, ErrServerFull) || !errors.Is(c2.Err(), ErrServerFull) {
		t.Fatalf("expect ErrServerFull, got %v / %v", err, c2.Err())
	}
	if c2.Status() != remote.StatusDisconnected {
		t.Fatalf("expect rejected client disconnected, got %s", c2.Status())
	}

	// The slot frees up once the first client leaves.
	c1.Disconnect()
	s.Update()
	connect(t, net, s, c2)
}

func TestExactlyOnceUnderLoss(t *testing.T) {
	net := provider.NewNetwork(1)
	reg := handler.NewRegistry()
	got := recorder(t, reg, 1)
	s := newTestServer(t, net, Options{Passphrase: "pw1", Handlers: reg})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{})
	connect(t, net, s, c)

	net.SetLink("10.0.0.2:5000", serverAddr, provider.Link{DropEvery: 2})

	var want []string
	for i := 0; i < 10; i++ {
		msg := fmt.Sprintf("m%d", i)
		want = append(want, msg)
		if err := c.Call(1, msg); err != nil {
			t.Fatal(err)
		}
	}
	if errs := tick(net, 10*time.Millisecond, 100, s, c); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if fmt.Sprint(*got) != fmt.Sprint(want) {
		t.Fatalf("expect %v delivered once in order, got %v", want, *got)
	}
	if c.Remote().Pending().Len() != 0 {
		t.Fatalf("expect every frame acknowledged, %d pending", c.Remote().Pending().Len())
	}
	if st := net.Stats("10.0.0.2:5000", serverAddr); st.Dropped == 0 {
		t.Fatal("expect the link to have dropped datagrams")
	}
}

func TestDuplicatesSuppressed(t *testing.T) {
	net := provider.NewNetwork(1)
	reg := handler.NewRegistry()
	got := recorder(t, reg, 1)
	s := newTestServer(t, net, Options{Passphrase: "pw1", Handlers: reg})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{})
	connect(t, net, s, c)

	net.SetLink("10.0.0.2:5000", serverAddr, provider.Link{Duplicate: 1})
	for i := 0; i < 5; i++ {
		c.Call(1, fmt.Sprintf("d%d", i))
	}
	tick(net, 10*time.Millisecond, 20, s, c)

	if len(*got) != 5 {
		t.Fatalf("expect 5 deliveries, got %d: %v", len(*got), *got)
	}
}

func TestReorderedDeliveredInOrder(t *testing.T) {
	net := provider.NewNetwork(3)
	reg := handler.NewRegistry()
	got := recorder(t, reg, 1)
	s := newTestServer(t, net, Options{Passphrase: "pw1", Handlers: reg})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{})
	connect(t, net, s, c)

	net.SetLink("10.0.0.2:5000", serverAddr, provider.Link{Jitter: 40 * time.Millisecond})
	var want []string
	for i := 0; i < 20; i++ {
		msg := fmt.Sprintf("r%d", i)
		want = append(want, msg)
		c.Call(1, msg)
	}
	tick(net, 5*time.Millisecond, 100, s, c)

	if fmt.Sprint(*got) != fmt.Sprint(want) {
		t.Fatalf("expect in-order delivery %v, got %v", want, *got)
	}
}

func TestLivenessTimeout(t *testing.T) {
	net := provider.NewNetwork(1)
	var se, ce events
	s := newTestServer(t, net, se.options(Options{Passphrase: "pw1"}))
	c, _ := newTestClient(t, net, "10.0.0.2", ce.options(Options{}))
	connect(t, net, s, c)

	net.SetLink("10.0.0.2:5000", serverAddr, provider.Link{Down: true})
	net.SetLink(serverAddr, "10.0.0.2:5000", provider.Link{Down: true})

	tick(net, 100*time.Millisecond, 19, s, c)
	if c.Status() != remote.StatusConnected {
		t.Fatal("disconnected before the liveness timeout")
	}
	tick(net, 100*time.Millisecond, 5, s, c)

	if c.Status() != remote.StatusDisconnected || s.ConnectedCount() != 0 {
		t.Fatalf("expect both sides to time out, client=%s server=%d", c.Status(), s.ConnectedCount())
	}
	if len(se.disconnects) != 1 || se.disconnects[0] != remote.ReasonTimeout {
		t.Fatalf("expect one server timeout notification, got %v", se.disconnects)
	}
	if len(ce.disconnects) != 1 || ce.disconnects[0] != remote.ReasonTimeout {
		t.Fatalf("expect one client timeout notification, got %v", ce.disconnects)
	}
}

func TestHeartbeatsKeepIdleConnection(t *testing.T) {
	net := provider.NewNetwork(1)
	s := newTestServer(t, net, Options{Passphrase: "pw1"})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{})
	connect(t, net, s, c)

	tick(net, 50*time.Millisecond, 200, s, c)

	if c.Status() != remote.StatusConnected || s.ConnectedCount() != 1 {
		t.Fatal("idle connection dropped despite heartbeats")
	}
}

func TestLatencyFromHeartbeats(t *testing.T) {
	net := provider.NewNetwork(1)
	s := newTestServer(t, net, Options{Passphrase: "pw1"})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{})
	connect(t, net, s, c)

	net.SetLink("10.0.0.2:5000", serverAddr, provider.Link{Delay: 20 * time.Millisecond})
	net.SetLink(serverAddr, "10.0.0.2:5000", provider.Link{Delay: 20 * time.Millisecond})
	tick(net, 10*time.Millisecond, 3000, s, c)

	if l := c.Remote().Latency(); l < 35*time.Millisecond || l > 45*time.Millisecond {
		t.Fatalf("expect latency near 40ms, got %s", l)
	}
}

func TestReplyKickAndDisconnect(t *testing.T) {
	net := provider.NewNetwork(1)
	sreg := handler.NewRegistry()
	sreg.Register(1, "echo", func(_ context.Context, req *handler.Request) error {
		var s string
		if err := req.Call.Args.Scan(&s); err != nil {
			return err
		}
		return req.Node.Send(req.Sender, 2, "echo:"+s)
	})
	creg := handler.NewRegistry()
	got := recorder(t, creg, 2)

	var se, ce events
	s := newTestServer(t, net, se.options(Options{Passphrase: "pw1", Handlers: sreg}))
	c, _ := newTestClient(t, net, "10.0.0.2", ce.options(Options{Handlers: creg}))
	connect(t, net, s, c)

	c.Call(1, "ping")
	tick(net, 10*time.Millisecond, 3, s, c)
	if len(*got) != 1 || (*got)[0] != "echo:ping" {
		t.Fatalf("expect echo reply, got %v", *got)
	}

	if err := s.Kick(0); err != nil {
		t.Fatal(err)
	}
	tick(net, 10*time.Millisecond, 1, s, c)
	if c.Status() != remote.StatusDisconnected {
		t.Fatal("kicked client still connected")
	}
	if fmt.Sprint(se.disconnects) != "[kicked]" || fmt.Sprint(ce.disconnects) != "[remote]" {
		t.Fatalf("unexpected reasons server=%v client=%v", se.disconnects, ce.disconnects)
	}
	if err := s.Kick(0); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expect ErrNotConnected kicking an empty slot, got %v", err)
	}

	connect(t, net, s, c)
	c.Disconnect()
	tick(net, 10*time.Millisecond, 1, s, c)
	if s.ConnectedCount() != 0 {
		t.Fatal("server kept a client that disconnected")
	}
	if fmt.Sprint(ce.disconnects) != "[remote local]" {
		t.Fatalf("unexpected client reasons %v", ce.disconnects)
	}
	if err := c.Call(1, "late"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expect ErrNotConnected after disconnect, got %v", err)
	}
}

func TestBroadcast(t *testing.T) {
	net := provider.NewNetwork(1)
	s := newTestServer(t, net, Options{Passphrase: "pw1"})
	r1, r2 := handler.NewRegistry(), handler.NewRegistry()
	got1, got2 := recorder(t, r1, 4), recorder(t, r2, 4)
	c1, _ := newTestClient(t, net, "10.0.0.2", Options{Handlers: r1})
	c2, _ := newTestClient(t, net, "10.0.0.3", Options{Handlers: r2})
	connect(t, net, s, c1)
	connect(t, net, s, c2)

	if err := s.Broadcast(4, "round-start"); err != nil {
		t.Fatal(err)
	}
	tick(net, 10*time.Millisecond, 2, s, c1, c2)

	if len(*got1) != 1 || len(*got2) != 1 {
		t.Fatalf("expect each client to get the broadcast once, got %v %v", *got1, *got2)
	}
	if len(s.Peers()) != 2 {
		t.Fatalf("expect 2 peers, got %d", len(s.Peers()))
	}
}

func TestHandlerErrorsKeepConnection(t *testing.T) {
	net := provider.NewNetwork(1)
	reg := handler.NewRegistry()
	got := recorder(t, reg, 1)
	s := newTestServer(t, net, Options{Passphrase: "pw1", Handlers: reg})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{})
	connect(t, net, s, c)

	c.Call(99, "nobody")
	c.Call(1, "a", "b")
	c.Call(1, "after")

	err := s.Update()
	if !errors.Is(err, handler.ErrUnregistered) || !errors.Is(err, handler.ErrArity) {
		t.Fatalf("expect unregistered and arity errors, got %v", err)
	}
	if s.ConnectedCount() != 1 {
		t.Fatal("handler error dropped the connection")
	}
	if len(*got) != 1 || (*got)[0] != "after" {
		t.Fatalf("expect later call delivered, got %v", *got)
	}
}

func TestMaxArgs(t *testing.T) {
	net := provider.NewNetwork(1)
	s := newTestServer(t, net, Options{Passphrase: "pw1"})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{MaxArgs: 2})
	connect(t, net, s, c)

	if err := c.Call(1, 1, 2, 3); !errors.Is(err, protocol.ErrTooManyArgs) {
		t.Fatalf("expect ErrTooManyArgs, got %v", err)
	}
	if c.Remote().Pending().Len() != 0 {
		t.Fatal("rejected call was queued")
	}

	ep, _ := net.Endpoint("10.0.0.9", 1)
	if _, err := NewClient(ep, Options{MaxArgs: protocol.MaxArgs + 1}); err == nil {
		t.Fatal("expect error for MaxArgs above the compiled-in limit")
	}
	if _, err := NewClient(ep, Options{LivenessTimeout: time.Second, HeartbeatInterval: time.Second}); err == nil {
		t.Fatal("expect error for heartbeat interval not below liveness timeout")
	}
}

func TestReconnectWithNewSession(t *testing.T) {
	net := provider.NewNetwork(1)
	reg := handler.NewRegistry()
	got := recorder(t, reg, 1)
	var se events
	s := newTestServer(t, net, se.options(Options{Passphrase: "pw1", Handlers: reg}))
	c, ep := newTestClient(t, net, "10.0.0.2", Options{})
	connect(t, net, s, c)
	c.Call(1, "first")
	tick(net, 10*time.Millisecond, 2, s, c)
	oldSession := c.Remote().Session()

	// The Disconnect is lost, so the server still holds the old session.
	net.SetLink("10.0.0.2:5000", serverAddr, provider.Link{Down: true})
	c.Disconnect()
	net.SetLink("10.0.0.2:5000", serverAddr, provider.Link{})

	connect(t, net, s, c)
	if c.Remote().Session() == oldSession {
		t.Fatal("expect a fresh session token per dial")
	}
	if fmt.Sprint(se.disconnects) != "[remote]" || se.connects != 2 {
		t.Fatalf("expect the old session replaced, disconnects=%v connects=%d", se.disconnects, se.connects)
	}

	// Ordinals restart after the new session token.
	c.Call(1, "second")
	tick(net, 10*time.Millisecond, 2, s, c)
	if fmt.Sprint(*got) != "[first second]" {
		t.Fatalf("unexpected deliveries %v", *got)
	}

	// A stale Disconnect from the old session is ignored.
	ep.Send(serverHost, serverPort, protocol.Encode(protocol.KindDisconnect, oldSession, nil))
	s.Update()
	if s.ConnectedCount() != 1 {
		t.Fatal("stale disconnect closed the new session")
	}
}

func TestReconnectIgnoresDelayedFramesOfOldSession(t *testing.T) {
	net := provider.NewNetwork(1)
	reg := handler.NewRegistry()
	got := recorder(t, reg, 1)
	s := newTestServer(t, net, Options{Passphrase: "pw1", Handlers: reg})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{})
	connect(t, net, s, c)

	// "old" is still in flight when the client hangs up and dials again.
	net.SetLink("10.0.0.2:5000", serverAddr, provider.Link{Delay: time.Second})
	if err := c.Call(1, "old"); err != nil {
		t.Fatal(err)
	}
	net.SetLink("10.0.0.2:5000", serverAddr, provider.Link{})
	c.Disconnect()
	connect(t, net, s, c)

	tick(net, 20*time.Millisecond, 60, s, c)
	if err := c.Call(1, "new"); err != nil {
		t.Fatal(err)
	}
	tick(net, 20*time.Millisecond, 150, s, c)

	if fmt.Sprint(*got) != "[new]" {
		t.Fatalf("expect only the new session's call, got %v", *got)
	}
	if c.Remote().Pending().Len() != 0 {
		t.Fatalf("expect the new call acknowledged, %d pending", c.Remote().Pending().Len())
	}
}

func TestLatencyTracksDelayUnderTraffic(t *testing.T) {
	net := provider.NewNetwork(1)
	s := newTestServer(t, net, Options{Passphrase: "pw1"})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{})
	connect(t, net, s, c)

	// The handshake ran on a zero-delay link, so the estimate sits at the floor.
	net.SetLink("10.0.0.2:5000", serverAddr, provider.Link{Delay: 150 * time.Millisecond})
	net.SetLink(serverAddr, "10.0.0.2:5000", provider.Link{Delay: 150 * time.Millisecond})
	for i := 0; i < 400; i++ {
		c.Call(1, "x")
		tick(net, 20*time.Millisecond, 1, s, c)
	}
	if l := c.Remote().Latency(); l < 250*time.Millisecond || l > 400*time.Millisecond {
		t.Fatalf("expect latency near the 320ms round trip, got %s", l)
	}

	// With a fresh estimate nothing is resent.
	net.SetLink("10.0.0.2:5000", serverAddr, provider.Link{Delay: 150 * time.Millisecond})
	for i := 0; i < 100; i++ {
		c.Call(1, "x")
		tick(net, 20*time.Millisecond, 1, s, c)
	}
	if sent := net.Stats("10.0.0.2:5000", serverAddr).Sent; sent > 120 {
		t.Fatalf("expect about one datagram per call, got %d for 100 calls", sent)
	}
}

func TestFrameTooLarge(t *testing.T) {
	net := provider.NewNetwork(1)
	reg := handler.NewRegistry()
	got := recorder(t, reg, 1)
	s := newTestServer(t, net, Options{Passphrase: "pw1", Handlers: reg, MaxFrameSize: 256})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{})
	connect(t, net, s, c)

	if err := c.Call(1, strings.Repeat("x", 70000)); !errors.Is(err, protocol.ErrFrameTooLarge) {
		t.Fatalf("expect ErrFrameTooLarge, got %v", err)
	}
	if c.Remote().Pending().Len() != 0 {
		t.Fatal("oversized call was queued")
	}
	if err := c.Call(1, "small"); err != nil {
		t.Fatal(err)
	}
	tick(net, 10*time.Millisecond, 3, s, c)
	if fmt.Sprint(*got) != "[small]" {
		t.Fatalf("expect later call delivered, got %v", *got)
	}

	if err := s.Broadcast(1, strings.Repeat("y", 300)); !errors.Is(err, protocol.ErrFrameTooLarge) {
		t.Fatalf("expect broadcast over the node limit to fail, got %v", err)
	}

	c2, _ := newTestClient(t, net, "10.0.0.3", Options{MaxFrameSize: protocol.MinFrameSize})
	if err := c2.Dial(serverHost, serverPort, strings.Repeat("p", 100)); !errors.Is(err, protocol.ErrFrameTooLarge) {
		t.Fatalf("expect oversized handshake refused, got %v", err)
	}
	ep, _ := net.Endpoint("10.0.0.9", 1)
	if _, err := NewClient(ep, Options{MaxFrameSize: protocol.MaxFrameSize + 1}); err == nil {
		t.Fatal("expect error for MaxFrameSize above one datagram")
	}
}

func TestZeroInitialLatencyDefaults(t *testing.T) {
	net := provider.NewNetwork(1)
	c, _ := newTestClient(t, net, "10.0.0.2", Options{Latency: remote.LatencyLimits{Min: time.Millisecond, Max: time.Second}})
	net.SetLink("10.0.0.2:5000", serverAddr, provider.Link{Down: true})

	if err := c.Dial(serverHost, serverPort, "pw1"); err != nil {
		t.Fatal(err)
	}
	if l := c.Remote().Latency(); l != remote.DefaultLatencyLimits.Initial {
		t.Fatalf("expect default initial estimate, got %s", l)
	}
	tick(net, 20*time.Millisecond, 5, c)
	if cycles := c.Remote().Pending().Frames()[0].Cycles; cycles != 0 {
		t.Fatalf("handshake resent %d times within 100ms", cycles)
	}
}

func TestObjectIDsOverRPC(t *testing.T) {
	net := provider.NewNetwork(1)
	reg := handler.NewRegistry()
	var resolved []bool
	s := newTestServer(t, net, Options{Passphrase: "pw1", Handlers: reg})
	reg.RegisterEntry(handler.Entry{Index: 3, Name: "use", Arity: 1, Func: func(_ context.Context, req *handler.Request) error {
		var id uint32
		if err := req.Call.Args.Scan(&id); err != nil {
			return err
		}
		_, ok := s.Objects().Resolve(objectmap.ID(id))
		resolved = append(resolved, ok)
		return nil
	}})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{})
	connect(t, net, s, c)

	id, err := s.Objects().Publish("crate")
	if err != nil {
		t.Fatal(err)
	}
	c.Call(3, uint32(id))
	tick(net, 10*time.Millisecond, 2, s, c)

	s.Objects().Withdraw(id)
	c.Call(3, uint32(id))
	tick(net, 10*time.Millisecond, 2, s, c)

	if fmt.Sprint(resolved) != "[true false]" {
		t.Fatalf("expect resolve then not-found, got %v", resolved)
	}
}

func TestSendToForeignDescriptorPanics(t *testing.T) {
	net := provider.NewNetwork(1)
	s := newTestServer(t, net, Options{Passphrase: "pw1"})
	c, _ := newTestClient(t, net, "10.0.0.2", Options{})
	connect(t, net, s, c)

	defer func() {
		if recover() == nil {
			t.Fatal("expect panic sending through a descriptor of another node")
		}
	}()
	s.Send(c.Remote(), 1, "x")
}
