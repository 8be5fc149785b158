package node

import "rigelnet/remote"

// slotTable is the part of a node that differs between roles: a client
// talks to one fixed peer, a server to a fixed array of them.
type slotTable interface {
	find(addr string, port int) *remote.Descriptor
	claim() (*remote.Descriptor, bool)
	all() []*remote.Descriptor
}

// singleSlot holds the client's server.
type singleSlot struct {
	peer *remote.Descriptor
}

func (s *singleSlot) find(addr string, port int) *remote.Descriptor {
	if s.peer.Matches(addr, port) {
		return s.peer
	}
	return nil
}

// claim is never used for inbound handshakes on a client.
func (s *singleSlot) claim() (*remote.Descriptor, bool) {
	return nil, false
}

func (s *singleSlot) all() []*remote.Descriptor {
	return []*remote.Descriptor{s.peer}
}

// fixedSlots holds a server's peers. Slot numbers never move.
type fixedSlots struct {
	peers []*remote.Descriptor
}

func newFixedSlots(n int, limits remote.LatencyLimits, window int) *fixedSlots {
	s := &fixedSlots{peers: make([]*remote.Descriptor, n)}
	for i := range s.peers {
		s.peers[i] = remote.NewDescriptor(i, limits, window)
	}
	return s
}

func (s *fixedSlots) find(addr string, port int) *remote.Descriptor {
	for _, d := range s.peers {
		if d.Matches(addr, port) {
			return d
		}
	}
	return nil
}

// claim returns the lowest free slot.
func (s *fixedSlots) claim() (*remote.Descriptor, bool) {
	for _, d := range s.peers {
		if d.Status() == remote.StatusDisconnected {
			return d, true
		}
	}
	return nil, false
}

func (s *fixedSlots) all() []*remote.Descriptor {
	return s.peers
}
