package loadbalance

import (
	"fmt"
	"hash/crc32"
	"rigelnet/registry"
	"sort"
)

// ConsistentHashBalancer maps keys to instances using a hash ring, so a
// returning player lands on the server that already holds their state.
//
// Each real instance owns replicas virtual nodes; without them three
// instances can cluster on the ring and split load unevenly.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A'
//	                ╲   ╱
type ConsistentHashBalancer struct {
	replicas int
	ring     []uint32
	nodes    map[uint32]registry.ServiceInstance
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes per instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]registry.ServiceInstance),
	}
}

// Add places an instance onto the ring. Virtual node i hashes "{addr}#{i}".
func (b *ConsistentHashBalancer) Add(instance registry.ServiceInstance) {
	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", instance.Addr, i)))
		if _, taken := b.nodes[hash]; !taken {
			b.ring = append(b.ring, hash)
		}
		b.nodes[hash] = instance
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

// Remove takes an instance and its virtual nodes off the ring.
func (b *ConsistentHashBalancer) Remove(addr string) {
	kept := b.ring[:0]
	for _, h := range b.ring {
		if b.nodes[h].Addr == addr {
			delete(b.nodes, h)
			continue
		}
		kept = append(kept, h)
	}
	b.ring = kept
}

// Pick finds the first ring node at or after hash(key), wrapping to the start.
func (b *ConsistentHashBalancer) Pick(key string) (*registry.ServiceInstance, error) {
	if len(b.ring) == 0 {
		return nil, ErrNoInstances
	}
	hash := crc32.ChecksumIEEE([]byte(key))

	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}

	inst := b.nodes[b.ring[idx]]
	return &inst, nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}

// KeyedBalancer adapts consistent hashing to the Balancer interface: each
// Pick builds a ring from the given instances and looks up Key.
type KeyedBalancer struct {
	Key string
}

func (b *KeyedBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	ring := NewConsistentHashBalancer()
	for _, inst := range instances {
		ring.Add(inst)
	}
	return ring.Pick(b.Key)
}

func (b *KeyedBalancer) Name() string {
	return "ConsistentHash"
}
