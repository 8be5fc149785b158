package registry

import (
	"sort"
	"sync"
)

// MemoryRegistry is an in-process Registry for tests and single-host setups.
// TTLs are ignored.
type MemoryRegistry struct {
	mu       sync.Mutex
	services map[string]map[string]ServiceInstance
	watchers map[string][]chan []ServiceInstance
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		services: make(map[string]map[string]ServiceInstance),
		watchers: make(map[string][]chan []ServiceInstance),
	}
}

func (r *MemoryRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.services[serviceName] == nil {
		r.services[serviceName] = make(map[string]ServiceInstance)
	}
	r.services[serviceName][instance.Addr] = instance
	r.notify(serviceName)
	return nil
}

func (r *MemoryRegistry) Deregister(serviceName string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services[serviceName], addr)
	r.notify(serviceName)
	return nil
}

func (r *MemoryRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(serviceName), nil
}

func (r *MemoryRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan []ServiceInstance, 1)
	r.watchers[serviceName] = append(r.watchers[serviceName], ch)
	return ch
}

// list returns instances ordered by address so callers see a stable order.
func (r *MemoryRegistry) list(serviceName string) []ServiceInstance {
	out := make([]ServiceInstance, 0, len(r.services[serviceName]))
	for _, inst := range r.services[serviceName] {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// notify replaces any unread update with the latest list.
func (r *MemoryRegistry) notify(serviceName string) {
	instances := r.list(serviceName)
	for _, ch := range r.watchers[serviceName] {
		select {
		case <-ch:
		default:
		}
		ch <- instances
	}
}
