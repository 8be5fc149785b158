// Package loadbalance chooses which advertised server a client dials.
//
// Three strategies are implemented:
//   - RoundRobin:      spread successive dials evenly
//   - WeightedRandom:  prefer servers advertising more free slots
//   - ConsistentHash:  send the same player key to the same server
package loadbalance

import (
	"errors"
	"fmt"
	"rigelnet/registry"
)

// ErrNoInstances is returned when there is nothing to pick from.
var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer is the interface for load balancing strategies.
// Pick must be goroutine-safe.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New returns the strategy called name. key is only used by
// "consistent-hash".
func New(name, key string) (Balancer, error) {
	switch name {
	case "", "round-robin":
		return &RoundRobinBalancer{}, nil
	case "weighted-random":
		return NewWeightedRandomBalancer(0), nil
	case "consistent-hash":
		return &KeyedBalancer{Key: key}, nil
	}
	return nil, fmt.Errorf("loadbalance: unknown strategy %q", name)
}
