package loadbalance

import (
	"math/rand"
	"rigelnet/registry"
	"sync"
	"time"
)

// WeightedRandomBalancer picks an instance with probability proportional to
// its Weight. Servers advertise their free slot count as the weight, so a
// full server (weight 0) is never chosen.
type WeightedRandomBalancer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewWeightedRandomBalancer seeds the generator; seed 0 uses the clock.
func NewWeightedRandomBalancer(seed int64) *WeightedRandomBalancer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &WeightedRandomBalancer{rng: rand.New(rand.NewSource(seed))}
}

func (b *WeightedRandomBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	totalWeight := 0
	for _, v := range instances {
		if v.Weight > 0 {
			totalWeight += v.Weight
		}
	}
	if totalWeight == 0 {
		return nil, ErrNoInstances
	}

	b.mu.Lock()
	r := b.rng.Intn(totalWeight)
	b.mu.Unlock()

	for i := range instances {
		if instances[i].Weight <= 0 {
			continue
		}
		r -= instances[i].Weight
		if r < 0 {
			return &instances[i], nil
		}
	}
	return nil, ErrNoInstances
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
