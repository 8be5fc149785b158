package loadbalance

import (
	"errors"
	"fmt"
	"rigelnet/registry"
	"testing"
)

var testInstances = []registry.ServiceInstance{
	{Addr: "10.0.0.1:7000", Weight: 10, Version: "1.0.0"},
	{Addr: "10.0.0.2:7000", Weight: 5, Version: "1.0.0"},
	{Addr: "10.0.0.3:7000", Weight: 10, Version: "1.0.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		inst, err := b.Pick(testInstances)
		if err != nil {
			t.Fatal(err)
		}
		results[i] = inst.Addr
	}
	if results[0] != testInstances[0].Addr || results[2] != testInstances[2].Addr {
		t.Fatalf("expect instances in order, got %v", results)
	}

	// Pick again, should wrap around to first
	inst, _ := b.Pick(testInstances)
	if inst.Addr != results[0] {
		t.Fatalf("expect wrap around to %s, got %s", results[0], inst.Addr)
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	if _, err := b.Pick(nil); !errors.Is(err, ErrNoInstances) {
		t.Fatalf("expect ErrNoInstances, got %v", err)
	}
}

func TestWeightedRandom(t *testing.T) {
	b := NewWeightedRandomBalancer(1)

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(testInstances)
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.Addr]++
	}

	// Weight ratio is 10:5:10
	ratio := float64(counts["10.0.0.1:7000"]) / float64(counts["10.0.0.2:7000"])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio = %.2f, expect ~2.0", ratio)
	}
}

func TestWeightedRandomSkipsFullServers(t *testing.T) {
	b := NewWeightedRandomBalancer(7)
	instances := []registry.ServiceInstance{
		{Addr: "full:1", Weight: 0},
		{Addr: "open:1", Weight: 3},
	}
	for i := 0; i < 100; i++ {
		inst, err := b.Pick(instances)
		if err != nil {
			t.Fatal(err)
		}
		if inst.Addr != "open:1" {
			t.Fatalf("picked full server %s", inst.Addr)
		}
	}

	if _, err := b.Pick(instances[:1]); !errors.Is(err, ErrNoInstances) {
		t.Fatalf("expect ErrNoInstances when every server is full, got %v", err)
	}
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer()
	for _, inst := range testInstances {
		b.Add(inst)
	}

	inst1, _ := b.Pick("player-123")
	inst2, _ := b.Pick("player-123")
	if inst1.Addr != inst2.Addr {
		t.Fatalf("same key mapped to different instances: %s vs %s", inst1.Addr, inst2.Addr)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, _ := b.Pick(fmt.Sprintf("key-%d", i))
		seen[inst.Addr] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expect at least 2 different instances, got %d", len(seen))
	}

	b.Remove(inst1.Addr)
	moved, _ := b.Pick("player-123")
	if moved.Addr == inst1.Addr {
		t.Fatalf("key still maps to removed instance %s", inst1.Addr)
	}
}

func TestKeyedBalancer(t *testing.T) {
	b, err := New("consistent-hash", "player-9")
	if err != nil {
		t.Fatal(err)
	}
	first, _ := b.Pick(testInstances)
	again, _ := b.Pick(testInstances)
	if first.Addr != again.Addr {
		t.Fatalf("keyed balancer not stable: %s vs %s", first.Addr, again.Addr)
	}
	if _, err := New("fastest", ""); err == nil {
		t.Fatal("expect error for unknown strategy")
	}
}
