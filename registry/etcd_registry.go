// etcd is a distributed key-value store that provides strong consistency (Raft protocol).
// It is used as a phonebook for RigelNet servers:
//
//	Key:   /rigelnet/{ServiceName}/{Addr}
//	Value: JSON-encoded ServiceInstance
//
// Registration uses TTL-based leases: if the server crashes, the lease expires
// and the entry is automatically removed.
package registry

import (
	"context"
	"encoding/json"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// KeyPrefix is the root of every key this package writes.
const KeyPrefix = "/rigelnet/"

// EtcdRegistry implements the Registry interface using etcd v3.
type EtcdRegistry struct {
	client  *clientv3.Client // etcd client connection (thread-safe, shared across goroutines)
	timeout time.Duration    // Per-request deadline
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c, timeout: 5 * time.Second}, nil
}

func serviceKey(serviceName, addr string) string {
	return KeyPrefix + serviceName + "/" + addr
}

func servicePrefix(serviceName string) string {
	return KeyPrefix + serviceName + "/"
}

// Register adds a server instance to etcd with a TTL lease and keeps the
// lease alive in the background until the client is closed or the key is
// deregistered.
//
// leaseID stays a local variable so several servers can share one
// EtcdRegistry without racing on it.
func (r *EtcdRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, serviceKey(serviceName, instance.Addr), string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	// KeepAlive outlives this call, so it gets the client's own context.
	ch, err := r.client.KeepAlive(r.client.Ctx(), lease.ID)
	if err != nil {
		return err
	}

	// Consume KeepAlive responses to prevent the channel from filling up
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes a server instance from etcd.
func (r *EtcdRegistry) Deregister(serviceName string, addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	_, err := r.client.Delete(ctx, serviceKey(serviceName, addr))
	return err
}

// Watch emits the full instance list whenever anything under the service
// prefix changes (registration, deregistration, lease expiry).
func (r *EtcdRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(r.client.Ctx(), servicePrefix(serviceName), clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch the list instead of replaying individual events
			instances, err := r.Discover(serviceName)
			if err != nil {
				continue
			}
			ch <- instances
		}
	}()

	return ch
}

// Discover returns all currently registered instances for a service.
func (r *EtcdRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	resp, err := r.client.Get(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // Skip malformed entries
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

// Close releases the etcd client; leases stop being renewed and expire.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
