// Package registry lets servers advertise themselves and clients find them.
//
// An instance is one listening server; clients filter instances by protocol
// version before picking one, since handler indices are bare integers and a
// client and server built from different revisions must not be paired.
package registry

import (
	"fmt"
	"net"
	"strconv"
)

// ServiceInstance describes one advertised server.
type ServiceInstance struct {
	Addr    string // "host:port" of the server's datagram socket
	Weight  int    // Weight for load balancing; servers advertise free slots
	Version string // Protocol version, semver
}

// HostPort splits Addr.
func (s ServiceInstance) HostPort() (string, int, error) {
	host, p, err := net.SplitHostPort(s.Addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("registry: bad port in %q: %w", s.Addr, err)
	}
	return host, port, nil
}

type Registry interface {
	Register(serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(serviceName string, addr string) error
	Discover(serviceName string) ([]ServiceInstance, error)
	Watch(serviceName string) <-chan []ServiceInstance
}
