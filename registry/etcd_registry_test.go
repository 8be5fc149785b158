package registry

import (
	"os"
	"strings"
	"testing"
	"time"
)

// The etcd test needs a live cluster; point RIGELNET_ETCD_ENDPOINTS at one.
func etcdEndpoints(t *testing.T) []string {
	t.Helper()
	env := os.Getenv("RIGELNET_ETCD_ENDPOINTS")
	if env == "" {
		t.Skip("RIGELNET_ETCD_ENDPOINTS not set")
	}
	return strings.Split(env, ",")
}

func TestEtcdRegisterAndDiscover(t *testing.T) {
	reg, err := NewEtcdRegistry(etcdEndpoints(t))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	inst1 := ServiceInstance{Addr: "127.0.0.1:7001", Weight: 10, Version: "1.0.0"}
	inst2 := ServiceInstance{Addr: "127.0.0.1:7002", Weight: 5, Version: "1.0.0"}

	if err := reg.Register("arena", inst1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("arena", inst2, 10); err != nil {
		t.Fatal(err)
	}

	instances, err := reg.Discover("arena")
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 {
		t.Fatalf("expect 2 instances, got %d", len(instances))
	}

	if err := reg.Deregister("arena", inst1.Addr); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	instances, err = reg.Discover("arena")
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 || instances[0].Addr != inst2.Addr {
		t.Fatalf("expect only %s after deregister, got %+v", inst2.Addr, instances)
	}

	reg.Deregister("arena", inst2.Addr)
}

func TestMemoryRegistry(t *testing.T) {
	reg := NewMemoryRegistry()
	watch := reg.Watch("arena")

	reg.Register("arena", ServiceInstance{Addr: "10.0.0.2:7000", Version: "1.0.0"}, 10)
	reg.Register("arena", ServiceInstance{Addr: "10.0.0.1:7000", Version: "1.1.0"}, 10)

	instances, _ := reg.Discover("arena")
	if len(instances) != 2 || instances[0].Addr != "10.0.0.1:7000" {
		t.Fatalf("expect 2 instances ordered by address, got %+v", instances)
	}

	select {
	case latest := <-watch:
		if len(latest) != 2 {
			t.Fatalf("expect watch to carry the latest list, got %d", len(latest))
		}
	default:
		t.Fatal("expect a watch update")
	}

	reg.Deregister("arena", "10.0.0.2:7000")
	instances, _ = reg.Discover("arena")
	if len(instances) != 1 {
		t.Fatalf("expect 1 instance, got %d", len(instances))
	}
}

func TestCompatible(t *testing.T) {
	instances := []ServiceInstance{
		{Addr: "a:1", Version: "1.2.0"},
		{Addr: "b:1", Version: "2.0.0"},
		{Addr: "c:1", Version: "not-a-version"},
		{Addr: "d:1", Version: "1.9.3"},
	}
	got, err := Compatible(instances, "^1.2")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Addr != "a:1" || got[1].Addr != "d:1" {
		t.Fatalf("unexpected filter result %+v", got)
	}

	all, _ := Compatible(instances, "")
	if len(all) != len(instances) {
		t.Fatal("empty constraint should keep everything")
	}
	if _, err := Compatible(instances, "not a constraint"); err == nil {
		t.Fatal("expect error for bad constraint")
	}
}

func TestHostPort(t *testing.T) {
	host, port, err := ServiceInstance{Addr: "10.0.0.5:7777"}.HostPort()
	if err != nil || host != "10.0.0.5" || port != 7777 {
		t.Fatalf("HostPort = %q %d %v", host, port, err)
	}
	if _, _, err := (ServiceInstance{Addr: "nope"}).HostPort(); err == nil {
		t.Fatal("expect error for missing port")
	}
}
