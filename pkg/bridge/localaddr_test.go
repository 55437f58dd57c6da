package bridge

import (
	"net"
	"testing"
)

func TestLocalAddress(t *testing.T) {
	addr := LocalAddress()
	if addr == "" {
		t.Skip("no non-loopback IPv4 address on this host")
	}
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		t.Fatalf("LocalAddress() = %q, want an IPv4 address", addr)
	}
	if ip.IsLoopback() {
		t.Errorf("LocalAddress() = %q is loopback", addr)
	}
}
