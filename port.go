package slapdtest

import (
	"fmt"
	"net"
)

// Localhost is the address ephemeral instances listen on.
const Localhost = "127.0.0.1"

// FindAvailableTCPPort discovers a free TCP port on host by binding to
// port 0 and releasing the listener. The port is not reserved: another
// process may grab it between discovery and the server's own bind. This
// race window is accepted; callers that hit it can simply retry with a
// fresh instance.
func FindAvailableTCPPort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("slapdtest: finding available port on %s: %w", host, err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return 0, fmt.Errorf("slapdtest: releasing probe listener: %w", err)
	}
	return port, nil
}
