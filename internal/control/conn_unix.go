// conn_unix.go provides the control channel endpoints for Unix-like systems
// using a unix domain socket inside the daemon's data directory.

//go:build !windows

package control

import (
	"fmt"
	"net"
	"os"
)

// listen opens the control listener at socketPath. A stale socket file left
// by a crashed daemon is removed first; the PID lock already guarantees no
// live daemon owns it.
func listen(socketPath string) (net.Listener, error) {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale control socket: %w", err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on control socket: %w", err)
	}

	// Only the owning user may issue commands.
	if err := os.Chmod(socketPath, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("restricting control socket permissions: %w", err)
	}
	return ln, nil
}

// dial connects to the daemon's control socket.
func dial(socketPath string) (net.Conn, error) {
	return net.Dial("unix", socketPath)
}
