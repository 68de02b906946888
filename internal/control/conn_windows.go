// conn_windows.go provides the control channel endpoints for Windows using
// a named pipe via the go-winio library. The socketPath argument is ignored;
// the pipe name is fixed.

//go:build windows

package control

import (
	"net"

	"github.com/Microsoft/go-winio"

	"github.com/sessentry/sessentry/internal/paths"
)

// listen opens the control listener on the daemon's named pipe.
func listen(_ string) (net.Listener, error) {
	return winio.ListenPipe(paths.ControlPipeName, nil)
}

// dial connects to the daemon's named pipe.
func dial(_ string) (net.Conn, error) {
	return winio.DialPipe(paths.ControlPipeName, nil)
}
