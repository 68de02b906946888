// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile    = "daemon.pid"
	ConfigFile = "config.toml"
	LogFile    = "daemon.log"
	SocketFile = "control.sock"
	ScratchDir = "tmp"

	// BinaryName is the daemon executable name.
	BinaryName = "sessentry"

	// DataDirRel is the default data directory, relative to $HOME.
	DataDirRel = ".sessentry"
)

// DeviceInfoFile is the device-info JSON written by the login subsystem.
// It is read-only to this daemon.
const DeviceInfoFile = "wx849_device_info.json"

// DefaultFallbackGlobs lists the login_stat.json locations probed, in order,
// when the device-info file has no usable login time.
var DefaultFallbackGlobs = []string{
	"lib/wx849/WechatAPI/Client/login_stat.json",
	"lib/wx849/WechatAPI/Client2/login_stat.json",
	"lib/wx849/WechatAPI/Client3/login_stat.json",
}

// ControlPipeName is the named pipe used for the control socket on Windows.
const ControlPipeName = `\\.\pipe\sessentry-control`

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Socket returns the full path to the control socket.
func (d DataDir) Socket() string { return filepath.Join(d.Root, SocketFile) }

// Scratch returns the full path to the scratch directory that holds
// downloaded login-code images awaiting upload.
func (d DataDir) Scratch() string { return filepath.Join(d.Root, ScratchDir) }
