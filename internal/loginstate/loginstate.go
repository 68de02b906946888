// Package loginstate reads the login subsystem's state files: the identity of
// the currently logged-in account and the timestamp of its last successful
// login.
//
// The files are owned by the external login subsystem and are strictly
// read-only here. The primary device-info JSON is preferred; when it carries
// no usable login time, a fixed-priority list of fallback glob patterns is
// probed. A missing identity or login time is a normal outcome (the account
// may simply not be logged in), reported through the sentinel errors
// [ErrNoIdentity] and [ErrNoLoginTime] rather than treated as a fault.
package loginstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

// ErrNoIdentity is returned when no logged-in account can be resolved.
var ErrNoIdentity = errors.New("no login identity available")

// ErrNoLoginTime is returned when no login timestamp can be resolved from the
// primary file or any fallback.
var ErrNoLoginTime = errors.New("no login time available")

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Identity is the cached snapshot of the logged-in account.
type Identity struct {
	// ID is the account identifier (wxid) messages are sent from.
	ID string
	// DeviceID is the device identifier registered at login.
	DeviceID string
}

// deviceInfo mirrors the on-disk device-info JSON written by the login
// subsystem. Only the fields this daemon needs are declared.
type deviceInfo struct {
	WXID      string `json:"wxid"`
	DeviceID  string `json:"device_id"`
	LoginTime int64  `json:"login_time"`
}

// loginStat mirrors the fallback login_stat.json shape.
type loginStat struct {
	LoginTime int64 `json:"login_time"`
}

// Source resolves identity and login time from the configured state files.
type Source struct {
	// root is the directory file names and globs are resolved against.
	root string
	// primary is the device-info file name, relative to root.
	primary string
	// fallbackGlobs are probed in order when the primary file has no
	// usable login time.
	fallbackGlobs []string
}

// NewSource creates a Source rooted at root. An empty root resolves paths
// against the working directory.
func NewSource(root, deviceInfoFile string, fallbackGlobs []string) *Source {
	if root == "" {
		root = "."
	}
	return &Source{
		root:          root,
		primary:       deviceInfoFile,
		fallbackGlobs: fallbackGlobs,
	}
}

// PrimaryPath returns the full path of the primary device-info file.
func (s *Source) PrimaryPath() string {
	return filepath.Join(s.root, s.primary)
}

// ///////////////////////////////////////////////
// Identity
// ///////////////////////////////////////////////

// Identity reads the device-info file and returns the logged-in account.
// Returns [ErrNoIdentity] when the file is absent, unreadable, or carries an
// empty account ID.
func (s *Source) Identity() (Identity, error) {
	info, err := s.readDeviceInfo()
	if err != nil {
		return Identity{}, err
	}
	if info.WXID == "" {
		return Identity{}, fmt.Errorf("%w: empty wxid in %s", ErrNoIdentity, s.PrimaryPath())
	}
	return Identity{ID: info.WXID, DeviceID: info.DeviceID}, nil
}

// readDeviceInfo loads and parses the primary device-info file.
func (s *Source) readDeviceInfo() (*deviceInfo, error) {
	path := s.PrimaryPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoIdentity, path)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrNoIdentity, path, err)
	}
	var info deviceInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrNoIdentity, path, err)
	}
	return &info, nil
}

// ///////////////////////////////////////////////
// Login Time
// ///////////////////////////////////////////////

// LoginTime resolves the authoritative session start. The primary device-info
// file wins when it carries a positive login_time; otherwise each fallback
// glob is expanded and its matches probed in order. Returns [ErrNoLoginTime]
// when no source yields a timestamp.
func (s *Source) LoginTime() (time.Time, error) {
	if info, err := s.readDeviceInfo(); err == nil && info.LoginTime > 0 {
		return time.Unix(info.LoginTime, 0), nil
	}

	for _, pattern := range s.fallbackGlobs {
		matches, err := doublestar.FilepathGlob(filepath.Join(s.root, pattern))
		if err != nil {
			slog.Warn("invalid fallback glob", "pattern", pattern, "error", err)
			continue
		}
		for _, path := range matches {
			if t, ok := readLoginStat(path); ok {
				slog.Debug("login time resolved from fallback", "path", path)
				return t, nil
			}
		}
	}

	return time.Time{}, ErrNoLoginTime
}

// readLoginStat reads a single fallback file and reports its login time.
func readLoginStat(path string) (time.Time, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}
	var stat loginStat
	if err := json.Unmarshal(data, &stat); err != nil {
		slog.Debug("skipping unparseable login stat", "path", path, "error", err)
		return time.Time{}, false
	}
	if stat.LoginTime <= 0 {
		return time.Time{}, false
	}
	return time.Unix(stat.LoginTime, 0), true
}
