// Tests for identity and login-time resolution: primary file parsing, the
// fixed-priority fallback probe, and the sentinel errors for missing state.
package loginstate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeFile writes content at root/rel, creating parent directories.
func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func newTestSource(root string) *Source {
	return NewSource(root, "wx849_device_info.json", []string{
		"lib/wx849/WechatAPI/Client/login_stat.json",
		"lib/wx849/WechatAPI/Client2/login_stat.json",
		"lib/wx849/WechatAPI/Client3/login_stat.json",
	})
}

// ///////////////////////////////////////////////
// Identity
// ///////////////////////////////////////////////

func TestIdentity(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "wx849_device_info.json",
		`{"wxid": "wxid_abc", "device_id": "49ab01", "login_time": 1700000000}`)

	id, err := newTestSource(root).Identity()
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if id.ID != "wxid_abc" {
		t.Errorf("ID = %q, want %q", id.ID, "wxid_abc")
	}
	if id.DeviceID != "49ab01" {
		t.Errorf("DeviceID = %q, want %q", id.DeviceID, "49ab01")
	}
}

func TestIdentityMissingFile(t *testing.T) {
	_, err := newTestSource(t.TempDir()).Identity()
	if !errors.Is(err, ErrNoIdentity) {
		t.Errorf("err = %v, want ErrNoIdentity", err)
	}
}

func TestIdentityEmptyWxid(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "wx849_device_info.json", `{"wxid": "", "device_id": "49ab01"}`)

	_, err := newTestSource(root).Identity()
	if !errors.Is(err, ErrNoIdentity) {
		t.Errorf("err = %v, want ErrNoIdentity", err)
	}
}

func TestIdentityMalformedJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "wx849_device_info.json", `{not json`)

	_, err := newTestSource(root).Identity()
	if !errors.Is(err, ErrNoIdentity) {
		t.Errorf("err = %v, want ErrNoIdentity", err)
	}
}

// ///////////////////////////////////////////////
// LoginTime
// ///////////////////////////////////////////////

func TestLoginTimePrimary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "wx849_device_info.json",
		`{"wxid": "wxid_abc", "device_id": "49ab01", "login_time": 1700000000}`)

	got, err := newTestSource(root).LoginTime()
	if err != nil {
		t.Fatalf("LoginTime: %v", err)
	}
	if !got.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("LoginTime = %v, want unix 1700000000", got)
	}
}

func TestLoginTimeFallback(t *testing.T) {
	root := t.TempDir()
	// Primary exists but has no login_time.
	writeFile(t, root, "wx849_device_info.json", `{"wxid": "wxid_abc", "device_id": "49ab01"}`)
	writeFile(t, root, "lib/wx849/WechatAPI/Client2/login_stat.json", `{"login_time": 1700001111}`)

	got, err := newTestSource(root).LoginTime()
	if err != nil {
		t.Fatalf("LoginTime: %v", err)
	}
	if !got.Equal(time.Unix(1700001111, 0)) {
		t.Errorf("LoginTime = %v, want unix 1700001111", got)
	}
}

func TestLoginTimeFallbackOrder(t *testing.T) {
	root := t.TempDir()
	// Both fallbacks exist; the first in the priority list wins.
	writeFile(t, root, "lib/wx849/WechatAPI/Client/login_stat.json", `{"login_time": 1700000001}`)
	writeFile(t, root, "lib/wx849/WechatAPI/Client3/login_stat.json", `{"login_time": 1700000002}`)

	got, err := newTestSource(root).LoginTime()
	if err != nil {
		t.Fatalf("LoginTime: %v", err)
	}
	if !got.Equal(time.Unix(1700000001, 0)) {
		t.Errorf("LoginTime = %v, want first fallback (unix 1700000001)", got)
	}
}

func TestLoginTimeSkipsZeroAndMalformed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "lib/wx849/WechatAPI/Client/login_stat.json", `{"login_time": 0}`)
	writeFile(t, root, "lib/wx849/WechatAPI/Client2/login_stat.json", `garbage`)
	writeFile(t, root, "lib/wx849/WechatAPI/Client3/login_stat.json", `{"login_time": 1700000300}`)

	got, err := newTestSource(root).LoginTime()
	if err != nil {
		t.Fatalf("LoginTime: %v", err)
	}
	if !got.Equal(time.Unix(1700000300, 0)) {
		t.Errorf("LoginTime = %v, want unix 1700000300", got)
	}
}

func TestLoginTimeMissingEverywhere(t *testing.T) {
	_, err := newTestSource(t.TempDir()).LoginTime()
	if !errors.Is(err, ErrNoLoginTime) {
		t.Errorf("err = %v, want ErrNoLoginTime", err)
	}
}

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

func TestWatcherSignalsOnWrite(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "wx849_device_info.json")
	writeFile(t, root, "wx849_device_info.json", `{"wxid": "a"}`)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	// Give the backend a moment, then rewrite the file. In polling mode the
	// change is detected via mtime, which can have coarse granularity.
	if w.Polling() {
		time.Sleep(1100 * time.Millisecond)
	} else {
		time.Sleep(50 * time.Millisecond)
	}
	if err := os.WriteFile(path, []byte(`{"wxid": "b"}`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	timeout := 2 * time.Second
	if w.Polling() {
		timeout = 5 * time.Second // polling mode stats every 2s
	}
	select {
	case <-w.Events():
	case <-time.After(timeout):
		t.Fatal("no event after file write")
	}
}

func TestWatcherMissingFileFallsBackToPolling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-yet-written.json")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if !w.Polling() {
		t.Error("expected polling fallback for a missing file")
	}
}

func TestWatcherCloseDuringEvents(t *testing.T) {
	// Closing while the watch goroutine is busy handling events must be
	// safe. Meaningful under the race detector.
	root := t.TempDir()
	path := filepath.Join(root, "wx849_device_info.json")
	writeFile(t, root, "wx849_device_info.json", `{"wxid": "a"}`)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	stop := make(chan struct{})
	writes := make(chan struct{})
	go func() {
		defer close(writes)
		for {
			select {
			case <-stop:
				return
			default:
				os.WriteFile(path, []byte(`{"wxid": "b"}`), 0o644)
			}
		}
	}()

	time.Sleep(20 * time.Millisecond)
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	close(stop)
	<-writes
}

func TestWatcherCloseIdempotent(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "x.json"))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
