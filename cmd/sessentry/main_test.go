package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWritePIDAndRemove(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID: %v", err)
	}

	data, err := os.ReadFile(dp.PID())
	if err != nil {
		t.Fatalf("read PID file: %v", err)
	}
	want := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if string(data) != want {
		t.Errorf("PID file = %q, want %q", data, want)
	}

	removePID(dp, token, f)
	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("PID file not removed")
	}
}

func TestRemovePIDWrongToken(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	token := pidToken()

	f, err := writePID(dp, token)
	if err != nil {
		t.Fatalf("writePID: %v", err)
	}

	// A mismatched token must leave the file alone.
	removePID(dp, "deadbeefdeadbeef", f)
	if _, err := os.Stat(dp.PID()); err != nil {
		t.Errorf("PID file removed despite token mismatch: %v", err)
	}
}

func TestCheckStalePIDCleansDeadInstance(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}

	// Simulate a crashed daemon: PID file present, lock not held.
	if err := os.WriteFile(dp.PID(), []byte("12345:abcdef0123456789"), 0o600); err != nil {
		t.Fatal(err)
	}

	alive, _ := checkStalePID(dp)
	if alive {
		t.Error("stale PID reported as alive")
	}
	if _, err := os.Stat(dp.PID()); !os.IsNotExist(err) {
		t.Error("stale PID file not cleaned up")
	}
}

func TestCheckStalePIDNoFile(t *testing.T) {
	dp := DataPaths{Root: t.TempDir()}
	if alive, _ := checkStalePID(dp); alive {
		t.Error("missing PID file reported as alive")
	}
}

func TestPIDTokenFormat(t *testing.T) {
	token := pidToken()
	if len(token) != 16 {
		t.Errorf("token length = %d, want 16", len(token))
	}
	for _, c := range token {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("token %q contains non-hex character %q", token, c)
		}
	}
}

func TestDefaultDataDir(t *testing.T) {
	dir := defaultDataDir()
	if filepath.Base(dir) != ".sessentry" {
		t.Errorf("defaultDataDir = %q, want .sessentry leaf", dir)
	}
}
