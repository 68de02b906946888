// Package main implements sessentryctl, the command-line client for a
// running sessentry daemon. It forwards one control command over the
// daemon's local socket and prints the reply.
//
// Usage:
//
//	sessentryctl [-data-dir DIR] [-sender WXID] COMMAND [ARGS...]
//
// Examples:
//
//	sessentryctl '$预警状态'
//	sessentryctl '$预警阈值' 3h
//	sessentryctl -sender wxid_abc '$预警测试'
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sessentry/sessentry/internal/control"
	"github.com/sessentry/sessentry/internal/paths"
)

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Daemon data directory")
	sender := flag.String("sender", "", "Identity the command is issued as; test QR codes are sent there")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: sessentryctl [-data-dir DIR] [-sender WXID] COMMAND [ARGS...]")
		os.Exit(2)
	}
	command := strings.Join(flag.Args(), " ")

	dp := paths.DataDir{Root: *dataDir}
	client, err := control.Dial(dp.Socket())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprintln(os.Stderr, "is the sessentry daemon running?")
		os.Exit(1)
	}
	defer client.Close()

	reply, err := client.Send(command, *sender)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(reply)
}
