package krunner

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func listenNotify(t *testing.T, name string) *net.UnixConn {
	t.Helper()
	ln, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Net: "unixgram", Name: name})
	if err != nil {
		t.Fatalf("listen unixgram %q: %v", name, err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

func readState(t *testing.T, ln *net.UnixConn) string {
	t.Helper()
	buf := make([]byte, 64)
	ln.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	n, err := ln.Read(buf)
	if err != nil {
		t.Fatalf("read notification: %v", err)
	}
	return string(buf[:n])
}

func TestSdNotify(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		t.Setenv("NOTIFY_SOCKET", "")
		if sent, err := sdNotify("READY=1"); sent || err != nil {
			t.Errorf("sdNotify = %v, %v; want false, nil", sent, err)
		}
	})

	t.Run("path socket", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notify.sock")
		ln := listenNotify(t, path)
		t.Setenv("NOTIFY_SOCKET", path)

		if sent, err := sdNotify("READY=1"); !sent || err != nil {
			t.Fatalf("sdNotify = %v, %v; want true, nil", sent, err)
		}
		if got := readState(t, ln); got != "READY=1" {
			t.Errorf("received %q, want READY=1", got)
		}
	})

	t.Run("abstract socket", func(t *testing.T) {
		name := fmt.Sprintf("krunner-notify-%d-%d", os.Getpid(), time.Now().UnixNano())
		ln := listenNotify(t, "\x00"+name)
		t.Setenv("NOTIFY_SOCKET", "@"+name)

		if sent, err := sdNotify("STOPPING=1"); !sent || err != nil {
			t.Fatalf("sdNotify = %v, %v; want true, nil", sent, err)
		}
		if got := readState(t, ln); got != "STOPPING=1" {
			t.Errorf("received %q, want STOPPING=1", got)
		}
	})

	t.Run("missing socket", func(t *testing.T) {
		t.Setenv("NOTIFY_SOCKET", filepath.Join(t.TempDir(), "absent.sock"))
		if sent, err := sdNotify("READY=1"); sent || err == nil {
			t.Errorf("sdNotify = %v, %v; want false and an error", sent, err)
		}
	})
}
