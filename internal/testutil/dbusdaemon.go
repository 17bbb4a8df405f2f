// Package testutil starts private D-Bus daemons for integration tests.
package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
)

// sessionConfigTemplate is a permissive session bus config listening on a
// filesystem socket. Args: sockPath
const sessionConfigTemplate = `<?xml version="1.0"?>
<!DOCTYPE busconfig PUBLIC "-//freedesktop//DTD D-BUS Bus Configuration 1.0//EN"
 "http://www.freedesktop.org/standards/dbus/1.0/busconfig.dtd">
<busconfig>
  <type>session</type>
  <listen>unix:path=%s</listen>
  <auth>EXTERNAL</auth>
  <policy context="default">
    <allow send_destination="*" eavesdrop="true"/>
    <allow eavesdrop="true"/>
    <allow own="*"/>
  </policy>
</busconfig>`

// Daemon is a private dbus-daemon started for one test.
type Daemon struct {
	Addr string

	cmd      *exec.Cmd
	stopOnce sync.Once
}

// Kill stops the daemon, dropping every connection to it. Safe to call more
// than once.
func (d *Daemon) Kill() {
	d.stopOnce.Do(func() {
		d.cmd.Process.Kill() //nolint:errcheck
		d.cmd.Wait()         //nolint:errcheck
	})
}

// StartDaemon starts a private dbus-daemon that is killed when the test ends.
// The test is skipped when dbus-daemon is not installed. Uses filesystem
// sockets (NOT abstract) to avoid cross-test collisions.
func StartDaemon(t *testing.T) *Daemon {
	t.Helper()

	if _, err := exec.LookPath("dbus-daemon"); err != nil {
		t.Skip("dbus-daemon not available")
	}

	tmpDir := t.TempDir()
	sockPath := filepath.Join(tmpDir, "bus.sock")
	confPath := filepath.Join(tmpDir, "session.conf")

	conf := fmt.Sprintf(sessionConfigTemplate, sockPath)
	if err := os.WriteFile(confPath, []byte(conf), 0600); err != nil {
		t.Fatalf("write bus config: %v", err)
	}

	cmd := exec.Command("dbus-daemon", "--config-file="+confPath, "--nofork")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start dbus-daemon: %v", err)
	}
	d := &Daemon{Addr: "unix:path=" + sockPath, cmd: cmd}
	t.Cleanup(d.Kill)

	// Wait for socket file to appear (50 * 100ms = 5s max).
	for range 50 {
		if _, err := os.Stat(sockPath); err == nil {
			return d
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatal("dbus-daemon socket not created in time")
	return nil
}

// StartDBusDaemon starts a private dbus-daemon and returns its address.
func StartDBusDaemon(t *testing.T) string {
	t.Helper()
	return StartDaemon(t).Addr
}

// WaitForName polls until the bus name is registered or timeout.
func WaitForName(t *testing.T, addr, name string) {
	t.Helper()
	for range 50 {
		conn, err := dbus.Connect(addr)
		if err != nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		var hasOwner bool
		err = conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, name).Store(&hasOwner)
		conn.Close()
		if err == nil && hasOwner {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("bus name %q not registered in time", name)
}
