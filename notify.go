package krunner

import (
	"fmt"
	"net"
	"os"
)

// sdNotify sends state to the service manager named by NOTIFY_SOCKET. It
// reports false without error outside systemd. A leading '@' selects a
// Linux abstract socket.
func sdNotify(state string) (bool, error) {
	name := os.Getenv("NOTIFY_SOCKET")
	if name == "" {
		return false, nil
	}
	addr := &net.UnixAddr{Name: name, Net: "unixgram"}
	if name[0] == '@' {
		addr.Name = "\x00" + name[1:]
	}

	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return false, fmt.Errorf("sd-notify %s: %w", name, err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(state)); err != nil {
		return false, fmt.Errorf("sd-notify %s: %w", name, err)
	}
	return true, nil
}
