// Package cli provides a host-side client for poking a running KRunner plugin.
package cli

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/nikicat/krunner"
)

// Client calls org.kde.krunner1 methods the way the Plasma host does.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Dial connects to the bus at addr (empty means the session bus) and targets
// the runner at service and path.
func Dial(addr, service string, path dbus.ObjectPath) (*Client, error) {
	var conn *dbus.Conn
	var err error
	if addr == "" {
		conn, err = dbus.ConnectSessionBus()
	} else {
		conn, err = dbus.Connect(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to D-Bus: %w", err)
	}
	return NewClient(conn, service, path), nil
}

// NewClient wraps an existing connection. Close closes conn.
func NewClient(conn *dbus.Conn, service string, path dbus.ObjectPath) *Client {
	return &Client{
		conn: conn,
		obj:  conn.Object(service, path),
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Match calls Match(query).
func (c *Client) Match(query string) ([]krunner.MatchTuple, error) {
	var matches []krunner.MatchTuple
	if err := c.obj.Call(krunner.Interface+".Match", 0, query).Store(&matches); err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	return matches, nil
}

// Run calls Run(matchId, actionId). An empty actionID selects the default action.
func (c *Client) Run(matchID, actionID string) error {
	if call := c.obj.Call(krunner.Interface+".Run", 0, matchID, actionID); call.Err != nil {
		return fmt.Errorf("run: %w", call.Err)
	}
	return nil
}

// Actions calls Actions().
func (c *Client) Actions() ([]krunner.Action, error) {
	var actions []krunner.Action
	if err := c.obj.Call(krunner.Interface+".Actions", 0).Store(&actions); err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}
	return actions, nil
}

// Config calls Config().
func (c *Client) Config() (map[string]dbus.Variant, error) {
	var cfg map[string]dbus.Variant
	if err := c.obj.Call(krunner.Interface+".Config", 0).Store(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Teardown calls Teardown().
func (c *Client) Teardown() error {
	if call := c.obj.Call(krunner.Interface+".Teardown", 0); call.Err != nil {
		return fmt.Errorf("teardown: %w", call.Err)
	}
	return nil
}
