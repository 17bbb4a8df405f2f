// Package krunner implements the KDE Plasma KRunner D-Bus plugin interface
// (org.kde.krunner1) on top of godbus. A plugin supplies a Runner; Serve
// exports it on the session bus under the service name and object path listed
// in the plugin's desktop file.
package krunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

// Interface is the D-Bus interface the host calls.
const Interface = "org.kde.krunner1"

const introspectableInterface = "org.freedesktop.DBus.Introspectable"

// Options configures Serve.
type Options struct {
	// ServiceName is the well-known bus name, X-Plasma-DBusRunner-Service in
	// the plugin desktop file.
	ServiceName string
	// ObjectPath is X-Plasma-DBusRunner-Path in the plugin desktop file.
	ObjectPath dbus.ObjectPath

	// BusAddress is the D-Bus address to connect to. Empty means the session
	// bus; tests point it at a private dbus-daemon.
	BusAddress string

	Config  Config
	Mode    Mode
	Workers int
	Timeout time.Duration
	Logger  *slog.Logger
}

func (o Options) validate() error {
	if o.ServiceName == "" {
		return errors.New("service name is required")
	}
	if !o.ObjectPath.IsValid() {
		return fmt.Errorf("invalid object path %q", o.ObjectPath)
	}
	return nil
}

func (o Options) adapterOptions() AdapterOptions {
	return AdapterOptions{
		Config:  o.Config,
		Mode:    o.Mode,
		Workers: o.Workers,
		Timeout: o.Timeout,
		Logger:  o.Logger,
	}
}

// Serve connects to the bus, exports r, claims the service name, sends
// READY=1 via sd-notify and blocks until ctx is cancelled. Returns nil on
// clean shutdown and an error wrapping ErrConnectionLost if the bus goes away.
func Serve(ctx context.Context, r Runner, opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	adapter, err := NewAdapter(r, opts.adapterOptions())
	if err != nil {
		return fmt.Errorf("create adapter: %w", err)
	}
	defer adapter.Close()

	var conn *dbus.Conn
	if opts.BusAddress == "" {
		conn, err = dbus.ConnectSessionBus()
	} else {
		conn, err = dbus.Connect(opts.BusAddress)
	}
	if err != nil {
		return fmt.Errorf("connect to D-Bus: %w", err)
	}
	defer conn.Close()

	if err := Register(conn, adapter, opts.ObjectPath); err != nil {
		return err
	}

	reply, err := conn.RequestName(opts.ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name %q: %w", opts.ServiceName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("not primary owner of %q (reply=%d); another instance is running", opts.ServiceName, reply)
	}

	logger.Info("runner ready",
		"bus_name", opts.ServiceName,
		"path", opts.ObjectPath,
		"mode", opts.Mode)

	if sent, err := sdNotify("READY=1"); err != nil {
		logger.Warn("sd-notify failed", "error", err)
	} else if sent {
		logger.Debug("sent READY=1 to service manager")
	}

	select {
	case <-ctx.Done():
		logger.Info("runner shutting down")
		return nil
	case <-conn.Context().Done():
		return fmt.Errorf("%w: %v", ErrConnectionLost, context.Cause(conn.Context()))
	}
}

// Register exports adapter on conn at path together with an Introspectable
// implementation. The caller owns conn and the bus name.
func Register(conn *dbus.Conn, adapter *Adapter, path dbus.ObjectPath) error {
	obj := &runnerObject{adapter: adapter}

	if err := conn.Export(obj, path, Interface); err != nil {
		return fmt.Errorf("export runner: %w", err)
	}

	// Without Introspectable, qdbus and busctl give opaque errors.
	node := &introspect.Node{
		Name: string(path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: introspect.Methods(obj),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), path, introspectableInterface); err != nil {
		return fmt.Errorf("export introspectable: %w", err)
	}
	return nil
}

// runnerObject is the D-Bus object exported under Interface. Every exported
// method here becomes a D-Bus method.
type runnerObject struct {
	adapter *Adapter
}

// Match returns matches for query.
// Signature: Match(query String) -> (matches Array<(sssida{sv})>)
func (o *runnerObject) Match(sender dbus.Sender, query string) ([]MatchTuple, *dbus.Error) {
	matches := o.adapter.Matches(o.adapter.ctx, Query{Text: query, Sender: string(sender)})
	return Tuples(matches), nil
}

// Run runs a match. The host cannot recover from a failed Run, so failures
// are logged by the adapter and reported as success.
// Signature: Run(matchId String, actionId String) -> ()
func (o *runnerObject) Run(matchID, actionID string) *dbus.Error {
	o.adapter.Run(o.adapter.ctx, matchID, actionID) //nolint:errcheck
	return nil
}

// Actions returns the runner-wide actions.
// Signature: Actions() -> (matches Array<(sss)>)
func (o *runnerObject) Actions() ([]Action, *dbus.Error) {
	return o.adapter.Actions(), nil
}

// Config returns the runner configuration hints.
// Signature: Config() -> (config Dict<String,Variant>)
func (o *runnerObject) Config() (map[string]dbus.Variant, *dbus.Error) {
	return o.adapter.cfg.Properties(), nil
}

// Teardown is called when the host session ends.
// Signature: Teardown() -> ()
func (o *runnerObject) Teardown() *dbus.Error {
	o.adapter.Teardown(o.adapter.ctx) //nolint:errcheck
	return nil
}
