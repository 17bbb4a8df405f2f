// Package install registers a D-Bus runner with the KRunner host for the current user.
package install

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const desktopTemplate = `[Desktop Entry]
Name=%s
Comment=%s
Icon=%s
Type=Service
X-KDE-ServiceTypes=Plasma/Runner
X-Plasma-API=DBus
X-Plasma-DBusRunner-Service=%s
X-Plasma-DBusRunner-Path=%s
X-KDE-PluginInfo-Name=%s
X-KDE-PluginInfo-EnabledByDefault=true
`

const serviceTemplate = `[D-BUS Service]
Name=%s
Exec=%s
`

// Options configures plugin installation.
type Options struct {
	// Name is the plugin id; it names the .desktop file.
	Name string
	// Service and Path locate the runner object on the session bus.
	Service string
	Path    string
	// Title, Comment and Icon are shown in the KRunner settings page.
	Title   string
	Comment string
	Icon    string
	// ConfigPath, if set, adds --config <path> to the activation command.
	// Relative paths are made absolute.
	ConfigPath string
	// Executable overrides the binary started on activation. Defaults to
	// the running executable.
	Executable string
	// Restart asks krunner to quit so it picks up the plugin on next launch.
	Restart bool
}

func (o Options) validate() error {
	switch {
	case o.Name == "":
		return errors.New("plugin name is required")
	case o.Service == "":
		return errors.New("service name is required")
	case !strings.HasPrefix(o.Path, "/"):
		return fmt.Errorf("object path %q must start with /", o.Path)
	}
	return nil
}

// dataHome returns $XDG_DATA_HOME with fallback to ~/.local/share.
func dataHome() (string, error) {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return dir, nil
}

// DesktopPath returns where the plugin description for name is installed.
func DesktopPath(name string) (string, error) {
	dir, err := dataHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "krunner", "dbusplugins", name+".desktop"), nil
}

// ServicePath returns where the D-Bus activation file for service is installed.
func ServicePath(service string) (string, error) {
	dir, err := dataHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dbus-1", "services", service+".service"), nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// Install writes the plugin description and the D-Bus activation file.
func Install(opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}

	self := opts.Executable
	if self == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("find executable: %w", err)
		}
		if self, err = filepath.EvalSymlinks(exe); err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
	}
	argv := []string{self, "serve"}
	if opts.ConfigPath != "" {
		configPath, err := filepath.Abs(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
		argv = append(argv, "--config", configPath)
	}
	execLine := execCommandLine(argv)

	title := opts.Title
	if title == "" {
		title = opts.Name
	}
	icon := opts.Icon
	if icon == "" {
		icon = "system-search"
	}

	desktopPath, err := DesktopPath(opts.Name)
	if err != nil {
		return err
	}
	desktop := fmt.Sprintf(desktopTemplate, title, opts.Comment, icon, opts.Service, opts.Path, opts.Name)
	if err := writeFile(desktopPath, desktop); err != nil {
		return err
	}

	servicePath, err := ServicePath(opts.Service)
	if err != nil {
		return err
	}
	if err := writeFile(servicePath, fmt.Sprintf(serviceTemplate, opts.Service, execLine)); err != nil {
		return err
	}

	if opts.Restart {
		return restartHost()
	}
	return nil
}

// execCommandLine joins argv for an Exec= key. dbus-daemon splits it with
// shell rules, so arguments with special characters are single-quoted.
func execCommandLine(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		if arg != "" && !strings.ContainsAny(arg, " \t\n'\"\\$`;&|<>()*?[]#~") {
			quoted[i] = arg
			continue
		}
		quoted[i] = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
	}
	return strings.Join(quoted, " ")
}

// Uninstall removes both files written by Install. Missing files are not an error.
func Uninstall(opts Options) error {
	if opts.Name == "" || opts.Service == "" {
		return errors.New("plugin name and service name are required")
	}

	desktopPath, err := DesktopPath(opts.Name)
	if err != nil {
		return err
	}
	servicePath, err := ServicePath(opts.Service)
	if err != nil {
		return err
	}

	for _, p := range []string{desktopPath, servicePath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
		fmt.Printf("Removed %s\n", p)
	}

	if opts.Restart {
		return restartHost()
	}
	return nil
}

func restartHost() error {
	// krunner is D-Bus activated; quitting it is enough for a reload.
	if err := commandFunc("kquitapp6", "krunner"); err != nil {
		return err
	}
	fmt.Println("Restarted krunner")
	return nil
}

// commandFunc runs an external command.
// Replaced in tests to avoid requiring a Plasma session.
var commandFunc = commandExec

func commandExec(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
