// krunner-bookmarks serves a YAML bookmarks file to KRunner over D-Bus.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/lmittmann/tint"

	"github.com/nikicat/krunner"
	"github.com/nikicat/krunner/internal/bookmarks"
	"github.com/nikicat/krunner/internal/cli"
	"github.com/nikicat/krunner/internal/config"
	"github.com/nikicat/krunner/internal/install"
)

const (
	defaultService        = "io.github.nikicat.KRunnerBookmarks"
	defaultPath           = "/bookmarks"
	defaultName           = "bookmarks"
	defaultMinLetterCount = 2
	defaultTimeout        = 2 * time.Second
)

var progName = filepath.Base(os.Args[0])

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "query", "run", "actions", "config":
		runCLI(os.Args[1], os.Args[2:])
	case "install":
		runInstall(os.Args[2:], false)
	case "uninstall":
		runInstall(os.Args[2:], true)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [options]

Commands:
  serve         Serve bookmarks to KRunner on the session bus
  query         Send a Match query to a running runner
  run           Run a match (optionally with an action id)
  actions       List the runner-wide actions
  config        Show the runner's Config reply
  install       Register the plugin with KRunner for this user
  uninstall     Remove the plugin registration

Run '%s <command> -h' for command-specific help.
`, progName, progName)
}

// busFlags are shared by every command that talks to the runner.
type busFlags struct {
	configPath *string
	service    *string
	path       *string
	busAddress *string
}

func addBusFlags(fs *flag.FlagSet) busFlags {
	return busFlags{
		configPath: fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/krunner-bookmarks/config.yaml)"),
		service:    fs.String("service", defaultService, "D-Bus service name"),
		path:       fs.String("path", defaultPath, "D-Bus object path"),
		busAddress: fs.String("bus-address", "", "D-Bus address (default: session bus)"),
	}
}

// load reads the config and fills bus flags that were not set explicitly.
func (b busFlags) load(fs *flag.FlagSet) (*config.Config, map[string]bool) {
	cfg, err := loadConfig(*b.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	set := setFlags(fs)
	if !set["service"] && cfg.Service != "" {
		*b.service = cfg.Service
	}
	if !set["path"] && cfg.Path != "" {
		*b.path = cfg.Path
	}
	if !set["bus-address"] && cfg.BusAddress != "" {
		*b.busAddress = cfg.BusAddress
	}
	return cfg, set
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	bus := addBusFlags(fs)
	bookmarksPath := fs.String("bookmarks", "", "Bookmarks file (default: $XDG_CONFIG_HOME/krunner-bookmarks/bookmarks.yaml)")
	modeFlag := fs.String("mode", "sync", "Match scheduling: sync or async")
	workers := fs.Int("workers", 0, "Async worker count (default: 16)")
	timeout := fs.Duration("timeout", defaultTimeout, "Per-query timeout in async mode")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "text", "Log format: text (colored) or json")
	fs.Parse(args)

	cfg, set := bus.load(fs)
	if !set["bookmarks"] && cfg.Bookmarks != "" {
		*bookmarksPath = cfg.Bookmarks
	}
	if !set["mode"] && cfg.Mode != "" {
		*modeFlag = cfg.Mode
	}
	if !set["workers"] && cfg.Workers != 0 {
		*workers = cfg.Workers
	}
	if !set["timeout"] && cfg.Timeout != 0 {
		*timeout = time.Duration(cfg.Timeout)
	}
	if !set["log-level"] && cfg.LogLevel != "" {
		*logLevel = cfg.LogLevel
	}
	if !set["log-format"] && cfg.LogFormat != "" {
		*logFormat = cfg.LogFormat
	}
	if *bookmarksPath == "" {
		*bookmarksPath = config.DefaultBookmarksPath()
	}

	mode, err := krunner.ParseMode(*modeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(newHandler(parseLogLevel(*logLevel), *logFormat)))

	store, err := bookmarks.NewStore(*bookmarksPath, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := store.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("bookmarks watch stopped", "error", err)
		}
	}()

	name := cfg.Runner.Name
	if name == "" {
		name = defaultName
	}
	minLetters := cfg.Runner.MinLetterCount
	if minLetters == 0 {
		minLetters = defaultMinLetterCount
	}

	err = krunner.Serve(ctx, bookmarks.NewRunner(store), krunner.Options{
		ServiceName: *bus.service,
		ObjectPath:  dbus.ObjectPath(*bus.path),
		BusAddress:  *bus.busAddress,
		Mode:        mode,
		Workers:     *workers,
		Timeout:     *timeout,
		Logger:      slog.Default(),
		Config: krunner.Config{
			Name:           name,
			MatchRegex:     cfg.Runner.MatchRegex,
			MinLetterCount: minLetters,
			TriggerWords:   cfg.Runner.TriggerWords,
			Actions:        bookmarks.Actions,
			SortByScore:    cfg.Runner.SortByScore,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.Info("shut down")
}

func newHandler(level slog.Level, format string) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	// When running under systemd, the journal adds its own timestamps.
	underSystemd := os.Getenv("INVOCATION_ID") != ""
	opts := &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    underSystemd,
	}
	if underSystemd {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		}
	}
	return tint.NewHandler(os.Stderr, opts)
}

func runCLI(cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	bus := addBusFlags(fs)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	fs.Parse(args)
	bus.load(fs)

	client, err := cli.Dial(*bus.busAddress, *bus.service, dbus.ObjectPath(*bus.path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()
	formatter := cli.NewFormatter(os.Stdout, *jsonOutput)

	switch cmd {
	case "query":
		if fs.NArg() < 1 {
			fmt.Fprintf(os.Stderr, "usage: %s query <text>\n", progName)
			os.Exit(1)
		}
		matches, err := client.Match(strings.Join(fs.Args(), " "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		formatter.FormatMatches(matches)

	case "run":
		if fs.NArg() < 1 {
			fmt.Fprintf(os.Stderr, "usage: %s run <match-id> [action-id]\n", progName)
			os.Exit(1)
		}
		matchID, actionID := fs.Arg(0), fs.Arg(1)
		if err := client.Run(matchID, actionID); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		formatter.FormatRun(matchID, actionID)

	case "actions":
		actions, err := client.Actions()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		formatter.FormatActions(actions)

	case "config":
		props, err := client.Config()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		formatter.FormatConfig(props)
	}
}

func runInstall(args []string, remove bool) {
	cmd := "install"
	if remove {
		cmd = "uninstall"
	}
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	bus := addBusFlags(fs)
	restart := fs.Bool("restart", true, "Quit krunner so it reloads its plugins")
	fs.Parse(args)
	cfg, _ := bus.load(fs)

	name := cfg.Runner.Name
	if name == "" {
		name = defaultName
	}
	opts := install.Options{
		Name:       name,
		Service:    *bus.service,
		Path:       *bus.path,
		Title:      "Bookmarks",
		Comment:    "Search your bookmarks file",
		Icon:       "bookmarks",
		ConfigPath: *bus.configPath,
		Restart:    *restart,
	}

	var err error
	if remove {
		err = install.Uninstall(opts)
	} else {
		err = install.Install(opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig loads a config file. An explicit path that doesn't exist is an error.
// A missing default path is silently ignored (returns empty config).
func loadConfig(explicitPath string) (*config.Config, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return nil, fmt.Errorf("config file not found: %s", explicitPath)
		}
		cfg, err := config.Load(explicitPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", explicitPath, err)
		}
		return cfg, nil
	}

	defaultPath := config.DefaultPath()
	if defaultPath == "" {
		return &config.Config{}, nil
	}
	cfg, err := config.Load(defaultPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", defaultPath, err)
	}
	return cfg, nil
}

// setFlags returns the set of flag names that were explicitly provided on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	m := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { m[f.Name] = true })
	return m
}
