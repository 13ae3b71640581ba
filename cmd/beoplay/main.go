package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/five82/beoplay/internal/app"
	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/config"
	"github.com/five82/beoplay/internal/logging"
	"github.com/five82/beoplay/internal/prefs"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type globalFlags struct {
	configPath string
	prefsPath  string
	host       string
	logLevel   string
	logFormat  string
	logFile    string
	timeout    string
	cooldown   int
}

func run(args []string, stdout, stderr io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "beoplay: load .env: %v\n", err)
	}

	var g globalFlags
	fs := pflag.NewFlagSet("beoplay", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(stderr)
	fs.StringVar(&g.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	fs.StringVar(&g.prefsPath, "prefs", "", "TUI preferences file (default "+prefs.DefaultPath()+")")
	fs.StringVar(&g.host, "host", "", "device host or host:port")
	fs.StringVar(&g.logLevel, "log-level", "", "trace, debug, info, warn, error or disabled")
	fs.StringVar(&g.logFormat, "log-format", "", "console or json")
	fs.StringVar(&g.logFile, "log-file", "", "write logs to this file")
	fs.StringVar(&g.timeout, "timeout", "", "request timeout, e.g. 5s")
	fs.IntVar(&g.cooldown, "cooldown", -1, "requests skipped after the device is unreachable")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		usage(stderr, fs)
		return exitUsage
	}
	name, rest := fs.Arg(0), fs.Args()[1:]

	cfg, err := loadConfig(fs, g)
	if err != nil {
		fmt.Fprintf(stderr, "beoplay: %v\n", err)
		return exitError
	}
	if err := cfg.RequireHost(); err != nil {
		fmt.Fprintf(stderr, "beoplay: %v\n", err)
		return exitUsage
	}

	logFile, err := setupLogging(cfg, name == "tui", stderr)
	if err != nil {
		fmt.Fprintf(stderr, "beoplay: %v\n", err)
		return exitError
	}
	if logFile != nil {
		defer logFile.Close()
	}
	log := logging.Logger()

	dev, err := beoplay.NewClient(cfg.Host,
		beoplay.WithTimeout(cfg.Timeout),
		beoplay.WithCooldown(cfg.Cooldown),
		beoplay.WithLogger(log),
	)
	if err != nil {
		fmt.Fprintf(stderr, "beoplay: %v\n", err)
		return exitUsage
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch name {
	case "watch":
		err = runWatch(ctx, dev, cfg, rest, stdout, log)
	case "bridge":
		err = runBridge(ctx, dev, cfg, rest, log)
	case "tui":
		err = runTUI(ctx, dev, cfg, g, rest, logFile, log)
	default:
		err = app.Exec(ctx, dev, stdout, name, rest)
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, app.ErrUsage):
		fmt.Fprintf(stderr, "%v\n", err)
		return exitUsage
	case errors.Is(err, context.Canceled):
		return exitOK
	default:
		fmt.Fprintf(stderr, "beoplay: %v\n", err)
		return exitError
	}
}

func loadConfig(fs *pflag.FlagSet, g globalFlags) (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if fs.Changed("host") {
		cfg.Host = strings.TrimSpace(g.host)
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = g.logFormat
	}
	if fs.Changed("log-file") {
		cfg.Log.File = g.logFile
		cfg.Log.FileExplicit = true
	}
	if fs.Changed("timeout") {
		d, err := parseDuration(g.timeout)
		if err != nil {
			return config.Config{}, fmt.Errorf("--timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if fs.Changed("cooldown") {
		cfg.Cooldown = g.cooldown
	}
	return cfg, cfg.Validate()
}

// setupLogging sends logs to the configured file for the TUI, or when a file
// was asked for explicitly, and to stderr otherwise. Files always get JSON so
// the TUI log pane can parse them.
func setupLogging(cfg config.Config, tui bool, stderr io.Writer) (*os.File, error) {
	if !tui && !cfg.Log.FileExplicit {
		logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})
		return nil, nil
	}
	f, err := logging.OpenFile(cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: "json", Output: f})
	return f, nil
}

func runWatch(ctx context.Context, dev *beoplay.Client, cfg config.Config, args []string, stdout io.Writer, log zerolog.Logger) error {
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	full := fs.Bool("full", false, "include the snapshot on every line")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return fmt.Errorf("%w: beoplay watch [--full]", app.ErrUsage)
	}
	return app.RunWatch(ctx, dev, cfg.Watch, stdout, *full, log)
}

func runBridge(ctx context.Context, dev *beoplay.Client, cfg config.Config, args []string, log zerolog.Logger) error {
	fs := pflag.NewFlagSet("bridge", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	listen := fs.String("listen", cfg.Bridge.Listen, "HTTP listen address")
	broker := fs.String("mqtt-broker", cfg.MQTT.Broker, "MQTT broker URL, e.g. tcp://localhost:1883")
	pidPath := fs.String("pidfile", cfg.Bridge.PIDFile, "write the process id to this file while running")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return fmt.Errorf("%w: beoplay bridge [--listen addr] [--mqtt-broker url] [--pidfile path]", app.ErrUsage)
	}
	cfg.Bridge.Listen = *listen
	cfg.MQTT.Broker = *broker
	cfg.Bridge.PIDFile = *pidPath
	return app.RunBridge(ctx, dev, cfg, log)
}

func runTUI(ctx context.Context, dev *beoplay.Client, cfg config.Config, g globalFlags, args []string, logFile *os.File, log zerolog.Logger) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: beoplay tui", app.ErrUsage)
	}
	p, _ := prefs.Load(g.prefsPath)
	opts := app.TUIOptions{Prefs: p, PrefsPath: g.prefsPath}
	if logFile != nil {
		opts.LogPath = logFile.Name()
	}
	return app.RunTUI(ctx, dev, cfg, opts, log)
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: beoplay [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  tui\t\tinteractive dashboard")
	fmt.Fprintln(tw, "  watch\t[--full]\tprint notifications as JSON lines")
	fmt.Fprintln(tw, "  bridge\t[--listen addr]\tserve the HTTP bridge and MQTT publisher")
	for _, cmd := range app.Commands() {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", cmd.Name, cmd.Usage, cmd.Help)
	}
	_ = tw.Flush()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, fs.FlagUsages())
}
