package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/state"
)

// ErrUsage marks a command line that does not match the command's usage.
var ErrUsage = errors.New("usage")

// Command is a one-shot CLI subcommand against a device.
type Command struct {
	Name  string
	Usage string
	Help  string
	run   func(ctx context.Context, dev beoplay.Device, out io.Writer, args []string) error
}

var transportAliases = map[string]string{
	"play":     "play",
	"pause":    "pause",
	"stop":     "stop",
	"next":     "forward",
	"prev":     "backward",
	"stepup":   "stepup",
	"stepdown": "stepdown",
	"shuffle":  "shuffle",
	"repeat":   "repeat",
}

// Commands lists the one-shot subcommands, sorted by name.
func Commands() []Command {
	cmds := []Command{
		{Name: "info", Help: "show device identity", run: runInfo},
		{Name: "state", Help: "refresh and print the device snapshot as JSON", run: runState},
		{Name: "volume", Usage: "<0-100>", Help: "set the volume", run: runVolume},
		{Name: "mute", Usage: "on|off", Help: "mute or unmute", run: runMute},
		{Name: "standby", Help: "put the device in standby", run: noArgs(func(ctx context.Context, d beoplay.Device) error { return d.Standby(ctx) })},
		{Name: "on", Help: "wake the device on its first source", run: noArgs(func(ctx context.Context, d beoplay.Device) error { return d.TurnOn(ctx) })},
		{Name: "sources", Help: "list sources in use", run: runSources},
		{Name: "source", Usage: "<name>", Help: "select a source", run: runSource},
		{Name: "sound-modes", Help: "list sound modes", run: runSoundModes},
		{Name: "sound-mode", Usage: "<name>", Help: "select a sound mode", run: named(func(ctx context.Context, d beoplay.Device, n string) error { return d.SetSoundMode(ctx, n) })},
		{Name: "stands", Help: "list stand positions", run: runStands},
		{Name: "stand", Usage: "<name>", Help: "move the stand", run: named(func(ctx context.Context, d beoplay.Device, n string) error { return d.SetStandPosition(ctx, n) })},
		{Name: "join", Help: "join the active experience", run: noArgs(func(ctx context.Context, d beoplay.Device) error { return d.JoinExperience(ctx) })},
		{Name: "leave", Help: "leave the active experience", run: noArgs(func(ctx context.Context, d beoplay.Device) error { return d.LeaveExperience(ctx) })},
		{Name: "remote", Usage: "<command> [--hold|--release]", Help: "send a remote control command", run: runRemote},
		{Name: "digit", Usage: "<0-9>", Help: "send a digit", run: runDigit},
		{Name: "queue", Usage: "tunein|deezer|dlna <id> [--instant]", Help: "add to the play queue", run: runQueue},
	}
	for alias, action := range transportAliases {
		cmds = append(cmds, Command{
			Name: alias,
			Help: "transport: " + action,
			run: noArgs(func(ctx context.Context, d beoplay.Device) error {
				return d.Transport(ctx, action)
			}),
		})
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// LookupCommand reports whether name is a one-shot subcommand.
func LookupCommand(name string) (Command, bool) {
	for _, cmd := range Commands() {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return Command{}, false
}

// Exec runs the one-shot subcommand name against dev.
func Exec(ctx context.Context, dev beoplay.Device, out io.Writer, name string, args []string) error {
	cmd, ok := LookupCommand(name)
	if !ok {
		return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
	if err := cmd.run(ctx, dev, out, args); err != nil {
		if errors.Is(err, ErrUsage) {
			return fmt.Errorf("%w: beoplay %s %s", ErrUsage, cmd.Name, cmd.Usage)
		}
		return err
	}
	return nil
}

func noArgs(fn func(context.Context, beoplay.Device) error) func(context.Context, beoplay.Device, io.Writer, []string) error {
	return func(ctx context.Context, dev beoplay.Device, _ io.Writer, args []string) error {
		if len(args) != 0 {
			return ErrUsage
		}
		return fn(ctx, dev)
	}
}

func named(fn func(context.Context, beoplay.Device, string) error) func(context.Context, beoplay.Device, io.Writer, []string) error {
	return func(ctx context.Context, dev beoplay.Device, _ io.Writer, args []string) error {
		if len(args) == 0 {
			return ErrUsage
		}
		return fn(ctx, dev, strings.Join(args, " "))
	}
}

func runInfo(ctx context.Context, dev beoplay.Device, out io.Writer, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	id, err := dev.FetchDeviceInfo(ctx)
	if err != nil {
		return err
	}
	rows := [][2]string{
		{"Name", id.Name},
		{"Type", strings.TrimSpace(id.TypeName + " " + id.TypeNumber)},
		{"Item", id.ItemNumber},
		{"Serial", id.SerialNumber},
		{"Software", id.SoftwareVersion},
		{"Hardware", id.HardwareVersion},
		{"Host", dev.Host()},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(out, "%-9s %s\n", row[0]+":", row[1])
	}
	return nil
}

func runState(ctx context.Context, dev beoplay.Device, out io.Writer, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	refreshErr := dev.Refresh(ctx)
	if refreshErr != nil && beoplay.Unreachable(refreshErr) {
		return refreshErr
	}
	data, err := json.MarshalIndent(dev.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return refreshErr
}

func runVolume(ctx context.Context, dev beoplay.Device, _ io.Writer, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	pct, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "%"), 64)
	if err != nil {
		return fmt.Errorf("%w: volume %q is not a number", beoplay.ErrInvalidArgument, args[0])
	}
	return dev.SetVolume(ctx, pct/100)
}

func runMute(ctx context.Context, dev beoplay.Device, _ io.Writer, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		return dev.SetMute(ctx, true)
	case "off", "false", "0":
		return dev.SetMute(ctx, false)
	default:
		return ErrUsage
	}
}

func runSources(ctx context.Context, dev beoplay.Device, out io.Writer, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	sources, err := dev.FetchSources(ctx)
	if err != nil {
		return err
	}
	active := state.Text(dev.Snapshot().Source)
	for _, src := range sources {
		marker := " "
		if src.Name == active {
			marker = "*"
		}
		suffix := ""
		if src.Borrowed {
			suffix = " (borrowed)"
		}
		fmt.Fprintf(out, "%s %s%s\n", marker, src.Name, suffix)
	}
	return nil
}

// runSource fetches the catalogue first so a fresh process can select by
// name.
func runSource(ctx context.Context, dev beoplay.Device, out io.Writer, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	if _, err := dev.FetchSources(ctx); err != nil {
		return err
	}
	return dev.SetSource(ctx, strings.Join(args, " "))
}

func runSoundModes(ctx context.Context, dev beoplay.Device, out io.Writer, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	modes, err := dev.FetchSoundModes(ctx)
	if err != nil {
		return err
	}
	active := state.Text(dev.Snapshot().SoundMode)
	for _, m := range modes {
		marker := " "
		if m.Name == active {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\n", marker, m.Name)
	}
	return nil
}

func runStands(ctx context.Context, dev beoplay.Device, out io.Writer, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	positions, err := dev.FetchStandPositions(ctx)
	if err != nil {
		return err
	}
	for _, p := range positions {
		fmt.Fprintf(out, "  %s\n", p.Name)
	}
	return nil
}

func runRemote(ctx context.Context, dev beoplay.Device, _ io.Writer, args []string) error {
	fs := pflag.NewFlagSet("remote", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	hold := fs.Bool("hold", false, "press without releasing")
	release := fs.Bool("release", false, "release a held command")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 || (*hold && *release) {
		return ErrUsage
	}
	cmd := fs.Arg(0)
	switch {
	case *release:
		return dev.RemoteRelease(ctx, cmd)
	case *hold:
		return dev.RemoteCommand(ctx, cmd, true)
	default:
		return dev.Press(ctx, cmd)
	}
}

func runDigit(ctx context.Context, dev beoplay.Device, _ io.Writer, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	return dev.Digit(ctx, args[0])
}

func runQueue(ctx context.Context, dev beoplay.Device, _ io.Writer, args []string) error {
	fs := pflag.NewFlagSet("queue", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	instant := fs.Bool("instant", false, "play now instead of appending")
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 {
		return ErrUsage
	}
	item, err := beoplay.QueueItemFor(fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	return dev.PlayQueueItem(ctx, *instant, item)
}
