package ui

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/logtail"
	"github.com/five82/beoplay/internal/notify"
	"github.com/five82/beoplay/internal/prefs"
	"github.com/five82/beoplay/internal/state"
)

const (
	commandTimeout = 10 * time.Second
	tickInterval   = time.Second
	maxLogLines    = 12
)

// StreamStatus is what the header shows about the notification stream.
type StreamStatus struct {
	Connected   bool
	Breaker     string
	LastErr     error
	NextAttempt time.Time
}

// Options configure the TUI.
type Options struct {
	Context context.Context
	Device  beoplay.Device
	// Events delivers snapshot changes; nil disables live updates.
	Events <-chan beoplay.Event
	// Status reports the stream state; nil shows the stream as unknown.
	Status    func() StreamStatus
	LogPath   string
	Prefs     prefs.Prefs
	PrefsPath string
}

// Model is the bubbletea model for the device dashboard.
type Model struct {
	ctx       context.Context
	dev       beoplay.Device
	events    <-chan beoplay.Event
	status    func() StreamStatus
	logPath   string
	prefs     prefs.Prefs
	prefsPath string

	keys  keyMap
	help  help.Model
	theme Theme

	width  int
	height int

	snapshot state.Snapshot
	stream   StreamStatus
	cooldown beoplay.Cooldown
	lastKind notify.Kind
	eventErr error

	lastCmd  string
	cmdErr   error
	prefsErr error

	showLogs bool
	logs     []logtail.Entry
}

type (
	eventMsg        beoplay.Event
	eventsClosedMsg struct{}
	tickMsg         time.Time
	commandMsg      struct {
		name string
		err  error
	}
	prefsSavedMsg struct{ err error }
)

// New builds the model from opts.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	p := opts.Prefs
	if p.Theme == "" {
		p.Theme = prefs.Default().Theme
	}
	if p.VolumeStep <= 0 {
		p.VolumeStep = prefs.Default().VolumeStep
	}

	m := Model{
		ctx:       ctx,
		dev:       opts.Device,
		events:    opts.Events,
		status:    opts.Status,
		logPath:   opts.LogPath,
		prefs:     p,
		prefsPath: opts.PrefsPath,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		theme:     GetTheme(p.Theme),
	}
	m.snapshot = m.dev.Snapshot()
	m.cooldown = m.dev.Cooldown()
	m.applyHelpStyles()
	return m
}

// Run starts the TUI and blocks until the user quits or ctx is cancelled.
func Run(opts Options) error {
	m := New(opts)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := prog.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick(), m.readLogs())
}

func waitForEvent(events <-chan beoplay.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type logsMsg []logtail.Entry

func (m Model) readLogs() tea.Cmd {
	if !m.showLogs || m.logPath == "" {
		return nil
	}
	path := m.logPath
	return func() tea.Msg {
		lines, err := logtail.Read(path, maxLogLines)
		if err != nil {
			return logsMsg{{Raw: "read log: " + err.Error()}}
		}
		entries := make([]logtail.Entry, 0, len(lines))
		for _, line := range lines {
			entries = append(entries, logtail.Parse(line))
		}
		return logsMsg(entries)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		m.snapshot = msg.Snapshot
		m.lastKind = msg.Notification.Kind
		m.eventErr = msg.Err
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.events = nil
		return m, nil

	case tickMsg:
		if m.status != nil {
			m.stream = m.status()
		}
		m.cooldown = m.dev.Cooldown()
		// Background fetches update the client without an event.
		if snap := m.dev.Snapshot(); snap.Version > m.snapshot.Version {
			m.snapshot = snap
		}
		return m, tea.Batch(tick(), m.readLogs())

	case logsMsg:
		m.logs = msg
		return m, nil

	case commandMsg:
		m.lastCmd, m.cmdErr = msg.name, msg.err
		m.snapshot = m.dev.Snapshot()
		m.cooldown = m.dev.Cooldown()
		return m, nil

	case prefsSavedMsg:
		m.prefsErr = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.applyHelpStyles()
		return m, m.savePrefs()
	case key.Matches(msg, m.keys.ToggleLogs):
		m.showLogs = !m.showLogs
		if !m.showLogs {
			m.logs = nil
		}
		return m, m.readLogs()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.run("refresh", func(ctx context.Context, d beoplay.Device) error { return d.Refresh(ctx) })

	case key.Matches(msg, m.keys.PlayPause):
		action := "play"
		if m.snapshot.PlayState() == state.PlayStatePlaying {
			action = "pause"
		}
		return m, m.transport(action)
	case key.Matches(msg, m.keys.Stop):
		return m, m.transport("stop")
	case key.Matches(msg, m.keys.Next):
		return m, m.transport("forward")
	case key.Matches(msg, m.keys.Prev):
		return m, m.transport("backward")

	case key.Matches(msg, m.keys.VolumeUp):
		return m, m.stepVolume(m.prefs.VolumeStep)
	case key.Matches(msg, m.keys.VolumeDown):
		return m, m.stepVolume(-m.prefs.VolumeStep)
	case key.Matches(msg, m.keys.Mute):
		muted := m.snapshot.Volume.Muted != nil && *m.snapshot.Volume.Muted
		return m, m.run("mute", func(ctx context.Context, d beoplay.Device) error { return d.SetMute(ctx, !muted) })

	case key.Matches(msg, m.keys.Standby):
		return m, m.run("standby", func(ctx context.Context, d beoplay.Device) error { return d.Standby(ctx) })
	case key.Matches(msg, m.keys.PowerOn):
		return m, m.run("on", func(ctx context.Context, d beoplay.Device) error { return d.TurnOn(ctx) })
	case key.Matches(msg, m.keys.Join):
		return m, m.run("join", func(ctx context.Context, d beoplay.Device) error { return d.JoinExperience(ctx) })
	}
	return m, nil
}

func (m Model) transport(action string) tea.Cmd {
	return m.run(action, func(ctx context.Context, d beoplay.Device) error { return d.Transport(ctx, action) })
}

// stepVolume moves the level by delta, clamped to the device range.
func (m Model) stepVolume(delta float64) tea.Cmd {
	vol := m.snapshot.Volume
	level := 0.0
	if vol.Level != nil {
		level = *vol.Level
	}
	lo, hi := 0.0, 1.0
	if vol.Min != nil {
		lo = *vol.Min
	}
	if vol.Max != nil && *vol.Max > lo {
		hi = *vol.Max
	}
	target := math.Round((level+delta)*100) / 100
	target = min(max(target, lo), hi)
	return m.run("volume", func(ctx context.Context, d beoplay.Device) error { return d.SetVolume(ctx, target) })
}

func (m Model) run(name string, fn func(context.Context, beoplay.Device) error) tea.Cmd {
	parent, dev := m.ctx, m.dev
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, commandTimeout)
		defer cancel()
		return commandMsg{name: name, err: fn(ctx, dev)}
	}
}

func (m Model) savePrefs() tea.Cmd {
	path, p := m.prefsPath, m.prefs
	return func() tea.Msg {
		return prefsSavedMsg{err: prefs.Save(path, p)}
	}
}

func (m *Model) applyHelpStyles() {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	m.help.Styles.ShortKey = styles.AccentText
	m.help.Styles.ShortDesc = styles.MutedText
	m.help.Styles.ShortSeparator = styles.FaintText
	m.help.Styles.FullKey = styles.AccentText
	m.help.Styles.FullDesc = styles.MutedText
	m.help.Styles.FullSeparator = styles.FaintText
	m.help.Styles.Ellipsis = styles.FaintText
}
