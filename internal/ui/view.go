package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/beoplay/internal/beoplay"
	"github.com/five82/beoplay/internal/state"
)

const (
	defaultWidth   = 80
	volumeBarWidth = 24
)

// View implements tea.Model.
func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}

	sections := []string{
		m.renderHeader(width),
		m.renderNowPlaying(width),
		m.renderVolume(width),
	}
	if status := m.renderStatusLine(width); status != "" {
		sections = append(sections, status)
	}
	if m.showLogs {
		sections = append(sections, m.renderLogs(width))
	}
	sections = append(sections, m.renderFooter(width))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the status bar: name, power, stream and cooldown.
func (m Model) renderHeader(width int) string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	sep := styles.Header.UnsetPadding().Render("  ")

	parts := []string{styles.Logo.Render("beoplay")}

	name := m.snapshot.Identity.Name
	if name == "" {
		name = m.dev.Host()
	}
	parts = append(parts, styles.Text.Render(name))

	switch {
	case m.snapshot.Power == nil:
		parts = append(parts, styles.MutedText.Render("● ?"))
	case *m.snapshot.Power:
		parts = append(parts, styles.SuccessText.Render("● ON"))
	default:
		parts = append(parts, styles.WarningText.Render("● STANDBY"))
	}

	parts = append(parts, m.streamLabel(styles))

	if m.cooldown.State == beoplay.BreakerOpen {
		parts = append(parts, styles.DangerText.Render(fmt.Sprintf("COOLDOWN %d", m.cooldown.Remaining)))
	}

	if !m.snapshot.LastUpdated.IsZero() {
		parts = append(parts, styles.MutedText.Render(formatTimestamp(m.snapshot.LastUpdated, time.Now())))
	}

	return styles.Header.Width(width).Render(strings.Join(parts, sep))
}

func (m Model) streamLabel(styles Styles) string {
	if m.status == nil {
		return styles.FaintText.Render("stream ?")
	}
	switch {
	case m.stream.Connected:
		return styles.SuccessText.Render("LIVE")
	case m.stream.Breaker == "open":
		return styles.DangerText.Render("STREAM BREAKER OPEN")
	case !m.stream.NextAttempt.IsZero():
		wait := time.Until(m.stream.NextAttempt).Round(time.Second)
		label := "RECONNECTING"
		if wait > 0 {
			label += " in " + wait.String()
		}
		return styles.WarningText.Render(label)
	default:
		return styles.WarningText.Render("CONNECTING")
	}
}

// renderNowPlaying renders the source and media panel.
func (m Model) renderNowPlaying(width int) string {
	styles := m.theme.Styles()
	snap := m.snapshot
	ps := snap.PlayState()

	var b strings.Builder
	b.WriteString(styles.PlayStyle(ps).Render(strings.ToUpper(string(ps))))
	if src := state.Text(snap.Source); src != "" {
		b.WriteString("  " + styles.AccentText.Render(src))
	} else {
		b.WriteString("  " + styles.MutedText.Render("no source"))
	}
	b.WriteString("\n")

	rows := [][2]string{
		{"Track", state.Text(snap.Media.Track)},
		{"Artist", state.Text(snap.Media.Artist)},
		{"Album", state.Text(snap.Media.Album)},
		{"Genre", state.Text(snap.Media.Genre)},
		{"Country", state.Text(snap.Media.Country)},
		{"Languages", strings.Join(snap.Media.Languages, ", ")},
		{"Sound", state.Text(snap.SoundMode)},
		{"Stand", state.Text(snap.StandPosition)},
	}
	if n := len(snap.Listeners); n > 1 {
		rows = append(rows, [2]string{"Listeners", fmt.Sprintf("%d devices", n)})
	}
	inner := max(width-4, 10)
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		label := styles.MutedText.Render(fmt.Sprintf("%-10s", row[0]))
		b.WriteString(label + styles.Text.Render(truncate(row[1], inner-10)) + "\n")
	}

	return styles.Panel.Width(width - 2).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderVolume(width int) string {
	styles := m.theme.Styles()
	vol := m.snapshot.Volume

	label := styles.MutedText.Render("Vol ")
	if vol.Level == nil {
		return lipgloss.NewStyle().Padding(0, 1).Render(label + styles.FaintText.Render("unknown"))
	}
	hi := 1.0
	if vol.Max != nil && *vol.Max > 0 {
		hi = *vol.Max
	}
	barWidth := min(volumeBarWidth, max(width-20, 4))
	bar := volumeBar(*vol.Level, hi, barWidth)

	barStyle := styles.AccentText
	suffix := fmt.Sprintf(" %3.0f%%", *vol.Level*100)
	if vol.Muted != nil && *vol.Muted {
		barStyle = styles.FaintText
		suffix += " " + styles.WarningText.Render("MUTED")
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(label + barStyle.Render(bar) + styles.Text.Render(suffix))
}

// renderStatusLine shows the outcome of the last command and any stream
// problems.
func (m Model) renderStatusLine(width int) string {
	styles := m.theme.Styles()
	var parts []string

	switch {
	case m.cmdErr != nil:
		parts = append(parts, styles.DangerText.Render(m.lastCmd+": "+describeError(m.cmdErr)))
	case m.lastCmd != "":
		parts = append(parts, styles.SuccessText.Render("✓ "+m.lastCmd))
	}
	if m.eventErr != nil {
		parts = append(parts, styles.WarningText.Render(fmt.Sprintf("%s: %v", m.lastKind, m.eventErr)))
	}
	if !m.stream.Connected && m.stream.LastErr != nil {
		parts = append(parts, styles.WarningText.Render("stream: "+describeError(m.stream.LastErr)))
	}
	if m.prefsErr != nil {
		parts = append(parts, styles.WarningText.Render("prefs: "+m.prefsErr.Error()))
	}
	if len(parts) == 0 {
		return ""
	}
	return lipgloss.NewStyle().Padding(0, 1).Width(width).Render(truncate(strings.Join(parts, "  "), width*2))
}

func (m Model) renderLogs(width int) string {
	styles := m.theme.Styles()
	if len(m.logs) == 0 {
		msg := "no log output"
		if m.logPath == "" {
			msg = "logging to stderr"
		}
		return styles.Panel.Width(width - 2).Render(styles.FaintText.Render(msg))
	}

	lines := make([]string, 0, len(m.logs))
	for _, e := range m.logs {
		if !e.Structured() {
			lines = append(lines, styles.MutedText.Render(truncate(e.Raw, width-4)))
			continue
		}
		ts := styles.FaintText.Render(e.Time.Format("15:04:05"))
		lvl := m.levelStyle(styles, e.Level).Render(e.LevelTag())
		rest := e.Message
		if len(e.Fields) > 0 {
			rest += " " + strings.Join(e.Fields, " ")
		}
		lines = append(lines, ts+" "+lvl+" "+styles.Text.Render(truncate(rest, max(width-18, 10))))
	}
	return styles.Panel.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (m Model) levelStyle(styles Styles, level string) lipgloss.Style {
	switch level {
	case "warn":
		return styles.WarningText
	case "error", "fatal", "panic":
		return styles.DangerText
	case "debug", "trace":
		return styles.FaintText
	default:
		return styles.InfoText
	}
}

func (m Model) renderFooter(width int) string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	theme := styles.AccentText.Render("T") + styles.MutedText.Render(":") + styles.FaintText.Render(m.theme.Name)
	return styles.Footer.Width(width).Render(m.help.View(m.keys) + "  " + theme)
}

// describeError returns a short description of a device error.
func describeError(err error) string {
	var (
		te *beoplay.TransportError
		se *beoplay.StatusError
	)
	switch {
	case errors.Is(err, beoplay.ErrSkipped):
		return "skipped, device unreachable"
	case errors.As(err, &te) && te.Timeout():
		return "timeout"
	case errors.As(err, &te):
		return "offline"
	case errors.As(err, &se):
		return fmt.Sprintf("device returned %d", se.Code)
	default:
		return err.Error()
	}
}
