// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/wellgate/internal/acquisition"
	"github.com/Thermoquad/wellgate/pkg/xbee"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Health thresholds
const (
	degradedAfter = 1 // consecutive failures
	downAfter     = 3
)

// Monitor model
type monitorModel struct {
	gw      *gateway
	events  *eventWriter
	sites   table.Model
	started time.Time

	health  []acquisition.SiteHealth
	stats   xbee.StatisticsSnapshot
	sweeps  uint64
	swapped time.Time
	dropped uint64

	width    int
	height   int
	quitting bool
}

// Messages
type tickMsg time.Time

var siteColumns = []table.Column{
	{Title: "Site", Width: 5},
	{Title: "Name", Width: 16},
	{Title: "Class", Width: 12},
	{Title: "Status", Width: 9},
	{Title: "Polls", Width: 7},
	{Title: "Fails", Width: 6},
	{Title: "Last OK", Width: 16},
	{Title: "Last Error", Width: 40},
}

func newMonitorModel(gw *gateway, events *eventWriter) monitorModel {
	sites := table.New(
		table.WithColumns(siteColumns),
		table.WithFocused(true),
		table.WithHeight(len(gw.cfg.Sites)+1),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	sites.SetStyles(styles)

	m := monitorModel{
		gw:      gw,
		events:  events,
		sites:   sites,
		started: time.Now(),
		width:   80,
		height:  24,
	}
	m.refresh()
	return m
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.gw.radio.Statistics().Reset()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.refresh()
		return m, tickCmd()
	}

	var cmd tea.Cmd
	m.sites, cmd = m.sites.Update(msg)
	return m, cmd
}

// refresh pulls the current state of the running gateway
func (m *monitorModel) refresh() {
	m.health = m.gw.machine.Health()
	m.stats = m.gw.radio.Statistics().Snapshot()
	m.sweeps, m.swapped = m.gw.buffer.Published()
	if m.gw.sink != nil {
		m.dropped = m.gw.sink.Dropped()
	}

	rows := make([]table.Row, 0, len(m.health))
	for _, h := range m.health {
		lastOK := "never"
		if !h.LastSuccess.IsZero() {
			lastOK = formatAge(time.Since(h.LastSuccess)) + " ago"
		}
		lastErr := h.LastError
		if h.Consecutive == 0 {
			lastErr = ""
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", h.Site),
			h.Name,
			h.Class,
			siteStatus(h),
			fmt.Sprintf("%d", h.Polls),
			fmt.Sprintf("%d", h.Failures),
			lastOK,
			lastErr,
		})
	}
	m.sites.SetRows(rows)
}

// siteStatus grades a site by its consecutive failures
func siteStatus(h acquisition.SiteHealth) string {
	switch {
	case h.Polls == 0:
		return "pending"
	case h.Consecutive >= downAfter:
		return "down"
	case h.Consecutive >= degradedAfter:
		return "degraded"
	case !h.Learned:
		return "unlearned"
	default:
		return "ok"
	}
}

// formatAge formats a duration the way an operator reads it
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd%02dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("WELLGATE - GATEWAY MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Host: %s | Wiring: %s | Up %s | 'r' reset stats, 'q' quit",
		m.gw.cfg.Host.Listen, m.gw.cfg.Gateway.ValveWiring, formatAge(time.Since(m.started)))))
	s.WriteString("\n\n")

	// Sweep status
	if m.sweeps == 0 {
		s.WriteString(warningStyle.Render("Waiting for the first sweep..."))
	} else {
		s.WriteString(statsValueStyle.Render(fmt.Sprintf("Sweep %d", m.sweeps)))
		s.WriteString(headerStyle.Render(fmt.Sprintf(" published %s ago", formatAge(time.Since(m.swapped)))))
	}
	if m.dropped > 0 {
		s.WriteString("   ")
		s.WriteString(errorStyle.Render(fmt.Sprintf("storage dropped %d sweeps", m.dropped)))
	}
	s.WriteString("\n\n")

	// Sites
	s.WriteString(boxStyle.Render(m.sites.View()))
	s.WriteString("\n\n")

	// Radio statistics
	st := m.stats
	var validPercent, errorPercent float64
	if st.TotalFrames > 0 {
		validPercent = float64(st.ValidFrames) * 100.0 / float64(st.TotalFrames)
		errorPercent = float64(st.Errors()) * 100.0 / float64(st.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.Errors(), errorPercent)),
	))

	if st.Errors() > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %d  %s %d  %s %d  %s %d  %s %d\n",
			headerStyle.Render("checksum"), st.ChecksumErrors,
			headerStyle.Render("oversize"), st.OversizeFrames,
			headerStyle.Render("unexpected start"), st.UnexpectedStarts,
			headerStyle.Render("unknown type"), st.UnknownTypes,
			headerStyle.Render("other"), st.DecodeErrors,
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - len(m.health) - 18 // Reserve space for header, table and stats
	if logHeight < 3 {
		logHeight = 3
	}

	lines := m.events.Last(logHeight)
	if len(lines) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
		s.WriteString("\n")
	}
	for _, line := range lines {
		style := headerStyle
		switch {
		case strings.Contains(line, "level=ERROR"), strings.Contains(line, `"level":"ERROR"`):
			style = errorStyle
		case strings.Contains(line, "level=WARN"), strings.Contains(line, `"level":"WARN"`):
			style = warningStyle
		}
		if m.width > 4 && len(line) > m.width-2 {
			line = line[:m.width-2]
		}
		s.WriteString(style.Render(line))
		s.WriteString("\n")
	}

	return s.String()
}
