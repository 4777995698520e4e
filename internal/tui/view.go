package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/raspiblitz/blitzdash/internal/channel"
	"github.com/raspiblitz/blitzdash/internal/protocol"
	"github.com/raspiblitz/blitzdash/internal/status"
)

// Palette: bitcoin orange on a dark night theme.
var (
	colorAccent     = lipgloss.Color("#F7931A")
	colorOnline     = lipgloss.Color("#00FF94")
	colorOffline    = lipgloss.Color("#FF0055")
	colorConnecting = lipgloss.Color("#FFD700")
	colorMuted      = lipgloss.Color("#565f89")
	colorRule       = lipgloss.Color("#24283b")
	colorCard       = lipgloss.Color("#16161e")
	colorText       = lipgloss.Color("#c0caf5")
)

var (
	brandStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1)
	groupStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginTop(1).MarginBottom(1)

	onlineStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorOnline)
	offlineStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorOffline)
	connectingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorConnecting)

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle = lipgloss.NewStyle().Foreground(colorOffline)
	nameStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorText)

	// the border colour follows the service state
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Background(colorCard).
			Padding(0, 1).
			MarginRight(1).
			MarginBottom(1)
)


// View renders the TUI with full-screen grid layout
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.form != nil {
		return lipgloss.Place(
			m.width,
			m.height,
			lipgloss.Center,
			lipgloss.Center,
			lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorAccent).
				Padding(1, 2).
				Render(m.form.View()),
		)
	}

	// Handle initial state when width is not set
	width := m.width
	if width < 40 {
		width = 80
	}

	cols := 2
	if width > 160 {
		cols = 3
	}
	if width > 200 {
		cols = 4
	}
	// cardWidth is the full footprint of a card, border and margin included
	cardWidth := width / cols
	if cardWidth < 24 {
		cardWidth = width
		cols = 1
	}

	var b strings.Builder

	b.WriteString(m.renderHeader(width))
	b.WriteString("\n")

	if !m.live() {
		b.WriteString("\n")
		b.WriteString(m.renderNoLiveData(width))
		b.WriteString("\n")
	}

	rows := status.Render(m.state, m.order)
	if len(rows) == 0 {
		if m.live() {
			b.WriteString("\n")
			b.WriteString(centered(width, m.spinner.View()+" "+mutedStyle.Render("Waiting for status...")))
			b.WriteString("\n")
		}
	} else {
		online, offline := status.Group(rows)

		if len(online) > 0 {
			b.WriteString("\n" + groupStyle.Render(fmt.Sprintf("✓ Online (%d)", len(online))) + "\n")
			b.WriteString(m.renderServiceGrid(online, cardWidth, cols))
		}

		if len(offline) > 0 {
			b.WriteString("\n" + groupStyle.Render(fmt.Sprintf("✗ Offline (%d)", len(offline))) + "\n")
			b.WriteString(m.renderServiceGrid(offline, cardWidth, cols))
		}
	}

	if m.message != "" {
		b.WriteString("\n")
		style := mutedStyle
		if m.messageErr {
			style = errorStyle
		}
		text := m.message
		if m.pending {
			text = m.spinner.View() + " " + text
		}
		b.WriteString(style.Render(text))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter(width, rows))
	b.WriteString("\n")

	return b.String()
}

// live reports whether the status channel is delivering data
func (m Model) live() bool {
	return m.conn == channel.StateConnected
}

// renderNoLiveData explains why the list is stale or empty. Nothing is shown
// on the very first connection attempt.
func (m Model) renderNoLiveData(width int) string {
	if m.conn == channel.StateConnecting && m.lastErr == nil {
		return centered(width, m.spinner.View()+" "+mutedStyle.Render("Connecting..."))
	}

	text := "⚠ No live data"
	if len(m.state) > 0 {
		text += " (showing last known status)"
	}
	line := offlineStyle.Render(text)
	if m.lastErr != nil {
		line += "\n" + errorStyle.Render(truncate(m.lastErr.Error(), width-2))
	}
	return line
}

// renderHeader renders the title, connection state and counts
func (m Model) renderHeader(width int) string {
	var b strings.Builder

	titleRendered := brandStyle.Render("BLITZDASH")

	var indicators []string
	switch m.conn {
	case channel.StateConnected:
		indicators = append(indicators, onlineStyle.Render("● live"))
	case channel.StateConnecting:
		indicators = append(indicators, connectingStyle.Render("● connecting"))
	default:
		indicators = append(indicators, offlineStyle.Render("● offline"))
	}
	if m.authenticated {
		indicators = append(indicators, mutedStyle.Render("🔓 signed in"))
	} else {
		indicators = append(indicators, mutedStyle.Render("🔒 signed out"))
	}
	if len(m.state) > 0 {
		online, offline := status.Counts(m.state)
		indicators = append(indicators,
			onlineStyle.Render(fmt.Sprintf("▲ %d", online)),
			offlineStyle.Render(fmt.Sprintf("▼ %d", offline)),
		)
	}
	stats := strings.Join(indicators, "  ")

	// BLITZDASH                          ● live  🔒 signed out  ▲ 3  ▼ 2
	availableWidth := width - lipgloss.Width(titleRendered) - lipgloss.Width(stats) - 2
	if availableWidth < 0 {
		availableWidth = 0
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleRendered,
		strings.Repeat(" ", availableWidth),
		stats,
	)

	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(colorRule).Render(strings.Repeat("━", width)))

	return b.String()
}

// renderFooter renders time, key help and the summary on a single line. The
// clock goes first and the key help is cut short when the line runs out.
func (m Model) renderFooter(width int, rows []protocol.ServiceStatus) string {
	var summary string
	if len(rows) > 0 {
		online, _ := status.Counts(m.state)
		summary = fmt.Sprintf("%d/%d online", online, len(rows))
	} else {
		summary = "No services"
	}
	summary = fmt.Sprintf("%s · by %s · %s", summary, m.order, m.unit)

	right := truncate(summary, width-2) + " "
	room := width - lipgloss.Width(right) - 1

	left := fmt.Sprintf(" %s │ ", time.Now().Format("15:04:05"))
	if lipgloss.Width(left) >= room {
		left = " "
	}
	if helpRoom := room - lipgloss.Width(left); helpRoom > 0 {
		h := m.help
		h.Width = helpRoom
		left += h.ShortHelpView(m.keys.ShortHelp())
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	footerStyle := lipgloss.NewStyle().
		Foreground(colorMuted).
		BorderTop(true).
		BorderForeground(colorRule).
		Width(width).
		PaddingTop(1)

	return footerStyle.Render(left + strings.Repeat(" ", gap) + right)
}

// renderServiceGrid renders services in a grid layout
func (m Model) renderServiceGrid(services []protocol.ServiceStatus, cardWidth int, cols int) string {
	var rows []string
	for i := 0; i < len(services); i += cols {
		end := min(i+cols, len(services))

		var rowCards []string
		for _, svc := range services[i:end] {
			rowCards = append(rowCards, m.renderServiceCard(svc, cardWidth))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, rowCards...))
	}

	return strings.Join(rows, "\n")
}

// renderServiceCard renders one service
func (m Model) renderServiceCard(svc protocol.ServiceStatus, width int) string {
	borderColor := colorRule
	icon := "?"
	label := string(svc.State)
	switch svc.State {
	case protocol.StateOnline:
		borderColor, icon = colorOnline, onlineStyle.Render("✓")
	case protocol.StateOffline:
		borderColor, icon = colorOffline, offlineStyle.Render("✗")
	}
	if !m.live() {
		label += " (stale)"
	}

	content := fmt.Sprintf("%s %s\n%s",
		icon,
		nameStyle.Render(truncate(svc.Name, width-7)),
		mutedStyle.Render(label),
	)

	return cardStyle.
		Width(width - cardStyle.GetHorizontalBorderSize() - cardStyle.GetHorizontalMargins()).
		BorderForeground(borderColor).
		Render(content)
}

func centered(width int, text string) string {
	padding := (width - lipgloss.Width(text)) / 2
	if padding <= 0 {
		return text
	}
	return strings.Repeat(" ", padding) + text
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if n < 2 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
