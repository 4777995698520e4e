package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/raspiblitz/blitzdash/internal/channel"
	"github.com/raspiblitz/blitzdash/internal/monitor"
	"github.com/raspiblitz/blitzdash/internal/status"
	"github.com/raspiblitz/blitzdash/internal/wallet"
)

const requestTimeout = 15 * time.Second

type formKind int

const (
	formNone formKind = iota
	formReceive
	formSend
)

// Model represents the TUI application state
type Model struct {
	width    int
	height   int
	quitting bool

	updates <-chan monitor.Update
	stop    func()
	wallet  wallet.Wallet

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	// Last published pipeline state
	state      status.ReconciledState
	conn       channel.ConnState
	lastErr    error
	snapshots  int
	lastUpdate time.Time
	closed     bool

	authenticated bool
	order         status.Order
	unit          wallet.Unit

	message     string
	messageErr  bool
	messageTime time.Time
	pending     bool

	// Form state
	form        *huh.Form
	formKind    formKind
	receiveData *ReceiveFormData
	sendData    *SendFormData
}

// ReceiveFormData holds the data for the receive form
type ReceiveFormData struct {
	Type    string
	Amount  string
	Comment string
}

// SendFormData holds the data for the send form
type SendFormData struct {
	Address string
	Amount  string
	Comment string
}

// NewModel creates a new TUI model fed by updates. stop is called on quit.
func NewModel(updates <-chan monitor.Update, stop func(), w wallet.Wallet, authenticated bool) Model {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(colorConnecting)

	return Model{
		updates:       updates,
		stop:          stop,
		wallet:        w,
		keys:          defaultKeyMap(),
		help:          help.New(),
		spinner:       s,
		state:         make(status.ReconciledState),
		conn:          channel.StateConnecting,
		lastUpdate:    time.Now(),
		authenticated: authenticated,
		order:         status.OrderByName,
		unit:          wallet.BTC,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForUpdates(m.updates),
		tea.EnterAltScreen,
		m.spinner.Tick,
		doTick(),
	)
}

// updateMsg wraps a monitor update for Bubble Tea
type updateMsg monitor.Update

// monitorDoneMsg is sent once the update channel is closed
type monitorDoneMsg struct{}

// waitForUpdates listens for monitor updates
func waitForUpdates(updates <-chan monitor.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return monitorDoneMsg{}
		}
		return updateMsg(u)
	}
}

// tickMsg is sent on every tick
type tickMsg time.Time

// doTick returns a command that waits for the next tick
func doTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// receiveResultMsg carries the outcome of POST /receive
type receiveResultMsg struct {
	invoiceType wallet.InvoiceType
	address     string
	err         error
}

// sendResultMsg carries the outcome of POST /sendpayment
type sendResultMsg struct {
	result wallet.SendResult
	err    error
}
