package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/raspiblitz/blitzdash/internal/channel"
	"github.com/raspiblitz/blitzdash/internal/monitor"
	"github.com/raspiblitz/blitzdash/internal/wallet"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Always update window size
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
	}

	// Pipeline and request results arrive whether or not a form is open
	switch msg := msg.(type) {
	case updateMsg:
		m.applyUpdate(monitor.Update(msg))
		return m, waitForUpdates(m.updates)

	case monitorDoneMsg:
		m.closed = true
		m.conn = channel.StateDisconnected
		return m, nil

	case receiveResultMsg:
		m.pending = false
		if msg.err != nil {
			m.setMessage(fmt.Sprintf("Receive failed: %v", msg.err), true)
		} else {
			m.setMessage(fmt.Sprintf("%s address: %s", msg.invoiceType, msg.address), false)
		}
		return m, nil

	case sendResultMsg:
		m.pending = false
		if msg.err != nil {
			m.setMessage(fmt.Sprintf("Send failed: %v", msg.err), true)
		} else {
			m.setMessage(fmt.Sprintf("Payment %s %s", msg.result.PaymentID, msg.result.Status), false)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		return m, doTick()
	}

	// Handle form updates if form is active
	if m.form != nil {
		if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Close) {
			m.closeForm()
			return m, nil
		}

		form, cmd := m.form.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.form = f
		}

		switch m.form.State {
		case huh.StateCompleted:
			submit := m.submitForm()
			m.closeForm()
			return m, tea.Batch(cmd, submit)
		case huh.StateAborted:
			m.closeForm()
		}
		return m, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			if m.stop != nil {
				m.stop()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Receive):
			m.initReceiveForm()
			return m, m.form.Init()
		case key.Matches(msg, m.keys.Send):
			m.initSendForm()
			return m, m.form.Init()
		case key.Matches(msg, m.keys.Order):
			m.order = m.order.Next()
		case key.Matches(msg, m.keys.Unit):
			m.unit = m.unit.Toggle()
		}
	}

	return m, nil
}

// applyUpdate replaces the displayed state with the monitor's latest view
func (m *Model) applyUpdate(u monitor.Update) {
	if u.State != nil {
		m.state = u.State
	}
	m.conn = u.Conn
	m.lastErr = u.Err
	m.snapshots = u.Snapshots
	m.lastUpdate = u.At
}

func (m *Model) setMessage(text string, isErr bool) {
	m.message = text
	m.messageErr = isErr
	m.messageTime = time.Now()
}

func (m *Model) closeForm() {
	m.form = nil
	m.formKind = formNone
}

// initReceiveForm initializes the form for requesting an invoice or address
func (m *Model) initReceiveForm() {
	data := &ReceiveFormData{Type: string(wallet.Lightning)}
	m.receiveData = data
	m.formKind = formReceive
	unit := m.unit

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Type").
				Options(
					huh.NewOption("Lightning invoice", string(wallet.Lightning)),
					huh.NewOption("Onchain address", string(wallet.Onchain)),
				).
				Value(&data.Type),
		).Title("Receive Funds (Esc to cancel)"),
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Amount (%s)", unit)).
				Validate(func(s string) error {
					_, err := wallet.ParseAmount(s, unit)
					return err
				}).
				Value(&data.Amount),
			huh.NewInput().
				Title("Comment").
				Value(&data.Comment),
		).Title("Invoice Details").
			WithHideFunc(func() bool {
				return data.Type != string(wallet.Lightning)
			}),
	).WithTheme(huh.ThemeCatppuccin()).WithWidth(60).WithShowHelp(true)
}

// initSendForm initializes the form for paying an address
func (m *Model) initSendForm() {
	data := &SendFormData{}
	m.sendData = data
	m.formKind = formSend
	unit := m.unit

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Address").
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("address is required")
					}
					return nil
				}).
				Value(&data.Address),
			huh.NewInput().
				Title(fmt.Sprintf("Amount (%s)", unit)).
				Description(fmt.Sprintf("Minimum %s", wallet.FormatAmount(wallet.MinSendAmount, unit))).
				Validate(func(s string) error {
					btc, err := wallet.ParseAmount(s, unit)
					if err != nil {
						return err
					}
					if btc < wallet.MinSendAmount {
						return fmt.Errorf("below minimum")
					}
					return nil
				}).
				Value(&data.Amount),
			huh.NewInput().
				Title("Comment").
				Value(&data.Comment),
		).Title("Send Funds (Esc to cancel)"),
	).WithTheme(huh.ThemeCatppuccin()).WithWidth(60).WithShowHelp(true)
}

// submitForm turns the completed form into a wallet request
func (m *Model) submitForm() tea.Cmd {
	if m.wallet == nil {
		m.setMessage("No node API configured", true)
		return nil
	}

	switch m.formKind {
	case formReceive:
		req, err := buildReceiveRequest(*m.receiveData, m.unit)
		if err != nil {
			m.setMessage(err.Error(), true)
			return nil
		}
		m.pending = true
		m.setMessage("Requesting address...", false)
		return receiveCmd(m.wallet, req)
	case formSend:
		req, err := buildSendRequest(*m.sendData, m.unit)
		if err != nil {
			m.setMessage(err.Error(), true)
			return nil
		}
		m.pending = true
		m.setMessage("Sending payment...", false)
		return sendCmd(m.wallet, req)
	}
	return nil
}

func buildReceiveRequest(data ReceiveFormData, unit wallet.Unit) (wallet.ReceiveRequest, error) {
	t, err := wallet.ParseInvoiceType(data.Type)
	if err != nil {
		return wallet.ReceiveRequest{}, err
	}
	amount, err := wallet.ParseAmount(data.Amount, unit)
	if err != nil {
		return wallet.ReceiveRequest{}, err
	}
	return wallet.NewReceiveRequest(t, amount, data.Comment), nil
}

func buildSendRequest(data SendFormData, unit wallet.Unit) (wallet.SendRequest, error) {
	amount, err := wallet.ParseAmount(data.Amount, unit)
	if err != nil {
		return wallet.SendRequest{}, err
	}
	return wallet.SendRequest{Address: data.Address, Amount: amount, Comment: data.Comment}, nil
}

func receiveCmd(w wallet.Wallet, req wallet.ReceiveRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		addr, err := w.Receive(ctx, req)
		return receiveResultMsg{invoiceType: req.Type, address: addr, err: err}
	}
}

func sendCmd(w wallet.Wallet, req wallet.SendRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := w.SendPayment(ctx, req)
		return sendResultMsg{result: res, err: err}
	}
}
