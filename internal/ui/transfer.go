package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jhon1466/PeerDrop/internal/event"
	"github.com/jhon1466/PeerDrop/internal/utils"
)

// TransferMode represents send or receive
type TransferMode int

const (
	ModeSend TransferMode = iota
	ModeReceive
)

var (
	ErrCancelled    = errors.New("transfer cancelled")
	ErrEventsClosed = errors.New("session closed before the transfer finished")
)

type eventMsg event.Event

type eventsClosedMsg struct{}

func waitForEvent(ch <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}

// TransferModel is the Bubble Tea model for one file transfer. It is fed by
// a session's event stream and quits once the transfer completes or fails.
type TransferModel struct {
	mode   TransferMode
	name   string
	size   int64
	events <-chan event.Event

	status  string
	percent float64
	started time.Time
	elapsed time.Duration

	bar     progress.Model
	spinner spinner.Model
	width   int

	done      bool
	cancelled bool
	err       error
	received  *event.File
}

func NewTransferModel(mode TransferMode, name string, size int64, events <-chan event.Event) *TransferModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	status := "Waiting for file info..."
	if mode == ModeSend {
		status = "Waiting for receiver..."
	}

	return &TransferModel{
		mode:    mode,
		name:    name,
		size:    size,
		events:  events,
		status:  status,
		spinner: s,
		bar: progress.New(
			progress.WithGradient(ProgressStart, ProgressEnd),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		width: 80,
	}
}

func (m *TransferModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m *TransferModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancelled = true
			m.err = ErrCancelled
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(40, msg.Width-30))
		return m, nil

	case spinner.TickMsg:
		if m.finished() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventsClosedMsg:
		if !m.finished() {
			m.err = ErrEventsClosed
		}
		return m, tea.Quit

	case eventMsg:
		if m.apply(event.Event(msg)) {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)
	}

	return m, nil
}

// apply folds one session event into the model and reports whether the
// program should stop.
func (m *TransferModel) apply(e event.Event) bool {
	switch e.Type {
	case event.Status:
		m.status = e.Text
	case event.Connected:
		m.status = "Connected to peer"
	case event.Progress:
		if e.Percent > 0 && m.started.IsZero() {
			m.started = time.Now()
		}
		m.percent = e.Percent
		if !m.started.IsZero() {
			m.elapsed = time.Since(m.started)
		}
	case event.FileReceived:
		if m.mode == ModeReceive {
			m.received = e.File
			m.size = int64(len(e.File.Data))
			m.complete("Received " + e.File.Name)
			return true
		}
	case event.TransferComplete:
		if m.mode == ModeSend {
			m.complete(e.Text)
			return true
		}
	case event.Error:
		m.err = e.Err
		if m.err == nil {
			m.err = errors.New(e.Text)
		}
		return true
	case event.Disconnected:
		if !m.done {
			m.err = errors.New(e.Text)
			return true
		}
	}
	return false
}

func (m *TransferModel) complete(text string) {
	m.done = true
	m.percent = 100
	if !m.started.IsZero() {
		m.elapsed = time.Since(m.started)
	}
	m.status = text
}

func (m *TransferModel) finished() bool {
	return m.done || m.err != nil
}

func (m *TransferModel) View() string {
	var b strings.Builder

	icon, verb := IconSend, "Sending"
	if m.mode == ModeReceive {
		icon, verb = IconReceive, "Receiving"
	}
	name := m.name
	if m.received != nil {
		name = m.received.Name
	}
	b.WriteString(fmt.Sprintf("%s %s %s", icon, verb, BoldStyle.Render(utils.TruncateString(name, 40))))
	if m.size > 0 {
		b.WriteString(MutedStyle.Render(fmt.Sprintf(" (%s)", utils.FormatSize(m.size))))
	}
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(ErrorStyle.Render(IconError + " " + m.err.Error()))
	case m.done:
		b.WriteString(SuccessStyle.Render(IconSuccess + " " + m.status))
	default:
		b.WriteString(m.spinner.View() + " " + m.status)
	}
	b.WriteString("\n")

	b.WriteString(m.bar.ViewAs(m.percent / 100))
	b.WriteString(fmt.Sprintf(" %5.1f%%", m.percent))
	if speed := m.Speed(); speed > 0 {
		b.WriteString(MutedStyle.Render("  " + utils.FormatSpeed(speed)))
	}
	b.WriteString("\n")

	if !m.finished() {
		b.WriteString(MutedStyle.Render("\nPress q to cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

// Speed is the average rate in bytes per second since the first chunk.
func (m *TransferModel) Speed() float64 {
	if m.elapsed <= 0 || m.size <= 0 {
		return 0
	}
	return float64(m.size) * m.percent / 100 / m.elapsed.Seconds()
}

func (m *TransferModel) Elapsed() time.Duration { return m.elapsed }

func (m *TransferModel) Err() error { return m.err }

func (m *TransferModel) Cancelled() bool { return m.cancelled }

// Received is the file delivered in receive mode, nil until then.
func (m *TransferModel) Received() *event.File { return m.received }

// RunTransfer drives the model until the transfer ends, the user cancels,
// or ctx is done.
func RunTransfer(ctx context.Context, m *TransferModel) (*TransferModel, error) {
	p := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return m, ctx.Err()
		}
		return m, fmt.Errorf("transfer ui: %w", err)
	}
	return final.(*TransferModel), nil
}
