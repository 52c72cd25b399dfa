// Package console is a local terminal transport: commands are typed at a
// prompt and notifications appear in the same scrollback.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/subwatch/pkg/textutil"
)

// DefaultUserID identifies the console user in the watchlist.
const DefaultUserID = "console"

// maxEntries bounds the scrollback.
const maxEntries = 200

// Handler answers a typed command.
type Handler interface {
	Handle(ctx context.Context, userID, text string) string
}

type entryKind int

const (
	entryInput entryKind = iota
	entryReply
	entryNotification
)

type entry struct {
	kind entryKind
	at   time.Time
	text string
}

type replyMsg struct{ text string }

type notificationMsg struct{ text string }

var (
	headerStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	inputStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	notificationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	footerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Model is the Bubble Tea model of the console.
type Model struct {
	ctx     context.Context
	handler Handler
	userID  string

	entries []entry
	input   []rune
	width   int
	height  int
	now     func() time.Time
}

// NewModel creates a console model that sends commands to handler as userID.
func NewModel(ctx context.Context, handler Handler, userID string) Model {
	return Model{
		ctx:     ctx,
		handler: handler,
		userID:  userID,
		now:     time.Now,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case replyMsg:
		m = m.appendEntry(entryReply, msg.text)

	case notificationMsg:
		m = m.appendEntry(entryNotification, msg.text)

	case tea.KeyMsg:
		return m.updateInput(msg)
	}

	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		text := strings.TrimSpace(string(m.input))
		m.input = nil
		if text == "" {
			return m, nil
		}
		if text == "/quit" {
			return m, tea.Quit
		}
		m = m.appendEntry(entryInput, text)
		return m, m.dispatch(text)

	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}

	case tea.KeySpace:
		m.input = append(m.input, ' ')

	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	}

	return m, nil
}

// dispatch runs the command off the UI goroutine; a watch command may wait
// on the network.
func (m Model) dispatch(text string) tea.Cmd {
	handler, ctx, userID := m.handler, m.ctx, m.userID
	return func() tea.Msg {
		return replyMsg{text: handler.Handle(ctx, userID, text)}
	}
}

func (m Model) appendEntry(kind entryKind, text string) Model {
	entries := append(m.entries, entry{kind: kind, at: m.now(), text: text})
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	m.entries = entries
	return m
}

// View implements tea.Model
func (m Model) View() string {
	var lines []string
	for _, e := range m.entries {
		lines = append(lines, renderEntry(e, m.width)...)
	}

	// header, blank, prompt, blank, footer
	if m.height > 0 {
		if visible := m.height - 5; visible > 0 && len(lines) > visible {
			lines = lines[len(lines)-visible:]
		}
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("subwatch console (%s)", m.userID)))
	b.WriteString("\n\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("> " + string(m.input))
	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("enter: send • /help: commands • esc or /quit: exit"))
	return b.String()
}

// renderEntry cuts lines to width so a wrapped line never pushes the
// prompt off screen.
func renderEntry(e entry, width int) []string {
	stamp := e.at.Format("15:04:05")
	fit := func(s string) string {
		if width <= 0 {
			return s
		}
		return textutil.Truncate(s, width)
	}

	switch e.kind {
	case entryInput:
		return []string{inputStyle.Render(fit(stamp + " > " + e.text))}
	case entryNotification:
		text := strings.Split(stamp+" "+e.text, "\n")
		out := make([]string, len(text))
		for i, line := range text {
			out[i] = notificationStyle.Render(fit(line))
		}
		return out
	default:
		text := strings.Split(e.text, "\n")
		for i, line := range text {
			text[i] = fit(line)
		}
		return text
	}
}

// Console runs the model as a program and delivers notifications into it.
type Console struct {
	program *tea.Program
}

// New creates a console for handler. Run must be called to show it.
func New(ctx context.Context, handler Handler, userID string) *Console {
	if userID == "" {
		userID = DefaultUserID
	}
	return &Console{
		program: tea.NewProgram(NewModel(ctx, handler, userID), tea.WithAltScreen(), tea.WithContext(ctx)),
	}
}

// Run blocks until the user quits or the context ends.
func (c *Console) Run() error {
	_, err := c.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// SendNotification shows text in the console. userID is ignored; a console
// has a single user.
func (c *Console) SendNotification(_ context.Context, _ string, text string) error {
	c.program.Send(notificationMsg{text: text})
	return nil
}
