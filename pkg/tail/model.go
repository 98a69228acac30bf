// Package tail is a terminal view of the notifications arriving on a hub connection.
package tail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/astromechza/todo-sync/pkg/hub"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "212"}).
			Bold(true)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "243", Dark: "241"})

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "236", Dark: "252"}).
			Bold(true)

	topicStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "97", Dark: "141"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "196"}).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "243", Dark: "241"})
)

// maxLines bounds the feed so a long session does not grow without limit.
const maxLines = 1000

// FrameMsg carries one frame read from the hub.
type FrameMsg struct {
	Frame hub.Frame
	At    time.Time
}

// ClosedMsg is sent once the frame channel is closed.
type ClosedMsg struct{}

type Model struct {
	identity string
	frames   <-chan hub.Frame
	now      func() time.Time

	viewport viewport.Model
	ready    bool
	lines    []string
	events   int
	closed   bool
}

func New(identity string, frames <-chan hub.Frame) Model {
	return Model{
		identity: identity,
		frames:   frames,
		now:      time.Now,
		viewport: viewport.New(80, 20),
	}
}

func (m Model) Init() tea.Cmd {
	return waitForFrame(m.frames, m.now)
}

func waitForFrame(frames <-chan hub.Frame, now func() time.Time) tea.Cmd {
	if frames == nil {
		return nil
	}
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return ClosedMsg{}
		}
		return FrameMsg{Frame: f, At: now()}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-2, 1)
		m.ready = true
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			m.lines = nil
			m.refresh()
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case FrameMsg:
		if msg.Frame.Type == hub.FrameEvent {
			m.events++
		}
		m.append(formatFrame(msg.At, msg.Frame))
		return m, waitForFrame(m.frames, m.now)
	case ClosedMsg:
		m.closed = true
		m.append(errorStyle.Render("connection closed"))
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) append(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	status := fmt.Sprintf("%d events", m.events)
	if m.closed {
		status += ", disconnected"
	}
	header := headerStyle.Render("todosync "+m.identity) + " " + timeStyle.Render(status)
	return header + "\n" + m.viewport.View() + "\n" + helpStyle.Render("q quit  c clear  ↑/↓ scroll")
}

func formatFrame(at time.Time, f hub.Frame) string {
	ts := timeStyle.Render(at.Format("15:04:05"))
	switch f.Type {
	case hub.FrameEvent:
		args := make([]string, 0, len(f.Args))
		for _, a := range f.Args {
			args = append(args, fmt.Sprint(a))
		}
		return fmt.Sprintf("%s %s %s (%s)", ts, topicStyle.Render("["+f.Topic+"]"), eventStyle.Render(f.Event), strings.Join(args, ", "))
	case hub.FrameError:
		msg := f.Message
		if f.Topic != "" {
			msg = f.Topic + ": " + msg
		}
		return fmt.Sprintf("%s %s", ts, errorStyle.Render("error "+msg))
	default:
		return fmt.Sprintf("%s %s %s", ts, f.Type, topicStyle.Render(f.Topic))
	}
}
