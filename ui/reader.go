// Package ui renders the reader view: the text being spoken with the
// current word highlighted, following playback in real time.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"readanything/tts"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Bold(true).
			Padding(0, 1)

	highlightStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("226")).
			Foreground(lipgloss.Color("0")).
			Bold(true)

	spokenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

// Controller is the slice of the playback session the reader drives.
type Controller interface {
	Play(tts.Request) error
	Stop() error
	State() tts.SessionState
}

// Messages pushed into the program from session callbacks.
type (
	// WordMsg carries the index of the word now being spoken.
	WordMsg int
	// StateMsg carries a session state change.
	StateMsg tts.SessionState
	// ErrMsg carries a playback error.
	ErrMsg struct{ Err error }
)

// Model is the bubbletea model for the reader view.
type Model struct {
	ctrl    Controller
	text    string
	words   []string
	voiceID string
	wpm     int

	current int
	state   tts.SessionState
	err     error
	width   int
	height  int
	spin    spinner.Model
}

func NewReader(ctrl Controller, text, voiceID string, wpm int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusStyle
	return Model{
		ctrl:    ctrl,
		text:    text,
		words:   tts.Tokenize(text),
		voiceID: voiceID,
		wpm:     wpm,
		current: -1,
		width:   80,
		spin:    sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.playCmd(), m.spin.Tick)
}

func (m Model) playCmd() tea.Cmd {
	req := tts.Request{Text: m.text, VoiceID: m.voiceID, WPM: m.wpm}
	ctrl := m.ctrl
	return func() tea.Msg {
		if err := ctrl.Play(req); err != nil {
			return ErrMsg{Err: err}
		}
		return nil
	}
}

func (m Model) stopCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if err := ctrl.Stop(); err != nil {
			return ErrMsg{Err: err}
		}
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Sequence(m.stopCmd(), tea.Quit)
		case " ":
			if m.state == tts.StateIdle {
				m.err = nil
				m.current = -1
				return m, m.playCmd()
			}
			return m, m.stopCmd()
		case "+", "=":
			m.wpm = clampWPM(m.wpm + 25)
		case "-", "_":
			m.wpm = clampWPM(m.wpm - 25)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case WordMsg:
		m.current = int(msg)

	case StateMsg:
		m.state = tts.SessionState(msg)
		if m.state == tts.StateIdle {
			m.current = -1
		}

	case ErrMsg:
		m.err = msg.Err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func clampWPM(wpm int) int {
	if wpm < tts.MinWPM {
		return tts.MinWPM
	}
	if wpm > tts.MaxWPM {
		return tts.MaxWPM
	}
	return wpm
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ReadAnything"))
	b.WriteString("\n\n")
	b.WriteString(m.renderWords())
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render(m.statusLine()))
	return b.String()
}

// renderWords rebuilds the text with the spoken prefix dimmed and the
// current word highlighted, wrapped to the window.
func (m Model) renderWords() string {
	if len(m.words) == 0 {
		return ""
	}
	parts := make([]string, len(m.words))
	for i, w := range m.words {
		switch {
		case i == m.current:
			parts[i] = highlightStyle.Render(w)
		case i < m.current:
			parts[i] = spokenStyle.Render(w)
		default:
			parts[i] = w
		}
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	return wordwrap.String(strings.Join(parts, " "), width)
}

func (m Model) statusLine() string {
	progress := ""
	if m.current >= 0 {
		progress = fmt.Sprintf("  word %d/%d", m.current+1, len(m.words))
	}
	label := stateLabel(m.state)
	if m.state == tts.StatePreparing {
		label = m.spin.View() + "preparing"
	}
	return fmt.Sprintf("%s%s  %d wpm  ·  space play/stop  +/- speed  q quit",
		label, progress, m.wpm)
}

func stateLabel(s tts.SessionState) string {
	switch s {
	case tts.StatePreparing:
		return "◌ preparing"
	case tts.StatePlaying:
		return "▶ playing"
	case tts.StateStopping:
		return "■ stopping"
	default:
		return "· idle"
	}
}
