package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/runnel/cli/reader"
	"github.com/pithecene-io/runnel/types"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// chromeHeight is the rows taken by title, banner and help.
	chromeHeight = 5
)

// TranscriptModel is a Bubble Tea model for a scrollable transcript.
//
// System chunks are pinned in a banner above the viewport instead of
// scrolling with the body. Collapsed tool results are folded into the line
// of the tool call they answer.
type TranscriptModel struct {
	data     *reader.TranscriptResponse
	viewport viewport.Model
	// session is the index into data.Sessions of the filter; -1 shows all.
	session  int
	quitting bool
}

// NewTranscriptModel creates a transcript model.
func NewTranscriptModel(data *reader.TranscriptResponse) TranscriptModel {
	m := TranscriptModel{
		data:     data,
		viewport: viewport.New(defaultWidth, defaultHeight-chromeHeight),
		session:  -1,
	}
	m.viewport.SetContent(m.body())
	return m
}

// Init implements tea.Model.
func (m TranscriptModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m TranscriptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 1)
		m.viewport.SetContent(m.body())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.NextSession):
			m.cycleSession()
			m.viewport.SetContent(m.body())
			m.viewport.GotoTop()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m TranscriptModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	if banner := m.banner(); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n")
	}
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("↑/↓ scroll • tab session • q quit"))
	return b.String()
}

func (m *TranscriptModel) cycleSession() {
	n := len(m.data.Sessions)
	if n == 0 {
		return
	}
	m.session++
	if m.session >= n {
		m.session = -1
	}
}

func (m TranscriptModel) activeSession() string {
	if m.session < 0 || m.session >= len(m.data.Sessions) {
		return ""
	}
	return m.data.Sessions[m.session]
}

func (m TranscriptModel) header() string {
	state := "in progress"
	if m.data.Final {
		state = "final"
	}
	filter := "all sessions"
	if s := m.activeSession(); s != "" {
		filter = "session " + s
	}
	title := TitleStyle.MarginBottom(0).Render("Transcript " + m.data.RelayID)
	return fmt.Sprintf("%s  %s  %s",
		title,
		FinalStyle(m.data.Final).Render(state),
		MutedStyle.Render(fmt.Sprintf("update %d • %s", m.data.UpdateSeq, filter)))
}

// banner renders the current system chunk of each visible session.
func (m TranscriptModel) banner() string {
	active := m.activeSession()
	var parts []string
	for _, c := range m.data.Chunks {
		sb, ok := c.Block.(types.SystemBlock)
		if !ok || (active != "" && c.Session() != active) {
			continue
		}
		text := reader.Truncate(strings.Join(strings.Fields(sb.Text), " "), max(m.viewport.Width-len(c.Session())-6, 16))
		parts = append(parts, BannerStyle.Render(c.Session()+": "+text))
	}
	return strings.Join(parts, "\n")
}

func (m TranscriptModel) body() string {
	return RenderTranscriptBody(m.data.Chunks, m.activeSession(), m.viewport.Width)
}

// RenderTranscriptBody renders the scrollable part of a transcript. System
// chunks are excluded; collapsed tool results are folded into their call.
// An empty session renders all sessions.
func RenderTranscriptBody(chunks []types.Chunk, session string, width int) string {
	results := make(map[string]types.ToolResultBlock)
	for _, c := range chunks {
		if rb, ok := c.Block.(types.ToolResultBlock); ok && c.Collapsed {
			results[c.Session()+"\x00"+rb.ToolUseID] = rb
		}
	}

	if width <= 0 {
		width = defaultWidth
	}
	wrap := lipgloss.NewStyle().Width(width)

	var lines []string
	for _, c := range chunks {
		if session != "" && c.Session() != session {
			continue
		}
		if c.Collapsed {
			continue
		}
		if _, ok := c.Block.(types.SystemBlock); ok {
			continue
		}

		prefix := MutedStyle.Render(seqLabel(c)) + " " + SessionStyle.Render(c.Session())
		switch b := c.Block.(type) {
		case types.TextBlock:
			lines = append(lines, prefix, wrap.Render(b.Text), "")
		case types.ToolUseBlock:
			line := prefix + " " + ToolStyle.Render("⚙ "+reader.Summarize(c))
			if rb, ok := results[c.Session()+"\x00"+b.ID]; ok {
				line += " " + foldedResult(rb, width)
			}
			lines = append(lines, line)
		case types.ToolResultBlock:
			lines = append(lines, prefix+" "+ResultStyle(b.IsError).Render("↳ "+reader.Summarize(c)))
		default:
			lines = append(lines, prefix+" "+MutedStyle.Render(reader.Summarize(c)))
		}
	}

	if len(lines) == 0 {
		return MutedStyle.Render("(empty transcript)")
	}
	return strings.Join(lines, "\n")
}

func foldedResult(rb types.ToolResultBlock, width int) string {
	marker := "✓"
	if rb.IsError {
		marker = "✗"
	}
	detail := ""
	if s, ok := rb.Content.(string); ok {
		detail = " " + reader.Truncate(strings.Join(strings.Fields(s), " "), max(width/3, 16))
	}
	return ResultStyle(rb.IsError).Render(marker) + MutedStyle.Render(detail)
}

func seqLabel(c types.Chunk) string {
	if c.Sequence == nil {
		return "#-"
	}
	return fmt.Sprintf("#%d", *c.Sequence)
}

// keyMap defines key bindings.
type keyMap struct {
	Quit        key.Binding
	NextSession key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	NextSession: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next session"),
	),
}

// RunTranscriptTUI runs the transcript TUI.
func RunTranscriptTUI(data *reader.TranscriptResponse) error {
	p := tea.NewProgram(NewTranscriptModel(data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
