package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/runnel/cli/reader"
)

// StatsModel is a Bubble Tea model for the relay stats view.
type StatsModel struct {
	data     *reader.StatsResponse
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(data *reader.StatsResponse) StatsModel {
	return StatsModel{data: data}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return m.render() + "\n" + help
}

func (m StatsModel) render() string {
	d := m.data
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Relay " + d.RelayID))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Source:"), ValueStyle.Render(d.Source)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Policy:"), ValueStyle.Render(d.Metrics.Policy)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Storage:"), ValueStyle.Render(d.Metrics.StorageBackend)))
	b.WriteString(fmt.Sprintf("%s %s\n\n", LabelStyle.Render("Completed At:"), ValueStyle.Render(d.CompletedAt)))

	b.WriteString(TitleStyle.Render("Consolidation"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Original", int64(d.Engine.Original), highlightColor),
		renderStatBox("Deduplicated", int64(d.Engine.Deduplicated), warningColor),
		renderStatBox("Text Merged", int64(d.Engine.TextMerged), successColor),
		renderStatBox("Tools Collapsed", int64(d.Engine.ToolsCollapsed), primaryColor),
		renderStatBox("Superseded", int64(d.Engine.SystemSuperseded), mutedColor),
	))
	b.WriteString("\n\n")

	b.WriteString(TitleStyle.Render("Relay"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Chunks In", d.Metrics.ChunksReceived, highlightColor),
		renderStatBox("Decode Errors", d.Metrics.DecodeErrors, errorColor),
		renderStatBox("Dropped", d.Metrics.ChunksDropped, warningColor),
		renderStatBox("Published", d.Metrics.PublishSuccess, successColor),
		renderStatBox("Publish Fail", d.Metrics.PublishFailure, errorColor),
	))

	return b.String()
}

func renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(data *reader.StatsResponse) error {
	p := tea.NewProgram(NewStatsModel(data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats without the full TUI (for fallback).
func RenderStatsStatic(data *reader.StatsResponse) string {
	model := NewStatsModel(data)
	model.width = defaultWidth
	model.height = defaultHeight
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
