// Package ui renders a live table of last-seen topic values for the
// listen --tui mode.
package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mithrel/serialbus/internal/bus"
	"github.com/mithrel/serialbus/pkg/api"
)

// Watch attaches to b and runs the live topic table until the user quits
// or ctx is canceled. The bus must already be started.
func Watch(ctx context.Context, b *bus.Bus) error {
	cols := []table.Column{
		{Title: "Topic", Width: 20},
		{Title: "Frames", Width: 8},
		{Title: "Last value", Width: 44},
		{Title: "Seen", Width: 9},
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(14),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m := model{table: t, topics: make(map[string]topicState)}
	p := tea.NewProgram(m, tea.WithContext(ctx))

	b.AddObserver(func(f api.Frame) { p.Send(frameMsg{frame: f, at: time.Now()}) })

	_, err := p.Run()
	if err == tea.ErrProgramKilled && ctx.Err() != nil {
		return nil
	}
	return err
}

type frameMsg struct {
	frame api.Frame
	at    time.Time
}

type topicState struct {
	frames int
	last   api.Frame
	at     time.Time
}

type model struct {
	table  table.Model
	topics map[string]topicState
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case frameMsg:
		st := m.topics[msg.frame.Topic]
		st.frames++
		st.last = msg.frame
		st.at = msg.at
		m.topics[msg.frame.Topic] = st
		m.table.SetRows(m.rows())
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if len(m.topics) == 0 {
		return "waiting for frames…\n\nq to exit\n"
	}
	return m.table.View() + "\n↑/↓ to navigate • q to exit\n"
}

func (m model) rows() []table.Row {
	names := make([]string, 0, len(m.topics))
	for t := range m.topics {
		names = append(names, t)
	}
	sort.Strings(names)

	rows := make([]table.Row, 0, len(names))
	for _, name := range names {
		st := m.topics[name]
		rows = append(rows, table.Row{
			truncate(name, 20),
			fmt.Sprintf("%d", st.frames),
			truncate(summarize(st.last), 44),
			st.at.Format("15:04:05"),
		})
	}
	return rows
}

func summarize(f api.Frame) string {
	if f.Dim() > 0 && f.Formats[0].Text() {
		return fmt.Sprintf("%q", f.Text())
	}
	parts := make([]string, 0, f.Dim())
	for i, row := range f.Rows {
		elems := make([]string, len(row.Ints))
		for j, v := range row.Ints {
			elems[j] = fmt.Sprintf("%d", v)
		}
		parts = append(parts, f.Formats[i].String()+"["+strings.Join(elems, " ")+"]")
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
