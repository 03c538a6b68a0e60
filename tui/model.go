// Package tui is an interactive view of targets narrowing rows as filter
// values change.
package tui

import (
	"context"
	"fmt"
	"sync"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"sieve/engine"
	nt "sieve/entity"
	"sieve/message"
	"sieve/style"
)

const (
	footerHeight = 2
	eventBuffer  = 64
)

// Model is the bubbletea model for the filter demo.
type Model struct {
	ctx    context.Context
	engine *engine.Engine
	logger nt.Logger

	rows   []nt.Row
	events chan string
	done   chan struct{}
	closer *sync.Once
	unsubs []func()

	Values ValuePanel
	Panels []TargetPanel
	focus  int // 0 is the value panel, then panels in order

	errorString string

	Width  int
	Height int
}

// New creates a model showing rows through every target known to eng.
func New(ctx context.Context, eng *engine.Engine, flts []nt.Filter, rows []nt.Row, columns []nt.Column, lgr nt.Logger) Model {

	if lgr == nil {
		lgr = nt.Quiet{}
	}

	m := Model{
		ctx:    ctx,
		engine: eng,
		logger: lgr,
		rows:   rows,
		events: make(chan string, eventBuffer),
		done:   make(chan struct{}),
		closer: &sync.Once{},
		Values: NewValuePanel(flts, eng.Value),
	}

	for _, target := range eng.Targets() {
		pnl := NewTargetPanel(target, columns)
		m.Panels = append(m.Panels, pnl.Apply(eng.GetPredicateForTarget(target), rows))
		m.unsubs = append(m.unsubs, eng.Subscribe(target, engine.SubscriberFunc(m.relay)))
	}

	return m
}

// Close unsubscribes from the engine and releases pending notifications.
func (m Model) Close() {

	m.closer.Do(func() {
		for _, unsub := range m.unsubs {
			unsub()
		}
		close(m.done)
	})
}

func (m Model) Init() tea.Cmd {
	return message.ListenCmd(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {

	switch msg := msg.(type) {

	case message.InvalidatedMsg:
		for i := range m.Panels {
			if m.Panels[i].Target == msg.Target {
				m.Panels[i] = m.Panels[i].Apply(m.engine.GetPredicateForTarget(msg.Target), m.rows)
			}
		}
		return m, message.ListenCmd(m.events)

	case message.SetValueMsg:
		return m, m.setValue(msg.FilterId, msg.Value)

	case message.ValueSetMsg:
		m.logger.Info(m.ctx, "value applied", "filter_id", msg.FilterId, "value", FormatInput(msg.Value))
		m.Values, _ = m.Values.Update(msg)
		return m, nil

	case message.ErrorMsg:
		m.logger.Error(m.ctx, "error msg", msg.Err)
		m.errorString = msg.Err.Error()
		return m, nil

	case tea.KeyPressMsg:
		if m.errorString != "" {
			m.errorString = ""
		}

		if m.focus == 0 && m.Values.Editing() {
			var cmd tea.Cmd
			m.Values, cmd = m.Values.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit

		case "tab":
			return m.refocus((m.focus + 1) % (len(m.Panels) + 1)), nil

		case "shift+tab":
			return m.refocus((m.focus + len(m.Panels)) % (len(m.Panels) + 1)), nil
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m.resize(), nil
	}

	if m.focus == 0 {
		var cmd tea.Cmd
		m.Values, cmd = m.Values.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.Panels[m.focus-1], cmd = m.Panels[m.focus-1].Update(msg)
	return m, cmd
}

func (m Model) refocus(focus int) Model {

	m.focus = focus
	m.Values.Focused = focus == 0
	for i := range m.Panels {
		m.Panels[i].Focused = focus == i+1
	}
	return m
}

func (m Model) resize() Model {

	height := m.Height - footerHeight
	m.Values, _ = m.Values.Update(message.SizeMsg{Width: valuePanelWidth, Height: height})

	if len(m.Panels) == 0 {
		return m
	}

	width := m.Width - valuePanelWidth - 4
	each := height / len(m.Panels)
	for i := range m.Panels {
		m.Panels[i], _ = m.Panels[i].Update(message.SizeMsg{Width: width, Height: each})
	}
	return m
}

func (m Model) View() tea.View {

	if m.Width == 0 {
		return tea.NewView("Loading...")
	}

	var panels []string
	for _, pnl := range m.Panels {
		panels = append(panels, lipgloss.NewStyle().Height(pnl.Height).MaxHeight(pnl.Height).Render(pnl.Render()))
	}
	right := lipgloss.JoinVertical(lipgloss.Left, panels...)
	screen := lipgloss.JoinHorizontal(lipgloss.Top, m.Values.Render(), "  ", right)

	footer := m.footer()
	if m.errorString != "" {
		footer = style.ErrorStyle.Render(m.errorString)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Height(m.Height-footerHeight).MaxHeight(m.Height-footerHeight).Render(screen),
		"",
		footer,
	)

	view := tea.NewView(content)
	view.AltScreen = true
	return view
}

// footer shows the server parameters of the focused target
func (m Model) footer() string {

	if m.focus == 0 {
		filterId := m.Values.Selected()
		return RenderFooter(fmt.Sprintf("%d rows", len(m.rows)), filterId, m.Width)
	}

	pnl := m.Panels[m.focus-1]
	query := pnl.Params().Encode()
	if query == "" {
		query = "(no server params)"
	}
	return RenderFooter(fmt.Sprintf("%s %d/%d", pnl.Target, len(pnl.Matched()), len(m.rows)), "?"+query, m.Width)
}
