package tui

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	nt "sieve/entity"
	"sieve/message"
	"sieve/style"
)

const valuePanelWidth = 44

type valueEntry struct {
	filterId string
	name     string
	text     string
}

// ValuePanel lists filters and edits their current values
type ValuePanel struct {
	entries  []valueEntry
	selected int

	editing bool
	buffer  string

	Focused bool
	Height  int
}

// NewValuePanel creates a panel over filters, showing current values
func NewValuePanel(flts []nt.Filter, current func(filterId string) any) ValuePanel {

	pnl := ValuePanel{Focused: true}
	for _, flt := range flts {
		name := flt.Name
		if name == "" {
			name = flt.Id
		}
		pnl.entries = append(pnl.entries, valueEntry{
			filterId: flt.Id,
			name:     name,
			text:     FormatInput(current(flt.Id)),
		})
	}
	return pnl
}

// Editing is true while text input is underway
func (pnl ValuePanel) Editing() bool {
	return pnl.editing
}

// Selected returns the id of the selected filter
func (pnl ValuePanel) Selected() string {
	if pnl.selected >= len(pnl.entries) {
		return ""
	}
	return pnl.entries[pnl.selected].filterId
}

func (pnl ValuePanel) Update(msg tea.Msg) (ValuePanel, tea.Cmd) {

	switch msg := msg.(type) {

	case message.ValueSetMsg:
		for i := range pnl.entries {
			if pnl.entries[i].filterId == msg.FilterId {
				pnl.entries[i].text = FormatInput(msg.Value)
			}
		}

	case message.SizeMsg:
		pnl.Height = msg.Height

	case tea.KeyPressMsg:
		if !pnl.Focused || len(pnl.entries) == 0 {
			return pnl, nil
		}
		if pnl.editing {
			return pnl.handleEdit(msg)
		}
		return pnl.handleKey(msg)
	}

	return pnl, nil
}

func (pnl ValuePanel) handleKey(msg tea.KeyPressMsg) (ValuePanel, tea.Cmd) {

	switch msg.String() {
	case "up", "k":
		if pnl.selected > 0 {
			pnl.selected--
		}

	case "down", "j":
		if pnl.selected < len(pnl.entries)-1 {
			pnl.selected++
		}

	case "enter", "e":
		pnl.editing = true
		pnl.buffer = pnl.entries[pnl.selected].text

	case "x":
		return pnl, setValueCmd(pnl.entries[pnl.selected].filterId, nil)
	}

	return pnl, nil
}

func (pnl ValuePanel) handleEdit(msg tea.KeyPressMsg) (ValuePanel, tea.Cmd) {

	switch msg.String() {
	case "enter":
		pnl.editing = false
		return pnl, setValueCmd(pnl.entries[pnl.selected].filterId, ParseInput(pnl.buffer))

	case "esc":
		pnl.editing = false
		pnl.buffer = ""

	case "backspace":
		runes := []rune(pnl.buffer)
		if len(runes) > 0 {
			pnl.buffer = string(runes[:len(runes)-1])
		}

	case "ctrl+u":
		pnl.buffer = ""

	default:
		pnl.buffer += msg.Text
	}

	return pnl, nil
}

func (pnl ValuePanel) Render() string {

	var content strings.Builder

	title := style.TitleStyle
	if pnl.Focused {
		title = style.FocusTitleStyle
	}
	content.WriteString(title.Render("Filters") + "\n\n")

	for i, entry := range pnl.entries {
		isSelected := i == pnl.selected

		text := entry.text
		if isSelected && pnl.editing {
			text = style.HlFieldStyle.Render(pnl.buffer + "▏")
		} else if text == "" {
			text = style.MutedStyle.Render("(any)")
		}

		prefix := "  "
		if isSelected {
			prefix = "> "
		}
		content.WriteString(fmt.Sprintf("%s%s\n    %s\n", prefix, style.Truncate(entry.name, valuePanelWidth-6), text))
	}

	helpText := "↑↓: select  enter: edit  x: clear  tab: panels"
	if pnl.editing {
		helpText = "enter: apply  esc: cancel  ctrl+u: erase"
	}
	content.WriteString("\n" + style.MutedStyle.Render(helpText))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(valuePanelWidth)
	if pnl.Height > 2 {
		box = box.Height(pnl.Height - 2)
	}

	return box.Render(content.String())
}

func setValueCmd(filterId string, value any) tea.Cmd {
	return func() tea.Msg {
		return message.SetValueMsg{FilterId: filterId, Value: value}
	}
}
