package tui

import (
	tea "charm.land/bubbletea/v2"

	"sieve/message"
)

// setValue applies a value to the engine, which notifies affected targets
func (m Model) setValue(filterId string, value any) tea.Cmd {

	return func() tea.Msg {

		err := m.engine.SetValue(m.ctx, filterId, value)
		if err != nil {
			return message.ErrorMsg{Err: err}
		}

		return message.ValueSetMsg{FilterId: filterId, Value: value}
	}
}

// relay forwards engine notifications into the program, dropping them once
// the model is closed
func (m Model) relay(targetRef string) {

	select {
	case m.events <- targetRef:
	case <-m.done:
	}
}
