package message

import tea "charm.land/bubbletea/v2"

// ErrorCmd returns a command reporting err
func ErrorCmd(err error) tea.Cmd {
	return func() tea.Msg {
		return ErrorMsg{Err: err}
	}
}

// ListenCmd waits for the next invalidated target on ch
func ListenCmd(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		target, ok := <-ch
		if !ok {
			return nil
		}
		return InvalidatedMsg{Target: target}
	}
}
