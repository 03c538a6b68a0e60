package tui

import (
	"fmt"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	nt "sieve/entity"
	"sieve/message"
	"sieve/style"
)

const (
	titleHeight  = 1
	headerHeight = 2
	cellWidth    = 14
)

// TargetPanel shows the rows a target's predicate accepts
type TargetPanel struct {
	Target   string
	Selected int // Position of selected row among matched
	Offset   int // Offset of page shown

	Width   int
	Height  int
	Focused bool

	columns []nt.Column
	matched []nt.Row
	total   int
	params  nt.Params
	table   *table.Table
}

func NewTargetPanel(target string, columns []nt.Column) TargetPanel {

	lgt := table.New()
	style.StyleTable(lgt)

	var shown []nt.Column
	var headers []string
	for _, col := range columns {
		if col.Hidden {
			continue
		}
		if col.Width < 1 {
			col.Width = cellWidth
		}
		shown = append(shown, col)
		headers = append(headers, fmt.Sprintf("%-*s", col.Width+1, style.Truncate(col.Field, col.Width)))
	}
	lgt.Headers(headers...)

	return TargetPanel{
		Target:  target,
		columns: shown,
		params:  nt.Params{},
		table:   lgt,
	}
}

// Apply filters rows through pred, keeping the selection in range
func (pnl TargetPanel) Apply(pred nt.Predicate, rows []nt.Row) TargetPanel {

	pnl.matched = nil
	for _, row := range rows {
		if pred.Accept(row) {
			pnl.matched = append(pnl.matched, row)
		}
	}
	pnl.total = len(rows)
	pnl.params = pred.Server

	if pnl.Selected >= len(pnl.matched) {
		pnl.Selected = max(len(pnl.matched)-1, 0)
	}
	pnl.Offset = min(pnl.Offset, pnl.Selected)
	return pnl
}

// Matched returns the accepted rows
func (pnl TargetPanel) Matched() []nt.Row {
	return pnl.matched
}

// Params returns the server parameters for the target
func (pnl TargetPanel) Params() nt.Params {
	return pnl.params
}

func (pnl TargetPanel) pageSize() int {
	return max(pnl.Height-titleHeight-headerHeight, 1)
}

func (pnl TargetPanel) Update(msg tea.Msg) (TargetPanel, tea.Cmd) {

	switch msg := msg.(type) {

	case message.SizeMsg:
		pnl.Width = msg.Width
		pnl.Height = msg.Height

	case tea.KeyPressMsg:
		if !pnl.Focused || len(pnl.matched) == 0 {
			return pnl, nil
		}

		pageSize := pnl.pageSize()
		last := len(pnl.matched) - 1

		switch msg.String() {
		case "up", "k":
			pnl.Selected = max(pnl.Selected-1, 0)
		case "down", "j":
			pnl.Selected = min(pnl.Selected+1, last)
		case "pgup", "ctrl+u":
			pnl.Selected = max(pnl.Selected-pageSize, 0)
		case "pgdown", "ctrl+d":
			pnl.Selected = min(pnl.Selected+pageSize, last)
		case "g":
			pnl.Selected = 0
		case "G":
			pnl.Selected = last
		}

		// keep selection on the page
		if pnl.Selected < pnl.Offset {
			pnl.Offset = pnl.Selected
		} else if pnl.Selected >= pnl.Offset+pageSize {
			pnl.Offset = pnl.Selected - pageSize + 1
		}
	}

	return pnl, nil
}

func (pnl TargetPanel) Render() string {

	title := style.TitleStyle
	if pnl.Focused {
		title = style.FocusTitleStyle
	}
	head := title.Render(fmt.Sprintf("%s  %d/%d", pnl.Target, len(pnl.matched), pnl.total))

	selected := -1
	if pnl.Focused {
		selected = pnl.Selected - pnl.Offset
	}
	pnl.table.StyleFunc(style.RowStyler(selected))

	end := min(pnl.Offset+pnl.pageSize(), len(pnl.matched))
	pnl.table.ClearRows()
	for _, row := range pnl.matched[pnl.Offset:end] {
		var cells []string
		for _, col := range pnl.columns {
			val, _ := row.Get(col.Field)
			cells = append(cells, style.Truncate(nt.ValueOf(val).String(), col.Width))
		}
		pnl.table.Row(cells...)
	}

	return lipgloss.JoinVertical(lipgloss.Left, head, pnl.table.Render())
}
