// Package ui is a terminal viewer for statistics and validation reports.
package ui

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

/*
   Layout

   +----------------------+-------------------------+
   | summary              |                         |
   +----------------------+  detail of selected row |
   | table of rows        |                         |
   +----------------------+-------------------------+
   | status / key help                              |
   +------------------------------------------------+

   Keys: j/k or arrows move, g/G top/bottom, Tab switches pane,
   t cycles theme, q/Esc/Ctrl-C quit.
*/

// Viewer displays a Model in a tview application.
type Viewer struct {
	app    *tview.Application
	logger *zap.Logger
	model  Model
	theme  Theme

	summary *tview.TextView
	table   *tview.Table
	detail  *tview.TextView
	status  *tview.TextView
	root    *tview.Flex
}

// NewViewer builds the widgets for model. theme names one of dark, light or
// high-contrast.
func NewViewer(model Model, theme string, logger *zap.Logger) *Viewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Viewer{
		app:    tview.NewApplication(),
		logger: logger.With(zap.String("component", "ui")),
		model:  model,
		theme:  ThemeByName(theme),
	}
	v.build()
	v.applyTheme()
	v.fillTable()
	return v
}

func (v *Viewer) build() {
	v.summary = tview.NewTextView()
	v.summary.SetBorder(true)
	v.summary.SetTitle(v.model.Title)
	v.summary.SetTitleAlign(tview.AlignLeft)
	v.summary.SetText(v.model.Summary)

	v.table = tview.NewTable()
	v.table.SetBorder(true)
	v.table.SetTitle(fmt.Sprintf(" Files (%d) ", len(v.model.Rows)))
	v.table.SetTitleAlign(tview.AlignLeft)
	v.table.SetSelectable(true, false)
	v.table.SetFixed(1, 0)
	v.table.SetSelectionChangedFunc(func(row, _ int) {
		v.showDetail(row - 1)
	})

	v.detail = tview.NewTextView()
	v.detail.SetBorder(true)
	v.detail.SetTitle(" Details ")
	v.detail.SetTitleAlign(tview.AlignLeft)
	v.detail.SetScrollable(true)

	v.status = tview.NewTextView()
	v.status.SetDynamicColors(true)

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.summary, 0, 1, false).
		AddItem(v.table, 0, 2, true)
	body := tview.NewFlex().
		AddItem(left, 0, 1, true).
		AddItem(v.detail, 0, 1, false)
	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(v.status, 1, 0, false)

	v.app.SetRoot(v.root, true)
	v.app.SetFocus(v.table)
	v.app.SetInputCapture(v.handleKey)
}

func (v *Viewer) fillTable() {
	v.table.Clear()
	for col, h := range v.model.Headers {
		v.table.SetCell(0, col, tview.NewTableCell(tview.Escape(h)).
			SetTextColor(v.theme.TableHeader).
			SetBackgroundColor(v.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	if len(v.model.Rows) == 0 {
		v.table.SetCell(1, 0, tview.NewTableCell("No files").
			SetTextColor(v.theme.TableRowMuted).
			SetSelectable(false))
		v.showDetail(-1)
		return
	}
	for i, row := range v.model.Rows {
		color := v.rowColor(row.Level)
		for col, text := range row.Cells {
			cell := tview.NewTableCell(tview.Escape(text)).SetTextColor(color)
			if col == 0 {
				cell.SetExpansion(1)
			}
			v.table.SetCell(i+1, col, cell)
		}
	}
	v.table.Select(1, 0)
	v.showDetail(0)
}

func (v *Viewer) rowColor(l Level) tcell.Color {
	switch l {
	case LevelOK:
		return v.theme.Success
	case LevelWarn:
		return v.theme.Warning
	case LevelError:
		return v.theme.Error
	default:
		return v.theme.TableRow
	}
}

// showDetail displays the detail text of row i, or a hint when out of range.
func (v *Viewer) showDetail(i int) {
	if i < 0 || i >= len(v.model.Rows) {
		v.detail.SetText("Nothing selected.")
		return
	}
	v.detail.SetText(v.model.Rows[i].Detail)
	v.detail.ScrollToBeginning()
}

func (v *Viewer) applyTheme() {
	for _, box := range []*tview.Box{v.summary.Box, v.table.Box, v.detail.Box, v.status.Box} {
		box.SetBackgroundColor(v.theme.Bg)
		box.SetBorderColor(v.theme.Border)
		box.SetTitleColor(v.theme.Header)
	}
	v.table.SetBorderColor(v.theme.FocusBorder)
	v.table.SetSelectedStyle(tcell.StyleDefault.Background(v.theme.SelectionBg).Foreground(v.theme.SelectionFg))
	v.summary.SetTextColor(v.theme.TextPrimary)
	v.detail.SetTextColor(v.theme.TextPrimary)
	v.setStatus("")
}

func (v *Viewer) setStatus(msg string) {
	help := fmt.Sprintf("[%s]j/k move  g/G top/bottom  Tab pane  t theme (%s)  q quit[-]", v.theme.TagMuted, v.theme.Name)
	if msg != "" {
		help = fmt.Sprintf("[%s]%s[-]  %s", v.theme.TagAccent, tview.Escape(msg), help)
	}
	v.status.SetText(help)
}

func (v *Viewer) cycleFocus() {
	if v.app.GetFocus() == v.table {
		v.app.SetFocus(v.detail)
		v.table.SetBorderColor(v.theme.Border)
		v.detail.SetBorderColor(v.theme.FocusBorder)
		return
	}
	v.app.SetFocus(v.table)
	v.detail.SetBorderColor(v.theme.Border)
	v.table.SetBorderColor(v.theme.FocusBorder)
}

func (v *Viewer) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlC, tcell.KeyEsc:
		v.app.Stop()
		return nil
	case tcell.KeyTab:
		v.cycleFocus()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			v.app.Stop()
			return nil
		case 't', 'T':
			v.theme = nextTheme(v.theme.Name)
			v.applyTheme()
			v.fillTable()
			v.setStatus("theme: " + v.theme.Name)
			return nil
		}
	}
	return event
}

// Run blocks until the user quits or ctx is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			v.app.Stop()
		case <-done:
		}
	}()

	v.logger.Debug("starting viewer", zap.String("title", v.model.Title), zap.Int("rows", len(v.model.Rows)))
	return v.app.Run()
}

// Stop closes the viewer.
func (v *Viewer) Stop() {
	v.app.Stop()
}
