package ui

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/stixkit/internal/stats"
	"github.com/Ashfaaq98/stixkit/internal/validate"
)

func sampleStats() *stats.Report {
	return &stats.Report{
		Dir:           "/data",
		Files:         2,
		Totals:        []stats.TypeCount{{Type: "indicator", Count: 5}, {Type: "malware", Count: 1}},
		OfficialUsed:  2,
		OfficialTotal: 38,
		Unused:        []string{"tool"},
		PerFile: []stats.FileStats{
			{Name: "a.json", Counts: []stats.TypeCount{{Type: "indicator", Count: 4}, {Type: "malware", Count: 1}}},
			{Name: "b.json", Counts: []stats.TypeCount{{Type: "indicator", Count: 1}}},
		},
		Failed: []stats.FileFailure{{Name: "c.json", Error: "unexpected end of JSON input"}},
	}
}

func sampleValidation() *validate.Report {
	return &validate.Report{
		Root:             "/data",
		Total:            3,
		Valid:            1,
		Invalid:          1,
		ProcessingErrors: 1,
		Files: []validate.FileResult{
			{Path: "/data/a.json", Name: "a.json", Status: validate.StatusValid},
			{Path: "/data/b.json", Name: "b.json", Status: validate.StatusInvalid, Errors: []string{"[X] /objects/0: missing properties: \"created\""}},
			{Path: "/data/c.json", Name: "c.json", Status: validate.StatusError, Errors: []string{"Processing error: EOF"}},
		},
	}
}

func TestStatsModel(t *testing.T) {
	m := StatsModel(sampleStats())

	assert.Equal(t, []string{"File", "Objects", "Types"}, m.Headers)
	require.Len(t, m.Rows, 3)
	assert.Equal(t, []string{"a.json", "5", "2"}, m.Rows[0].Cells)
	assert.Contains(t, m.Rows[0].Detail, "indicator")
	assert.Equal(t, LevelError, m.Rows[2].Level)
	assert.Contains(t, m.Rows[2].Detail, "unexpected end of JSON input")
	assert.Contains(t, m.Summary, "Official types used: 2 / 38")
	assert.Contains(t, m.Summary, "Unused (1): tool")
}

func TestValidationModel(t *testing.T) {
	m := ValidationModel(sampleValidation())

	require.Len(t, m.Rows, 3)
	assert.Equal(t, LevelOK, m.Rows[0].Level)
	assert.Equal(t, LevelWarn, m.Rows[1].Level)
	assert.Equal(t, LevelError, m.Rows[2].Level)
	assert.Equal(t, []string{"b.json", "invalid", "1"}, m.Rows[1].Cells)
	assert.Contains(t, m.Rows[1].Detail, "[X] /objects/0")
	assert.Contains(t, m.Rows[0].Detail, "No errors.")
	assert.Contains(t, m.Summary, "Processing errors: 1")
}

func TestViewerTable(t *testing.T) {
	v := NewViewer(ValidationModel(sampleValidation()), "light", nil)

	assert.Equal(t, 4, v.table.GetRowCount())
	assert.Equal(t, "b.json", v.table.GetCell(2, 0).Text)
	assert.Equal(t, v.theme.Warning, v.table.GetCell(2, 0).Color)

	v.showDetail(1)
	assert.Contains(t, v.detail.GetText(false), "[X] /objects/0")

	v.showDetail(10)
	assert.Equal(t, "Nothing selected.", v.detail.GetText(false))
}

func TestViewerEmptyModel(t *testing.T) {
	v := NewViewer(Model{Title: " Empty ", Headers: []string{"File"}}, "", nil)
	assert.Equal(t, "No files", v.table.GetCell(1, 0).Text)
	assert.Equal(t, "dark", v.theme.Name)
}

func TestViewerKeys(t *testing.T) {
	v := NewViewer(StatsModel(sampleStats()), "dark", nil)

	ev := v.handleKey(tcell.NewEventKey(tcell.KeyRune, 't', tcell.ModNone))
	assert.Nil(t, ev)
	assert.Equal(t, "light", v.theme.Name)

	v.handleKey(tcell.NewEventKey(tcell.KeyRune, 't', tcell.ModNone))
	v.handleKey(tcell.NewEventKey(tcell.KeyRune, 't', tcell.ModNone))
	assert.Equal(t, "dark", v.theme.Name)

	ev = v.handleKey(tcell.NewEventKey(tcell.KeyRune, 'j', tcell.ModNone))
	assert.NotNil(t, ev, "movement keys pass through to the table")

	assert.Nil(t, v.handleKey(tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone)))
	assert.Equal(t, v.detail, v.app.GetFocus())
	assert.Nil(t, v.handleKey(tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone)))
	assert.Equal(t, v.table, v.app.GetFocus())

	assert.Nil(t, v.handleKey(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)))
}

func TestThemeByName(t *testing.T) {
	assert.Equal(t, "high-contrast", ThemeByName("high-contrast").Name)
	assert.Equal(t, "dark", ThemeByName("nope").Name)
	assert.Equal(t, "dark", nextTheme("high-contrast").Name)
}
