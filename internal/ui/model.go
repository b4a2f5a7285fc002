package ui

import (
	"fmt"
	"strings"

	"github.com/Ashfaaq98/stixkit/internal/stats"
	"github.com/Ashfaaq98/stixkit/internal/validate"
)

// Level colors a row.
type Level int

const (
	LevelNormal Level = iota
	LevelOK
	LevelWarn
	LevelError
)

// Row is one table line plus the text shown when it is selected.
type Row struct {
	Cells  []string
	Detail string
	Level  Level
}

// Model is everything the viewer displays.
type Model struct {
	Title   string
	Summary string
	Headers []string
	Rows    []Row
}

// StatsModel lists each file with its object count, followed by failures.
// Selecting a file shows its per-type breakdown.
func StatsModel(rep *stats.Report) Model {
	m := Model{
		Title:   " STIX Statistics ",
		Headers: []string{"File", "Objects", "Types"},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dir: %s\nFiles: %d   Official types used: %d / %d\n\n", rep.Dir, rep.Files, rep.OfficialUsed, rep.OfficialTotal)
	for _, tc := range rep.Totals {
		fmt.Fprintf(&b, "%-28s %d\n", tc.Type, tc.Count)
	}
	if len(rep.Unused) > 0 {
		fmt.Fprintf(&b, "\nUnused (%d): %s\n", len(rep.Unused), strings.Join(rep.Unused, ", "))
	}
	m.Summary = b.String()

	for _, fs := range rep.PerFile {
		total := 0
		var detail strings.Builder
		fmt.Fprintf(&detail, "File: %s\n\n", fs.Name)
		for _, tc := range fs.Counts {
			total += tc.Count
			fmt.Fprintf(&detail, "%-28s %d\n", tc.Type, tc.Count)
		}
		m.Rows = append(m.Rows, Row{
			Cells:  []string{fs.Name, fmt.Sprint(total), fmt.Sprint(len(fs.Counts))},
			Detail: detail.String(),
		})
	}
	for _, f := range rep.Failed {
		m.Rows = append(m.Rows, Row{
			Cells:  []string{f.Name, "-", "-"},
			Detail: fmt.Sprintf("File: %s\n\nFailed: %s\n", f.Name, f.Error),
			Level:  LevelError,
		})
	}
	return m
}

// ValidationModel lists every validated file with its status.
func ValidationModel(rep *validate.Report) Model {
	m := Model{
		Title:   " STIX Validation ",
		Headers: []string{"File", "Status", "Errors"},
		Summary: fmt.Sprintf("Root: %s\nTotal: %d   Valid: %d   Invalid: %d   Processing errors: %d\n",
			rep.Root, rep.Total, rep.Valid, rep.Invalid, rep.ProcessingErrors),
	}

	for _, f := range rep.Files {
		level := LevelOK
		switch f.Status {
		case validate.StatusInvalid:
			level = LevelWarn
		case validate.StatusError:
			level = LevelError
		}
		detail := fmt.Sprintf("File: %s\n\n", f.Path)
		if len(f.Errors) == 0 {
			detail += "No errors.\n"
		} else {
			detail += strings.Join(f.Errors, "\n") + "\n"
		}
		m.Rows = append(m.Rows, Row{
			Cells:  []string{f.Name, f.Status, fmt.Sprint(len(f.Errors))},
			Detail: detail,
			Level:  level,
		})
	}
	return m
}
