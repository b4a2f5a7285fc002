package ui

import "github.com/gdamore/tcell/v2"

// Theme defines the colors used by the report viewer, both as widget colors
// and as tview color tag strings.
type Theme struct {
	Name string

	Bg          tcell.Color
	Border      tcell.Color
	FocusBorder tcell.Color
	TextPrimary tcell.Color
	TextMuted   tcell.Color
	Header      tcell.Color

	TableHeader   tcell.Color
	TableHeaderBg tcell.Color
	TableRow      tcell.Color
	TableRowMuted tcell.Color
	SelectionBg   tcell.Color
	SelectionFg   tcell.Color

	Success tcell.Color
	Warning tcell.Color
	Error   tcell.Color

	TagAccent  string
	TagMuted   string
	TagSuccess string
	TagWarning string
	TagError   string
}

func hex(s string) tcell.Color { return tcell.GetColor(s) }

func themeDark() Theme {
	return Theme{
		Name:          "dark",
		Bg:            hex("#0e1116"),
		Border:        hex("#2b3240"),
		FocusBorder:   hex("#4aa8ff"),
		TextPrimary:   hex("#e6edf3"),
		TextMuted:     hex("#8a939f"),
		Header:        hex("#eab308"),
		TableHeader:   hex("#eab308"),
		TableHeaderBg: hex("#1a2332"),
		TableRow:      hex("#e6edf3"),
		TableRowMuted: hex("#94a3b8"),
		SelectionBg:   hex("#2b3240"),
		SelectionFg:   hex("#cfd8e3"),
		Success:       hex("#22c55e"),
		Warning:       hex("#f59e0b"),
		Error:         hex("#ef4444"),
		TagAccent:     "#2dd4bf",
		TagMuted:      "#8a939f",
		TagSuccess:    "#22c55e",
		TagWarning:    "#f59e0b",
		TagError:      "#ef4444",
	}
}

func themeLight() Theme {
	return Theme{
		Name:          "light",
		Bg:            hex("#f6f8fa"),
		Border:        hex("#d0d7de"),
		FocusBorder:   hex("#1f6feb"),
		TextPrimary:   hex("#111827"),
		TextMuted:     hex("#6b7280"),
		Header:        hex("#1f2937"),
		TableHeader:   hex("#1f2937"),
		TableHeaderBg: hex("#e5e7eb"),
		TableRow:      hex("#111827"),
		TableRowMuted: hex("#6b7280"),
		SelectionBg:   hex("#e2e8f0"),
		SelectionFg:   hex("#111827"),
		Success:       hex("#15803d"),
		Warning:       hex("#b45309"),
		Error:         hex("#b91c1c"),
		TagAccent:     "#2563eb",
		TagMuted:      "#6b7280",
		TagSuccess:    "#15803d",
		TagWarning:    "#b45309",
		TagError:      "#b91c1c",
	}
}

func themeHighContrast() Theme {
	return Theme{
		Name:          "high-contrast",
		Bg:            tcell.ColorBlack,
		Border:        tcell.ColorWhite,
		FocusBorder:   tcell.ColorYellow,
		TextPrimary:   tcell.ColorWhite,
		TextMuted:     tcell.ColorSilver,
		Header:        tcell.ColorYellow,
		TableHeader:   tcell.ColorBlack,
		TableHeaderBg: tcell.ColorYellow,
		TableRow:      tcell.ColorWhite,
		TableRowMuted: tcell.ColorSilver,
		SelectionBg:   tcell.ColorWhite,
		SelectionFg:   tcell.ColorBlack,
		Success:       tcell.ColorLime,
		Warning:       tcell.ColorYellow,
		Error:         tcell.ColorRed,
		TagAccent:     "yellow",
		TagMuted:      "silver",
		TagSuccess:    "lime",
		TagWarning:    "yellow",
		TagError:      "red",
	}
}

var themes = []func() Theme{themeDark, themeLight, themeHighContrast}

// ThemeByName returns the named theme, falling back to dark.
func ThemeByName(name string) Theme {
	for _, mk := range themes {
		if th := mk(); th.Name == name {
			return th
		}
	}
	return themeDark()
}

// nextTheme returns the theme after current in the cycle.
func nextTheme(current string) Theme {
	for i, mk := range themes {
		if mk().Name == current {
			return themes[(i+1)%len(themes)]()
		}
	}
	return themeDark()
}
