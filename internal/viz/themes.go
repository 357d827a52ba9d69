package viz

import "github.com/charmbracelet/lipgloss"

// Theme defines the color scheme of the monitor.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Normal  lipgloss.Color
	Warning lipgloss.Color
	Alarm   lipgloss.Color
}

var (
	ThemeClinical = Theme{
		Name:    "clinical",
		Primary: lipgloss.Color("#00ccff"),
		Accent:  lipgloss.Color("#ffffff"),
		Text:    lipgloss.Color("#e0e0e0"),
		Muted:   lipgloss.Color("#666688"),
		Normal:  lipgloss.Color("#00ff88"),
		Warning: lipgloss.Color("#ffcc00"),
		Alarm:   lipgloss.Color("#ff4444"),
	}

	ThemeNight = Theme{
		Name:    "night",
		Primary: lipgloss.Color("#aa4400"),
		Accent:  lipgloss.Color("#ff8800"),
		Text:    lipgloss.Color("#cc8866"),
		Muted:   lipgloss.Color("#553322"),
		Normal:  lipgloss.Color("#88aa44"),
		Warning: lipgloss.Color("#ddaa00"),
		Alarm:   lipgloss.Color("#ff2200"),
	}

	ThemeMono = Theme{
		Name:    "mono",
		Primary: lipgloss.Color("#ffffff"),
		Accent:  lipgloss.Color("#ffffff"),
		Text:    lipgloss.Color("#cccccc"),
		Muted:   lipgloss.Color("#777777"),
		Normal:  lipgloss.Color("#cccccc"),
		Warning: lipgloss.Color("#ffffff"),
		Alarm:   lipgloss.Color("#ffffff"),
	}

	CurrentTheme = ThemeClinical

	Themes = []Theme{ThemeClinical, ThemeNight, ThemeMono}
)

// GetTheme returns a theme by name, falling back to clinical.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeClinical
}

// SetTheme changes the current theme and restyles the shared styles.
func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
	applyTheme(CurrentTheme)
}

// NextTheme cycles to the theme after the current one.
func NextTheme() {
	for i, t := range Themes {
		if t.Name == CurrentTheme.Name {
			SetTheme(Themes[(i+1)%len(Themes)].Name)
			return
		}
	}
	SetTheme(ThemeClinical.Name)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
