package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	Panel       lipgloss.Style
	Title       lipgloss.Style
	Subtle      lipgloss.Style
	MetricLabel lipgloss.Style
	MetricValue lipgloss.Style
	KeyHint     lipgloss.Style

	StatusRunning lipgloss.Style
	StatusPaused  lipgloss.Style
	StatusHalted  lipgloss.Style

	levelNormal  lipgloss.Style
	levelWarning lipgloss.Style
	levelAlarm   lipgloss.Style
)

func init() { applyTheme(CurrentTheme) }

func applyTheme(t Theme) {
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Muted).
		Padding(0, 1)
	Title = lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	Subtle = lipgloss.NewStyle().Foreground(t.Muted)
	MetricLabel = lipgloss.NewStyle().Foreground(t.Muted).Width(18)
	MetricValue = lipgloss.NewStyle().Foreground(t.Text).Bold(true).Width(10).Align(lipgloss.Right)
	KeyHint = lipgloss.NewStyle().Foreground(t.Muted).Italic(true)

	StatusRunning = lipgloss.NewStyle().Bold(true).Foreground(t.Normal)
	StatusPaused = lipgloss.NewStyle().Bold(true).Foreground(t.Warning)
	StatusHalted = lipgloss.NewStyle().Bold(true).Foreground(t.Alarm).Blink(true)

	levelNormal = lipgloss.NewStyle().Foreground(t.Normal)
	levelWarning = lipgloss.NewStyle().Foreground(t.Warning)
	levelAlarm = lipgloss.NewStyle().Foreground(t.Alarm)
}

// Band is a normal range. A value within 10% of the band width outside it is
// a warning; further out is an alarm.
type Band struct{ Lo, Hi float64 }

// Level is 0 inside the band, 1 for a warning and 2 for an alarm.
func (b Band) Level(v float64) int {
	if math.IsNaN(v) {
		return 2
	}
	if v >= b.Lo && v <= b.Hi {
		return 0
	}
	margin := 0.1 * (b.Hi - b.Lo)
	if v >= b.Lo-margin && v <= b.Hi+margin {
		return 1
	}
	return 2
}

// Vital renders a value colored by its band.
func Vital(v float64, b Band) string {
	s := fmt.Sprintf("%.2f", v)
	switch b.Level(v) {
	case 0:
		return levelNormal.Render(s)
	case 1:
		return levelWarning.Render(s)
	default:
		return levelAlarm.Render(s)
	}
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders the last width values scaled to their own range.
func Sparkline(values []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / rng * float64(len(sparkChars)-1))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteRune(sparkChars[idx])
	}
	return b.String()
}

// ProgressBar renders a fill fraction in [0, 1].
func ProgressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func Separator(width int) string {
	mid := width / 2
	left := strings.Repeat("─", max(0, mid-3))
	right := strings.Repeat("─", max(0, width-mid-3))
	return Subtle.Render(left + " ◆ " + right)
}
