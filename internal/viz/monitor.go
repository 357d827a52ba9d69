package viz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/physim/internal/config"
	"github.com/san-kum/physim/internal/experiment"
	"github.com/san-kum/physim/internal/physiology"
	"github.com/san-kum/physim/internal/state"
)

const (
	historyCapacity = 600
	eventCapacity   = 8
	chartWidth      = 40
	chartHeight     = 8
	sparkWidth      = 24
)

// Watch is a key shown in the vitals panel.
type Watch struct {
	Key  string
	Band Band
}

var DefaultWatches = []Watch{
	{physiology.KeyHeartRate, Band{50, 120}},
	{physiology.KeyBloodPressure, Band{65, 110}},
	{physiology.KeyOxySaturation, Band{92, 100}},
	{physiology.KeyTemperature, Band{36, 38}},
	{physiology.KeyLactate, Band{0.5, 2}},
	{physiology.KeyFluidVolume, Band{1600, 2400}},
	{physiology.KeySodium, Band{135, 145}},
	{physiology.KeyHemoglobin, Band{12, 17}},
	{physiology.KeyPlateletCount, Band{150, 400}},
}

// hotkeys map a key press to an action applied to the selected lane.
var hotkeys = map[string]string{
	"e": "epinephrine",
	"f": "normal_saline",
	"a": "antibiotics",
	"p": "acetaminophen",
	"b": "blood_test",
}

type TickMsg time.Time

// Monitor is the live Bubble Tea view of a running experiment.
type Monitor struct {
	ctx      context.Context
	exp      *experiment.Experiment
	watches  []Watch
	schedule []config.Intervention
	next     int

	snaps    []state.Snapshot
	lane     int
	chart    int
	running  bool
	perTick  int
	interval time.Duration
	events   []string
	err      error
	done     bool
	canvas   *Canvas
}

func NewMonitor(ctx context.Context, exp *experiment.Experiment, interval time.Duration) Monitor {
	schedule := append([]config.Intervention(nil), exp.Config().Interventions...)
	sort.SliceStable(schedule, func(i, j int) bool { return schedule[i].Step < schedule[j].Step })

	snap := exp.Engine().Snapshot()
	var watches []Watch
	for _, w := range DefaultWatches {
		if snap.Has(w.Key) {
			watches = append(watches, w)
		}
	}

	return Monitor{
		ctx:      ctx,
		exp:      exp,
		watches:  watches,
		schedule: schedule,
		snaps:    []state.Snapshot{snap},
		running:  true,
		perTick:  1,
		interval: interval,
		canvas:   NewCanvas(chartWidth, chartHeight),
	}
}

func (m Monitor) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Monitor) Init() tea.Cmd { return m.tick() }

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "tab":
			if len(m.watches) > 0 {
				m.chart = (m.chart + 1) % len(m.watches)
			}
		case "[":
			m.lane = max(0, m.lane-1)
		case "]":
			m.lane = min(m.lane+1, m.lanes()-1)
		case "+", "=":
			m.perTick = min(m.perTick*2, 64)
		case "-", "_":
			m.perTick = max(m.perTick/2, 1)
		case "t":
			NextTheme()
		default:
			if action, ok := hotkeys[key]; ok {
				m.intervene(config.Intervention{Action: action, Lanes: []int{m.lane}})
			}
		}
	case TickMsg:
		if m.running {
			for range m.perTick {
				if !m.advance() {
					break
				}
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Monitor) lanes() int { return m.snaps[len(m.snaps)-1].LaneCount() }

// advance applies due interventions and commits one step. It reports whether
// stepping may continue.
func (m *Monitor) advance() bool {
	if m.err != nil || m.done {
		m.running = false
		return false
	}
	eng := m.exp.Engine()
	committed := eng.Clock().Step()
	if committed >= m.exp.Config().Steps {
		m.done = true
		m.running = false
		m.logf("run complete after %d steps", committed)
		return false
	}

	for m.next < len(m.schedule) && m.schedule[m.next].Step <= committed {
		m.intervene(m.schedule[m.next])
		m.next++
	}

	snap, err := eng.Step(m.ctx)
	if err != nil {
		m.err = err
		m.running = false
		m.logf("halted: %v", err)
		return false
	}
	m.snaps = append(m.snaps, snap)
	if len(m.snaps) > historyCapacity {
		m.snaps = m.snaps[1:]
	}
	return true
}

func (m *Monitor) intervene(iv config.Intervention) {
	labs, err := m.exp.Intervene(iv)
	if err != nil {
		m.logf("%s failed: %v", iv.Action, err)
		return
	}
	step := m.exp.Engine().Clock().Step()
	m.logf("step %d: %s on lanes %v", step, iv.Action, iv.Lanes)
	for _, lab := range labs {
		m.logf("  lab lane %d: %s", lab.Lane, formatLab(lab.Values))
	}
	m.snaps[len(m.snaps)-1] = m.exp.Engine().Snapshot()
}

func formatLab(values map[string]float64) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.1f", k, values[k])
	}
	return strings.Join(parts, " ")
}

func (m *Monitor) logf(format string, args ...any) {
	m.events = append(m.events, fmt.Sprintf(format, args...))
	if len(m.events) > eventCapacity {
		m.events = m.events[len(m.events)-eventCapacity:]
	}
}

// series returns the history of key on the selected lane.
func (m Monitor) series(key string) []float64 {
	out := make([]float64, 0, len(m.snaps))
	for _, s := range m.snaps {
		v, ok := s.Get(key)
		if !ok {
			continue
		}
		out = append(out, v.At(m.lane))
	}
	return out
}

func (m Monitor) status() string {
	switch {
	case m.err != nil:
		return StatusHalted.Render("HALTED")
	case m.done:
		return StatusPaused.Render("COMPLETE")
	case m.running:
		return StatusRunning.Render("RUNNING")
	default:
		return StatusPaused.Render("PAUSED")
	}
}

func (m Monitor) View() string {
	cfg := m.exp.Config()
	last := m.snaps[len(m.snaps)-1]

	var head strings.Builder
	head.WriteString(Title.Render(strings.ToUpper(cfg.Name)) + "  " + m.status() + "\n")
	fmt.Fprintf(&head, "step %d/%d  t=%.1f  lane %d/%d  x%d  %s\n",
		last.Step, cfg.Steps, last.Time, m.lane, m.lanes(), m.perTick,
		ProgressBar(float64(last.Step)/float64(cfg.Steps), 20))

	var vitals strings.Builder
	for i, w := range m.watches {
		v, _ := last.Get(w.Key)
		label := w.Key
		if i == m.chart {
			label = "> " + label
		}
		vitals.WriteString(MetricLabel.Render(label) + MetricValue.Render(Vital(v.At(m.lane), w.Band)) +
			"  " + Subtle.Render(Sparkline(m.series(w.Key), sparkWidth)) + "\n")
	}

	var chart strings.Builder
	if len(m.watches) > 0 {
		w := m.watches[m.chart]
		lo, hi := m.canvas.Plot(m.series(w.Key))
		chart.WriteString(Title.Render(w.Key) + Subtle.Render(fmt.Sprintf("  [%.2f, %.2f]", lo, hi)) + "\n")
		chart.WriteString(m.canvas.String())
	}

	var log strings.Builder
	for _, e := range m.events {
		log.WriteString(Subtle.Render(e) + "\n")
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		Panel.Render(strings.TrimRight(vitals.String(), "\n")),
		Panel.Render(strings.TrimRight(chart.String(), "\n")),
	)
	help := KeyHint.Render("SP:pause TAB:chart [ ]:lane +/-:speed e:epi f:saline a:abx p:apap b:labs T:theme Q:quit")
	return head.String() + body + "\n" + Panel.Render(strings.TrimRight(log.String(), "\n")) + "\n" + help
}

// RunMonitor starts the monitor in the alternate screen and blocks until it
// quits.
func RunMonitor(m Monitor) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
