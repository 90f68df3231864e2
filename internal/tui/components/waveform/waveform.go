// Package waveform renders a scrolling input level history.
package waveform

import (
	"math"
	"strings"
	"time"

	"github.com/alkime/rapidvoice/internal/tui/style"
	"github.com/alkime/rapidvoice/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
)

// Block characters for level visualization, index 0 is empty.
const blockChars = " ▁▂▃▄▅▆▇█"

const tickInterval = 50 * time.Millisecond

// TickMsg triggers a sample of the level dial and a redraw.
type TickMsg struct{}

// Model shows the last width level readings as vertical bars, newest on
// the right. Levels are in [0, 1].
type Model struct {
	level   uictl.Dial[float64]
	history []float64
	width   int
	height  int
	active  bool
}

// New creates a meter reading from level. A nil level renders the
// baseline only.
func New(level uictl.Dial[float64], width, height int) Model {
	return Model{
		level:  level,
		width:  max(width, 1),
		height: max(height, 1),
	}
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update samples the dial on each tick while the meter is active.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); !ok {
		return m, nil
	}

	if m.active && m.level != nil {
		m = m.Push(m.level.Read())
	}

	return m, m.tick()
}

// Push appends one reading, dropping the oldest once the meter is full.
func (m Model) Push(v float64) Model {
	h := append(m.history[:len(m.history):len(m.history)], uictl.Clamp(v, 0, 1))
	if len(h) > m.width {
		h = h[len(h)-m.width:]
	}
	m.history = h

	return m
}

// SetActive starts or stops sampling. Stopping clears the history.
func (m Model) SetActive(active bool) Model {
	m.active = active
	if !active {
		m.history = nil
	}

	return m
}

func (m Model) View() string {
	if len(m.history) == 0 {
		return m.renderEmpty()
	}

	return m.renderLevels()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m Model) renderLevels() string {
	runes := []rune(blockChars)
	maxLevel := m.height * 8

	// right-align: pad the left with silence until the meter fills up
	cols := make([]int, m.width)
	offset := m.width - len(m.history)
	for i, v := range m.history {
		cols[offset+i] = toLevel(v, maxLevel)
	}

	var sb strings.Builder
	for row := range m.height {
		if row > 0 {
			sb.WriteString("\n")
		}

		base := (m.height - 1 - row) * 8

		var rowSB strings.Builder
		for _, level := range cols {
			fill := min(max(level-base, 0), 8)
			rowSB.WriteRune(runes[fill])
		}

		sb.WriteString(style.Progress.Render(rowSB.String()))
	}

	return sb.String()
}

func (m Model) renderEmpty() string {
	var sb strings.Builder

	for row := range m.height {
		if row > 0 {
			sb.WriteString("\n")
		}

		fill := " "
		if row == m.height-1 {
			fill = "▁"
		}
		sb.WriteString(style.Muted.Render(strings.Repeat(fill, m.width)))
	}

	return sb.String()
}

// toLevel maps v in [0, 1] to 0..maxLevel on a square-root curve so quiet
// input stays visible.
func toLevel(v float64, maxLevel int) int {
	if v <= 0 {
		return 0
	}

	return min(int(math.Sqrt(v)*float64(maxLevel)), maxLevel)
}
