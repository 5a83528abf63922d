package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-looper/looper"
	"go-looper/theme"
	"go-looper/widgets"
)

// Engine is what the status view reads and the tempo keys drive.
type Engine interface {
	NumLoops() int
	NumGroups() int
	LoopInfo(i int) looper.LoopInfo
	LoopStatus(i int) looper.LoopStatus
	GroupActive(g int) int
	PatternStatus(slot int) (looper.PatternStatus, bool)
	PatternSteps(slot int) int
	BPM() float64
	Quantize() float64
	Stats() looper.Stats

	SetBPM(bpm float64) bool
	SetQuantize(m float64) bool
}

// Mirror supplies the LED rows last sent to the grid.
type Mirror interface {
	Rows(dst []uint16)
}

const (
	refresh  = 50 * time.Millisecond
	barWidth = 24
	minBPM   = 20
	maxBPM   = 400
)

type Model struct {
	Engine Engine
	Theme  *theme.Theme
	Mirror Mirror // may be nil
	Cols   int
	Rows   int

	device   string
	rows     []uint16
	quitting bool
}

// TickMsg redraws the view.
type TickMsg time.Time

// DeviceMsg reports the grid controller coming or going.
type DeviceMsg struct {
	ID        string
	Connected bool
}

func NewModel(eng Engine, th *theme.Theme, mirror Mirror, cols, rows int) Model {
	return Model{
		Engine: eng,
		Theme:  th,
		Mirror: mirror,
		Cols:   cols,
		Rows:   rows,
		rows:   make([]uint16, rows),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refresh, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "+", "=":
			m.nudgeBPM(1)
		case "-", "_":
			m.nudgeBPM(-1)
		case "}":
			m.nudgeBPM(10)
		case "{":
			m.nudgeBPM(-10)

		case "]":
			m.Engine.SetQuantize(m.Engine.Quantize() * 2)
		case "[":
			m.Engine.SetQuantize(m.Engine.Quantize() / 2)
		}

	case TickMsg:
		if m.Mirror != nil {
			m.Mirror.Rows(m.rows)
		}
		return m, tick()

	case DeviceMsg:
		if msg.Connected {
			m.device = msg.ID
		} else if m.device == msg.ID {
			m.device = ""
		}
	}

	return m, nil
}

func (m Model) nudgeBPM(delta float64) {
	bpm := m.Engine.BPM() + delta
	if bpm < minBPM || bpm > maxBPM {
		return
	}
	m.Engine.SetBPM(bpm)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	activeStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	device := "no grid"
	if m.device != "" {
		device = m.device
	}
	header := headerStyle.Render(fmt.Sprintf("go-looper  %6.1fbpm  q=%g  %s",
		m.Engine.BPM(), m.Engine.Quantize(), device))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")

	out.WriteString(m.loopsView(activeStyle, dimStyle))
	out.WriteString("\n")
	out.WriteString(m.patternsView())
	out.WriteString("\n\n")

	if m.Mirror != nil {
		sym := m.Theme.Symbols
		pad, ctl := m.Theme.PadColors()
		out.WriteString(widgets.RenderGrid(m.rows, m.Cols, widgets.GridStyle{
			Lit:     sym.Lit,
			Unlit:   sym.Unlit,
			Control: ctl,
			Pad:     pad,
			Off:     m.Theme.RGB(theme.RoleMuted),
		}))
		out.WriteString("\n\n")
	}

	if s := m.Engine.Stats(); s.Dropped+s.Heals+s.Overflows > 0 {
		out.WriteString(warnStyle.Render(fmt.Sprintf("dropped:%d healed:%d lost steps:%d",
			s.Dropped, s.Heals, s.Overflows)))
		out.WriteString("\n")
	}
	out.WriteString(dimStyle.Render("+/-:bpm  {/}:bpm x10  [/]:quantize  q:quit"))
	return out.String()
}

func (m Model) loopsView(active, dim lipgloss.Style) string {
	sym := m.Theme.Symbols
	var lines []string
	for i := 0; i < m.Engine.NumLoops(); i++ {
		info := m.Engine.LoopInfo(i)
		st := m.Engine.LoopStatus(i)

		mark := sym.Pending
		switch st.State {
		case looper.Active:
			mark = sym.Active
		case looper.Inactive:
			mark = sym.Inactive
		}

		head := sym.Head
		if info.Reverse {
			head = sym.Back
		}
		pos, length := 0, 0
		if st.State.Audible() {
			pos, length = st.Position, st.Length
		}
		bar := widgets.RenderBar(pos, length, barWidth, sym.Played, sym.Ahead, head)

		name := info.Name
		if len(name) > 16 {
			name = name[:16]
		}
		region := ""
		if st.Looping {
			region = fmt.Sprintf(" [%d-%d)", st.Start, st.End)
		}
		line := fmt.Sprintf("%c g%d %-16s %s %-18s%s", mark, info.Group+1, name, bar, st.State, region)
		if st.State.Audible() {
			line = active.Render(line)
		} else {
			line = dim.Render(line)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return dim.Render("no loops loaded")
	}
	return strings.Join(lines, "\n")
}

func (m Model) patternsView() string {
	var parts []string
	for slot := 0; slot < looper.PatternSlots; slot++ {
		st, bound := m.Engine.PatternStatus(slot)
		desc := "empty"
		if bound {
			desc = fmt.Sprintf("%s (%d steps)", st, m.Engine.PatternSteps(slot))
		}
		parts = append(parts, fmt.Sprintf("pattern %d: %s", slot+1, desc))
	}
	return strings.Join(parts, "   ")
}
