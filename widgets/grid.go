package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderPad renders a single colored pad
func RenderPad(color [3]uint8, r rune) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(string(r))
}

// GridStyle colors the mirror. Row 0 is the control row.
type GridStyle struct {
	Lit, Unlit rune
	Control    [3]uint8
	Pad        [3]uint8
	Off        [3]uint8
}

// RenderGrid draws LED rows as the player sees them, control row on top.
// Bit x of rows[y] is column x.
func RenderGrid(rows []uint16, cols int, st GridStyle) string {
	lines := make([]string, 0, len(rows))
	for y, mask := range rows {
		var line strings.Builder
		for x := 0; x < cols; x++ {
			if x > 0 {
				line.WriteString(" ")
			}
			switch {
			case mask&(1<<x) == 0:
				line.WriteString(RenderPad(st.Off, st.Unlit))
			case y == 0:
				line.WriteString(RenderPad(st.Control, st.Lit))
			default:
				line.WriteString(RenderPad(st.Pad, st.Lit))
			}
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// RenderBar draws a play position bar width cells wide. A zero length
// draws an empty bar.
func RenderBar(pos, length, width int, played, ahead, head rune) string {
	if width <= 0 {
		return ""
	}
	at := -1
	if length > 0 {
		at = int(int64(pos) * int64(width) / int64(length))
		if at >= width {
			at = width - 1
		}
	}
	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i == at:
			b.WriteRune(head)
		case i < at:
			b.WriteRune(played)
		default:
			b.WriteRune(ahead)
		}
	}
	return b.String()
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
