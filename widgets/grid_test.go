package widgets

import (
	"strings"
	"testing"
)

func TestRenderBar(t *testing.T) {
	tests := []struct {
		pos, length, width int
		want               string
	}{
		{0, 100, 5, ">----"},
		{50, 100, 5, "==>--"},
		{99, 100, 5, "====>"},
		{100, 100, 5, "====>"},
		{0, 0, 3, "---"},
		{5, 10, 0, ""},
	}
	for _, tt := range tests {
		got := RenderBar(tt.pos, tt.length, tt.width, '=', '-', '>')
		if got != tt.want {
			t.Errorf("RenderBar(%d, %d, %d) = %q, want %q", tt.pos, tt.length, tt.width, got, tt.want)
		}
	}
}

func TestRenderGridShape(t *testing.T) {
	st := GridStyle{Lit: '#', Unlit: '.'}
	out := RenderGrid([]uint16{0b01, 0b10, 0}, 4, st)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	if strings.Count(out, "#") != 2 || strings.Count(out, ".") != 10 {
		t.Errorf("grid = %q", out)
	}
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{{Title: "tempo", Keys: []KeyBinding{{"+", "faster"}}}})
	if !strings.HasPrefix(out, "tempo\n  +") {
		t.Errorf("help = %q", out)
	}
}
