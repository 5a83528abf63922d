package midi

import "strings"

// Model identifies a Launchpad variant. The value is its SysEx device byte.
type Model uint8

const (
	ModelUnknown Model = 0
	ModelX       Model = 0x0C
	ModelMini    Model = 0x0D // Mini MK3
)

func (m Model) String() string {
	switch m {
	case ModelX:
		return "Launchpad X"
	case ModelMini:
		return "Launchpad Mini"
	}
	return "unknown"
}

// sysex wraps a command in the Novation header for this model.
func (m Model) sysex(cmd ...byte) []byte {
	return append([]byte{0x00, 0x20, 0x29, 0x02, byte(m)}, cmd...)
}

// ModelFor guesses the model from a MIDI port name.
func ModelFor(portName string) Model {
	name := strings.ToLower(portName)
	if !strings.Contains(name, "launchpad") || !strings.Contains(name, "midi") {
		return ModelUnknown
	}
	if strings.Contains(name, "mini") {
		return ModelMini
	}
	return ModelX
}

// Launchpad palette velocities (Programmer's Reference Manual)
const (
	ColorOff         uint8 = 0
	ColorRed         uint8 = 5
	ColorOrange      uint8 = 9
	ColorYellow      uint8 = 13
	ColorGreen       uint8 = 21
	ColorCyan        uint8 = 37
	ColorBlue        uint8 = 45
	ColorPurple      uint8 = 49
	ColorPink        uint8 = 53
	ColorBrightWhite uint8 = 119
)

// mapRGBToLaunchpad finds the nearest palette color for an RGB value
func mapRGBToLaunchpad(rgb [3]uint8) uint8 {
	// {velocity, R, G, B}
	palette := [][4]uint8{
		{0, 0, 0, 0},
		{5, 255, 0, 0},
		{6, 255, 80, 80},
		{7, 180, 60, 60},
		{9, 255, 100, 0},
		{11, 180, 80, 40},
		{13, 255, 200, 0},
		{17, 0, 180, 0},
		{19, 0, 100, 0},
		{21, 0, 255, 0},
		{37, 0, 200, 200},
		{43, 40, 60, 120},
		{45, 0, 100, 255},
		{47, 80, 150, 255},
		{49, 150, 0, 200},
		{53, 255, 80, 180},
		{78, 100, 100, 255},
		{84, 255, 150, 50},
		{87, 150, 255, 100},
		{97, 180, 180, 60},
		{119, 255, 255, 255},
	}

	best := uint8(0)
	bestDist := 1 << 30
	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])
	for _, p := range palette {
		dr, dg, db := r-int(p[1]), g-int(p[2]), b-int(p[3])
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			bestDist = d
			best = p[0]
		}
	}
	return best
}
