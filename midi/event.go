package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-looper/grid"
)

// Launchpad programmer-mode layout, seen from the player:
//
//	top row:   CC 91-98, grid y=0 (control row)
//	8x8 pads:  notes 81-88 at the top down to 11-18 at the bottom, grid y=1..8
//	side col:  notes 19, 29 .. 89, unused
const (
	gridCols = 8
	gridRows = 9
)

// toEvent translates an incoming message into a grid event.
func toEvent(msg gomidi.Message) (grid.Event, bool) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		return noteEvent(key, vel > 0)
	case msg.GetNoteOff(&ch, &key, &vel):
		return noteEvent(key, false)
	case msg.GetControlChange(&ch, &key, &vel):
		if key >= 91 && key <= 98 {
			return grid.Event{X: int(key - 91), Y: 0, Pressed: vel > 0}, true
		}
	}
	return grid.Event{}, false
}

func noteEvent(note uint8, pressed bool) (grid.Event, bool) {
	if note >= 91 && note <= 98 {
		return grid.Event{X: int(note - 91), Y: 0, Pressed: pressed}, true
	}
	row := int(note/10) - 1 // 0 at the bottom
	col := int(note%10) - 1
	if row < 0 || row > 7 || col < 0 || col > 7 {
		return grid.Event{}, false
	}
	return grid.Event{X: col, Y: 8 - row, Pressed: pressed}, true
}

// cellNote is the note that lights cell x,y.
func cellNote(x, y int) (uint8, bool) {
	if x < 0 || x >= gridCols || y < 0 || y >= gridRows {
		return 0, false
	}
	if y == 0 {
		return uint8(91 + x), true
	}
	row := 8 - y
	return uint8((row+1)*10 + x + 1), true
}
