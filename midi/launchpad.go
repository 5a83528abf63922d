package midi

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-looper/debug"
	"go-looper/grid"
)

// Launchpad drives a Novation Launchpad in programmer mode as a grid.Device.
type Launchpad struct {
	id    string
	model Model
	send  func(msg gomidi.Message) error
	stop  func()

	mu     sync.Mutex
	closed bool
	events chan grid.Event

	on      atomic.Uint32 // palette velocity for lit pads
	control atomic.Uint32 // and for the control row
	sent    atomic.Uint64
}

var _ grid.Device = (*Launchpad)(nil)

func newLaunchpad(id string, model Model) *Launchpad {
	lp := &Launchpad{
		id:     id,
		model:  model,
		events: make(chan grid.Event, 64),
	}
	lp.on.Store(uint32(ColorGreen))
	lp.control.Store(uint32(ColorOrange))
	return lp
}

// NewLaunchpad opens the ports and switches the device to programmer mode.
func NewLaunchpad(id string, model Model, in drivers.In, out drivers.Out) (*Launchpad, error) {
	lp := newLaunchpad(id, model)

	if out != nil {
		send, err := gomidi.SendTo(out)
		if err != nil {
			return nil, &grid.DeviceError{Device: id, Op: "open output", Err: err}
		}
		lp.send = send

		// programmer layout, full brightness, LED feedback from us only
		lp.send(gomidi.SysEx(model.sysex(0x00, 0x7F)))
		lp.send(gomidi.SysEx(model.sysex(0x08, 0x7F)))
		lp.send(gomidi.SysEx(model.sysex(0x0A, 0x01, 0x01)))
	}

	if in != nil {
		stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
			lp.handle(msg)
		})
		if err != nil {
			return nil, &grid.DeviceError{Device: id, Op: "open input", Err: err}
		}
		lp.stop = stop
	}

	return lp, nil
}

func (lp *Launchpad) handle(msg gomidi.Message) {
	ev, ok := toEvent(msg)
	if !ok {
		return
	}
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.closed {
		return
	}
	select {
	case lp.events <- ev:
	default:
		debug.Log("midi", "%s: event dropped %+v", lp.id, ev)
	}
}

func (lp *Launchpad) ID() string                { return lp.id }
func (lp *Launchpad) Model() Model              { return lp.model }
func (lp *Launchpad) Size() (int, int)          { return gridCols, gridRows }
func (lp *Launchpad) Events() <-chan grid.Event { return lp.events }

// SetColors picks the palette entries closest to the given pad and control
// row colors.
func (lp *Launchpad) SetColors(pad, control [3]uint8) {
	lp.on.Store(uint32(mapRGBToLaunchpad(pad)))
	lp.control.Store(uint32(mapRGBToLaunchpad(control)))
}

func (lp *Launchpad) SetLED(x, y int, on bool) error {
	note, ok := cellNote(x, y)
	if !ok {
		return &grid.DeviceError{Device: lp.id, Op: "led", Err: errors.Errorf("cell %d,%d off grid", x, y)}
	}
	if lp.send == nil {
		return nil
	}
	color := ColorOff
	if on {
		if y == 0 {
			color = uint8(lp.control.Load())
		} else {
			color = uint8(lp.on.Load())
		}
	}
	n := lp.sent.Add(1)
	if n%1000 == 0 {
		debug.Log("lp-send", "%s: %d led messages", lp.id, n)
	}
	if err := lp.send(gomidi.NoteOn(0, note, color)); err != nil {
		return &grid.DeviceError{Device: lp.id, Op: "led", Err: err}
	}
	return nil
}

func (lp *Launchpad) SetRow(y int, mask uint16) error {
	for x := 0; x < gridCols; x++ {
		if err := lp.SetLED(x, y, mask&(1<<x) != 0); err != nil {
			return err
		}
	}
	return nil
}

func (lp *Launchpad) Clear() error {
	for y := 0; y < gridRows; y++ {
		if err := lp.SetRow(y, 0); err != nil {
			return err
		}
	}
	return nil
}

// Close blanks the pads, stops listening and closes the event channel.
func (lp *Launchpad) Close() error {
	lp.mu.Lock()
	if lp.closed {
		lp.mu.Unlock()
		return nil
	}
	lp.closed = true
	close(lp.events)
	lp.mu.Unlock()

	err := lp.Clear()
	if lp.stop != nil {
		lp.stop()
	}
	return err
}
