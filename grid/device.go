package grid

import "fmt"

// Event is a button press or release. Y=0 is the control row at the top.
type Event struct {
	X, Y    int
	Pressed bool
}

// Device is a button grid with one LED per button.
type Device interface {
	ID() string
	Size() (cols, rows int)

	Events() <-chan Event

	SetLED(x, y int, on bool) error
	// SetRow sets a whole row; bit x of mask is column x.
	SetRow(y int, mask uint16) error
	Clear() error

	Close() error
}

// DeviceError reports a transport that could not be opened or driven.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("grid %s: %s: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Cause() error  { return e.Err }
func (e *DeviceError) Unwrap() error { return e.Err }
