package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-looper/debug"
	"go-looper/grid"
)

// ErrScanTimeout is returned when the MIDI backend does not answer.
var ErrScanTimeout = errors.New("midi port scan timed out")

const scanTimeout = 3 * time.Second

// DeviceEvent is emitted when a Launchpad connects or disconnects
type DeviceEvent struct {
	Type   DeviceEventType
	Device grid.Device
	ID     string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceManager handles hot-plug detection of Launchpads
type DeviceManager struct {
	hint     string // port name substring, empty for any Launchpad
	devices  map[string]*Launchpad
	mu       sync.RWMutex
	events   chan DeviceEvent
	pollRate time.Duration

	// Configure runs on each new device before it is announced.
	Configure func(*Launchpad)
}

// NewDeviceManager creates a device manager that opens Launchpads whose
// port name contains hint.
func NewDeviceManager(hint string) *DeviceManager {
	return &DeviceManager{
		hint:     strings.ToLower(hint),
		devices:  make(map[string]*Launchpad),
		events:   make(chan DeviceEvent, 16),
		pollRate: time.Second,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Devices returns the IDs of connected devices
func (dm *DeviceManager) Devices() []string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	ids := make([]string, 0, len(dm.devices))
	for id := range dm.devices {
		ids = append(ids, id)
	}
	return ids
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

// Ports lists MIDI ports, giving up after a few seconds (CoreMIDI can hang).
func Ports() ([]drivers.In, []drivers.Out, error) {
	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		return r.ins, r.outs, nil
	case <-time.After(scanTimeout):
		return nil, nil, ErrScanTimeout
	}
}

// Open finds the first Launchpad matching hint and opens it.
func Open(hint string) (*Launchpad, error) {
	ins, outs, err := Ports()
	if err != nil {
		return nil, &grid.DeviceError{Device: hint, Op: "scan", Err: err}
	}
	for _, in := range ins {
		id := in.String()
		model := ModelFor(id)
		if model == ModelUnknown || !matches(id, strings.ToLower(hint)) {
			continue
		}
		return NewLaunchpad(id, model, in, outputFor(id, outs))
	}
	return nil, &grid.DeviceError{Device: hint, Op: "open", Err: errors.New("no Launchpad found")}
}

func matches(portName, hint string) bool {
	return hint == "" || strings.Contains(strings.ToLower(portName), hint)
}

func outputFor(name string, outs []drivers.Out) drivers.Out {
	name = strings.ToLower(name)
	for _, op := range outs {
		if strings.ToLower(op.String()) == name {
			return op
		}
	}
	return nil
}

func (dm *DeviceManager) scan() {
	ins, outs, err := Ports()
	if err != nil {
		// User needs to run: sudo killall coreaudiod midiserver
		debug.Log("midi", "scan: %v", err)
		return
	}

	seen := make(map[string]bool)

	for _, in := range ins {
		id := in.String()
		model := ModelFor(id)
		if model == ModelUnknown || !matches(id, dm.hint) {
			continue
		}
		seen[id] = true

		dm.mu.RLock()
		_, exists := dm.devices[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		lp, err := NewLaunchpad(id, model, in, outputFor(id, outs))
		if err != nil {
			debug.Log("midi", "open %s: %v", id, err)
			continue
		}
		if dm.Configure != nil {
			dm.Configure(lp)
		}
		debug.Log("midi", "connected %s (%s)", id, model)

		dm.mu.Lock()
		dm.devices[id] = lp
		dm.mu.Unlock()

		dm.events <- DeviceEvent{Type: DeviceConnected, Device: lp, ID: id}
	}

	dm.mu.Lock()
	var gone []string
	for id := range dm.devices {
		if !seen[id] {
			gone = append(gone, id)
		}
	}
	for _, id := range gone {
		dm.devices[id].Close()
		delete(dm.devices, id)
		debug.Log("midi", "disconnected %s", id)
		dm.events <- DeviceEvent{Type: DeviceDisconnected, ID: id}
	}
	dm.mu.Unlock()
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, lp := range dm.devices {
		lp.Close()
	}
	dm.devices = make(map[string]*Launchpad)
}
