// Package monome drives a monome grid through serialosc.
package monome

import (
	"fmt"
	"net"
	"sync"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"

	"go-looper/debug"
	"go-looper/grid"
)

// Config addresses the grid. DevicePort is the port serialosc assigned the
// grid; ListenPort is where key presses come back.
type Config struct {
	Host       string
	DevicePort int
	ListenPort int
	Prefix     string
	Cols, Rows int
}

type sender interface {
	Send(packet osc.Packet) error
}

// Device is a grid.Device over OSC.
type Device struct {
	cfg  Config
	out  sender
	conn net.PacketConn

	mu     sync.Mutex
	closed bool
	events chan grid.Event
}

var _ grid.Device = (*Device)(nil)

func newDevice(cfg Config, out sender) *Device {
	if cfg.Cols <= 0 {
		cfg.Cols = 16
	}
	if cfg.Rows <= 0 {
		cfg.Rows = 8
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/looper"
	}
	return &Device{
		cfg:    cfg,
		out:    out,
		events: make(chan grid.Event, 64),
	}
}

// Open starts listening for keys and points the grid at us.
func Open(cfg Config) (*Device, error) {
	id := fmt.Sprintf("monome@%s:%d", cfg.Host, cfg.DevicePort)
	d := newDevice(cfg, osc.NewClient(cfg.Host, cfg.DevicePort))

	conn, err := net.ListenPacket("udp", fmt.Sprintf("%s:%d", cfg.Host, cfg.ListenPort))
	if err != nil {
		return nil, &grid.DeviceError{Device: id, Op: "listen", Err: err}
	}
	d.conn = conn

	disp := osc.NewStandardDispatcher()
	if err := disp.AddMsgHandler(d.cfg.Prefix+"/grid/key", d.handleKey); err != nil {
		conn.Close()
		return nil, &grid.DeviceError{Device: id, Op: "listen", Err: err}
	}
	server := &osc.Server{Dispatcher: disp}
	go func() {
		if err := server.Serve(conn); err != nil && !d.isClosed() {
			debug.Log("monome", "serve: %v", err)
		}
	}()

	for _, msg := range []*osc.Message{
		osc.NewMessage("/sys/host", cfg.Host),
		osc.NewMessage("/sys/port", int32(cfg.ListenPort)),
		osc.NewMessage("/sys/prefix", d.cfg.Prefix),
	} {
		if err := d.out.Send(msg); err != nil {
			d.Close()
			return nil, &grid.DeviceError{Device: id, Op: "configure", Err: err}
		}
	}
	debug.Log("monome", "opened %s prefix=%s", id, d.cfg.Prefix)
	return d, nil
}

func (d *Device) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// handleKey takes /grid/key x y s.
func (d *Device) handleKey(msg *osc.Message) {
	if len(msg.Arguments) != 3 {
		return
	}
	var v [3]int
	for i, a := range msg.Arguments {
		n, ok := a.(int32)
		if !ok {
			return
		}
		v[i] = int(n)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.events <- grid.Event{X: v[0], Y: v[1], Pressed: v[2] != 0}:
	default:
		debug.Log("monome", "event dropped")
	}
}

func (d *Device) ID() string {
	return fmt.Sprintf("monome@%s:%d", d.cfg.Host, d.cfg.DevicePort)
}

func (d *Device) Size() (int, int)          { return d.cfg.Cols, d.cfg.Rows }
func (d *Device) Events() <-chan grid.Event { return d.events }

func (d *Device) send(addr string, args ...interface{}) error {
	if err := d.out.Send(osc.NewMessage(d.cfg.Prefix+addr, args...)); err != nil {
		return &grid.DeviceError{Device: d.ID(), Op: addr, Err: err}
	}
	return nil
}

func (d *Device) SetLED(x, y int, on bool) error {
	if x < 0 || x >= d.cfg.Cols || y < 0 || y >= d.cfg.Rows {
		return &grid.DeviceError{Device: d.ID(), Op: "led", Err: errors.Errorf("cell %d,%d off grid", x, y)}
	}
	s := int32(0)
	if on {
		s = 1
	}
	return d.send("/grid/led/set", int32(x), int32(y), s)
}

// SetRow sends /grid/led/row 0 y with one byte per eight columns.
func (d *Device) SetRow(y int, mask uint16) error {
	if y < 0 || y >= d.cfg.Rows {
		return &grid.DeviceError{Device: d.ID(), Op: "row", Err: errors.Errorf("row %d off grid", y)}
	}
	args := []interface{}{int32(0), int32(y), int32(mask & 0xFF)}
	if d.cfg.Cols > 8 {
		args = append(args, int32(mask>>8))
	}
	return d.send("/grid/led/row", args...)
}

func (d *Device) Clear() error {
	return d.send("/grid/led/all", int32(0))
}

// Close blanks the grid and stops the listener.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()

	err := d.Clear()
	if d.conn != nil {
		d.conn.Close()
	}
	return err
}
