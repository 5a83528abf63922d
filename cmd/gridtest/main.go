// Command gridtest checks a grid controller without starting the looper.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go-looper/config"
	"go-looper/grid"
	"go-looper/midi"
	"go-looper/monome"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "detect":
		detect(cfg, len(os.Args) > 2 && os.Args[2] == "-save")
	case "leds":
		testLEDs(cfg)
	case "echo":
		echo(cfg)
	case "poll":
		poll(cfg)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("Grid Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list           - List all MIDI ports")
	fmt.Println("  detect [-save] - Find Launchpads, optionally save to config")
	fmt.Println("  leds           - Walk every LED on the configured grid")
	fmt.Println("  echo           - Print presses and light pressed pads")
	fmt.Println("  poll           - Watch Launchpads connect and disconnect")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	ins, outs, err := midi.Ports()
	if err != nil {
		fmt.Printf("\n%v\n", err)
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}
	for i, p := range ins {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range outs {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
}

func detect(cfg *config.Config, save bool) {
	fmt.Println("Looking for Launchpads...")

	ins, _, err := midi.Ports()
	if err != nil {
		fmt.Println(err)
		return
	}

	found := 0
	for _, p := range ins {
		model := midi.ModelFor(p.String())
		if model == midi.ModelUnknown {
			continue
		}
		found++
		fmt.Printf("Found %s: %s\n", model, p.String())

		if save {
			typ := config.ControllerLaunchpadX
			if model == midi.ModelMini {
				typ = config.ControllerLaunchpadMini
			}
			cfg.AddController(config.ControllerConfig{Type: typ, PortName: p.String(), AutoConnect: true})
		}
	}

	if found == 0 {
		fmt.Println("\nNo Launchpad found")
		return
	}
	if save {
		if err := cfg.Save(); err != nil {
			fmt.Printf("Save failed: %v\n", err)
			return
		}
		path, _ := config.ConfigPath()
		fmt.Printf("Saved to %s\n", path)
	}
}

// open connects to the configured controller directly, without hot-plug.
func open(cfg *config.Config) (grid.Device, error) {
	cc, ok := cfg.Controller()
	if !ok {
		return nil, fmt.Errorf("no controller configured")
	}
	if cc.Type == config.ControllerMonome {
		return monome.Open(monome.Config{
			Host:       cfg.OSC.Host,
			DevicePort: cfg.OSC.DevicePort,
			ListenPort: cfg.OSC.ListenPort,
			Prefix:     cfg.OSC.Prefix,
			Cols:       cfg.Grid.Cols,
			Rows:       cfg.Grid.Rows,
		})
	}
	return midi.Open(cc.PortName)
}

func testLEDs(cfg *config.Config) {
	dev, err := open(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer dev.Close()

	cols, rows := dev.Size()
	fmt.Printf("Lighting %dx%d grid on %s...\n", cols, rows, dev.ID())

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			dev.SetLED(x, y, true)
			time.Sleep(20 * time.Millisecond)
		}
	}

	fmt.Println("Rows...")
	for y := 0; y < rows; y++ {
		dev.SetRow(y, 0b0101010101010101)
	}

	fmt.Println("Press Enter to clear...")
	fmt.Scanln()

	dev.Clear()
	fmt.Println("Done!")
}

func echo(cfg *config.Config) {
	dev, err := open(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer dev.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Echoing %s. Ctrl+C to exit.\n", dev.ID())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-dev.Events():
			if !ok {
				fmt.Println("Device closed")
				return
			}
			state := "up"
			if ev.Pressed {
				state = "down"
			}
			fmt.Printf("  x=%d y=%d %s\n", ev.X, ev.Y, state)
			dev.SetLED(ev.X, ev.Y, ev.Pressed)
		}
	}
}

func poll(cfg *config.Config) {
	fmt.Println("Watching for Launchpads. Ctrl+C to exit.")

	hint := ""
	if cc, ok := cfg.Controller(); ok && cc.Type.MIDI() {
		hint = cc.PortName
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dm := midi.NewDeviceManager(hint)
	go dm.Run(ctx)

	for ev := range dm.Events() {
		ts := time.Now().Format("15:04:05")
		switch ev.Type {
		case midi.DeviceConnected:
			fmt.Printf("[%s] connected %s\n", ts, ev.ID)
			ev.Device.Clear()
		case midi.DeviceDisconnected:
			fmt.Printf("[%s] disconnected %s\n", ts, ev.ID)
		}
	}
}
