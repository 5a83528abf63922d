package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"go-looper/audio"
	"go-looper/config"
	"go-looper/debug"
	"go-looper/grid"
	"go-looper/looper"
	"go-looper/midi"
	"go-looper/monome"
	"go-looper/session"
	"go-looper/theme"
	"go-looper/tui"
)

func main() {
	var (
		debugFlag  = flag.Bool("debug", false, "log to ~/.config/go-looper/debug.log")
		controller = flag.String("controller", "", "launchpad-x, launchpad-mini or monome")
		port       = flag.String("port", "", "MIDI port name substring")
		rate       = flag.Int("rate", 0, "output sample rate")
		buffer     = flag.Int("buffer", 0, "output buffer in frames")
		volume     = flag.Float64("volume", 0, "master volume")
		palette    = flag.String("palette", "", "GIMP palette for the terminal view")
		noTUI      = flag.Bool("notui", false, "run without the terminal view")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: go-looper [flags] session.yaml\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *controller != "" {
		cfg.Controllers = []config.ControllerConfig{{Type: config.ControllerType(*controller), PortName: *port, AutoConnect: true}}
	} else if *port != "" && len(cfg.Controllers) > 0 {
		cfg.Controllers[0].PortName = *port
	}
	if *rate > 0 {
		cfg.Audio.SampleRate = *rate
	}
	if *buffer > 0 {
		cfg.Audio.BufferFrames = *buffer
	}
	if *volume > 0 {
		cfg.Audio.MasterVolume = *volume
	}

	path := flag.Arg(0)
	if path == "" {
		path = cfg.UI.LastSession
	}
	if path == "" {
		flag.Usage()
		os.Exit(2)
	}

	if *debugFlag {
		if err := debug.Enable(); err != nil {
			log.Printf("debug log: %v", err)
		}
		defer debug.Disable()
	}

	sess, err := session.Load(path)
	if err != nil {
		log.Fatalf("session: %v", err)
	}
	for _, s := range sess.Skipped {
		log.Printf("skipping loop (%s)", s)
	}

	layout := grid.Layout{Cols: cfg.Grid.Cols, Rows: cfg.Grid.Rows}
	loops := loadLoops(sess, layout)

	opts := sess.Options(cfg.Audio.SampleRate, cfg.Audio.MasterVolume)
	opts.NewResampler = audio.Resampler()
	eng, err := looper.NewEngine(opts, loops)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	srv, err := audio.Open(cfg.Audio.SampleRate, cfg.Audio.BufferFrames)
	if err != nil {
		log.Fatalf("audio: %v", err)
	}
	defer srv.Close()
	log.Printf("%d loops, %d groups, %.1f bpm, latency %v", eng.NumLoops(), eng.NumGroups(), sess.BPM, srv.Latency())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	th := theme.New(nil)
	if *palette != "" {
		p, err := theme.LoadGPL(*palette)
		if err != nil {
			log.Printf("%v, using default palette", err)
		} else {
			th = theme.New(p)
		}
	}

	ctrl := grid.NewController(eng, layout)
	disp := grid.NewDisplay(eng, ctrl, nil, layout, cfg.UI.LEDRefresh)
	disp.Stats = eng.Stats

	var prog *tea.Program
	if !*noTUI {
		prog = tea.NewProgram(tui.NewModel(eng, th, disp, layout.Cols, layout.Rows), tea.WithAltScreen())
	}
	notify := func(msg tui.DeviceMsg) {
		if prog != nil {
			go prog.Send(msg) // blocks until the program runs
		} else if msg.Connected {
			log.Printf("grid connected: %s", msg.ID)
		}
	}

	events := make(chan grid.Event, 64)
	var wg sync.WaitGroup
	wg.Go(func() { ctrl.Run(ctx, events) })
	wg.Go(func() { disp.Run(ctx) })

	attach := func(dev grid.Device) {
		disp.SetDevice(dev)
		notify(tui.DeviceMsg{ID: dev.ID(), Connected: true})
		wg.Go(func() { forward(ctx, dev, events) })
	}

	srv.Play(eng)

	if err := connect(ctx, cfg, th, &wg, attach, func(id string) {
		disp.SetDevice(nil)
		notify(tui.DeviceMsg{ID: id})
	}); err != nil {
		var de *grid.DeviceError
		if errors.As(err, &de) {
			log.Fatalf("grid: %v", err)
		}
		log.Printf("grid: %v", err)
	}

	if prog != nil {
		go func() {
			<-ctx.Done()
			prog.Quit()
		}()
		if _, err := prog.Run(); err != nil {
			log.Printf("tui: %v", err)
		}
		stop()
	} else {
		<-ctx.Done()
	}

	wg.Wait()
}

// loadLoops decodes every session loop, skipping files that fail, and lays
// them out top to bottom below the control row.
func loadLoops(sess *session.Session, layout grid.Layout) []looper.LoopConfig {
	var loops []looper.LoopConfig
	row := 0
	for _, l := range sess.Loops {
		s, err := audio.Load(sess.LoopPath(l))
		if err != nil {
			log.Printf("skipping loop: %v", err)
			continue
		}
		c := sess.LoopConfig(l, row, layout.Cols)
		c.Data = s.Data
		c.Channels = s.Channels
		c.SampleRate = s.SampleRate
		loops = append(loops, c)

		if row+1+l.Rows > layout.Rows {
			log.Printf("%s: rows %d-%d are off the grid", c.Name, row+1, row+l.Rows)
		}
		row += l.Rows
	}
	return loops
}

// connect opens the configured controller. Launchpads are hot-plugged; a
// monome grid is opened once.
func connect(ctx context.Context, cfg *config.Config, th *theme.Theme, wg *sync.WaitGroup,
	attach func(grid.Device), detach func(id string)) error {
	cc, ok := cfg.Controller()
	if !ok {
		return errors.New("no controller configured, running without a grid")
	}

	if cc.Type == config.ControllerMonome {
		dev, err := monome.Open(monome.Config{
			Host:       cfg.OSC.Host,
			DevicePort: cfg.OSC.DevicePort,
			ListenPort: cfg.OSC.ListenPort,
			Prefix:     cfg.OSC.Prefix,
			Cols:       cfg.Grid.Cols,
			Rows:       cfg.Grid.Rows,
		})
		if err != nil {
			return err
		}
		attach(dev)
		wg.Go(func() {
			<-ctx.Done()
			dev.Close()
		})
		return nil
	}

	if !cc.Type.MIDI() {
		return errors.Errorf("unknown controller type %q", cc.Type)
	}
	dm := midi.NewDeviceManager(cc.PortName)
	dm.Configure = func(lp *midi.Launchpad) {
		lp.SetColors(th.PadColors())
	}
	wg.Go(func() { dm.Run(ctx) })
	wg.Go(func() {
		for ev := range dm.Events() {
			switch ev.Type {
			case midi.DeviceConnected:
				attach(ev.Device)
			case midi.DeviceDisconnected:
				detach(ev.ID)
			}
		}
	})
	return nil
}

// forward copies one device's events into the controller until the device
// closes its channel.
func forward(ctx context.Context, dev grid.Device, events chan<- grid.Event) {
	for ev := range dev.Events() {
		debug.LogEvery(50, "grid", "%s events", dev.ID())
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}
