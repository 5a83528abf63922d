package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// ControllerType identifies the kind of grid controller
type ControllerType string

const (
	ControllerLaunchpadX    ControllerType = "launchpad-x"
	ControllerLaunchpadMini ControllerType = "launchpad-mini"
	ControllerMonome        ControllerType = "monome"
)

// MIDI reports whether the controller is driven over MIDI.
func (t ControllerType) MIDI() bool {
	return t == ControllerLaunchpadX || t == ControllerLaunchpadMini
}

// ControllerConfig defines a saved controller configuration
type ControllerConfig struct {
	Type        ControllerType `json:"type"`
	PortName    string         `json:"portName,omitempty"` // MIDI port substring
	AutoConnect bool           `json:"autoConnect"`
}

// OSCConfig addresses a serialosc grid
type OSCConfig struct {
	Host       string `json:"host,omitempty"`
	DevicePort int    `json:"devicePort,omitempty"` // where the grid listens
	ListenPort int    `json:"listenPort,omitempty"` // where we receive keys
	Prefix     string `json:"prefix,omitempty"`
}

// GridConfig is the usable button area, control row included
type GridConfig struct {
	Cols int `json:"cols,omitempty"`
	Rows int `json:"rows,omitempty"`
}

// AudioConfig configures the output device
type AudioConfig struct {
	SampleRate   int     `json:"sampleRate,omitempty"`
	BufferFrames int     `json:"bufferFrames,omitempty"`
	MasterVolume float64 `json:"masterVolume,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	LEDRefresh  int    `json:"ledRefresh,omitempty"` // Hz
	LastSession string `json:"lastSession,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Controllers []ControllerConfig `json:"controllers,omitempty"`
	OSC         OSCConfig          `json:"osc,omitempty"`
	Grid        GridConfig         `json:"grid,omitempty"`
	Audio       AudioConfig        `json:"audio,omitempty"`
	UI          UIConfig           `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Controllers: []ControllerConfig{
			{
				Type:        ControllerLaunchpadX,
				PortName:    "Launchpad X LPX MIDI",
				AutoConnect: true,
			},
		},
		OSC: OSCConfig{
			Host:       "127.0.0.1",
			DevicePort: 13001,
			ListenPort: 13002,
			Prefix:     "/looper",
		},
		Grid: GridConfig{Cols: 8, Rows: 9},
		Audio: AudioConfig{
			SampleRate:   48000,
			BufferFrames: 480,
			MasterVolume: 1,
		},
		UI: UIConfig{LEDRefresh: 80},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-looper"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
// LOOPER_* environment variables override the file.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := DefaultConfig()
		cfg.ApplyEnv()
		return cfg, cfg.Validate()
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads one config file. Fields the file leaves out keep their
// defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "read config")
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Grid bounds. The top row carries group and pattern buttons, four of them
// at the right edge, and a row is sent as one 16-bit mask.
const (
	MinGridCols = 4
	MaxGridCols = 16
	MinGridRows = 2
)

// ValidationError reports a config field outside its usable range.
type ValidationError struct {
	Field string
	Value int
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s = %d: %s", e.Field, e.Value, e.Msg)
}

// Validate checks the fields the grid layout depends on.
func (c *Config) Validate() error {
	switch {
	case c.Grid.Cols < MinGridCols || c.Grid.Cols > MaxGridCols:
		return &ValidationError{"grid.cols", c.Grid.Cols, fmt.Sprintf("must be %d..%d", MinGridCols, MaxGridCols)}
	case c.Grid.Rows < MinGridRows:
		return &ValidationError{"grid.rows", c.Grid.Rows, fmt.Sprintf("must be at least %d", MinGridRows)}
	}
	return nil
}

// fill restores defaults for zero values a partial file produced.
func (c *Config) fill() {
	def := DefaultConfig()
	if c.Grid.Cols <= 0 {
		c.Grid.Cols = def.Grid.Cols
	}
	if c.Grid.Rows <= 0 {
		c.Grid.Rows = def.Grid.Rows
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.BufferFrames <= 0 {
		c.Audio.BufferFrames = def.Audio.BufferFrames
	}
	if c.Audio.MasterVolume <= 0 {
		c.Audio.MasterVolume = def.Audio.MasterVolume
	}
	if c.UI.LEDRefresh <= 0 {
		c.UI.LEDRefresh = def.UI.LEDRefresh
	}
	if c.OSC.Host == "" {
		c.OSC.Host = def.OSC.Host
	}
	if c.OSC.DevicePort == 0 {
		c.OSC.DevicePort = def.OSC.DevicePort
	}
	if c.OSC.ListenPort == 0 {
		c.OSC.ListenPort = def.OSC.ListenPort
	}
	if c.OSC.Prefix == "" {
		c.OSC.Prefix = def.OSC.Prefix
	}
}

// ApplyEnv overrides fields from LOOPER_* environment variables.
func (c *Config) ApplyEnv() {
	if t := envStr("LOOPER_CONTROLLER", ""); t != "" {
		c.Controllers = []ControllerConfig{{
			Type:        ControllerType(t),
			PortName:    envStr("LOOPER_PORT", ""),
			AutoConnect: true,
		}}
	} else if p := envStr("LOOPER_PORT", ""); p != "" && len(c.Controllers) > 0 {
		c.Controllers[0].PortName = p
	}

	c.OSC.Host = envStr("LOOPER_OSC_HOST", c.OSC.Host)
	c.OSC.DevicePort = envInt("LOOPER_OSC_DEVICE_PORT", c.OSC.DevicePort)
	c.OSC.ListenPort = envInt("LOOPER_OSC_LISTEN_PORT", c.OSC.ListenPort)
	c.OSC.Prefix = envStr("LOOPER_OSC_PREFIX", c.OSC.Prefix)

	c.Grid.Cols = envInt("LOOPER_GRID_COLS", c.Grid.Cols)
	c.Grid.Rows = envInt("LOOPER_GRID_ROWS", c.Grid.Rows)

	c.Audio.SampleRate = envInt("LOOPER_SAMPLE_RATE", c.Audio.SampleRate)
	c.Audio.BufferFrames = envInt("LOOPER_BUFFER_FRAMES", c.Audio.BufferFrames)
	c.Audio.MasterVolume = envFloat("LOOPER_MASTER_VOLUME", c.Audio.MasterVolume)

	c.UI.LEDRefresh = envInt("LOOPER_LED_REFRESH", c.UI.LEDRefresh)
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create config dir")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return errors.Wrap(os.WriteFile(path, data, 0644), "write config")
}

// Controller returns the first auto-connect controller, or false.
func (c *Config) Controller() (ControllerConfig, bool) {
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect {
			return ctrl, true
		}
	}
	return ControllerConfig{}, false
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == portName {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == ctrl.PortName && c.Controllers[i].Type == ctrl.Type {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
