// Package session reads the YAML file describing a performance: tempo,
// quantization, groups and the loops laid out on the grid.
package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go-looper/looper"
)

// MaxColumns is the widest loop a 16-column grid can show.
const MaxColumns = 16

// Session is one performance file.
//
//	bpm: 120
//	quantize: 0.25
//	groups: 2
//	pattern1: 8
//	pattern2: 16
//	loops:
//	  - path: drums.wav
//	    group: 1
//	    rows: 2
type Session struct {
	BPM      float64 `yaml:"bpm"`
	Quantize float64 `yaml:"quantize"` // beats per tick
	Groups   int     `yaml:"groups"`
	Columns  int     `yaml:"columns"`  // 0: grid width
	Pattern1 int     `yaml:"pattern1"` // beats
	Pattern2 int     `yaml:"pattern2"`
	Loops    []Loop  `yaml:"loops"`

	// Path is where the session was read from; loop paths are relative to
	// its directory.
	Path string `yaml:"-"`
	// Skipped describes loops dropped while validating.
	Skipped []string `yaml:"-"`
}

// Loop is one file entry.
type Loop struct {
	Path    string  `yaml:"path"`
	Group   int     `yaml:"group"` // 1-based
	Rows    int     `yaml:"rows"`
	Columns int     `yaml:"columns"`
	Reverse bool    `yaml:"reverse"`
	Speed   float64 `yaml:"speed"`
	Volume  float64 `yaml:"volume"`

	Line int `yaml:"-"`
}

// UnmarshalYAML fills loop defaults before decoding.
func (l *Loop) UnmarshalYAML(n *yaml.Node) error {
	type plain Loop
	p := plain{Rows: 1, Speed: 1, Volume: 1}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*l = Loop(p)
	l.Line = n.Line
	return nil
}

// ConfigError reports a session that cannot be played.
type ConfigError struct {
	Path  string
	Line  int
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", e.Path, e.Line, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Field, e.Msg)
}

// Load reads and validates a session file.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read session")
	}
	return Parse(path, data)
}

// Parse validates session YAML. path is used for messages and for resolving
// loop paths.
func Parse(path string, data []byte) (*Session, error) {
	s := &Session{Path: path}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, &ConfigError{Path: path, Field: "yaml", Msg: err.Error()}
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) fail(field, format string, args ...any) error {
	return &ConfigError{Path: s.Path, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func (s *Session) validate() error {
	if s.BPM <= 0 {
		return s.fail("bpm", "must be positive, got %v", s.BPM)
	}
	if s.Quantize == 0 {
		s.Quantize = 1
	}
	if s.Quantize < 0 {
		return s.fail("quantize", "must be positive, got %v", s.Quantize)
	}
	if s.Groups < 1 {
		return s.fail("groups", "need at least one group, got %d", s.Groups)
	}
	if s.Columns < 0 || s.Columns > MaxColumns {
		return s.fail("columns", "must be 0..%d, got %d", MaxColumns, s.Columns)
	}
	if s.Pattern1 < 0 || s.Pattern2 < 0 {
		return s.fail("pattern", "lengths must not be negative")
	}

	loops := s.Loops[:0]
	for _, l := range s.Loops {
		switch {
		case l.Path == "":
			s.skip(l, "no path")
			continue
		case l.Group < 1:
			s.skip(l, "no group")
			continue
		case l.Speed <= 0:
			return &ConfigError{Path: s.Path, Line: l.Line, Field: "speed", Msg: fmt.Sprintf("must be positive, got %v", l.Speed)}
		case l.Rows < 1:
			return &ConfigError{Path: s.Path, Line: l.Line, Field: "rows", Msg: fmt.Sprintf("must be at least 1, got %d", l.Rows)}
		case l.Columns < 0:
			return &ConfigError{Path: s.Path, Line: l.Line, Field: "columns", Msg: fmt.Sprintf("must not be negative, got %d", l.Columns)}
		}
		if l.Group > s.Groups {
			l.Group = s.Groups
		}
		if l.Columns > 0 {
			l.Columns = (l.Columns-1)&0x0F + 1
		}
		loops = append(loops, l)
	}
	s.Loops = loops
	return nil
}

func (s *Session) skip(l Loop, why string) {
	s.Skipped = append(s.Skipped, fmt.Sprintf("line %d: %s", l.Line, why))
}

// LoopPath resolves a loop path against the session directory.
func (s *Session) LoopPath(l Loop) string {
	if filepath.IsAbs(l.Path) || s.Path == "" {
		return l.Path
	}
	return filepath.Join(filepath.Dir(s.Path), l.Path)
}

// Options builds engine options for the given output rate.
func (s *Session) Options(sampleRate int, master float64) looper.Options {
	return looper.Options{
		SampleRate:   sampleRate,
		BPM:          s.BPM,
		Quantize:     s.Quantize,
		Groups:       s.Groups,
		PatternBeats: [looper.PatternSlots]int{s.Pattern1, s.Pattern2},
		MasterVolume: master,
	}
}

// LoopConfig places loop l on the grid. row is the first free loop row and
// gridCols the controller width; sample data is filled in by the caller.
func (s *Session) LoopConfig(l Loop, row, gridCols int) looper.LoopConfig {
	cols := l.Columns
	if cols == 0 {
		cols = s.Columns
	}
	if cols == 0 || cols > gridCols {
		cols = gridCols
	}
	return looper.LoopConfig{
		Name:    filepath.Base(l.Path),
		Group:   l.Group - 1,
		Row:     row,
		Rows:    l.Rows,
		Columns: cols,
		Reverse: l.Reverse,
		Speed:   l.Speed,
		Volume:  l.Volume,
	}
}
