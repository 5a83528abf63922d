package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
	"github.com/pkg/errors"
)

// Sample is a fully decoded audio file.
type Sample struct {
	Path       string
	Data       []float32 // interleaved, Channels values per frame
	Channels   int
	SampleRate int
	Frames     int
}

// LoadError reports a file that could not be turned into a Sample. The loop
// is skipped; the rest of the session still loads.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Cause() error  { return e.Err }
func (e *LoadError) Unwrap() error { return e.Err }

var ErrUnsupported = errors.New("unsupported format")

type decodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	".wav": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return wav.Decode(f)
	},
	".mp3": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return mp3.Decode(f)
	},
	".flac": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return flac.Decode(f)
	},
}

// Load decodes path into memory.
func Load(path string) (*Sample, error) {
	decode, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, &LoadError{Path: path, Err: ErrUnsupported}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	s, format, err := decode(f)
	if err != nil {
		f.Close()
		return nil, &LoadError{Path: path, Err: errors.Wrap(err, "decode")}
	}
	defer s.Close()

	channels := format.NumChannels
	if channels > 2 {
		channels = 2 // beep folds everything to stereo
	}
	if channels < 1 {
		channels = 1
	}

	data := make([]float32, 0, s.Len()*channels)
	buf := make([][2]float64, 4096)
	for {
		n, ok := s.Stream(buf)
		for _, fr := range buf[:n] {
			data = append(data, float32(fr[0]))
			if channels == 2 {
				data = append(data, float32(fr[1]))
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, &LoadError{Path: path, Err: errors.Wrap(err, "stream")}
	}

	frames := len(data) / channels
	if frames == 0 {
		return nil, &LoadError{Path: path, Err: errors.New("no audio frames")}
	}

	return &Sample{
		Path:       path,
		Data:       data,
		Channels:   channels,
		SampleRate: int(format.SampleRate),
		Frames:     frames,
	}, nil
}
