package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu       sync.Mutex
	out      io.Writer
	file     *os.File
	counters = make(map[string]int)
)

// Path returns the log location, ~/.config/go-looper/debug.log.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-looper", "debug.log"), nil
}

// Enable starts logging to the debug log file, truncating it.
func Enable() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	mu.Lock()
	closeLocked()
	file = f
	out = f
	mu.Unlock()

	Log("debug", "=== looper debug log ===")
	return nil
}

// EnableTo sends log lines to w instead of the file.
func EnableTo(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	out = w
}

// Disable stops logging.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	clear(counters)
}

func closeLocked() {
	if file != nil {
		file.Close()
		file = nil
	}
	out = nil
}

// Enabled reports whether log lines go anywhere.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return out != nil
}

// Log writes one line. Never call it from the audio goroutine.
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	if out == nil {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(out, "[%s] %-8s %s\n", ts, category, fmt.Sprintf(format, args...))
	if file != nil {
		file.Sync() // see the tail even after a crash
	}
}

// LogEvery logs only every nth call with the same category and format.
func LogEvery(n int, category, format string, args ...any) {
	if n < 1 {
		n = 1
	}
	mu.Lock()
	key := category + "\x00" + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
