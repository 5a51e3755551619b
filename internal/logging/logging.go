package logging

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Logger owns the log file the standard logger is fanned out to.
type Logger struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// Init sets up dual logging to stdout and the file at path. When the file
// cannot be opened logging continues on stdout only and the returned Logger
// still serves ReadTail (returning nothing).
func Init(path string) *Logger {
	l := &Logger{path: path}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		log.Printf("WARNING: cannot create log directory: %v", err)
		return l
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		log.Printf("WARNING: cannot open log file %s: %v", path, err)
		return l
	}
	l.file = f
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	log.Printf("Logging to file: %s", path)
	return l
}

// Path returns the log file location.
func (l *Logger) Path() string { return l.path }

// ReadTail returns the last n lines of the log file.
func (l *Logger) ReadTail(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	// Ring of the last n lines; the whole file is never held in memory.
	ring := make([]string, 0, n)
	next := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) < n {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[next] = scanner.Text()
		next = (next + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan log file: %w", err)
	}
	lines := append(ring[next:], ring[:next]...)
	return strings.Join(lines, "\n"), nil
}

// Close restores stdout-only logging and closes the file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	log.SetOutput(os.Stdout)
	err := l.file.Close()
	l.file = nil
	return err
}
