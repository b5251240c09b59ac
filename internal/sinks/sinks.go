// Package sinks composes and persists the text lines produced by listeners.
package sinks

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/leandrodaf/midiviewer/sdk/contracts"
	"github.com/spf13/afero"
)

// TimeLayout is the timestamp prefix format used by Timestamped and FileSink.
const TimeLayout = "15:04:05.000"

// Multi fans each line out to every non-nil sink, in order.
func Multi(sinks ...contracts.Sink) contracts.Sink {
	active := make([]contracts.Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return func(line string) {
		for _, s := range active {
			s(line)
		}
	}
}

// Timestamped prefixes each line with the wall clock time given by now.
func Timestamped(sink contracts.Sink, now func() time.Time) contracts.Sink {
	if now == nil {
		now = time.Now
	}
	return func(line string) {
		sink(now().Format(TimeLayout) + " " + line)
	}
}

// Collector keeps every line in memory. It is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	lines []string
}

// Sink returns the collecting sink.
func (c *Collector) Sink() contracts.Sink {
	return func(line string) {
		c.mu.Lock()
		c.lines = append(c.lines, line)
		c.mu.Unlock()
	}
}

// Lines returns a copy of the collected lines.
func (c *Collector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// FileSink appends timestamped lines to a file.
type FileSink struct {
	mu     sync.Mutex
	file   afero.File
	logger contracts.Logger
	now    func() time.Time
}

// NewFileSink opens path for appending, creating parent directories as needed.
func NewFileSink(fs afero.Fs, path string, logger contracts.Logger) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open message log %s: %w", path, err)
	}
	return &FileSink{file: f, logger: logger, now: time.Now}, nil
}

// Sink returns the writing sink. Write errors are logged, never returned.
func (f *FileSink) Sink() contracts.Sink {
	return Timestamped(f.write, f.now)
}

func (f *FileSink) write(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return
	}
	if _, err := fmt.Fprintln(f.file, line); err != nil {
		f.logger.Error("Failed to write message log", f.logger.Field().Error("error", err))
	}
}

// Close flushes and closes the file. Lines written afterwards are discarded.
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
