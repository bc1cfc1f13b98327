package log

import (
	"fmt"
	"os"
	"sync"
)

// FileLogger appends CBOR encoded events to a file.
//
// With a size limit, the file is moved to path+".1" once the next event
// would push it past the limit, and a fresh file is started. Only one
// rotated file is kept.
type FileLogger struct {
	path    string
	maxSize int64

	mu      sync.Mutex
	file    *os.File
	size    int64
	written uint64
	closed  bool
}

// NewFileLogger opens path for appending, creating it if needed. The file
// grows without bound.
func NewFileLogger(path string) (*FileLogger, error) {
	return NewRotatingFileLogger(path, 0)
}

// NewRotatingFileLogger is NewFileLogger with a size limit in bytes.
// A maxSize of zero or less disables rotation.
func NewRotatingFileLogger(path string, maxSize int64) (*FileLogger, error) {
	l := &FileLogger{path: path, maxSize: maxSize}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	l.file = f
	l.size = info.Size()
	return nil
}

// Log writes the event. Encoding and write errors are dropped so capture
// never disturbs the device.
func (l *FileLogger) Log(event Event) {
	data, err := EncodeEvent(event)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if l.maxSize > 0 && l.size > 0 && l.size+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil && l.closed {
			return
		}
	}
	n, err := l.file.Write(data)
	l.size += int64(n)
	if err == nil {
		l.written++
	}
}

func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	renameErr := os.Rename(l.path, l.path+".1")
	if err := l.open(); err != nil {
		l.closed = true
		return err
	}
	if renameErr != nil {
		return fmt.Errorf("rotate %s: %w", l.path, renameErr)
	}
	return nil
}

// Written returns how many events were written since the logger opened.
func (l *FileLogger) Written() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Close closes the file. Later Log calls are ignored; Close may be called
// more than once.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}
