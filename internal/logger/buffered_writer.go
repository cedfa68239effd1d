package logger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// DefaultBufferSize is the write buffer size for log files
const DefaultBufferSize = 32 * 1024

// DefaultFlushInterval is the default interval for auto-flushing buffered writes
const DefaultFlushInterval = 5 * time.Second

// LogFilePermissions is the mode for newly created log files
const LogFilePermissions = 0o600

// BufferedFileWriter wraps a file with buffered I/O, periodic flushing and
// optional size-based rotation. It is safe for concurrent use.
//
// Rotation renames path to path.1, path.1 to path.2 and so on, dropping the
// oldest file beyond the configured limit.
type BufferedFileWriter struct {
	mu            sync.Mutex
	file          *os.File
	writer        *bufio.Writer
	bufferSize    int
	filePath      string
	size          int64
	maxBytes      int64
	maxFiles      int
	flushInterval time.Duration
	stopFlush     chan struct{}
	flushDone     chan struct{}
	closing       bool
	closed        bool
}

// BufferedWriterOption configures a BufferedFileWriter
type BufferedWriterOption func(*BufferedFileWriter)

// WithBufferSize sets the buffer size for the writer
func WithBufferSize(size int) BufferedWriterOption {
	return func(w *BufferedFileWriter) {
		if size > 0 {
			w.bufferSize = size
		}
	}
}

// WithFlushInterval sets the auto-flush interval. Pass 0 to disable auto-flush.
func WithFlushInterval(interval time.Duration) BufferedWriterOption {
	return func(w *BufferedFileWriter) {
		w.flushInterval = interval
	}
}

// WithRotation rotates the file once it would exceed maxBytes, keeping maxFiles
// rotated files (0 keeps all).
func WithRotation(maxBytes int64, maxFiles int) BufferedWriterOption {
	return func(w *BufferedFileWriter) {
		w.maxBytes = maxBytes
		w.maxFiles = maxFiles
	}
}

// NewBufferedFileWriter opens filePath in append mode and starts the flush loop.
func NewBufferedFileWriter(filePath string, opts ...BufferedWriterOption) (*BufferedFileWriter, error) {
	w := &BufferedFileWriter{
		bufferSize:    DefaultBufferSize,
		filePath:      filePath,
		flushInterval: DefaultFlushInterval,
		stopFlush:     make(chan struct{}),
		flushDone:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if err := w.openLocked(); err != nil {
		return nil, err
	}

	if w.flushInterval > 0 {
		go w.autoFlushLoop()
	} else {
		close(w.flushDone)
	}

	return w, nil
}

// openLocked opens the target file and resets the size counter.
func (w *BufferedFileWriter) openLocked() error {
	file, err := os.OpenFile(w.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions) //nolint:gosec // path from settings
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", w.filePath, err)
	}

	var size int64
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}

	w.file = file
	w.size = size
	if w.writer == nil {
		w.writer = bufio.NewWriterSize(file, w.bufferSize)
	} else {
		w.writer.Reset(file)
	}
	return nil
}

func (w *BufferedFileWriter) autoFlushLoop() {
	defer close(w.flushDone)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopFlush:
			return
		case <-ticker.C:
			// Errors surface on the next Write
			_ = w.Flush()
		}
	}
}

// Write writes data to the buffer, rotating first if the size limit would be exceeded.
func (w *BufferedFileWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.writer == nil {
		return 0, errClosed
	}

	if w.maxBytes > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err = w.writer.Write(p)
	w.size += int64(n)
	return n, err
}

// rotateLocked shifts existing rotated files and reopens a fresh file.
func (w *BufferedFileWriter) rotateLocked() error {
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush before rotation: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close before rotation: %w", err)
	}

	if w.maxFiles > 0 {
		_ = os.Remove(rotatedName(w.filePath, w.maxFiles))
	}

	last := w.maxFiles
	if last <= 0 {
		// unlimited: find the first free slot
		last = 1
		for {
			if _, err := os.Stat(rotatedName(w.filePath, last)); os.IsNotExist(err) {
				break
			}
			last++
		}
	}

	for i := last - 1; i >= 1; i-- {
		src := rotatedName(w.filePath, i)
		if _, err := os.Stat(src); err == nil {
			if err := os.Rename(src, rotatedName(w.filePath, i+1)); err != nil {
				return fmt.Errorf("failed to shift rotated log %s: %w", src, err)
			}
		}
	}

	if err := os.Rename(w.filePath, rotatedName(w.filePath, 1)); err != nil {
		return fmt.Errorf("failed to rotate log %s: %w", w.filePath, err)
	}

	return w.openLocked()
}

func rotatedName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

// Flush flushes the buffer to the OS. It does not fsync.
func (w *BufferedFileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.flushLocked()
}

func (w *BufferedFileWriter) flushLocked() error {
	if w.writer == nil || w.closed {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

// Sync flushes the buffer and syncs the file to disk.
func (w *BufferedFileWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushLocked(); err != nil {
		return err
	}
	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync file: %w", err)
		}
	}
	return nil
}

// Close flushes, syncs and closes the file. It is idempotent.
func (w *BufferedFileWriter) Close() error {
	w.mu.Lock()
	if w.closed || w.closing {
		w.mu.Unlock()
		return nil
	}
	w.closing = true
	w.mu.Unlock()

	if w.flushInterval > 0 {
		close(w.stopFlush)
	}
	<-w.flushDone

	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	if err := w.flushLocked(); err != nil {
		errs = append(errs, err)
	}
	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("failed to sync file: %w", err))
		}
		if err := w.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close file: %w", err))
		}
		w.file = nil
	}
	w.writer = nil
	w.closed = true

	return errors.Join(errs...)
}

// FilePath returns the path of the underlying file
func (w *BufferedFileWriter) FilePath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filePath
}

// Buffered returns the number of bytes buffered but not yet written
func (w *BufferedFileWriter) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writer == nil {
		return 0
	}
	return w.writer.Buffered()
}

var (
	_ io.Writer = (*BufferedFileWriter)(nil)
	_ io.Closer = (*BufferedFileWriter)(nil)
)
