package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/treelog-io/treelog/pkg/model"
)

// Rotation configures the file handler's size-based rollover.
type Rotation struct {
	// MaxFileSize in bytes; a write that would cross it triggers a
	// rotation first. Zero disables rotation.
	MaxFileSize int64

	// MaxBackups is the number of rotated files kept as path.1..path.N.
	// Zero means the active file is truncated on rotation.
	MaxBackups int
}

// File appends rendered records to a single file and rolls it to numbered
// backups when the size threshold is reached. Writes and rotations are
// serialized under one mutex so a write racing a rotation can never produce
// interleaved partial output.
type File struct {
	base
	mu       sync.Mutex
	path     string
	rotation Rotation
	f        *os.File
	size     int64
}

// NewFile creates a file handler appending to path, creating parent
// directories as needed. A disabled handler never touches the filesystem.
func NewFile(name, path string, rotation Rotation, opts Options) (*File, error) {
	h := &File{base: newBase(name, opts), path: path, rotation: rotation}
	if !opts.Enabled {
		return h, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := h.open(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *File) open() error {
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	h.f = f
	h.size = info.Size()
	return nil
}

// Emit implements Handler.
func (h *File) Emit(rec *model.Record) {
	if !h.admit(rec) {
		return
	}
	out := h.formatter.Format(rec)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.f == nil {
		// A previous failure closed the file; keep attempting future writes.
		if err := h.open(); err != nil {
			reportError(h.name, err)
			return
		}
	}

	if h.rotation.MaxFileSize > 0 && h.size > 0 && h.size+int64(len(out)) > h.rotation.MaxFileSize {
		if err := h.rotate(); err != nil {
			reportError(h.name, err)
		}
	}

	n, err := h.f.Write(out)
	h.size += int64(n)
	if err != nil {
		reportError(h.name, err)
	}
}

// rotate rolls the active file to path.1, shifting existing backups upward
// and evicting any beyond the retention count. Callers hold h.mu.
func (h *File) rotate() error {
	if err := h.f.Close(); err != nil {
		return fmt.Errorf("close before rotation: %w", err)
	}
	h.f = nil

	if h.rotation.MaxBackups <= 0 {
		if err := os.Remove(h.path); err != nil {
			return fmt.Errorf("truncate on rotation: %w", err)
		}
		return h.open()
	}

	oldest := h.backupPath(h.rotation.MaxBackups)
	if _, err := os.Stat(oldest); err == nil {
		if err := os.Remove(oldest); err != nil {
			return fmt.Errorf("evict oldest backup: %w", err)
		}
	}
	for i := h.rotation.MaxBackups - 1; i >= 1; i-- {
		from := h.backupPath(i)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := os.Rename(from, h.backupPath(i+1)); err != nil {
			return fmt.Errorf("shift backup %d: %w", i, err)
		}
	}
	if err := os.Rename(h.path, h.backupPath(1)); err != nil {
		return fmt.Errorf("roll active file: %w", err)
	}
	return h.open()
}

func (h *File) backupPath(i int) string {
	return fmt.Sprintf("%s.%d", h.path, i)
}

// Flush implements Handler.
func (h *File) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.f == nil {
		return nil
	}
	return h.f.Sync()
}

// Close implements Handler.
func (h *File) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}
