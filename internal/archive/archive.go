// Package archive stores exported frame sequences: as loose PNG files in a
// folder, as a zip archive, or as a SQLite frame pack.
package archive

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FrameWriter receives encoded PNG frames. Frames may arrive in any order;
// each index is written once. Close finalizes the output; Abort instead
// removes whatever was written so far.
type FrameWriter interface {
	WriteFrame(index int, png []byte) error
	Close() error
	Abort() error
}

// Kind identifies a sink type.
type Kind string

const (
	KindFolder Kind = "folder"
	KindZip    Kind = "zip"
	KindPack   Kind = "pack"
)

// PackExt is the file extension of SQLite frame packs.
const PackExt = ".wavepack"

// KindFromPath infers the sink type from the output path.
func KindFromPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return KindZip
	case PackExt, ".sqlite", ".db":
		return KindPack
	default:
		return KindFolder
	}
}

// FrameName returns the file name of a frame, e.g. wave_normal_0007.png.
func FrameName(mode string, index int) string {
	return fmt.Sprintf("wave_%s_%04d.png", mode, index)
}

// DefaultName returns the default output name for an export of frames
// frames in the given mode, without extension.
func DefaultName(mode string, frames int) string {
	return fmt.Sprintf("fourier_waves_%s_%dframes", mode, frames)
}

// Create opens a sink of the given kind at path.
func Create(kind Kind, path string, meta Metadata) (FrameWriter, error) {
	switch kind {
	case KindFolder:
		return NewFolder(path, meta.Mode)
	case KindZip:
		return NewZip(path, meta.Mode)
	case KindPack:
		return NewPack(path, meta)
	default:
		return nil, fmt.Errorf("unknown archive kind %q", kind)
	}
}

// Folder writes each frame to its own file.
type Folder struct {
	dir     string
	mode    string
	mu      sync.Mutex
	written []string
}

// NewFolder creates dir if needed and returns a writer into it.
func NewFolder(dir, mode string) (*Folder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Folder{dir: dir, mode: mode}, nil
}

// WriteFrame writes png to the frame's file.
func (f *Folder) WriteFrame(index int, png []byte) error {
	path := filepath.Join(f.dir, FrameName(f.mode, index))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", index, err)
	}
	f.mu.Lock()
	f.written = append(f.written, path)
	f.mu.Unlock()
	return nil
}

// Close is a no-op.
func (f *Folder) Close() error { return nil }

// Abort removes the frames written by this writer. Other files in the
// directory are left alone.
func (f *Folder) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, path := range f.written {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	f.written = nil
	return nil
}

// Zip writes frames into a single zip archive. PNG data is already
// deflated, so entries are stored uncompressed.
type Zip struct {
	path string
	file *os.File
	zw   *zip.Writer
	mode string
	mu   sync.Mutex
}

// NewZip creates the archive at path.
func NewZip(path, mode string) (*Zip, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create zip: %w", err)
	}
	return &Zip{path: path, file: f, zw: zip.NewWriter(f), mode: mode}, nil
}

// WriteFrame appends a frame entry.
func (z *Zip) WriteFrame(index int, png []byte) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	w, err := z.zw.CreateHeader(&zip.FileHeader{
		Name:   FrameName(z.mode, index),
		Method: zip.Store,
	})
	if err != nil {
		return fmt.Errorf("failed to add frame %d: %w", index, err)
	}
	if _, err := w.Write(png); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", index, err)
	}
	return nil
}

// Close finishes the archive and closes the file.
func (z *Zip) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if err := z.zw.Close(); err != nil {
		z.file.Close()
		return fmt.Errorf("failed to finish zip: %w", err)
	}
	if err := z.file.Close(); err != nil {
		return fmt.Errorf("failed to close zip: %w", err)
	}
	return nil
}

// Abort closes and deletes the archive.
func (z *Zip) Abort() error {
	z.mu.Lock()
	defer z.mu.Unlock()

	z.file.Close()
	if err := os.Remove(z.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove zip: %w", err)
	}
	return nil
}
