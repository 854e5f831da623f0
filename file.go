// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Origin describes the search list entry that produced a file.
type Origin struct {
	// Kind is KindDirectory or KindArchive.
	Kind EntryKind
	// Root and Game identify a directory source.
	Root string
	Game string
	// Archive is the physical archive path for archive sources.
	Archive string
	// Checksum is the archive checksum for archive sources.
	Checksum uint32
	// Addon reports an archive served from an addon.
	Addon bool
	// Pool reports an archive served from the addon pool.
	Pool bool
}

// File is an open logical or physical file. Archive files are fully buffered;
// directory files stream from the underlying filesystem.
type File struct {
	// r serves reads; nil for write handles.
	r io.ReadSeeker
	// w serves writes; nil for read handles.
	w io.Writer
	// c releases the underlying file, if any.
	c io.Closer
	modTime time.Time
	origin  Origin
	name    string
	path    string
	size    int64
	mode    Mode
	mu      sync.Mutex
	closed  bool
}

// newArchiveFile wraps archive bytes.
func newArchiveFile(name string, a *Archive, data []byte, pool bool) *File {
	return &File{
		r:    bytes.NewReader(data),
		name: name,
		path: a.Path + "/" + name,
		size: int64(len(data)),
		mode: ModeRead,
		origin: Origin{
			Kind:     KindArchive,
			Archive:  a.Path,
			Checksum: a.Checksum,
			Addon:    a.Addon,
			Pool:     pool,
		},
	}
}

// newOSFile wraps an opened afero file.
func newOSFile(name, osPath string, f afero.File, mode Mode, origin Origin) *File {
	file := &File{name: name, path: osPath, c: f, mode: mode, origin: origin}
	if mode == ModeRead {
		file.r = f
	} else {
		file.w = f
	}

	if fi, err := f.Stat(); err == nil {
		file.size = fi.Size()
		file.modTime = fi.ModTime()
	}

	return file
}

// Name returns the logical (or explicit OS) name used to open the file.
func (f *File) Name() string {
	return f.name
}

// FullPath returns the physical path, or "<archive>/<name>" for archive files.
func (f *File) FullPath() string {
	return f.path
}

// Size returns the size at open time.
func (f *File) Size() int64 {
	return f.size
}

// ModTime returns the modification time at open time; zero for archive files.
func (f *File) ModTime() time.Time {
	return f.modTime
}

// Origin returns the source entry description.
func (f *File) Origin() Origin {
	return f.origin
}

// Mode returns the open mode.
func (f *File) Mode() Mode {
	return f.mode
}

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	if f.r == nil {
		return 0, ErrWriteOnly
	}

	return f.r.Read(p)
}

// Seek implements io.Seeker for read handles.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.r == nil {
		return 0, ErrWriteOnly
	}

	return f.r.Seek(offset, whence)
}

// Write implements io.Writer for write and append handles.
func (f *File) Write(p []byte) (int, error) {
	if f.w == nil {
		return 0, ErrReadOnly
	}

	n, err := f.w.Write(p)
	f.size += int64(n)
	return n, err
}

// Close releases the file. Later calls are no-ops.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true
	var err error
	if f.c != nil {
		err = f.c.Close()
	}
	return err
}
