// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

// ZipStore opens legacy ".pk4" zip containers.
type ZipStore struct{}

// Ext returns ".pk4".
func (ZipStore) Ext() string {
	return ".pk4"
}

// Open reads the zip central directory and keeps the file open.
func (ZipStore) Open(fsys afero.Fs, name string) (ArchiveHandle, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	zr, err := zip.NewReader(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: read zip: %w", name, err)
	}

	h := &zipHandle{file: f, index: newEntryIndex[*zip.File](len(zr.File))}
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || strings.Contains(zf.Name, "..") {
			continue
		}

		h.index.add(zf.Name, zf)
	}
	h.index.finish()

	return h, nil
}

// zipHandle is the zip archive handle.
type zipHandle struct {
	// file is the owned archive file.
	file afero.File
	// index maps logical names to zip members.
	index *entryIndex[*zip.File]
	// mu guards closed.
	mu     sync.Mutex
	closed bool
}

// Contains reports whether name is a zip member.
func (h *zipHandle) Contains(name string) bool {
	_, ok := h.index.get(name)
	return ok
}

// List returns member names under prefix ending in ext.
func (h *zipHandle) List(prefix, ext string) []string {
	return h.index.list(prefix, ext)
}

// ReadFile inflates one member.
func (h *zipHandle) ReadFile(name string) ([]byte, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	zf, ok := h.index.get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}

	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("open member %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read member %s: %w", name, err)
	}

	return data, nil
}

// Close closes the archive file.
func (h *zipHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	h.closed = true
	return h.file.Close()
}
