// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ArchiveHandle is an opened archive container. Logical names use "/"
// separators and are matched case-insensitively.
type ArchiveHandle interface {
	// Contains reports whether name is stored in the container.
	Contains(name string) bool
	// ReadFile returns the full, decompressed content of name.
	ReadFile(name string) ([]byte, error)
	// List returns logical paths under prefix whose names end with ext.
	// An empty ext matches every file.
	List(prefix, ext string) []string
	// Close releases the container.
	Close() error
}

// ArchiveStore opens containers of one file extension.
type ArchiveStore interface {
	// Ext returns the container extension including the dot, for example ".pbo".
	Ext() string
	// Open opens the container at name on fsys.
	Open(fsys afero.Fs, name string) (ArchiveHandle, error)
}

// DefaultStores returns the preferred PBO store followed by the legacy zip store.
func DefaultStores() []ArchiveStore {
	return []ArchiveStore{PBOStore{}, ZipStore{}}
}

// storeFor returns the store registered for the extension of name.
func storeFor(stores []ArchiveStore, name string) (ArchiveStore, bool) {
	ext := strings.ToLower(path.Ext(name))
	for _, s := range stores {
		if strings.ToLower(s.Ext()) == ext {
			return s, true
		}
	}

	return nil, false
}

// storeExts returns registered extensions in preference order.
func storeExts(stores []ArchiveStore) []string {
	exts := make([]string, 0, len(stores))
	for _, s := range stores {
		exts = append(exts, s.Ext())
	}

	return exts
}

// entryIndex is a case-insensitive name index shared by store handles.
type entryIndex[T any] struct {
	// byKey maps lookup keys to stored values.
	byKey map[string]T
	// names keeps normalized logical names sorted for listing.
	names []string
}

// newEntryIndex returns an empty index sized for n entries.
func newEntryIndex[T any](n int) *entryIndex[T] {
	return &entryIndex[T]{byKey: make(map[string]T, n), names: make([]string, 0, n)}
}

// add stores v under the normalized name. The first entry of a name wins.
func (x *entryIndex[T]) add(name string, v T) {
	normalized := NormalizePath(name)
	if normalized == "" {
		return
	}

	key := strings.ToLower(normalized)
	if _, ok := x.byKey[key]; ok {
		return
	}

	x.byKey[key] = v
	x.names = append(x.names, normalized)
}

// finish sorts names for deterministic listing.
func (x *entryIndex[T]) finish() {
	sort.Strings(x.names)
}

// get returns the value stored for name.
func (x *entryIndex[T]) get(name string) (T, bool) {
	v, ok := x.byKey[lookupKey(name)]
	return v, ok
}

// list returns names under prefix with suffix ext.
func (x *entryIndex[T]) list(prefix, ext string) []string {
	prefix = strings.ToLower(NormalizePath(prefix))
	if prefix != "" {
		prefix += "/"
	}
	ext = strings.ToLower(ext)

	var out []string
	for _, name := range x.names {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		if ext != "" && !strings.HasSuffix(lower, ext) {
			continue
		}

		out = append(out, name)
	}

	return out
}
