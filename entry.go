// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// EntryKind tags the variant held by a search list Entry.
type EntryKind uint8

// Search list entry kinds.
const (
	// KindDirectory is a root directory plus mod directory.
	KindDirectory EntryKind = iota + 1
	// KindArchive is an opened archive container.
	KindArchive
)

// String returns the lowercase kind name.
func (k EntryKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindArchive:
		return "archive"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Entry is one search list element. Exactly one of Dir and Archive is set,
// matching Kind.
type Entry struct {
	// Dir is set for KindDirectory.
	Dir *Directory
	// Archive is set for KindArchive.
	Archive *Archive
	// Kind selects the active variant.
	Kind EntryKind
}

// DirectoryEntry builds a directory entry.
func DirectoryEntry(root, game string) Entry {
	return Entry{Kind: KindDirectory, Dir: &Directory{Root: root, Game: game}}
}

// ArchiveEntry builds an archive entry.
func ArchiveEntry(a *Archive) Entry {
	return Entry{Kind: KindArchive, Archive: a}
}

// Directory is a physical root combined with a mod directory name.
type Directory struct {
	// Root is the physical root path (cd, base, dev, save or config root).
	Root string
	// Game is the mod directory under Root.
	Game string
}

// OSPath returns the physical path of relative under this directory.
func (d *Directory) OSPath(relative string) string {
	return BuildOSPath(d.Root, d.Game, relative)
}

// PureStatus is the cached pure-mode eligibility of an archive.
type PureStatus uint32

// Pure-mode statuses.
const (
	// PureUnknown means the status has not been computed yet.
	PureUnknown PureStatus = iota
	// PureAlways means the archive is in the required checksum set.
	PureAlways
	// PureNever means the archive may not serve content in pure mode.
	PureNever
)

// String returns the lowercase status name.
func (s PureStatus) String() string {
	switch s {
	case PureUnknown:
		return "unknown"
	case PureAlways:
		return "always"
	case PureNever:
		return "never"
	default:
		return fmt.Sprintf("pure(%d)", uint32(s))
	}
}

// Archive is an opened archive bound to its checksum. The handle is owned
// exclusively by the archive and released once by Close.
type Archive struct {
	// handle is the store connection for this container.
	handle ArchiveHandle
	// Info holds the parsed addon manifest; nil for plain archives or bad manifests.
	Info *AddonInfo
	// Path is the physical archive path.
	Path string
	// closeErr keeps the first close result.
	closeErr error
	// closeOnce guards handle release.
	closeOnce sync.Once
	// pure caches PureStatus.
	pure atomic.Uint32
	// Checksum is computed once at discovery.
	Checksum uint32
	// referenced is set on the first read served from this archive.
	referenced atomic.Bool
	// addonSearch marks an addon enabled for resolution.
	addonSearch atomic.Bool
	// Addon reports whether the archive carries an addon manifest.
	Addon bool
}

// NewArchive wraps an opened handle. It is exported for custom discovery and tests.
func NewArchive(path string, checksum uint32, handle ArchiveHandle) *Archive {
	return &Archive{Path: path, Checksum: checksum, handle: handle}
}

// Contains reports whether the archive holds logical path name.
func (a *Archive) Contains(name string) bool {
	if a == nil || a.handle == nil {
		return false
	}

	return a.handle.Contains(name)
}

// ReadFile returns the full content of name.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	if a == nil || a.handle == nil {
		return nil, ErrClosed
	}

	return a.handle.ReadFile(name)
}

// List returns logical paths under prefix with the given suffix.
func (a *Archive) List(prefix, ext string) []string {
	if a == nil || a.handle == nil {
		return nil
	}

	return a.handle.List(prefix, ext)
}

// Referenced reports whether the archive has served a referencing read.
func (a *Archive) Referenced() bool {
	return a.referenced.Load()
}

// AddonSearch reports whether the addon is enabled for resolution.
func (a *Archive) AddonSearch() bool {
	return a.addonSearch.Load()
}

// Close releases the store handle. Later calls return the first result.
func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		if a.handle != nil {
			a.closeErr = a.handle.Close()
			a.handle = nil
		}
	})

	return a.closeErr
}

// String formats the archive for search path listings.
func (a *Archive) String() string {
	return fmt.Sprintf("%s (0x%08x)", a.Path, a.Checksum)
}
