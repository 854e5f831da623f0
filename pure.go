// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

// packStatus returns the cached pure status of a, computing it on first use.
// Callers hold mu.
func (fs *FileSystem) packStatus(a *Archive) PureStatus {
	if s := PureStatus(a.pure.Load()); s != PureUnknown {
		return s
	}

	status := PureNever
	if _, ok := fs.pure[a.Checksum]; ok {
		status = PureAlways
	}

	a.pure.CompareAndSwap(uint32(PureUnknown), uint32(status))
	return PureStatus(a.pure.Load())
}

// pureAllows reports whether a may serve content under the current pure set.
func (fs *FileSystem) pureAllows(a *Archive) bool {
	if len(fs.pure) == 0 {
		return true
	}

	return fs.packStatus(a) == PureAlways
}

// PureMode reports whether a pure checksum set is active.
func (fs *FileSystem) PureMode() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return len(fs.pure) > 0
}

// PackStatus returns the pure status of the active archive with checksum.
// Unknown archives report PureUnknown.
func (fs *FileSystem) PackStatus(checksum uint32) PureStatus {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	a := fs.archiveForChecksum(checksum, true)
	if a == nil {
		return PureUnknown
	}

	return fs.packStatus(a)
}
