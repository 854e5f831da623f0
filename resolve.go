// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"fmt"
	"io"
	"os"
	"slices"

	"go.uber.org/zap"
)

// Resolve walks the search list for relative and returns the first source
// that can serve it. Archives are skipped when they do not contain the path
// or fail the pure gate; directories are probed on disk. With SearchAddons
// the addon pool is searched last. A miss returns ErrNotFound.
func (fs *FileSystem) Resolve(relative string, flags SearchFlags, opts ReadOptions) (*File, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fs.requireStarted("Resolve")
	f, _, err := fs.resolve(relative, flags, opts)
	return f, err
}

// OpenFileRead resolves relative through directories, archives and the addon
// pool with copy-on-demand enabled.
func (fs *FileSystem) OpenFileRead(relative string) (*File, error) {
	return fs.Resolve(relative, SearchAll, ReadOptions{})
}

// ReadFile returns the full content of relative.
func (fs *FileSystem) ReadFile(relative string) ([]byte, error) {
	f, err := fs.OpenFileRead(relative)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relative, err)
	}

	return data, nil
}

// FileIsInArchive reports whether any archive on the active list contains relative.
func (fs *FileSystem) FileIsInArchive(relative string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fs.requireStarted("FileIsInArchive")
	rel, err := ValidatePath(relative)
	if err != nil {
		return false
	}

	for a := range fs.search.Archives() {
		if a.Contains(rel) {
			return true
		}
	}

	return false
}

// FindFile reports where relative would be served from. An addon source not
// enabled for search yields FindAddon; with scheduleAddons its checksum is
// queued so the next Restart activates it.
func (fs *FileSystem) FindFile(relative string, scheduleAddons bool) FindResult {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fs.requireStarted("FindFile")
	f, src, err := fs.resolve(relative, SearchAll, ReadOptions{DisableCopy: true})
	if err != nil {
		return FindNo
	}
	_ = f.Close()

	if src == nil || !src.Addon || src.AddonSearch() {
		return FindYes
	}

	if scheduleAddons {
		fs.pendingMu.Lock()
		if !slices.Contains(fs.pending, src.Checksum) {
			fs.pending = append(fs.pending, src.Checksum)
		}
		fs.pendingMu.Unlock()
	}

	return FindAddon
}

// resolve is the search walk. Callers hold mu.
func (fs *FileSystem) resolve(relative string, flags SearchFlags, opts ReadOptions) (*File, *Archive, error) {
	rel, err := ValidatePath(relative)
	if err != nil {
		fs.metrics.resolved(outcomeRejected)
		return nil, nil, err
	}

	for _, e := range fs.search.All() {
		switch e.Kind {
		case KindArchive:
			if flags&SearchArchives == 0 {
				continue
			}

			if f := fs.readArchive(e.Archive, rel, flags, false); f != nil {
				fs.metrics.resolved(outcomeArchive)
				return f, e.Archive, nil
			}
		case KindDirectory:
			if flags&SearchDirs == 0 {
				continue
			}

			if f := fs.readDirectory(e.Dir, rel, opts); f != nil {
				fs.metrics.resolved(outcomeDirectory)
				return f, nil, nil
			}
		}
	}

	if flags&SearchAddons != 0 {
		for a := range fs.pool.Archives() {
			if f := fs.readArchive(a, rel, flags|NoReference, true); f != nil {
				fs.metrics.resolved(outcomeAddon)
				return f, a, nil
			}
		}
	}

	fs.metrics.resolved(outcomeMiss)
	fs.log.Debug("can't find file", zap.String("path", rel))
	return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
}

// readArchive serves rel from a when present and allowed. Pool archives are
// not pure-gated.
func (fs *FileSystem) readArchive(a *Archive, rel string, flags SearchFlags, pool bool) *File {
	if !a.Contains(rel) {
		return nil
	}

	if !pool && !fs.pureAllows(a) {
		return nil
	}

	data, err := a.ReadFile(rel)
	if err != nil {
		fs.log.Warn("archive read failed", zap.String("archive", a.Path), zap.String("path", rel), zap.Error(err))
		return nil
	}

	if flags&NoReference == 0 && a.referenced.CompareAndSwap(false, true) {
		fs.log.Debug("adding archive to referenced set", zap.String("path", rel), zap.String("archive", a.Path))
	}

	fs.log.Debug("found in archive", zap.String("path", rel), zap.String("archive", a.Path), zap.Bool("pool", pool))
	return newArchiveFile(rel, a, data, pool)
}

// readDirectory opens rel under d. A miss runs copy-on-demand.
func (fs *FileSystem) readDirectory(d *Directory, rel string, opts ReadOptions) *File {
	osPath := d.OSPath(rel)
	f, err := fs.fsys.Open(osPath)
	if err == nil {
		if fi, statErr := f.Stat(); statErr != nil || fi.IsDir() {
			_ = f.Close()
			f = nil
			err = os.ErrNotExist
		}
	}

	if err != nil {
		if !opts.DisableCopy {
			fs.copyOnDemand(d, rel, osPath)
		}

		return nil
	}

	fs.log.Debug("found in directory", zap.String("path", rel), zap.String("os_path", osPath))
	return newOSFile(rel, osPath, f, ModeRead, Origin{Kind: KindDirectory, Root: d.Root, Game: d.Game})
}
