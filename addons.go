// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"slices"

	"go.uber.org/zap"
)

// resolveAddons enables requested addons and their dependency closure, then
// moves every remaining addon from the search list into the pool, keeping
// their relative order. Callers hold mu for writing.
func (fs *FileSystem) resolveAddons() {
	fs.pendingMu.Lock()
	defer fs.pendingMu.Unlock()

	if len(fs.pure) > 0 {
		fs.log.Info("restarting in pure mode", zap.Int("archives", len(fs.pure)))
	}
	if len(fs.pending) > 0 {
		fs.log.Info("restarting with addons to include", zap.Int("addons", len(fs.pending)))
	}

	for a := range fs.search.Archives() {
		if !a.Addon || a.AddonSearch() {
			continue
		}

		if fs.opts.SearchAllAddons {
			a.addonSearch.Store(true)
			continue
		}

		if fs.takePending(a.Checksum) {
			a.addonSearch.Store(true)
			fs.followAddonDependencies(a)
		}
	}

	for i := 0; i < fs.search.Len(); {
		e := fs.search.At(i)
		if e.Kind != KindArchive || !e.Archive.Addon {
			i++
			continue
		}

		fields := []zap.Field{zap.String("path", e.Archive.Path), zap.Uint32("checksum", e.Archive.Checksum)}
		if e.Archive.AddonSearch() {
			fs.log.Info("addon is on the search list", fields...)
			i++
			continue
		}

		fs.pool.Append(fs.search.RemoveAt(i))
		fs.log.Info("addon is on the addon list", fields...)
	}

	if len(fs.pending) > 0 {
		fs.log.Warn("requested addons not found", zap.Uint32s("checksums", fs.pending))
	}
	fs.pending = nil
}

// followAddonDependencies enables every dependency of a reachable through the
// search list or the pool. Callers hold pendingMu.
func (fs *FileSystem) followAddonDependencies(a *Archive) {
	if a.Info == nil {
		return
	}

	for _, dep := range a.Info.Dependencies {
		depArchive := fs.archiveForChecksum(dep, true)
		if depArchive == nil {
			fs.log.Warn("addon depends on unknown archive",
				zap.String("path", a.Path),
				zap.Uint32("checksum", a.Checksum),
				zap.Uint32("dependency", dep),
			)
			continue
		}

		if depArchive.AddonSearch() {
			continue
		}

		fs.takePending(depArchive.Checksum)
		depArchive.addonSearch.Store(true)
		fs.log.Info("addon dependency will be searched",
			zap.String("path", a.Path),
			zap.String("dependency", depArchive.Path),
		)
		fs.followAddonDependencies(depArchive)
	}
}

// takePending removes sum from pending and reports whether it was present.
// Callers hold pendingMu.
func (fs *FileSystem) takePending(sum uint32) bool {
	i := slices.Index(fs.pending, sum)
	if i < 0 {
		return false
	}

	fs.pending = slices.Delete(fs.pending, i, i+1)
	return true
}
