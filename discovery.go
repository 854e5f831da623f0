// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// setupGameDirectories adds game under every configured root in setup order.
func (fs *FileSystem) setupGameDirectories(game string) {
	for _, root := range fs.opts.Roots.ordered() {
		fs.addGameDirectory(root, game)
	}
}

// addGameDirectory pushes root/game to the front of the search list and
// then pushes each of its archives in front of it. Archives are visited in
// ascending filename order, so the list holds them in descending order: a
// later filename overrides an earlier one, and any archive overrides the
// loose files of its own directory.
func (fs *FileSystem) addGameDirectory(root, game string) {
	for _, e := range fs.search.All() {
		if e.Kind == KindDirectory && e.Dir.Root == root && e.Dir.Game == game {
			return
		}
	}

	fs.gameFolder = game
	dir := DirectoryEntry(root, game)
	fs.search.PushFront(dir)
	fs.log.Debug("added search directory", zap.String("root", root), zap.String("game", game))

	for _, name := range fs.archiveCandidates(dir.Dir.OSPath("")) {
		osPath := dir.Dir.OSPath(name)
		a, err := fs.openArchive(osPath)
		if err != nil {
			fs.log.Warn("skipping archive", zap.String("path", osPath), zap.Error(err))
			continue
		}

		fs.search.PushFront(ArchiveEntry(a))
		fs.metrics.archiveLoaded(strings.ToLower(path.Ext(name)))
		fs.log.Info("loaded archive",
			zap.String("path", osPath),
			zap.Uint32("checksum", a.Checksum),
			zap.Bool("addon", a.Addon),
		)
	}
}

// archiveCandidates lists archive filenames in dir, preferred extensions
// first, then sorts them ascending (case-insensitive, raw tiebreak).
func (fs *FileSystem) archiveCandidates(dir string) []string {
	dir = strings.TrimSuffix(dir, "/")
	infos, err := afero.ReadDir(fs.fsys, dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, ext := range storeExts(fs.opts.Stores) {
		for _, fi := range infos {
			if fi.IsDir() || !strings.EqualFold(path.Ext(fi.Name()), ext) {
				continue
			}

			names = append(names, fi.Name())
		}
	}

	sort.SliceStable(names, func(i, j int) bool {
		li, lj := strings.ToLower(names[i]), strings.ToLower(names[j])
		if li != lj {
			return li < lj
		}

		return names[i] < names[j]
	})

	return names
}

// openArchive checksums, opens and inspects one archive file.
func (fs *FileSystem) openArchive(osPath string) (*Archive, error) {
	store, ok := storeFor(fs.opts.Stores, osPath)
	if !ok {
		return nil, ErrUnknownStore
	}

	handle, err := store.Open(fs.fsys, osPath)
	if err != nil {
		return nil, err
	}

	sum, err := archiveChecksum(handle, fs.opts.Checksum)
	if err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("checksum %s: %w", osPath, err)
	}

	a := NewArchive(osPath, sum, handle)
	addon, info, err := readAddonManifest(a)
	if err != nil {
		fs.log.Warn("bad addon manifest", zap.String("path", osPath), zap.Error(err))
	}
	a.Addon = addon
	a.Info = info

	return a, nil
}
