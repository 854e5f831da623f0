// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"io"
	"maps"
	"path"
	"strings"

	"go.uber.org/zap"
)

// Map screenshot locations.
const (
	splashDir      = "guis/assets/splash/"
	splashAddonDir = "guis/assets/splash/addon/"
	splashDefault  = "guis/assets/splash/pdtempa"
)

// MapCount returns the number of declared maps: declaration manager maps
// followed by addon manifest maps from the search list and the addon pool.
func (fs *FileSystem) MapCount() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n := 0
	if fs.opts.Decls != nil {
		n = fs.opts.Decls.MapCount()
	}

	for _, list := range []*SearchList{&fs.search, &fs.pool} {
		for a := range list.Archives() {
			if a.Addon && a.Info != nil {
				n += len(a.Info.Maps)
			}
		}
	}

	return n
}

// MapDecl returns map declaration i in MapCount order. Declaration manager
// entries get a "path" key holding the declaration name.
func (fs *FileSystem) MapDecl(i int) (map[string]string, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if i < 0 {
		return nil, false
	}

	if fs.opts.Decls != nil {
		n := fs.opts.Decls.MapCount()
		if i < n {
			name, decl := fs.opts.Decls.MapDecl(i)
			out := maps.Clone(decl)
			if out == nil {
				out = make(map[string]string, 1)
			}
			out["path"] = name

			return out, true
		}
		i -= n
	}

	for _, list := range []*SearchList{&fs.search, &fs.pool} {
		for a := range list.Archives() {
			if !a.Addon || a.Info == nil {
				continue
			}

			if i < len(a.Info.Maps) {
				return maps.Clone(a.Info.Maps[i]), true
			}
			i -= len(a.Info.Maps)
		}
	}

	return nil, false
}

// FindMapScreenshot returns the logical path of the splash image for mapPath.
// A screenshot only present in the addon pool is copied to the addon splash
// directory under the save root.
func (fs *FileSystem) FindMapScreenshot(mapPath string) string {
	name := path.Base(strings.ReplaceAll(mapPath, `\`, "/"))
	name = strings.TrimSuffix(name, path.Ext(name))

	shot := splashDir + name + ".tga"
	if f, err := fs.Resolve(shot, SearchDirs|SearchArchives, ReadOptions{}); err == nil {
		_ = f.Close()
		return shot
	}

	f, err := fs.Resolve(shot, SearchAddons, ReadOptions{DisableCopy: true})
	if err != nil {
		return splashDefault
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		return splashDefault
	}

	addonShot := splashAddonDir + name + ".tga"
	if err := fs.WriteFile(addonShot, data, ""); err != nil {
		fs.log.Warn("could not save addon screenshot", zap.String("path", addonShot), zap.Error(err))
		return splashDefault
	}

	return addonShot
}
