// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DirectoryExt as a listing extension selects directories instead of files.
const DirectoryExt = "/"

// ListFiles returns logical paths of the direct children of relative whose
// names end with ext (case-insensitive; empty matches all). Results from all
// directories and pure-allowed archives are merged without duplicates;
// paths differing only in case count as one.
func (fs *FileSystem) ListFiles(relative, ext string, sorted bool) ([]string, error) {
	return fs.list(relative, ext, sorted, false)
}

// ListFilesTree is ListFiles over the whole subtree of relative.
func (fs *FileSystem) ListFilesTree(relative, ext string, sorted bool) ([]string, error) {
	return fs.list(relative, ext, sorted, true)
}

func (fs *FileSystem) list(relative, ext string, sorted, tree bool) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fs.requireStarted("ListFiles")

	rel := ""
	if trimmed := strings.Trim(strings.ReplaceAll(relative, `\`, "/"), "/"); trimmed != "" {
		v, err := ValidatePath(trimmed)
		if err != nil {
			return nil, err
		}
		rel = v
	}

	var (
		out  []string
		seen = make(map[string]struct{})
	)
	// Keys are case-folded like archive lookups; the first spelling wins.
	add := func(name string) {
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}

		seen[key] = struct{}{}
		out = append(out, name)
	}

	for _, e := range fs.search.All() {
		switch e.Kind {
		case KindDirectory:
			for _, name := range fs.listDirectory(e.Dir, rel, ext, tree) {
				add(name)
			}
		case KindArchive:
			if !fs.pureAllows(e.Archive) {
				continue
			}

			for _, name := range listArchive(e.Archive, rel, ext, tree) {
				add(name)
			}
		}
	}

	if sorted {
		sort.Strings(out)
	}

	return out, nil
}

// listDirectory scans the physical directory of rel under d.
func (fs *FileSystem) listDirectory(d *Directory, rel, ext string, tree bool) []string {
	dir := strings.TrimSuffix(d.OSPath(rel), "/")
	wantDirs := ext == DirectoryExt

	if !tree {
		infos, err := afero.ReadDir(fs.fsys, dir)
		if err != nil {
			return nil
		}

		var out []string
		for _, fi := range infos {
			if fi.IsDir() != wantDirs || !wantDirs && !hasExt(fi.Name(), ext) {
				continue
			}

			out = append(out, joinLogical(rel, fi.Name()))
		}

		return out
	}

	var out []string
	err := afero.Walk(fs.fsys, dir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if fi.IsDir() != wantDirs || !wantDirs && !hasExt(fi.Name(), ext) {
			return nil
		}

		sub, err := filepath.Rel(dir, p)
		if err != nil || sub == "." {
			return nil
		}

		out = append(out, joinLogical(rel, filepath.ToSlash(sub)))
		return nil
	})
	if err != nil {
		fs.log.Debug("walk failed", zap.String("dir", dir), zap.Error(err))
	}

	return out
}

// listArchive lists rel inside a. Non-tree listings keep direct children;
// DirectoryExt derives directory names from member paths.
func listArchive(a *Archive, rel, ext string, tree bool) []string {
	wantDirs := ext == DirectoryExt
	filter := ext
	if wantDirs {
		filter = ""
	}

	prefix := ""
	if rel != "" {
		prefix = rel + "/"
	}

	var out []string
	for _, name := range a.List(rel, filter) {
		if len(name) <= len(prefix) {
			continue
		}
		rest := name[len(prefix):]

		if !wantDirs {
			if tree || !strings.Contains(rest, "/") {
				out = append(out, name)
			}
			continue
		}

		segments := strings.Split(rest, "/")
		segments = segments[:len(segments)-1]
		if !tree && len(segments) > 1 {
			segments = segments[:1]
		}
		for i := range segments {
			out = append(out, joinLogical(rel, strings.Join(segments[:i+1], "/")))
		}
	}

	return out
}

// hasExt reports whether name ends with ext, ignoring case.
func hasExt(name, ext string) bool {
	return ext == "" || strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext))
}

// joinLogical joins a logical directory and a child name.
func joinLogical(dir, name string) string {
	if dir == "" {
		return name
	}

	return dir + "/" + name
}
