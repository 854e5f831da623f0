// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// OpenFileWrite creates or truncates relative under the write root: root when
// configured, otherwise the save root. Archives are never consulted.
func (fs *FileSystem) OpenFileWrite(relative string, root Root) (*File, error) {
	return fs.openForWrite(relative, root, ModeWrite)
}

// OpenFileAppend opens relative for appending under the write root.
func (fs *FileSystem) OpenFileAppend(relative string, root Root) (*File, error) {
	return fs.openForWrite(relative, root, ModeAppend)
}

// WriteFile replaces relative under the write root with data.
func (fs *FileSystem) WriteFile(relative string, data []byte, root Root) error {
	f, err := fs.OpenFileWrite(relative, root)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", relative, err)
	}

	return f.Close()
}

// OpenFileByMode opens relative for read, write or append. Other modes are
// a programmer error.
func (fs *FileSystem) OpenFileByMode(relative string, mode Mode) (*File, error) {
	switch mode {
	case ModeRead:
		return fs.OpenFileRead(relative)
	case ModeWrite:
		return fs.OpenFileWrite(relative, "")
	case ModeAppend:
		return fs.OpenFileAppend(relative, "")
	default:
		fs.log.Panic("bad file open mode", zap.Stringer("mode", mode))
		return nil, nil
	}
}

// OpenExplicitFileRead opens a physical path without consulting the search list.
func (fs *FileSystem) OpenExplicitFileRead(osPath string) (*File, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fs.requireStarted("OpenExplicitFileRead")
	fs.log.Debug("reading explicit file", zap.String("os_path", osPath))

	f, err := fs.fsys.Open(osPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", osPath, err)
	}

	return newOSFile(osPath, osPath, f, ModeRead, Origin{}), nil
}

// OpenExplicitFileWrite creates or truncates a physical path, creating parents.
func (fs *FileSystem) OpenExplicitFileWrite(osPath string) (*File, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fs.requireStarted("OpenExplicitFileWrite")
	return fs.createOSFile(osPath, osPath, ModeWrite, Origin{})
}

// RemoveFile deletes relative from the dev root, when configured, and from
// the save root. Missing files are not an error.
func (fs *FileSystem) RemoveFile(relative string) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fs.requireStarted("RemoveFile")
	rel, err := ValidatePath(relative)
	if err != nil {
		return err
	}

	var errs []error
	for _, root := range []string{fs.opts.Roots.Dev, fs.opts.Roots.Save} {
		if root == "" {
			continue
		}

		osPath := BuildOSPath(root, fs.gameFolder, rel)
		if err := fs.fsys.Remove(osPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", osPath, err))
		}
	}

	return errors.Join(errs...)
}

// RelativePathToOSPath returns the physical write destination of relative.
func (fs *FileSystem) RelativePathToOSPath(relative string, root Root) string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	base, err := fs.writeRoot(root)
	if err != nil {
		return ""
	}

	return BuildOSPath(base, fs.gameFolder, relative)
}

// OSPathToRelativePath maps a physical path back to a logical path by
// locating the game, game base or base game directory as a whole path
// component. It reports false when no logical path can be derived.
func (fs *FileSystem) OSPathToRelativePath(osPath string) (string, bool) {
	games := []string{fs.opts.Game, fs.opts.GameBase, fs.opts.BaseGame}
	rel, ok := osPathToRelative(osPath, games, storeExts(fs.opts.Stores))
	if !ok {
		fs.log.Warn("OSPathToRelativePath failed", zap.String("os_path", osPath))
	}

	return rel, ok
}

// openForWrite validates relative and opens it under the write root.
func (fs *FileSystem) openForWrite(relative string, root Root, mode Mode) (*File, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fs.requireStarted("OpenFileWrite")
	rel, err := ValidatePath(relative)
	if err != nil {
		return nil, err
	}

	base, err := fs.writeRoot(root)
	if err != nil {
		return nil, err
	}

	osPath := BuildOSPath(base, fs.gameFolder, rel)
	return fs.createOSFile(rel, osPath, mode, Origin{Kind: KindDirectory, Root: base, Game: fs.gameFolder})
}

// writeRoot returns the override root when configured, else the save root.
func (fs *FileSystem) writeRoot(root Root) (string, error) {
	if base := fs.opts.Roots.Get(root); base != "" {
		return base, nil
	}

	if fs.opts.Roots.Save == "" {
		return "", ErrNoWriteRoot
	}

	return fs.opts.Roots.Save, nil
}

// createOSFile creates parents and opens osPath for write or append.
func (fs *FileSystem) createOSFile(name, osPath string, mode Mode, origin Origin) (*File, error) {
	if err := fs.fsys.MkdirAll(filepath.Dir(osPath), 0o755); err != nil {
		fs.log.Warn("create directory failed", zap.String("os_path", osPath), zap.Error(err))
		return nil, fmt.Errorf("create directory for %s: %w", osPath, err)
	}

	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if mode == ModeAppend {
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}

	f, err := fs.fsys.OpenFile(osPath, flag, 0o644)
	if err != nil {
		fs.log.Warn("open for write failed", zap.String("os_path", osPath), zap.Error(err))
		return nil, fmt.Errorf("open %s: %w", osPath, err)
	}

	fs.metrics.wrote(mode)
	fs.log.Debug("writing to", zap.String("os_path", osPath), zap.Stringer("mode", mode))
	return newOSFile(name, osPath, f, mode, origin), nil
}
