// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// copyOnDemand applies the copy policy after rel missed in directory d, so
// a later read can find the file locally. Sources that do not exist are
// skipped. Failures are logged and never fail the read. Callers hold mu.
func (fs *FileSystem) copyOnDemand(d *Directory, rel, osPath string) {
	roots := fs.opts.Roots
	if fs.opts.CopyPolicy == CopyNone || roots.Save == "" {
		return
	}

	dst := BuildOSPath(roots.Save, fs.gameFolder, rel)
	fromCD := roots.CD != "" && d.Root == roots.CD
	fromSave := d.Root == roots.Save
	fromBase := roots.Base != "" && d.Root == roots.Base

	switch fs.opts.CopyPolicy {
	case CopyFromCD:
		if fromCD {
			fs.copyTo(osPath, dst, false)
		}
	case CopyRefresh:
		switch {
		case fromCD:
			fs.copyTo(osPath, dst, false)
		case (fromSave || fromBase) && roots.CD != "":
			fs.copyTo(BuildOSPath(roots.CD, d.Game, rel), dst, true)
		}
	case CopyFromCDOrBase:
		if fromCD || fromBase {
			fs.copyTo(osPath, dst, false)
		}
	case CopyFromCDNotBase:
		if fromCD && !fromBase {
			fs.copyTo(osPath, dst, false)
		}
	}
}

// copyTo copies src to dst preserving the source modification time. With
// onlyStale the copy is skipped unless dst is missing or older than src.
func (fs *FileSystem) copyTo(src, dst string, onlyStale bool) {
	if src == dst {
		return
	}

	srcInfo, err := fs.fsys.Stat(src)
	if err != nil || srcInfo.IsDir() {
		return
	}

	if onlyStale {
		if dstInfo, err := fs.fsys.Stat(dst); err == nil && !srcInfo.ModTime().After(dstInfo.ModTime()) {
			return
		}
	}

	if err := fs.copyFile(src, dst, srcInfo.ModTime()); err != nil {
		fs.metrics.copied(false)
		fs.log.Warn("copy on demand failed", zap.String("from", src), zap.String("to", dst), zap.Error(err))
		return
	}

	fs.metrics.copied(true)
	fs.log.Debug("copied on demand", zap.String("from", src), zap.String("to", dst))
}

// CopyFile copies one physical file to another, creating parent directories.
func (fs *FileSystem) CopyFile(fromOSPath, toOSPath string) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fs.requireStarted("CopyFile")
	fi, err := fs.fsys.Stat(fromOSPath)
	if err != nil {
		fs.log.Warn("could not open source file", zap.String("path", fromOSPath), zap.Error(err))
		return fmt.Errorf("stat source: %w", err)
	}

	if err := fs.copyFile(fromOSPath, toOSPath, fi.ModTime()); err != nil {
		fs.log.Warn("copy failed", zap.String("from", fromOSPath), zap.String("to", toOSPath), zap.Error(err))
		return err
	}

	return nil
}

// copyFile streams src into dst and stamps dst with modTime after close.
func (fs *FileSystem) copyFile(src, dst string, modTime time.Time) error {
	in, err := fs.fsys.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	if err := fs.fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	out, err := fs.fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}

	if err := fs.fsys.Chtimes(dst, modTime, modTime); err != nil {
		return fmt.Errorf("set destination time: %w", err)
	}

	return nil
}
