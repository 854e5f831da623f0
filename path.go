// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"fmt"
	"path"
	"strings"
)

// ValidatePath checks a logical path before it reaches the search list.
// It rejects empty paths and any path containing ".." or "::", strips one
// leading separator, and converts "\" to "/".
func ValidatePath(logical string) (string, error) {
	if logical == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	if strings.Contains(logical, "..") || strings.Contains(logical, "::") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, logical)
	}

	if logical[0] == '/' || logical[0] == '\\' {
		logical = logical[1:]
	}

	if logical == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	return strings.ReplaceAll(logical, `\`, "/"), nil
}

// BuildOSPath joins root, game and relative with "/" separators.
// The game segment is omitted when empty. All "\" are converted to "/".
func BuildOSPath(root, game, relative string) string {
	var p string
	if game == "" {
		p = root + "/" + relative
	} else {
		p = root + "/" + game + "/" + relative
	}

	return strings.ReplaceAll(p, `\`, "/")
}

// NormalizePath converts an archive/internal path to normalized slash-separated form.
// It trims spaces, accepts both "/" and "\", removes leading "./" and "/", and cleans "." segments.
func NormalizePath(raw string) string {
	raw = normalizePathForMatching(raw)
	raw = strings.TrimPrefix(raw, "/")
	raw = path.Clean("/" + raw)
	raw = strings.TrimPrefix(raw, "/")
	if raw == "." {
		return ""
	}

	return strings.TrimSuffix(raw, "/")
}

// normalizePathForMatching normalizes user/input paths for matcher use.
func normalizePathForMatching(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, `\`, `/`)
	return strings.TrimPrefix(p, "./")
}

// normalizeArchiveEntryPath converts input path to canonical PBO form with "\" separators.
func normalizeArchiveEntryPath(raw string) (string, error) {
	normalized := NormalizePath(raw)
	if normalized == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryPath, raw)
	}

	return strings.ReplaceAll(normalized, "/", `\`), nil
}

// lookupKey is the case-insensitive key used by archive indexes.
func lookupKey(logical string) string {
	return strings.ToLower(NormalizePath(logical))
}

// isSeparator reports whether c is a path separator on any supported platform.
func isSeparator(c byte) bool {
	return c == '/' || c == '\\'
}

// findComponent returns the index of the first occurrence of name in p that is
// delimited by separators on both sides, or -1.
func findComponent(p, name string) int {
	if name == "" {
		return -1
	}

	from := 0
	for {
		idx := strings.Index(p[from:], name)
		if idx < 0 {
			return -1
		}

		idx += from
		end := idx + len(name)
		if idx > 0 && isSeparator(p[idx-1]) && end < len(p) && isSeparator(p[end]) {
			return idx
		}

		from = idx + 1
	}
}

// osPathToRelative maps an absolute physical path back to a logical path by
// locating the first mod directory in games that appears as a whole path
// component. An archive segment ("<ext>/") is skipped when present.
func osPathToRelative(osPath string, games []string, archiveExts []string) (string, bool) {
	base := -1
	for _, game := range games {
		if base = findComponent(osPath, game); base >= 0 {
			break
		}
	}
	if base < 0 {
		return "", false
	}

	rest := osPath[base:]
	lower := strings.ToLower(rest)
	for _, ext := range archiveExts {
		if idx := strings.Index(lower, strings.ToLower(ext)+"/"); idx >= 0 {
			rel := rest[idx+len(ext)+1:]
			return strings.ReplaceAll(rel, `\`, "/"), rel != ""
		}
	}

	sep := strings.IndexAny(rest, `/\`)
	if sep < 0 || sep == len(rest)-1 {
		return "", false
	}

	return strings.ReplaceAll(rest[sep+1:], `\`, "/"), true
}
