// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import "errors"

// Sentinel errors for filesystem and archive operations. Use errors.Is in callers.
var (
	// ErrNotFound means no search path entry could supply the requested path.
	ErrNotFound = errors.New("file not found in search path")
	// ErrInvalidPath means a logical path is empty or contains a traversal token.
	ErrInvalidPath = errors.New("invalid logical path")
	// ErrAlreadyStarted means Startup was called on a running filesystem.
	ErrAlreadyStarted = errors.New("filesystem already started")
	// ErrNoWriteRoot means neither the override root nor the save root is configured.
	ErrNoWriteRoot = errors.New("no writable root configured")
	// ErrReadOnly means a write was attempted on a read handle.
	ErrReadOnly = errors.New("file is opened read-only")
	// ErrWriteOnly means a read was attempted on a write handle.
	ErrWriteOnly = errors.New("file is opened write-only")
	// ErrClosed means the file, archive, or resource is already closed.
	ErrClosed = errors.New("file or resource already closed")
	// ErrUnknownStore means no archive store is registered for a file extension.
	ErrUnknownStore = errors.New("no archive store for extension")
	// ErrInvalidManifest means an addon manifest could not be decoded.
	ErrInvalidManifest = errors.New("invalid addon manifest")
	// ErrInvalidConfig means a configuration document failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidHeader means the PBO file is missing or has a bad header.
	ErrInvalidHeader = errors.New("invalid PBO file: missing or bad header")
	// ErrFileNameTooLong means the entry filename exceeds the maximum length.
	ErrFileNameTooLong = errors.New("entry filename exceeds maximum length")
	// ErrEntryNotFound means the archive has no entry with the requested name.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrSizeOverflow means the size exceeds the uint32 or 4 GiB PBO limit.
	ErrSizeOverflow = errors.New("size exceeds uint32 or 4 GiB PBO limit")
	// ErrInvalidEntryOffset means entry payload bounds fall outside the archive.
	ErrInvalidEntryOffset = errors.New("invalid entry offset")
	// ErrEmptyInputs means the archive builder found nothing to pack.
	ErrEmptyInputs = errors.New("no inputs provided for pack")
	// ErrInvalidPattern means one or more include or compression rules are invalid.
	ErrInvalidPattern = errors.New("invalid path rules")
	// ErrInvalidEntryPath means one of input entry paths is empty or invalid after normalization.
	ErrInvalidEntryPath = errors.New("invalid entry path")
	// ErrDuplicateEntryPath means two inputs resolve to the same path (case-insensitive).
	ErrDuplicateEntryPath = errors.New("duplicate entry path")
	// ErrChecksumMismatch means the SHA1 trailer does not match the archive bytes.
	ErrChecksumMismatch = errors.New("archive SHA1 trailer mismatch")
)
