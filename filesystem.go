// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// FileSystem resolves logical paths through a layered search list of
// directories and archives. Startup builds the list; resolution calls are
// legal only between Startup and Shutdown.
type FileSystem struct {
	fsys    afero.Fs
	log     *zap.Logger
	metrics *Metrics
	// search is the active search list.
	search SearchList
	// pool holds addon archives not enabled for search.
	pool SearchList
	// pure is the server-mandated checksum set; empty disables pure mode.
	pure map[uint32]struct{}
	// restartPure is the pure set supplied for the next startup; nil keeps pure.
	restartPure map[uint32]struct{}
	// pending lists requested addon checksums, consumed by Startup.
	pending []uint32
	// gameFolder is the mod directory of the most recently added directory.
	gameFolder string
	opts       Options
	// mu serializes rebuilds against resolution.
	mu sync.RWMutex
	// pendingMu guards pending outside rebuilds.
	pendingMu sync.Mutex
	started   bool
}

// New returns an unstarted filesystem.
func New(opts Options) *FileSystem {
	opts.applyDefaults()

	return &FileSystem{
		fsys:    opts.Fs,
		log:     opts.Logger,
		metrics: opts.Metrics,
		opts:    opts,
	}
}

// Fs returns the physical filesystem.
func (fs *FileSystem) Fs() afero.Fs {
	return fs.fsys
}

// SetRestartChecksums supplies the pure checksum set and requested addon
// checksums consumed by the next Startup or Restart. The running search list
// is not affected until then.
func (fs *FileSystem) SetRestartChecksums(pure, addons []uint32) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.restartPure = make(map[uint32]struct{}, len(pure))
	for _, sum := range pure {
		fs.restartPure[sum] = struct{}{}
	}

	fs.pendingMu.Lock()
	fs.pending = slices.Clone(addons)
	fs.pendingMu.Unlock()
}

// Startup builds the search list: directory setup for the base game, game
// base and game, followed by addon resolution.
func (fs *FileSystem) Startup() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.startup()
}

func (fs *FileSystem) startup() error {
	if fs.started {
		return ErrAlreadyStarted
	}

	if fs.restartPure != nil {
		fs.pure = fs.restartPure
		fs.restartPure = nil
	}

	fs.log.Info("initializing file system",
		zap.String("base_game", fs.opts.BaseGame),
		zap.String("game_base", fs.opts.GameBase),
		zap.String("game", fs.opts.Game),
	)

	fs.setupGameDirectories(fs.opts.BaseGame)

	gameBase := fs.opts.GameBase
	if gameBase != "" && !strings.EqualFold(gameBase, fs.opts.BaseGame) {
		fs.setupGameDirectories(gameBase)
	}

	game := fs.opts.Game
	if game != "" && !strings.EqualFold(game, fs.opts.BaseGame) && !strings.EqualFold(game, gameBase) {
		fs.setupGameDirectories(game)
	}

	fs.resolveAddons()
	fs.started = true
	fs.metrics.setLists(fs.search.Len(), fs.pool.Len())

	fs.log.Info("file system initialized",
		zap.Int("search_entries", fs.search.Len()),
		zap.Int("addon_pool", fs.pool.Len()),
		zap.Bool("pure", len(fs.pure) > 0),
	)

	return nil
}

// Shutdown closes every archive and clears both lists. Calling it on an
// unstarted filesystem is a programmer error.
func (fs *FileSystem) Shutdown() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.shutdown()
}

func (fs *FileSystem) shutdown() error {
	if !fs.started {
		fs.log.Panic("filesystem shutdown called when not initialized")
	}

	var errs []error
	for _, list := range []*SearchList{&fs.search, &fs.pool} {
		for a := range list.Archives() {
			if err := a.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", a.Path, err))
			}
		}
		list.Reset()
	}

	fs.gameFolder = ""
	fs.started = false
	fs.metrics.setLists(0, 0)

	return errors.Join(errs...)
}

// Restart rebuilds the search list, consuming checksums from SetRestartChecksums.
// An unstarted filesystem is simply started.
func (fs *FileSystem) Restart() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var shutdownErr error
	if fs.started {
		shutdownErr = fs.shutdown()
	}
	if err := fs.startup(); err != nil {
		return errors.Join(shutdownErr, err)
	}

	return shutdownErr
}

// Started reports whether the search list is built.
func (fs *FileSystem) Started() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return fs.started
}

// GameFolder returns the current mod directory used for writes.
func (fs *FileSystem) GameFolder() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return fs.gameFolder
}

// SearchPathInfo describes one active search list entry.
type SearchPathInfo struct {
	Kind     EntryKind `json:"kind" yaml:"kind"`
	Root     string    `json:"root,omitempty" yaml:"root,omitempty"`
	Game     string    `json:"game,omitempty" yaml:"game,omitempty"`
	Archive  string    `json:"archive,omitempty" yaml:"archive,omitempty"`
	Checksum uint32    `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Addon    bool      `json:"addon,omitempty" yaml:"addon,omitempty"`
}

// String formats the entry like the "path" console listing.
func (i SearchPathInfo) String() string {
	switch i.Kind {
	case KindDirectory:
		return i.Root + "/" + i.Game
	case KindArchive:
		return fmt.Sprintf("%s (0x%08x)", i.Archive, i.Checksum)
	default:
		return i.Kind.String()
	}
}

// SearchPaths returns the active search list in priority order.
func (fs *FileSystem) SearchPaths() []SearchPathInfo {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return describeList(&fs.search)
}

// AddonPool returns addon archives held out of the search list.
func (fs *FileSystem) AddonPool() []SearchPathInfo {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return describeList(&fs.pool)
}

func describeList(l *SearchList) []SearchPathInfo {
	out := make([]SearchPathInfo, 0, l.Len())
	for _, e := range l.All() {
		switch e.Kind {
		case KindDirectory:
			out = append(out, SearchPathInfo{Kind: e.Kind, Root: e.Dir.Root, Game: e.Dir.Game})
		case KindArchive:
			out = append(out, SearchPathInfo{
				Kind:     e.Kind,
				Archive:  e.Archive.Path,
				Checksum: e.Archive.Checksum,
				Addon:    e.Archive.Addon,
			})
		}
	}

	return out
}

// ArchiveForChecksum finds an archive by checksum on the active list, then
// optionally in the addon pool.
func (fs *FileSystem) ArchiveForChecksum(checksum uint32, searchAddons bool) (*Archive, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	a := fs.archiveForChecksum(checksum, searchAddons)
	return a, a != nil
}

func (fs *FileSystem) archiveForChecksum(checksum uint32, searchAddons bool) *Archive {
	for a := range fs.search.Archives() {
		if a.Checksum == checksum {
			return a
		}
	}

	if searchAddons {
		for a := range fs.pool.Archives() {
			if a.Checksum == checksum {
				return a
			}
		}
	}

	return nil
}

// ReferencedChecksums returns checksums of archives that served a referencing read.
func (fs *FileSystem) ReferencedChecksums() []uint32 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var out []uint32
	for a := range fs.search.Archives() {
		if a.Referenced() {
			out = append(out, a.Checksum)
		}
	}

	return out
}

// PendingAddons returns addon checksums queued for the next restart.
func (fs *FileSystem) PendingAddons() []uint32 {
	fs.pendingMu.Lock()
	defer fs.pendingMu.Unlock()

	return slices.Clone(fs.pending)
}

// requireStarted panics through the logger when called before Startup.
// Callers hold mu.
func (fs *FileSystem) requireStarted(op string) {
	if !fs.started {
		fs.log.Panic("filesystem call made without initialization", zap.String("op", op))
	}
}
