// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DefaultBaseGame is the mod directory mounted first on every startup.
const DefaultBaseGame = "base"

// Root names one of the configured physical roots.
type Root string

// Configured roots in directory setup order.
const (
	RootCD     Root = "cd"
	RootBase   Root = "base"
	RootDev    Root = "dev"
	RootSave   Root = "save"
	RootConfig Root = "config"
)

// Roots holds the physical root directories. Empty roots are not mounted.
type Roots struct {
	// CD is the read-only install media root.
	CD string `json:"cd,omitempty" yaml:"cd,omitempty"`
	// Base is the installation root.
	Base string `json:"base,omitempty" yaml:"base,omitempty"`
	// Dev is the development override root.
	Dev string `json:"dev,omitempty" yaml:"dev,omitempty"`
	// Save is the per-user writable root and the default write target.
	Save string `json:"save,omitempty" yaml:"save,omitempty"`
	// Config is the per-user configuration root.
	Config string `json:"config,omitempty" yaml:"config,omitempty"`
}

// Get returns the path configured for r.
func (r Roots) Get(root Root) string {
	switch root {
	case RootCD:
		return r.CD
	case RootBase:
		return r.Base
	case RootDev:
		return r.Dev
	case RootSave:
		return r.Save
	case RootConfig:
		return r.Config
	default:
		return ""
	}
}

// trimmed returns r with trailing separators removed, so equal directories
// compare equal. A filesystem root keeps a single separator.
func (r Roots) trimmed() Roots {
	for _, p := range []*string{&r.CD, &r.Base, &r.Dev, &r.Save, &r.Config} {
		*p = trimRoot(*p)
	}

	return r
}

func trimRoot(root string) string {
	trimmed := strings.TrimRight(root, `/\`)
	if trimmed == "" && root != "" {
		return root[:1]
	}

	return trimmed
}

// ordered returns non-empty roots in directory setup order.
func (r Roots) ordered() []string {
	out := make([]string, 0, 5)
	for _, root := range []string{r.CD, r.Base, r.Dev, r.Save, r.Config} {
		if root != "" {
			out = append(out, root)
		}
	}

	return out
}

// CopyPolicy selects copy-on-demand behavior for reads. Copies run when a
// read misses a directory entry and target the save root.
type CopyPolicy int

// Copy-on-demand policies.
const (
	// CopyNone disables copy-on-demand.
	CopyNone CopyPolicy = iota
	// CopyFromCD copies after a miss in a CD root directory.
	CopyFromCD
	// CopyRefresh is CopyFromCD plus a stale-only copy from the CD root
	// after a miss in a save or base root directory.
	CopyRefresh
	// CopyFromCDOrBase copies after a miss in a CD or base root directory.
	CopyFromCDOrBase
	// CopyFromCDNotBase copies after a CD root miss when the CD root is not also the base root.
	CopyFromCDNotBase
)

// Validate rejects unknown policies.
func (p CopyPolicy) Validate() error {
	if p < CopyNone || p > CopyFromCDNotBase {
		return fmt.Errorf("%w: copy policy %d", ErrInvalidConfig, int(p))
	}

	return nil
}

// SearchFlags select which entry kinds participate in a read.
type SearchFlags uint8

// Search flags.
const (
	// SearchDirs searches directory entries.
	SearchDirs SearchFlags = 1 << iota
	// SearchArchives searches archive entries on the active list.
	SearchArchives
	// SearchAddons searches the addon pool after the active list.
	SearchAddons
	// NoReference leaves archive referenced flags untouched.
	NoReference

	// SearchAll searches directories, archives and the addon pool.
	SearchAll = SearchDirs | SearchArchives | SearchAddons
)

// ReadOptions control side effects of a read.
type ReadOptions struct {
	// DisableCopy skips copy-on-demand for this read.
	DisableCopy bool
}

// FindResult is the outcome of FindFile.
type FindResult int

// FindFile outcomes.
const (
	// FindNo means the path is not available.
	FindNo FindResult = iota
	// FindYes means the path is served by the active search list.
	FindYes
	// FindAddon means the path is only available from an addon not enabled for search.
	FindAddon
)

// String returns the lowercase result name.
func (r FindResult) String() string {
	switch r {
	case FindNo:
		return "no"
	case FindYes:
		return "yes"
	case FindAddon:
		return "addon"
	default:
		return fmt.Sprintf("find(%d)", int(r))
	}
}

// Mode is a file open mode.
type Mode int

// Open modes.
const (
	ModeRead Mode = iota
	ModeWrite
	ModeAppend
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	case ModeAppend:
		return "append"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DeclSource exposes map declarations owned by the declaration manager.
type DeclSource interface {
	// MapCount returns the number of map declarations.
	MapCount() int
	// MapDecl returns declaration i and its name.
	MapDecl(i int) (name string, decl map[string]string)
}

// Options configures a FileSystem.
type Options struct {
	// Fs is the physical filesystem. Default is afero.NewOsFs().
	Fs afero.Fs `json:"-" yaml:"-"`
	// Logger receives engine logs. Default is zap.NewNop().
	Logger *zap.Logger `json:"-" yaml:"-"`
	// Metrics records engine counters; nil disables metrics.
	Metrics *Metrics `json:"-" yaml:"-"`
	// Decls supplies map declarations for MapCount and MapDecl.
	Decls DeclSource `json:"-" yaml:"-"`
	// Checksum computes archive checksums. Default is MD4BlockChecksum.
	Checksum ChecksumFunc `json:"-" yaml:"-"`
	// Stores open archives by extension in preference order. Default is DefaultStores().
	Stores []ArchiveStore `json:"-" yaml:"-"`
	// Roots are the physical roots.
	Roots Roots `json:"roots" yaml:"roots"`
	// BaseGame is the mod directory mounted first. Default is DefaultBaseGame.
	BaseGame string `json:"base_game,omitempty" yaml:"base_game,omitempty"`
	// GameBase is an optional mod directory mounted over BaseGame.
	GameBase string `json:"game_base,omitempty" yaml:"game_base,omitempty"`
	// Game is an optional mod directory mounted last, with the highest priority.
	Game string `json:"game,omitempty" yaml:"game,omitempty"`
	// CopyPolicy selects copy-on-demand behavior.
	CopyPolicy CopyPolicy `json:"copy_policy,omitempty" yaml:"copy_policy,omitempty"`
	// SearchAllAddons enables every addon without dependency resolution.
	SearchAllAddons bool `json:"search_all_addons,omitempty" yaml:"search_all_addons,omitempty"`
}

// applyDefaults fills zero-valued options with defaults.
func (opts *Options) applyDefaults() {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.Checksum == nil {
		opts.Checksum = MD4BlockChecksum
	}

	if len(opts.Stores) == 0 {
		opts.Stores = DefaultStores()
	}

	if opts.BaseGame == "" {
		opts.BaseGame = DefaultBaseGame
	}

	opts.Roots = opts.Roots.trimmed()
}
