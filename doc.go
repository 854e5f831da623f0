// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

/*
Package pakfs provides a layered virtual filesystem for game content. A
logical path such as "textures/wall.tga" is resolved through an ordered
search list of physical directories and mounted archives; the first entry
that can serve the path wins.

Search list order (summary):
  - Startup mounts the base game, then the optional game base, then the game;
  - each mod directory is added once per configured root (cd, base, dev, save, config);
  - every directory entry is preceded by its archives, highest name first, so
    "pak1.pbo" overrides "pak0.pbo" and both override the loose directory;
  - later roots and later mod directories take priority over earlier ones;
  - addon archives are kept in a separate pool unless enabled by checksum or
    pulled in as a dependency of an enabled addon.

# Starting

	fs := pakfs.New(pakfs.Options{
	    Roots: pakfs.Roots{
	        CD:   "/media/game",
	        Base: "/opt/game",
	        Save: "/home/user/.game",
	    },
	    Game:       "mymod",
	    CopyPolicy: pakfs.CopyRefresh,
	})
	if err := fs.Startup(); err != nil {
	    return err
	}
	defer fs.Shutdown()

Options can also be loaded from a YAML document:

	cfg, err := pakfs.LoadConfig(afero.NewOsFs(), "pakfs.yaml")
	if err != nil {
	    return err
	}
	opts, err := cfg.Options()
	if err != nil {
	    return err
	}
	fs := pakfs.New(opts)

# Reading

	data, err := fs.ReadFile("maps/game1.map")
	if errors.Is(err, pakfs.ErrNotFound) {
	    // not on the search list
	}

Paths containing ".." or "::" are rejected with ErrInvalidPath before any
lookup. Use Resolve with SearchFlags to restrict a read to directories,
archives or the addon pool, and FindFile to learn where a path would come
from without reading it.

# Pure mode

SetRestartChecksums supplies the server-mandated checksum set; it takes
effect at the next Startup or Restart. While the set is non-empty only
archives whose checksum is in the set serve reads; loose files are
unaffected. Archive checksums cover member names and decoded content, so
recompressing an archive keeps its checksum.

# Writing

Writes always go to a physical directory: the named root when configured,
otherwise the save root, under the current game folder:

	if err := fs.WriteFile("config/user.cfg", data, ""); err != nil {
	    return err
	}

# Building archives

	res, err := pakfs.BuildArchive(ctx, afero.NewOsFs(), "src", "out/pak0.pbo", pakfs.BuildOptions{
	    Prefix: "mymod",
	    Compress: []pathrules.Rule{
	        {Action: pathrules.ActionInclude, Pattern: "*.txt"},
	    },
	})
*/
package pakfs
