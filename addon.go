// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"fmt"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Addon manifest names looked up at the archive root, in preference order.
const (
	AddonManifestYAML = "addon.yaml"
	AddonManifestJSON = "addon.json"
)

// AddonInfo is the parsed manifest of an addon archive.
type AddonInfo struct {
	// Dependencies are checksums of archives this addon requires.
	Dependencies []uint32 `json:"requires,omitempty" yaml:"requires,omitempty"`
	// Maps are map declarations contributed by the addon, in manifest order.
	Maps []map[string]string `json:"maps,omitempty" yaml:"maps,omitempty"`
}

// ParseAddonManifest decodes a YAML manifest. JSON manifests are accepted too;
// comments and trailing commas are stripped when json is set.
func ParseAddonManifest(data []byte, json bool) (*AddonInfo, error) {
	if json {
		data = jsonc.ToJSON(data)
	}

	var info AddonInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	seen := make(map[uint32]struct{}, len(info.Dependencies))
	deps := info.Dependencies[:0]
	for _, dep := range info.Dependencies {
		if _, ok := seen[dep]; ok {
			continue
		}

		seen[dep] = struct{}{}
		deps = append(deps, dep)
	}
	info.Dependencies = deps

	return &info, nil
}

// readAddonManifest checks an archive for a manifest. It reports whether the
// archive is an addon; info is nil when the manifest cannot be decoded.
func readAddonManifest(a *Archive) (bool, *AddonInfo, error) {
	for _, name := range []string{AddonManifestYAML, AddonManifestJSON} {
		if !a.Contains(name) {
			continue
		}

		data, err := a.ReadFile(name)
		if err != nil {
			return true, nil, err
		}

		info, err := ParseAddonManifest(data, name == AddonManifestJSON)
		return true, info, err
	}

	return false, nil, nil
}
