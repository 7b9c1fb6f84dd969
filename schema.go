// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// SchemaVersion tells which configuration shape the host tool expects.
type SchemaVersion int

const (
	SchemaUnknown SchemaVersion = iota
	// SchemaLegacy uses module.loaders and options merged into the config root.
	SchemaLegacy
	// SchemaCurrent uses module.rules and options carried by a LoaderOptionsPlugin.
	SchemaCurrent
)

func (v SchemaVersion) String() string {
	switch v {
	case SchemaLegacy:
		return "legacy"
	case SchemaCurrent:
		return "current"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v SchemaVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *SchemaVersion) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "legacy", "webpack1":
		*v = SchemaLegacy
	case "current", "webpack2":
		*v = SchemaCurrent
	case "", "unknown":
		*v = SchemaUnknown
	default:
		return fmt.Errorf("unknown schema version %q", text)
	}
	return nil
}

// currentSchemaThreshold is the first host tool release using the current schema.
var currentSchemaThreshold = semver.MustParse("2.0.0")

// detectSchema picks the schema: explicit setting, then the shape of the existing
// rule list, then the host tool requirement in package.json, then SchemaCurrent.
func detectSchema(existing *Configuration, settings Settings) SchemaVersion {
	if settings.Schema != SchemaUnknown {
		return settings.Schema
	}
	if existing != nil {
		if existing.Module.Rules != nil {
			return SchemaCurrent
		}
		if existing.Module.Loaders != nil {
			return SchemaLegacy
		}
	}
	if v, err := hostToolVersion(settings.ProjectRoot); err == nil && v != nil {
		if v.LessThan(currentSchemaThreshold) {
			return SchemaLegacy
		}
	}
	return SchemaCurrent
}

type packageDescriptor struct {
	Version         string            `json:"version"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func readPackageDescriptor(path string) (*packageDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pkg packageDescriptor
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &pkg, nil
}

// hostToolVersion returns the declared webpack requirement of the project with
// range prefixes stripped. A nil version means nothing is declared.
func hostToolVersion(projectRoot string) (*semver.Version, error) {
	pkg, err := readPackageDescriptor(filepath.Join(projectRoot, "package.json"))
	if err != nil {
		return nil, err
	}
	requirement, ok := pkg.DevDependencies["webpack"]
	if !ok {
		requirement, ok = pkg.Dependencies["webpack"]
	}
	if !ok {
		return nil, nil
	}
	requirement = strings.NewReplacer("^", "", "~", "").Replace(requirement)
	return semver.NewVersion(strings.TrimSpace(requirement))
}

// vueVersion reads the installed vue version, or "" when it cannot be read.
func vueVersion(projectRoot string) string {
	pkg, err := readPackageDescriptor(filepath.Join(projectRoot, "node_modules", "vue", "package.json"))
	if err != nil {
		return ""
	}
	return pkg.Version
}
