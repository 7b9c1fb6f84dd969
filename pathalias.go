// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type tsconfigFile struct {
	CompilerOptions struct {
		BaseURL string              `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// parseTsconfigPathAlias reads compilerOptions.paths of a tsconfig file.
// Only the first target of each alias is used; targets are resolved against
// baseUrl, or the tsconfig directory when baseUrl is empty.
func parseTsconfigPathAlias(tsconfigPath string) (map[string]string, error) {
	data, err := os.ReadFile(tsconfigPath)
	if err != nil {
		return nil, err
	}
	var tsconfig tsconfigFile
	if err := json.Unmarshal(data, &tsconfig); err != nil {
		return nil, err
	}

	base, _ := filepath.Abs(filepath.Dir(tsconfigPath))
	if tsconfig.CompilerOptions.BaseURL != "" {
		base = filepath.Join(base, tsconfig.CompilerOptions.BaseURL)
	}

	aliases := make(map[string]string, len(tsconfig.CompilerOptions.Paths))
	for alias, targets := range tsconfig.CompilerOptions.Paths {
		if len(targets) > 0 {
			aliases[alias] = filepath.Join(base, targets[0])
		}
	}
	return aliases, nil
}

// applyPathAlias rewrites path with the longest matching alias. A trailing '*'
// in an alias captures the rest of the path.
func applyPathAlias(aliases map[string]string, path string) string {
	keys := make([]string, 0, len(aliases))
	for alias := range aliases {
		keys = append(keys, alias)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	for _, alias := range keys {
		target := aliases[alias]
		if prefix, wildcard := strings.CutSuffix(alias, "*"); wildcard {
			if rest, ok := strings.CutPrefix(path, prefix); ok {
				return strings.TrimSuffix(target, "*") + rest
			}
			continue
		}
		if path == alias {
			return target
		}
	}
	return path
}
