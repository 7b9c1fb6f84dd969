// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadThemeVariables reads the "@name: value;" declarations of a LESS theme file.
func ReadThemeVariables(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme file: %w", err)
	}
	return parseThemeVariables(string(data)), nil
}

// parseThemeVariables keeps one declaration per line; lines with comments are skipped.
func parseThemeVariables(content string) map[string]string {
	variables := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, "//") || strings.Contains(line, "/*") {
			continue
		}
		key, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found || !strings.HasPrefix(key, "@") {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "@"))
		if key == "" {
			continue
		}
		value, _, _ = strings.Cut(value, ";")
		variables[key] = strings.TrimSpace(value)
	}
	return variables
}

// resolveThemePath resolves the theme path against the project root, after
// applying the project's tsconfig path aliases when one is configured.
func resolveThemePath(settings Settings, path string) (string, error) {
	if settings.Tsconfig != "" {
		tsconfig := settings.Tsconfig
		if !filepath.IsAbs(tsconfig) {
			tsconfig = filepath.Join(settings.ProjectRoot, tsconfig)
		}
		aliases, err := parseTsconfigPathAlias(tsconfig)
		if err != nil {
			return "", fmt.Errorf("failed to read path aliases: %w", err)
		}
		path = applyPathAlias(aliases, path)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(settings.ProjectRoot, path)
	}
	return filepath.Clean(path), nil
}
