// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultLocale is used when no i18n plugin is configured.
	DefaultLocale = "zh-CN"
	// MultiLocale marks builds that keep every locale at runtime.
	MultiLocale = "MULTI"
)

// resolveLocale derives the V_LOCALE value from the i18n plugin settings.
func resolveLocale(plugins []PluginDescriptor) string {
	i18n := firstPlugin(PluginI18n, plugins)
	if i18n == nil {
		return DefaultLocale
	}
	staticReplace, set := i18n.boolOption("vuxStaticReplace")
	locale := i18n.stringOption("vuxLocale")
	switch {
	case staticReplace && locale != "":
		return locale
	case set && !staticReplace:
		return MultiLocale
	}
	return ""
}

// validLocale reports whether locale is a well-formed BCP 47 tag or a sentinel.
func validLocale(locale string) bool {
	if locale == "" || locale == MultiLocale {
		return true
	}
	_, err := language.Parse(locale)
	return err == nil
}

// frameworkSourcePath locates a file of the component library sources. In
// development mode the project itself is the component library.
func frameworkSourcePath(projectRoot string, dev bool, elem ...string) string {
	base := filepath.Join(projectRoot, "node_modules", "vux", "src")
	if dev {
		base = filepath.Join(projectRoot, "src")
	}
	return filepath.Join(append([]string{base}, elem...)...)
}

// readComponentMap loads the component manifest.
func readComponentMap(projectRoot string, dev bool) (map[string]any, error) {
	path := frameworkSourcePath(projectRoot, dev, "components", "map.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read component map: %w", err)
	}
	var maps map[string]any
	if err := json.Unmarshal(data, &maps); err != nil {
		return nil, fmt.Errorf("failed to parse component map %s: %w", path, err)
	}
	return maps, nil
}

// readLocales loads the bundled localization data.
func readLocales(projectRoot string, dev bool) (map[string]any, error) {
	path := frameworkSourcePath(projectRoot, dev, "locales", "all.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var locales map[string]any
	if err := yaml.Unmarshal(data, &locales); err != nil {
		return nil, fmt.Errorf("failed to parse locales %s: %w", path, err)
	}
	return locales, nil
}
