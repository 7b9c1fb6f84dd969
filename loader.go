// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"fmt"
	"strings"
)

// LoaderContext exposes the host callbacks a loader may use.
type LoaderContext struct {
	ResourcePath  string
	AddDependency func(path string)
}

// Loader runs the source rewriter over compiler output, configured by the
// framework options a merge attached to the configuration.
type Loader struct {
	config *Configuration
	paths  LoaderPaths
}

// NewLoader returns a Loader reading its options from cfg.
func NewLoader(cfg *Configuration, paths LoaderPaths) *Loader {
	return &Loader{config: cfg, paths: paths}
}

// FrameworkOptions returns the attached framework options, or nil before a merge.
func (l *Loader) FrameworkOptions() *FrameworkOptions {
	if l.config == nil {
		return nil
	}
	for _, p := range l.config.Plugins {
		if lo, ok := p.(*LoaderOptionsPlugin); ok && lo.FrameworkOptions() != nil {
			return lo.FrameworkOptions()
		}
	}
	return l.config.Vux
}

// Transform rewrites the compiled source of one component file. Sources are
// returned unchanged when empty or when no framework options are attached.
func (l *Loader) Transform(source string, ctx *LoaderContext) (string, error) {
	if source == "" {
		return source, nil
	}
	fw := l.FrameworkOptions()
	if fw == nil {
		return source, nil
	}

	var variables map[string]string
	if theme := firstPlugin(PluginLessTheme, fw.Plugins); theme != nil {
		path := theme.stringOption("path")
		if path == "" {
			return "", fmt.Errorf("less-theme: path is not set")
		}
		themePath, err := resolveThemePath(fw.Options, path)
		if err != nil {
			return "", err
		}
		if ctx != nil && ctx.AddDependency != nil {
			ctx.AddDependency(themePath)
		}
		variables, err = ReadThemeVariables(themePath)
		if err != nil {
			return "", fmt.Errorf("less-theme: %w", err)
		}
	}

	source = NewRewriter(l.paths, variables).Rewrite(source)

	if fw.Options.VuxDev {
		source = strings.ReplaceAll(source, "vux/src/styles/", "../styles/")
	}
	return source, nil
}
