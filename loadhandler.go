// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
)

// setupCompiledHandler registers the load handler running compiled component
// output through the source rewriter. Nothing is registered when the compiled
// filter is empty.
func setupCompiledHandler(cfg *Configuration, opts *Options, build *api.PluginBuild) {
	if opts.compiledFilter == "" {
		return
	}
	loader := NewLoader(cfg, opts.loaderPaths)

	build.OnLoad(api.OnLoadOptions{Filter: opts.compiledFilter}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		// Step 1: rewrite loader chains of the compiled output
		var watchFiles []string
		contents, err := readCompiledSource(args.Path, loader, func(path string) {
			watchFiles = append(watchFiles, path)
		})
		if err != nil {
			opts.logger.Error("Failed to rewrite compiled component", "error", err, "file", args.Path)
			return loadError(args.Path, err), err
		}

		// Step 2: user processors
		for _, processor := range opts.onLoadProcessors {
			contents, err = processor(contents, args, build.InitialOptions)
			if err != nil {
				err = fmt.Errorf("load processor failed: %w", err)
				opts.logger.Error("Failed to process compiled component", "error", err, "file", args.Path)
				return loadError(args.Path, err), err
			}
		}

		return api.OnLoadResult{
			Contents:   &contents,
			ResolveDir: filepath.Dir(args.Path),
			Loader:     api.LoaderJS,
			WatchFiles: watchFiles,
		}, nil
	})
}

func readCompiledSource(path string, loader *Loader, addDependency func(string)) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read compiled component: %w", err)
	}
	return loader.Transform(string(data), &LoaderContext{
		ResourcePath:  path,
		AddDependency: addDependency,
	})
}

func loadError(path string, err error) api.OnLoadResult {
	return api.OnLoadResult{
		Errors: []api.Message{{
			Text:     err.Error(),
			Location: &api.Location{File: path},
		}},
	}
}
