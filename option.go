// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"log/slog"
	"os"

	jsexecutor "github.com/buke/js-executor"
	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/net/html"
)

// OnStartProcessor runs before the build starts. An error aborts the build.
type OnStartProcessor func(buildOptions *api.BuildOptions) error

// OnLoadProcessor transforms compiled component output after the framework
// loaders have been spliced in.
type OnLoadProcessor func(content string, args api.OnLoadArgs, buildOptions *api.BuildOptions) (string, error)

// OnEndProcessor runs after the side plugins have handled the build result.
type OnEndProcessor func(result *api.BuildResult, buildOptions *api.BuildOptions) error

// OnDisposeProcessor runs when the build context is disposed.
// Cleanup is best-effort, so it cannot fail.
type OnDisposeProcessor func(buildOptions *api.BuildOptions)

// IndexHtmlProcessor edits the HTML document built by the html-build-callback plugin.
type IndexHtmlProcessor func(doc *html.Node, result *api.BuildResult, htmlOptions *IndexHtmlOptions, build *api.PluginBuild) error

// IndexHtmlOptions configures the HTML page produced by the html-build-callback
// plugin. It is read from the plugin options "sourceFile", "outFile" and
// "removeTagXPaths".
type IndexHtmlOptions struct {
	SourceFile          string
	OutFile             string
	RemoveTagXPaths     []string
	IndexHtmlProcessors []IndexHtmlProcessor
}

// Options holds the esbuild adapter configuration and processor chains.
type Options struct {
	name           string
	loaderPaths    LoaderPaths
	compiledFilter string

	indexHtmlProcessors []IndexHtmlProcessor
	onStartProcessors   []OnStartProcessor
	onLoadProcessors    []OnLoadProcessor
	onEndProcessors     []OnEndProcessor
	onDisposeProcessors []OnDisposeProcessor

	jsExecutor *jsexecutor.JsExecutor // runs script callbacks
	logger     *slog.Logger
}

// OptionFunc configures the esbuild adapter.
type OptionFunc func(*Options)

func newOptions() *Options {
	return &Options{
		name:           "vux-plugin",
		loaderPaths:    DefaultLoaderPaths(),
		compiledFilter: `\.vue\.js$`,
		logger:         slog.Default(),
	}
}

// WithName sets the plugin name shown in esbuild messages.
func WithName(name string) OptionFunc {
	return func(opts *Options) {
		opts.name = name
	}
}

// WithLoaderPaths overrides the loader names spliced into compiled output.
func WithLoaderPaths(paths LoaderPaths) OptionFunc {
	return func(opts *Options) {
		opts.loaderPaths = paths
	}
}

// WithCompiledFilter sets the esbuild filter selecting compiled component output
// that goes through the source rewriter. An empty filter disables the handler.
//
// The rewritten requests are loader chains such as
// "!!babel-loader!vux-loader/src/script-loader.js!./App.vue?type=script" that
// esbuild cannot resolve, so the build must mark them external:
//
//	api.BuildOptions{External: []string{"!!babel-loader*", "vux-loader*"}}
func WithCompiledFilter(filter string) OptionFunc {
	return func(opts *Options) {
		opts.compiledFilter = filter
	}
}

// WithIndexHtmlProcessor adds a processor run on the page built by the
// html-build-callback plugin, after the entry tags are injected.
func WithIndexHtmlProcessor(processor IndexHtmlProcessor) OptionFunc {
	return func(opts *Options) {
		opts.indexHtmlProcessors = append(opts.indexHtmlProcessors, processor)
	}
}

// WithOnStartProcessor adds an OnStartProcessor to the processor chain.
func WithOnStartProcessor(processor OnStartProcessor) OptionFunc {
	return func(opts *Options) {
		opts.onStartProcessors = append(opts.onStartProcessors, processor)
	}
}

// WithOnLoadProcessor adds an OnLoadProcessor to the processor chain.
func WithOnLoadProcessor(processor OnLoadProcessor) OptionFunc {
	return func(opts *Options) {
		opts.onLoadProcessors = append(opts.onLoadProcessors, processor)
	}
}

// WithOnEndProcessor adds an OnEndProcessor to the processor chain.
func WithOnEndProcessor(processor OnEndProcessor) OptionFunc {
	return func(opts *Options) {
		opts.onEndProcessors = append(opts.onEndProcessors, processor)
	}
}

// WithOnDisposeProcessor adds an OnDisposeProcessor to the processor chain.
func WithOnDisposeProcessor(processor OnDisposeProcessor) OptionFunc {
	return func(opts *Options) {
		opts.onDisposeProcessors = append(opts.onDisposeProcessors, processor)
	}
}

// WithJsExecutor sets the executor for callbacks declared as scripts.
// It is required only when the configuration carries script callbacks.
func WithJsExecutor(jsExecutor *jsexecutor.JsExecutor) OptionFunc {
	return func(opts *Options) {
		opts.jsExecutor = jsExecutor
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) OptionFunc {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

func newMerger() *Merger {
	wd, _ := os.Getwd()
	return &Merger{
		logger:     slog.Default(),
		nodeEnv:    os.Getenv("NODE_ENV"),
		workingDir: wd,
		paths:      DefaultLoaderPaths(),
		setenv:     os.Setenv,
	}
}

// WithRegistry carries plugins and settings across merges.
func WithRegistry(registry *Registry) MergerOption {
	return func(m *Merger) {
		m.registry = registry
	}
}

// WithNodeEnv sets the environment name compared with buildEnvs.
// Defaults to $NODE_ENV.
func WithNodeEnv(env string) MergerOption {
	return func(m *Merger) {
		m.nodeEnv = env
	}
}

// WithWorkingDir sets the default project root. Defaults to the process working directory.
func WithWorkingDir(dir string) MergerOption {
	return func(m *Merger) {
		m.workingDir = dir
	}
}

// WithMergerLoaderPaths overrides the loader names installed into rules.
func WithMergerLoaderPaths(paths LoaderPaths) MergerOption {
	return func(m *Merger) {
		m.paths = paths
	}
}

// WithEnvSetter replaces os.Setenv for the build mode signal.
func WithEnvSetter(setenv func(key, value string) error) MergerOption {
	return func(m *Merger) {
		m.setenv = setenv
	}
}

// WithMergerLogger sets the merger logger. Defaults to slog.Default().
func WithMergerLogger(logger *slog.Logger) MergerOption {
	return func(m *Merger) {
		m.logger = logger
	}
}

// applyDefinitions installs define constants without overriding the caller's
// own, and enables the metafile the manifest and HTML steps read.
func applyDefinitions(initialOptions *api.BuildOptions, definitions map[string]string) {
	if initialOptions.Define == nil {
		initialOptions.Define = make(map[string]string)
	}
	for key, value := range definitions {
		if _, ok := initialOptions.Define[key]; !ok {
			initialOptions.Define[key] = value
		}
	}
	initialOptions.Metafile = true
}
