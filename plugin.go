// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
)

// NewPlugin creates an esbuild plugin executing the side plugins of a merged
// configuration:
// - DefinePlugin entries become esbuild defines (existing defines win)
// - compiled component output matching the compiled filter goes through the source rewriter
// - emit callbacks and duplicate-style run on the output files before they are written
// - html-build-callback builds the index page, with the inline manifest when configured
// - build-done callbacks and the progress reporter run when the build ends
//
// Example usage:
//
//	cfg, _ := vuxplugin.NewMerger().Merge(existing, fw)
//	plugin := vuxplugin.NewPlugin(cfg, vuxplugin.WithLogger(logger))
//
// Panics if the configuration carries script callbacks and no JS executor is set.
func NewPlugin(cfg *Configuration, optsFunc ...OptionFunc) api.Plugin {
	opts := newOptions()
	for _, fn := range optsFunc {
		fn(opts)
	}
	if cfg == nil {
		cfg = &Configuration{}
	}

	sides := collectSidePlugins(cfg)
	if sides.needsExecutor() && opts.jsExecutor == nil {
		panic("jsExecutor is required for script callbacks, please set it using WithJsExecutor()")
	}

	return api.Plugin{
		Name: opts.name,
		Setup: func(build api.PluginBuild) {
			state := &buildState{}

			// Step 1: constants, and take over writing when outputs get rewritten
			applyDefinitions(build.InitialOptions, sides.definitions)
			if sides.rewritesOutputs() && build.InitialOptions.Write {
				build.InitialOptions.Write = false
				state.writeOutputs = true
			}

			// Step 2: start processors
			build.OnStart(func() (api.OnStartResult, error) {
				state.start()
				if sides.progress != nil {
					opts.logger.Info("Build started", "plugin", opts.name)
				}
				for _, processor := range opts.onStartProcessors {
					if err := processor(build.InitialOptions); err != nil {
						opts.logger.Error("Start processor failed", "error", err)
						return api.OnStartResult{}, err
					}
				}
				return api.OnStartResult{}, nil
			})

			// Step 3: source rewriter for compiled component output
			setupCompiledHandler(cfg, opts, &build)

			// Step 4: side plugins and end processors
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if err := runEndPhase(sides, state, result, opts, &build); err != nil {
					opts.logger.Error("Build end handling failed", "error", err)
					return api.OnEndResult{}, err
				}
				for _, processor := range opts.onEndProcessors {
					if err := processor(result, build.InitialOptions); err != nil {
						opts.logger.Error("End processor failed", "error", err)
						return api.OnEndResult{}, err
					}
				}
				return api.OnEndResult{}, nil
			})

			build.OnDispose(func() {
				for _, processor := range opts.onDisposeProcessors {
					processor(build.InitialOptions)
				}
			})
		},
	}
}

// sidePlugins is the part of a configuration the adapter acts on.
type sidePlugins struct {
	definitions map[string]string
	progress    *ProgressBarPlugin
	manifest    *InlineManifestPlugin
	done        []Callback
	emit        *Callback
	html        *HTMLBuildCallbackPlugin
	dedupe      *DuplicateStylePlugin
}

func collectSidePlugins(cfg *Configuration) *sidePlugins {
	sides := &sidePlugins{definitions: make(map[string]string)}
	for _, p := range cfg.Plugins {
		switch p := p.(type) {
		case *DefinePlugin:
			for key, value := range p.Definitions {
				if _, ok := sides.definitions[key]; !ok {
					sides.definitions[key] = value
				}
			}
		case *ProgressBarPlugin:
			sides.progress = p
		case *InlineManifestPlugin:
			sides.manifest = p
		case *DonePlugin:
			sides.done = append(sides.done, p.Callbacks...)
		case *EmitPlugin:
			if sides.emit == nil {
				cb := p.Callback
				sides.emit = &cb
			}
		case *HTMLBuildCallbackPlugin:
			sides.html = p
		case *DuplicateStylePlugin:
			sides.dedupe = p
		}
	}
	return sides
}

func (s *sidePlugins) needsExecutor() bool {
	if s.emit != nil && s.emit.Fn == nil && s.emit.Script != "" {
		return true
	}
	for _, cb := range s.done {
		if cb.Fn == nil && cb.Script != "" {
			return true
		}
	}
	return false
}

// rewritesOutputs reports whether output files change after esbuild produced them.
func (s *sidePlugins) rewritesOutputs() bool {
	return s.emit != nil || s.dedupe != nil
}

// buildState is shared by the hooks of one plugin instance; esbuild may call
// them from different goroutines.
type buildState struct {
	mu           sync.Mutex
	startedAt    time.Time
	writeOutputs bool
}

func (s *buildState) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedAt = time.Now()
}

func (s *buildState) elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// runEndPhase runs the side plugins in emission order: emit callback, style
// dedupe, write, HTML page, done callbacks, progress report.
func runEndPhase(sides *sidePlugins, state *buildState, result *api.BuildResult, opts *Options, build *api.PluginBuild) error {
	if sides.emit != nil {
		if err := runCallback(*sides.emit, result, opts); err != nil {
			return err
		}
	}

	if sides.dedupe != nil {
		changed, err := dedupeOutputStyles(result.OutputFiles)
		if err != nil {
			return err
		}
		if log, _ := sides.dedupe.Options["log"].(bool); log && changed > 0 {
			opts.logger.Info("Removed duplicate style rules", "files", changed)
		}
	}

	if state.writeOutputs && len(result.Errors) == 0 {
		if err := writeOutputFiles(result.OutputFiles); err != nil {
			return err
		}
	}

	if sides.html != nil && (state.writeOutputs || build.InitialOptions.Write) {
		if err := buildIndexHtml(sides, result, opts, build); err != nil {
			return err
		}
	} else if sides.manifest != nil {
		opts.logger.Debug("Inline manifest needs the html-build-callback plugin", "name", sides.manifest.Name)
	}

	for _, cb := range sides.done {
		if err := runCallback(cb, result, opts); err != nil {
			return err
		}
	}

	if sides.progress != nil {
		opts.logger.Info("Build finished",
			"plugin", opts.name,
			"elapsed", state.elapsed(),
			"outputs", len(result.OutputFiles),
			"errors", len(result.Errors),
			"warnings", len(result.Warnings),
		)
	}
	return nil
}

// writeOutputFiles writes the in-memory output files, creating directories as needed.
func writeOutputFiles(files []api.OutputFile) error {
	for _, file := range files {
		if err := os.MkdirAll(filepath.Dir(file.Path), 0755); err != nil {
			return fmt.Errorf("failed to create output dir for %s: %w", file.Path, err)
		}
		if err := os.WriteFile(file.Path, file.Contents, 0644); err != nil {
			return fmt.Errorf("failed to write output file %s: %w", file.Path, err)
		}
	}
	return nil
}
