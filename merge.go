// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/rs/xid"
)

// Build-time constants injected into the bundle.
const (
	DefineLocale     = "V_LOCALE"
	DefineSSR        = "V_SSR"
	DefineSupportSSR = "SUPPORT_SSR_TAG"
)

// BuildModeEnv is set to "true" when the current environment is a build environment.
const BuildModeEnv = "__VUX_BUILD__"

const defaultLoaderString = "vux-loader!vue-loader"

// Merger installs the framework loaders, options and side plugins into a
// bundler configuration.
type Merger struct {
	registry   *Registry
	logger     *slog.Logger
	nodeEnv    string
	workingDir string
	paths      LoaderPaths
	setenv     func(key, value string) error
}

// NewMerger creates a Merger. Without WithRegistry every merge starts from the
// framework options recorded in the existing configuration.
func NewMerger(optsFunc ...MergerOption) *Merger {
	m := newMerger()
	for _, fn := range optsFunc {
		fn(m)
	}
	return m
}

// Merge returns a new configuration with the framework installed. existing and fw
// are not modified; the registry, if any, records the merged plugin set.
func (m *Merger) Merge(existing *Configuration, fw *FrameworkOptions) (*Configuration, error) {
	logger := m.logger.With("run", xid.New().String())

	config := existing.clone()
	fw = copyFrameworkOptions(fw)

	// Step 1: reject ambiguous plugin sets before touching anything
	if err := checkDuplicates(fw.Plugins); err != nil {
		logger.Error("Invalid framework plugins", "error", err)
		return nil, err
	}

	// Step 2: merge with the previously recorded options and plugins
	if prev := m.previousOptions(existing); prev != nil {
		fw.Options = prev.Options.overlay(fw.Options)
		fw.AllPlugins = mergePlugins(previousPlugins(prev), fw.Plugins)
	} else {
		fw.AllPlugins = slices.Clone(fw.Plugins)
	}
	if fw.Options.Env != "" {
		fw.Plugins = slices.DeleteFunc(slices.Clone(fw.AllPlugins), func(p PluginDescriptor) bool {
			return !p.activeIn(fw.Options.Env)
		})
	} else {
		fw.Plugins = slices.Clone(fw.AllPlugins)
	}

	if fw.Options.BuildEnvs == nil {
		fw.Options.BuildEnvs = []string{"production"}
	}
	m.signalBuildMode(fw.Options.BuildEnvs, logger)

	if fw.Options.ProjectRoot == "" {
		fw.Options.ProjectRoot = m.workingDir
	}
	if v := vueVersion(fw.Options.ProjectRoot); v != "" {
		fw.Options.VueVersion = v
	}
	m.registry.record(fw.Options, fw.AllPlugins)

	// Step 3: schema detection
	schema := detectSchema(existing, fw.Options)
	logger.Debug("Detected configuration schema", "schema", schema)
	if schema == SchemaLegacy {
		if config.Vue == nil {
			config.Vue = &VueOptions{}
		}
		if config.Vue.Loaders == nil {
			config.Vue.Loaders = make(map[string]string)
		}
		config.Vue.Loaders["i18n"] = m.paths.Noop
	}
	rules := config.Module.list(schema)
	if *rules == nil {
		*rules = []*Rule{}
	}

	active := fw.Plugins
	root := fw.Options.ProjectRoot
	fw.Options.UseVuxUI = hasPlugin(PluginVuxUI, active)

	// Step 4: attach the framework options
	setLoaderOptions(config, schema, keyVux, fw)

	// Step 5: optional side plugins
	if hasPlugin(PluginInlineManifest, active) {
		installPlugin(config, &InlineManifestPlugin{Name: "webpackManifest"})
	}
	if progress := firstPlugin(PluginProgressBar, active); progress != nil {
		options := progress.settings()
		if options == nil {
			options = make(map[string]any)
		}
		installPlugin(config, &ProgressBarPlugin{Options: options})
	}
	if fw.Options.UseVuxUI {
		componentMap, err := readComponentMap(root, fw.Options.VuxDev)
		if err != nil {
			logger.Error("Failed to load component map", "error", err)
			return nil, err
		}
		setLoaderOptions(config, schema, keyVuxMaps, componentMap)

		locales, err := readLocales(root, fw.Options.VuxDev)
		if err != nil {
			logger.Debug("Skipping component locales", "error", err)
		} else {
			setLoaderOptions(config, schema, keyVuxLocales, locales)
		}
	}

	// Step 6: loader chains
	if rewrite := fw.Options.RewriteLoaderString; rewrite == nil || *rewrite {
		loaderString := fw.Options.LoaderString
		if loaderString == "" {
			loaderString = defaultLoaderString
		}
		rewriteCompilerRules(rules, schema, loaderString, m.paths)
	}
	appendJSLoader(*rules, schema, "ts-loader", "ts", m.paths.JS)
	appendJSLoader(*rules, schema, "babel-loader", "babel", m.paths.JS)

	if setBabel := fw.Options.VuxSetBabel; fw.Options.UseVuxUI && (setBabel == nil || *setBabel) {
		rule, err := componentSourceRule(root, "vux")
		if err != nil {
			logger.Error("Failed to add component source rule", "error", err)
			return nil, err
		}
		if !containsRule(*rules, rule) {
			*rules = append(*rules, rule)
		}
	}

	// Step 7: build callbacks and output plugins
	if hasPlugin(PluginBuildDone, active) {
		installPlugin(config, &DonePlugin{Callbacks: collectCallbacks(PluginBuildDone, active)})
	}
	if dup := firstPlugin(PluginDuplicateStyle, active); dup != nil {
		options := dup.settings()
		if options == nil {
			options = make(map[string]any)
		}
		installPlugin(config, &DuplicateStylePlugin{Options: options})
	}
	if callbacks := collectCallbacks(PluginBuildEmit, active); len(callbacks) > 0 {
		installPlugin(config, &EmitPlugin{Callback: callbacks[0]})
	}
	if htmlBuild := firstPlugin(PluginHTMLBuildCallback, active); htmlBuild != nil {
		installPlugin(config, &HTMLBuildCallbackPlugin{Options: htmlBuild.settings(), Fn: htmlBuild.HTMLFn})
	}

	// Step 8: build-time constants
	locale := resolveLocale(active)
	if !validLocale(locale) {
		logger.Warn("Locale is not a valid language tag", "locale", locale)
	}
	if !definesLocale(config.Plugins) {
		config.Plugins = append(config.Plugins, &DefinePlugin{Definitions: map[string]string{
			DefineLocale:     jsonString(locale),
			DefineSSR:        strconv.FormatBool(fw.Options.SSR),
			DefineSupportSSR: strconv.FormatBool(true),
		}})
	}

	logger.Info("Merged framework configuration",
		"schema", schema,
		"plugins", len(active),
		"rules", len(*rules),
		"locale", locale,
	)
	return config, nil
}

// previousOptions returns the options recorded by an earlier merge: the registry
// first, then the last framework payload found in the existing configuration.
func (m *Merger) previousOptions(existing *Configuration) *FrameworkOptions {
	if prev := m.registry.previous(); prev != nil {
		return prev
	}
	if existing == nil {
		return nil
	}
	prev := existing.Vux
	for _, p := range existing.Plugins {
		if lo, ok := p.(*LoaderOptionsPlugin); ok && lo.FrameworkOptions() != nil {
			prev = lo.FrameworkOptions()
		}
	}
	return prev
}

func previousPlugins(prev *FrameworkOptions) []PluginDescriptor {
	if prev.AllPlugins != nil {
		return prev.AllPlugins
	}
	return prev.Plugins
}

func (m *Merger) signalBuildMode(buildEnvs []string, logger *slog.Logger) {
	building := slices.Contains(buildEnvs, m.nodeEnv)
	if err := m.setenv(BuildModeEnv, strconv.FormatBool(building)); err != nil {
		logger.Warn("Failed to set build mode", "error", err)
	}
}

// setLoaderOptions attaches a payload under key: through a LoaderOptionsPlugin for
// the current schema, or on the configuration root for the legacy schema. An
// earlier plugin carrying the key is replaced in place.
func setLoaderOptions(config *Configuration, schema SchemaVersion, key string, payload any) {
	if schema == SchemaLegacy {
		switch key {
		case keyVux:
			config.Vux = payload.(*FrameworkOptions)
		case keyVuxMaps:
			config.VuxMaps = payload.(map[string]any)
		case keyVuxLocales:
			config.VuxLocales = payload.(map[string]any)
		}
		return
	}

	replacement := &LoaderOptionsPlugin{Options: map[string]any{key: payload}}
	plugins := make([]Plugin, 0, len(config.Plugins)+1)
	replaced := false
	for _, p := range config.Plugins {
		lo, ok := p.(*LoaderOptionsPlugin)
		if !ok {
			plugins = append(plugins, p)
			continue
		}
		if _, carries := lo.Options[key]; !carries {
			plugins = append(plugins, p)
			continue
		}
		if !replaced {
			plugins = append(plugins, replacement)
			replaced = true
		}
		if len(lo.Options) > 1 {
			rest := maps.Clone(lo.Options)
			delete(rest, key)
			plugins = append(plugins, &LoaderOptionsPlugin{Options: rest})
		}
	}
	if !replaced {
		plugins = append(plugins, replacement)
	}
	config.Plugins = plugins
}

// installPlugin replaces the plugin of the same kind in place, or appends p.
func installPlugin(config *Configuration, p Plugin) {
	i := slices.IndexFunc(config.Plugins, func(old Plugin) bool { return old.Kind() == p.Kind() })
	if i >= 0 {
		config.Plugins[i] = p
		return
	}
	config.Plugins = append(config.Plugins, p)
}

func collectCallbacks(name string, plugins []PluginDescriptor) []Callback {
	var callbacks []Callback
	for _, d := range pluginsNamed(name, plugins) {
		cb := Callback{Plugin: name, Fn: d.Fn, Script: d.stringOption("script")}
		if cb.Fn == nil && cb.Script == "" {
			continue
		}
		callbacks = append(callbacks, cb)
	}
	return callbacks
}

func definesLocale(plugins []Plugin) bool {
	for _, p := range plugins {
		if define, ok := p.(*DefinePlugin); ok {
			if _, exists := define.Definitions[DefineLocale]; exists {
				return true
			}
		}
	}
	return false
}

func copyFrameworkOptions(fw *FrameworkOptions) *FrameworkOptions {
	if fw == nil {
		return &FrameworkOptions{}
	}
	out := *fw
	out.Plugins = slices.Clone(fw.Plugins)
	out.AllPlugins = slices.Clone(fw.AllPlugins)
	return &out
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
