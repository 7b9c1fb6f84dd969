// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Names of the plugins the merger knows about.
const (
	PluginVuxUI             = "vux-ui"
	PluginI18n              = "i18n"
	PluginLessTheme         = "less-theme"
	PluginInlineManifest    = "inline-manifest"
	PluginProgressBar       = "progress-bar"
	PluginBuildDone         = "build-done-callback"
	PluginBuildEmit         = "build-emit-callback"
	PluginHTMLBuildCallback = "html-build-callback"
	PluginDuplicateStyle    = "duplicate-style"
)

// ErrDuplicatePlugin is matched by every *DuplicatePluginError.
var ErrDuplicatePlugin = errors.New("only one instance is allowed")

// DuplicatePluginError reports a plugin name registered more than once.
type DuplicatePluginError struct {
	Name string
}

func (e *DuplicatePluginError) Error() string {
	return fmt.Sprintf("only one instance is allowed. plugin name: %s", e.Name)
}

func (e *DuplicatePluginError) Is(target error) bool {
	return target == ErrDuplicatePlugin
}

// Settings are the named framework settings.
type Settings struct {
	BuildEnvs           []string      `json:"buildEnvs,omitempty" yaml:"buildEnvs,omitempty"`
	SSR                 bool          `json:"ssr" yaml:"ssr"`
	Env                 string        `json:"env,omitempty" yaml:"env,omitempty"`
	ProjectRoot         string        `json:"projectRoot,omitempty" yaml:"projectRoot,omitempty"`
	Schema              SchemaVersion `json:"schema,omitempty" yaml:"schema,omitempty"`
	VuxDev              bool          `json:"vuxDev,omitempty" yaml:"vuxDev,omitempty"`
	LoaderString        string        `json:"loaderString,omitempty" yaml:"loaderString,omitempty"`
	RewriteLoaderString *bool         `json:"rewriteLoaderString,omitempty" yaml:"rewriteLoaderString,omitempty"`
	VuxSetBabel         *bool         `json:"vuxSetBabel,omitempty" yaml:"vuxSetBabel,omitempty"`
	Tsconfig            string        `json:"tsconfig,omitempty" yaml:"tsconfig,omitempty"`
	VueVersion          string        `json:"vueVersion,omitempty" yaml:"vueVersion,omitempty"`
	UseVuxUI            bool          `json:"useVuxUI,omitempty" yaml:"useVuxUI,omitempty"`
}

// overlay returns s with every field set in next applied on top.
// SSR always comes from next since it is defaulted before merging.
func (s Settings) overlay(next Settings) Settings {
	if next.BuildEnvs != nil {
		s.BuildEnvs = next.BuildEnvs
	}
	s.SSR = next.SSR
	if next.Env != "" {
		s.Env = next.Env
	}
	if next.ProjectRoot != "" {
		s.ProjectRoot = next.ProjectRoot
	}
	if next.Schema != SchemaUnknown {
		s.Schema = next.Schema
	}
	if next.VuxDev {
		s.VuxDev = true
	}
	if next.LoaderString != "" {
		s.LoaderString = next.LoaderString
	}
	if next.RewriteLoaderString != nil {
		s.RewriteLoaderString = next.RewriteLoaderString
	}
	if next.VuxSetBabel != nil {
		s.VuxSetBabel = next.VuxSetBabel
	}
	if next.Tsconfig != "" {
		s.Tsconfig = next.Tsconfig
	}
	if next.VueVersion != "" {
		s.VueVersion = next.VueVersion
	}
	if next.UseVuxUI {
		s.UseVuxUI = true
	}
	return s
}

// PluginDescriptor names an optional framework plugin.
// A nil Envs activates the plugin in every environment. Keys written next to
// the name, such as a less-theme "path", are kept in Extra; Options wins when
// both carry a key.
type PluginDescriptor struct {
	Name    string         `json:"name" yaml:"name"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	Envs    []string       `json:"envs,omitempty" yaml:"envs,omitempty"`
	Extra   map[string]any `json:"-" yaml:",inline"`

	Fn     BuildCallback `json:"-" yaml:"-"`
	HTMLFn HTMLCallback  `json:"-" yaml:"-"`
}

// UnmarshalYAML accepts a bare name as shorthand for {name: ...}.
func (d *PluginDescriptor) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*d = PluginDescriptor{Name: value.Value}
		return nil
	}
	type plain PluginDescriptor
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*d = PluginDescriptor(p)
	return nil
}

// MarshalJSON writes Extra keys next to the name.
func (d PluginDescriptor) MarshalJSON() ([]byte, error) {
	type plain PluginDescriptor
	data, err := json.Marshal(plain(d))
	if err != nil || len(d.Extra) == 0 {
		return data, err
	}
	fields := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		fields[k] = v
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func (d *PluginDescriptor) activeIn(env string) bool {
	return d.Envs == nil || slices.Contains(d.Envs, env)
}

func (d *PluginDescriptor) option(key string) (any, bool) {
	if v, ok := d.Options[key]; ok {
		return v, true
	}
	v, ok := d.Extra[key]
	return v, ok
}

func (d *PluginDescriptor) stringOption(key string) string {
	v, _ := d.option(key)
	s, _ := v.(string)
	return s
}

// boolOption returns the value of a boolean option and whether it was set.
func (d *PluginDescriptor) boolOption(key string) (value, set bool) {
	v, _ := d.option(key)
	value, set = v.(bool)
	return value, set
}

// settings returns Extra overlaid with Options, or nil when both are empty.
func (d *PluginDescriptor) settings() map[string]any {
	if len(d.Extra) == 0 {
		return d.Options
	}
	out := make(map[string]any, len(d.Extra)+len(d.Options))
	for k, v := range d.Extra {
		out[k] = v
	}
	for k, v := range d.Options {
		out[k] = v
	}
	return out
}

// FrameworkOptions is the framework input to the merger. AllPlugins records the
// accumulated plugin set once the options have gone through a merge.
type FrameworkOptions struct {
	Options    Settings           `json:"options" yaml:"options"`
	Plugins    []PluginDescriptor `json:"plugins" yaml:"plugins"`
	AllPlugins []PluginDescriptor `json:"allPlugins,omitempty" yaml:"allPlugins,omitempty"`
}

// LoadFrameworkOptions reads framework options from a YAML or JSON file.
func LoadFrameworkOptions(path string) (*FrameworkOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read framework options: %w", err)
	}
	var fw FrameworkOptions
	if err := yaml.Unmarshal(data, &fw); err != nil {
		return nil, fmt.Errorf("failed to parse framework options %s: %w", path, err)
	}
	return &fw, nil
}

// Registry accumulates framework settings and plugins across merges.
// It is owned by the caller and passed to every Merge that should see earlier state.
type Registry struct {
	settings *Settings
	plugins  []PluginDescriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Plugins returns a copy of every plugin recorded so far.
func (r *Registry) Plugins() []PluginDescriptor {
	return slices.Clone(r.plugins)
}

func (r *Registry) previous() *FrameworkOptions {
	if r == nil || r.settings == nil {
		return nil
	}
	return &FrameworkOptions{Options: *r.settings, AllPlugins: slices.Clone(r.plugins)}
}

func (r *Registry) record(settings Settings, plugins []PluginDescriptor) {
	if r == nil {
		return
	}
	r.settings = &settings
	r.plugins = slices.Clone(plugins)
}

// checkDuplicates fails on the first plugin name, in list order, seen more than once.
func checkDuplicates(plugins []PluginDescriptor) error {
	counts := make(map[string]int, len(plugins))
	for _, p := range plugins {
		counts[p.Name]++
	}
	for _, p := range plugins {
		if counts[p.Name] > 1 {
			return &DuplicatePluginError{Name: p.Name}
		}
	}
	return nil
}

// mergePlugins replaces same-name entries of prev in place and appends unseen ones.
func mergePlugins(prev, next []PluginDescriptor) []PluginDescriptor {
	merged := slices.Clone(prev)
	for _, p := range next {
		i := slices.IndexFunc(merged, func(old PluginDescriptor) bool { return old.Name == p.Name })
		if i >= 0 {
			merged[i] = p
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

func hasPlugin(name string, plugins []PluginDescriptor) bool {
	return firstPlugin(name, plugins) != nil
}

func firstPlugin(name string, plugins []PluginDescriptor) *PluginDescriptor {
	for i := range plugins {
		if plugins[i].Name == name {
			return &plugins[i]
		}
	}
	return nil
}

func pluginsNamed(name string, plugins []PluginDescriptor) []*PluginDescriptor {
	var matches []*PluginDescriptor
	for i := range plugins {
		if plugins[i].Name == name {
			matches = append(matches, &plugins[i])
		}
	}
	return matches
}
