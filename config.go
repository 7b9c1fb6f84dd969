// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoaderRef is one entry of a rule's "use" list.
// A reference without options or query is serialized as a bare loader name.
type LoaderRef struct {
	Loader  string
	Options map[string]any
	Query   map[string]any
}

type loaderRefObject struct {
	Loader  string         `json:"loader" yaml:"loader"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	Query   map[string]any `json:"query,omitempty" yaml:"query,omitempty"`
}

// Bare reports whether the reference is a plain loader name.
func (r LoaderRef) Bare() bool {
	return r.Options == nil && r.Query == nil
}

// MarshalJSON implements json.Marshaler.
func (r LoaderRef) MarshalJSON() ([]byte, error) {
	if r.Bare() {
		return json.Marshal(r.Loader)
	}
	return json.Marshal(loaderRefObject{Loader: r.Loader, Options: r.Options, Query: r.Query})
}

// UnmarshalYAML accepts both "name" and {loader, options, query}.
func (r *LoaderRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		r.Loader = value.Value
		return nil
	}
	var obj loaderRefObject
	if err := value.Decode(&obj); err != nil {
		return err
	}
	*r = LoaderRef{Loader: obj.Loader, Options: obj.Options, Query: obj.Query}
	return nil
}

// LoaderRefs is a rule's "use" list. A single scalar decodes to a one-element list.
type LoaderRefs []LoaderRef

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *LoaderRefs) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*l = LoaderRefs{{Loader: value.Value}}
		return nil
	}
	var refs []LoaderRef
	if err := value.Decode(&refs); err != nil {
		return err
	}
	*l = refs
	return nil
}

// Rule maps a file pattern to a loader chain.
// Loader holds a "!"-joined chain; Use holds the structured form.
type Rule struct {
	Test    string         `json:"test,omitempty" yaml:"test,omitempty"`
	Include string         `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude string         `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Loader  string         `json:"loader,omitempty" yaml:"loader,omitempty"`
	Use     LoaderRefs     `json:"use,omitempty" yaml:"use,omitempty"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
	Query   map[string]any `json:"query,omitempty" yaml:"query,omitempty"`
}

// hasOptions reports whether options or query parameters sit on the rule itself.
func (r *Rule) hasOptions() bool {
	return r.Options != nil || r.Query != nil
}

// takeOptions removes and returns the rule-level options, preferring Options over Query.
func (r *Rule) takeOptions() map[string]any {
	if r.Options != nil {
		options := r.Options
		r.Options = nil
		return options
	}
	query := r.Query
	r.Query = nil
	return query
}

// ModuleConfig is the "module" section. Rules belongs to the current schema,
// Loaders to the legacy one.
type ModuleConfig struct {
	Rules   []*Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	Loaders []*Rule `json:"loaders,omitempty" yaml:"loaders,omitempty"`
}

// list returns a pointer to the rule list used by the given schema.
func (m *ModuleConfig) list(schema SchemaVersion) *[]*Rule {
	if schema == SchemaLegacy {
		return &m.Loaders
	}
	return &m.Rules
}

// VueOptions is the legacy root "vue" section.
type VueOptions struct {
	Loaders map[string]string `json:"loaders,omitempty" yaml:"loaders,omitempty"`
}

// Configuration is the bundler configuration consumed and produced by the merger.
// Top-level keys the merger does not touch are kept in Extra.
type Configuration struct {
	Module     ModuleConfig
	Plugins    []Plugin
	Vux        *FrameworkOptions
	VuxMaps    map[string]any
	VuxLocales map[string]any
	Vue        *VueOptions
	Extra      map[string]any
}

const (
	keyModule     = "module"
	keyPlugins    = "plugins"
	keyVux        = "vux"
	keyVuxMaps    = "vuxMaps"
	keyVuxLocales = "vuxLocales"
	keyVue        = "vue"
)

// UnmarshalYAML implements yaml.Unmarshaler. JSON documents decode as well.
func (c *Configuration) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]yaml.Node
	if err := value.Decode(&raw); err != nil {
		return err
	}
	for key, node := range raw {
		var err error
		switch key {
		case keyModule:
			err = node.Decode(&c.Module)
		case keyPlugins:
			c.Plugins, err = decodePlugins(&node)
		case keyVux:
			c.Vux = &FrameworkOptions{}
			err = node.Decode(c.Vux)
		case keyVuxMaps:
			err = node.Decode(&c.VuxMaps)
		case keyVuxLocales:
			err = node.Decode(&c.VuxLocales)
		case keyVue:
			c.Vue = &VueOptions{}
			err = node.Decode(c.Vue)
		default:
			var v any
			if err = node.Decode(&v); err == nil {
				if c.Extra == nil {
					c.Extra = make(map[string]any)
				}
				c.Extra[key] = v
			}
		}
		if err != nil {
			return fmt.Errorf("failed to decode %q: %w", key, err)
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Plugins are written with a "type" field.
func (c *Configuration) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+6)
	for k, v := range c.Extra {
		out[k] = v
	}
	out[keyModule] = c.Module

	plugins := make([]any, 0, len(c.Plugins))
	for _, p := range c.Plugins {
		encoded, err := encodePlugin(p)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, encoded)
	}
	out[keyPlugins] = plugins

	if c.Vux != nil {
		out[keyVux] = c.Vux
	}
	if c.VuxMaps != nil {
		out[keyVuxMaps] = c.VuxMaps
	}
	if c.VuxLocales != nil {
		out[keyVuxLocales] = c.VuxLocales
	}
	if c.Vue != nil {
		out[keyVue] = c.Vue
	}
	return json.Marshal(out)
}

// clone returns a copy whose rule lists, rules and plugin list can be mutated
// without touching the original.
func (c *Configuration) clone() *Configuration {
	if c == nil {
		return &Configuration{}
	}
	out := *c
	out.Module.Rules = cloneRules(c.Module.Rules)
	out.Module.Loaders = cloneRules(c.Module.Loaders)
	out.Plugins = append([]Plugin(nil), c.Plugins...)
	if c.Vue != nil {
		vue := VueOptions{Loaders: make(map[string]string, len(c.Vue.Loaders))}
		for k, v := range c.Vue.Loaders {
			vue.Loaders[k] = v
		}
		out.Vue = &vue
	}
	return &out
}

func cloneRules(rules []*Rule) []*Rule {
	if rules == nil {
		return nil
	}
	out := make([]*Rule, len(rules))
	for i, r := range rules {
		rule := *r
		rule.Use = append(LoaderRefs(nil), r.Use...)
		out[i] = &rule
	}
	return out
}

// LoadConfiguration reads a bundler configuration from a YAML or JSON file.
func LoadConfiguration(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	var cfg Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration %s: %w", path, err)
	}
	return &cfg, nil
}
