// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"encoding/json"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

// Plugin is an entry of the configuration's plugin list.
type Plugin interface {
	// Kind names the plugin type; it is written as the "type" field.
	Kind() string
}

// Plugin kinds.
const (
	KindLoaderOptions     = "LoaderOptionsPlugin"
	KindDefine            = "DefinePlugin"
	KindInlineManifest    = "InlineManifestPlugin"
	KindProgressBar       = "ProgressBarPlugin"
	KindDone              = "DonePlugin"
	KindEmit              = "EmitPlugin"
	KindHTMLBuildCallback = "HtmlBuildCallbackPlugin"
	KindDuplicateStyle    = "DuplicateStylePlugin"
)

// BuildCallback runs at the end of a build. Emit callbacks may modify
// result.OutputFiles before they are written.
type BuildCallback func(result *api.BuildResult) error

// HTMLCallback receives the processed HTML document before it is written.
type HTMLCallback func(doc *html.Node, result *api.BuildResult) error

// Callback is one collected build callback: either a Go function or a script
// evaluated by the JS executor.
type Callback struct {
	Plugin string        `json:"plugin"`
	Fn     BuildCallback `json:"-"`
	Script string        `json:"script,omitempty"`
}

// LoaderOptionsPlugin carries options readable by every loader.
type LoaderOptionsPlugin struct {
	Options map[string]any `json:"options"`
}

func (*LoaderOptionsPlugin) Kind() string { return KindLoaderOptions }

// FrameworkOptions returns the framework payload, if the plugin carries one.
func (p *LoaderOptionsPlugin) FrameworkOptions() *FrameworkOptions {
	fw, _ := p.Options[keyVux].(*FrameworkOptions)
	return fw
}

// UnmarshalYAML decodes the "vux" payload into *FrameworkOptions.
func (p *LoaderOptionsPlugin) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Options map[string]yaml.Node `yaml:"options"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	p.Options = make(map[string]any, len(raw.Options))
	for key, node := range raw.Options {
		if key == keyVux {
			fw := &FrameworkOptions{}
			if err := node.Decode(fw); err != nil {
				return err
			}
			p.Options[key] = fw
			continue
		}
		var v any
		if err := node.Decode(&v); err != nil {
			return err
		}
		p.Options[key] = v
	}
	return nil
}

// DefinePlugin replaces identifiers with constant expressions at build time.
type DefinePlugin struct {
	Definitions map[string]string `json:"definitions" yaml:"definitions"`
}

func (*DefinePlugin) Kind() string { return KindDefine }

// InlineManifestPlugin inlines the entry manifest into the built HTML as a global.
type InlineManifestPlugin struct {
	Name string `json:"name" yaml:"name"`
}

func (*InlineManifestPlugin) Kind() string { return KindInlineManifest }

// ProgressBarPlugin reports build progress.
type ProgressBarPlugin struct {
	Options map[string]any `json:"options" yaml:"options"`
}

func (*ProgressBarPlugin) Kind() string { return KindProgressBar }

// DonePlugin invokes every collected callback when the build is done.
type DonePlugin struct {
	Callbacks []Callback `json:"callbacks"`
}

func (*DonePlugin) Kind() string { return KindDone }

// EmitPlugin invokes one callback before output files are written.
type EmitPlugin struct {
	Callback Callback `json:"callback"`
}

func (*EmitPlugin) Kind() string { return KindEmit }

// HTMLBuildCallbackPlugin builds an HTML page from a template and hands the
// document to a callback.
type HTMLBuildCallbackPlugin struct {
	Options map[string]any `json:"options,omitempty"`
	Fn      HTMLCallback   `json:"-"`
}

func (*HTMLBuildCallbackPlugin) Kind() string { return KindHTMLBuildCallback }

// DuplicateStylePlugin removes repeated rules from emitted stylesheets.
type DuplicateStylePlugin struct {
	Options map[string]any `json:"options" yaml:"options"`
}

func (*DuplicateStylePlugin) Kind() string { return KindDuplicateStyle }

// OpaquePlugin is a consumer plugin the merger passes through untouched.
type OpaquePlugin struct {
	Type   string
	Fields map[string]any
}

func (p *OpaquePlugin) Kind() string { return p.Type }

// MarshalJSON implements json.Marshaler.
func (p *OpaquePlugin) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields)
}

func decodePlugins(node *yaml.Node) ([]Plugin, error) {
	var nodes []yaml.Node
	if err := node.Decode(&nodes); err != nil {
		return nil, err
	}
	plugins := make([]Plugin, 0, len(nodes))
	for i := range nodes {
		p, err := decodePlugin(&nodes[i])
		if err != nil {
			return nil, fmt.Errorf("plugin %d: %w", i, err)
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

func decodePlugin(node *yaml.Node) (Plugin, error) {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, err
	}

	var p Plugin
	switch head.Type {
	case KindLoaderOptions:
		p = &LoaderOptionsPlugin{}
	case KindDefine:
		p = &DefinePlugin{}
	case KindInlineManifest:
		p = &InlineManifestPlugin{}
	case KindProgressBar:
		p = &ProgressBarPlugin{}
	case KindDuplicateStyle:
		p = &DuplicateStylePlugin{}
	default:
		fields := make(map[string]any)
		if err := node.Decode(&fields); err != nil {
			return nil, err
		}
		return &OpaquePlugin{Type: head.Type, Fields: fields}, nil
	}
	if err := node.Decode(p); err != nil {
		return nil, err
	}
	return p, nil
}

func encodePlugin(p Plugin) (any, error) {
	if opaque, ok := p.(*OpaquePlugin); ok {
		return opaque.Fields, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", p.Kind(), err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	fields["type"] = p.Kind()
	return fields, nil
}
