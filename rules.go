// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"fmt"
	"path/filepath"
	"strings"
)

// LoaderPaths names the loaders the merger and the rewriter insert.
type LoaderPaths struct {
	Framework              string // framework loader placed in front of the compiler
	Compiler               string // single-file-component compiler loader
	JS                     string // appended after the TypeScript and Babel loaders
	Noop                   string // legacy i18n block loader
	Script                 string
	Style                  string
	Template               string
	AfterLess              string
	BeforeTemplateCompiler string
}

// DefaultLoaderPaths returns the loader names published by the vux-loader package.
func DefaultLoaderPaths() LoaderPaths {
	return LoaderPaths{
		Framework:              "vux-loader",
		Compiler:               "vue-loader",
		JS:                     "vux-loader/src/js-loader.js",
		Noop:                   "vux-loader/src/noop-loader.js",
		Script:                 "vux-loader/src/script-loader.js",
		Style:                  "vux-loader/src/style-loader.js",
		Template:               "vux-loader/src/template-loader.js",
		AfterLess:              "vux-loader/src/after-less-loader.js",
		BeforeTemplateCompiler: "vux-loader/src/before-template-compiler-loader.js",
	}
}

// loaderName strips the query part of a loader reference.
func loaderName(ref string) string {
	name, _, _ := strings.Cut(ref, "?")
	return name
}

// references reports whether the rule's loader chain names the given loader.
func (r *Rule) references(name string) bool {
	if r.Loader != "" {
		for _, segment := range ParseChain(r.Loader) {
			if loaderName(segment) == name {
				return true
			}
		}
	}
	for _, ref := range r.Use {
		if loaderName(ref.Loader) == name {
			return true
		}
	}
	return false
}

// useCount counts the structured entries naming the given loader.
func (r *Rule) useCount(name string) int {
	n := 0
	for _, ref := range r.Use {
		if ref.Loader == name {
			n++
		}
	}
	return n
}

// rewriteCompilerRules puts the framework loader in front of every compiler rule,
// appending a compiler rule when none exists. Rules already carrying the framework
// loader, or the loader string itself, count as rewritten and are left alone.
func rewriteCompilerRules(rules *[]*Rule, schema SchemaVersion, loaderString string, paths LoaderPaths) {
	rewritten := false
	for _, rule := range *rules {
		if (loaderString != "" && rule.Loader == loaderString) || (rule.references(paths.Framework) && rule.references(paths.Compiler)) {
			rewritten = true
			continue
		}

		usesCompiler := rule.useCount(paths.Compiler) == 1
		if rule.Loader != "vue" && rule.Loader != paths.Compiler && !usesCompiler {
			continue
		}

		switch {
		case schema == SchemaLegacy || (!rule.hasOptions() && !usesCompiler):
			rule.Loader = loaderString
		case !usesCompiler:
			compiler := LoaderRef{Loader: paths.Compiler, Options: rule.Options, Query: rule.Query}
			rule.Options, rule.Query = nil, nil
			rule.Loader = ""
			rule.Use = LoaderRefs{{Loader: paths.Framework}, compiler}
		default:
			rule.Use = append(LoaderRefs{{Loader: paths.Framework}}, rule.Use...)
		}
		rewritten = true
	}

	if !rewritten {
		*rules = append(*rules, &Rule{Test: `\.vue$`, Loader: loaderString})
	}
}

// appendJSLoader appends the js loader to every rule run by the given transpiler
// (short is its "-loader"-less alias). Rules already carrying it are skipped.
func appendJSLoader(rules []*Rule, schema SchemaVersion, transpiler, short, jsLoader string) {
	for _, rule := range rules {
		if rule.references(jsLoader) {
			continue
		}
		if len(rule.Use) > 0 && rule.Use[0].Loader == transpiler {
			rule.Use = append(rule.Use, LoaderRef{Loader: jsLoader})
			continue
		}

		bare := strings.Contains(rule.Loader, short) && !strings.Contains(rule.Loader, "!")
		if rule.Loader != short && rule.Loader != transpiler && !bare {
			continue
		}
		if schema == SchemaCurrent && rule.hasOptions() {
			rule.Use = LoaderRefs{{Loader: transpiler, Options: rule.takeOptions()}, {Loader: jsLoader}}
			rule.Loader = ""
			continue
		}
		rule.Loader = transpiler + "!" + jsLoader
	}
}

// componentSourceRule routes the installed component library sources through Babel.
func componentSourceRule(projectRoot, name string) (*Rule, error) {
	componentPath, err := filepath.EvalSymlinks(filepath.Join(projectRoot, "node_modules", name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s sources: %w", name, err)
	}
	return &Rule{
		Test:    fmt.Sprintf(`node_modules.*%s.src.*?js$`, name),
		Loader:  "babel-loader",
		Include: componentPath,
	}, nil
}

func containsRule(rules []*Rule, target *Rule) bool {
	for _, r := range rules {
		if r.Test == target.Test && r.Include == target.Include {
			return true
		}
	}
	return false
}
