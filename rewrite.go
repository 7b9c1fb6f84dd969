// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	requirePattern        = regexp.MustCompile(`require\("(.*?)"\)`)
	scriptImportPattern   = regexp.MustCompile(`import\s__vue_script__\sfrom\s"(.*?)"`)
	templateImportPattern = regexp.MustCompile(`import\s__vue_template__\sfrom\s"(.*?)"`)
)

const (
	scriptImportMarker   = "import __vue_script__ from"
	templateImportMarker = "import __vue_template__ from"

	// quoteSentinel stands in for \" while requests are matched.
	quoteSentinel = "$VUX$"

	tagScript   = "type=script"
	tagTemplate = "type=template"
	tagStyle    = "type=style"

	transpilerPrefix = "!!babel-loader"
)

// Rewriter splices framework loaders into the requests generated by the
// single-file-component compiler.
type Rewriter struct {
	Script                 string
	Style                  string
	AfterLess              string
	Template               string
	BeforeTemplateCompiler string

	// ThemeVariables are passed to the LESS loader as modifyVars.
	ThemeVariables map[string]string
}

// NewRewriter returns a Rewriter inserting the given loaders.
func NewRewriter(paths LoaderPaths, themeVariables map[string]string) *Rewriter {
	return &Rewriter{
		Script:                 paths.Script,
		Style:                  paths.Style,
		AfterLess:              paths.AfterLess,
		Template:               paths.Template,
		BeforeTemplateCompiler: paths.BeforeTemplateCompiler,
		ThemeVariables:         themeVariables,
	}
}

// Rewrite runs the script, style and template passes.
func (r *Rewriter) Rewrite(source string) string {
	source = r.RewriteScript(source)
	source = r.RewriteStyle(source)
	return r.RewriteTemplate(source)
}

// RewriteScript inserts the script loader in front of "type=script" segments, or
// right after the transpiler of untagged "!!babel-loader!" requests.
func (r *Rewriter) RewriteScript(source string) string {
	return rewriteRequests(source, scriptImportMarker, scriptImportPattern, func(request string) string {
		if strings.Contains(request, tagScript) {
			return ParseChain(request).InsertBefore(r.Script, containsTag(tagScript)).String()
		}
		if strings.HasPrefix(request, transpilerPrefix) {
			return ParseChain(request).InsertAfterFirst(r.Script, namesLoader("babel-loader")).String()
		}
		return request
	})
}

// RewriteTemplate inserts the template loader in front of "type=template" segments
// and the before-template-compile loader behind the template compiler.
func (r *Rewriter) RewriteTemplate(source string) string {
	return rewriteRequests(source, templateImportMarker, templateImportPattern, func(request string) string {
		if !strings.Contains(request, tagTemplate) {
			return request
		}
		return ParseChain(request).Expand(func(segment string) []string {
			out := []string{segment}
			if strings.Contains(segment, tagTemplate) {
				out = []string{r.Template, segment}
			}
			if strings.Contains(segment, "template-compiler/index") {
				out = append(out, r.BeforeTemplateCompiler)
			}
			return out
		}).String()
	})
}

// RewriteStyle inserts the style loader in front of "type=style" segments and the
// after-less loader in front of the LESS loader, which also receives the theme
// variables.
func (r *Rewriter) RewriteStyle(source string) string {
	return rewriteRequests(source, "", nil, func(request string) string {
		if !strings.Contains(request, tagStyle) {
			return request
		}
		return ParseChain(request).Expand(func(segment string) []string {
			var out []string
			isLess := strings.Contains(segment, "less-loader")
			if isLess {
				out = append(out, r.AfterLess)
				if len(r.ThemeVariables) > 0 {
					segment = lessQuery(segment, r.ThemeVariables)
				}
			}
			if strings.Contains(segment, tagStyle) {
				out = append(out, r.Style)
			}
			return append(out, segment)
		}).String()
	})
}

// lessQuery replaces the segment query with the theme variables as single-quoted
// JSON, keeping a sourceMap flag.
func lessQuery(segment string, variables map[string]string) string {
	params := map[string]any{"modifyVars": variables}
	if strings.Contains(segment, "sourceMap") {
		params["sourceMap"] = true
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(params); err != nil {
		return segment
	}
	query := strings.ReplaceAll(strings.TrimSpace(buf.String()), `"`, "'")
	return loaderName(segment) + "?" + query
}

// rewriteRequests applies rewrite to the request of every require("...") call, or
// of every import matched by importPattern when importMarker occurs in source.
// Escaped quotes are masked while matching.
func rewriteRequests(source, importMarker string, importPattern *regexp.Regexp, rewrite func(request string) string) string {
	if strings.Contains(source, quoteSentinel) {
		// the sentinel could not be told apart from a masked quote
		return rewriteMasked(source, importMarker, importPattern, rewrite)
	}
	masked := strings.ReplaceAll(source, `\"`, quoteSentinel)
	return strings.ReplaceAll(rewriteMasked(masked, importMarker, importPattern, rewrite), quoteSentinel, `\"`)
}

func rewriteMasked(masked, importMarker string, importPattern *regexp.Regexp, rewrite func(request string) string) string {
	pattern := requirePattern
	if importMarker != "" && strings.Contains(masked, importMarker) {
		pattern = importPattern
	}

	var b strings.Builder
	last := 0
	for _, m := range pattern.FindAllStringSubmatchIndex(masked, -1) {
		b.WriteString(masked[last:m[2]])
		b.WriteString(rewrite(masked[m[2]:m[3]]))
		last = m[3]
	}
	b.WriteString(masked[last:])
	return b.String()
}
