// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// HtmlProcessorOptions holds builder functions for script and CSS tag attributes.
type HtmlProcessorOptions struct {
	ScriptAttrBuilder func(filename string, htmlFile string) []html.Attribute
	CssAttrBuilder    func(filename string, htmlFile string) []html.Attribute
}

// relativeTo returns filename relative to the directory of htmlFile, with forward slashes.
func relativeTo(filename, htmlFile string) string {
	if rel, err := filepath.Rel(filepath.Dir(htmlFile), filename); err == nil && rel != "" {
		return filepath.ToSlash(rel)
	}
	return filename
}

// NewHtmlProcessor returns an IndexHtmlProcessor injecting the entry JS and CSS
// outputs into <head> and removing the configured nodes.
func NewHtmlProcessor(processorOptions HtmlProcessorOptions) IndexHtmlProcessor {
	if processorOptions.ScriptAttrBuilder == nil {
		processorOptions.ScriptAttrBuilder = func(filename, htmlFile string) []html.Attribute {
			return []html.Attribute{
				{Key: "crossorigin", Val: ""},
				{Key: "type", Val: "module"},
				{Key: "src", Val: relativeTo(filename, htmlFile)},
			}
		}
	}
	if processorOptions.CssAttrBuilder == nil {
		processorOptions.CssAttrBuilder = func(filename, htmlFile string) []html.Attribute {
			return []html.Attribute{
				{Key: "crossorigin", Val: ""},
				{Key: "rel", Val: "stylesheet"},
				{Key: "href", Val: relativeTo(filename, htmlFile)},
			}
		}
	}

	return func(doc *html.Node, result *api.BuildResult, htmlOptions *IndexHtmlOptions, build *api.PluginBuild) error {
		htmlFile, _ := filepath.Abs(htmlOptions.OutFile)
		headNode := htmlquery.FindOne(doc, "//head")
		if headNode == nil {
			return fmt.Errorf("no <head> in %s", htmlOptions.SourceFile)
		}

		for _, outputFile := range result.OutputFiles {
			outputPath, _ := filepath.Abs(outputFile.Path)
			if !fromEntryPoint(outputPath, build.InitialOptions.EntryPoints) {
				continue
			}

			var node *html.Node
			switch filepath.Ext(outputPath) {
			case ".js":
				node = &html.Node{Type: html.ElementNode, Data: "script", Attr: processorOptions.ScriptAttrBuilder(outputPath, htmlFile)}
			case ".css":
				node = &html.Node{Type: html.ElementNode, Data: "link", Attr: processorOptions.CssAttrBuilder(outputPath, htmlFile)}
			default:
				continue
			}
			headNode.AppendChild(node)
			headNode.AppendChild(&html.Node{Type: html.TextNode, Data: "\n"})
		}

		for _, xpath := range htmlOptions.RemoveTagXPaths {
			for _, node := range htmlquery.Find(doc, xpath) {
				if node.Parent != nil {
					node.Parent.RemoveChild(node)
				}
			}
		}
		return nil
	}
}

// fromEntryPoint reports whether an output file was generated from one of the entry points.
func fromEntryPoint(outputPath string, entryPoints []string) bool {
	for _, entryPoint := range entryPoints {
		entry := filepath.Base(entryPoint)
		if strings.HasPrefix(filepath.Base(outputPath), strings.TrimSuffix(entry, filepath.Ext(entry))) {
			return true
		}
	}
	return false
}

// newManifestProcessor inlines the entry manifest as a global variable in <head>.
func newManifestProcessor(name string) IndexHtmlProcessor {
	return func(doc *html.Node, result *api.BuildResult, htmlOptions *IndexHtmlOptions, build *api.PluginBuild) error {
		manifest, err := entryManifest(result.Metafile)
		if err != nil {
			return err
		}
		data, err := json.Marshal(manifest)
		if err != nil {
			return err
		}
		headNode := htmlquery.FindOne(doc, "//head")
		if headNode == nil {
			return fmt.Errorf("no <head> in %s", htmlOptions.SourceFile)
		}
		script := &html.Node{Type: html.ElementNode, Data: "script"}
		script.AppendChild(&html.Node{Type: html.TextNode, Data: fmt.Sprintf("window.%s=%s;", name, data)})
		headNode.InsertBefore(script, headNode.FirstChild)
		return nil
	}
}

// entryManifest maps each entry point to its output file, read from the metafile.
func entryManifest(metafile string) (map[string]string, error) {
	if metafile == "" {
		return nil, fmt.Errorf("metafile is empty")
	}
	var meta struct {
		Outputs map[string]struct {
			EntryPoint string `json:"entryPoint"`
		} `json:"outputs"`
	}
	if err := json.Unmarshal([]byte(metafile), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}
	manifest := make(map[string]string)
	for output, info := range meta.Outputs {
		if info.EntryPoint != "" {
			manifest[info.EntryPoint] = filepath.ToSlash(output)
		}
	}
	return manifest, nil
}

func indexHtmlOptionsFrom(options map[string]any) IndexHtmlOptions {
	var htmlOptions IndexHtmlOptions
	htmlOptions.SourceFile, _ = options["sourceFile"].(string)
	htmlOptions.OutFile, _ = options["outFile"].(string)
	if xpaths, ok := options["removeTagXPaths"].([]any); ok {
		for _, xpath := range xpaths {
			if s, ok := xpath.(string); ok {
				htmlOptions.RemoveTagXPaths = append(htmlOptions.RemoveTagXPaths, s)
			}
		}
	}
	return htmlOptions
}

// buildIndexHtml reads the page template, runs the processor chain and the
// plugin callback, then writes the page.
func buildIndexHtml(sides *sidePlugins, result *api.BuildResult, opts *Options, build *api.PluginBuild) error {
	htmlOptions := indexHtmlOptionsFrom(sides.html.Options)
	if htmlOptions.SourceFile == "" || htmlOptions.OutFile == "" {
		return fmt.Errorf("html-build-callback requires sourceFile and outFile options")
	}

	htmlOptions.IndexHtmlProcessors = append(htmlOptions.IndexHtmlProcessors, NewHtmlProcessor(HtmlProcessorOptions{}))
	if sides.manifest != nil {
		htmlOptions.IndexHtmlProcessors = append(htmlOptions.IndexHtmlProcessors, newManifestProcessor(sides.manifest.Name))
	}
	htmlOptions.IndexHtmlProcessors = append(htmlOptions.IndexHtmlProcessors, opts.indexHtmlProcessors...)

	sourceFile, err := os.Open(htmlOptions.SourceFile)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	utf8Reader, err := detectAndConvertToUTF8(sourceFile)
	if err != nil {
		return fmt.Errorf("failed to convert source file to UTF-8: %w", err)
	}
	doc, err := htmlquery.Parse(utf8Reader)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", htmlOptions.SourceFile, err)
	}

	for _, processor := range htmlOptions.IndexHtmlProcessors {
		if err := processor(doc, result, &htmlOptions, build); err != nil {
			return err
		}
	}
	if sides.html.Fn != nil {
		if err := sides.html.Fn(doc, result); err != nil {
			return fmt.Errorf("html-build-callback: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(htmlOptions.OutFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(htmlOptions.OutFile, buf.Bytes(), 0644)
}

func detectAndConvertToUTF8(r io.Reader) (io.Reader, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	encoding, _, _ := charset.DetermineEncoding(b, "")
	return transform.NewReader(bytes.NewReader(b), encoding.NewDecoder()), nil
}
