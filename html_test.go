// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/net/html"
)

// Test helper functions
func parseTestDocument(t *testing.T, content string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Failed to parse HTML: %v", err)
	}
	return doc
}

func renderTestDocument(t *testing.T, doc *html.Node) string {
	t.Helper()
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		t.Fatalf("Failed to render HTML: %v", err)
	}
	return buf.String()
}

func testPluginBuild(entryPoints ...string) *api.PluginBuild {
	return &api.PluginBuild{
		InitialOptions: &api.BuildOptions{EntryPoints: entryPoints},
	}
}

// Unit tests for HtmlProcessor
func TestNewHtmlProcessor(t *testing.T) {
	tests := []struct {
		name     string
		options  HtmlProcessorOptions
		contains []string
	}{
		{
			name:    "default_builders",
			options: HtmlProcessorOptions{},
			contains: []string{
				`<script crossorigin="" type="module" src="assets/entry-abc123.js"></script>`,
				`<link crossorigin="" rel="stylesheet" href="assets/entry-def456.css"/>`,
			},
		},
		{
			name: "custom_script_builder",
			options: HtmlProcessorOptions{
				ScriptAttrBuilder: func(filename string, htmlFile string) []html.Attribute {
					return []html.Attribute{{Key: "src", Val: "/cdn/" + filepath.Base(filename)}}
				},
			},
			contains: []string{
				`<script src="/cdn/entry-abc123.js"></script>`,
				`href="assets/entry-def456.css"`,
			},
		},
		{
			name: "custom_css_builder",
			options: HtmlProcessorOptions{
				CssAttrBuilder: func(filename string, htmlFile string) []html.Attribute {
					return []html.Attribute{{Key: "href", Val: "/cdn/" + filepath.Base(filename)}}
				},
			},
			contains: []string{
				`src="assets/entry-abc123.js"`,
				`<link href="/cdn/entry-def456.css"/>`,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			processor := NewHtmlProcessor(test.options)
			doc := parseTestDocument(t, `<html><head></head><body></body></html>`)

			result := &api.BuildResult{
				OutputFiles: []api.OutputFile{
					{Path: "/test/assets/entry-abc123.js"},
					{Path: "/test/assets/entry-def456.css"},
				},
			}
			htmlOptions := &IndexHtmlOptions{OutFile: "/test/index.html"}

			if err := processor(doc, result, htmlOptions, testPluginBuild("/src/entry.js")); err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}

			rendered := renderTestDocument(t, doc)
			for _, want := range test.contains {
				if !strings.Contains(rendered, want) {
					t.Errorf("Expected HTML to contain %q, got:\n%s", want, rendered)
				}
			}
		})
	}
}

func TestHtmlProcessorFileFiltering(t *testing.T) {
	processor := NewHtmlProcessor(HtmlProcessorOptions{})
	doc := parseTestDocument(t, `<html><head></head><body></body></html>`)

	result := &api.BuildResult{
		OutputFiles: []api.OutputFile{
			{Path: "/test/entry-abc123.js"},     // Should be included
			{Path: "/test/entry-def456.css"},    // Should be included
			{Path: "/test/other-xyz789.js"},     // Should be skipped
			{Path: "/test/another-uvw.css"},     // Should be skipped
			{Path: "/test/entry-abc123.js.map"}, // Should be skipped
		},
	}

	if err := processor(doc, result, &IndexHtmlOptions{OutFile: "/test/index.html"}, testPluginBuild("/test/entry.js")); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	htmlResult := renderTestDocument(t, doc)
	if !strings.Contains(htmlResult, "entry-abc123.js") {
		t.Error("Expected HTML to contain entry-abc123.js")
	}
	if !strings.Contains(htmlResult, "entry-def456.css") {
		t.Error("Expected HTML to contain entry-def456.css")
	}
	if strings.Contains(htmlResult, "other-xyz789.js") || strings.Contains(htmlResult, "another-uvw.css") {
		t.Error("Expected HTML to not contain outputs of other entry points")
	}
	if strings.Contains(htmlResult, ".map") {
		t.Error("Expected source maps to be skipped")
	}
}

func TestHtmlProcessorRemoveTagXPaths(t *testing.T) {
	processor := NewHtmlProcessor(HtmlProcessorOptions{})
	doc := parseTestDocument(t, `<html><head><title>Test</title><meta name="remove-me" content="test"></head><body></body></html>`)

	htmlOptions := &IndexHtmlOptions{
		OutFile:         "/test/index.html",
		RemoveTagXPaths: []string{"//meta[@name='remove-me']"},
	}
	if err := processor(doc, &api.BuildResult{}, htmlOptions, testPluginBuild("/test/entry.js")); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	htmlResult := renderTestDocument(t, doc)
	if strings.Contains(htmlResult, `name="remove-me"`) {
		t.Error("Expected meta tag to be removed")
	}
	if !strings.Contains(htmlResult, "<title>Test</title>") {
		t.Error("Expected title tag to remain")
	}
}

func TestHtmlProcessorWithoutHead(t *testing.T) {
	processor := NewHtmlProcessor(HtmlProcessorOptions{})
	doc := &html.Node{Type: html.DocumentNode}

	err := processor(doc, &api.BuildResult{}, &IndexHtmlOptions{SourceFile: "page.html"}, testPluginBuild("/test/entry.js"))
	if err == nil || !strings.Contains(err.Error(), "no <head> in page.html") {
		t.Errorf("Expected missing head error, got: %v", err)
	}
}

func TestManifestProcessor(t *testing.T) {
	metafile := `{"inputs":{},"outputs":{
		"dist/main-X1.js":{"entryPoint":"src/main.js"},
		"dist/chunk-Y2.js":{},
		"dist/admin-Z3.js":{"entryPoint":"src/admin.js"}
	}}`

	t.Run("inlined_first_in_head", func(t *testing.T) {
		doc := parseTestDocument(t, `<html><head><title>Test</title></head><body></body></html>`)
		processor := newManifestProcessor("webpackManifest")

		if err := processor(doc, &api.BuildResult{Metafile: metafile}, &IndexHtmlOptions{}, testPluginBuild()); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		head := htmlquery.FindOne(doc, "//head")
		first := head.FirstChild
		if first == nil || first.Data != "script" {
			t.Fatalf("Expected manifest script as first head child, got %v", first)
		}
		want := `window.webpackManifest={"src/admin.js":"dist/admin-Z3.js","src/main.js":"dist/main-X1.js"};`
		if got := htmlquery.InnerText(first); got != want {
			t.Errorf("Expected manifest %q, got %q", want, got)
		}
	})

	t.Run("empty_metafile", func(t *testing.T) {
		doc := parseTestDocument(t, `<html><head></head></html>`)
		err := newManifestProcessor("m")(doc, &api.BuildResult{}, &IndexHtmlOptions{}, testPluginBuild())
		if err == nil {
			t.Error("Expected error for empty metafile")
		}
	})
}

func TestEntryManifest(t *testing.T) {
	tests := []struct {
		name     string
		metafile string
		want     map[string]string
		wantErr  bool
	}{
		{
			name:     "entries_only",
			metafile: `{"outputs":{"out/a.js":{"entryPoint":"a.js"},"out/a.css":{},"out/chunk.js":{"entryPoint":""}}}`,
			want:     map[string]string{"a.js": "out/a.js"},
		},
		{
			name:     "no_outputs",
			metafile: `{"inputs":{}}`,
			want:     map[string]string{},
		},
		{
			name:    "empty",
			wantErr: true,
		},
		{
			name:     "invalid_json",
			metafile: `{"outputs":`,
			wantErr:  true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := entryManifest(test.metafile)
			if test.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if len(got) != len(test.want) {
				t.Fatalf("Expected %v, got %v", test.want, got)
			}
			for k, v := range test.want {
				if got[k] != v {
					t.Errorf("Expected %s -> %s, got %s", k, v, got[k])
				}
			}
		})
	}
}

func TestIndexHtmlOptionsFrom(t *testing.T) {
	got := indexHtmlOptionsFrom(map[string]any{
		"sourceFile":      "index.html",
		"outFile":         "dist/index.html",
		"removeTagXPaths": []any{"//script[@id='dev']", 42, "//link[@rel='preload']"},
		"unknown":         true,
	})

	if got.SourceFile != "index.html" || got.OutFile != "dist/index.html" {
		t.Errorf("Unexpected files: %+v", got)
	}
	if len(got.RemoveTagXPaths) != 2 || got.RemoveTagXPaths[1] != "//link[@rel='preload']" {
		t.Errorf("Expected two string xpaths, got %v", got.RemoveTagXPaths)
	}

	if empty := indexHtmlOptionsFrom(nil); empty.SourceFile != "" || empty.RemoveTagXPaths != nil {
		t.Errorf("Expected zero options from nil map, got %+v", empty)
	}
}

func TestBuildIndexHtml(t *testing.T) {
	tmpDir := t.TempDir()
	sourceFile := filepath.Join(tmpDir, "index.html")
	outFile := filepath.Join(tmpDir, "dist", "index.html")
	writeTestFile(t, sourceFile, `<!DOCTYPE html><html><head><title>Test</title></head><body></body></html>`)

	result := &api.BuildResult{
		OutputFiles: []api.OutputFile{{Path: filepath.Join(tmpDir, "dist", "main.js")}},
		Metafile:    `{"outputs":{"dist/main.js":{"entryPoint":"main.js"}}}`,
	}
	build := testPluginBuild(filepath.Join(tmpDir, "main.js"))

	var order []string
	opts := newOptions()
	WithIndexHtmlProcessor(func(doc *html.Node, result *api.BuildResult, htmlOptions *IndexHtmlOptions, build *api.PluginBuild) error {
		order = append(order, "processor")
		return nil
	})(opts)

	sides := &sidePlugins{
		manifest: &InlineManifestPlugin{Name: "webpackManifest"},
		html: &HTMLBuildCallbackPlugin{
			Options: map[string]any{"sourceFile": sourceFile, "outFile": outFile},
			Fn: func(doc *html.Node, result *api.BuildResult) error {
				order = append(order, "callback")
				body := htmlquery.FindOne(doc, "//body")
				body.AppendChild(&html.Node{Type: html.ElementNode, Data: "div", Attr: []html.Attribute{{Key: "id", Val: "app"}}})
				return nil
			},
		},
	}

	if err := buildIndexHtml(sides, result, opts, build); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if strings.Join(order, ",") != "processor,callback" {
		t.Errorf("Expected processors before the plugin callback, got %v", order)
	}

	page, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("Expected page to be written: %v", err)
	}
	content := string(page)
	for _, want := range []string{
		`window.webpackManifest={"main.js":"dist/main.js"};`,
		`<script crossorigin="" type="module" src="main.js"></script>`,
		`<div id="app"></div>`,
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Expected page to contain %q, got:\n%s", want, content)
		}
	}
}

func TestBuildIndexHtmlErrors(t *testing.T) {
	tmpDir := t.TempDir()
	sourceFile := filepath.Join(tmpDir, "index.html")
	writeTestFile(t, sourceFile, `<html><head></head><body></body></html>`)
	build := testPluginBuild(filepath.Join(tmpDir, "main.js"))

	tests := []struct {
		name    string
		options map[string]any
		fn      HTMLCallback
		proc    IndexHtmlProcessor
		wantErr string
	}{
		{
			name:    "missing_out_file",
			options: map[string]any{"sourceFile": sourceFile},
			wantErr: "requires sourceFile and outFile",
		},
		{
			name:    "missing_source_file",
			options: map[string]any{"sourceFile": filepath.Join(tmpDir, "none.html"), "outFile": filepath.Join(tmpDir, "out.html")},
			wantErr: "failed to open source file",
		},
		{
			name:    "processor_error",
			options: map[string]any{"sourceFile": sourceFile, "outFile": filepath.Join(tmpDir, "out.html")},
			proc: func(*html.Node, *api.BuildResult, *IndexHtmlOptions, *api.PluginBuild) error {
				return errors.New("processor failed")
			},
			wantErr: "processor failed",
		},
		{
			name:    "callback_error",
			options: map[string]any{"sourceFile": sourceFile, "outFile": filepath.Join(tmpDir, "out.html")},
			fn: func(*html.Node, *api.BuildResult) error {
				return errors.New("callback failed")
			},
			wantErr: "html-build-callback: callback failed",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			opts := newOptions()
			if test.proc != nil {
				WithIndexHtmlProcessor(test.proc)(opts)
			}
			sides := &sidePlugins{html: &HTMLBuildCallbackPlugin{Options: test.options, Fn: test.fn}}

			err := buildIndexHtml(sides, &api.BuildResult{}, opts, build)
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", test.wantErr, err)
			}
		})
	}
}

// Unit tests for detectAndConvertToUTF8
func TestDetectAndConvertToUTF8(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "utf8_content",
			content:  "<html><head><title>UTF-8 Test</title></head></html>",
			expected: "<html><head><title>UTF-8 Test</title></head></html>",
		},
		{
			name:     "latin1_content",
			content:  "<html><head><meta charset=\"iso-8859-1\"></head><body>caf\xe9</body></html>",
			expected: "<html><head><meta charset=\"iso-8859-1\"></head><body>café</body></html>",
		},
		{
			name:     "empty_content",
			content:  "",
			expected: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			utf8Reader, err := detectAndConvertToUTF8(strings.NewReader(test.content))
			if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}

			result, err := io.ReadAll(utf8Reader)
			if err != nil {
				t.Errorf("Expected no error reading, got: %v", err)
			}

			if string(result) != test.expected {
				t.Errorf("Expected '%s', got '%s'", test.expected, string(result))
			}
		})
	}
}

func TestDetectAndConvertToUTF8ReadError(t *testing.T) {
	_, err := detectAndConvertToUTF8(&failingReader{})
	if err == nil {
		t.Error("Expected error from failing reader, got nil")
	}
}

// failingReader is a test helper that always returns an error
type failingReader struct{}

func (r *failingReader) Read(p []byte) (n int, err error) {
	return 0, errors.New("read error")
}
