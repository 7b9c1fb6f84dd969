// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeStyleSheet(t *testing.T) {
	tests := []struct {
		name   string
		css    string
		count  map[string]int
		before [][2]string
	}{
		{
			name:   "keeps_last_copy",
			css:    ".a { color: red; }\n.b { color: green; }\n.a { color: red; }\n",
			count:  map[string]int{".a": 1, ".b": 1},
			before: [][2]string{{".b", ".a"}},
		},
		{
			name:  "whitespace_insensitive",
			css:   ".a { color: red; }\n.a{color:red;}\n.a {\n  color: red;\n}\n",
			count: map[string]int{".a": 1},
		},
		{
			name:  "comments_ignored",
			css:   "/* a.css */\n.x {\n  color: red;\n}\n\n/* b.css */\n.x {\n  color: red;\n}\n",
			count: map[string]int{".x": 1, "a.css": 0},
		},
		{
			name:   "media_blocks",
			css:    "@media (max-width: 600px) { .a { color: red; } }\n.a { color: green; }\n@media (max-width: 600px) { .a { color: red; } }\n",
			count:  map[string]int{"@media": 1, ".a": 2},
			before: [][2]string{{"green", "@media"}},
		},
		{
			name:  "different_declarations_kept",
			css:   ".a { color: red; }\n.a { margin: 0; }\n",
			count: map[string]int{".a": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dedupeStyleSheet("main.css", []byte(tt.css))
			require.NoError(t, err)
			css := string(got)
			for sub, n := range tt.count {
				assert.Equal(t, n, strings.Count(css, sub), "occurrences of %q in %q", sub, css)
			}
			for _, pair := range tt.before {
				assert.Less(t, strings.Index(css, pair[0]), strings.Index(css, pair[1]), "%q before %q in %q", pair[0], pair[1], css)
			}
		})
	}
}

func TestDedupeOutputStyles(t *testing.T) {
	dup := []byte(".a { color: red; }\n.b { color: green; }\n.a { color: red; }\n")
	files := []api.OutputFile{
		{Path: "/dist/main.js", Contents: []byte("console.log(1);console.log(1);")},
		{Path: "/dist/main.css", Contents: dup},
		{Path: "/dist/admin.css", Contents: append([]byte(nil), dup...)},
	}

	changed, err := dedupeOutputStyles(files)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	assert.Equal(t, "console.log(1);console.log(1);", string(files[0].Contents))
	for _, f := range files[1:] {
		css := string(f.Contents)
		assert.Equal(t, 1, strings.Count(css, ".a"), css)
		assert.Less(t, strings.Index(css, ".b"), strings.Index(css, ".a"), css)
	}

	changed, err = dedupeOutputStyles(files)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
}
