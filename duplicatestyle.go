// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash"
	"github.com/evanw/esbuild/pkg/api"
)

// dedupeOutputStyles runs every .css output through the esbuild CSS minifier,
// which drops a rule when an identical rule appears later in the same file.
// The last copy is kept so the cascade is unchanged. It returns the number of
// files whose contents changed.
func dedupeOutputStyles(files []api.OutputFile) (int, error) {
	changed := 0
	cache := make(map[uint64][]byte)
	for i := range files {
		if filepath.Ext(files[i].Path) != ".css" {
			continue
		}
		sum := xxhash.Sum64(files[i].Contents)
		css, ok := cache[sum]
		if !ok {
			var err error
			css, err = dedupeStyleSheet(files[i].Path, files[i].Contents)
			if err != nil {
				return changed, err
			}
			cache[sum] = css
		}
		if string(css) != string(files[i].Contents) {
			files[i].Contents = css
			changed++
		}
	}
	return changed, nil
}

func dedupeStyleSheet(path string, contents []byte) ([]byte, error) {
	result := api.Transform(string(contents), api.TransformOptions{
		Loader:       api.LoaderCSS,
		Sourcefile:   path,
		MinifySyntax: true,
		LogLevel:     api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("duplicate-style: %s: %s", path, result.Errors[0].Text)
	}
	return result.Code, nil
}
