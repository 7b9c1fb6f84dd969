// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package qjscallback

import (
	"errors"
	"os"
	"path/filepath"

	quickjsengine "github.com/buke/js-executor/engines/quickjs-go"
	"github.com/buke/quickjs-go"
)

// fileExistsFunc reports whether a file exists at the given path.
func fileExistsFunc(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
	if len(args) < 1 {
		return ctx.Bool(false)
	}
	if _, err := os.Stat(args[0].String()); err != nil {
		return ctx.Bool(false)
	}
	return ctx.Bool(true)
}

// readFileFunc returns the content of a file as a string.
func readFileFunc(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
	if len(args) < 1 {
		return ctx.ThrowError(errors.New("readFile requires a path"))
	}
	data, err := os.ReadFile(args[0].String())
	if err != nil {
		return ctx.ThrowError(err)
	}
	return ctx.String(string(data))
}

// writeFileFunc writes a string to a file, creating parent directories.
func writeFileFunc(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
	if len(args) < 2 {
		return ctx.ThrowError(errors.New("writeFile requires a path and content"))
	}
	file := args[0].String()
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return ctx.ThrowError(err)
	}
	if err := os.WriteFile(file, []byte(args[1].String()), 0644); err != nil {
		return ctx.ThrowError(err)
	}
	return ctx.Undefined()
}

// loadFsModule injects a 'vuxFs' object with fileExists, readFile and
// writeFile for script callbacks.
func loadFsModule(jse *quickjsengine.Engine) error {
	globalsObj := jse.Ctx.Globals()
	fsObj := jse.Ctx.Object()
	fsObj.Set("fileExists", jse.Ctx.Function(fileExistsFunc))
	fsObj.Set("readFile", jse.Ctx.Function(readFileFunc))
	fsObj.Set("writeFile", jse.Ctx.Function(writeFileFunc))
	globalsObj.Set("vuxFs", fsObj)
	return nil
}
