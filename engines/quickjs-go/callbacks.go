// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package qjscallback

import (
	_ "embed"
	"sync"

	quickjsengine "github.com/buke/js-executor/engines/quickjs-go"
	quickjs "github.com/buke/quickjs-go"
)

// callbackScript defines vux.callbacks.run(source, payload). The source is the
// body of a function taking the build summary as 'result' and 'fs' as vuxFs.
// A thrown error is returned as {error: message}.
//
//go:embed runtime/callbacks.js
var callbackScript string

var (
	once                   sync.Once
	callbackScriptBytecode []byte
)

// getCallbackScriptBytecode compiles the embedded runtime once per process.
func getCallbackScriptBytecode(jse *quickjsengine.Engine) []byte {
	once.Do(func() {
		b, err := jse.Ctx.Compile(callbackScript, quickjs.EvalFileName("runtime/callbacks.js"))
		if err != nil {
			panic(err)
		}
		callbackScriptBytecode = b
	})
	return callbackScriptBytecode
}

func loadCallbackModule(jse *quickjsengine.Engine) error {
	ret := jse.Ctx.EvalBytecode(getCallbackScriptBytecode(jse))
	defer ret.Free()

	if ret.IsException() {
		return jse.Ctx.Exception()
	}
	return nil
}
