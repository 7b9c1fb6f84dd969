// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package qjscallback provides a QuickJS engine running the script callbacks
// of the build-done and build-emit plugins.
package qjscallback

import (
	jsexecutor "github.com/buke/js-executor"
	quickjsengine "github.com/buke/js-executor/engines/quickjs-go"
)

// NewCallbackFactory creates a JsEngineFactory with the callback runtime and
// file system helpers loaded. Additional QuickJS engine options are applied first.
func NewCallbackFactory(options ...quickjsengine.Option) jsexecutor.JsEngineFactory {
	options = append(options, loadFsModule)
	options = append(options, loadCallbackModule)
	return quickjsengine.NewFactory(options...)
}
