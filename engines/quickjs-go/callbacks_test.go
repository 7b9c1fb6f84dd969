// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package qjscallback

import (
	"reflect"
	"sync"
	"testing"

	quickjsengine "github.com/buke/js-executor/engines/quickjs-go"
	"github.com/buke/quickjs-go"
)

func resetOnceForTesting() {
	once = sync.Once{}
	callbackScriptBytecode = nil
}

func newTestEngine(t *testing.T) *quickjsengine.Engine {
	t.Helper()
	runtime := quickjs.NewRuntime()
	ctx := runtime.NewContext()
	t.Cleanup(func() {
		ctx.Close()
		runtime.Close()
	})
	return &quickjsengine.Engine{Runtime: runtime, Ctx: ctx}
}

// TestGetCallbackScriptBytecode tests the bytecode is compiled once and cached
func TestGetCallbackScriptBytecode(t *testing.T) {
	engine := newTestEngine(t)
	resetOnceForTesting()

	bytecode1 := getCallbackScriptBytecode(engine)
	if len(bytecode1) == 0 {
		t.Fatal("Expected non-empty bytecode")
	}
	bytecode2 := getCallbackScriptBytecode(engine)
	if !reflect.DeepEqual(bytecode1, bytecode2) {
		t.Error("Expected the same bytecode from cache")
	}
}

// TestLoadCallbackModule tests vux.callbacks.run is defined after loading
func TestLoadCallbackModule(t *testing.T) {
	engine := newTestEngine(t)
	resetOnceForTesting()

	if err := loadCallbackModule(engine); err != nil {
		t.Fatalf("Failed to load callback module: %v", err)
	}

	result := engine.Ctx.Eval("typeof vux.callbacks.run")
	defer result.Free()
	if result.String() != "function" {
		t.Errorf("Expected vux.callbacks.run to be a function, got: %s", result.String())
	}
}

// TestCallbackRun tests the runtime passes the payload and reports thrown errors
func TestCallbackRun(t *testing.T) {
	engine := newTestEngine(t)
	resetOnceForTesting()

	if err := loadCallbackModule(engine); err != nil {
		t.Fatalf("Failed to load callback module: %v", err)
	}

	tests := []struct {
		name     string
		script   string
		expected string
	}{
		{"string_result", `vux.callbacks.run("return 'outputs: ' + result.outputFiles.length", {outputFiles: ["a.js", "b.css"]})`, "outputs: 2"},
		{"undefined_result", `vux.callbacks.run("result.seen = true", {})`, ""},
		{"object_result", `vux.callbacks.run("return {ok: true}", {})`, `{"ok":true}`},
		{"thrown_error", `vux.callbacks.run("throw new Error('boom')", {}).error`, "boom"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := engine.Ctx.Eval(test.script)
			defer result.Free()

			if result.IsException() {
				t.Fatalf("Unexpected exception: %v", engine.Ctx.Exception())
			}
			if result.String() != test.expected {
				t.Errorf("Expected '%s', got '%s'", test.expected, result.String())
			}
		})
	}
}

// TestNewCallbackFactory tests engines created by the factory apply custom options
func TestNewCallbackFactory(t *testing.T) {
	customOptionCalled := false
	factory := NewCallbackFactory(func(engine *quickjsengine.Engine) error {
		customOptionCalled = true
		return nil
	})
	if factory == nil {
		t.Fatal("Expected non-nil factory")
	}

	engine, err := factory()
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	if !customOptionCalled {
		t.Error("Expected custom option to be called")
	}
	qjsEngine, ok := engine.(*quickjsengine.Engine)
	if !ok {
		t.Fatalf("Expected QuickJS engine, got %T", engine)
	}
	result := qjsEngine.Ctx.Eval("typeof vux.callbacks.run + ':' + typeof vuxFs")
	defer result.Free()
	if result.String() != "function:object" {
		t.Errorf("Expected runtime and fs helpers, got: %s", result.String())
	}
}
