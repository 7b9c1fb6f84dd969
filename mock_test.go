// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	jsexecutor "github.com/buke/js-executor"
)

// MockEngineConfig defines the configuration for a mock engine
type MockEngineConfig struct {
	// Result returned for every request
	Result interface{}
	// Error to return from Execute method
	ExecuteError error
	// Requests received, in order
	Requests []*jsexecutor.JsRequest

	mu sync.Mutex
}

func (c *MockEngineConfig) requests() []*jsexecutor.JsRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*jsexecutor.JsRequest(nil), c.Requests...)
}

// MockEngine is a configurable mock engine
type MockEngine struct {
	config *MockEngineConfig
}

func (e *MockEngine) Init(scripts []*jsexecutor.InitScript) error   { return nil }
func (e *MockEngine) Reload(scripts []*jsexecutor.InitScript) error { return nil }
func (e *MockEngine) Close() error                                  { return nil }

func (e *MockEngine) Execute(req *jsexecutor.JsRequest) (*jsexecutor.JsResponse, error) {
	e.config.mu.Lock()
	e.config.Requests = append(e.config.Requests, req)
	e.config.mu.Unlock()

	if e.config.ExecuteError != nil {
		return nil, e.config.ExecuteError
	}
	return &jsexecutor.JsResponse{Id: req.Id, Result: e.config.Result}, nil
}

// NewMockEngineFactory creates a factory that returns configurable mock engines
func NewMockEngineFactory(config *MockEngineConfig) jsexecutor.JsEngineFactory {
	return func() (jsexecutor.JsEngine, error) {
		return &MockEngine{config: config}, nil
	}
}

func createTestExecutor(t *testing.T, config *MockEngineConfig) *jsexecutor.JsExecutor {
	t.Helper()

	jsExec, err := jsexecutor.NewExecutor(
		jsexecutor.WithJsEngine(NewMockEngineFactory(config)),
	)
	if err != nil {
		t.Fatalf("Failed to create JS executor: %v", err)
	}
	if err := jsExec.Start(); err != nil {
		t.Fatalf("Failed to start JS executor: %v", err)
	}
	t.Cleanup(func() { jsExec.Stop() })

	return jsExec
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
