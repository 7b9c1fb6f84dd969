// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package vuxplugin

import (
	"errors"
	"fmt"

	jsexecutor "github.com/buke/js-executor"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/xid"
)

// CallbackService is the executor service running script callbacks.
// It receives the script source and a build summary.
const CallbackService = "vux.callbacks.run"

// runCallback runs a Go callback, or a script callback on the JS executor.
func runCallback(cb Callback, result *api.BuildResult, opts *Options) error {
	if cb.Fn != nil {
		if err := cb.Fn(result); err != nil {
			return fmt.Errorf("%s: %w", cb.Plugin, err)
		}
		return nil
	}
	if cb.Script == "" {
		return nil
	}
	if opts.jsExecutor == nil {
		return fmt.Errorf("%s: script callback without a JS executor", cb.Plugin)
	}

	req := &jsexecutor.JsRequest{
		Id:      xid.New().String(),
		Service: CallbackService,
		Args:    []interface{}{cb.Script, buildSummary(result)},
	}
	resp, err := opts.jsExecutor.Execute(req)
	if err != nil {
		return fmt.Errorf("%s: failed to run script callback: %w", cb.Plugin, err)
	}

	switch r := resp.Result.(type) {
	case string:
		if r != "" {
			opts.logger.Info(r, "plugin", cb.Plugin)
		}
	case map[string]interface{}:
		if msg, ok := r["error"].(string); ok && msg != "" {
			return fmt.Errorf("%s: %w", cb.Plugin, errors.New(msg))
		}
	}
	return nil
}

// buildSummary is the build result as seen by script callbacks.
func buildSummary(result *api.BuildResult) map[string]interface{} {
	messages := func(list []api.Message) []string {
		out := make([]string, 0, len(list))
		for _, m := range list {
			out = append(out, m.Text)
		}
		return out
	}
	outputs := make([]string, 0, len(result.OutputFiles))
	for _, f := range result.OutputFiles {
		outputs = append(outputs, f.Path)
	}
	return map[string]interface{}{
		"errors":      messages(result.Errors),
		"warnings":    messages(result.Warnings),
		"outputFiles": outputs,
	}
}
