// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	vuxplugin "github.com/buke/esbuild-plugin-vux-go"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge framework options into a bundler configuration",
	Long: `Merge reads framework options and an optional bundler configuration
(YAML or JSON) and writes the merged configuration as JSON.

With --watch the merge is repeated whenever one of the input files changes.
Plugins and settings of earlier merges are kept across runs.`,
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringP("options", "o", "", "framework options file (YAML or JSON)")
	mergeCmd.Flags().StringP("bundler-config", "c", "", "bundler configuration file to merge into")
	mergeCmd.Flags().String("out", "", "output file (default stdout)")
	mergeCmd.Flags().String("env", "", "environment name matched against buildEnvs (default $NODE_ENV)")
	mergeCmd.Flags().BoolP("watch", "w", false, "merge again when an input file changes")

	bindFlags("merge", mergeCmd.Flags())
}

// mergeSettings holds the resolved merge command settings.
type mergeSettings struct {
	Options       string
	BundlerConfig string
	Out           string
	Env           string
	Watch         bool
}

func loadMergeSettings() (mergeSettings, error) {
	s := mergeSettings{
		Options:       viper.GetString("merge.options"),
		BundlerConfig: viper.GetString("merge.bundler-config"),
		Out:           viper.GetString("merge.out"),
		Env:           viper.GetString("merge.env"),
		Watch:         viper.GetBool("merge.watch"),
	}
	if s.Options == "" {
		return s, fmt.Errorf("--options is required")
	}
	return s, nil
}

func newMerger(s mergeSettings, registry *vuxplugin.Registry, logger *slog.Logger) *vuxplugin.Merger {
	opts := []vuxplugin.MergerOption{
		vuxplugin.WithRegistry(registry),
		vuxplugin.WithMergerLogger(logger),
	}
	if s.Env != "" {
		opts = append(opts, vuxplugin.WithNodeEnv(s.Env))
	}
	return vuxplugin.NewMerger(opts...)
}

func runMerge(cmd *cobra.Command, args []string) error {
	s, err := loadMergeSettings()
	if err != nil {
		return err
	}
	logger := newLogger()
	merger := newMerger(s, vuxplugin.NewRegistry(), logger)

	if err := mergeOnce(merger, s, cmd.OutOrStdout()); err != nil {
		return err
	}
	if !s.Watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchInputs(ctx, watchedFiles(s), logger, func() error {
		return mergeOnce(merger, s, cmd.OutOrStdout())
	})
}

// mergeOnce loads the inputs, merges them and writes the result.
func mergeOnce(merger *vuxplugin.Merger, s mergeSettings, stdout io.Writer) error {
	fw, err := vuxplugin.LoadFrameworkOptions(s.Options)
	if err != nil {
		return err
	}
	existing := &vuxplugin.Configuration{}
	if s.BundlerConfig != "" {
		if existing, err = vuxplugin.LoadConfiguration(s.BundlerConfig); err != nil {
			return err
		}
	}

	merged, err := merger.Merge(existing, fw)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	data = append(data, '\n')

	if s.Out == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Out), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.Out, data, 0644)
}

func watchedFiles(s mergeSettings) []string {
	files := []string{s.Options}
	if s.BundlerConfig != "" {
		files = append(files, s.BundlerConfig)
	}
	return files
}

// watchInputs calls fn after every write to one of files until ctx is done.
// Directories are watched so editors replacing files are seen.
func watchInputs(ctx context.Context, files []string, logger *slog.Logger, fn func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	logger.Info("Watching for changes", "files", files)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(event.Name)] || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Info("Input changed, merging again", "file", event.Name)
			if err := fn(); err != nil {
				logger.Error("Merge failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Watcher error", "error", err)
		}
	}
}
