// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	vuxplugin "github.com/buke/esbuild-plugin-vux-go"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [file]",
	Short: "Rewrite the loader requests of a compiled component",
	Long: `Rewrite merges the framework options into an empty configuration and runs
the compiled component source through the framework loaders. The result is
written to stdout, or to --out. Theme files read during the rewrite are listed
at debug level.`,
	Args: cobra.ExactArgs(1),
	RunE: runRewrite,
}

func init() {
	rootCmd.AddCommand(rewriteCmd)

	rewriteCmd.Flags().StringP("options", "o", "", "framework options file (YAML or JSON)")
	rewriteCmd.Flags().String("out", "", "output file (default stdout)")

	bindFlags("rewrite", rewriteCmd.Flags())
}

func runRewrite(cmd *cobra.Command, args []string) error {
	optionsFile := viper.GetString("rewrite.options")
	if optionsFile == "" {
		return fmt.Errorf("--options is required")
	}
	return rewriteFile(args[0], optionsFile, viper.GetString("rewrite.out"), cmd.OutOrStdout())
}

func rewriteFile(file, optionsFile, out string, stdout io.Writer) error {
	logger := newLogger()

	fw, err := vuxplugin.LoadFrameworkOptions(optionsFile)
	if err != nil {
		return err
	}
	cfg, err := vuxplugin.NewMerger(vuxplugin.WithMergerLogger(logger)).Merge(nil, fw)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}
	result, err := vuxplugin.NewLoader(cfg, vuxplugin.DefaultLoaderPaths()).Transform(string(source), &vuxplugin.LoaderContext{
		ResourcePath: file,
		AddDependency: func(path string) {
			logger.Debug("Dependency", "file", path)
		},
	})
	if err != nil {
		return err
	}

	if out == "" {
		_, err = io.WriteString(stdout, result)
		return err
	}
	return os.WriteFile(out, []byte(result), 0644)
}
