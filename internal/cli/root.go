// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the vux command line.
//
// Settings are read, in decreasing priority, from flags, VUX_* environment
// variables (VUX_MERGE_OPTIONS, VUX_LOG_LEVEL, ...) and the .vux.yml file in
// the working directory or the file named by --config / VUX_CONFIG_FILE.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vux",
	Short: "Install the vux framework into bundler configurations",
	Long: `vux merges framework options into a bundler configuration and rewrites
compiled component sources to go through the framework loaders.

  vux merge --options vux.yml --bundler-config webpack.yml --out merged.json
  vux merge --options vux.yml --watch
  vux rewrite --options vux.yml dist/App.vue.js`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .vux.yml, can also use VUX_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("VUX_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".vux")
	}

	viper.SetEnvPrefix("VUX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger returns a text logger on stderr at the configured level.
func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// bindFlags binds every flag of a command to the viper key "<prefix>.<flag>".
func bindFlags(prefix string, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(prefix+"."+f.Name, f)
	})
}
