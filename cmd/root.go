// Package cmd provides the command-line interface for assetpipe.
//
// Configuration System:
//
//	Settings are resolved from several sources with clear precedence:
//	1. Command-line flags (--port, --log-level, etc.) - highest priority
//	2. ASSETPIPE_* environment variables (ASSETPIPE_SERVER_PORT, ...);
//	   a .env file in the working directory is loaded first
//	3. The configuration file: --config, else ASSETPIPE_CONFIG_FILE,
//	   else .assetpipe.yml in the current directory
//	4. Built-in defaults - lowest priority
package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/conneroisu/assetpipe/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assetpipe",
	Short: "Build and serve the assets of a static site",
	Long: `assetpipe turns a source tree of HTML partials, LESS styles, scripts,
images and SVG icons into a deployable destination tree, and serves it with
live reload while you edit.

Quick Start:
  assetpipe init      Write a default .assetpipe.yml
  assetpipe build     Run every task once
  assetpipe start     Build, then watch and serve
  assetpipe tasks     List the available tasks`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .assetpipe.yml, can also use ASSETPIPE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig wires the configuration sources into the global viper
// instance. A missing config file is not an error; defaults apply.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		rootCmd.PrintErrln("Ignoring .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.FileName)
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer())

	if err := viper.ReadInConfig(); err == nil {
		rootCmd.PrintErrln("Using config file:", viper.ConfigFileUsed())
	}
}
