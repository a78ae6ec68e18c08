// Package cmd provides the command-line interface for gridinline with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports configuration through multiple sources with clear precedence:
//	1. Command-line flags (--max-size, --out-dir, etc.) - highest priority
//	2. Individual environment variables (GRIDINLINE_MAX_SIZE, etc.)
//	3. Configuration file (--config, GRIDINLINE_CONFIG_FILE or .gridinline.yml)
//	4. Built-in defaults - lowest priority
//
// Environment Variables:
//
//	GRIDINLINE_CONFIG_FILE: Path to custom configuration file
//	GRIDINLINE_MAX_SIZE: Largest template inlined, in bytes
//	GRIDINLINE_SKIP_ERRORS: Downgrade template failures to warnings
//	GRIDINLINE_OUTPUT_DIR: Write rewritten sources below this directory
//	And more following the GRIDINLINE_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/gridinline/internal/config"
	"github.com/conneroisu/gridinline/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gridinline",
	Short: "Inline grid column templates into JavaScript sources",
	Long: `gridinline replaces grid template references such as

  cellTemplate: "views/cell.html"

with the minified markup of the referenced file:

  cellTemplate:'<div class=ui-grid-cell-contents>{{COL_FIELD}}</div>'

Recognised keys are cellTemplate, headerCellTemplate, rowTemplate and
editableCellTemplate. Template paths are relative to the source file.

Quick Start:
  gridinline inline src/            Rewrite every source under src/ in place
  gridinline inline --out-dir dist  Write rewritten sources to dist/
  gridinline check src/             Report references that do not resolve
  gridinline watch --out-dir dist   Re-inline on every change
  gridinline config show            Print the effective configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .gridinline.yml, can also use GRIDINLINE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	AddFlagValidation(rootCmd.PersistentFlags(), "config", ValidateFileExists)
	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", ValidateLogLevel)
}

// initConfig initializes the configuration system.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. GRIDINLINE_CONFIG_FILE environment variable
//  3. .gridinline.yml in the current directory
//
// Every key can also be set through the environment with the GRIDINLINE_
// prefix, dots replaced by underscores (GRIDINLINE_CACHE_TTL=1m).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("GRIDINLINE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".gridinline")
	}

	viper.SetEnvPrefix("GRIDINLINE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine; defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig binds the persistent flags, loads and validates the
// configuration, and records the command line paths. No paths means the
// current directory.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	bindFlags(cmd, map[string]string{
		"log-level":  "log_level",
		"log-format": "log_format",
	})

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	cfg.Paths = args
	if len(cfg.Paths) == 0 {
		cfg.Paths = []string{"."}
	}
	return cfg, nil
}

// newLogger creates the structured logger for a command run.
func newLogger(cfg *config.Config, w io.Writer) logging.Logger {
	lc := cfg.Logging()
	lc.Output = w
	return logging.NewLogger(lc)
}
