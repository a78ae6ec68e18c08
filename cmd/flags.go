package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/conneroisu/gridinline/internal/logging"
)

// InlineFlags are the flags shared by the commands that resolve templates.
type InlineFlags struct {
	MaxSize    int64
	SkipErrors bool
	Encoding   string
	Workers    int
	OutDir     string
	Suffix     string
}

// inlineFlagKeys maps flag names to configuration keys.
var inlineFlagKeys = map[string]string{
	"max-size":    "max_size",
	"skip-errors": "skip_errors",
	"encoding":    "template_encoding",
	"workers":     "workers",
	"out-dir":     "output.dir",
	"suffix":      "output.suffix",
}

// AddInlineFlags adds the template resolution flags to a command
func AddInlineFlags(cmd *cobra.Command) *InlineFlags {
	flags := &InlineFlags{}

	cmd.Flags().Int64Var(&flags.MaxSize, "max-size", 0, "Largest template to inline in bytes (0 for no limit)")
	cmd.Flags().BoolVar(&flags.SkipErrors, "skip-errors", false, "Warn and leave the reference when a template cannot be read or minified")
	cmd.Flags().StringVar(&flags.Encoding, "encoding", "utf-8", "Encoding of template files")
	cmd.Flags().IntVarP(&flags.Workers, "workers", "j", 0, "Files processed in parallel (0 for CPU count, at most 8)")
	cmd.Flags().StringVarP(&flags.OutDir, "out-dir", "o", "", "Write rewritten sources below this directory instead of in place")
	cmd.Flags().StringVar(&flags.Suffix, "suffix", "", "Insert this suffix before the extension of rewritten sources")

	AddFlagValidation(cmd.Flags(), "max-size", ValidateNonNegative)
	AddFlagValidation(cmd.Flags(), "workers", ValidateNonNegative)
	AddFlagValidation(cmd.Flags(), "encoding", ValidateEncoding)

	return flags
}

// bindFlags binds the named flags of cmd to viper configuration keys. Only
// flags given on the command line override the configuration.
func bindFlags(cmd *cobra.Command, bindings map[string]string) {
	for flagName, configKey := range bindings {
		if flag := cmd.Flags().Lookup(flagName); flag != nil {
			_ = viper.BindPFlag(configKey, flag)
		}
	}
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(flags *pflag.FlagSet, flagName string, validator func(string) error) {
	flag := flags.Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateNonNegative accepts integers of zero or more
func ValidateNonNegative(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %s", s)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}

// ValidateEncoding accepts WHATWG encoding labels
func ValidateEncoding(label string) error {
	if _, err := htmlindex.Get(label); err != nil {
		return fmt.Errorf("unknown encoding: %s", label)
	}
	return nil
}

// ValidateLogLevel accepts the logger's level names
func ValidateLogLevel(level string) error {
	_, err := logging.ParseLevel(level)
	return err
}

// ValidateFileExists accepts an empty name or an existing file
func ValidateFileExists(filename string) error {
	if filename == "" {
		return nil
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filename)
	}

	return nil
}
