package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/gridinline/internal/build"
)

var inlineCmd = &cobra.Command{
	Use:     "inline [paths...]",
	Aliases: []string{"i"},
	Short:   "Replace template references with minified template markup",
	Long: `Replace every grid template reference in the given source files with the
minified, escaped markup of the referenced template.

Files are processed as given. Directories are walked and filtered by the
sources.include and sources.exclude globs. Without paths the current directory
is used. A source that fails is reported and left untouched; the command
exits non-zero if any source failed.

Examples:
  gridinline inline                          # Rewrite sources below . in place
  gridinline inline src/grid.js --stdout     # Print the rewritten source
  gridinline inline src --out-dir dist       # Mirror src into dist
  gridinline inline src --suffix .inlined    # grid.js -> grid.inlined.js
  gridinline inline src --skip-errors        # Leave unreadable templates as references
  gridinline inline src --max-size 4096      # Keep large templates as references`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd, inlineFlagKeys)
		return nil
	},
	RunE: runInline,
}

var (
	inlineDryRun bool
	inlineStdout bool
	inlineFormat string
)

func init() {
	rootCmd.AddCommand(inlineCmd)

	AddInlineFlags(inlineCmd)
	inlineCmd.Flags().BoolVarP(&inlineDryRun, "dry-run", "n", false, "Process sources without writing anything")
	inlineCmd.Flags().BoolVar(&inlineStdout, "stdout", false, "Print rewritten sources instead of writing files")
	inlineCmd.Flags().StringVarP(&inlineFormat, "format", "f", "text", "Summary format (text, json)")
}

func runInline(cmd *cobra.Command, args []string) error {
	if inlineFormat != "text" && inlineFormat != "json" {
		return fmt.Errorf("unsupported format: %s (supported: text, json)", inlineFormat)
	}

	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	opts := build.Options{DryRun: inlineDryRun}
	summaryOut := cmd.OutOrStdout()
	if inlineStdout {
		opts.Stdout = cmd.OutOrStdout()
		summaryOut = cmd.ErrOrStderr()
	}

	runner, err := build.NewRunner(cfg, opts, logger)
	if err != nil {
		return err
	}

	report, runErr := runner.Run(cmd.Context(), cfg.Paths)
	if report == nil {
		return runErr
	}

	if err := printReport(summaryOut, report, inlineFormat, inlineDryRun); err != nil {
		return err
	}
	return runErr
}

func printReport(w io.Writer, report *build.Report, format string, dryRun bool) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(struct {
			build.Summary
			SuccessRate float64  `json:"success_rate"`
			Failures    []string `json:"failures,omitempty"`
		}{report.Summary, report.Summary.SuccessRate(), failureMessages(report)})
	}

	s := report.Summary
	verb := "rewrote"
	if dryRun {
		verb = "would rewrite"
	}
	fmt.Fprintf(w, "%s %d of %d files: %d references inlined, %d skipped, %d files failed (%.0f%% ok, %.0f%% cache hits, %s)\n",
		verb, s.ChangedFiles, s.Files, s.Patched, s.Skipped, s.FailedFiles,
		s.SuccessRate(), s.CacheHitRate*100, s.Elapsed.Round(time.Millisecond))

	for _, f := range report.Failures {
		fmt.Fprintf(w, "  FAIL %v\n", f.Err)
	}
	return nil
}

func failureMessages(report *build.Report) []string {
	var out []string
	for _, f := range report.Failures {
		out = append(out, f.Err.Error())
	}
	return out
}
