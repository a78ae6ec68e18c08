package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/gridinline/internal/build"
	"github.com/conneroisu/gridinline/internal/driver"
	"github.com/conneroisu/gridinline/internal/inline"
)

var checkCmd = &cobra.Command{
	Use:     "check [paths...]",
	Aliases: []string{"c"},
	Short:   "Report template references and whether they resolve",
	Long: `List every template reference in the given sources and try to resolve it
without writing anything. A reference resolves when its template can be read
and minified. References over --max-size are reported as skipped.

The command exits non-zero when any reference fails to resolve.

Examples:
  gridinline check src/
  gridinline check src/grid.js --max-size 2048
  gridinline check src/ --quiet              # Only print problems`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd, inlineFlagKeys)
		return nil
	},
	RunE: runCheck,
}

var checkQuiet bool

func init() {
	rootCmd.AddCommand(checkCmd)

	AddInlineFlags(checkCmd)
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "Only print references that do not resolve")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	// Every failure is reported, never skipped.
	cfg.SkipErrors = false
	inliner, err := inline.New(cfg.Inline(nil), logger)
	if err != nil {
		return err
	}

	sources, err := build.NewDiscoverer(cfg.Sources, cfg.Output).Discover(cmd.Context(), cfg.Paths)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var total, unresolved int

	for _, src := range sources {
		content, err := os.ReadFile(src.Path)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", src.Path, err)
			unresolved++
			continue
		}

		file := driver.NewFile(src.Path)
		for _, m := range inliner.Registry().FindAll(content) {
			total++
			line := bytes.Count(content[:m.Start], []byte("\n")) + 1

			patch, err := inliner.Resolver().Resolve(cmd.Context(), file, m)
			switch {
			case err != nil:
				unresolved++
				fmt.Fprintf(out, "%s:%d: %s %s FAIL %v\n", src.Path, line, m.Ref.Kind, m.Ref.URL, err)
			case patch == nil:
				if !checkQuiet {
					fmt.Fprintf(out, "%s:%d: %s %s skipped\n", src.Path, line, m.Ref.Kind, m.Ref.URL)
				}
			default:
				if !checkQuiet {
					fmt.Fprintf(out, "%s:%d: %s %s ok (%d bytes minified)\n", src.Path, line, m.Ref.Kind, m.Ref.URL, minifiedSize(patch))
				}
			}
		}
	}

	if !checkQuiet {
		fmt.Fprintf(out, "%d references in %d files, %d unresolved\n", total, len(sources), unresolved)
	}
	if unresolved > 0 {
		return fmt.Errorf("%d template references do not resolve", unresolved)
	}
	return nil
}

// minifiedSize is the length of the template markup carried by patch,
// before escaping.
func minifiedSize(patch *driver.Patch) int {
	if len(patch.Replace) != 3 {
		return len(patch.Bytes())
	}
	return len(inline.Unescape(string(patch.Replace[1])))
}
