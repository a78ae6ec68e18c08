package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/gridinline/internal/build"
	"github.com/conneroisu/gridinline/internal/config"
	"github.com/conneroisu/gridinline/internal/logging"
	"github.com/conneroisu/gridinline/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [paths...]",
	Aliases: []string{"w"},
	Short:   "Re-inline sources whenever they or their templates change",
	Long: `Inline once, then watch the given paths and inline again on every change.
A changed source is re-inlined on its own; a changed .html template re-inlines
every source, since any of them may reference it.

Rewriting in place would replace the references being watched, so watch needs
--out-dir or --suffix.

Examples:
  gridinline watch src --out-dir dist
  gridinline watch --suffix .inlined --debounce 1s`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd, inlineFlagKeys)
		bindFlags(cmd, map[string]string{"debounce": "watch.debounce"})
		return nil
	},
	RunE: runWatch,
}

var watchVerbose bool

func init() {
	rootCmd.AddCommand(watchCmd)

	AddInlineFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", 0, "Quiet period before changes are processed (default from config, 300ms)")
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Print every changed file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.InPlace() {
		return fmt.Errorf("watch needs --out-dir or --suffix; rewriting in place would remove the references being watched")
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	runner, err := build.NewRunner(cfg, build.Options{}, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	report, err := runner.Run(ctx, cfg.Paths)
	if report != nil {
		_ = printReport(out, report, "text", false)
	}
	if err != nil && report == nil {
		return err
	}

	fileWatcher, err := newSourceWatcher(cfg, runner, logger)
	if err != nil {
		return err
	}
	defer fileWatcher.Stop()

	handler := &changeHandler{cfg: cfg, runner: runner, out: out, verbose: watchVerbose}
	fileWatcher.AddHandler(handler.handle)

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	if watchVerbose {
		for _, dir := range fileWatcher.WatchList() {
			fmt.Fprintf(out, "  watching %s\n", dir)
		}
	}
	fmt.Fprintf(out, "watching %v for changes (Ctrl+C to stop)\n", cfg.Paths)
	<-ctx.Done()
	fmt.Fprintln(out, "stopping")
	return nil
}

// newSourceWatcher watches the directories behind cfg.Paths for source and
// template changes, ignoring excluded directories and the output directory.
func newSourceWatcher(cfg *config.Config, runner *build.Runner, logger logging.Logger) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	discoverer := runner.Discoverer()
	fw.AddFilter(watcher.AnyFilter(discoverer.Match, watcher.ExtFilter(".html", ".htm")))
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoNodeModulesFilter)
	fw.AddFilter(watcher.NotUnder(cfg.Output.Dir))
	fw.SkipDirs(discoverer.Excluded)
	fw.SkipDirs(watcher.Under(cfg.Output.Dir))

	for _, path := range cfg.Paths {
		info, err := os.Stat(path)
		if err != nil {
			fw.Stop()
			return nil, fmt.Errorf("cannot watch %s: %w", path, err)
		}
		if !info.IsDir() {
			// A single source only needs its own directory.
			err = fw.AddPath(filepath.Dir(path))
		} else {
			err = fw.AddRecursive(path)
		}
		if err != nil {
			fw.Stop()
			return nil, fmt.Errorf("cannot watch %s: %w", path, err)
		}
	}
	return fw, nil
}

type changeHandler struct {
	cfg     *config.Config
	runner  *build.Runner
	out     io.Writer
	verbose bool
}

// handle re-inlines after a debounced batch of changes.
func (h *changeHandler) handle(ctx context.Context, events []watcher.ChangeEvent) error {
	if h.verbose {
		for _, e := range events {
			fmt.Fprintf(h.out, "  %s: %s\n", e.Type, e.Path)
		}
	}

	sources, all := h.affected(events)

	var report *build.Report
	var err error
	switch {
	case all:
		report, err = h.runner.Run(ctx, h.cfg.Paths)
	case len(sources) == 1:
		res := h.runner.ProcessFile(ctx, sources[0])
		printResult(h.out, res)
		return res.Error
	case len(sources) > 1:
		report, err = h.runner.RunSources(ctx, sources)
	default:
		return nil
	}

	if report != nil {
		_ = printReport(h.out, report, "text", false)
	}
	return err
}

// printResult reports a single re-inlined source.
func printResult(w io.Writer, res build.FileResult) {
	switch {
	case res.Error != nil:
		fmt.Fprintf(w, "  FAIL %v\n", res.Error)
	case res.Output != "":
		fmt.Fprintf(w, "rewrote %s -> %s: %d references inlined, %d skipped (%s)\n",
			res.Path, res.Output, res.Patched, res.Skipped, res.Duration.Round(time.Millisecond))
	default:
		fmt.Fprintf(w, "%s: unchanged\n", res.Path)
	}
}

// affected returns the sources to re-inline for events. all is true when a
// template changed, since any source may reference it.
func (h *changeHandler) affected(events []watcher.ChangeEvent) (sources []build.Source, all bool) {
	for _, e := range events {
		ext := filepath.Ext(e.Path)
		if ext == ".html" || ext == ".htm" {
			return nil, true
		}
		if e.Type == watcher.EventTypeDeleted || e.Type == watcher.EventTypeRenamed {
			continue
		}
		if root, ok := h.rootOf(e.Path); ok {
			sources = append(sources, build.Source{Path: e.Path, Root: root})
		}
	}
	return sources, false
}

// rootOf finds the command line path a changed file belongs to.
func (h *changeHandler) rootOf(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	for _, p := range h.cfg.Paths {
		root, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if root == abs {
			return filepath.Dir(p), true
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() && watcher.Under(root)(abs) {
			return p, true
		}
	}
	return "", false
}
