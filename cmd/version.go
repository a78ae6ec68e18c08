package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/gridinline/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for gridinline including the version, git
commit, build time, Go version and target platform.

Examples:
  gridinline version               # Show version
  gridinline version --detailed    # Show detailed version info
  gridinline version --format json # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	switch versionFormat {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(struct {
			*version.BuildInfo
			IsRelease bool `json:"is_release"`
		}{info, info.IsRelease()})
	case "text":
		switch {
		case versionShort:
			fmt.Fprintln(out, info.Short())
		case versionDetailed:
			fmt.Fprintln(out, info.Detailed())
		default:
			fmt.Fprintf(out, "gridinline %s\n", info.Short())
			fmt.Fprintf(out, "Go: %s\nPlatform: %s\n", info.GoVersion, info.Platform)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}
