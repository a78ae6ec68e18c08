package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/gridinline/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect gridinline configuration",
	Long: `Inspect gridinline configuration files and settings.

Examples:
  gridinline config show                         # Show the effective configuration
  gridinline config validate                     # Validate the current configuration
  gridinline config validate --file ci.yml       # Validate a specific config file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration as YAML",
	Long: `Print the configuration gridinline would run with, after defaults,
the config file, GRIDINLINE_ environment variables and flags are merged.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

var configValidateFile string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configValidateCmd.Flags().StringVar(&configValidateFile, "file", "", "Config file to validate (default is the active one)")
	AddFlagValidation(configValidateCmd.Flags(), "file", ValidateFileExists)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	data, err := marshalConfig(cfg)
	if err != nil {
		return err
	}

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	name := viper.ConfigFileUsed()

	if configValidateFile != "" {
		v = viper.New()
		v.SetConfigFile(configValidateFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %w", configValidateFile, err)
		}
		name = configValidateFile
	}

	if _, err := config.LoadFrom(v); err != nil {
		return err
	}

	if name == "" {
		name = "defaults"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration is valid\n", name)
	return nil
}

// marshalConfig renders cfg as YAML with durations in their string form.
func marshalConfig(cfg *config.Config) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(cfg); err != nil {
		return nil, err
	}

	durations := map[string]string{
		"ttl":      cfg.Cache.TTL.String(),
		"debounce": cfg.Watch.Debounce.String(),
	}
	for _, section := range []string{"cache", "watch"} {
		if m := mappingValue(&node, section); m != nil {
			for key, value := range durations {
				if v := mappingValue(m, key); v != nil {
					v.Tag = "!!str"
					v.Value = value
				}
			}
		}
	}

	return yaml.Marshal(&node)
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
