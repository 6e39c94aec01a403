package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/datalens-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set DataLens configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := effectiveConfig()
		out := cmd.OutOrStdout()
		for _, k := range cfgpkg.Keys {
			v, err := c.Get(k)
			if err != nil {
				return err
			}
			if v == "" {
				v = `""`
			}
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := cfg.Set(key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
