package app

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pluginwatch/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a YAML config with every default filled in, to --config or
~/.config/pluginwatch/config.yaml. An existing file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := flagConfig
		if path == "" {
			path = filepath.Join(config.DefaultConfigDir, config.DefaultConfigFile)
		}
		if err := config.WriteDefault(path); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Println("Wrote", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
