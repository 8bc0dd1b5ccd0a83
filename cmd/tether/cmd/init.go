/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/tether/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default tether configuration file.

The file selects the transport, record protocol, operator, metrics endpoint and
segment archive. Edit it or override single values with 'tether run' flags.

Examples:
  tether init
  tether init --config ./tether.yaml --transport file
  tether init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		transport, _ := cmd.Flags().GetString("transport")
		force, _ := cmd.Flags().GetBool("force")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", configPath)
			return nil
		}

		cfg, err := config.BootstrapConfig(configPath, transport)
		if err != nil {
			return err
		}

		cmd.Printf("✅ Configuration created at %s\n", configPath)
		cmd.Printf("Transport: %s\n", cfg.Transport.Kind)
		cmd.Printf("Operator: %s (%s)\n", cfg.Operator.Name, cfg.Operator.Kind)
		cmd.Printf("\nStart a session with:\n")
		cmd.Printf("  tether run --config %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("transport", config.TransportStdio, "Transport to configure: stdio, tcp, unix or file")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
}
