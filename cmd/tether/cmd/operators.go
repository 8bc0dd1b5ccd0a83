/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// operatorsCmd represents the operators command
var operatorsCmd = &cobra.Command{
	Use:   "operators",
	Short: "List registered operators",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireContainer(); err != nil {
			return err
		}
		for _, name := range container.GetRegistry().Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(operatorsCmd)
}
