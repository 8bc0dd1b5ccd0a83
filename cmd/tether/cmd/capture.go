/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <file>",
	Short: "Archive a raw segment file",
	Long: `Store the raw bytes of a segment file in the segment archive and print its id.
Archived segments can be decoded later with 'tether replay'.

Examples:
  tether capture ./segment.bin
  tether capture ./segment.bin --store ./segments`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireContainer(); err != nil {
			return err
		}
		dir := storeDir(cmd)

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		store, err := container.OpenStore(dir)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.Put(data)
		if err != nil {
			return err
		}
		loggerFrom(cmd).Info("segment archived", "id", id.String(), "bytes", len(data), "store", dir)
		fmt.Fprintln(cmd.OutOrStdout(), id.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().String("store", "", "Segment archive directory (default: storage.dir from config)")
}

func storeDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("store")
	if dir == "" {
		dir = configFrom(cmd).Storage.Dir
	}
	return dir
}
