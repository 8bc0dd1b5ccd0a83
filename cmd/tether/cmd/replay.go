/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/tether/pkg/config"
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay [id]",
	Short: "Decode an archived segment",
	Long: `Decode a segment from the archive and print every record. Without an id the
archived segment ids are listed, oldest first.

Examples:
  tether replay
  tether replay 2bqJ8V4Hn0ZQkz1ljnH1gM7oNfW --grouped`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireContainer(); err != nil {
			return err
		}
		grouped, _ := cmd.Flags().GetBool("grouped")
		protocol, _ := cmd.Flags().GetString("protocol")

		store, err := container.OpenStore(storeDir(cmd))
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 0 {
			ids, err := store.List()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, id.Time().UTC().Format("2006-01-02T15:04:05Z"))
			}
			return nil
		}

		id, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid segment id %q: %w", args[0], err)
		}
		data, err := store.Get(id)
		if err != nil {
			return err
		}
		return dumpSegment(cmd.OutOrStdout(), data, protocol, grouped)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().String("store", "", "Segment archive directory (default: storage.dir from config)")
	replayCmd.Flags().Bool("grouped", false, "Decode the segment as one co-group batch")
	replayCmd.Flags().String("protocol", config.ProtocolBinary, "Record protocol: binary or legacy")
}
