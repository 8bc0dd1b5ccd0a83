/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/tether/pkg/channel"
	"github.com/ssargent/tether/pkg/config"
	"github.com/ssargent/tether/pkg/legacy"
	"github.com/ssargent/tether/pkg/stream"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Decode a captured record stream",
	Long: `Decode a file holding raw channel bytes and print every record.

Without --grouped the file is read as consecutive single-group segments. With
--grouped it is read as one co-group batch and the records are printed per group.

Examples:
  tether inspect ./segment.bin
  tether inspect ./cogroup.bin --grouped
  tether inspect ./legacy.bin --protocol legacy`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		grouped, _ := cmd.Flags().GetBool("grouped")
		protocol, _ := cmd.Flags().GetString("protocol")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		return dumpSegment(cmd.OutOrStdout(), data, protocol, grouped)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().Bool("grouped", false, "Decode the input as one co-group batch")
	inspectCmd.Flags().String("protocol", config.ProtocolBinary, "Record protocol: binary or legacy")
}

// dumpSegment prints the records of data, one per line, prefixed by group
func dumpSegment(w io.Writer, data []byte, protocol string, grouped bool) error {
	mem := channel.NewMemory(data)

	switch {
	case protocol == config.ProtocolLegacy && grouped:
		return fmt.Errorf("legacy protocol has no co-group form")
	case grouped:
		g := stream.NewGroupedCursor(mem)
		for group := uint8(0); group < 2; group++ {
			recs, err := g.All(group)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				fmt.Fprintf(w, "%d\t%s\n", group, rec)
			}
		}
		return g.Wait()
	}

	var src stream.Source
	switch protocol {
	case config.ProtocolLegacy:
		src = legacy.NewCursor(mem, nil)
	case config.ProtocolBinary, "":
		src = stream.NewCursor(mem)
	default:
		return fmt.Errorf("unknown protocol %q", protocol)
	}

	for segment := 0; mem.Remaining() > 0; segment++ {
		recs, err := src.All()
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintf(w, "%d\t(empty)\n", segment)
		}
		for _, rec := range recs {
			fmt.Fprintf(w, "%d\t%s\n", segment, rec)
		}
		src.Reset()
	}
	return nil
}
