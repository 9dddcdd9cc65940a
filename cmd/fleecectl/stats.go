package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/walker"
	"github.com/d122y/fleecekit/internal/mmfile"
)

var statsCmd = &cobra.Command{
	Use:   "stats <doc.fleece>",
	Short: "Show per-type node counts and document size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, cleanup, err := mmfile.Map(args[0])
		if err != nil {
			return fmt.Errorf("open document: %w", err)
		}
		defer cleanup() //nolint:errcheck // read-only mapping

		root, err := fleece.FromData(data)
		if err != nil {
			return fmt.Errorf("invalid document: %w", err)
		}

		counts := map[fleece.Type]int{root.Type(): 1}
		var stringBytes, blobBytes, nodes int
		for it := walker.New(root, nil); it.Value().Exists(); it.Next() {
			v := it.Value()
			counts[v.Type()]++
			nodes++
			switch v.Type() {
			case fleece.TypeString:
				stringBytes += len(v.AsString())
			case fleece.TypeBlob:
				blobBytes += len(v.AsData())
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Document:     %s (%s)\n", args[0], humanize.Bytes(uint64(len(data))))
		fmt.Fprintf(out, "Root type:    %s\n", root.Type())
		fmt.Fprintf(out, "Nodes:        %d\n", nodes)
		for _, t := range []fleece.Type{
			fleece.TypeNull, fleece.TypeBool, fleece.TypeInt, fleece.TypeDouble,
			fleece.TypeString, fleece.TypeBlob, fleece.TypeArray, fleece.TypeDict,
		} {
			if counts[t] > 0 {
				fmt.Fprintf(out, "  %-10s  %d\n", t, counts[t])
			}
		}
		if stringBytes > 0 {
			fmt.Fprintf(out, "String bytes: %s\n", humanize.Bytes(uint64(stringBytes)))
		}
		if blobBytes > 0 {
			fmt.Fprintf(out, "Blob bytes:   %s\n", humanize.Bytes(uint64(blobBytes)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
