package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/walker"
	"github.com/d122y/fleecekit/internal/mmfile"
)

var walkMaxDepth int

var walkCmd = &cobra.Command{
	Use:   "walk <doc.fleece>",
	Short: "List every node with its JSON pointer",
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

		out := cmd.OutOrStdout()
		for it := walker.New(root, nil); it.Value().Exists(); it.Next() {
			v := it.Value()
			if walkMaxDepth > 0 && len(it.Path()) >= walkMaxDepth {
				it.SkipChildren()
			}
			switch v.Type() {
			case fleece.TypeArray, fleece.TypeDict:
				fmt.Fprintf(out, "%s\t%s\n", it.JSONPointer(), v.Type())
			default:
				fmt.Fprintf(out, "%s\t%s\t%s\n", it.JSONPointer(), v.Type(), v.String())
			}
		}
		return nil
	},
}

func init() {
	walkCmd.Flags().IntVar(&walkMaxDepth, "max-depth", 0, "Do not descend below this depth (0 = unlimited)")
	rootCmd.AddCommand(walkCmd)
}
