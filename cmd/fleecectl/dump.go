package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/jsonenc"
	"github.com/d122y/fleecekit/internal/mmfile"
)

var dumpCanonical bool

var dumpCmd = &cobra.Command{
	Use:   "dump <doc.fleece>",
	Short: "Render a Fleece document as JSON",
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
		text, err := jsonenc.Serialize(root, nil, json5, dumpCanonical)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(text))
		return nil
	},
}

func init() {
	dumpCmd.Flags().BoolVar(&dumpCanonical, "canonical", false, "Sort keys and use shortest number forms")
	rootCmd.AddCommand(dumpCmd)
}
