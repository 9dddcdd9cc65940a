package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/internal/mmfile"
)

var validateCmd = &cobra.Command{
	Use:   "validate <doc.fleece>",
	Short: "Structurally validate an untrusted Fleece buffer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, cleanup, err := mmfile.Map(args[0])
		if err != nil {
			return fmt.Errorf("open document: %w", err)
		}
		defer cleanup() //nolint:errcheck // read-only mapping

		if _, err := fleece.FromData(data); err != nil {
			return fmt.Errorf("INVALID: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d bytes)\n", args[0], len(data))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
