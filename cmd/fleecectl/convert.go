package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/d122y/fleecekit/fleece/encoder"
	"github.com/d122y/fleecekit/fleece/jsonconv"
	"github.com/d122y/fleecekit/internal/writer"
)

var (
	convertOutput string
	convertNoSort bool
	convertNoDe   bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.json>",
	Short: "Convert a JSON document to a Fleece buffer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		opts := encoder.DefaultOptions()
		opts.SortKeys = !convertNoSort
		opts.UniqueStrings = !convertNoDe
		out, err := jsonconv.EncodeJSON(data, opts, nil)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}

		fw := writer.FileWriter{Path: convertOutput}
		if err := fw.WriteDoc(out); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d JSON bytes -> %d Fleece bytes\n",
				convertOutput, len(data), len(out))
		}
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "out.fleece", "Output file path")
	convertCmd.Flags().BoolVar(&convertNoSort, "no-sort", false, "Do not sort dictionary keys")
	convertCmd.Flags().BoolVar(&convertNoDe, "no-dedup", false, "Do not dedup repeated strings")
	rootCmd.AddCommand(convertCmd)
}
