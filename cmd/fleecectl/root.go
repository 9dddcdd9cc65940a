package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	quiet   bool
	json5   bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "fleecectl",
	Short: "Inspect and convert Fleece binary documents",
	Long: `fleecectl is a tool for working with Fleece, a binary encoding of
JSON-compatible values designed for zero-parse random access. It converts
JSON to Fleece and back, evaluates paths and JSON pointers against encoded
documents, and validates untrusted buffers.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&json5, "json5", false, "Emit JSON5 instead of strict JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
