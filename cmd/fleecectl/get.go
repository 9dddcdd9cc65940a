package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/jsonenc"
	"github.com/d122y/fleecekit/fleece/path"
	"github.com/d122y/fleecekit/internal/mmfile"
)

var getPointer bool

var getCmd = &cobra.Command{
	Use:   "get <doc.fleece> <path>",
	Short: "Evaluate a path (or JSON pointer) against a document",
	Long: `Evaluates a path expression like "foo.bar[2].baz" against a Fleece
document and prints the result as JSON. With --pointer the expression is
interpreted as an RFC 6901 JSON pointer like "/foo/bar/2/baz".`,
	Args: cobra.ExactArgs(2),
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

		var result fleece.Value
		if getPointer {
			result, err = path.EvalJSONPointer(args[1], nil, root)
		} else {
			result, err = path.Eval(args[1], nil, root)
		}
		if err != nil {
			return err
		}
		if !result.Exists() {
			return fmt.Errorf("no value at %q", args[1])
		}

		text, err := jsonenc.Serialize(result, nil, json5, false)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(text))
		return nil
	},
}

func init() {
	getCmd.Flags().BoolVarP(&getPointer, "pointer", "p", false, "Treat the expression as a JSON pointer")
	rootCmd.AddCommand(getCmd)
}
