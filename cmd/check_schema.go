package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/stixkit/internal/schemacheck"
)

// checkSchemaCmd represents the check-schema command
var checkSchemaCmd = &cobra.Command{
	Use:   "check-schema FILE",
	Short: "Check that a file is a well-formed JSON Schema",
	Long: `Compile a JSON Schema against its metaschema. The draft is taken from
"$schema" and defaults to 2020-12.

Example:
  stixkit check-schema ./schemas/indicator.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := schemacheck.CheckFile(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), schemacheck.ValidMessage)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkSchemaCmd)
}
