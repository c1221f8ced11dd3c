package cli

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/pulumi-marmot/internal/provider"
	"github.com/goto/salt/term"
	"github.com/spf13/cobra"
)

func schemaCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the Pulumi package schema",
		Example: heredoc.Doc(`
			$ marmot schema
			$ marmot schema --out schema.json
		`),
		Args: cobra.NoArgs,
		Annotations: map[string]string{
			"group": "core",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := provider.MarshalSchema(Version)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write schema: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), term.Greenf("schema written to %s", out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the schema to a file")
	return cmd
}
