package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/change"
	"github.com/goto/salt/printer"
	"github.com/goto/salt/term"
	"github.com/spf13/cobra"
)

func assetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Work with asset definitions",
		Annotations: map[string]string{
			"group": "core",
		},
		Example: heredoc.Doc(`
			$ marmot asset diff --prior prior.yaml --desired desired.yaml
		`),
	}

	cmd.AddCommand(assetDiffCommand())
	return cmd
}

func assetDiffCommand() *cobra.Command {
	var prior, desired, output string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show the changes between two asset definitions",
		Example: heredoc.Doc(`
			$ marmot asset diff --prior prior.yaml --desired desired.yaml
			$ marmot asset diff --prior prior.json --desired desired.json -o json
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var from, to asset.Asset
			if err := parseFile(prior, &from); err != nil {
				return fmt.Errorf("read %s: %w", prior, err)
			}
			if err := parseFile(desired, &to); err != nil {
				return fmt.Errorf("read %s: %w", desired, err)
			}

			result, err := asset.Diff(from, to)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Println(prettyPrint(result))
				return nil
			}

			if !result.HasChanges() {
				fmt.Println(term.Greenf("no changes"))
				return nil
			}
			printChanges(result.Changes)
			if result.Replace() {
				fmt.Println(term.Redf("replace required, changed identity fields: %s", strings.Join(result.ReplaceKeys, ", ")))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prior, "prior", "", "File with the current asset definition (json or yaml)")
	cmd.Flags().StringVar(&desired, "desired", "", "File with the desired asset definition (json or yaml)")
	cmd.Flags().StringVarP(&output, "out", "o", "table", "Output format, one of table or json")
	cmd.MarkFlagRequired("prior")
	cmd.MarkFlagRequired("desired")

	return cmd
}

func printChanges(cl change.Changelog) {
	report := [][]string{{"PATH", "CHANGE", "FROM", "TO"}}
	for _, c := range cl {
		kind := c.Kind.String()
		switch c.Kind {
		case change.Add:
			kind = term.Greenf("%s", kind)
		case change.Remove:
			kind = term.Redf("%s", kind)
		case change.Modify:
			kind = term.Bluef("%s", kind)
		}
		report = append(report, []string{c.PathString(), kind, c.From.Text(), c.To.Text()})
	}
	printer.Table(os.Stdout, report)
}
