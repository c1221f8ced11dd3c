package cli

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/pulumi-marmot/core/lineage"
	"github.com/goto/pulumi-marmot/internal/catalog"
	"github.com/goto/pulumi-marmot/internal/provider"
	"github.com/goto/pulumi-marmot/internal/store/postgres"
	"github.com/goto/salt/printer"
	"github.com/goto/salt/term"
	"github.com/spf13/cobra"
)

func lineageCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Inspect lineage edges in the configured store",
		Annotations: map[string]string{
			"group": "core",
		},
		Example: heredoc.Doc(`
			$ marmot lineage list --source mrn://default/topic/orders
		`),
	}

	cmd.AddCommand(lineageListCommand(cfg))
	return cmd
}

func lineageListCommand(cfg *Config) *cobra.Command {
	var source, target, output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List lineage edges by source or target",
		Example: heredoc.Doc(`
			$ marmot lineage list --source mrn://default/topic/orders
			$ marmot lineage list --target mrn://default/table/payments -o json
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfg); err != nil {
				return err
			}

			spinner := printer.Spin("")
			defer spinner.Stop()

			repo, closeFn, err := openLineageRepository(*cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			svc := lineage.NewService(lineage.ServiceDeps{LineageRepo: repo})
			edges, err := svc.List(cmd.Context(), lineage.Filter{Source: source, Target: target})
			if err != nil {
				return err
			}

			spinner.Stop()
			if output == "json" {
				fmt.Println(term.Bluef("%s", prettyPrint(edges)))
				return nil
			}

			report := [][]string{{"ID", "TYPE", "SOURCE", "TARGET"}}
			for _, e := range edges {
				report = append(report, []string{e.ID, e.Type, term.Bluef("%s", e.Source), e.Target})
			}
			printer.Table(os.Stdout, report)
			fmt.Println(term.Cyanf("To view all the data in JSON format, use flag `-o json`"))
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source asset mrn")
	cmd.Flags().StringVar(&target, "target", "", "Target asset mrn")
	cmd.Flags().StringVarP(&output, "out", "o", "table", "Output format, one of table or json")

	return cmd
}

func openLineageRepository(cfg Config) (lineage.Repository, func() error, error) {
	switch cfg.Store.Driver {
	case provider.DriverPostgres:
		client, err := postgres.NewClient(cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		repo, err := postgres.NewLineageRepository(client)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return repo, client.Close, nil

	case provider.DriverMemory:
		return nil, nil, errMemoryStore
	}

	client, err := catalog.NewClient(catalog.Config{
		Host:    cfg.Catalog.Host,
		APIKey:  cfg.Catalog.APIKey,
		Timeout: cfg.Store.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return catalog.NewLineageRepository(client), func() error { return nil }, nil
}
