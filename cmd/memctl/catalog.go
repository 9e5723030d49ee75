package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect pattern catalogs",
	}

	var catalogPath string
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print a catalog as YAML, the built-in one by default",
		Long: `Prints the pattern catalog as YAML. Copy the output to
CATALOG_DIR/<project_id>.yaml to override the catalog for one project.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(catalogPath)
			if err != nil {
				return err
			}
			return engine.Catalog().WriteYAML(cmd.OutOrStdout())
		},
	}
	dump.Flags().StringVar(&catalogPath, "catalog", "", "catalog YAML to normalize and print")

	validate := &cobra.Command{
		Use:   "validate <catalog.yaml>",
		Short: "Check a catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d patterns\n", args[0], len(engine.Catalog().Entries()))
			return nil
		},
	}

	cmd.AddCommand(dump, validate)
	return cmd
}
