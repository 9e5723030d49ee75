package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cubomagico/memoria/internal/buildconfig"
	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/extraction"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "memctl",
		Short:         "Offline tools for the memory extraction engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newAnalyzeCmd(),
		newProfileCmd(),
		newCatalogCmd(),
		newPublishCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildconfig.VersionInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", info["service"], info["version"], info["commit"])
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func loadMemories(path string) ([]domain.Memory, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var memories []domain.Memory
	if err := json.Unmarshal(data, &memories); err != nil {
		return nil, fmt.Errorf("decode memories %s: %w", path, err)
	}
	return memories, nil
}

// loadEngine uses the catalog file when given, the built-in one otherwise.
func loadEngine(catalogPath string) (*extraction.Engine, error) {
	if catalogPath == "" {
		return extraction.NewEngine(nil), nil
	}
	f, err := os.Open(catalogPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	catalog, err := extraction.LoadCatalogYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", catalogPath, err)
	}
	return extraction.NewEngine(catalog), nil
}
