package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/deploykit/manager/internal/config"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <fixtures.yaml>",
		Short: "Load resource records from a fixtures file",
		Long: `Insert the records of a YAML fixtures file into the configured store. The
file maps table names (deployments, node_instances, ...) to lists of
records.`,
		Example: `  manager import examples/fixtures.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return runImport(cmd.Context(), store, args[0], cmd.OutOrStdout())
		},
	}
	return cmd
}

func runImport(ctx context.Context, store *config.Store, path string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fx, err := config.LoadFixtures(path)
	if err != nil {
		return err
	}
	counts, err := store.Import(ctx, fx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-24s %d\n", name, counts[name])
	}
	return nil
}
