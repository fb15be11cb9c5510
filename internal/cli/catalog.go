package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gvern/SOXauto-sub001/internal/catalog"
)

// NewCatalogCommand creates the catalog discovery command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "catalog",
		Short:         "List contracts and versions in the catalog",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(rootOpts, cmd)
		},
	}
}

func runCatalog(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	discovery, err := catalog.NewRegistry(opts.Catalog).Discover()
	if err != nil {
		_ = formatter.Error(catalog.ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "catalog discovery failed", err)
	}

	if formatter.Format == "json" {
		return formatter.SuccessJSON(discovery)
	}

	fmt.Fprintln(formatter.Writer, "Dataset contracts:")
	for _, id := range sortedKeys(discovery.Datasets) {
		fmt.Fprintf(formatter.Writer, "  %s: versions %v\n", id, discovery.Datasets[id])
	}
	fmt.Fprintln(formatter.Writer, "Threshold contracts:")
	for _, country := range sortedKeys(discovery.Thresholds) {
		fmt.Fprintf(formatter.Writer, "  %s: versions %v\n", country, discovery.Thresholds[country])
	}
	return nil
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
