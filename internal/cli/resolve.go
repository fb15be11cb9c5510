package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gvern/SOXauto-sub001/internal/catalog"
	"github.com/gvern/SOXauto-sub001/internal/contract"
	"github.com/gvern/SOXauto-sub001/internal/store"
	"github.com/gvern/SOXauto-sub001/internal/threshold"
)

// resolveOptions holds flags for the resolve command.
type resolveOptions struct {
	country     string
	typ         string
	glAccount   string
	category    string
	voucherType string
	version     int
	dbPath      string
}

// NewResolveCommand creates the threshold resolution command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a threshold for a country and query scope",
		Long: `Resolve a tolerance value through the catalog: the country's own
contract first, then the DEFAULT contract, then the hardcoded
fallback. The answer always includes its provenance.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.country, "country", "", "country code (required)")
	cmd.Flags().StringVar(&opts.typ, "type", "", "threshold type: bucket_aggregate|line_item|country_materiality (required)")
	cmd.Flags().StringVar(&opts.glAccount, "gl-account", "", "GL account scope value")
	cmd.Flags().StringVar(&opts.category, "category", "", "category scope value")
	cmd.Flags().StringVar(&opts.voucherType, "voucher-type", "", "voucher type scope value")
	cmd.Flags().IntVar(&opts.version, "version", 0, "pin the country's contract version (0 = latest)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "audit store path to record the resolution (optional)")
	_ = cmd.MarkFlagRequired("country")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runResolve(rootOpts *RootOptions, opts *resolveOptions, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	q := threshold.Query{
		Country:     opts.country,
		Type:        contract.ThresholdType(opts.typ),
		GLAccount:   opts.glAccount,
		Category:    opts.category,
		VoucherType: opts.voucherType,
		Version:     opts.version,
	}

	resolver := threshold.NewResolver(catalog.NewRegistry(rootOpts.Catalog))
	res, err := resolver.Resolve(q)
	if err != nil {
		_ = formatter.Error(catalog.ErrCodeGeneric, err.Error(), nil)
		if catalog.IsMalformed(err) {
			return WrapExitError(ExitFailure, "threshold resolution failed", err)
		}
		return WrapExitError(ExitCommandError, "threshold resolution failed", err)
	}

	if opts.dbPath != "" {
		s, err := store.Open(opts.dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "opening audit store", err)
		}
		defer s.Close()
		if _, err := s.WriteResolution(cmd.Context(), q, res, time.Now()); err != nil {
			return WrapExitError(ExitCommandError, "recording resolution", err)
		}
		formatter.VerboseLog("Resolution recorded in %s", opts.dbPath)
	}

	if formatter.Format == "json" {
		return formatter.SuccessJSON(res)
	}

	fmt.Fprintf(formatter.Writer, "%s %s = %.2f (source=%s", res.Country, res.Type, res.Value, res.Source)
	if res.Source == contract.SourceCatalog {
		fmt.Fprintf(formatter.Writer, ", version=%d, specificity=%d", res.ContractVersion, res.Specificity)
	}
	fmt.Fprintln(formatter.Writer, ")")
	fmt.Fprintf(formatter.Writer, "  rule: %s\n", res.RuleDescription)
	return nil
}
