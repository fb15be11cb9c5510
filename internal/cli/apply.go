package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gvern/SOXauto-sub001/internal/catalog"
	"github.com/gvern/SOXauto-sub001/internal/dataset"
	"github.com/gvern/SOXauto-sub001/internal/schema"
	"github.com/gvern/SOXauto-sub001/internal/store"
)

// applyOptions holds flags for the apply command.
type applyOptions struct {
	version     int
	strict      bool
	cast        bool
	track       bool
	dropUnknown bool
	outputPath  string
	reportPath  string
	dbPath      string
}

// NewApplyCommand creates the contract application command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply <dataset.yaml> <contract-id>",
		Short: "Apply a dataset contract to a YAML dataset",
		Long: `Apply a dataset contract: normalize raw column names to their
canonical forms, validate required fields, coerce values by semantic
tag, and emit the schema report that documents every transformation.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.version, "version", 0, "pin the contract version (0 = latest)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail when required fields are missing")
	cmd.Flags().BoolVar(&opts.cast, "cast", true, "coerce values by semantic tag")
	cmd.Flags().BoolVar(&opts.track, "track", true, "record per-event lineage in the report")
	cmd.Flags().BoolVar(&opts.dropUnknown, "drop-unknown", false, "prune columns the contract does not own")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "write the transformed dataset YAML here")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "write the schema report JSON here")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "audit store path to record the report (optional)")

	return cmd
}

func runApply(rootOpts *RootOptions, opts *applyOptions, datasetPath, contractID string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	raw, err := os.ReadFile(datasetPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading dataset", err)
	}
	ds, err := dataset.FromYAML(raw)
	if err != nil {
		return WrapExitError(ExitCommandError, "parsing dataset", err)
	}

	engine := schema.NewEngine(catalog.NewRegistry(rootOpts.Catalog))
	out, report, err := engine.Apply(ds, contractID, schema.Options{
		Version:     opts.version,
		Strict:      opts.strict,
		Cast:        opts.cast,
		Track:       opts.track,
		DropUnknown: opts.dropUnknown,
	})
	if err != nil {
		_ = formatter.Error(catalog.ErrCodeGeneric, err.Error(), nil)
		if schema.IsRequiredMissing(err) || schema.IsFailOnNull(err) || catalog.IsMalformed(err) {
			return WrapExitError(ExitFailure, "contract application failed", err)
		}
		return WrapExitError(ExitCommandError, "contract application failed", err)
	}

	if opts.outputPath != "" {
		encoded, err := out.ToYAML()
		if err != nil {
			return WrapExitError(ExitCommandError, "encoding transformed dataset", err)
		}
		if err := os.WriteFile(opts.outputPath, encoded, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "writing transformed dataset", err)
		}
		formatter.VerboseLog("Transformed dataset written to %s", opts.outputPath)
	}

	if opts.reportPath != "" {
		doc, err := report.MarshalIndent()
		if err != nil {
			return WrapExitError(ExitCommandError, "encoding report", err)
		}
		if err := os.WriteFile(opts.reportPath, doc, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "writing report", err)
		}
		formatter.VerboseLog("Schema report written to %s", opts.reportPath)
	}

	if opts.dbPath != "" {
		s, err := store.Open(opts.dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "opening audit store", err)
		}
		defer s.Close()
		if err := s.WriteReport(cmd.Context(), report); err != nil {
			return WrapExitError(ExitCommandError, "recording report", err)
		}
		formatter.VerboseLog("Schema report recorded in %s", opts.dbPath)
	}

	if formatter.Format == "json" {
		return formatter.SuccessJSON(report)
	}

	fmt.Fprintf(formatter.Writer, "✓ Applied %s version %d (hash %s)\n",
		report.DatasetID, report.ContractVersion, report.ContractHash)
	fmt.Fprintf(formatter.Writer, "  rows %d -> %d, columns %d -> %d\n",
		report.RowsBefore, report.RowsAfter, report.ColumnsBefore, report.ColumnsAfter)
	fmt.Fprintf(formatter.Writer, "  renamed=%d cast=%d unknown=%d dropped=%d\n",
		len(report.ColumnsRenamed), len(report.ColumnsCast),
		len(report.UnknownColumns), len(report.DroppedColumns))
	for _, w := range report.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning: %s\n", w)
	}
	return nil
}
