package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gvern/SOXauto-sub001/internal/catalog"
)

// ValidationResult holds catalog validation results.
type ValidationResult struct {
	Valid     bool                      `json:"valid"`
	Datasets  int                       `json:"datasets"`
	Countries int                       `json:"countries"`
	Errors    []catalog.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate every contract in the catalog",
		Long: `Compile and validate every dataset and threshold contract in the
catalog directory, at every declared version. Reports all defects in
one pass rather than stopping at the first.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	reg := catalog.NewRegistry(opts.Catalog)
	discovery, err := reg.Discover()
	if err != nil {
		_ = formatter.Error(catalog.ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "catalog discovery failed", err)
	}

	var defects []catalog.ValidationError
	datasets, countries := 0, 0

	for id, versions := range discovery.Datasets {
		datasets++
		for _, v := range versions {
			formatter.VerboseLog("Validating dataset contract %s version %d", id, v)
			if _, err := reg.Load(id, v); err != nil {
				defects = append(defects, collectDefects(err, fmt.Sprintf("contract.%s.%d", id, v))...)
			}
		}
	}
	for country, versions := range discovery.Thresholds {
		countries++
		for _, v := range versions {
			formatter.VerboseLog("Validating threshold contract %s version %d", country, v)
			if _, err := reg.LoadThreshold(country, v); err != nil {
				defects = append(defects, collectDefects(err, fmt.Sprintf("threshold.%s.%d", country, v))...)
			}
		}
	}

	result := ValidationResult{
		Valid:     len(defects) == 0,
		Datasets:  datasets,
		Countries: countries,
		Errors:    defects,
	}

	if len(defects) > 0 {
		return outputValidationErrors(formatter, result)
	}

	if formatter.Format == "json" {
		return formatter.SuccessJSON(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Catalog valid: %d dataset contract(s), %d countr(y/ies)\n",
		datasets, countries)
	return nil
}

// collectDefects flattens a load error into validation errors,
// preserving per-defect codes when the error is a malformed-contract
// aggregate.
func collectDefects(err error, context string) []catalog.ValidationError {
	var me *catalog.MalformedContractError
	if errors.As(err, &me) {
		out := make([]catalog.ValidationError, len(me.Defects))
		for i, d := range me.Defects {
			out[i] = catalog.ValidationError{
				Field:   context + "." + d.Field,
				Message: d.Message,
				Code:    d.Code,
			}
		}
		return out
	}

	var ce *catalog.CompileError
	if errors.As(err, &ce) && ce.Code != "" {
		return []catalog.ValidationError{{
			Field:   context + "." + ce.Field,
			Message: ce.Message,
			Code:    ce.Code,
		}}
	}

	return []catalog.ValidationError{{
		Field:   context,
		Message: err.Error(),
		Code:    catalog.ErrCodeGeneric,
	}}
}

// outputValidationErrors prints the defect list and returns the
// validation-failure exit code.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Errors[0].Code,
				Message: result.Errors[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range result.Errors {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", e.Code, e.Field, e.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
