package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arloliu/switchyard/backfill"
	"github.com/arloliu/switchyard/types"
)

type backfillOptions struct {
	from      string
	to        string
	tables    []string
	batchSize int
	noStrip   bool
}

// NewBackfillCommand creates the backfill command.
func NewBackfillCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &backfillOptions{}

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Copy tables from one store to another",
		Long: `Copy tables from one store to another.

Rows are read in pages ordered by id and upserted on the target, so the
command can be repeated. Failed rows are listed and not retried.`,
		Example: `  switchyard backfill --to self_hosted
  switchyard backfill --from self_hosted --to managed --tables customers,gas_types`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackfill(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", string(types.KindManaged), "Source store")
	cmd.Flags().StringVar(&opts.to, "to", "", "Target store (required)")
	cmd.Flags().StringSliceVar(&opts.tables, "tables", nil, "Tables to copy, in order (default: all synchronized tables)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", backfill.DefaultBatchSize, "Rows per page")
	cmd.Flags().BoolVar(&opts.noStrip, "no-strip", false, "Keep foreign key columns")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runBackfill(cmd *cobra.Command, rootOpts *RootOptions, opts *backfillOptions) error {
	from, ok := types.ParseStoreKind(opts.from)
	if !ok {
		return fmt.Errorf("%w: %q", types.ErrUnknownStoreKind, opts.from)
	}
	to, ok := types.ParseStoreKind(opts.to)
	if !ok {
		return fmt.Errorf("%w: %q", types.ErrUnknownStoreKind, opts.to)
	}

	a := newApp(rootOpts)
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	r, err := a.router(ctx)
	if err != nil {
		return err
	}

	settings := r.Settings(ctx)
	source, err := r.Adapter(ctx, from, settings)
	if err != nil {
		return fmt.Errorf("source %s: %w", from, err)
	}
	target, err := r.Adapter(ctx, to, settings)
	if err != nil {
		return fmt.Errorf("target %s: %w", to, err)
	}

	syncOpts := []backfill.Option{
		backfill.WithLogger(rootOpts.Logger),
		backfill.WithBatchSize(opts.batchSize),
		backfill.WithTables(opts.tables...),
	}
	if opts.noStrip {
		syncOpts = append(syncOpts, backfill.WithStripRules(nil))
	}

	report, err := backfill.New(syncOpts...).Run(ctx, source, target)
	if report == nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rootOpts.JSON {
		if perr := printJSON(out, report); perr != nil {
			return perr
		}

		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS\tWRITTEN\tERRORS")
	for _, t := range report.Tables {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", t.Table, t.Rows, t.Written, len(t.Errors))
	}
	fmt.Fprintf(w, "total\t%d\t%d\t%d\n", report.TotalRows(), report.TotalWritten(), report.TotalErrors())
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	for _, t := range report.Tables {
		for _, e := range t.Errors {
			fmt.Fprintf(out, "%s: %s\n", t.Table, e)
		}
	}

	return err
}
