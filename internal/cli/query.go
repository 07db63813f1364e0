package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qbench/qbench/internal/query/executor"
	"github.com/qbench/qbench/internal/query/planner"
	"github.com/qbench/qbench/internal/store"
)

// NewQueryCommand creates the query command and its builders.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a query-builder selection",
	}
	cmd.AddCommand(newCustomizeCommand(rootOpts))
	cmd.AddCommand(newManyTableCommand(rootOpts))
	return cmd
}

func newExecutor(s *session) *executor.Executor {
	return executor.New(s.store, executor.Config{
		ChosenMetric: s.cfg.Query.ChosenMetric,
		MaxRows:      s.cfg.Query.MaxRows,
		Timeout:      s.cfg.Query.Timeout,
	}, executor.WithLogger(s.logger))
}

func newCustomizeCommand(rootOpts *RootOptions) *cobra.Command {
	var req planner.CustomizeRequest
	cmd := &cobra.Command{
		Use:   "customize",
		Short: "Select columns from a base table and its fixed joins",
		Example: `  qbenchctl query customize --base performancereport --join solver \
    --column a.qubit_count --column e.name --filter e.name=qbsolv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := newExecutor(s).Customize(cmd.Context(), req)
			if err != nil {
				return err
			}
			return s.emit(result, func(w io.Writer) error {
				fmt.Fprintf(w, "-- %s\n", result.SQL)
				return writeTable(w, &store.ResultSet{Columns: result.Columns, Rows: result.Rows, Truncated: result.Truncated})
			})
		},
	}
	cmd.Flags().StringArrayVar(&req.Base, "base", nil, "base table")
	cmd.Flags().StringArrayVar(&req.Joins, "join", nil, "table to join (repeatable)")
	cmd.Flags().StringArrayVar(&req.Columns, "column", nil, "column to select (repeatable)")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		filters, err := cmd.Flags().GetStringArray("filter")
		if err != nil {
			return err
		}
		req.Filter, err = splitFilters(filters)
		return err
	}
	cmd.Flags().StringArray("filter", nil, "field=value substring filter (repeatable)")
	return cmd
}

func newManyTableCommand(rootOpts *RootOptions) *cobra.Command {
	var req planner.ManyTableRequest
	cmd := &cobra.Command{
		Use:   "manytable",
		Short: "Join any set of tables along foreign keys",
		Example: `  qbenchctl query manytable --table system --table manufacturer \
    --filter benchmarks_manufacturer.name=IBM`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := newExecutor(s).ManyTable(cmd.Context(), req)
			if err != nil {
				return err
			}
			return s.emit(result, func(w io.Writer) error {
				fmt.Fprintf(w, "-- %s\n", result.SQL)
				return writeTable(w, &store.ResultSet{Columns: result.Columns, Rows: result.Rows, Truncated: result.Truncated})
			})
		},
	}
	cmd.Flags().StringArrayVar(&req.Tables, "table", nil, "table to include (repeatable)")
	cmd.Flags().StringArrayVar(&req.Columns, "column", nil, "column to display (repeatable)")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		filters, err := cmd.Flags().GetStringArray("filter")
		if err != nil {
			return err
		}
		req.Filter, err = splitFilters(filters)
		return err
	}
	cmd.Flags().StringArray("filter", nil, "field=value substring filter (repeatable)")
	return cmd
}

// splitFilters turns field=value flags into the alternating field and
// value list the planner expects.
func splitFilters(flags []string) ([]string, error) {
	var out []string
	for _, f := range flags {
		field, value, ok := strings.Cut(f, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid filter %q: expected field=value", f)
		}
		out = append(out, field, value)
	}
	return out, nil
}
