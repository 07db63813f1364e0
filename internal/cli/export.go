package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/qbench/qbench/internal/store"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		output string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "export <table>",
		Short: "Export an entity table as CSV",
		Long: `Export the rows of an entity table ordered by id. Output is CSV unless
--format json is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rs, err := s.store.ListTable(cmd.Context(), args[0], limit, offset)
			if err != nil {
				return err
			}
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				s.out = f
			}
			return s.emit(rs, rs.WriteCSV)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

// NewViewCommand creates the view command.
func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "view <name>",
		Short:     "Show a fixed report view",
		Long:      "Show a fixed report view. Available views: " + strings.Join(store.ViewNames(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: store.ViewNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rs, err := s.store.View(cmd.Context(), args[0], s.cfg.Query.MaxRows)
			if err != nil {
				return err
			}
			return s.emit(rs, func(w io.Writer) error { return writeTable(w, rs) })
		},
	}
}

// NewErrorLogCommand creates the errorlog command.
func NewErrorLogCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "errorlog",
		Short: "List failed query-builder statements, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.store.ErrorLog(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return s.emit(entries, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tLOGGED AT\tERROR\tQUERY")
				for _, e := range entries {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.LoggedAt.Format("2006-01-02 15:04:05"), e.Message, e.QueryCode)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries")
	return cmd
}

// writeTable renders a result set as aligned columns.
func writeTable(w io.Writer, rs *store.ResultSet) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(rs.Columns, "\t"))
	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if rs.Truncated {
		fmt.Fprintf(w, "(truncated to %d rows)\n", len(rs.Rows))
	}
	return nil
}
