package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/qbench/qbench/internal/model"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create any missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result := map[string]interface{}{
				"driver": s.store.Driver(),
				"tables": len(model.Tables),
			}
			return s.emit(result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Schema up to date (%s, %d tables)\n", s.store.Driver(), len(model.Tables))
				return err
			})
		},
	}
}
